package tool

import (
	"fmt"
	"sync/atomic"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/zipfx/zipfx/internal/bus"
	"github.com/zipfx/zipfx/internal/model"
)

// Base carries what every bundled provider shares: the enable toggle and
// the publisher used to report failures. Embed it by value.
type Base struct {
	Publisher bus.Publisher
	disabled  atomic.Bool
}

func (b *Base) IsEnabled() bool {
	return !b.disabled.Load()
}

func (b *Base) SetEnabled(enabled bool) {
	b.disabled.Store(!enabled)
}

// reported marks an error that was already published as an ErrorMessage.
type reported struct {
	error
}

func (r reported) Cause() error  { return r.error }
func (r reported) Unwrap() error { return r.error }

// Reported reports whether err was published by a provider through Fail.
func Reported(err error) bool {
	var r reported
	return errors.As(err, &r)
}

// Fail publishes err as an ErrorMessage for sessionID and returns it with a
// stack attached. A nil err is returned unchanged, an err already published
// is not published again.
func (b *Base) Fail(sessionID string, info *model.ArchiveInfo, title string, err error) error {
	if err == nil {
		return nil
	}
	if Reported(err) {
		return err
	}
	path := ""
	if info != nil {
		path = info.Path
	}
	log.Errorf("%s %s failed: %+v", title, path, err)
	if b.Publisher != nil {
		b.Publisher.Publish(model.NewErrorMessage(sessionID, title, fmt.Sprintf("%s failed", title), "", err, info))
	}
	return errors.WithStack(reported{err})
}

// Progress publishes a progress message for sessionID.
func (b *Base) Progress(sessionID, message string, completed, total float64) {
	if b.Publisher != nil {
		b.Publisher.Publish(model.NewProgressMessage(sessionID, model.MsgProgress, message, completed, total))
	}
}

// Recover turns a panic inside a provider call into a published error. Use
// it as the first deferred call of every exported provider method.
func (b *Base) Recover(sessionID string, info *model.ArchiveInfo, title string, errp *error) {
	if r := recover(); r != nil {
		*errp = b.Fail(sessionID, info, title, errors.Errorf("provider panic: %v", r))
	}
}
