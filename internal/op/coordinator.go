// Package op runs archive operations off the caller's goroutine on a
// bounded pool, keeps the session listings in sync and protects structural
// changes with a backup of the archive.
package op

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/zipfx/zipfx/internal/archive/tool"
	"github.com/zipfx/zipfx/internal/bus"
	"github.com/zipfx/zipfx/internal/conf"
	"github.com/zipfx/zipfx/internal/errs"
	"github.com/zipfx/zipfx/internal/model"
	"github.com/zipfx/zipfx/internal/session"
	"golang.org/x/sync/semaphore"
)

type Options struct {
	Workers      int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// TempDir holds backups, staged entries and temporary archives.
	TempDir string
}

// OptionsFromConfig maps the loaded configuration onto Options.
func OptionsFromConfig(c *conf.Config) Options {
	return Options{
		Workers:      c.Workers,
		ReadTimeout:  c.ReadTimeout.Std(),
		WriteTimeout: c.WriteTimeout.Std(),
		TempDir:      c.TempDir,
	}
}

type class int

const (
	classRead class = iota
	classWrite
)

type Coordinator struct {
	registry  *tool.Registry
	publisher bus.Publisher
	sessions  *session.Store
	sem       *semaphore.Weighted
	opts      Options
	wg        sync.WaitGroup
}

func New(registry *tool.Registry, publisher bus.Publisher, opts Options) *Coordinator {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	return &Coordinator{
		registry:  registry,
		publisher: publisher,
		sessions:  session.NewStore(),
		sem:       semaphore.NewWeighted(int64(opts.Workers)),
		opts:      opts,
	}
}

func (c *Coordinator) Registry() *tool.Registry {
	return c.registry
}

func (c *Coordinator) Sessions() *session.Store {
	return c.sessions
}

// Session returns the open session with id.
func (c *Coordinator) Session(id string) (*session.Session, error) {
	s, ok := c.sessions.Get(id)
	if !ok {
		return nil, errors.Wrap(errs.SessionClosed, id)
	}
	return s, nil
}

// Wait blocks until every submitted task is done.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) timeout(cl class) time.Duration {
	if cl == classWrite {
		return c.opts.WriteTimeout
	}
	return c.opts.ReadTimeout
}

type job[T any] struct {
	name  string
	class class
	// s is locked for the duration of fn and refreshed afterwards when
	// refresh is set
	s       *session.Session
	refresh bool
	// extra is locked after s and before a pool slot is taken. It must be
	// a descendant of s so nested sessions are always locked top down.
	extra *session.Session
	// archive is reported with failures when s is nil
	archive *model.ArchiveInfo
	fn      func(ctx context.Context) (T, error)
}

// submit runs j on the pool and returns its task right away. The caller's
// ctx contributes its values but not its cancellation, the task is bounded
// by the timeout of its class instead.
func submit[T any](c *Coordinator, ctx context.Context, sessionID string, j job[T]) *Task[T] {
	t := newTask[T](sessionID, j.name)
	base := context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer t.close()
		if j.s != nil {
			j.s.Lock()
			defer j.s.Unlock()
		}
		if j.extra != nil {
			j.extra.Lock()
			defer j.extra.Unlock()
		}
		if err := c.sem.Acquire(base, 1); err != nil {
			t.finish(*new(T), err)
			return
		}
		defer c.sem.Release(1)

		runCtx := base
		if d := c.timeout(j.class); d > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(base, d)
			defer cancel()
		}
		t.setState(StateRunning)
		log.Debugf("task %s (%s) started for session %s", t.ID, j.name, sessionID)
		result, err := safeRun(runCtx, j.fn)
		t.finish(result, err)
		info := j.archive
		if j.s != nil {
			info = j.s.Info
		}
		c.report(sessionID, j.name, info, err)
		if j.s != nil && j.refresh {
			if rerr := j.s.Refresh(base); rerr != nil {
				log.Warnf("refresh of %s after %s failed: %+v", j.s.Info.Path, j.name, rerr)
			}
			c.publish(model.NewProgressMessage(sessionID, model.MsgRefresh, j.name, 1, 1))
		}
	}()
	return t
}

// safeRun runs fn and turns a panic into an error.
func safeRun[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("operation panic: %v", r)
		}
	}()
	return fn(ctx)
}

// report publishes the outcome of an operation. Validation failures are
// warnings and a paste onto the source folder is only a cancellation. A
// failure a provider already published as an error is summed up as a
// warning so every failure yields a single ErrorMessage.
func (c *Coordinator) report(sessionID, name string, info *model.ArchiveInfo, err error) {
	switch {
	case err == nil:
		c.publish(model.NewProgressMessage(sessionID, model.MsgComplete, name+" finished", 1, 1))
	case errs.IsCancellation(err):
		log.Infof("%s cancelled: %v", name, err)
		c.publish(model.NewWarningMessage(sessionID, name, name+" cancelled", err.Error(), err, info))
	case errs.IsValidation(err):
		log.Warnf("%s rejected: %v", name, err)
		c.publish(model.NewWarningMessage(sessionID, name, name+" not possible", err.Error(), err, info))
	case tool.Reported(err):
		// the provider already published the ErrorMessage
		log.Errorf("%s failed: %+v", name, err)
		c.publish(model.NewWarningMessage(sessionID, name, name+" failed", err.Error(), err, info))
	default:
		log.Errorf("%s failed: %+v", name, err)
		c.publish(model.NewErrorMessage(sessionID, name, fmt.Sprintf("%s failed", name), err.Error(), err, info))
	}
}

func (c *Coordinator) publish(msg model.Message) {
	if c.publisher != nil {
		c.publisher.Publish(msg)
	}
}
