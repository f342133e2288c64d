package op

import (
	"os"
	"path/filepath"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"github.com/otiai10/copy"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/zipfx/zipfx/internal/errs"
)

// backup is a full copy of a live archive taken before a structural change.
type backup struct {
	live string
	path string
}

func takeBackup(live, dir string) (*backup, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(errs.BackupFailed, err.Error())
	}
	b := &backup{
		live: live,
		path: filepath.Join(dir, "backup-"+uuid.NewString()+"-"+filepath.Base(live)),
	}
	if err := copyFile(live, b.path); err != nil {
		_ = os.Remove(b.path)
		return nil, errors.Wrapf(errs.BackupFailed, "%s: %v", live, err)
	}
	return b, nil
}

// restore copies the backup over the live archive, retrying transient
// failures such as a file still held open by the failed writer.
func (b *backup) restore() error {
	err := retry.Do(
		func() error {
			return copyFile(b.path, b.live)
		},
		retry.Attempts(3),
		retry.Delay(50*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return errors.Wrapf(errs.RestoreFailed, "%s: %v", b.live, err)
	}
	log.Infof("restored %s from backup", b.live)
	return nil
}

func (b *backup) discard() {
	if err := os.Remove(b.path); err != nil && !os.IsNotExist(err) {
		log.Warnf("failed to remove backup %s: %v", b.path, err)
	}
}

func copyFile(src, dst string) error {
	return errors.WithStack(copy.Copy(src, dst, copy.Options{Sync: true}))
}
