package errs

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(FolderNotSupported))
	assert.True(t, IsValidation(errors.WithStack(CompressorArchive)))
	assert.True(t, IsValidation(errors.Wrap(SameLocation, "paste")))
	assert.False(t, IsValidation(BackupFailed))
	assert.False(t, IsValidation(nil))
}

func TestIsCancellation(t *testing.T) {
	assert.True(t, IsCancellation(errors.WithStack(SameLocation)))
	assert.False(t, IsCancellation(MigrationActive))
}
