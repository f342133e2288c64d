package rar

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nwaples/rardecode/v2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zipfx/zipfx/internal/errs"
	"github.com/zipfx/zipfx/internal/model"
)

func TestToFileInfo(t *testing.T) {
	mod := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)
	f := toFileInfo(&rardecode.FileHeader{
		Name:             "a/b/c.txt",
		PackedSize:       10,
		UnPackedSize:     20,
		ModificationTime: mod,
	})
	assert.Equal(t, 2, f.Level)
	assert.Equal(t, int64(10), f.PackedSize)
	assert.Equal(t, int64(20), f.RawSize)
	assert.Equal(t, mod, f.ModTime())
	assert.False(t, f.IsEncrypted)

	dir := toFileInfo(&rardecode.FileHeader{Name: "a/", IsDir: true, UnPackedSize: 4096})
	assert.True(t, dir.IsFolder)
	assert.Equal(t, "a", dir.FileName)
	assert.Equal(t, int64(0), dir.RawSize)

	unknown := toFileInfo(&rardecode.FileHeader{Name: "s", UnKnownSize: true})
	assert.Equal(t, int64(-1), unknown.RawSize)
}

func TestFilterPassword(t *testing.T) {
	assert.ErrorIs(t, filterPassword(errors.WithStack(rardecode.ErrBadPassword)), errs.WrongArchivePassword)
	assert.ErrorIs(t, filterPassword(errors.New("rardecode: incorrect password")), errs.WrongArchivePassword)
	assert.ErrorIs(t, filterPassword(errors.New("rardecode: archive encrypted, password required")), errs.WrongArchivePassword)
	other := errors.New("rardecode: corrupt block")
	assert.Equal(t, other, filterPassword(other))
}

func TestNotARar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.rar")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0644))
	r := New(nil)
	_, err := r.ListFiles(context.Background(), "s", model.NewArchiveInfo(path))
	assert.Error(t, err)
	assert.Error(t, r.TestArchive(context.Background(), "s", model.NewArchiveInfo(path)))
}
