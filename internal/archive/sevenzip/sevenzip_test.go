package sevenzip

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bodgit/sevenzip"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zipfx/zipfx/internal/bus"
	"github.com/zipfx/zipfx/internal/errs"
	"github.com/zipfx/zipfx/internal/model"
)

func TestToFileInfo(t *testing.T) {
	modified := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	file := &sevenzip.File{FileHeader: sevenzip.FileHeader{
		Name:             "dir\\sub\\file.bin",
		Modified:         modified,
		CRC32:            0xdeadbeef,
		UncompressedSize: 42,
		Attributes:       0x20,
	}}
	f := toFileInfo(file, true)
	assert.Equal(t, "dir/sub/file.bin", f.FileName)
	assert.Equal(t, 2, f.Level)
	assert.Equal(t, int64(42), f.RawSize)
	assert.Equal(t, uint32(0xdeadbeef), f.CRC)
	assert.Equal(t, modified, f.ModTime())
	assert.True(t, f.IsEncrypted)
	assert.False(t, f.IsFolder)

	unix := &sevenzip.File{FileHeader: sevenzip.FileHeader{
		Name:       "x",
		Attributes: 0o755<<16 | unixExtension,
	}}
	assert.Equal(t, uint32(0o755), toFileInfo(unix, false).Attributes)
}

func TestFilterPassword(t *testing.T) {
	err := filterPassword(errors.WithStack(&sevenzip.ReadError{Encrypted: true, Err: errors.New("checksum")}))
	assert.ErrorIs(t, err, errs.WrongArchivePassword)

	plain := errors.New("boom")
	assert.Equal(t, plain, filterPassword(plain))
	assert.NoError(t, filterPassword(nil))
}

func TestBrokenArchivePublishesError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.7z")
	require.NoError(t, os.WriteFile(path, []byte("not a 7z archive"), 0644))

	b := bus.New()
	defer b.Close()
	got := make(chan model.Message, 1)
	b.Subscribe(bus.ListenSession("s", func(msg model.Message) {
		got <- msg
	}))

	s := New(b)
	_, err := s.ListFiles(context.Background(), "s", model.NewArchiveInfo(path))
	require.Error(t, err)
	select {
	case msg := <-got:
		assert.Equal(t, model.MsgError, msg.GetType())
	case <-time.After(time.Second):
		t.Fatal("no error message published")
	}
}

func TestMultipartDeclaration(t *testing.T) {
	s := New(nil)
	assert.Equal(t, []string{".7z.%.3d"}, s.AcceptedMultipartExtensions())
	assert.Equal(t, []string{"7z"}, s.SupportedReadFormats())
	assert.Equal(t, 0, s.CompressorArchives().Cardinality())
}
