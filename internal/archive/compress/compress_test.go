package compress

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zipfx/zipfx/internal/errs"
	"github.com/zipfx/zipfx/internal/model"
)

func TestCodecRoundTrip(t *testing.T) {
	payload := []byte(strings.Repeat("compressible payload ", 512))
	for _, format := range Formats() {
		t.Run(format, func(t *testing.T) {
			codec, ok := Lookup(format)
			require.True(t, ok)
			var buf bytes.Buffer
			w, err := codec.NewWriter(&buf, 6)
			require.NoError(t, err)
			_, err = w.Write(payload)
			require.NoError(t, err)
			require.NoError(t, w.Close())
			assert.Less(t, buf.Len(), len(payload))

			r, err := codec.NewReader(&buf)
			require.NoError(t, err)
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			require.NoError(t, r.Close())
			assert.Equal(t, payload, got)
		})
	}
}

func TestSplit(t *testing.T) {
	inner, codec, ok := Split("tar.zst")
	require.True(t, ok)
	assert.Equal(t, "tar", inner)
	assert.Equal(t, "zst", codec.Format)

	_, _, ok = Split("tar")
	assert.False(t, ok)
	_, ok = Lookup(".GZ")
	assert.True(t, ok)
}

func TestCompressorSingleEntry(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("some notes"), 0644))
	entry := &model.FileInfo{FileName: "notes.txt"}
	entry.SetExtra(model.KeyStagedSource, src)

	c := New(nil)
	info := model.NewArchiveInfo(filepath.Join(dir, "notes.txt.xz"))
	require.NoError(t, c.CreateArchive(ctx, "s", info, entry))

	files, err := c.ListFiles(ctx, "s", info)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "notes.txt", files[0].FileName)
	assert.Equal(t, 0, files[0].Level)

	target := filepath.Join(dir, "out", "notes.txt")
	require.NoError(t, c.ExtractFile(ctx, "s", target, info, files[0]))
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "some notes", string(data))
	require.NoError(t, c.TestArchive(ctx, "s", info))

	assert.ErrorIs(t, c.AddFile(ctx, "s", info, entry), errs.CompressorArchive)
	assert.ErrorIs(t, c.DeleteFile(ctx, "s", info, files[0]), errs.CompressorArchive)
	assert.True(t, c.CompressorArchives().Contains("xz"))
}

func TestCompressorRejectsSeveralFiles(t *testing.T) {
	dir := t.TempDir()
	c := New(nil)
	info := model.NewArchiveInfo(filepath.Join(dir, "x.gz"))
	a := &model.FileInfo{FileName: "a"}
	b := &model.FileInfo{FileName: "b"}
	err := c.CreateArchive(context.Background(), "s", info, a, b)
	assert.ErrorIs(t, err, errs.CompressorArchive)
	_, statErr := os.Stat(info.Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestCorruptStreamFailsTest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.gz")
	require.NoError(t, os.WriteFile(path, []byte("definitely not gzip"), 0644))
	c := New(nil)
	assert.Error(t, c.TestArchive(context.Background(), "s", model.NewArchiveInfo(path)))
}
