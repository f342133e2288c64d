package model

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileInfoEqualityIgnoresOtherFields(t *testing.T) {
	a := &FileInfo{Index: 1, Level: 2, FileName: "a/b/c", RawSize: 10, IsFolder: false}
	b := &FileInfo{Index: 7, Level: 2, FileName: "a/b/c", RawSize: 99, IsFolder: true, Comments: "x"}
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Key(), b.Key())

	c := &FileInfo{Level: 1, FileName: "a/b/c"}
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
}

func TestProgressMessageNormalizesZeroTotal(t *testing.T) {
	for _, completed := range []float64{0, 1, 42, -5} {
		m := NewProgressMessage("s", MsgProgress, "working", completed, 0)
		assert.Equal(t, float64(-1), m.Completed())
		assert.Equal(t, float64(1), m.Total())
		assert.True(t, m.Indeterminate())
		assert.Equal(t, float64(-1), m.Percent())
	}
	m := NewProgressMessage("s", MsgProgress, "working", 3, 4)
	assert.Equal(t, float64(75), m.Percent())
}

func TestErrorMessageSnapshotsArchive(t *testing.T) {
	info := NewArchiveInfo("/tmp/a.zip")
	info.SetProperty(PropPassword, "secret")
	m := NewErrorMessage("s", "Delete", "Delete failed", "", errors.New("boom"), info)
	info.SetProperty(PropPassword, "changed")

	assert.Equal(t, "boom", m.GetMessage())
	assert.Equal(t, MsgError, m.GetType())
	require.NotNil(t, m.Archive())
	assert.Equal(t, "secret", m.Archive().Password())
}

func TestFormatFromPath(t *testing.T) {
	cases := map[string]string{
		"/x/archive.tar.gz":  "tar.gz",
		"archive.TGZ":        "tar.gz",
		"archive.gz":         "gz",
		"archive.zip":        "zip",
		"archive.7z.001":     "7z",
		"dir.v1/archive.tar": "tar",
		"README":             "",
	}
	for path, want := range cases {
		assert.Equal(t, want, FormatFromPath(path), path)
	}
}

func TestArchiveInfoLevelClamped(t *testing.T) {
	info := NewArchiveInfo("a.zip")
	assert.Equal(t, DefaultCompressionLevel, info.Level())
	info.CompressionLevel = 12
	assert.Equal(t, 9, info.Level())
	info.CompressionLevel = -1
	assert.Equal(t, 0, info.Level())
}

func TestStagedSource(t *testing.T) {
	f := &FileInfo{FileName: "a.txt"}
	_, ok := f.StagedSource()
	assert.False(t, ok)
	f.SetExtra(KeyStagedSource, "/tmp/a.txt")
	src, ok := f.StagedSource()
	assert.True(t, ok)
	assert.Equal(t, "/tmp/a.txt", src)
}
