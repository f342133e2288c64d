package iso

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zipfx/zipfx/internal/archive/tree"
	"github.com/zipfx/zipfx/internal/errs"
	"github.com/zipfx/zipfx/internal/model"
)

func stage(t *testing.T, dir, name, content string) *model.FileInfo {
	t.Helper()
	src := filepath.Join(dir, "src", filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0755))
	require.NoError(t, os.WriteFile(src, []byte(content), 0644))
	f := &model.FileInfo{Level: tree.LevelOf(name), FileName: name}
	f.SetExtra(model.KeyStagedSource, src)
	return f
}

func fileNames(files []*model.FileInfo) []string {
	var ret []string
	for _, f := range files {
		if !f.IsFolder {
			ret = append(ret, f.FileName)
		}
	}
	return ret
}

func TestCreateListExtract(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := New(nil)
	info := model.NewArchiveInfo(filepath.Join(dir, "disk.iso"))
	require.NoError(t, p.CreateArchive(ctx, "s", info,
		stage(t, dir, "DOCS/README.TXT", "read me"),
		stage(t, dir, "TOP.TXT", "top"),
	))

	files, err := p.ListFiles(ctx, "s", info)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"docs/readme.txt", "top.txt"}, fileNames(files))

	target := filepath.Join(dir, "out", "README.TXT")
	require.NoError(t, p.ExtractFile(ctx, "s", target, info, &model.FileInfo{Level: 1, FileName: "docs/readme.txt"}))
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "read me", string(data))
	require.NoError(t, p.TestArchive(ctx, "s", info))
}

func TestAddAndDelete(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := New(nil)
	info := model.NewArchiveInfo(filepath.Join(dir, "disk.iso"))
	require.NoError(t, p.CreateArchive(ctx, "s", info, stage(t, dir, "A.TXT", "a")))

	require.NoError(t, p.AddFile(ctx, "s", info, stage(t, dir, "B.TXT", "b")))
	files, err := p.ListFiles(ctx, "s", info)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, fileNames(files))

	// replacing keeps a single entry
	require.NoError(t, p.AddFile(ctx, "s", info, stage(t, dir, "b.txt", "bb")))
	files, err = p.ListFiles(ctx, "s", info)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, fileNames(files))

	require.NoError(t, p.DeleteFile(ctx, "s", info, &model.FileInfo{FileName: "A.TXT"}))
	files, err = p.ListFiles(ctx, "s", info)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.txt"}, fileNames(files))

	err = p.DeleteFile(ctx, "s", info, &model.FileInfo{FileName: "NOPE.TXT"})
	assert.ErrorIs(t, err, errs.ObjectNotFound)
}

func TestStoredNameMatchesListing(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := New(nil)
	info := model.NewArchiveInfo(filepath.Join(dir, "disk.iso"))
	names := []string{"Sub Dir/My.Report.v2.TXT", "NOEXT", "dir.d/x.tar.gz", "a-very-long-file-name-beyond-the-limit.txt"}
	var staged []*model.FileInfo
	for _, n := range names {
		staged = append(staged, stage(t, dir, n, n))
	}
	require.NoError(t, p.CreateArchive(ctx, "s", info, staged...))
	files, err := p.ListFiles(ctx, "s", info)
	require.NoError(t, err)

	var want []string
	for _, n := range names {
		want = append(want, p.StoredName(n))
	}
	assert.ElementsMatch(t, want, fileNames(files))
	assert.Equal(t, "sub_dir/my_report_v2.txt", p.StoredName("Sub Dir/My.Report.v2.TXT"))
	assert.Equal(t, "noext", p.StoredName("NOEXT"))
	assert.Equal(t, p.StoredName("a.txt"), p.StoredName(p.StoredName("A.TXT")))
}

func TestVolumeID(t *testing.T) {
	assert.Equal(t, "MY_DISK_1", volumeID("/tmp/my disk-1.iso"))
}
