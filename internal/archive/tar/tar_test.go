package tar

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

func names(files []*model.FileInfo) []string {
	ret := make([]string, 0, len(files))
	for _, f := range files {
		ret = append(ret, f.FileName)
	}
	return ret
}

func TestRoundTripAllFormats(t *testing.T) {
	for _, format := range formats {
		t.Run(format, func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()
			p := New(nil)
			info := model.NewArchiveInfo(filepath.Join(dir, "a."+format))
			require.Equal(t, format, info.Format)
			require.NoError(t, p.CreateArchive(ctx, "s", info,
				stage(t, dir, "docs/readme.md", "# readme"),
				&model.FileInfo{FileName: "empty", IsFolder: true},
			))

			files, err := p.ListFiles(ctx, "s", info)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"docs/readme.md", "empty"}, names(files))
			for _, f := range files {
				if f.FileName == "docs/readme.md" {
					assert.Equal(t, 1, f.Level)
					assert.Equal(t, int64(8), f.RawSize)
				}
			}

			target := filepath.Join(dir, "out", "readme.md")
			require.NoError(t, p.ExtractFile(ctx, "s", target, info, &model.FileInfo{Level: 1, FileName: "docs/readme.md"}))
			data, err := os.ReadFile(target)
			require.NoError(t, err)
			assert.Equal(t, "# readme", string(data))
			require.NoError(t, p.TestArchive(ctx, "s", info))
		})
	}
}

func TestAddAndDelete(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := New(nil)
	info := model.NewArchiveInfo(filepath.Join(dir, "a.tgz"))
	require.Equal(t, "tar.gz", info.Format)
	require.NoError(t, p.CreateArchive(ctx, "s", info,
		stage(t, dir, "a/one.txt", "1"),
		stage(t, dir, "a/b/two.txt", "2"),
	))

	require.NoError(t, p.AddFile(ctx, "s", info, stage(t, dir, "a/one.txt", "uno"), stage(t, dir, "top.txt", "t")))
	files, err := p.ListFiles(ctx, "s", info)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a/one.txt", "a/b/two.txt", "top.txt"}, names(files))

	target := filepath.Join(dir, "one.txt")
	require.NoError(t, p.ExtractFile(ctx, "s", target, info, &model.FileInfo{Level: 1, FileName: "a/one.txt"}))
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "uno", string(data))

	require.NoError(t, p.DeleteFile(ctx, "s", info, &model.FileInfo{Level: 1, FileName: "a/b", IsFolder: true}))
	files, err = p.ListFiles(ctx, "s", info)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a/one.txt", "top.txt"}, names(files))
}

func TestDeleteMissingLeavesArchive(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := New(nil)
	info := model.NewArchiveInfo(filepath.Join(dir, "a.tar"))
	require.NoError(t, p.CreateArchive(ctx, "s", info, stage(t, dir, "x.txt", "x")))
	before, err := os.ReadFile(info.Path)
	require.NoError(t, err)

	err = p.DeleteFile(ctx, "s", info, &model.FileInfo{FileName: "missing.txt"})
	assert.ErrorIs(t, err, errs.ObjectNotFound)
	after, err := os.ReadFile(info.Path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	matches, _ := filepath.Glob(filepath.Join(dir, ".a.tar.*.tmp"))
	assert.Empty(t, matches)
}

func TestUnknownFormat(t *testing.T) {
	p := New(nil)
	info := model.NewArchiveInfo(filepath.Join(t.TempDir(), "a.rar"))
	_, err := p.ListFiles(context.Background(), "s", info)
	assert.ErrorIs(t, err, errs.UnknownArchiveFormat)
}
