package op

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/zipfx/zipfx/internal/archive/tree"
	"github.com/zipfx/zipfx/internal/model"
)

// StageFile describes the local file src as an entry named name inside an
// archive, ready to be passed to AddEntries or Create.
func StageFile(src, name string) *model.FileInfo {
	name = tree.Clean(name)
	f := &model.FileInfo{Level: tree.LevelOf(name), FileName: name}
	if fi, err := os.Stat(src); err == nil {
		f.RawSize = fi.Size()
		f.LastWriteTime = model.TimePtr(fi.ModTime())
		f.Attributes = uint32(fi.Mode().Perm())
		f.IsFolder = fi.IsDir()
	}
	f.SetExtra(model.KeyStagedSource, src)
	return f
}

// StagePath stages src below prefix. A directory is staged with everything
// it contains, each entry keeping its relative path.
func StagePath(src, prefix string) ([]*model.FileInfo, error) {
	fi, err := os.Stat(src)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	root := tree.Join(prefix, filepath.Base(src))
	if !fi.IsDir() {
		return []*model.FileInfo{StageFile(src, root)}, nil
	}
	var ret []*model.FileInfo
	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		ret = append(ret, StageFile(path, tree.Join(root, filepath.ToSlash(rel))))
		return nil
	})
	return ret, errors.WithStack(err)
}
