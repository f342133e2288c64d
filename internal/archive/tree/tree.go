// Package tree keeps flat archive listings hierarchical: it derives entry
// levels from paths, fills in folders the archive format did not store and
// assigns listing indexes.
package tree

import (
	stdpath "path"
	"sort"
	"strings"

	"github.com/maruel/natural"
	"github.com/zipfx/zipfx/internal/model"
)

// Clean normalizes a native entry name: forward slashes, no leading "./"
// or "/", no trailing slash.
func Clean(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	name = strings.Trim(name, "/")
	if name == "" || name == "." {
		return ""
	}
	return stdpath.Clean(name)
}

// LevelOf is the depth of name below the archive root, 0 for top level.
func LevelOf(name string) int {
	name = Clean(name)
	if name == "" {
		return 0
	}
	return strings.Count(name, "/")
}

// Parent returns the folder containing name, "" for top level entries.
func Parent(name string) string {
	name = Clean(name)
	i := strings.LastIndex(name, "/")
	if i < 0 {
		return ""
	}
	return name[:i]
}

func Base(name string) string {
	name = Clean(name)
	return name[strings.LastIndex(name, "/")+1:]
}

// Join places name below prefix ("" is the root).
func Join(prefix, name string) string {
	prefix = Clean(prefix)
	if prefix == "" {
		return Clean(name)
	}
	return Clean(prefix + "/" + name)
}

// IsUnder reports whether name sits directly or indirectly below prefix.
func IsUnder(name, prefix string) bool {
	prefix = Clean(prefix)
	if prefix == "" {
		return true
	}
	return strings.HasPrefix(Clean(name), prefix+"/")
}

// Folder builds the zero sized folder entry synthesized for name.
func Folder(name string) *model.FileInfo {
	name = Clean(name)
	return &model.FileInfo{
		Level:    LevelOf(name),
		FileName: name,
		RawSize:  0,
		IsFolder: true,
	}
}

// Synthesize returns entries completed with every missing ancestor folder
// and without duplicate keys. For an entry at level L and each j in 1..L
// the path truncated by j segments must exist at level L-j. Running it on
// its own output adds nothing.
func Synthesize(entries []*model.FileInfo) []*model.FileInfo {
	seen := make(map[model.EntryKey]*model.FileInfo, len(entries))
	ret := make([]*model.FileInfo, 0, len(entries))
	add := func(f *model.FileInfo) {
		if _, ok := seen[f.Key()]; ok {
			return
		}
		seen[f.Key()] = f
		ret = append(ret, f)
	}
	for _, f := range entries {
		if f == nil || f.FileName == "" {
			continue
		}
		add(f)
	}
	for _, f := range entries {
		if f == nil || f.FileName == "" {
			continue
		}
		segments := strings.Split(f.FileName, "/")
		for j := 1; j <= f.Level && j < len(segments); j++ {
			ancestor := strings.Join(segments[:len(segments)-j], "/")
			key := model.EntryKey{Level: f.Level - j, FileName: ancestor}
			if _, ok := seen[key]; ok {
				continue
			}
			folder := &model.FileInfo{
				Level:         f.Level - j,
				FileName:      ancestor,
				IsFolder:      true,
				LastWriteTime: f.LastWriteTime,
			}
			add(folder)
		}
	}
	return ret
}

// Reindex orders entries by level, folders first, then natural name order,
// and sets Index to the position in that order.
func Reindex(entries []*model.FileInfo) []*model.FileInfo {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		if a.IsFolder != b.IsFolder {
			return a.IsFolder
		}
		return natural.Less(a.FileName, b.FileName)
	})
	for i, f := range entries {
		f.Index = i
	}
	return entries
}

// Normalize is the full listing pipeline: synthesize, then reindex.
func Normalize(entries []*model.FileInfo) []*model.FileInfo {
	return Reindex(Synthesize(entries))
}

// Children returns the entries directly inside prefix at depth level.
func Children(entries []*model.FileInfo, level int, prefix string) []*model.FileInfo {
	prefix = Clean(prefix)
	var ret []*model.FileInfo
	for _, f := range entries {
		if f.Level != level {
			continue
		}
		if Parent(f.FileName) != prefix {
			continue
		}
		ret = append(ret, f)
	}
	return ret
}

// Under returns the entries directly or indirectly below prefix.
func Under(entries []*model.FileInfo, prefix string) []*model.FileInfo {
	var ret []*model.FileInfo
	for _, f := range entries {
		if IsUnder(f.FileName, prefix) {
			ret = append(ret, f)
		}
	}
	return ret
}

// Subtree returns entry and everything below it.
func Subtree(entries []*model.FileInfo, entry *model.FileInfo) []*model.FileInfo {
	var ret []*model.FileInfo
	for _, f := range entries {
		if f.Equal(entry) || (entry.IsFolder && IsUnder(f.FileName, entry.FileName)) {
			ret = append(ret, f)
		}
	}
	return ret
}
