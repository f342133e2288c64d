package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zipfx/zipfx/internal/model"
)

func file(name string) *model.FileInfo {
	return &model.FileInfo{Level: LevelOf(name), FileName: Clean(name), RawSize: 1}
}

func keys(entries []*model.FileInfo) map[model.EntryKey]*model.FileInfo {
	m := make(map[model.EntryKey]*model.FileInfo)
	for _, e := range entries {
		m[e.Key()] = e
	}
	return m
}

func TestSynthesizeAddsAncestors(t *testing.T) {
	out := Synthesize([]*model.FileInfo{file("a/b/c")})
	m := keys(out)
	require.Len(t, out, 3)

	a, ok := m[model.EntryKey{Level: 0, FileName: "a"}]
	require.True(t, ok)
	assert.True(t, a.IsFolder)
	assert.Equal(t, int64(0), a.RawSize)

	ab, ok := m[model.EntryKey{Level: 1, FileName: "a/b"}]
	require.True(t, ok)
	assert.True(t, ab.IsFolder)

	c := m[model.EntryKey{Level: 2, FileName: "a/b/c"}]
	require.NotNil(t, c)
	assert.False(t, c.IsFolder)
}

func TestSynthesizeNoDuplicates(t *testing.T) {
	in := []*model.FileInfo{
		file("a/b/c"),
		file("a/b/d"),
		{Level: 0, FileName: "a", IsFolder: true},
		file("a/b/c"),
		file("x"),
	}
	out := Synthesize(in)
	assert.Len(t, out, 5)
	assert.Len(t, keys(out), len(out))
}

func TestSynthesizeIsIdempotent(t *testing.T) {
	once := Synthesize([]*model.FileInfo{file("root/level1a/file.txt"), file("root/level1b/x/y.txt")})
	twice := Synthesize(once)
	assert.Equal(t, len(once), len(twice))
	assert.Equal(t, keys(once), keys(twice))
}

func TestReindexOrdersAndNumbers(t *testing.T) {
	out := Normalize([]*model.FileInfo{file("b/file10"), file("b/file2"), file("a.txt")})
	names := make([]string, len(out))
	for i, f := range out {
		assert.Equal(t, i, f.Index)
		names[i] = f.FileName
	}
	assert.Equal(t, []string{"b", "a.txt", "b/file2", "b/file10"}, names)
}

func TestPathHelpers(t *testing.T) {
	assert.Equal(t, "a/b", Clean("./a/b/"))
	assert.Equal(t, "a/b", Clean("a\\b"))
	assert.Equal(t, 2, LevelOf("a/b/c"))
	assert.Equal(t, 0, LevelOf("a"))
	assert.Equal(t, "a/b", Parent("a/b/c"))
	assert.Equal(t, "", Parent("a"))
	assert.Equal(t, "c", Base("a/b/c"))
	assert.Equal(t, "x/c", Join("x", "c"))
	assert.Equal(t, "c", Join("", "c"))
	assert.True(t, IsUnder("a/b/c", "a"))
	assert.False(t, IsUnder("ab/c", "a"))
	assert.True(t, IsUnder("anything", ""))
}

func TestChildrenAndSubtree(t *testing.T) {
	all := Normalize([]*model.FileInfo{file("a/b/c"), file("a/d"), file("e")})
	kids := Children(all, 1, "a")
	require.Len(t, kids, 2)

	folder := keys(all)[model.EntryKey{Level: 0, FileName: "a"}]
	sub := Subtree(all, folder)
	assert.Len(t, sub, 4)
	assert.Len(t, Subtree(all, file("e")), 1)
	assert.Len(t, Under(all, "a"), 3)
	assert.Len(t, Under(all, ""), len(all))
}
