package recent

import (
	"fmt"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddMovesDuplicatesToTop(t *testing.T) {
	l := New(afero.NewMemMapFs(), "/data/recent.txt", 10)
	paths, err := l.Load()
	require.NoError(t, err)
	assert.Empty(t, paths)

	require.NoError(t, l.Add("/a.zip"))
	require.NoError(t, l.Add("/b.7z"))
	require.NoError(t, l.Add("/a.zip"))

	paths, err = l.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"/a.zip", "/b.7z"}, paths)
}

func TestAddEvictsOldest(t *testing.T) {
	l := New(afero.NewMemMapFs(), "/recent.txt", 3)
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Add(fmt.Sprintf("/%d.zip", i)))
	}
	paths, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"/4.zip", "/3.zip", "/2.zip"}, paths)
}

func TestRemoveAndClear(t *testing.T) {
	fs := afero.NewMemMapFs()
	l := New(fs, "/recent.txt", 0)
	require.NoError(t, l.Add("/x.tar"))
	require.NoError(t, l.Add("/y.tar"))
	require.NoError(t, l.Remove("/x.tar"))

	data, err := afero.ReadFile(fs, "/recent.txt")
	require.NoError(t, err)
	assert.Equal(t, "/y.tar\n", string(data))

	require.NoError(t, l.Clear())
	paths, err := l.Load()
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestLoadSkipsBlankLines(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/recent.txt", []byte("\n/a.zip\n  \n/b.zip\n"), 0644))
	paths, err := New(fs, "/recent.txt", 10).Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"/a.zip", "/b.zip"}, paths)
}
