package recent

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// List is the most recently used archives, newest first, persisted as one
// path per line.
type List struct {
	fs    afero.Fs
	path  string
	limit int
	mu    sync.Mutex
}

func New(fs afero.Fs, path string, limit int) *List {
	if limit <= 0 {
		limit = 10
	}
	return &List{fs: fs, path: path, limit: limit}
}

// Load returns the stored paths. A missing file is an empty list.
func (l *List) Load() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()
}

func (l *List) load() ([]string, error) {
	data, err := afero.ReadFile(l.fs, l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}
	var ret []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			ret = append(ret, line)
		}
	}
	return ret, errors.WithStack(sc.Err())
}

func (l *List) save(paths []string) error {
	if err := l.fs.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return errors.WithStack(err)
	}
	var buf bytes.Buffer
	for _, p := range paths {
		buf.WriteString(p)
		buf.WriteByte('\n')
	}
	return errors.WithStack(afero.WriteFile(l.fs, l.path, buf.Bytes(), 0644))
}

// Add puts path on top. An existing occurrence is moved instead of
// duplicated and the oldest paths beyond the limit are dropped.
func (l *List) Add(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	paths, err := l.load()
	if err != nil {
		return err
	}
	ret := make([]string, 0, len(paths)+1)
	ret = append(ret, path)
	for _, p := range paths {
		if p != path {
			ret = append(ret, p)
		}
	}
	if len(ret) > l.limit {
		ret = ret[:l.limit]
	}
	return l.save(ret)
}

func (l *List) Remove(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	paths, err := l.load()
	if err != nil {
		return err
	}
	ret := paths[:0]
	for _, p := range paths {
		if p != path {
			ret = append(ret, p)
		}
	}
	return l.save(ret)
}

func (l *List) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.save(nil)
}
