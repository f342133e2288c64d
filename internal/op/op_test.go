package op

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zipfx/zipfx/internal/archive/compress"
	"github.com/zipfx/zipfx/internal/archive/iso"
	"github.com/zipfx/zipfx/internal/archive/tar"
	"github.com/zipfx/zipfx/internal/archive/tool"
	"github.com/zipfx/zipfx/internal/archive/zip"
	"github.com/zipfx/zipfx/internal/bus"
	"github.com/zipfx/zipfx/internal/errs"
	"github.com/zipfx/zipfx/internal/model"
	"github.com/zipfx/zipfx/internal/session"
)

// flaky is a zip provider whose writes can be made to fail after they
// already damaged the archive.
type flaky struct {
	*zip.Zip
	failAdd    bool
	failDelete bool
}

func damage(path string) {
	_ = os.WriteFile(path, []byte("half written garbage"), 0644)
}

func (f *flaky) AddFile(ctx context.Context, sessionID string, info *model.ArchiveInfo, files ...*model.FileInfo) error {
	if f.failAdd {
		damage(info.Path)
		return errors.New("injected add failure")
	}
	return f.Zip.AddFile(ctx, sessionID, info, files...)
}

func (f *flaky) DeleteFile(ctx context.Context, sessionID string, info *model.ArchiveInfo, file *model.FileInfo) error {
	if f.failDelete {
		damage(info.Path)
		return errors.New("injected delete failure")
	}
	return f.Zip.DeleteFile(ctx, sessionID, info, file)
}

type recorder struct {
	mu   sync.Mutex
	msgs []model.Message
}

func (r *recorder) handle(msg model.Message) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

func (r *recorder) has(typ model.MessageType) bool {
	return r.count(typ) > 0
}

func (r *recorder) count(typ model.MessageType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.msgs {
		if m.GetType() == typ {
			n++
		}
	}
	return n
}

type env struct {
	c     *Coordinator
	b     *bus.Bus
	rec   *recorder
	zip   *flaky
	dir   string
	temp  string
	files int
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWorkers(t, 2)
}

func newEnvWorkers(t *testing.T, workers int) *env {
	t.Helper()
	b := bus.New()
	t.Cleanup(b.Close)
	e := &env{b: b, rec: &recorder{}, dir: t.TempDir()}
	b.Subscribe(bus.Listen(e.rec.handle))
	e.temp = filepath.Join(e.dir, "tmp")
	e.zip = &flaky{Zip: zip.New(b)}
	registry := tool.NewRegistry(e.zip, tar.New(b), compress.New(b), iso.New(b))
	e.c = New(registry, b, Options{Workers: workers, TempDir: e.temp})
	return e
}

// source writes a local file to stage into an archive.
func (e *env) source(t *testing.T, content string) string {
	t.Helper()
	e.files++
	path := filepath.Join(e.dir, "src", fmt.Sprintf("f%d", e.files))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func wait[T any](t *testing.T, task *Task[T]) (T, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	v, err := task.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateDone, task.State())
	return v, err
}

func must[T any](t *testing.T, task *Task[T]) T {
	t.Helper()
	v, err := wait(t, task)
	require.NoError(t, err)
	return v
}

func (e *env) noBackups(t *testing.T) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(e.temp, "backup", "*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func (e *env) create(t *testing.T, name string, files ...*model.FileInfo) *session.Session {
	t.Helper()
	return must(t, e.c.Create(context.Background(), model.NewArchiveInfo(filepath.Join(e.dir, name)), files...))
}

func TestScenarioAddSynthesizesHierarchy(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := e.create(t, "empty.zip")
	assert.Equal(t, 0, s.Len())

	must(t, e.c.AddEntries(ctx, s, StageFile(e.source(t, "payload"), "root/level1a/file.txt")))

	root, ok := s.Find(0, "root")
	require.True(t, ok)
	assert.True(t, root.IsFolder)
	mid, ok := s.Find(1, "root/level1a")
	require.True(t, ok)
	assert.True(t, mid.IsFolder)
	file, ok := s.Find(2, "root/level1a/file.txt")
	require.True(t, ok)
	assert.False(t, file.IsFolder)
	assert.Equal(t, 3, s.Len())
	e.noBackups(t)
}

func TestScenarioMoveAcrossFolders(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := e.create(t, "b.zip", &model.FileInfo{Level: 2, FileName: "level1c/level1c1/level2b", IsFolder: true})
	must(t, e.c.AddEntries(ctx, s,
		StageFile(e.source(t, "1"), "level1c/one.txt"),
		StageFile(e.source(t, "2"), "level1c/two.txt"),
		StageFile(e.source(t, "3"), "level1c/three.txt"),
	))
	before := s.Len()
	src, ok := s.FindPath("level1c/two.txt")
	require.True(t, ok)

	must(t, e.c.MoveEntry(ctx, s, src, "level1c/level1c1/level2b"))

	_, ok = s.FindPath("level1c/two.txt")
	assert.False(t, ok)
	count := 0
	for _, f := range s.Files() {
		if f.FileName == "level1c/level1c1/level2b/two.txt" {
			count++
			assert.Equal(t, 3, f.Level)
		}
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, before, s.Len())
	assert.False(t, s.Migration().Active())
	e.noBackups(t)
}

func TestCopyAddsExactlyOneEntry(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := e.create(t, "c.zip",
		StageFile(e.source(t, "a"), "docs/a.txt"),
		&model.FileInfo{FileName: "archive", IsFolder: true},
	)
	before := s.Len()
	src, _ := s.FindPath("docs/a.txt")
	require.NoError(t, e.c.StartCopy(s, src))
	must(t, e.c.Paste(ctx, s, "archive"))

	assert.Equal(t, before+1, s.Len())
	_, ok := s.FindPath("docs/a.txt")
	assert.True(t, ok)
	_, ok = s.FindPath("archive/a.txt")
	assert.True(t, ok)
	assert.False(t, s.Migration().Active())
}

func TestFailedMoveRestoresArchive(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := e.create(t, "m.zip",
		StageFile(e.source(t, "x"), "from/x.txt"),
		&model.FileInfo{FileName: "to", IsFolder: true},
	)
	original, err := os.ReadFile(s.Info.Path)
	require.NoError(t, err)
	before := s.Len()
	src, _ := s.FindPath("from/x.txt")

	e.zip.failDelete = true
	_, err = wait(t, e.c.MoveEntry(ctx, s, src, "to"))
	require.Error(t, err)

	after, err := os.ReadFile(s.Info.Path)
	require.NoError(t, err)
	assert.Equal(t, original, after)
	assert.Equal(t, before, s.Len())
	_, ok := s.FindPath("to/x.txt")
	assert.False(t, ok)
	assert.False(t, s.Migration().Active())
	e.noBackups(t)
	require.Eventually(t, func() bool { return e.rec.has(model.MsgError) }, 5*time.Second, 10*time.Millisecond)
}

func TestFailedAddIsByteIdentical(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := e.create(t, "r.zip", StageFile(e.source(t, "keep"), "keep.txt"))
	original, err := os.ReadFile(s.Info.Path)
	require.NoError(t, err)

	e.zip.failAdd = true
	_, err = wait(t, e.c.AddEntries(ctx, s, StageFile(e.source(t, "new"), "new.txt")))
	require.Error(t, err)

	after, err := os.ReadFile(s.Info.Path)
	require.NoError(t, err)
	assert.Equal(t, original, after)
	assert.Equal(t, 1, s.Len())
}

func TestFailedCopyIsByteIdentical(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := e.create(t, "fc.zip",
		StageFile(e.source(t, "a"), "from/a.txt"),
		&model.FileInfo{FileName: "to", IsFolder: true},
	)
	original, err := os.ReadFile(s.Info.Path)
	require.NoError(t, err)
	before := s.Len()
	src, _ := s.FindPath("from/a.txt")
	require.NoError(t, e.c.StartCopy(s, src))

	e.zip.failAdd = true
	_, err = wait(t, e.c.Paste(ctx, s, "to"))
	require.Error(t, err)

	after, err := os.ReadFile(s.Info.Path)
	require.NoError(t, err)
	assert.Equal(t, original, after)
	assert.Equal(t, before, s.Len())
	_, ok := s.FindPath("to/a.txt")
	assert.False(t, ok)
	assert.False(t, s.Migration().Active())
	e.noBackups(t)
}

func TestConcurrentMutationsAreSerialized(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := e.create(t, "cc.zip", StageFile(e.source(t, "base"), "base.txt"))

	var tasks []*Task[struct{}]
	for i := 0; i < 4; i++ {
		tasks = append(tasks, e.c.AddEntries(ctx, s, StageFile(e.source(t, fmt.Sprint(i)), fmt.Sprintf("dir%d/f.txt", i))))
	}
	for _, task := range tasks {
		must(t, task)
	}
	for i := 0; i < 4; i++ {
		_, ok := s.FindPath(fmt.Sprintf("dir%d/f.txt", i))
		assert.True(t, ok, "dir%d/f.txt", i)
	}
	assert.Equal(t, 9, s.Len())
	e.noBackups(t)
}

func TestReintegrateWithSaturatedPool(t *testing.T) {
	e := newEnvWorkers(t, 1)
	ctx := context.Background()
	inner := filepath.Join(e.dir, "build", "inner.tar")
	require.NoError(t, os.MkdirAll(filepath.Dir(inner), 0755))
	require.NoError(t, tar.New(nil).CreateArchive(ctx, "setup", model.NewArchiveInfo(inner), StageFile(e.source(t, "t"), "t.txt")))
	parent := e.create(t, "outer.zip", StageFile(inner, "inner.tar"))
	entry, _ := parent.FindPath("inner.tar")
	child := must(t, e.c.OpenNested(ctx, parent, entry))

	// occupy the only slot so both tasks queue up behind it
	require.NoError(t, e.c.sem.Acquire(ctx, 1))
	reintegrate := e.c.Reintegrate(ctx, child)
	add := e.c.AddEntries(ctx, child, StageFile(e.source(t, "u"), "u.txt"))
	time.Sleep(50 * time.Millisecond)
	e.c.sem.Release(1)

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := reintegrate.Wait(waitCtx)
	require.NoError(t, err)
	_, err = add.Wait(waitCtx)
	require.NoError(t, err)
}

func TestSaveAsWhileBusy(t *testing.T) {
	e := newEnv(t)
	s := e.create(t, "busy.zip", StageFile(e.source(t, "x"), "x.txt"))
	s.Lock()
	err := e.c.SaveAs(s, filepath.Join(e.dir, "copy.zip"))
	s.Unlock()
	assert.ErrorIs(t, err, errs.SessionBusy)
	assert.NoFileExists(t, filepath.Join(e.dir, "copy.zip"))
}

func TestProviderFailurePublishesOneError(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := e.create(t, "broken.zip", StageFile(e.source(t, "x"), "x.txt"))
	require.NoError(t, os.WriteFile(s.Info.Path, []byte("not a zip any more"), 0644))

	_, err := wait(t, e.c.TestIntegrity(ctx, s))
	require.Error(t, err)
	require.Eventually(t, func() bool { return e.rec.has(model.MsgWarning) }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, e.rec.count(model.MsgError))
}

func TestISOThroughCoordinator(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := e.create(t, "disk.iso",
		StageFile(e.source(t, "a"), "A.TXT"),
		StageFile(e.source(t, "c"), "DIR/C.TXT"),
	)
	_, ok := s.FindPath("a.txt")
	require.True(t, ok)

	must(t, e.c.AddEntries(ctx, s, StageFile(e.source(t, "b"), "B.TXT")))
	b, ok := s.FindPath("b.txt")
	require.True(t, ok)

	must(t, e.c.CopyEntry(ctx, s, b, "dir"))
	_, ok = s.FindPath("dir/b.txt")
	assert.True(t, ok)
	_, err := wait(t, e.c.CopyEntry(ctx, s, b, "dir"))
	assert.ErrorIs(t, err, errs.ObjectExists)

	a, _ := s.FindPath("a.txt")
	must(t, e.c.DeleteEntry(ctx, s, a))
	_, ok = s.FindPath("a.txt")
	assert.False(t, ok)
	e.noBackups(t)
}

func TestTarGzThroughCoordinator(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := e.create(t, "bundle.tar.gz", StageFile(e.source(t, "a"), "src/a.txt"))
	require.False(t, s.IsCompressor())
	assert.Equal(t, "tar.gz", s.Info.Format)

	must(t, e.c.AddEntries(ctx, s, StageFile(e.source(t, "b"), "src/b.txt")))
	b, ok := s.FindPath("src/b.txt")
	require.True(t, ok)
	must(t, e.c.MoveEntry(ctx, s, b, ""))
	_, ok = s.FindPath("b.txt")
	assert.True(t, ok)
	_, ok = s.FindPath("src/b.txt")
	assert.False(t, ok)

	src, _ := s.FindPath("src")
	must(t, e.c.DeleteEntry(ctx, s, src))
	_, ok = s.FindPath("src/a.txt")
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())
	e.noBackups(t)
}

func TestCopyValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := e.create(t, "v.zip", StageFile(e.source(t, "a"), "dir/a.txt"))
	src, _ := s.FindPath("dir/a.txt")
	dir, _ := s.FindPath("dir")

	_, err := wait(t, e.c.CopyEntry(ctx, s, src, "dir"))
	assert.ErrorIs(t, err, errs.SameLocation)
	assert.True(t, errs.IsCancellation(err))

	_, err = wait(t, e.c.CopyEntry(ctx, s, dir, ""))
	assert.ErrorIs(t, err, errs.FolderNotSupported)
	assert.ErrorIs(t, e.c.StartMove(s, dir), errs.FolderNotSupported)

	_, err = wait(t, e.c.Paste(ctx, s, ""))
	assert.ErrorIs(t, err, errs.NoSelection)

	require.NoError(t, e.c.StartCopy(s, src))
	assert.ErrorIs(t, e.c.StartMove(s, src), errs.MigrationActive)
	_, err = wait(t, e.c.Paste(ctx, s, "dir"))
	assert.ErrorIs(t, err, errs.SameLocation)
	assert.False(t, s.Migration().Active())
	require.Eventually(t, func() bool { return e.rec.has(model.MsgWarning) }, 5*time.Second, 10*time.Millisecond)
}

func TestCompressorSessionRejectsMigration(t *testing.T) {
	e := newEnv(t)
	s := e.create(t, "notes.txt.gz", StageFile(e.source(t, "notes"), "notes.txt"))
	require.True(t, s.IsCompressor())
	require.Equal(t, 1, s.Len())
	entry := s.Files()[0]

	assert.ErrorIs(t, e.c.StartCopy(s, entry), errs.CompressorArchive)
	assert.ErrorIs(t, e.c.StartMove(s, entry), errs.CompressorArchive)
	assert.ErrorIs(t, e.c.StartDelete(s, entry), errs.CompressorArchive)
	assert.Equal(t, session.MigrationNone, s.Migration().Type)

	_, err := wait(t, e.c.DeleteEntry(context.Background(), s, entry))
	assert.ErrorIs(t, err, errs.CompressorArchive)
}

func TestDeleteThroughMigration(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := e.create(t, "d.tar",
		StageFile(e.source(t, "a"), "a/one.txt"),
		StageFile(e.source(t, "b"), "b.txt"),
	)
	a, _ := s.FindPath("a")
	require.NoError(t, e.c.StartDelete(s, a))
	must(t, e.c.ConfirmDelete(ctx, s))

	_, ok := s.FindPath("a/one.txt")
	assert.False(t, ok)
	_, ok = s.FindPath("b.txt")
	assert.True(t, ok)
	assert.False(t, s.Migration().Active())
}

func TestExtractAllAndEntry(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := e.create(t, "x.zip",
		StageFile(e.source(t, "1"), "a/b/one.txt"),
		StageFile(e.source(t, "2"), "two.txt"),
	)
	out := filepath.Join(e.dir, "out")
	report := must(t, e.c.ExtractAll(ctx, s, out))
	assert.False(t, report.Degraded())
	assert.Len(t, report.Succeeded, s.Len())
	data, err := os.ReadFile(filepath.Join(out, "a", "b", "one.txt"))
	require.NoError(t, err)
	assert.Equal(t, "1", string(data))

	folder, _ := s.FindPath("a/b")
	single := filepath.Join(e.dir, "single")
	must(t, e.c.ExtractEntry(ctx, s, folder, single))
	assert.FileExists(t, filepath.Join(single, "b", "one.txt"))

	ok := must(t, e.c.TestIntegrity(ctx, s))
	assert.True(t, ok)
}

func TestExtractAllIsBestEffort(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := e.create(t, "y.zip", StageFile(e.source(t, "1"), "real.txt"))
	files := s.Files()
	files = append(files, &model.FileInfo{FileName: "ghost.txt"})
	s.SetFiles(files)

	report := must(t, e.c.ExtractAll(ctx, s, filepath.Join(e.dir, "out")))
	assert.True(t, report.Degraded())
	assert.Contains(t, report.Failed, "ghost.txt")
	assert.Contains(t, report.Succeeded, "real.txt")
}

func TestNestedCompressorRewrap(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	inner := filepath.Join(e.dir, "build", "inner.zip")
	require.NoError(t, os.MkdirAll(filepath.Dir(inner), 0755))
	require.NoError(t, e.zip.Zip.CreateArchive(ctx, "setup", model.NewArchiveInfo(inner), StageFile(e.source(t, "old"), "old.txt")))

	parent := e.create(t, "inner.zip.gz", StageFile(inner, "inner.zip"))
	require.True(t, parent.IsCompressor())
	entry := parent.Files()[0]

	child := must(t, e.c.OpenNested(ctx, parent, entry))
	assert.Equal(t, "zip", child.Info.Format)
	assert.Equal(t, parent.ID, child.ParentID)
	must(t, e.c.AddEntries(ctx, child, StageFile(e.source(t, "new"), "new.txt")))
	must(t, e.c.Reintegrate(ctx, child))
	require.NoError(t, e.c.Close(child, false))
	assert.NoFileExists(t, child.Info.Path)

	again := must(t, e.c.OpenNested(ctx, parent, parent.Files()[0]))
	_, ok := again.FindPath("new.txt")
	assert.True(t, ok)
	_, ok = again.FindPath("old.txt")
	assert.True(t, ok)
}

func TestNestedOrdinaryParent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	inner := filepath.Join(e.dir, "build", "inner.tar")
	require.NoError(t, os.MkdirAll(filepath.Dir(inner), 0755))
	require.NoError(t, tar.New(nil).CreateArchive(ctx, "setup", model.NewArchiveInfo(inner), StageFile(e.source(t, "t"), "t.txt")))

	parent := e.create(t, "outer.zip", StageFile(inner, "pkg/inner.tar"))
	entry, ok := parent.FindPath("pkg/inner.tar")
	require.True(t, ok)
	child := must(t, e.c.OpenNested(ctx, parent, entry))
	must(t, e.c.AddEntries(ctx, child, StageFile(e.source(t, "u"), "u.txt")))
	must(t, e.c.Reintegrate(ctx, child))

	again := must(t, e.c.OpenNested(ctx, parent, entry))
	_, ok = again.FindPath("u.txt")
	assert.True(t, ok)
	_, ok = parent.FindPath("pkg/inner.tar")
	assert.True(t, ok)
	e.noBackups(t)
}

func TestTemporaryArchive(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := must(t, e.c.CreateTemporary(ctx, "zip", StageFile(e.source(t, "x"), "x.txt")))
	require.True(t, s.Temporary)
	path := s.Info.Path
	assert.FileExists(t, path)
	require.NoError(t, e.c.Close(s, false))
	assert.NoFileExists(t, path)
	_, err := e.c.Session(s.ID)
	assert.ErrorIs(t, err, errs.SessionClosed)

	kept := must(t, e.c.CreateTemporary(ctx, "tar", StageFile(e.source(t, "y"), "y.txt")))
	dst := filepath.Join(e.dir, "saved.tar")
	require.NoError(t, e.c.SaveAs(kept, dst))
	assert.False(t, kept.Temporary)
	require.NoError(t, e.c.Close(kept, false))
	assert.FileExists(t, dst)
}

func TestOpenSniffsContent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := e.create(t, "named.zip", StageFile(e.source(t, "z"), "z.txt"))
	plain := filepath.Join(e.dir, "noext")
	require.NoError(t, os.Rename(s.Info.Path, plain))

	opened := must(t, e.c.Open(ctx, plain))
	assert.Equal(t, "zip", opened.Info.Format)
	_, ok := opened.FindPath("z.txt")
	assert.True(t, ok)

	got, err := e.c.Session(opened.ID)
	require.NoError(t, err)
	assert.Same(t, opened, got)
}

func TestTaskWaitHonorsCallerContext(t *testing.T) {
	task := newTask[int]("s", "noop")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := task.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatePending, task.State())

	task.finish(7, nil)
	assert.Equal(t, StateSucceeded, task.State())
	task.close()
	v, err := task.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}
