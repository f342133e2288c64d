package op

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/zipfx/zipfx/internal/archive/tool"
	"github.com/zipfx/zipfx/internal/archive/tree"
	"github.com/zipfx/zipfx/internal/errs"
	"github.com/zipfx/zipfx/internal/model"
	"github.com/zipfx/zipfx/internal/session"
	"github.com/zipfx/zipfx/pkg/utils"
	"golang.org/x/sync/errgroup"
)

// ExtractReport is the outcome of a best effort extraction.
type ExtractReport struct {
	Succeeded []string          `json:"succeeded"`
	Failed    map[string]string `json:"failed,omitempty"`
}

// Degraded reports whether some entries could not be extracted.
func (r *ExtractReport) Degraded() bool {
	return len(r.Failed) > 0
}

// ExtractEntry extracts entry into the directory destDir. A folder is
// extracted with everything below it.
func (c *Coordinator) ExtractEntry(ctx context.Context, s *session.Session, entry *model.FileInfo, destDir string) *Task[*ExtractReport] {
	return submit(c, ctx, s.ID, job[*ExtractReport]{
		name:  "Extract",
		class: classRead,
		s:     s,
		fn: func(ctx context.Context) (*ExtractReport, error) {
			if entry == nil {
				return nil, errors.WithStack(errs.NoSelection)
			}
			if !entry.IsFolder {
				target, ok := utils.SafeJoin(destDir, tree.Base(entry.FileName))
				if !ok {
					return nil, errors.Wrap(errs.UnsafePath, entry.FileName)
				}
				if err := s.Reader.ExtractFile(ctx, s.ID, target, s.Info, entry); err != nil {
					return nil, err
				}
				return &ExtractReport{Succeeded: []string{entry.FileName}}, nil
			}
			// keep the folder itself, relative to its parent
			parent := tree.Parent(entry.FileName)
			entries := tree.Subtree(s.Files(), entry)
			return c.finishExtract(s, c.extractEach(ctx, s, entries, destDir, parent)), nil
		},
	})
}

// ExtractAll extracts every entry of s below destDir. Failures of single
// entries are collected in the report and do not stop the others.
func (c *Coordinator) ExtractAll(ctx context.Context, s *session.Session, destDir string) *Task[*ExtractReport] {
	return submit(c, ctx, s.ID, job[*ExtractReport]{
		name:  "Extract all",
		class: classRead,
		s:     s,
		fn: func(ctx context.Context) (*ExtractReport, error) {
			return c.finishExtract(s, c.extractEach(ctx, s, s.Files(), destDir, "")), nil
		},
	})
}

// finishExtract publishes a warning for a partially failed extraction.
func (c *Coordinator) finishExtract(s *session.Session, r *ExtractReport) *ExtractReport {
	if r.Degraded() {
		msg := fmt.Sprintf("%d of %d entries could not be extracted", len(r.Failed), len(r.Failed)+len(r.Succeeded))
		c.publish(model.NewWarningMessage(s.ID, "Extract", "Extraction incomplete", msg, nil, s.Info))
	}
	return r
}

func (c *Coordinator) extractEach(ctx context.Context, s *session.Session, entries []*model.FileInfo, destDir, strip string) *ExtractReport {
	report := &ExtractReport{Failed: make(map[string]string)}
	var mu sync.Mutex
	done := 0
	record := func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		done++
		if err != nil {
			log.Warnf("extract %s from %s: %v", name, s.Info.Path, err)
			report.Failed[name] = err.Error()
		} else {
			report.Succeeded = append(report.Succeeded, name)
		}
	}
	prog := newProgress(c.publisher, s.ID)
	total := float64(len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Workers)
	for _, f := range entries {
		rel := f.FileName
		if strip != "" {
			rel = rel[len(strip)+1:]
		}
		target, ok := utils.SafeJoin(destDir, rel)
		if !ok {
			record(f.FileName, errors.Wrap(errs.UnsafePath, f.FileName))
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				record(f.FileName, err)
				return nil
			}
			var err error
			if f.IsFolder {
				err = tool.MakeFolder(target)
			} else {
				err = s.Reader.ExtractFile(gctx, s.ID, target, s.Info, f)
			}
			record(f.FileName, err)
			mu.Lock()
			n := done
			mu.Unlock()
			prog.update("Extracted "+f.FileName, float64(n), total)
			return nil
		})
	}
	_ = g.Wait()
	return report
}

// TestIntegrity asks the provider to verify the whole archive.
func (c *Coordinator) TestIntegrity(ctx context.Context, s *session.Session) *Task[bool] {
	return submit(c, ctx, s.ID, job[bool]{
		name:  "Test",
		class: classRead,
		s:     s,
		fn: func(ctx context.Context) (bool, error) {
			if err := s.Reader.TestArchive(ctx, s.ID, s.Info); err != nil {
				return false, err
			}
			return true, nil
		},
	})
}
