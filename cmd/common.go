package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/zipfx/zipfx/cmd/flags"
	"github.com/zipfx/zipfx/internal/bootstrap"
	"github.com/zipfx/zipfx/internal/bus"
	"github.com/zipfx/zipfx/internal/conf"
	"github.com/zipfx/zipfx/internal/model"
	"github.com/zipfx/zipfx/internal/op"
	"github.com/zipfx/zipfx/internal/recent"
	"github.com/zipfx/zipfx/internal/session"
)

func Init() {
	bootstrap.InitConfig()
	bootstrap.InitLog()
	bootstrap.InitUpgradePatch()
	bootstrap.InitStreamLimit()
}

func recentList() *recent.List {
	return recent.New(afero.NewOsFs(), filepath.Join(flags.DataDir, "recent.txt"), conf.Conf.RecentLimit)
}

// env is what a one-shot command works with.
type env struct {
	bus         *bus.Bus
	coordinator *op.Coordinator
	recent      *recent.List
}

func newEnv() *env {
	Init()
	b := bus.New()
	// warnings and errors go to the terminal, progress only in debug mode
	b.Subscribe(bus.Listen(func(msg model.Message) {
		switch m := msg.(type) {
		case model.ProgressMessage:
			if p := m.Percent(); p >= 0 {
				log.Debugf("%s %.0f%%", m.GetMessage(), p)
			}
		case model.ErrorMessage:
			if m.GetType() == model.MsgWarning {
				fmt.Fprintf(os.Stderr, "warning: %s: %s\n", m.Header(), m.GetMessage())
			}
		}
	}))
	return &env{bus: b, coordinator: bootstrap.InitCoordinator(b), recent: recentList()}
}

func (e *env) close() {
	e.coordinator.Wait()
	e.bus.Close()
}

func (e *env) open(path, password string) (*session.Session, error) {
	info := model.NewArchiveInfo(path)
	if password != "" {
		info.SetProperty(model.PropPassword, password)
	}
	s, err := e.coordinator.OpenAs(context.Background(), info).Wait(context.Background())
	if err != nil {
		return nil, err
	}
	if err := e.recent.Add(s.Info.Path); err != nil {
		log.Warnf("failed to record recent archive: %v", err)
	}
	return s, nil
}

func wait[T any](task *op.Task[T]) (T, error) {
	return task.Wait(context.Background())
}
