package bootstrap

import (
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/zipfx/zipfx/internal/archive/compress"
	"github.com/zipfx/zipfx/internal/archive/iso"
	"github.com/zipfx/zipfx/internal/archive/rar"
	"github.com/zipfx/zipfx/internal/archive/sevenzip"
	"github.com/zipfx/zipfx/internal/archive/tar"
	"github.com/zipfx/zipfx/internal/archive/tool"
	"github.com/zipfx/zipfx/internal/archive/zip"
	"github.com/zipfx/zipfx/internal/bus"
	"github.com/zipfx/zipfx/internal/conf"
	"github.com/zipfx/zipfx/internal/op"
	"github.com/zipfx/zipfx/pkg/utils"
)

type providerFactory struct {
	name string
	new  func(bus.Publisher) tool.Service
}

// providers is the static provider list. Order decides which provider wins
// when two of them claim the same format.
var providers = []providerFactory{
	{"zip", func(p bus.Publisher) tool.Service { return zip.New(p) }},
	{"tar", func(p bus.Publisher) tool.Service { return tar.New(p) }},
	{"7z", func(p bus.Publisher) tool.Service { return sevenzip.New(p) }},
	{"rar", func(p bus.Publisher) tool.Service { return rar.New(p) }},
	{"iso", func(p bus.Publisher) tool.Service { return iso.New(p) }},
	{"compress", func(p bus.Publisher) tool.Service { return compress.New(p) }},
}

// InitArchiveTools builds the provider registry. A provider that panics
// while being constructed is left out instead of taking the process down.
func InitArchiveTools(publisher bus.Publisher) *tool.Registry {
	disabled := make(map[string]struct{})
	if conf.Conf != nil {
		for _, name := range conf.Conf.DisabledProviders {
			disabled[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
		}
	}
	services := make([]tool.Service, 0, len(providers))
	for i, f := range providers {
		var s tool.Service
		safeCall(f.name, i, func() {
			s = f.new(publisher)
		})
		if s == nil {
			continue
		}
		if _, ok := disabled[s.Name()]; ok {
			log.Infof("archive provider %s is disabled", s.Name())
			s.SetEnabled(false)
		}
		services = append(services, s)
	}
	r := tool.NewRegistry(services...)
	utils.Log.Infof("archive read formats: %s", strings.Join(r.SupportedReadFormats(), ", "))
	utils.Log.Infof("archive write formats: %s", strings.Join(r.SupportedWriteFormats(), ", "))
	return r
}

// InitCoordinator wires the registry and the bus into an operation
// coordinator configured from conf.Conf.
func InitCoordinator(publisher bus.Publisher) *op.Coordinator {
	return op.New(InitArchiveTools(publisher), publisher, op.OptionsFromConfig(conf.Conf))
}
