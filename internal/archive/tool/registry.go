package tool

import (
	"context"
	"fmt"
	"os"
	stdpath "path"
	"path/filepath"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/mholt/archives"
	"github.com/pkg/errors"
	"github.com/zipfx/zipfx/internal/errs"
)

var aliases = map[string]string{
	"tgz":  "tar.gz",
	"tbz":  "tar.bz2",
	"tbz2": "tar.bz2",
	"txz":  "tar.xz",
	"tzst": "tar.zst",
}

// Registry maps format tags to the providers able to read or write them.
// It is built once and never mutated afterwards, lookups need no locking.
// Providers switched off through SetEnabled are skipped at lookup time.
type Registry struct {
	providers []Service
	readers   map[string][]ReadService
	writers   map[string][]WriteService
	// first volume suffix of split archives -> format, e.g. "7z.001" -> "7z"
	multipart map[string]string
}

func NewRegistry(providers ...Service) *Registry {
	r := &Registry{
		readers:   make(map[string][]ReadService),
		writers:   make(map[string][]WriteService),
		multipart: make(map[string]string),
	}
	for _, p := range providers {
		if p == nil {
			continue
		}
		r.providers = append(r.providers, p)
		if rs, ok := p.(ReadService); ok {
			for _, f := range rs.SupportedReadFormats() {
				f = normalizeFormat(f)
				r.readers[f] = append(r.readers[f], rs)
			}
		}
		if ws, ok := p.(WriteService); ok {
			for _, f := range ws.SupportedWriteFormats() {
				f = normalizeFormat(f)
				r.writers[f] = append(r.writers[f], ws)
			}
		}
		if ms, ok := p.(MultipartService); ok {
			for _, ext := range ms.AcceptedMultipartExtensions() {
				first := normalizeFormat(fmt.Sprintf(ext, 1))
				format := normalizeFormat(strings.SplitN(strings.TrimPrefix(ext, "."), ".", 2)[0])
				r.multipart[first] = format
			}
		}
	}
	return r
}

func normalizeFormat(f string) string {
	return strings.ToLower(strings.TrimPrefix(f, "."))
}

func (r *Registry) Providers() []Service {
	return append([]Service(nil), r.providers...)
}

// Provider returns the provider registered under name, enabled or not.
func (r *Registry) Provider(name string) (Service, bool) {
	for _, p := range r.providers {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

func (r *Registry) ReadProviders() []ReadService {
	var ret []ReadService
	for _, p := range r.providers {
		if rs, ok := p.(ReadService); ok && rs.IsEnabled() {
			ret = append(ret, rs)
		}
	}
	return ret
}

func (r *Registry) WriteProviders() []WriteService {
	var ret []WriteService
	for _, p := range r.providers {
		if ws, ok := p.(WriteService); ok && ws.IsEnabled() {
			ret = append(ret, ws)
		}
	}
	return ret
}

// candidates returns the dotted suffixes of the file name, longest first.
func candidates(path string) []string {
	name := strings.ToLower(stdpath.Base(filepath.ToSlash(path)))
	parts := strings.Split(name, ".")
	var ret []string
	for i := 1; i < len(parts); i++ {
		suffix := strings.Join(parts[i:], ".")
		if alias, ok := aliases[suffix]; ok {
			suffix = alias
		}
		ret = append(ret, suffix)
	}
	return ret
}

func (r *Registry) resolve(suffix string) string {
	if f, ok := r.multipart[suffix]; ok {
		return f
	}
	return suffix
}

func (r *Registry) ReadServiceForFormat(format string) (ReadService, bool) {
	for _, rs := range r.readers[normalizeFormat(format)] {
		if rs.IsEnabled() {
			return rs, true
		}
	}
	return nil, false
}

func (r *Registry) WriteServiceForFormat(format string) (WriteService, bool) {
	for _, ws := range r.writers[normalizeFormat(format)] {
		if ws.IsEnabled() {
			return ws, true
		}
	}
	return nil, false
}

// ReadServiceFor looks the provider up by the longest matching suffix, so
// "a.tar.gz" goes to the tar.gz provider before the plain gz one.
func (r *Registry) ReadServiceFor(path string) (ReadService, bool) {
	for _, s := range candidates(path) {
		if rs, ok := r.ReadServiceForFormat(r.resolve(s)); ok {
			return rs, true
		}
	}
	return nil, false
}

func (r *Registry) WriteServiceFor(path string) (WriteService, bool) {
	for _, s := range candidates(path) {
		if ws, ok := r.WriteServiceForFormat(r.resolve(s)); ok {
			return ws, true
		}
	}
	return nil, false
}

// FormatOf returns the format tag an enabled provider recognizes for path.
func (r *Registry) FormatOf(path string) (string, error) {
	for _, s := range candidates(path) {
		f := r.resolve(s)
		if _, ok := r.ReadServiceForFormat(f); ok {
			return f, nil
		}
		if _, ok := r.WriteServiceForFormat(f); ok {
			return f, nil
		}
	}
	return "", errs.UnknownArchiveFormat
}

// Identify sniffs the content of path when its name does not tell the
// format, e.g. a zip saved without extension.
func (r *Registry) Identify(ctx context.Context, path string) (string, error) {
	if f, err := r.FormatOf(path); err == nil {
		return f, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer file.Close()
	format, _, err := archives.Identify(ctx, "", file)
	if err != nil {
		if errors.Is(err, archives.NoMatch) {
			return "", errs.UnknownArchiveFormat
		}
		return "", errors.WithStack(err)
	}
	tag := r.resolve(normalizeFormat(format.Extension()))
	if alias, ok := aliases[tag]; ok {
		tag = alias
	}
	if _, ok := r.ReadServiceForFormat(tag); !ok {
		return "", errs.UnknownArchiveFormat
	}
	return tag, nil
}

func (r *Registry) SupportedReadFormats() []string {
	set := mapset.NewThreadUnsafeSet[string]()
	for f := range r.readers {
		if _, ok := r.ReadServiceForFormat(f); ok {
			set.Add(f)
		}
	}
	ret := set.ToSlice()
	sort.Strings(ret)
	return ret
}

func (r *Registry) SupportedWriteFormats() []string {
	set := mapset.NewThreadUnsafeSet[string]()
	for f := range r.writers {
		if _, ok := r.WriteServiceForFormat(f); ok {
			set.Add(f)
		}
	}
	ret := set.ToSlice()
	sort.Strings(ret)
	return ret
}

// CompressorArchives is the union over enabled providers.
func (r *Registry) CompressorArchives() mapset.Set[string] {
	set := mapset.NewSet[string]()
	for _, p := range r.providers {
		if !p.IsEnabled() || p.CompressorArchives() == nil {
			continue
		}
		for _, f := range p.CompressorArchives().ToSlice() {
			set.Add(normalizeFormat(f))
		}
	}
	return set
}

func (r *Registry) IsCompressor(format string) bool {
	return r.CompressorArchives().Contains(normalizeFormat(format))
}
