package v0_2_0

import (
	"strings"
	"time"

	"github.com/zipfx/zipfx/internal/conf"
	"github.com/zipfx/zipfx/pkg/utils"
)

// providers were named after their packages before v0.2.0
var renamed = map[string]string{
	"sevenzip": "7z",
	"gzip":     "compress",
	"gz":       "compress",
	"bzip2":    "compress",
	"xz":       "compress",
	"zstd":     "compress",
	"lz4":      "compress",
	"iso9660":  "iso",
}

// RenameDisabledProviders rewrites old provider names in disabled_providers
// and drops duplicates.
func RenameDisabledProviders() {
	seen := make(map[string]struct{})
	ret := make([]string, 0, len(conf.Conf.DisabledProviders))
	for _, name := range conf.Conf.DisabledProviders {
		name = strings.ToLower(strings.TrimSpace(name))
		if n, ok := renamed[name]; ok {
			utils.Log.Infof("disabled provider %s is now called %s", name, n)
			name = n
		}
		if _, ok := seen[name]; ok || name == "" {
			continue
		}
		seen[name] = struct{}{}
		ret = append(ret, name)
	}
	conf.Conf.DisabledProviders = ret
}

// FillWriteTimeout sets the write timeout introduced in v0.2.0.
func FillWriteTimeout() {
	if conf.Conf.WriteTimeout == 0 {
		conf.Conf.WriteTimeout = conf.Duration(30 * time.Minute)
	}
}
