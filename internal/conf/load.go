package conf

import (
	"os"

	"github.com/caarlos0/env/v9"
	json "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

const EnvPrefix = "ZIPFX_"

// Load reads the config file at path on top of the defaults for dataDir and
// then applies ZIPFX_* environment overrides. A missing file is not an
// error, the caller decides whether to write the defaults back.
func Load(path, dataDir string) (*Config, bool, error) {
	cfg := DefaultConfig(dataDir)
	existed := false
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		existed = true
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, existed, errors.Wrapf(err, "load config %s", path)
		}
	case !os.IsNotExist(err):
		return nil, existed, errors.WithStack(err)
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, existed, errors.Wrap(err, "parse env")
	}
	normalize(cfg)
	return cfg, existed, nil
}

func normalize(cfg *Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ExtractRateLimit == 0 {
		cfg.ExtractRateLimit = -1
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 10
	}
	if cfg.Defaults.CompressionLevel < 0 {
		cfg.Defaults.CompressionLevel = 0
	}
	if cfg.Defaults.CompressionLevel > 9 {
		cfg.Defaults.CompressionLevel = 9
	}
}
