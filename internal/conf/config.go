package conf

import (
	"path/filepath"
	"time"
)

type LogConfig struct {
	Enable     bool   `json:"enable" env:"ENABLE"`
	Name       string `json:"name" env:"NAME"`
	MaxSize    int    `json:"max_size" env:"MAX_SIZE"`
	MaxBackups int    `json:"max_backups" env:"MAX_BACKUPS"`
	MaxAge     int    `json:"max_age" env:"MAX_AGE"`
	Compress   bool   `json:"compress" env:"COMPRESS"`
}

// ArchiveDefaults are copied into every new ArchiveInfo that does not carry
// its own value.
type ArchiveDefaults struct {
	CompressionLevel  int    `json:"default_compression_level" env:"COMPRESSION_LEVEL"`
	CompressionMethod string `json:"default_compression_method" env:"COMPRESSION_METHOD"`
	Encryption        string `json:"default_encryption" env:"ENCRYPTION"`
}

type Scheme struct {
	Address string `json:"address" env:"ADDR"`
	Port    int    `json:"port" env:"PORT"`
}

type Config struct {
	TempDir             string          `json:"temp_dir" env:"TEMP_DIR"`
	Workers             int             `json:"workers" env:"WORKERS"`
	ReadTimeout         Duration        `json:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout        Duration        `json:"write_timeout" env:"WRITE_TIMEOUT"`
	ExtractRateLimit    int             `json:"extract_rate_limit" env:"EXTRACT_RATE_LIMIT"`
	RecentLimit         int             `json:"recent_limit" env:"RECENT_LIMIT"`
	DisabledProviders   []string        `json:"disabled_providers" env:"DISABLED_PROVIDERS" envSeparator:","`
	MaxConnections      int             `json:"max_connections" env:"MAX_CONNECTIONS"`
	Defaults            ArchiveDefaults `json:"defaults" envPrefix:"DEFAULT_"`
	Scheme              Scheme          `json:"scheme" envPrefix:"SCHEME_"`
	Log                 LogConfig       `json:"log" envPrefix:"LOG_"`
	LastLaunchedVersion string          `json:"last_launched_version"`
}

func DefaultConfig(dataDir string) *Config {
	tempDir := filepath.Join(dataDir, "temp")
	logPath := filepath.Join(dataDir, "log/log.log")
	return &Config{
		TempDir:          tempDir,
		Workers:          4,
		ReadTimeout:      Duration(10 * time.Minute),
		WriteTimeout:     Duration(30 * time.Minute),
		ExtractRateLimit: -1,
		RecentLimit:      10,
		MaxConnections:   0,
		Defaults: ArchiveDefaults{
			CompressionLevel:  6,
			CompressionMethod: "deflate",
			Encryption:        "",
		},
		Scheme: Scheme{
			Address: "127.0.0.1",
			Port:    5255,
		},
		Log: LogConfig{
			Enable:     true,
			Name:       logPath,
			MaxSize:    50,
			MaxBackups: 30,
			MaxAge:     28,
		},
	}
}
