package bootstrap

import (
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/zipfx/zipfx/cmd/flags"
	"github.com/zipfx/zipfx/internal/conf"
	"github.com/zipfx/zipfx/pkg/utils"
)

func configPath() string {
	if flags.ConfigPath != "" {
		return flags.ConfigPath
	}
	return filepath.Join(flags.DataDir, "config.json")
}

// InitConfig loads the config file, writing the defaults back when it did
// not exist yet, and prepares the scratch directory.
func InitConfig() {
	if !filepath.IsAbs(flags.DataDir) {
		abs, err := filepath.Abs(flags.DataDir)
		if err != nil {
			log.Fatalf("get absolute path of data dir: %+v", err)
		}
		flags.DataDir = abs
	}
	path := configPath()
	log.Infof("reading config file: %s", path)
	cfg, existed, err := conf.Load(path, flags.DataDir)
	if err != nil {
		log.Fatalf("%+v", err)
	}
	conf.Conf = cfg
	if !existed {
		log.Infof("config file not exists, creating default config file")
		if !utils.WriteJsonToFile(path, conf.Conf) {
			log.Fatalf("failed to create default config file")
		}
	}
	if !filepath.IsAbs(conf.Conf.TempDir) {
		conf.Conf.TempDir = filepath.Join(flags.DataDir, conf.Conf.TempDir)
	}
	// leftovers of a previous run are never resumed
	if err := os.RemoveAll(filepath.Join(conf.Conf.TempDir, "nested")); err != nil {
		log.Warnf("clean nested scratch: %v", err)
	}
	if err := os.MkdirAll(conf.Conf.TempDir, 0777); err != nil {
		log.Fatalf("create temp dir error: %+v", err)
	}
	log.Debugf("config: %+v", conf.Conf)
}
