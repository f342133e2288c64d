package bootstrap

import (
	"io"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/zipfx/zipfx/cmd/flags"
	"github.com/zipfx/zipfx/internal/conf"
	"github.com/zipfx/zipfx/pkg/utils"
	"gopkg.in/natefinch/lumberjack.v2"
)

func setLog(l *logrus.Logger) {
	l.SetFormatter(&logrus.TextFormatter{
		ForceColors:               true,
		EnvironmentOverrideColors: true,
		TimestampFormat:           "2006-01-02 15:04:05",
		FullTimestamp:             true,
	})
	l.SetReportCaller(false)
	if flags.Debug {
		l.SetLevel(logrus.DebugLevel)
		l.SetReportCaller(true)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
}

// InitLog configures the global logrus logger and utils.Log. With file
// logging enabled, output also goes to a rotated file.
func InitLog() {
	setLog(logrus.StandardLogger())
	setLog(utils.Log)
	if conf.Conf == nil || !conf.Conf.Log.Enable || flags.LogStd {
		return
	}
	var w io.Writer = &lumberjack.Logger{
		Filename:   conf.Conf.Log.Name,
		MaxSize:    conf.Conf.Log.MaxSize,
		MaxBackups: conf.Conf.Log.MaxBackups,
		MaxAge:     conf.Conf.Log.MaxAge,
		Compress:   conf.Conf.Log.Compress,
	}
	w = io.MultiWriter(os.Stdout, w)
	logrus.SetOutput(w)
	utils.Log.SetOutput(w)
	log.SetOutput(logrus.StandardLogger().Out)
	logrus.Infof("init logrus...")
}
