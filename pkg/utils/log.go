package utils

import (
	log "github.com/sirupsen/logrus"
)

// Log is the logger shared by packages that should not touch the global
// logrus instance directly. bootstrap.InitLog configures both.
var Log = log.New()
