package config

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the service logger. Unknown levels fall back to info.
func NewLogger(level string) *logrus.Logger {
	log := logrus.New()

	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	return log
}
