package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"b2backup/internal/config"

	"github.com/mdouchement/logger"
	"github.com/sirupsen/logrus"
)

// newLogger writes to stdout and to {LOG_DIR}/{JOB_NAME}.log so a run's
// trail survives the terminal. Every destructive action and external
// call ends up here.
func newLogger(cfg *config.Config) (logger.Logger, error) {
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	logfile, err := os.OpenFile(filepath.Join(cfg.LogDir, cfg.JobName+".log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	log := logrus.New()
	log.SetOutput(io.MultiWriter(os.Stdout, logfile))
	log.SetFormatter(&logger.LogrusTextFormatter{
		DisableColors:   true,
		ForceFormatting: true,
		PrefixRE:        regexp.MustCompile(`^(\[.*?\])\s`),
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return logger.WrapLogrus(log), nil
}
