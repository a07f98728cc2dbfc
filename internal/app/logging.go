package app

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/relabs-tech/drive_computer/internal/config"
)

// SetupLogging sends the standard logger to stderr and, when a log file is
// configured, to a size-rotated file as well. override (from DRIVE_LOG_FILE)
// wins over LOG_FILE. The returned closer flushes the file on exit.
func SetupLogging(cfg *config.Config, override string) io.Closer {
	path := cfg.LogFile
	if override != "" {
		path = override
	}
	if path == "" {
		return io.NopCloser(nil)
	}

	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAgeDays,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, lj))
	log.Printf("logging to %s (max %d MB, %d backups)", path, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
	return lj
}
