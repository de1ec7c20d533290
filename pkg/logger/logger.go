package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

var (
	// Logging
	loggingFilePath = ""
	rotator         *lumberjack.Logger
)

/* Public */

// Init configures the global logger. verbosity 0 is info, 1 debug and 2+ trace.
// When logFile is set, output is also written to a size rotated file.
func Init(verbosity int, logFile string) error {
	logLevel := logrus.InfoLevel
	switch {
	case verbosity == 1:
		logLevel = logrus.DebugLevel
	case verbosity > 1:
		logLevel = logrus.TraceLevel
	}

	logrus.SetLevel(logLevel)
	logrus.SetFormatter(&prefixed.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FullTimestamp:   true,
		ForceFormatting: true,
	})

	if logFile == "" {
		logrus.SetOutput(os.Stderr)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	loggingFilePath = logFile
	rotator = &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    5,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}
	logrus.SetOutput(io.MultiWriter(os.Stderr, rotator))
	return nil
}

// GetLogger returns a logger entry tagged with the given prefix.
func GetLogger(prefix string) *logrus.Entry {
	if prefix == "" {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return logrus.WithFields(logrus.Fields{"prefix": prefix})
}

// ShowUsing logs where log output is being written to.
func ShowUsing() {
	if loggingFilePath == "" {
		return
	}
	GetLogger("log").Infof("Using %-10s = %q", "LOG", loggingFilePath)
}

// Close flushes and closes the rotating log file, if any.
func Close() error {
	if rotator == nil {
		return nil
	}
	return rotator.Close()
}
