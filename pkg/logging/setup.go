package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

const logFileMode = 0600

// Setup installs the default logger: CLI output on stderr and, when file is
// set, JSON records appended to that file. The returned func closes the file.
func Setup(level, file string) (func() error, error) {
	if file == "" {
		SetDefaultCLILogger(level)
		return func() error { return nil }, nil
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFileMode)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", file, err)
	}

	slog.SetDefault(NewLoggerWithWriters(os.Stderr, f, ParseLogLevel(level)))
	return f.Close, nil
}

// NewLoggerWithWriters fans records out to a CLI handler on stderr and a JSON
// handler on file.
func NewLoggerWithWriters(stderr, file io.Writer, level slog.Level) *slog.Logger {
	cliHandler := NewCLIHandler(stderr, level)
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(slogmulti.Fanout(cliHandler, fileHandler))
}
