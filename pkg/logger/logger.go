package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Setup installs the process-wide slog default. Verbose switches to debug
// level with source locations; logPath, when set, mirrors output into a file.
// Logs go to stderr so stdout stays clean for results.
func Setup(verbose bool, logPath string) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	var writer io.Writer = os.Stderr
	if logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
			return err
		}
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return err
		}
		writer = io.MultiWriter(os.Stderr, file)
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: verbose,
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(writer, opts)))
	return nil
}
