package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	conf "github.com/printforge/timelapse-exporter/config"
	"github.com/printforge/timelapse-exporter/internal/app"
	"github.com/printforge/timelapse-exporter/internal/errors"
	"github.com/printforge/timelapse-exporter/internal/model"
	"github.com/printforge/timelapse-exporter/pkg/logger"
)

// Exit codes. A watch that timed out (or a listing that could not be
// resolved) is distinguishable from an exhausted download or misuse.
const (
	exitOK       = 0
	exitTimedOut = 1
	exitFailed   = 2
)

func Run() {
	config, err := conf.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(exitFailed)
	}

	if err := logger.Setup(config.Verbose, config.LogFile); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(exitFailed)
	}

	slog.Debug("timelapse_exporter.main.starting",
		slog.String("version", model.CurrentVersion),
		slog.String("host", config.Device.Host),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(config, slog.Default())
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(exitFailed)
	}
	defer application.Close()

	if config.History.Show {
		runHistory(application, config.History.Limit)
		return
	}

	result, err := application.Run(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		exitWith(application, exitCode(err))
	}

	fmt.Printf("Timelapse ready at: %s\n", result.URL)
	if config.Export.Check && !result.Verified {
		fmt.Println("(Heads-up: push said ready, HTTP not yet downloadable)")
	}
	if config.Export.URLOnly {
		fmt.Printf("Download URL: %s\n", result.URL)
		return
	}
	fmt.Printf("Saved: %s\n", result.SavedPath)
}

func runHistory(application *app.App, limit int) {
	records, err := application.History(limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		exitWith(application, exitFailed)
	}
	if len(records) == 0 {
		fmt.Println("No exports recorded.")
		return
	}
	for _, r := range records {
		started := time.UnixMilli(r.StartedAt).Format(time.RFC3339)
		line := fmt.Sprintf("%-4d %-22s %-16s %-32s %s",
			r.ID, started, r.Status, r.Target, r.SavedPath)
		fmt.Println(strings.TrimRight(line, " "))
	}
}

// exitWith flushes the history store before terminating; os.Exit skips
// deferred closes.
func exitWith(application *app.App, code int) {
	_ = application.Close()
	os.Exit(code)
}

// exitCode maps the failure taxonomy onto process exit signaling.
func exitCode(err error) int {
	switch errors.KindOf(err) {
	case errors.KindDownload, errors.KindConfig:
		return exitFailed
	default:
		return exitTimedOut
	}
}
