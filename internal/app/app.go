// Package app orchestrates one export end to end: resolve the target,
// trigger the export, watch for completion, download the artifact.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	cfg "github.com/printforge/timelapse-exporter/config"
	"github.com/printforge/timelapse-exporter/internal/download"
	"github.com/printforge/timelapse-exporter/internal/errors"
	"github.com/printforge/timelapse-exporter/internal/listing"
	"github.com/printforge/timelapse-exporter/internal/model"
	"github.com/printforge/timelapse-exporter/internal/sdcp"
	"github.com/printforge/timelapse-exporter/internal/store"
	"github.com/printforge/timelapse-exporter/internal/store/bolt"
	"github.com/printforge/timelapse-exporter/internal/watch"
)

type App struct {
	config   *cfg.AppConfig
	log      *slog.Logger
	store    store.Store
	resolver *listing.Resolver
	download *download.Client
}

// Result is what one run produced, for the CLI layer to render.
type Result struct {
	Target    string // artifact path on the device
	URL       string // HTTP locator of the artifact
	SavedPath string // local file, empty in url-only mode
	State     watch.State
	Verified  bool // a positive existence probe backs the outcome
}

// New wires the application from config. The history store is optional:
// persistence must never block an export, so a store that cannot be opened is
// logged and left out.
func New(config *cfg.AppConfig, log *slog.Logger) (*App, error) {
	if config == nil {
		return nil, errors.New("config is nil")
	}
	a := &App{
		config:   config,
		log:      log,
		resolver: listing.NewResolver(config.Device.Host, log),
		download: download.NewClient(config.Download.Retries, log),
	}
	if config.History.Path != "" {
		st := bolt.New(config.History.Path)
		if err := os.MkdirAll(filepath.Dir(config.History.Path), 0o755); err != nil {
			log.Warn("app.history_dir_unavailable",
				slog.String("path", config.History.Path),
				slog.String("error", err.Error()))
		} else if err := st.Open(); err != nil {
			log.Warn("app.history_store_unavailable",
				slog.String("path", config.History.Path),
				slog.String("error", err.Error()))
		} else {
			a.store = st
		}
	}
	return a, nil
}

// Close releases the history store.
func (a *App) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// Run executes one export. The trigger always completes before the watchers
// start observing; the session is closed on the way out whatever the outcome.
func (a *App) Run(ctx context.Context) (*Result, error) {
	target, err := a.resolveTarget(ctx)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("http://%s%s", a.config.Device.Host, target)

	sess, err := sdcp.Dial(ctx, a.config.Device.Host, a.config.Device.WSPort, a.log)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	requestID, err := sess.SendExport(target)
	if err != nil {
		return nil, err
	}
	a.log.Info("app.export_requested",
		slog.String("target", target),
		slog.String("request_id", requestID))

	historyID := a.recordStart(target, requestID)

	timeout := time.Duration(a.config.Export.Timeout) * time.Second
	watcher := watch.New(sess, a.download, target, url, timeout, a.config.Export.Check, a.log)
	res := watcher.Wait(ctx)

	switch res.State {
	case watch.TimedOut:
		a.recordFinish(historyID, model.ExportStatusTimedOut, "")
		return nil, errors.Timeout(target, timeout)
	case watch.ConfirmedByPush:
		a.recordFinish(historyID, model.ExportStatusConfirmedPush, "")
	case watch.ConfirmedByPoll:
		a.recordFinish(historyID, model.ExportStatusConfirmedPoll, "")
	}
	a.log.Info("app.artifact_ready",
		slog.String("url", url),
		slog.String("state", res.State.String()))

	result := &Result{Target: target, URL: url, State: res.State, Verified: res.Verified}
	if a.config.Export.URLOnly {
		return result, nil
	}

	dest := filepath.Join(a.config.Export.OutDir, path.Base(target))
	if err := os.MkdirAll(a.config.Export.OutDir, 0o755); err != nil {
		a.recordFinish(historyID, model.ExportStatusFailed, "")
		return nil, errors.Download(url, err)
	}
	if err := a.download.Fetch(ctx, url, dest); err != nil {
		a.recordFinish(historyID, model.ExportStatusFailed, "")
		return nil, err
	}
	a.recordFinish(historyID, model.ExportStatusDownloaded, dest)
	result.SavedPath = dest
	return result, nil
}

// History lists past exports, newest first.
func (a *App) History(limit int) ([]model.ExportHistory, error) {
	if a.store == nil {
		return nil, errors.New("history store is not configured")
	}
	return a.store.List(limit)
}

// resolveTarget picks the artifact path: the explicit file joined to the
// listing path, or the most recently generated entry in latest mode.
func (a *App) resolveTarget(ctx context.Context) (string, error) {
	exp := a.config.Export
	if exp.Latest {
		return a.resolver.LatestArtifact(ctx, exp.ListPath)
	}
	return exp.ListPath + exp.File, nil
}

func (a *App) recordStart(target, requestID string) uint64 {
	if a.store == nil {
		return 0
	}
	id, err := a.store.Insert(&model.NewExportHistory{
		Host:      a.config.Device.Host,
		Target:    target,
		RequestID: requestID,
		StartedAt: time.Now().UnixMilli(),
	})
	if err != nil {
		a.log.Warn("app.history_insert_failed", slog.String("error", err.Error()))
		return 0
	}
	return id
}

func (a *App) recordFinish(id uint64, status model.ExportStatus, savedPath string) {
	if a.store == nil || id == 0 {
		return
	}
	if err := a.store.UpdateStatus(id, status, savedPath); err != nil {
		a.log.Warn("app.history_update_failed",
			slog.Uint64("id", id),
			slog.String("error", err.Error()))
	}
}
