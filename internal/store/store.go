package store

import "github.com/printforge/timelapse-exporter/internal/model"

// Store persists the export history across invocations.
type Store interface {
	Open() error
	Close() error

	// Insert records a new pending export and returns its id.
	Insert(h *model.NewExportHistory) (uint64, error)
	// UpdateStatus moves a record to a terminal status; savedPath may be
	// empty.
	UpdateStatus(id uint64, status model.ExportStatus, savedPath string) error
	// List returns up to limit records, newest first; limit <= 0 means all.
	List(limit int) ([]model.ExportHistory, error)
}
