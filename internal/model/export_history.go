package model

type ExportStatus string

const (
	ExportStatusPending       ExportStatus = "pending"
	ExportStatusConfirmedPush ExportStatus = "confirmed_push"
	ExportStatusConfirmedPoll ExportStatus = "confirmed_poll"
	ExportStatusTimedOut      ExportStatus = "timed_out"
	ExportStatusDownloaded    ExportStatus = "downloaded"
	ExportStatusFailed        ExportStatus = "failed"
)

// ExportHistory is one recorded export attempt. It is persisted as JSON in
// the history store.
type ExportHistory struct {
	ID         uint64       `json:"id"`
	Host       string       `json:"host"`
	Target     string       `json:"target"`
	RequestID  string       `json:"request_id"`
	Status     ExportStatus `json:"status"`
	StartedAt  int64        `json:"started_at"`  // Unix milliseconds
	FinishedAt int64        `json:"finished_at"` // Unix milliseconds, zero while pending
	SavedPath  string       `json:"saved_path,omitempty"`
}

type NewExportHistory struct {
	Host      string
	Target    string
	RequestID string
	StartedAt int64
}
