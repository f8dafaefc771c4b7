package dto

import (
	"time"

	"github.com/noah-isme/timetable-ingest/internal/models"
)

// ImportResult is returned after a timetable document has been decoded and expanded.
type ImportResult struct {
	ImportID    string                `json:"importId,omitempty"`
	PayloadHash string                `json:"payloadHash"`
	Code        string                `json:"code"`
	Message     string                `json:"message"`
	Cached      bool                  `json:"cached"`
	Stats       models.ExpansionStats `json:"stats"`
	Occurrences []models.Occurrence   `json:"occurrences"`
}

// BatchImportRequest carries several raw timetable documents. Each document is the
// untouched response text so that a malformed one only fails its own slot.
type BatchImportRequest struct {
	Documents []string `json:"documents" validate:"required,min=1,max=50"`
	Persist   bool     `json:"persist"`
}

// BatchImportItem is the outcome of one document in a batch.
type BatchImportItem struct {
	Index  int           `json:"index"`
	Result *ImportResult `json:"result,omitempty"`
	Error  *ItemError    `json:"error,omitempty"`
}

// ItemError describes why a batch document failed.
type ItemError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BatchImportResponse summarises a batch run.
type BatchImportResponse struct {
	Succeeded int                   `json:"succeeded"`
	Failed    int                   `json:"failed"`
	Stats     models.ExpansionStats `json:"stats"`
	Items     []BatchImportItem     `json:"items"`
}

// OccurrenceQuery filters stored occurrences of one import.
type OccurrenceQuery struct {
	ImportID string `validate:"required"`
	Week     int    `form:"week" validate:"omitempty,min=1,max=60"`
	Day      int    `form:"day" validate:"omitempty,min=1,max=7"`
	Teacher  string `form:"teacher" validate:"omitempty,max=100"`
}

// ImportListQuery pages the import history.
type ImportListQuery struct {
	Page     int `form:"page" validate:"omitempty,min=1"`
	PageSize int `form:"limit" validate:"omitempty,min=1,max=100"`
}

// ExportRequest asks for a rendered export of a stored import.
type ExportRequest struct {
	Format    string `json:"format" validate:"required,oneof=csv pdf ics"`
	TermStart string `json:"termStart" validate:"omitempty,datetime=2006-01-02"`
}

// ExportResponse points at a rendered export.
type ExportResponse struct {
	ExportID    string    `json:"exportId"`
	Format      string    `json:"format"`
	FileName    string    `json:"fileName"`
	DownloadURL string    `json:"downloadUrl"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// ImportJobStatus values.
const (
	ImportJobQueued    = "QUEUED"
	ImportJobRunning   = "RUNNING"
	ImportJobSucceeded = "SUCCEEDED"
	ImportJobFailed    = "FAILED"
)

// ImportJobResponse reports an asynchronous import.
type ImportJobResponse struct {
	JobID      string     `json:"jobId"`
	Status     string     `json:"status"`
	ImportID   string     `json:"importId,omitempty"`
	Error      string     `json:"error,omitempty"`
	Attempts   int        `json:"attempts"`
	EnqueuedAt time.Time  `json:"enqueuedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}
