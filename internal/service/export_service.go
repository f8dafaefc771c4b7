package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-ingest/internal/dto"
	"github.com/noah-isme/timetable-ingest/internal/models"
	"github.com/noah-isme/timetable-ingest/internal/timetable"
	appErrors "github.com/noah-isme/timetable-ingest/pkg/errors"
	"github.com/noah-isme/timetable-ingest/pkg/export"
	"github.com/noah-isme/timetable-ingest/pkg/storage"
)

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
	ExportFormatICS = "ics"
)

var exportContentTypes = map[string]string{
	ExportFormatCSV: "text/csv; charset=utf-8",
	ExportFormatPDF: "application/pdf",
	ExportFormatICS: "text/calendar; charset=utf-8",
}

var datasetHeaders = []string{"Course", "Day", "Room", "Teacher", "Periods", "Time", "Weeks", "Type", "Credit", "Note"}

var datasetWidths = []float64{3, 0.7, 1.5, 1.5, 1, 1.6, 1, 0.9, 0.9, 2.5}

type occurrenceSource interface {
	ListOccurrences(ctx context.Context, query dto.OccurrenceQuery) ([]models.StoredOccurrence, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type calendarRenderer interface {
	Render(events []export.CalendarEvent) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix   string
	ResultTTL   time.Duration
	Institution string
	TermStart   time.Time
	Location    *time.Location
}

// ExportService renders stored occurrences and persists the rendered files.
type ExportService struct {
	source    occurrenceSource
	storage   fileStorage
	csv       csvRenderer
	pdf       pdfRenderer
	ics       calendarRenderer
	signer    *storage.SignedURLSigner
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       ExportConfig
}

// NewExportService constructs an ExportService. Source, storage and signer may be nil
// when only Render is used.
func NewExportService(source occurrenceSource, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer, ics calendarRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if ics == nil {
		ics = export.NewICSExporter(calendarName(cfg.Institution))
	}
	return &ExportService{
		source:    source,
		storage:   store,
		csv:       csv,
		pdf:       pdf,
		ics:       ics,
		signer:    signer,
		validator: validator.New(),
		logger:    logger,
		cfg:       cfg,
	}
}

// SetMetrics counts rendered exports on the given collector set.
func (s *ExportService) SetMetrics(metrics *MetricsService) {
	s.metrics = metrics
}

// Export renders the occurrences of a stored import and returns a signed download link.
func (s *ExportService) Export(ctx context.Context, importID string, req dto.ExportRequest) (*dto.ExportResponse, error) {
	req.Format = strings.ToLower(strings.TrimSpace(req.Format))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export request")
	}
	if s.source == nil || s.storage == nil || s.signer == nil {
		return nil, appErrors.ErrPersistenceDisabled
	}

	termStart := s.cfg.TermStart
	if req.TermStart != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, req.TermStart, s.cfg.Location)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term start")
		}
		termStart = parsed
	}

	stored, err := s.source.ListOccurrences(ctx, dto.OccurrenceQuery{ImportID: importID})
	if err != nil {
		return nil, err
	}
	occurrences := make([]models.Occurrence, 0, len(stored))
	for _, row := range stored {
		occurrences = append(occurrences, row.Occurrence)
	}

	payload, err := s.Render(req.Format, occurrences, termStart)
	if err != nil {
		return nil, err
	}

	exportID, err := gonanoid.New()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate export id")
	}
	filename := fmt.Sprintf("%s/timetable_%s.%s", sanitizeFilename(importID), exportID, req.Format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(exportID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.metrics.RecordExport(req.Format)
	s.logger.Info("timetable export rendered",
		zap.String("import_id", importID),
		zap.String("export_id", exportID),
		zap.String("format", req.Format),
		zap.Int("occurrences", len(occurrences)),
	)
	return &dto.ExportResponse{
		ExportID:    exportID,
		Format:      req.Format,
		FileName:    filepath.Base(relPath),
		DownloadURL: fmt.Sprintf("%s/timetable/exports/download?token=%s", prefix, url.QueryEscape(token)),
		ExpiresAt:   expiresAt,
	}, nil
}

// Render encodes occurrences in the requested format. ICS output needs a term start.
func (s *ExportService) Render(format string, occurrences []models.Occurrence, termStart time.Time) ([]byte, error) {
	var (
		payload []byte
		err     error
	)
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(OccurrenceDataset(occurrences))
	case ExportFormatPDF:
		payload, err = s.pdf.Render(OccurrenceDataset(occurrences), calendarName(s.cfg.Institution))
	case ExportFormatICS:
		if termStart.IsZero() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "term start is required for ics exports")
		}
		payload, err = s.ics.Render(s.CalendarEvents(occurrences, termStart))
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return payload, nil
}

// calendarUIDDomain qualifies event UIDs as RFC 5545 expects.
const calendarUIDDomain = "timetable-ingest"

// CalendarEvents expands occurrences into one dated event per teaching week. Week 1
// starts on the Monday of the week containing termStart. UIDs are scoped by a digest of
// the occurrences and week one, so only a re-export of the same timetable reuses them.
func (s *ExportService) CalendarEvents(occurrences []models.Occurrence, termStart time.Time) []export.CalendarEvent {
	loc := s.cfg.Location
	start := termStart.In(loc)
	monday := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	monday = monday.AddDate(0, 0, -((int(monday.Weekday()) + 6) % 7))

	scope := calendarScope(occurrences, monday)
	events := make([]export.CalendarEvent, 0, len(occurrences))
	for i, occ := range occurrences {
		if occ.Day < 1 || occ.Day > 7 {
			s.logger.Debug("skipping occurrence without weekday", zap.String("course", occ.Name))
			continue
		}
		from, to, ok := clockRange(occ)
		if !ok {
			s.logger.Debug("skipping occurrence without clock times", zap.String("course", occ.Name))
			continue
		}
		for _, week := range occ.Rule().Weeks() {
			day := monday.AddDate(0, 0, (week-1)*7+occ.Day-1)
			events = append(events, export.CalendarEvent{
				UID:         fmt.Sprintf("%s-%d-w%d@%s", scope, i, week, calendarUIDDomain),
				Summary:     occ.Name,
				Description: eventDescription(occ, week),
				Location:    occ.Room,
				Start:       day.Add(from),
				End:         day.Add(to),
			})
		}
	}
	return events
}

func calendarScope(occurrences []models.Occurrence, weekOne time.Time) string {
	h := sha256.New()
	h.Write([]byte(weekOne.Format(time.DateOnly)))
	// Occurrence holds only plain fields, so encoding cannot fail.
	_ = json.NewEncoder(h).Encode(occurrences)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (exportID, relPath string, expiresAt time.Time, err error) {
	if s.signer == nil {
		return "", "", time.Time{}, storage.ErrTokenInvalid
	}
	return s.signer.Parse(token, allowExpired)
}

// OpenToken resolves a download token to the stored file and its content type.
func (s *ExportService) OpenToken(token string) (*os.File, string, string, error) {
	if s.storage == nil {
		return nil, "", "", appErrors.ErrPersistenceDisabled
	}
	_, relPath, _, err := s.ParseToken(token, false)
	if errors.Is(err, storage.ErrTokenExpired) {
		return nil, "", "", appErrors.Wrap(err, appErrors.ErrExportExpired.Code, appErrors.ErrExportExpired.Status, appErrors.ErrExportExpired.Message)
	}
	if err != nil {
		return nil, "", "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export not found")
	}
	return file, filepath.Base(relPath), ContentTypeFor(relPath), nil
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if s.storage == nil {
		return nil, nil
	}
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

// ContentTypeFor maps an export file name to its MIME type.
func ContentTypeFor(name string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ct, ok := exportContentTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

// OccurrenceDataset flattens occurrences into the tabular export layout.
func OccurrenceDataset(occurrences []models.Occurrence) export.Dataset {
	rows := make([]map[string]string, 0, len(occurrences))
	for _, occ := range occurrences {
		rows = append(rows, map[string]string{
			"Course":  occ.Name,
			"Day":     strconv.Itoa(occ.Day),
			"Room":    occ.Room,
			"Teacher": occ.Teacher,
			"Periods": formatRange(occ.StartPeriod, occ.EndPeriod),
			"Time":    formatClock(occ),
			"Weeks":   formatRange(occ.StartWeek, occ.EndWeek),
			"Type":    string(occ.Type),
			"Credit":  strconv.FormatFloat(occ.Credit, 'f', -1, 64),
			"Note":    occ.Note,
		})
	}
	return export.Dataset{Headers: datasetHeaders, Rows: rows, Widths: datasetWidths}
}

func clockRange(occ models.Occurrence) (time.Duration, time.Duration, bool) {
	startText, endText := occ.StartTime, occ.EndTime
	if startText == "" {
		if slot, ok := timetable.SlotFor(occ.StartPeriod); ok {
			startText = slot.StartTime
		}
	}
	if endText == "" {
		if slot, ok := timetable.SlotFor(occ.EndPeriod); ok {
			endText = slot.EndTime
		}
	}
	from, okFrom := parseClock(startText)
	to, okTo := parseClock(endText)
	if !okFrom || !okTo || to < from {
		return 0, 0, false
	}
	return from, to, true
}

func parseClock(raw string) (time.Duration, bool) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, true
}

func formatRange(from, to int) string {
	if from == to {
		return strconv.Itoa(from)
	}
	return fmt.Sprintf("%d-%d", from, to)
}

func formatClock(occ models.Occurrence) string {
	if occ.StartTime == "" && occ.EndTime == "" {
		return ""
	}
	return occ.StartTime + "-" + occ.EndTime
}

func eventDescription(occ models.Occurrence, week int) string {
	parts := []string{fmt.Sprintf("Week %d", week)}
	if occ.Teacher != "" {
		parts = append(parts, "Teacher: "+occ.Teacher)
	}
	if occ.Note != "" {
		parts = append(parts, occ.Note)
	}
	return strings.Join(parts, "\n")
}

func calendarName(institution string) string {
	if institution == "" || institution == timetable.DefaultInstitution {
		return "Timetable"
	}
	return institution + " Timetable"
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

// StartCleanup boots a goroutine that purges expired exports periodically.
func (s *ExportService) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 || s.storage == nil {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deleted, err := s.Cleanup(0)
				if err != nil {
					s.logger.Sugar().Warnw("export cleanup failed", "error", err)
					continue
				}
				if len(deleted) > 0 {
					s.logger.Sugar().Infow("expired exports removed", "count", len(deleted))
				}
			}
		}
	}()
}
