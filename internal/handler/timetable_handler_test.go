package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-ingest/internal/dto"
	"github.com/noah-isme/timetable-ingest/internal/models"
	"github.com/noah-isme/timetable-ingest/internal/timetable"
	appErrors "github.com/noah-isme/timetable-ingest/pkg/errors"
)

type timetableServiceMock struct {
	raw        []byte
	persist    bool
	query      dto.OccurrenceQuery
	importErr  error
	batchReq   dto.BatchImportRequest
	occurrence []models.StoredOccurrence
	purged     bool
	purgeErr   error
}

func (m *timetableServiceMock) Import(ctx context.Context, raw []byte, persist bool) (*dto.ImportResult, error) {
	m.raw = raw
	m.persist = persist
	if m.importErr != nil {
		return nil, m.importErr
	}
	result := &dto.ImportResult{Code: "0", Occurrences: []models.Occurrence{{Name: "高等数学"}}}
	if persist {
		result.ImportID = "import-1"
	}
	return result, nil
}

func (m *timetableServiceMock) ImportBatch(ctx context.Context, req dto.BatchImportRequest) (*dto.BatchImportResponse, error) {
	m.batchReq = req
	return &dto.BatchImportResponse{Succeeded: len(req.Documents)}, nil
}

func (m *timetableServiceMock) Periods() models.TimeTable {
	return timetable.Periods()
}

func (m *timetableServiceMock) PurgeCache(ctx context.Context) error {
	m.purged = true
	return m.purgeErr
}

func (m *timetableServiceMock) ListImports(ctx context.Context, query dto.ImportListQuery) ([]models.TimetableImport, *models.Pagination, error) {
	return []models.TimetableImport{{ID: "import-1"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (m *timetableServiceMock) GetImport(ctx context.Context, id string) (*models.TimetableImport, error) {
	if id != "import-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable import not found")
	}
	return &models.TimetableImport{ID: id}, nil
}

func (m *timetableServiceMock) ListOccurrences(ctx context.Context, query dto.OccurrenceQuery) ([]models.StoredOccurrence, error) {
	m.query = query
	return m.occurrence, nil
}

type importJobMock struct {
	raw []byte
}

func (m *importJobMock) Enqueue(raw []byte) (*dto.ImportJobResponse, error) {
	m.raw = raw
	return &dto.ImportJobResponse{JobID: "job-1", Status: dto.ImportJobQueued}, nil
}

func (m *importJobMock) Status(id string) (*dto.ImportJobResponse, error) {
	if id != "job-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "import job not found")
	}
	return &dto.ImportJobResponse{JobID: id, Status: dto.ImportJobSucceeded, ImportID: "import-1"}, nil
}

type exportMock struct {
	req  dto.ExportRequest
	path string
}

func (m *exportMock) Export(ctx context.Context, importID string, req dto.ExportRequest) (*dto.ExportResponse, error) {
	m.req = req
	return &dto.ExportResponse{ExportID: "exp", Format: req.Format, DownloadURL: "/api/v1/timetable/exports/download?token=t"}, nil
}

func (m *exportMock) OpenToken(token string) (*os.File, string, string, error) {
	if token != "good" {
		return nil, "", "", appErrors.Clone(appErrors.ErrValidation, "invalid download token")
	}
	file, err := os.Open(m.path)
	if err != nil {
		return nil, "", "", err
	}
	return file, filepath.Base(m.path), "text/csv; charset=utf-8", nil
}

type timetableRouterFixture struct {
	router    *gin.Engine
	timetable *timetableServiceMock
	jobs      *importJobMock
	exports   *exportMock
}

func newTimetableRouter(t *testing.T, maxPayload int64) timetableRouterFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := timetableRouterFixture{
		timetable: &timetableServiceMock{},
		jobs:      &importJobMock{},
		exports:   &exportMock{},
	}
	h := NewTimetableHandler(f.timetable, f.jobs, f.exports, maxPayload)
	f.router = gin.New()
	h.Register(f.router.Group("/api/v1"))
	return f
}

func perform(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestTimetableHandlerImport(t *testing.T) {
	f := newTimetableRouter(t, 0)

	w := perform(f.router, http.MethodPost, "/api/v1/timetable/import", []byte(`{"datas":{}}`))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"datas":{}}`, string(f.timetable.raw))
	assert.False(t, f.timetable.persist)
	var envelope struct {
		Data dto.ImportResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "高等数学", envelope.Data.Occurrences[0].Name)
}

func TestTimetableHandlerImportPersist(t *testing.T) {
	f := newTimetableRouter(t, 0)

	w := perform(f.router, http.MethodPost, "/api/v1/timetable/import?persist=true", []byte(`{}`))

	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, f.timetable.persist)
	assert.Contains(t, w.Body.String(), `"importId":"import-1"`)
}

func TestTimetableHandlerImportDecodeError(t *testing.T) {
	f := newTimetableRouter(t, 0)
	f.timetable.importErr = appErrors.Wrap(errors.New("bad"), appErrors.ErrDecode.Code, appErrors.ErrDecode.Status, appErrors.ErrDecode.Message)

	w := perform(f.router, http.MethodPost, "/api/v1/timetable/import", []byte(`{`))

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "DECODE_ERROR")
}

func TestTimetableHandlerImportTooLarge(t *testing.T) {
	f := newTimetableRouter(t, 8)

	w := perform(f.router, http.MethodPost, "/api/v1/timetable/import", []byte(`{"datas":{"arrangedList":[]}}`))

	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Nil(t, f.timetable.raw)
}

func TestTimetableHandlerImportBatch(t *testing.T) {
	f := newTimetableRouter(t, 0)

	w := perform(f.router, http.MethodPost, "/api/v1/timetable/imports/batch", []byte(`{"documents":["{}","x"]}`))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"{}", "x"}, f.timetable.batchReq.Documents)
}

func TestTimetableHandlerAsyncAndStatus(t *testing.T) {
	f := newTimetableRouter(t, 0)

	w := perform(f.router, http.MethodPost, "/api/v1/timetable/imports/async", []byte(`{"datas":{}}`))
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"jobId":"job-1"`)
	assert.Equal(t, "/api/v1/timetable/imports/jobs/job-1", w.Header().Get("Location"))

	w = perform(f.router, http.MethodGet, "/api/v1/timetable/imports/jobs/job-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), dto.ImportJobSucceeded)

	w = perform(f.router, http.MethodGet, "/api/v1/timetable/imports/jobs/other", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTimetableHandlerPeriods(t *testing.T) {
	f := newTimetableRouter(t, 0)

	w := perform(f.router, http.MethodGet, "/api/v1/timetable/periods", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Data models.TimeTable `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data.Slots, 14)
	assert.Equal(t, "08:00", envelope.Data.Slots[0].StartTime)
}

func TestTimetableHandlerListImports(t *testing.T) {
	f := newTimetableRouter(t, 0)

	w := perform(f.router, http.MethodGet, "/api/v1/timetable/imports?page=1&limit=20", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_count":1`)
}

func TestTimetableHandlerGetImportNotFound(t *testing.T) {
	f := newTimetableRouter(t, 0)

	w := perform(f.router, http.MethodGet, "/api/v1/timetable/imports/missing", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTimetableHandlerListOccurrences(t *testing.T) {
	f := newTimetableRouter(t, 0)
	f.timetable.occurrence = []models.StoredOccurrence{{ID: "o1", ImportID: "import-1"}}

	w := perform(f.router, http.MethodGet, "/api/v1/timetable/imports/import-1/occurrences?week=6&day=3&teacher=%E6%9D%8E%E5%9B%9B", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.OccurrenceQuery{ImportID: "import-1", Week: 6, Day: 3, Teacher: "李四"}, f.timetable.query)
	assert.Contains(t, w.Body.String(), `"count":1`)
}

func TestTimetableHandlerListOccurrencesBadQuery(t *testing.T) {
	f := newTimetableRouter(t, 0)

	w := perform(f.router, http.MethodGet, "/api/v1/timetable/imports/import-1/occurrences?week=abc", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableHandlerCreateExport(t *testing.T) {
	f := newTimetableRouter(t, 0)

	w := perform(f.router, http.MethodPost, "/api/v1/timetable/imports/import-1/exports", []byte(`{"format":"ics","termStart":"2024-09-02"}`))

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, dto.ExportRequest{Format: "ics", TermStart: "2024-09-02"}, f.exports.req)
	assert.Contains(t, w.Body.String(), "downloadUrl")
}

func TestTimetableHandlerDownload(t *testing.T) {
	f := newTimetableRouter(t, 0)
	f.exports.path = filepath.Join(t.TempDir(), "timetable_abc.csv")
	require.NoError(t, os.WriteFile(f.exports.path, []byte("Course\n高等数学\n"), 0o644))

	w := perform(f.router, http.MethodGet, "/api/v1/timetable/exports/download?token=good", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.True(t, strings.Contains(w.Header().Get("Content-Disposition"), "timetable_abc.csv"))
	assert.Equal(t, "Course\n高等数学\n", w.Body.String())

	w = perform(f.router, http.MethodGet, "/api/v1/timetable/exports/download?token=bad", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(f.router, http.MethodGet, "/api/v1/timetable/exports/download", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableHandlerPurgeCache(t *testing.T) {
	f := newTimetableRouter(t, 0)

	w := perform(f.router, http.MethodDelete, "/api/v1/timetable/cache", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, f.timetable.purged)

	f.timetable.purgeErr = appErrors.Clone(appErrors.ErrUnavailable, "document cache is not enabled")
	w = perform(f.router, http.MethodDelete, "/api/v1/timetable/cache", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
