package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-ingest/internal/dto"
	"github.com/noah-isme/timetable-ingest/internal/models"
	appErrors "github.com/noah-isme/timetable-ingest/pkg/errors"
	"github.com/noah-isme/timetable-ingest/pkg/response"
)

type timetableService interface {
	Import(ctx context.Context, raw []byte, persist bool) (*dto.ImportResult, error)
	ImportBatch(ctx context.Context, req dto.BatchImportRequest) (*dto.BatchImportResponse, error)
	Periods() models.TimeTable
	PurgeCache(ctx context.Context) error
	ListImports(ctx context.Context, query dto.ImportListQuery) ([]models.TimetableImport, *models.Pagination, error)
	GetImport(ctx context.Context, id string) (*models.TimetableImport, error)
	ListOccurrences(ctx context.Context, query dto.OccurrenceQuery) ([]models.StoredOccurrence, error)
}

type importJobService interface {
	Enqueue(raw []byte) (*dto.ImportJobResponse, error)
	Status(id string) (*dto.ImportJobResponse, error)
}

type exportService interface {
	Export(ctx context.Context, importID string, req dto.ExportRequest) (*dto.ExportResponse, error)
	OpenToken(token string) (*os.File, string, string, error)
}

// TimetableHandler exposes timetable ingestion over HTTP.
type TimetableHandler struct {
	timetable  timetableService
	jobs       importJobService
	exports    exportService
	maxPayload int64
}

// NewTimetableHandler constructs the handler. maxPayload caps request bodies in bytes.
func NewTimetableHandler(timetable timetableService, jobs importJobService, exports exportService, maxPayload int64) *TimetableHandler {
	if maxPayload <= 0 {
		maxPayload = 8 << 20
	}
	return &TimetableHandler{timetable: timetable, jobs: jobs, exports: exports, maxPayload: maxPayload}
}

// Register mounts the timetable routes on the group.
func (h *TimetableHandler) Register(rg *gin.RouterGroup) {
	group := rg.Group("/timetable")
	group.POST("/import", h.Import)
	group.GET("/periods", h.Periods)
	group.GET("/imports", h.ListImports)
	group.POST("/imports/batch", h.ImportBatch)
	group.POST("/imports/async", h.ImportAsync)
	group.GET("/imports/jobs/:jobId", h.JobStatus)
	group.GET("/imports/:id", h.GetImport)
	group.GET("/imports/:id/occurrences", h.ListOccurrences)
	group.POST("/imports/:id/exports", h.CreateExport)
	group.GET("/exports/download", h.Download)
	group.DELETE("/cache", h.PurgeCache)
}

// Import godoc
// @Summary Decode and expand a timetable document
// @Tags Timetable
// @Accept json
// @Produce json
// @Param persist query bool false "Store the import and its occurrences"
// @Param payload body object true "Raw timetable response"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /timetable/import [post]
func (h *TimetableHandler) Import(c *gin.Context) {
	raw, ok := h.readBody(c)
	if !ok {
		return
	}
	persist, _ := strconv.ParseBool(c.DefaultQuery("persist", "false"))

	result, err := h.timetable.Import(c.Request.Context(), raw, persist)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.ImportID != "" {
		response.Created(c, result)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ImportBatch godoc
// @Summary Expand several timetable documents concurrently
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.BatchImportRequest true "Documents"
// @Success 200 {object} response.Envelope
// @Router /timetable/imports/batch [post]
func (h *TimetableHandler) ImportBatch(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxPayload)
	var req dto.BatchImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, appErrors.ErrPayloadTooLarge)
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid batch payload"))
		return
	}
	resp, err := h.timetable.ImportBatch(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// ImportAsync godoc
// @Summary Queue a timetable document for background import
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body object true "Raw timetable response"
// @Success 202 {object} response.Envelope
// @Router /timetable/imports/async [post]
func (h *TimetableHandler) ImportAsync(c *gin.Context) {
	raw, ok := h.readBody(c)
	if !ok {
		return
	}
	job, err := h.jobs.Enqueue(raw)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job, path.Join(path.Dir(c.Request.URL.Path), "jobs", job.JobID))
}

// JobStatus godoc
// @Summary Get background import status
// @Tags Timetable
// @Produce json
// @Param jobId path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/imports/jobs/{jobId} [get]
func (h *TimetableHandler) JobStatus(c *gin.Context) {
	job, err := h.jobs.Status(c.Param("jobId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Periods godoc
// @Summary Fixed daily period table
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetable/periods [get]
func (h *TimetableHandler) Periods(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.timetable.Periods(), nil)
}

// PurgeCache godoc
// @Summary Drop memoised document expansions
// @Tags Timetable
// @Success 204
// @Failure 503 {object} response.Envelope
// @Router /timetable/cache [delete]
func (h *TimetableHandler) PurgeCache(c *gin.Context) {
	if err := h.timetable.PurgeCache(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListImports godoc
// @Summary List stored imports
// @Tags Timetable
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /timetable/imports [get]
func (h *TimetableHandler) ListImports(c *gin.Context) {
	var query dto.ImportListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	records, pagination, err := h.timetable.ListImports(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// GetImport godoc
// @Summary Get a stored import
// @Tags Timetable
// @Produce json
// @Param id path string true "Import ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/imports/{id} [get]
func (h *TimetableHandler) GetImport(c *gin.Context) {
	record, err := h.timetable.GetImport(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// ListOccurrences godoc
// @Summary List stored occurrences of an import
// @Tags Timetable
// @Produce json
// @Param id path string true "Import ID"
// @Param week query int false "Teaching week"
// @Param day query int false "Day of week (1-7)"
// @Param teacher query string false "Teacher name"
// @Success 200 {object} response.Envelope
// @Router /timetable/imports/{id}/occurrences [get]
func (h *TimetableHandler) ListOccurrences(c *gin.Context) {
	var query dto.OccurrenceQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	query.ImportID = c.Param("id")
	rows, err := h.timetable.ListOccurrences(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil, map[string]interface{}{"count": len(rows)})
}

// CreateExport godoc
// @Summary Render an import as csv, pdf or ics
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Import ID"
// @Param payload body dto.ExportRequest true "Export request"
// @Success 201 {object} response.Envelope
// @Router /timetable/imports/{id}/exports [post]
func (h *TimetableHandler) CreateExport(c *gin.Context) {
	var req dto.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
		return
	}
	resp, err := h.exports.Export(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resp)
}

// Download godoc
// @Summary Download a rendered export
// @Tags Timetable
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Router /timetable/exports/download [get]
func (h *TimetableHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	file, name, contentType, err := h.exports.OpenToken(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export"))
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+name+"\"")
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
}

func (h *TimetableHandler) readBody(c *gin.Context) ([]byte, bool) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxPayload))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, appErrors.ErrPayloadTooLarge)
			return nil, false
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read request body"))
		return nil, false
	}
	return raw, true
}
