package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-ingest/internal/dto"
	"github.com/noah-isme/timetable-ingest/internal/models"
	"github.com/noah-isme/timetable-ingest/internal/timetable"
	appErrors "github.com/noah-isme/timetable-ingest/pkg/errors"
)

const documentCacheNamespace = "doc"

type timetableImportRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, record *models.TimetableImport) error
	FindByID(ctx context.Context, id string) (*models.TimetableImport, error)
	List(ctx context.Context, page, size int) ([]models.TimetableImport, int, error)
}

type courseOccurrenceRepository interface {
	InsertBatch(ctx context.Context, exec sqlx.ExtContext, importID string, occurrences []models.Occurrence) error
	List(ctx context.Context, filter models.OccurrenceFilter) ([]models.StoredOccurrence, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// TimetableServiceConfig tunes the timetable service.
type TimetableServiceConfig struct {
	Institution  string
	BatchWorkers int
}

// TimetableService decodes, expands and optionally stores timetable documents.
type TimetableService struct {
	expander    *timetable.Expander
	imports     timetableImportRepository
	occurrences courseOccurrenceRepository
	tx          txProvider
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         TimetableServiceConfig
}

// cachedDocument is the memoised expansion of one payload.
type cachedDocument struct {
	Code        string                `json:"code"`
	Message     string                `json:"message"`
	Stats       models.ExpansionStats `json:"stats"`
	Occurrences []models.Occurrence   `json:"occurrences"`
}

// NewTimetableService wires the service. The repositories and tx provider may be nil
// when persistence is disabled; the cache and metrics are optional.
func NewTimetableService(
	expander *timetable.Expander,
	imports timetableImportRepository,
	occurrences courseOccurrenceRepository,
	tx txProvider,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableServiceConfig,
) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if expander == nil {
		expander = timetable.NewExpander(nil, logger)
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.BatchWorkers <= 0 {
		cfg.BatchWorkers = 4
	}
	return &TimetableService{
		expander:    expander,
		imports:     imports,
		occurrences: occurrences,
		tx:          tx,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
	}
}

// PersistenceEnabled reports whether imports can be stored.
func (s *TimetableService) PersistenceEnabled() bool {
	return s.imports != nil && s.occurrences != nil && s.tx != nil
}

// Periods returns the configured institution's period table.
func (s *TimetableService) Periods() models.TimeTable {
	return timetable.PeriodsFor(s.cfg.Institution)
}

// Import decodes and expands a document. With persist the import and its occurrences
// are written in a single transaction.
func (s *TimetableService) Import(ctx context.Context, raw []byte, persist bool) (*dto.ImportResult, error) {
	if persist && !s.PersistenceEnabled() {
		return nil, appErrors.ErrPersistenceDisabled
	}
	result, err := s.expand(ctx, raw)
	if err != nil {
		return nil, err
	}
	if !persist {
		return result, nil
	}
	importID, err := s.store(ctx, result)
	if err != nil {
		return nil, err
	}
	result.ImportID = importID
	return result, nil
}

// ImportBatch expands many documents concurrently. Failures are reported per document.
func (s *TimetableService) ImportBatch(ctx context.Context, req dto.BatchImportRequest) (*dto.BatchImportResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch import payload")
	}
	if req.Persist && !s.PersistenceEnabled() {
		return nil, appErrors.ErrPersistenceDisabled
	}

	docs := make([][]byte, len(req.Documents))
	for i, doc := range req.Documents {
		docs[i] = []byte(doc)
	}

	resp := &dto.BatchImportResponse{Items: make([]dto.BatchImportItem, 0, len(docs))}
	for _, res := range s.expander.ExpandDocuments(ctx, docs, s.cfg.BatchWorkers) {
		item := dto.BatchImportItem{Index: res.Index}
		s.metrics.RecordExpansion(res.Stats, res.Err)
		if res.Err != nil {
			item.Error = itemError(classifyExpansionError(res.Err))
			resp.Failed++
			resp.Items = append(resp.Items, item)
			continue
		}

		result := &dto.ImportResult{
			PayloadHash: payloadHash(docs[res.Index]),
			Code:        res.Code,
			Message:     res.Message,
			Stats:       res.Stats,
			Occurrences: nonNilOccurrences(res.Occurrences),
		}
		if req.Persist {
			importID, err := s.store(ctx, result)
			if err != nil {
				item.Error = itemError(appErrors.FromError(err))
				resp.Failed++
				resp.Items = append(resp.Items, item)
				continue
			}
			result.ImportID = importID
		}
		item.Result = result
		resp.Succeeded++
		resp.Stats.Add(res.Stats)
		resp.Items = append(resp.Items, item)
	}
	return resp, nil
}

// PurgeCache drops every memoised document expansion.
func (s *TimetableService) PurgeCache(ctx context.Context) error {
	if !s.cache.Enabled() {
		return appErrors.Clone(appErrors.ErrUnavailable, "document cache is not enabled")
	}
	if err := s.cache.Invalidate(ctx, CacheKey(documentCacheNamespace, "*")); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to purge document cache")
	}
	s.logger.Info("document cache purged")
	return nil
}

// ListImports returns stored imports newest first.
func (s *TimetableService) ListImports(ctx context.Context, query dto.ImportListQuery) ([]models.TimetableImport, *models.Pagination, error) {
	if !s.PersistenceEnabled() {
		return nil, nil, appErrors.ErrPersistenceDisabled
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid import query")
	}
	page := query.Page
	if page < 1 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 {
		size = 20
	}
	start := time.Now()
	records, total, err := s.imports.List(ctx, page, size)
	s.metrics.ObserveDBQuery("timetable_imports_list", time.Since(start))
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable imports")
	}
	return records, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// GetImport returns one stored import.
func (s *TimetableService) GetImport(ctx context.Context, id string) (*models.TimetableImport, error) {
	if !s.PersistenceEnabled() {
		return nil, appErrors.ErrPersistenceDisabled
	}
	record, err := s.imports.FindByID(ctx, id)
	if err != nil {
		return nil, normaliseRepoError(err, "failed to load timetable import")
	}
	return record, nil
}

// ListOccurrences returns the stored occurrences of an import matching the query.
func (s *TimetableService) ListOccurrences(ctx context.Context, query dto.OccurrenceQuery) ([]models.StoredOccurrence, error) {
	if !s.PersistenceEnabled() {
		return nil, appErrors.ErrPersistenceDisabled
	}
	query.Teacher = strings.TrimSpace(query.Teacher)
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid occurrence query")
	}
	if _, err := s.GetImport(ctx, query.ImportID); err != nil {
		return nil, err
	}
	start := time.Now()
	rows, err := s.occurrences.List(ctx, models.OccurrenceFilter{
		ImportID: query.ImportID,
		Day:      query.Day,
		Teacher:  query.Teacher,
		Week:     query.Week,
	})
	s.metrics.ObserveDBQuery("course_occurrences_list", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course occurrences")
	}
	if rows == nil {
		rows = []models.StoredOccurrence{}
	}
	return rows, nil
}

func (s *TimetableService) expand(ctx context.Context, raw []byte) (*dto.ImportResult, error) {
	hash := payloadHash(raw)
	doc, cached, err := Remember(ctx, s.cache, CacheKey(documentCacheNamespace, hash), 0, func() (cachedDocument, error) {
		resp, err := timetable.Decode(raw)
		if err != nil {
			s.metrics.RecordExpansion(models.ExpansionStats{}, err)
			return cachedDocument{}, classifyExpansionError(err)
		}
		occurrences, stats := s.expander.ExpandResponse(resp)
		s.metrics.RecordExpansion(stats, nil)
		s.logger.Debug("timetable document expanded",
			zap.String("payload_hash", hash),
			zap.Int("items", stats.Items),
			zap.Int("occurrences", stats.Occurrences),
		)
		return cachedDocument{
			Code:        resp.Code.String(),
			Message:     resp.Msg,
			Stats:       stats,
			Occurrences: nonNilOccurrences(occurrences),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &dto.ImportResult{
		PayloadHash: hash,
		Code:        doc.Code,
		Message:     doc.Message,
		Cached:      cached,
		Stats:       doc.Stats,
		Occurrences: nonNilOccurrences(doc.Occurrences),
	}, nil
}

func (s *TimetableService) store(ctx context.Context, result *dto.ImportResult) (importID string, err error) {
	statsJSON, marshalErr := json.Marshal(result.Stats)
	if marshalErr != nil {
		return "", appErrors.Wrap(marshalErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode expansion stats")
	}

	start := time.Now()
	defer func() { s.metrics.ObserveDBQuery("timetable_import_store", time.Since(start)) }()

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	record := &models.TimetableImport{
		PayloadHash:     result.PayloadHash,
		StatusCode:      result.Code,
		Message:         result.Message,
		OccurrenceCount: len(result.Occurrences),
		Stats:           types.JSONText(statsJSON),
	}
	if err = s.imports.Create(ctx, tx, record); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable import")
		return "", err
	}
	if err = s.occurrences.InsertBatch(ctx, tx, record.ID, result.Occurrences); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist course occurrences")
		return "", err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable import")
		return "", err
	}

	s.logger.Info("timetable import stored",
		zap.String("import_id", record.ID),
		zap.Int("occurrences", record.OccurrenceCount),
	)
	return record.ID, nil
}

func classifyExpansionError(err error) *appErrors.Error {
	var decodeErr *timetable.DecodeError
	if errors.As(err, &decodeErr) {
		return appErrors.Wrap(err, appErrors.ErrDecode.Code, appErrors.ErrDecode.Status, appErrors.ErrDecode.Message)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "timetable expansion cancelled")
	}
	return appErrors.FromError(err)
}

func normaliseRepoError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func itemError(err *appErrors.Error) *dto.ItemError {
	return &dto.ItemError{Code: err.Code, Message: err.Error()}
}

func payloadHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func nonNilOccurrences(occurrences []models.Occurrence) []models.Occurrence {
	if occurrences == nil {
		return []models.Occurrence{}
	}
	return occurrences
}
