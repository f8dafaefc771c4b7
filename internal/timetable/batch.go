package timetable

import (
	"context"

	"github.com/sourcegraph/conc/iter"

	"github.com/noah-isme/timetable-ingest/internal/models"
)

// DocumentResult is the expansion of one document in a batch.
type DocumentResult struct {
	Index       int
	Code        string
	Message     string
	Occurrences []models.Occurrence
	Stats       models.ExpansionStats
	Err         error
}

// ExpandDocuments decodes and expands documents concurrently with at most workers goroutines.
// Results are returned in input order; a failing document does not affect the others.
func (e *Expander) ExpandDocuments(ctx context.Context, docs [][]byte, workers int) []DocumentResult {
	if workers <= 0 {
		workers = 1
	}
	indexed := make([]int, len(docs))
	for i := range indexed {
		indexed[i] = i
	}
	mapper := iter.Mapper[int, DocumentResult]{MaxGoroutines: workers}
	return mapper.Map(indexed, func(i *int) DocumentResult {
		result := DocumentResult{Index: *i}
		if err := ctx.Err(); err != nil {
			result.Err = err
			return result
		}
		resp, err := Decode(docs[*i])
		if err != nil {
			result.Err = err
			return result
		}
		result.Code = resp.Code.String()
		result.Message = resp.Msg
		result.Occurrences, result.Stats = e.ExpandResponse(resp)
		return result
	})
}
