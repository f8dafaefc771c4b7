package timetable

import (
	"math"
	"strings"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-ingest/internal/models"
)

const noteIndex = 8

// Expander turns raw course items into normalized occurrences.
type Expander struct {
	locator AnnotationLocator
	logger  *zap.Logger
}

// NewExpander wires an expander. A nil locator reads titleDetail with DefaultMarker.
func NewExpander(locator AnnotationLocator, logger *zap.Logger) *Expander {
	if locator == nil {
		locator = NewTitleDetailLocator(DefaultMarker)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Expander{locator: locator, logger: logger}
}

// Expand returns the occurrences of a single item.
func (e *Expander) Expand(item models.RawCourseItem) []models.Occurrence {
	occurrences, _ := e.ExpandItem(item)
	return occurrences
}

// ExpandItem returns the occurrences of a single item together with what was absorbed on the way.
func (e *Expander) ExpandItem(item models.RawCourseItem) ([]models.Occurrence, models.ExpansionStats) {
	stats := models.ExpansionStats{Items: 1}

	annotation, ok := e.locator.Locate(item)
	if !ok {
		stats.MissingAnnotation++
		e.logger.Debug("course item without teacher annotation", zap.String("course", item.CourseName))
		return nil, stats
	}

	blocks, droppedBlocks := SplitTeacherBlocks(annotation)
	stats.DroppedBlocks += droppedBlocks
	if droppedBlocks > 0 {
		e.logger.Debug("dropped malformed teacher blocks",
			zap.String("course", item.CourseName),
			zap.Int("count", droppedBlocks),
		)
	}

	credit, creditOK := parseCredit(item.Credit.String())
	if !creditOK {
		stats.MalformedCredits++
	}
	template := models.Occurrence{
		Name:        item.CourseName,
		Day:         item.DayOfWeek.Int(),
		Room:        item.PlaceName,
		StartPeriod: item.BeginSection.Int(),
		EndPeriod:   item.EndSection.Int(),
		Credit:      credit,
		Note:        noteOf(item),
		StartTime:   item.StartTime,
		EndTime:     item.EndTime,
	}

	var occurrences []models.Occurrence
	for _, block := range blocks {
		rules, droppedPatterns := ParseWeekAnnotation(block.Weeks)
		stats.DroppedPatterns += droppedPatterns
		if droppedPatterns > 0 {
			e.logger.Debug("dropped malformed week patterns",
				zap.String("course", item.CourseName),
				zap.String("teacher", block.Teacher),
				zap.String("weeks", block.Weeks),
				zap.Int("count", droppedPatterns),
			)
		}
		for _, rule := range rules {
			occ := template
			occ.Teacher = block.Teacher
			occ.StartWeek = rule.StartWeek
			occ.EndWeek = rule.EndWeek
			occ.Type = rule.Type
			occurrences = append(occurrences, occ)
		}
	}
	stats.Occurrences = len(occurrences)
	return occurrences, stats
}

// ExpandAll expands items in order and concatenates their occurrences.
func (e *Expander) ExpandAll(items []models.RawCourseItem) ([]models.Occurrence, models.ExpansionStats) {
	var stats models.ExpansionStats
	occurrences := make([]models.Occurrence, 0, len(items))
	for _, item := range items {
		itemOccurrences, itemStats := e.ExpandItem(item)
		occurrences = append(occurrences, itemOccurrences...)
		stats.Add(itemStats)
	}
	return occurrences, stats
}

// ExpandResponse expands the arranged list of a decoded response.
func (e *Expander) ExpandResponse(resp *models.CourseResponse) ([]models.Occurrence, models.ExpansionStats) {
	return e.ExpandAll(resp.Arranged())
}

// ExpandDocument decodes a raw document and expands its arranged list.
// Only a DecodeError is returned; every per-record anomaly is absorbed.
func (e *Expander) ExpandDocument(raw []byte) ([]models.Occurrence, models.ExpansionStats, error) {
	resp, err := Decode(raw)
	if err != nil {
		return nil, models.ExpansionStats{}, err
	}
	occurrences, stats := e.ExpandResponse(resp)
	return occurrences, stats, nil
}

// parseCredit coerces the credit text to a float. Blank credits are treated as zero
// without being reported as malformed.
func parseCredit(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, true
	}
	value, err := cast.ToFloat64E(raw)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}

func noteOf(item models.RawCourseItem) string {
	if len(item.TitleDetail) > noteIndex {
		return item.TitleDetail[noteIndex]
	}
	return ""
}
