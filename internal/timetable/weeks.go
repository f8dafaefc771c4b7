package timetable

import (
	"strconv"
	"strings"

	"github.com/noah-isme/timetable-ingest/internal/models"
)

const (
	weekGlyph     = "周"
	oddGlyph      = "单"
	evenGlyph     = "双"
	maxWeekDigits = 4
)

// ParseWeekAnnotation parses "[1-3周(单),5周]" into week rules in pattern order.
// Patterns that do not match the grammar are skipped and counted.
func ParseWeekAnnotation(annotation string) ([]models.WeekRule, int) {
	body := strings.TrimSpace(annotation)
	body = strings.TrimPrefix(body, "[")
	body = strings.TrimSuffix(body, "]")

	patterns := strings.Split(body, ",")
	rules := make([]models.WeekRule, 0, len(patterns))
	dropped := 0
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		rule, ok := ParseWeekPattern(pattern)
		if !ok {
			dropped++
			continue
		}
		rules = append(rules, rule)
	}
	return rules, dropped
}

// ParseWeekPattern matches a single pattern of the form
//
//	<start>[-<end>]周[(单|双)]
//
// The whole string must match. A missing end defaults to start and a missing
// parity marker means every week.
func ParseWeekPattern(pattern string) (models.WeekRule, bool) {
	sc := weekScanner{src: pattern}

	start, ok := sc.number()
	if !ok {
		return models.WeekRule{}, false
	}
	end := start
	if sc.literal("-") {
		if end, ok = sc.number(); !ok {
			return models.WeekRule{}, false
		}
	}
	if !sc.literal(weekGlyph) {
		return models.WeekRule{}, false
	}

	kind := models.RecurrenceAll
	if sc.literal("(") {
		switch {
		case sc.literal(oddGlyph):
			kind = models.RecurrenceOdd
		case sc.literal(evenGlyph):
			kind = models.RecurrenceEven
		default:
			return models.WeekRule{}, false
		}
		if !sc.literal(")") {
			return models.WeekRule{}, false
		}
	}
	if !sc.done() {
		return models.WeekRule{}, false
	}
	if start < 1 || end < start {
		return models.WeekRule{}, false
	}
	return models.WeekRule{StartWeek: start, EndWeek: end, Type: kind}, true
}

type weekScanner struct {
	src string
	pos int
}

func (s *weekScanner) number() (int, bool) {
	begin := s.pos
	for s.pos < len(s.src) && s.src[s.pos] >= '0' && s.src[s.pos] <= '9' {
		s.pos++
	}
	digits := s.src[begin:s.pos]
	if digits == "" || len(digits) > maxWeekDigits {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (s *weekScanner) literal(lit string) bool {
	if strings.HasPrefix(s.src[s.pos:], lit) {
		s.pos += len(lit)
		return true
	}
	return false
}

func (s *weekScanner) done() bool {
	return s.pos == len(s.src)
}
