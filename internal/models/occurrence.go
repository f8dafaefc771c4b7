package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// RecurrenceType describes which weeks of a range an occurrence meets in.
type RecurrenceType string

const (
	RecurrenceAll  RecurrenceType = "ALL"
	RecurrenceOdd  RecurrenceType = "ODD"
	RecurrenceEven RecurrenceType = "EVEN"
)

// Valid reports whether the recurrence type is known.
func (t RecurrenceType) Valid() bool {
	switch t {
	case RecurrenceAll, RecurrenceOdd, RecurrenceEven:
		return true
	}
	return false
}

// WeekRule is a parsed week range with its parity.
type WeekRule struct {
	StartWeek int            `json:"start_week"`
	EndWeek   int            `json:"end_week"`
	Type      RecurrenceType `json:"type"`
}

// Contains reports whether the rule is active in the given teaching week.
func (r WeekRule) Contains(week int) bool {
	if week < r.StartWeek || week > r.EndWeek {
		return false
	}
	switch r.Type {
	case RecurrenceOdd:
		return week%2 == 1
	case RecurrenceEven:
		return week%2 == 0
	default:
		return true
	}
}

// Weeks enumerates the concrete weeks covered by the rule.
func (r WeekRule) Weeks() []int {
	if r.EndWeek < r.StartWeek {
		return nil
	}
	weeks := make([]int, 0, r.EndWeek-r.StartWeek+1)
	for w := r.StartWeek; w <= r.EndWeek; w++ {
		if r.Contains(w) {
			weeks = append(weeks, w)
		}
	}
	return weeks
}

// Occurrence is one normalized course meeting pattern for a single teacher and week rule.
type Occurrence struct {
	Name        string         `db:"name" json:"name"`
	Day         int            `db:"day_of_week" json:"day"`
	Room        string         `db:"room" json:"room"`
	Teacher     string         `db:"teacher" json:"teacher"`
	StartPeriod int            `db:"start_period" json:"start_period"`
	EndPeriod   int            `db:"end_period" json:"end_period"`
	StartWeek   int            `db:"start_week" json:"start_week"`
	EndWeek     int            `db:"end_week" json:"end_week"`
	Type        RecurrenceType `db:"recurrence" json:"type"`
	Credit      float64        `db:"credit" json:"credit"`
	Note        string         `db:"note" json:"note"`
	StartTime   string         `db:"start_time" json:"start_time"`
	EndTime     string         `db:"end_time" json:"end_time"`
}

// Rule returns the week rule carried by the occurrence.
func (o Occurrence) Rule() WeekRule {
	return WeekRule{StartWeek: o.StartWeek, EndWeek: o.EndWeek, Type: o.Type}
}

// ActiveIn reports whether the occurrence meets in the given week.
func (o Occurrence) ActiveIn(week int) bool {
	return o.Rule().Contains(week)
}

// ExpansionStats counts records absorbed while expanding a document.
type ExpansionStats struct {
	Items             int `json:"items"`
	Occurrences       int `json:"occurrences"`
	MissingAnnotation int `json:"missing_annotation"`
	DroppedBlocks     int `json:"dropped_blocks"`
	DroppedPatterns   int `json:"dropped_patterns"`
	MalformedCredits  int `json:"malformed_credits"`
}

// Add accumulates another set of counters.
func (s *ExpansionStats) Add(other ExpansionStats) {
	s.Items += other.Items
	s.Occurrences += other.Occurrences
	s.MissingAnnotation += other.MissingAnnotation
	s.DroppedBlocks += other.DroppedBlocks
	s.DroppedPatterns += other.DroppedPatterns
	s.MalformedCredits += other.MalformedCredits
}

// TimetableImport records one ingested document.
type TimetableImport struct {
	ID              string         `db:"id" json:"id"`
	PayloadHash     string         `db:"payload_hash" json:"payload_hash"`
	StatusCode      string         `db:"status_code" json:"status_code"`
	Message         string         `db:"message" json:"message"`
	OccurrenceCount int            `db:"occurrence_count" json:"occurrence_count"`
	Stats           types.JSONText `db:"stats" json:"stats"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
}

// StoredOccurrence is an occurrence persisted under an import.
type StoredOccurrence struct {
	ID       string `db:"id" json:"id"`
	ImportID string `db:"import_id" json:"import_id"`
	Position int    `db:"position" json:"position"`
	Occurrence
}

// OccurrenceFilter narrows stored occurrence listings.
type OccurrenceFilter struct {
	ImportID string
	Day      int
	Teacher  string
	Week     int
}

// TimeSlot is one of the institution's fixed daily periods.
type TimeSlot struct {
	Period    int    `json:"period"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// TimeTable is the static period table of an institution.
type TimeTable struct {
	Institution string     `json:"institution"`
	Slots       []TimeSlot `json:"slots"`
}
