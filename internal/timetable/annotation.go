package timetable

import (
	"strings"

	"github.com/noah-isme/timetable-ingest/internal/models"
)

// DefaultMarker prefixes the title detail entry that lists teachers and their weeks.
const DefaultMarker = "教学人员："

// AnnotationLocator finds the teacher/week annotation of a raw course item.
type AnnotationLocator interface {
	Locate(item models.RawCourseItem) (string, bool)
}

// TitleDetailLocator reads the annotation from the titleDetail list.
type TitleDetailLocator struct {
	Marker string
}

// NewTitleDetailLocator builds a locator for the given marker, falling back to DefaultMarker.
func NewTitleDetailLocator(marker string) TitleDetailLocator {
	if marker == "" {
		marker = DefaultMarker
	}
	return TitleDetailLocator{Marker: marker}
}

// Locate returns the text after the marker of the first matching entry.
func (l TitleDetailLocator) Locate(item models.RawCourseItem) (string, bool) {
	marker := l.Marker
	if marker == "" {
		marker = DefaultMarker
	}
	for _, detail := range item.TitleDetail {
		if rest, ok := strings.CutPrefix(detail, marker); ok {
			return rest, true
		}
	}
	return "", false
}
