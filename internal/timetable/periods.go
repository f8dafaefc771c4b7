package timetable

import "github.com/noah-isme/timetable-ingest/internal/models"

// DefaultInstitution labels the built-in period table.
const DefaultInstitution = "default"

// PeriodCount is the number of daily periods.
const PeriodCount = 14

// periodTable has a midday break after period 5 and a dinner break after period 10.
var periodTable = [PeriodCount]models.TimeSlot{
	{Period: 1, StartTime: "08:00", EndTime: "08:45"},
	{Period: 2, StartTime: "08:55", EndTime: "09:40"},
	{Period: 3, StartTime: "10:00", EndTime: "10:45"},
	{Period: 4, StartTime: "10:55", EndTime: "11:40"},
	{Period: 5, StartTime: "11:50", EndTime: "12:35"},
	{Period: 6, StartTime: "14:00", EndTime: "14:45"},
	{Period: 7, StartTime: "14:55", EndTime: "15:40"},
	{Period: 8, StartTime: "16:00", EndTime: "16:45"},
	{Period: 9, StartTime: "16:55", EndTime: "17:40"},
	{Period: 10, StartTime: "17:50", EndTime: "18:35"},
	{Period: 11, StartTime: "19:30", EndTime: "20:15"},
	{Period: 12, StartTime: "20:25", EndTime: "21:10"},
	{Period: 13, StartTime: "21:20", EndTime: "22:05"},
	{Period: 14, StartTime: "22:15", EndTime: "23:00"},
}

// Periods returns the period table under DefaultInstitution.
func Periods() models.TimeTable {
	return PeriodsFor(DefaultInstitution)
}

// PeriodsFor returns the period table labelled with the given institution.
func PeriodsFor(institution string) models.TimeTable {
	if institution == "" {
		institution = DefaultInstitution
	}
	slots := make([]models.TimeSlot, PeriodCount)
	copy(slots, periodTable[:])
	return models.TimeTable{Institution: institution, Slots: slots}
}

// SlotFor looks up a single period.
func SlotFor(period int) (models.TimeSlot, bool) {
	if period < 1 || period > PeriodCount {
		return models.TimeSlot{}, false
	}
	return periodTable[period-1], true
}
