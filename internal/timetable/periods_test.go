package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodsAreOrdered(t *testing.T) {
	table := Periods()

	require.Len(t, table.Slots, PeriodCount)
	assert.Equal(t, DefaultInstitution, table.Institution)
	for i, slot := range table.Slots {
		assert.Equal(t, i+1, slot.Period)
		assert.Less(t, slot.StartTime, slot.EndTime, "period %d", slot.Period)
		if i > 0 {
			assert.LessOrEqual(t, table.Slots[i-1].EndTime, slot.StartTime, "period %d", slot.Period)
		}
	}
}

func TestPeriodsAreStable(t *testing.T) {
	first := Periods()
	first.Slots[0].StartTime = "00:00"
	assert.Equal(t, Periods().Slots[0].StartTime, "08:00")
	assert.Equal(t, Periods(), Periods())
}

func TestPeriodsBreaks(t *testing.T) {
	slots := Periods().Slots
	assert.Equal(t, "12:35", slots[4].EndTime)
	assert.Equal(t, "14:00", slots[5].StartTime)
	assert.Equal(t, "18:35", slots[9].EndTime)
	assert.Equal(t, "19:30", slots[10].StartTime)
}

func TestSlotFor(t *testing.T) {
	slot, ok := SlotFor(6)
	require.True(t, ok)
	assert.Equal(t, "14:00", slot.StartTime)

	_, ok = SlotFor(0)
	assert.False(t, ok)
	_, ok = SlotFor(15)
	assert.False(t, ok)
	assert.Equal(t, "campus", PeriodsFor("campus").Institution)
}
