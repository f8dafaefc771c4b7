package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-ingest/internal/models"
)

const samplePayload = `{
  "code": "0",
  "msg": "success",
  "datas": {
    "code": "2024-2025-1",
    "name": "课表",
    "arrangedList": [
      {
        "courseName": "高等数学",
        "courseCode": "MATH101",
        "credit": "4.5",
        "dayOfWeek": 3,
        "placeName": "A101",
        "beginSection": 6,
        "endSection": 7,
        "startTime": "14:00",
        "endTime": "15:40",
        "titleDetail": [
          "高等数学",
          "MATH101",
          "教学人员：张三/[1-3周,5周]/6-7节 李四/[6-10周(双)]/6-7节",
          "A101",
          "x", "x", "x", "x",
          "期中考试第9周"
        ]
      },
      {
        "courseName": "体育",
        "credit": "1",
        "dayOfWeek": 5,
        "placeName": "操场",
        "beginSection": 1,
        "endSection": 2,
        "titleDetail": ["体育", "无教师信息"]
      }
    ],
    "notArrangeList": [{"courseName": "毕业设计"}],
    "practiceList": []
  }
}`

func newItem(credit string, details ...string) models.RawCourseItem {
	return models.RawCourseItem{
		CourseName:   "数据结构",
		DayOfWeek:    2,
		PlaceName:    "B203",
		BeginSection: 3,
		EndSection:   4,
		Credit:       models.LooseString(credit),
		StartTime:    "10:00",
		EndTime:      "11:40",
		TitleDetail:  details,
	}
}

func TestExpandDocumentSample(t *testing.T) {
	expander := NewExpander(nil, nil)

	occurrences, stats, err := expander.ExpandDocument([]byte(samplePayload))
	require.NoError(t, err)
	require.Len(t, occurrences, 3)

	base := models.Occurrence{
		Name:        "高等数学",
		Day:         3,
		Room:        "A101",
		StartPeriod: 6,
		EndPeriod:   7,
		Credit:      4.5,
		Note:        "期中考试第9周",
		StartTime:   "14:00",
		EndTime:     "15:40",
	}
	want := []models.Occurrence{base, base, base}
	want[0].Teacher, want[0].StartWeek, want[0].EndWeek, want[0].Type = "张三", 1, 3, models.RecurrenceAll
	want[1].Teacher, want[1].StartWeek, want[1].EndWeek, want[1].Type = "张三", 5, 5, models.RecurrenceAll
	want[2].Teacher, want[2].StartWeek, want[2].EndWeek, want[2].Type = "李四", 6, 10, models.RecurrenceEven
	assert.Equal(t, want, occurrences)

	assert.Equal(t, 2, stats.Items)
	assert.Equal(t, 3, stats.Occurrences)
	assert.Equal(t, 1, stats.MissingAnnotation)
}

func TestExpandItemWithoutAnnotation(t *testing.T) {
	expander := NewExpander(nil, nil)

	occurrences, stats := expander.ExpandItem(newItem("2", "数据结构", "教学班：1班"))
	assert.Empty(t, occurrences)
	assert.Equal(t, 1, stats.MissingAnnotation)
}

func TestExpandItemCountMatchesRetainedPatterns(t *testing.T) {
	expander := NewExpander(nil, nil)
	item := newItem("3", "教学人员：甲/[1-8周,x周,10周(单)]/3-4节 乙 丙/[2-4周(双)] 丁/[坏]/3-4节")

	occurrences, stats := expander.ExpandItem(item)

	// 甲: 2 valid patterns, 乙 dropped, 丙: 1, 丁: 0
	require.Len(t, occurrences, 3)
	assert.Equal(t, "甲", occurrences[0].Teacher)
	assert.Equal(t, 1, occurrences[0].StartWeek)
	assert.Equal(t, "甲", occurrences[1].Teacher)
	assert.Equal(t, models.RecurrenceOdd, occurrences[1].Type)
	assert.Equal(t, "丙", occurrences[2].Teacher)
	assert.Equal(t, models.RecurrenceEven, occurrences[2].Type)
	assert.Equal(t, 1, stats.DroppedBlocks)
	assert.Equal(t, 2, stats.DroppedPatterns)
}

func TestExpandItemCredit(t *testing.T) {
	expander := NewExpander(nil, nil)

	occurrences, stats := expander.ExpandItem(newItem("abc", "教学人员：甲/[1周]"))
	require.Len(t, occurrences, 1)
	assert.Equal(t, 0.0, occurrences[0].Credit)
	assert.Equal(t, 1, stats.MalformedCredits)

	occurrences, stats = expander.ExpandItem(newItem("2.5", "教学人员：甲/[1周]"))
	require.Len(t, occurrences, 1)
	assert.Equal(t, 2.5, occurrences[0].Credit)
	assert.Zero(t, stats.MalformedCredits)

	occurrences, _ = expander.ExpandItem(newItem("", "教学人员：甲/[1周]"))
	require.Len(t, occurrences, 1)
	assert.Equal(t, 0.0, occurrences[0].Credit)
}

func TestExpandItemNote(t *testing.T) {
	expander := NewExpander(nil, nil)

	occurrences := expander.Expand(newItem("1", "教学人员：甲/[1周]"))
	require.Len(t, occurrences, 1)
	assert.Equal(t, "", occurrences[0].Note)

	details := []string{"教学人员：甲/[1周]", "1", "2", "3", "4", "5", "6", "7", "调课"}
	occurrences = expander.Expand(newItem("1", details...))
	require.Len(t, occurrences, 1)
	assert.Equal(t, "调课", occurrences[0].Note)
}

func TestExpandItemUsesFirstMarkerEntry(t *testing.T) {
	expander := NewExpander(nil, nil)
	occurrences := expander.Expand(newItem("1", "教学人员：甲/[1周]", "教学人员：乙/[2周]"))
	require.Len(t, occurrences, 1)
	assert.Equal(t, "甲", occurrences[0].Teacher)
}

type staticLocator string

func (l staticLocator) Locate(models.RawCourseItem) (string, bool) {
	return string(l), l != ""
}

func TestExpanderCustomLocator(t *testing.T) {
	expander := NewExpander(staticLocator("王老师/[3-4周]"), nil)
	occurrences := expander.Expand(models.RawCourseItem{CourseName: "英语"})
	require.Len(t, occurrences, 1)
	assert.Equal(t, "王老师", occurrences[0].Teacher)
	assert.Equal(t, 3, occurrences[0].StartWeek)
	assert.Equal(t, 4, occurrences[0].EndWeek)
}

func TestTitleDetailLocatorCustomMarker(t *testing.T) {
	locator := NewTitleDetailLocator("Teachers: ")
	rest, ok := locator.Locate(models.RawCourseItem{TitleDetail: []string{"x", "Teachers: Smith/[1周]"}})
	require.True(t, ok)
	assert.Equal(t, "Smith/[1周]", rest)
}

func TestExpandDocumentMalformedJSON(t *testing.T) {
	expander := NewExpander(nil, nil)
	occurrences, _, err := expander.ExpandDocument([]byte(`{"datas":`))
	require.Error(t, err)
	assert.Nil(t, occurrences)
}

func TestExpandDocumentEmptyArrangedList(t *testing.T) {
	expander := NewExpander(nil, nil)
	occurrences, stats, err := expander.ExpandDocument([]byte(`{"code":"0","datas":{"arrangedList":[]}}`))
	require.NoError(t, err)
	assert.Empty(t, occurrences)
	assert.Zero(t, stats.Items)
}
