package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// CourseResponse is the envelope returned by the university timetable API.
type CourseResponse struct {
	Code  LooseString    `json:"code"`
	Msg   string         `json:"msg"`
	Datas *CoursePayload `json:"datas"`
}

// CoursePayload holds the three course lists of a timetable response.
type CoursePayload struct {
	ArrangedList   []RawCourseItem `json:"arrangedList"`
	NotArrangeList []RawCourseItem `json:"notArrangeList"`
	PracticeList   []RawCourseItem `json:"practiceList"`
	Code           LooseString     `json:"code"`
	Name           string          `json:"name"`
}

// Arranged returns the arranged course list, tolerating a nil payload.
func (r *CourseResponse) Arranged() []RawCourseItem {
	if r == nil || r.Datas == nil {
		return nil
	}
	return r.Datas.ArrangedList
}

// RawCourseItem is one schedule entry as delivered by the API.
type RawCourseItem struct {
	Week             LooseString       `json:"week"`
	CourseCode       LooseString       `json:"courseCode"`
	Credit           LooseString       `json:"credit"`
	CourseName       string            `json:"courseName"`
	ByCode           LooseString       `json:"byCode"`
	BeginSection     LooseInt          `json:"beginSection"`
	EndSection       LooseInt          `json:"endSection"`
	TitleDetail      []string          `json:"titleDetail"`
	MultiCourse      LooseString       `json:"multiCourse"`
	TeachClassName   string            `json:"teachClassName"`
	PlaceName        string            `json:"placeName"`
	TeachingTarget   string            `json:"teachingTarget"`
	WeeksAndTeachers string            `json:"weeksAndTeachers"`
	TeachClassID     LooseString       `json:"teachClassId"`
	CellDetail       []json.RawMessage `json:"cellDetail"`
	Tags             []string          `json:"tags"`
	CourseSerialNo   LooseString       `json:"courseSerialNo"`
	StartTime        string            `json:"startTime"`
	EndTime          string            `json:"endTime"`
	Color            string            `json:"color"`
	DayOfWeek        LooseInt          `json:"dayOfWeek"`
}

// LooseString accepts a JSON string, number, boolean or null and keeps its textual form.
// The API is inconsistent about quoting numeric fields such as credit.
type LooseString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *LooseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = LooseString(str)
		return nil
	}
	switch b[0] {
	case '{', '[':
		return fmt.Errorf("unexpected JSON value %s for scalar field", string(b))
	}
	*s = LooseString(b)
	return nil
}

// String returns the raw textual value.
func (s LooseString) String() string {
	return string(s)
}

// LooseInt accepts a JSON number, a quoted number or null.
type LooseInt int

// UnmarshalJSON implements json.Unmarshaler.
func (i *LooseInt) UnmarshalJSON(b []byte) error {
	var raw LooseString
	if err := raw.UnmarshalJSON(b); err != nil {
		return err
	}
	if raw == "" {
		*i = 0
		return nil
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		f, ferr := strconv.ParseFloat(string(raw), 64)
		if ferr != nil {
			return fmt.Errorf("parse integer field %q: %w", string(raw), err)
		}
		if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
			return fmt.Errorf("integer field %q is fractional or out of range", string(raw))
		}
		n = int(f)
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return fmt.Errorf("integer field %q is out of range", string(raw))
	}
	*i = LooseInt(n)
	return nil
}

// Int returns the value as an int.
func (i LooseInt) Int() int {
	return int(i)
}
