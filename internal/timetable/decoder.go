package timetable

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/noah-isme/timetable-ingest/internal/models"
)

// ErrEmptyDocument is returned for blank or null documents.
var ErrEmptyDocument = errors.New("empty document")

// DecodeError reports a document that is not valid JSON or does not match the response schema.
type DecodeError struct {
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e == nil || e.Err == nil {
		return "decode timetable response"
	}
	return fmt.Sprintf("decode timetable response: %v", e.Err)
}

// Unwrap returns the underlying decoder error.
func (e *DecodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Decode parses a raw timetable response. A null or missing datas object and missing
// course lists decode to an empty response rather than an error.
func Decode(raw []byte) (*models.CourseResponse, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, &DecodeError{Err: ErrEmptyDocument}
	}

	var resp models.CourseResponse
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if resp.Datas == nil {
		resp.Datas = &models.CoursePayload{}
	}
	return &resp, nil
}
