package api

import (
	"encoding/json"
	"strings"

	"dailycraft/internal/diary"
	"dailycraft/internal/events"
	"dailycraft/internal/storage"
)

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status     string `json:"status"`
	Generating bool   `json:"generating"`
	OCR        string `json:"ocr"`
	Database   string `json:"database"`
	LastEvent  uint64 `json:"last_event"`
}

// RecentEventsResponse is returned by GET /api/events/recent.
type RecentEventsResponse struct {
	Items        []events.Event `json:"items"`
	LastSequence uint64         `json:"last_sequence"`
}

// GenerationResponse is a job snapshot plus the coordinator's running flag.
type GenerationResponse struct {
	diary.Job
	Running bool `json:"running"`
}

// GenerationRequest starts or runs a generation. ActivitiesJSON may be sent
// either as a JSON string or as a raw JSON value.
type GenerationRequest struct {
	ActivitiesJSON json.RawMessage `json:"activities_json"`
	Prompt         string          `json:"prompt"`
}

// NewGenerationRequest encodes activities as a JSON string field.
func NewGenerationRequest(activities, prompt string) GenerationRequest {
	encoded, _ := json.Marshal(activities)
	return GenerationRequest{ActivitiesJSON: encoded, Prompt: prompt}
}

// Input converts the request into coordinator input.
func (r GenerationRequest) Input() (diary.Input, bool) {
	raw := strings.TrimSpace(string(r.ActivitiesJSON))
	if raw == "" || raw == "null" {
		return diary.Input{}, false
	}
	var text string
	if err := json.Unmarshal(r.ActivitiesJSON, &text); err == nil {
		raw = text
	}
	if strings.TrimSpace(raw) == "" {
		return diary.Input{}, false
	}
	return diary.Input{ActivitiesJSON: raw, Prompt: r.Prompt}, true
}

// ContentResponse carries generated diary text.
type ContentResponse struct {
	Content string `json:"content"`
}

// ExtractRequest names the image to read. AppName labels the stored record
// with the application that was in focus when the image was captured.
type ExtractRequest struct {
	ImagePath string `json:"image_path"`
	AppName   string `json:"app_name,omitempty"`
}

// ExtractResponse carries the recognized text and, when the text was stored,
// the id of its record.
type ExtractResponse struct {
	Text     string `json:"text"`
	RecordID int64  `json:"record_id,omitempty"`
}

// OCRRecordListResponse wraps the records captured on one day.
type OCRRecordListResponse struct {
	Date  string              `json:"date"`
	Items []storage.OCRRecord `json:"items"`
}

// DiaryListResponse wraps stored diaries.
type DiaryListResponse struct {
	Items []storage.Entry `json:"items"`
}

// DiaryUpdateRequest replaces the content of one diary.
type DiaryUpdateRequest struct {
	Content string `json:"content"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
