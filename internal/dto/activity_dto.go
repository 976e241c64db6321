package dto

import (
	"time"

	"github.com/pulseboard/pulseboard-api/internal/models"
)

// Stream message discriminators understood by live feed consumers.
const (
	StreamTypeConnected = "connected"
	StreamTypeSnapshot  = "snapshotUpdate"
	StreamTypeDelta     = "deltaUpdate"
	StreamTypeError     = "error"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// ActivityRecordRequest is the ingest payload for a single activity event.
type ActivityRecordRequest struct {
	SubjectID    string `json:"subject_id" validate:"required,min=1,max=64"`
	SubjectName  string `json:"subject_name" validate:"required,min=1,max=255"`
	SubjectEmail string `json:"subject_email" validate:"required,email"`
	Action       string `json:"action" validate:"required"`
	Detail       string `json:"detail" validate:"omitempty,max=1024"`
}

// ActivityEventResponse serializes a stored event.
type ActivityEventResponse struct {
	ID           uint      `json:"id"`
	SubjectID    string    `json:"subject_id"`
	SubjectName  string    `json:"subject_name"`
	SubjectEmail string    `json:"subject_email"`
	Action       string    `json:"action"`
	Detail       string    `json:"detail,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// NewActivityEventResponse maps a model to its response form.
func NewActivityEventResponse(event models.ActivityEvent) ActivityEventResponse {
	return ActivityEventResponse{
		ID:           event.ID,
		SubjectID:    event.SubjectID,
		SubjectName:  event.SubjectName,
		SubjectEmail: event.SubjectEmail,
		Action:       event.Action,
		Detail:       event.Detail,
		OccurredAt:   event.OccurredAt,
	}
}

// NewActivityEventResponseSlice maps a batch of events.
func NewActivityEventResponseSlice(events []models.ActivityEvent) []ActivityEventResponse {
	responses := make([]ActivityEventResponse, 0, len(events))
	for _, event := range events {
		responses = append(responses, NewActivityEventResponse(event))
	}
	return responses
}

// DailyBucket is one calendar day of the trailing login window.
type DailyBucket struct {
	Day    string `json:"day"`
	Date   string `json:"date"`
	Logins int64  `json:"logins"`
}

// ActivitySnapshot is the full derived view pushed to live subscribers and
// served by the pull endpoint. Weekly always holds exactly one bucket per
// window day so the chart never collapses.
type ActivitySnapshot struct {
	TodayLogins int64                   `json:"today_logins"`
	Weekly      []DailyBucket           `json:"weekly"`
	Recent      []ActivityEventResponse `json:"recent"`
	GeneratedAt time.Time               `json:"generated_at"`
}

// StreamMessage is the envelope written to live feed subscribers.
type StreamMessage struct {
	Type      string                 `json:"type"`
	Message   string                 `json:"message,omitempty"`
	Snapshot  *ActivitySnapshot      `json:"snapshot,omitempty"`
	Event     *ActivityEventResponse `json:"event,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}
