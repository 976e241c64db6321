package models

import "time"

// Activity actions form a closed set; anything else is rejected at ingestion.
const (
	ActionLogin          = "login"
	ActionLogout         = "logout"
	ActionCreated        = "created"
	ActionUpdated        = "updated"
	ActionDeleted        = "deleted"
	ActionViewed         = "viewed"
	ActionPasswordChange = "password_change"
)

// KnownActions lists every accepted activity action.
var KnownActions = []string{
	ActionLogin,
	ActionLogout,
	ActionCreated,
	ActionUpdated,
	ActionDeleted,
	ActionViewed,
	ActionPasswordChange,
}

// ActivityEvent is one immutable entry in the append-only activity log. The
// subject fields are denormalized at write time so the event stays renderable
// after the user record changes or disappears.
type ActivityEvent struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubjectID    string    `gorm:"size:64;not null;index" json:"subject_id"`
	SubjectName  string    `gorm:"size:255;not null" json:"subject_name"`
	SubjectEmail string    `gorm:"size:255;not null" json:"subject_email"`
	Action       string    `gorm:"size:32;not null;index" json:"action"`
	Detail       string    `gorm:"size:1024" json:"detail,omitempty"`
	OccurredAt   time.Time `gorm:"not null;index" json:"occurred_at"`
}

// IsKnownAction reports whether the action belongs to the accepted set.
func IsKnownAction(action string) bool {
	for _, known := range KnownActions {
		if action == known {
			return true
		}
	}
	return false
}
