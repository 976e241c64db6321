package models

import (
	"time"

	"gorm.io/datatypes"
)

// User statuses accepted by the admin dashboard.
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// User represents a dashboard account. PasswordHash is never serialized.
type User struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	Name         string            `gorm:"size:255;not null" json:"name"`
	Email        string            `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string            `gorm:"size:255;not null" json:"-"`
	Role         string            `gorm:"size:32;not null;default:user" json:"role"`
	Status       string            `gorm:"size:32;not null;default:active" json:"status"`
	Preferences  datatypes.JSONMap `gorm:"type:json" json:"preferences"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}
