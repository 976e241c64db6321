package dto

import (
	"time"

	"github.com/pulseboard/pulseboard-api/internal/models"
)

// UserResponse serializes a dashboard account without credentials.
type UserResponse struct {
	ID          uint                   `json:"id"`
	Name        string                 `json:"name"`
	Email       string                 `json:"email"`
	Role        string                 `json:"role"`
	Status      string                 `json:"status"`
	Preferences map[string]interface{} `json:"preferences,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// NewUserResponse maps a user model to its response form.
func NewUserResponse(user models.User) UserResponse {
	return UserResponse{
		ID:          user.ID,
		Name:        user.Name,
		Email:       user.Email,
		Role:        user.Role,
		Status:      user.Status,
		Preferences: map[string]interface{}(user.Preferences),
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}

// UserListRequest defines filters for listing users.
type UserListRequest struct {
	Page     int
	PageSize int
	Search   string
	Status   string
}

// UserListResponse wraps a paginated user listing.
type UserListResponse struct {
	Items      []UserResponse `json:"items"`
	Pagination PaginationMeta `json:"pagination"`
}

// UserCreateRequest captures the payload for creating an account.
type UserCreateRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"omitempty,oneof=admin user"`
}

// UserUpdateRequest captures partial account updates.
type UserUpdateRequest struct {
	Name        *string                `json:"name" validate:"omitempty,min=1,max=255"`
	Email       *string                `json:"email" validate:"omitempty,email"`
	Role        *string                `json:"role" validate:"omitempty,oneof=admin user"`
	Status      *string                `json:"status" validate:"omitempty,oneof=active inactive"`
	Preferences map[string]interface{} `json:"preferences"`
}
