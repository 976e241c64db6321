package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/pulseboard/pulseboard-api/internal/models"
)

// ActivityEventFilter narrows event store queries. Zero-value time bounds are
// treated as unbounded, an empty action set matches every action.
type ActivityEventFilter struct {
	Actions []string
	Since   time.Time
	Until   time.Time
	Limit   int
}

// ActivityEventRepository is the append-only event store. Events are never
// updated in place; Purge exists solely for the token-guarded demo seeder.
type ActivityEventRepository interface {
	Append(ctx context.Context, event *models.ActivityEvent) error
	Query(ctx context.Context, filter ActivityEventFilter) ([]models.ActivityEvent, error)
	Purge(ctx context.Context) error
}

type activityEventRepository struct {
	db *gorm.DB
}

// NewActivityEventRepository constructs the gorm-backed event store.
func NewActivityEventRepository(db *gorm.DB) ActivityEventRepository {
	return &activityEventRepository{db: db}
}

func (r *activityEventRepository) Append(ctx context.Context, event *models.ActivityEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(event).Error
}

// Query returns events newest first. Equal timestamps keep insertion order,
// which the recent feed relies on, so the secondary sort key is the
// monotonically assigned id.
func (r *activityEventRepository) Query(ctx context.Context, filter ActivityEventFilter) ([]models.ActivityEvent, error) {
	query := r.db.WithContext(ctx).Model(&models.ActivityEvent{})

	if len(filter.Actions) > 0 {
		query = query.Where("action IN ?", filter.Actions)
	}
	if !filter.Since.IsZero() {
		query = query.Where("occurred_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		query = query.Where("occurred_at < ?", filter.Until)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var events []models.ActivityEvent
	if err := query.Order("occurred_at DESC, id ASC").Find(&events).Error; err != nil {
		return nil, err
	}

	return events, nil
}

func (r *activityEventRepository) Purge(ctx context.Context) error {
	return r.db.WithContext(ctx).Where("1 = 1").Delete(&models.ActivityEvent{}).Error
}
