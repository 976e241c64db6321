package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pulseboard/pulseboard-api/internal/dto"
	"github.com/pulseboard/pulseboard-api/internal/models"
	"github.com/pulseboard/pulseboard-api/internal/observability"
	"github.com/pulseboard/pulseboard-api/internal/repository"
)

var (
	// ErrStoreUnavailable wraps event store failures so handlers can fall
	// back to an empty, still-renderable view.
	ErrStoreUnavailable = errors.New("activity store unavailable")
	// ErrUnknownAction indicates the ingest payload carried an action
	// outside the accepted set.
	ErrUnknownAction = errors.New("unknown activity action")
	// ErrSeedDisabled indicates the seeding tools are disabled by configuration.
	ErrSeedDisabled = errors.New("seeding is disabled")
	// ErrSeedUnauthorized indicates the provided token is invalid.
	ErrSeedUnauthorized = errors.New("invalid seed token")
)

const snapshotCacheKey = "activities:snapshot:v1"

// DeltaBroadcaster receives freshly stored events for live fan-out. The
// ingest path treats broadcast failures as non-fatal.
type DeltaBroadcaster interface {
	BroadcastDelta(event dto.ActivityEventResponse) error
}

// ActivityRecorder is the narrow interface handed to the auth and user flows
// that merely need to log what happened.
type ActivityRecorder interface {
	Record(ctx context.Context, req dto.ActivityRecordRequest) (dto.ActivityEventResponse, error)
}

// ActivityService exposes the ingest path and the synchronous pull queries
// over the activity log.
type ActivityService interface {
	ActivityRecorder
	Snapshot(ctx context.Context) (dto.ActivitySnapshot, error)
	WeeklyLogins(ctx context.Context) ([]dto.DailyBucket, error)
	Recent(ctx context.Context) ([]dto.ActivityEventResponse, error)
	List(ctx context.Context) ([]dto.ActivityEventResponse, error)
	Seed(ctx context.Context, token string) (int, error)
}

type activityService struct {
	repo        repository.ActivityEventRepository
	broadcaster DeltaBroadcaster
	cache       *redis.Client
	cacheTTL    time.Duration
	windowDays  int
	recentLimit int
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
	seedEnabled bool
	seedToken   string
	now         func() time.Time
}

// ActivityServiceConfig bundles the knobs for the activity service.
type ActivityServiceConfig struct {
	CacheTTL    time.Duration
	WindowDays  int
	RecentLimit int
	SeedEnabled bool
	SeedToken   string
}

// NewActivityService constructs the ingest and pull-query service. The
// broadcaster may be nil, in which case stored events are simply not pushed.
func NewActivityService(repo repository.ActivityEventRepository, broadcaster DeltaBroadcaster, cache *redis.Client, cfg ActivityServiceConfig, validate *validator.Validate, logger zerolog.Logger) ActivityService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Second
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = defaultWindowDays
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = defaultRecentLimit
	}

	return &activityService{
		repo:        repo,
		broadcaster: broadcaster,
		cache:       cache,
		cacheTTL:    cfg.CacheTTL,
		windowDays:  cfg.WindowDays,
		recentLimit: cfg.RecentLimit,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "activity_service").Logger(),
		tracer:      otel.Tracer("github.com/pulseboard/pulseboard-api/internal/service"),
		seedEnabled: cfg.SeedEnabled,
		seedToken:   cfg.SeedToken,
		now:         time.Now,
	}
}

func (s *activityService) Record(ctx context.Context, req dto.ActivityRecordRequest) (dto.ActivityEventResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ActivityEventResponse{}, err
	}

	action := strings.ToLower(strings.TrimSpace(req.Action))
	if !models.IsKnownAction(action) {
		return dto.ActivityEventResponse{}, fmt.Errorf("%w: %s", ErrUnknownAction, req.Action)
	}

	spanCtx, span := s.tracer.Start(ctx, "activity.record", trace.WithAttributes(
		attribute.String("activity.action", action),
		attribute.String("activity.subject_id", req.SubjectID),
	))
	defer span.End()

	event := models.ActivityEvent{
		SubjectID:    strings.TrimSpace(req.SubjectID),
		SubjectName:  strings.TrimSpace(req.SubjectName),
		SubjectEmail: strings.ToLower(strings.TrimSpace(req.SubjectEmail)),
		Action:       action,
		Detail:       strings.TrimSpace(s.sanitizer.Sanitize(req.Detail)),
		OccurredAt:   s.now().UTC(),
	}

	if err := s.repo.Append(spanCtx, &event); err != nil {
		span.RecordError(err)
		s.logger.Error().Err(err).Str("action", action).Msg("failed to append activity event")
		return dto.ActivityEventResponse{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	observability.EventsIngested().WithLabelValues(action).Inc()
	s.invalidateSnapshotCache(spanCtx)

	response := dto.NewActivityEventResponse(event)
	if s.broadcaster != nil {
		// A dead hub must never fail the business action that produced
		// the event, e.g. a completed login.
		if err := s.broadcaster.BroadcastDelta(response); err != nil {
			s.logger.Warn().Err(err).Uint("event_id", event.ID).Msg("failed to broadcast activity delta")
		}
	}

	return response, nil
}

func (s *activityService) Snapshot(ctx context.Context) (dto.ActivitySnapshot, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, snapshotCacheKey).Result(); err == nil && cached != "" {
			var snapshot dto.ActivitySnapshot
			if err := json.Unmarshal([]byte(cached), &snapshot); err == nil {
				return snapshot, nil
			}
		}
	}

	now := s.now()
	snapshot, err := loadSnapshot(ctx, s.repo, now, s.windowDays, s.recentLimit)
	if err != nil {
		// Zero-filled fallback keeps the dashboard chart renderable.
		return emptySnapshot(now, s.windowDays), fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if s.cache != nil {
		if payload, err := json.Marshal(snapshot); err == nil {
			if err := s.cache.Set(ctx, snapshotCacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to write snapshot cache")
			}
		}
	}

	return snapshot, nil
}

func (s *activityService) WeeklyLogins(ctx context.Context) ([]dto.DailyBucket, error) {
	snapshot, err := s.Snapshot(ctx)
	return snapshot.Weekly, err
}

func (s *activityService) Recent(ctx context.Context) ([]dto.ActivityEventResponse, error) {
	snapshot, err := s.Snapshot(ctx)
	return snapshot.Recent, err
}

func (s *activityService) List(ctx context.Context) ([]dto.ActivityEventResponse, error) {
	events, err := s.repo.Query(ctx, repository.ActivityEventFilter{})
	if err != nil {
		return []dto.ActivityEventResponse{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return dto.NewActivityEventResponseSlice(events), nil
}

// Seed wipes the event store and repopulates it with demo traffic spread over
// the trailing week. Guarded by a shared token so it never runs in production
// by accident.
func (s *activityService) Seed(ctx context.Context, token string) (int, error) {
	if !s.seedEnabled {
		return 0, ErrSeedDisabled
	}
	if !s.validateSeedToken(token) {
		return 0, ErrSeedUnauthorized
	}

	if err := s.repo.Purge(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	s.invalidateSnapshotCache(ctx)

	now := s.now().UTC()
	seeded := 0
	for _, event := range sampleEvents(now) {
		event := event
		if err := s.repo.Append(ctx, &event); err != nil {
			return seeded, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		seeded++
	}

	s.logger.Info().Int("seeded", seeded).Msg("activity events seeded")
	return seeded, nil
}

// invalidateSnapshotCache drops the cached pull view after any write. Pull
// consumers must observe exactly what the hub would aggregate at that
// instant, so a stale snapshot may never outlive an ingest.
func (s *activityService) invalidateSnapshotCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, snapshotCacheKey).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate snapshot cache")
	}
}

func (s *activityService) validateSeedToken(token string) bool {
	expected := strings.TrimSpace(s.seedToken)
	if expected == "" {
		return false
	}
	provided := strings.TrimSpace(token)
	if len(expected) != len(provided) {
		return false
	}
	mismatch := byte(0)
	for i := 0; i < len(expected); i++ {
		mismatch |= expected[i] ^ provided[i]
	}
	return mismatch == 0
}

func emptySnapshot(now time.Time, windowDays int) dto.ActivitySnapshot {
	return dto.ActivitySnapshot{
		TodayLogins: 0,
		Weekly:      WeeklyLoginBuckets(nil, now, windowDays),
		Recent:      []dto.ActivityEventResponse{},
		GeneratedAt: now,
	}
}

type seedSubject struct {
	id    string
	name  string
	email string
}

var seedSubjects = []seedSubject{
	{"user-1", "John Doe", "john.doe@example.com"},
	{"user-2", "Jane Smith", "jane.smith@example.com"},
	{"admin-1", "Admin User", "admin@company.com"},
	{"user-3", "Bob Johnson", "bob.johnson@example.com"},
}

func sampleEvents(now time.Time) []models.ActivityEvent {
	events := []models.ActivityEvent{
		{Action: models.ActionLogin, Detail: "Login from Chrome browser", OccurredAt: now.Add(-2 * time.Minute)},
		{Action: models.ActionCreated, Detail: "New user account created", OccurredAt: now.Add(-5 * time.Minute)},
		{Action: models.ActionLogin, Detail: "Admin dashboard access", OccurredAt: now.Add(-12 * time.Minute)},
		{Action: models.ActionUpdated, Detail: "Profile information updated", OccurredAt: now.Add(-time.Hour)},
		{Action: models.ActionViewed, Detail: "Viewed user dashboard", OccurredAt: now.Add(-2 * time.Hour)},
	}
	for i := range events {
		subject := seedSubjects[i%len(seedSubjects)]
		events[i].SubjectID = subject.id
		events[i].SubjectName = subject.name
		events[i].SubjectEmail = subject.email
	}

	// A few logins on each prior day keep the weekly chart populated.
	for day := 1; day < defaultWindowDays; day++ {
		logins := (day % 3) + 1
		for n := 0; n < logins; n++ {
			subject := seedSubjects[(day+n)%len(seedSubjects)]
			events = append(events, models.ActivityEvent{
				SubjectID:    subject.id,
				SubjectName:  subject.name,
				SubjectEmail: subject.email,
				Action:       models.ActionLogin,
				Detail:       "Seeded login",
				OccurredAt:   now.AddDate(0, 0, -day).Add(time.Duration(n) * time.Hour),
			})
		}
	}

	return events
}
