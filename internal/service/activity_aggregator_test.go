package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pulseboard/pulseboard-api/internal/models"
)

func TestWeeklyLoginBucketsZeroFilled(t *testing.T) {
	now := time.Date(2026, 8, 31, 15, 0, 0, 0, time.UTC)

	buckets := WeeklyLoginBuckets(nil, now, 7)
	require.Len(t, buckets, 7)
	require.Equal(t, "2026-08-25", buckets[0].Date)
	require.Equal(t, "2026-08-31", buckets[6].Date)
	require.Equal(t, "Mon", buckets[6].Day)
	for _, bucket := range buckets {
		require.Zero(t, bucket.Logins)
	}
}

func TestWeeklyLoginBucketsCountsPerDay(t *testing.T) {
	now := time.Date(2026, 8, 31, 15, 0, 0, 0, time.UTC)
	events := []models.ActivityEvent{
		{Action: models.ActionLogin, OccurredAt: now.Add(-time.Hour)},
		{Action: models.ActionLogin, OccurredAt: now.Add(-2 * time.Hour)},
		{Action: models.ActionLogin, OccurredAt: now.Add(-3 * time.Hour)},
		{Action: models.ActionLogin, OccurredAt: now.AddDate(0, 0, -2)},
		{Action: models.ActionCreated, OccurredAt: now.Add(-time.Hour)},
		// Outside the window, must not appear anywhere.
		{Action: models.ActionLogin, OccurredAt: now.AddDate(0, 0, -8)},
	}

	buckets := WeeklyLoginBuckets(events, now, 7)
	require.Len(t, buckets, 7)
	require.Equal(t, int64(3), buckets[6].Logins, "three logins today")
	require.Equal(t, int64(1), buckets[4].Logins)

	var total int64
	for _, bucket := range buckets {
		total += bucket.Logins
	}
	require.Equal(t, int64(4), total, "window total excludes out-of-window logins")
}

func TestWeeklyLoginBucketsUseUTCBoundaries(t *testing.T) {
	// 23:30 UTC-5 on Aug 30 is already Aug 31 in UTC.
	zone := time.FixedZone("UTC-5", -5*60*60)
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	events := []models.ActivityEvent{
		{Action: models.ActionLogin, OccurredAt: time.Date(2026, 8, 30, 23, 30, 0, 0, zone)},
	}

	buckets := WeeklyLoginBuckets(events, now, 7)
	require.Equal(t, "2026-08-31", buckets[6].Date)
	require.Equal(t, int64(1), buckets[6].Logins)
	require.Zero(t, buckets[5].Logins)
}

func TestRecentEventsFiltersAndLimits(t *testing.T) {
	now := time.Date(2026, 8, 31, 15, 0, 0, 0, time.UTC)
	var events []models.ActivityEvent
	for i := 0; i < 12; i++ {
		events = append(events, models.ActivityEvent{
			ID:          uint(i + 1),
			SubjectName: "Alice Johnson",
			Action:      models.ActionLogin,
			OccurredAt:  now.Add(-time.Duration(i) * time.Minute),
		})
	}
	events = append(events,
		models.ActivityEvent{ID: 13, Action: models.ActionUpdated, OccurredAt: now},
		models.ActivityEvent{ID: 14, Action: models.ActionDeleted, OccurredAt: now},
	)

	recent := RecentEvents(events, 10)
	require.Len(t, recent, 10)
	for _, event := range recent {
		require.Contains(t, []string{models.ActionLogin, models.ActionCreated}, event.Action)
	}
	require.Equal(t, uint(1), recent[0].ID, "newest event first")
}

func TestRecentEventsKeepsInsertionOrderForEqualTimestamps(t *testing.T) {
	when := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	events := []models.ActivityEvent{
		{ID: 1, Action: models.ActionLogin, OccurredAt: when},
		{ID: 2, Action: models.ActionCreated, OccurredAt: when},
		{ID: 3, Action: models.ActionLogin, OccurredAt: when},
	}

	recent := RecentEvents(events, 10)
	require.Len(t, recent, 3)
	require.Equal(t, uint(1), recent[0].ID)
	require.Equal(t, uint(2), recent[1].ID)
	require.Equal(t, uint(3), recent[2].ID)
}

func TestBuildSnapshotComposesAllParts(t *testing.T) {
	now := time.Date(2026, 8, 31, 15, 0, 0, 0, time.UTC)
	events := []models.ActivityEvent{
		{ID: 1, Action: models.ActionLogin, OccurredAt: now.Add(-time.Hour)},
		{ID: 2, Action: models.ActionLogin, OccurredAt: now.Add(-2 * time.Hour)},
		{ID: 3, Action: models.ActionLogin, OccurredAt: now.AddDate(0, 0, -1)},
		{ID: 4, Action: models.ActionCreated, OccurredAt: now.Add(-30 * time.Minute)},
	}

	snapshot := BuildSnapshot(events, now, 7, 10)
	require.Equal(t, int64(2), snapshot.TodayLogins)
	require.Len(t, snapshot.Weekly, 7)
	require.Len(t, snapshot.Recent, 4)
	require.Equal(t, uint(4), snapshot.Recent[0].ID)
	require.Equal(t, now, snapshot.GeneratedAt)
}

func TestBuildSnapshotDeterministic(t *testing.T) {
	now := time.Date(2026, 8, 31, 15, 0, 0, 0, time.UTC)
	events := []models.ActivityEvent{
		{ID: 1, Action: models.ActionLogin, OccurredAt: now.Add(-time.Hour)},
		{ID: 2, Action: models.ActionCreated, OccurredAt: now.Add(-2 * time.Hour)},
	}

	first := BuildSnapshot(events, now, 7, 10)
	second := BuildSnapshot(events, now, 7, 10)
	require.Equal(t, first, second)
}
