package service

import (
	"context"
	"sort"
	"time"

	"github.com/pulseboard/pulseboard-api/internal/dto"
	"github.com/pulseboard/pulseboard-api/internal/models"
	"github.com/pulseboard/pulseboard-api/internal/repository"
)

// All calendar bucketing happens in one fixed reference zone so push and pull
// consumers agree on day boundaries regardless of the host timezone.
var referenceZone = time.UTC

const (
	defaultWindowDays  = 7
	defaultRecentLimit = 10
)

// recentFeedActions is the action set surfaced in the recent feed.
var recentFeedActions = []string{models.ActionLogin, models.ActionCreated}

// BuildSnapshot derives the complete live view from a set of events. It is
// deterministic given (events, now, windowDays, recentLimit): no clock or
// store access. Both the stream push path and the pull endpoint go through
// this single function so their numbers can never diverge.
func BuildSnapshot(events []models.ActivityEvent, now time.Time, windowDays, recentLimit int) dto.ActivitySnapshot {
	if windowDays <= 0 {
		windowDays = defaultWindowDays
	}
	if recentLimit <= 0 {
		recentLimit = defaultRecentLimit
	}

	return dto.ActivitySnapshot{
		TodayLogins: countLoginsOn(events, now),
		Weekly:      WeeklyLoginBuckets(events, now, windowDays),
		Recent:      RecentEvents(events, recentLimit),
		GeneratedAt: now,
	}
}

// WeeklyLoginBuckets partitions login events into one bucket per calendar day,
// ending on the day containing now. Days without logins still yield a bucket
// with a zero count, so the result always has exactly windowDays entries in
// chronological order.
func WeeklyLoginBuckets(events []models.ActivityEvent, now time.Time, windowDays int) []dto.DailyBucket {
	if windowDays <= 0 {
		windowDays = defaultWindowDays
	}

	counts := make(map[string]int64)
	for _, event := range events {
		if event.Action != models.ActionLogin {
			continue
		}
		counts[event.OccurredAt.In(referenceZone).Format("2006-01-02")]++
	}

	buckets := make([]dto.DailyBucket, 0, windowDays)
	for i := windowDays - 1; i >= 0; i-- {
		day := now.In(referenceZone).AddDate(0, 0, -i)
		date := day.Format("2006-01-02")
		buckets = append(buckets, dto.DailyBucket{
			Day:    day.Format("Mon"),
			Date:   date,
			Logins: counts[date],
		})
	}

	return buckets
}

// RecentEvents returns the newest events restricted to the recent feed action
// set, at most limit entries. Sorting is stable so events sharing a timestamp
// keep the order they were appended in.
func RecentEvents(events []models.ActivityEvent, limit int) []dto.ActivityEventResponse {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	filtered := make([]models.ActivityEvent, 0, len(events))
	for _, event := range events {
		if inActionSet(event.Action, recentFeedActions) {
			filtered = append(filtered, event)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].OccurredAt.After(filtered[j].OccurredAt)
	})

	if len(filtered) > limit {
		filtered = filtered[:limit]
	}

	return dto.NewActivityEventResponseSlice(filtered)
}

func countLoginsOn(events []models.ActivityEvent, day time.Time) int64 {
	target := day.In(referenceZone).Format("2006-01-02")
	var count int64
	for _, event := range events {
		if event.Action != models.ActionLogin {
			continue
		}
		if event.OccurredAt.In(referenceZone).Format("2006-01-02") == target {
			count++
		}
	}
	return count
}

// loadSnapshot composes a full snapshot from the event store. Both the
// stream recompute and the pull query call this one function, which is what
// keeps their numbers identical for the same store state and now.
func loadSnapshot(ctx context.Context, repo repository.ActivityEventRepository, now time.Time, windowDays, recentLimit int) (dto.ActivitySnapshot, error) {
	if windowDays <= 0 {
		windowDays = defaultWindowDays
	}
	if recentLimit <= 0 {
		recentLimit = defaultRecentLimit
	}

	windowStart := startOfDay(now.In(referenceZone).AddDate(0, 0, -(windowDays - 1)))

	logins, err := repo.Query(ctx, repository.ActivityEventFilter{
		Actions: []string{models.ActionLogin},
		Since:   windowStart,
	})
	if err != nil {
		return dto.ActivitySnapshot{}, err
	}

	recent, err := repo.Query(ctx, repository.ActivityEventFilter{
		Actions: recentFeedActions,
		Limit:   recentLimit,
	})
	if err != nil {
		return dto.ActivitySnapshot{}, err
	}

	return dto.ActivitySnapshot{
		TodayLogins: countLoginsOn(logins, now),
		Weekly:      WeeklyLoginBuckets(logins, now, windowDays),
		Recent:      RecentEvents(recent, recentLimit),
		GeneratedAt: now,
	}, nil
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.In(referenceZone).Date()
	return time.Date(year, month, day, 0, 0, 0, 0, referenceZone)
}

func inActionSet(action string, set []string) bool {
	for _, candidate := range set {
		if action == candidate {
			return true
		}
	}
	return false
}
