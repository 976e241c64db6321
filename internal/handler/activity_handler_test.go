package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/pulseboard/pulseboard-api/internal/dto"
	"github.com/pulseboard/pulseboard-api/internal/handler"
	"github.com/pulseboard/pulseboard-api/internal/service"
)

type mockActivityService struct {
	recorded    []dto.ActivityRecordRequest
	recordErr   error
	snapshot    dto.ActivitySnapshot
	snapshotErr error
	listed      []dto.ActivityEventResponse
	listErr     error
	seeded      int
	seedErr     error
	seedToken   string
}

func (m *mockActivityService) Record(_ context.Context, req dto.ActivityRecordRequest) (dto.ActivityEventResponse, error) {
	if m.recordErr != nil {
		return dto.ActivityEventResponse{}, m.recordErr
	}
	m.recorded = append(m.recorded, req)
	return dto.ActivityEventResponse{ID: 1, Action: req.Action, SubjectName: req.SubjectName}, nil
}

func (m *mockActivityService) Snapshot(_ context.Context) (dto.ActivitySnapshot, error) {
	return m.snapshot, m.snapshotErr
}

func (m *mockActivityService) WeeklyLogins(_ context.Context) ([]dto.DailyBucket, error) {
	return m.snapshot.Weekly, m.snapshotErr
}

func (m *mockActivityService) Recent(_ context.Context) ([]dto.ActivityEventResponse, error) {
	return m.snapshot.Recent, m.snapshotErr
}

func (m *mockActivityService) List(_ context.Context) ([]dto.ActivityEventResponse, error) {
	return m.listed, m.listErr
}

func (m *mockActivityService) Seed(_ context.Context, token string) (int, error) {
	if m.seedErr != nil {
		return 0, m.seedErr
	}
	m.seedToken = token
	return m.seeded, nil
}

func newActivityTestApp(svc *mockActivityService) *fiber.App {
	app := fiber.New()
	handler.NewActivityHandler(svc, zerolog.New(io.Discard)).Register(app.Group("/api/v1/activities"))
	return app
}

func zeroFilledWeek(now time.Time) []dto.DailyBucket {
	buckets := make([]dto.DailyBucket, 0, 7)
	for i := 6; i >= 0; i-- {
		day := now.AddDate(0, 0, -i)
		buckets = append(buckets, dto.DailyBucket{Day: day.Format("Mon"), Date: day.Format("2006-01-02")})
	}
	return buckets
}

func TestActivityHandler_RecordSuccess(t *testing.T) {
	svc := &mockActivityService{}
	app := newActivityTestApp(svc)

	payload := dto.ActivityRecordRequest{
		SubjectID:    "user-1",
		SubjectName:  "Alice Johnson",
		SubjectEmail: "alice@example.com",
		Action:       "login",
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/activities/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Len(t, svc.recorded, 1)

	var response struct {
		Success bool                      `json:"success"`
		Data    dto.ActivityEventResponse `json:"data"`
		Message string                    `json:"message"`
	}
	decodeResponse(t, resp, &response)
	require.True(t, response.Success)
	require.Equal(t, "activity recorded", response.Message)
	require.Equal(t, uint(1), response.Data.ID)
}

func TestActivityHandler_RecordRejectsUnknownAction(t *testing.T) {
	svc := &mockActivityService{recordErr: service.ErrUnknownAction}
	app := newActivityTestApp(svc)

	body, err := json.Marshal(dto.ActivityRecordRequest{
		SubjectID: "user-1", SubjectName: "Alice Johnson", SubjectEmail: "alice@example.com", Action: "teleported",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/activities/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestActivityHandler_RecordStoreUnavailable(t *testing.T) {
	svc := &mockActivityService{recordErr: service.ErrStoreUnavailable}
	app := newActivityTestApp(svc)

	body, err := json.Marshal(dto.ActivityRecordRequest{
		SubjectID: "user-1", SubjectName: "Alice Johnson", SubjectEmail: "alice@example.com", Action: "login",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/activities/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestActivityHandler_WeeklyLoginsServesFallbackOn200(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	svc := &mockActivityService{
		snapshot:    dto.ActivitySnapshot{Weekly: zeroFilledWeek(now)},
		snapshotErr: service.ErrStoreUnavailable,
	}
	app := newActivityTestApp(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/activities/?type=weekly-logins", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, "chart data stays renderable during an outage")

	var response struct {
		Success bool              `json:"success"`
		Data    []dto.DailyBucket `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.True(t, response.Success)
	require.Len(t, response.Data, 7)
}

func TestActivityHandler_RecentFeed(t *testing.T) {
	svc := &mockActivityService{
		snapshot: dto.ActivitySnapshot{Recent: []dto.ActivityEventResponse{
			{ID: 2, Action: "login", SubjectName: "Alice Johnson"},
			{ID: 1, Action: "created", SubjectName: "Bob Stone"},
		}},
	}
	app := newActivityTestApp(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/activities/?type=recent", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var response struct {
		Data []dto.ActivityEventResponse `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.Len(t, response.Data, 2)
	require.Equal(t, uint(2), response.Data[0].ID)
}

func TestActivityHandler_ListFailure(t *testing.T) {
	svc := &mockActivityService{listErr: service.ErrStoreUnavailable}
	app := newActivityTestApp(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/activities/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestActivityHandler_SeedGuards(t *testing.T) {
	svc := &mockActivityService{seedErr: service.ErrSeedDisabled}
	app := newActivityTestApp(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/activities/seed", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	svc = &mockActivityService{seeded: 25}
	app = newActivityTestApp(svc)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/activities/seed", nil)
	req.Header.Set("X-Seed-Token", "seed-me")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "seed-me", svc.seedToken)
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(body, target))
}
