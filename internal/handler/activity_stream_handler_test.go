package handler_test

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
	gorillaws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/pulseboard/pulseboard-api/internal/dto"
	"github.com/pulseboard/pulseboard-api/internal/handler"
	"github.com/pulseboard/pulseboard-api/internal/models"
	"github.com/pulseboard/pulseboard-api/internal/repository"
	"github.com/pulseboard/pulseboard-api/internal/service"
)

type mockStreamService struct {
	messages []dto.StreamMessage
}

func (m *mockStreamService) BroadcastDelta(event dto.ActivityEventResponse) error { return nil }

func (m *mockStreamService) Subscribe(ctx context.Context) (<-chan dto.StreamMessage, func()) {
	stream := make(chan dto.StreamMessage, len(m.messages))
	for _, message := range m.messages {
		stream <- message
	}
	close(stream)
	return stream, func() {}
}

func (m *mockStreamService) ServeConnection(conn *fiberws.Conn, opts service.StreamConnectionOptions) {
}

func (m *mockStreamService) Start(ctx context.Context) {}

func (m *mockStreamService) SubscriberCount() int { return 0 }

func TestActivityStreamHandler_SSEDeliversConnectedThenSnapshot(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	svc := &mockStreamService{messages: []dto.StreamMessage{
		{Type: dto.StreamTypeConnected, Message: "live activity feed established", Timestamp: now},
		{Type: dto.StreamTypeSnapshot, Snapshot: &dto.ActivitySnapshot{GeneratedAt: now}, Timestamp: now},
	}}

	app := fiber.New()
	handler.NewActivityStreamHandler(svc, zerolog.New(io.Discard), time.Second).Register(app.Group("/api/v1/activities"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/activities/stream", nil)
	resp, err := app.Test(req, 2000)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	payload := string(body)

	connectedAt := strings.Index(payload, "event: connected")
	snapshotAt := strings.Index(payload, "event: snapshotUpdate")
	require.GreaterOrEqual(t, connectedAt, 0)
	require.Greater(t, snapshotAt, connectedAt, "snapshot follows the connected notice")
}

func TestActivityStreamHandler_WSRouteRequiresUpgrade(t *testing.T) {
	app := fiber.New()
	handler.NewActivityStreamHandler(&mockStreamService{}, zerolog.New(io.Discard), time.Second).Register(app.Group("/api/v1/activities"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/activities/ws", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

type emptyEventRepo struct{}

func (emptyEventRepo) Append(_ context.Context, event *models.ActivityEvent) error { return nil }

func (emptyEventRepo) Query(_ context.Context, _ repository.ActivityEventFilter) ([]models.ActivityEvent, error) {
	return nil, nil
}

func (emptyEventRepo) Purge(_ context.Context) error { return nil }

func TestActivityStreamHandler_WebsocketDeliversInitialMessages(t *testing.T) {
	svc := service.NewActivityStreamService(emptyEventRepo{}, nil, service.StreamServiceConfig{
		TickInterval: time.Hour,
	}, zerolog.New(io.Discard))

	app := fiber.New()
	handler.NewActivityStreamHandler(svc, zerolog.New(io.Discard), time.Second).Register(app.Group("/api/v1/activities"))

	baseURL, shutdown := startFiberServer(t, app)
	defer shutdown()

	url := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/v1/activities/ws"
	dialer := gorillaws.Dialer{HandshakeTimeout: 3 * time.Second}

	conn, resp, err := dialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	var connected dto.StreamMessage
	require.NoError(t, conn.ReadJSON(&connected))
	require.Equal(t, dto.StreamTypeConnected, connected.Type)

	var snapshot dto.StreamMessage
	require.NoError(t, conn.ReadJSON(&snapshot))
	require.Equal(t, dto.StreamTypeSnapshot, snapshot.Type)
	require.NotNil(t, snapshot.Snapshot)
	require.Len(t, snapshot.Snapshot.Weekly, 7)

	require.NoError(t, svc.BroadcastDelta(dto.ActivityEventResponse{ID: 9, Action: "login"}))

	var delta dto.StreamMessage
	require.NoError(t, conn.ReadJSON(&delta))
	require.Equal(t, dto.StreamTypeDelta, delta.Type)
	require.Equal(t, uint(9), delta.Event.ID)
}

func startFiberServer(t *testing.T, app *fiber.App) (string, func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fiber listener stopped: %v", err)
		}
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)

	shutdown := func() {
		_ = app.Shutdown()
		_ = listener.Close()
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
		}
	}

	return "http://" + listener.Addr().String(), shutdown
}
