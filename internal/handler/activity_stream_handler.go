package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/pulseboard/pulseboard-api/internal/dto"
	"github.com/pulseboard/pulseboard-api/internal/middleware"
	"github.com/pulseboard/pulseboard-api/internal/service"
)

// ActivityStreamHandler exposes the live activity feed over SSE and an
// optional websocket upgrade. Both transports carry the same message
// sequence: connected, the current snapshot, then deltas and periodic
// snapshot refreshes.
type ActivityStreamHandler struct {
	service   service.ActivityStreamService
	logger    zerolog.Logger
	keepAlive time.Duration
}

// NewActivityStreamHandler constructs the handler instance.
func NewActivityStreamHandler(service service.ActivityStreamService, logger zerolog.Logger, keepAlive time.Duration) *ActivityStreamHandler {
	return &ActivityStreamHandler{
		service:   service,
		logger:    logger.With().Str("component", "activity_stream_handler").Logger(),
		keepAlive: keepAlive,
	}
}

// Register binds the stream routes under the provided router group.
func (h *ActivityStreamHandler) Register(router fiber.Router) {
	router.Get("/stream", h.stream)

	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			ctx := c.UserContext()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
			c.Locals("request_ctx", ctx)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *ActivityStreamHandler) stream(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
	ctx, cancel := context.WithCancel(ctx)

	stream, cleanup := h.service.Subscribe(ctx)

	keepAliveInterval := h.keepAlive
	if keepAliveInterval <= 0 {
		keepAliveInterval = 30 * time.Second
	}

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			cleanup()
			cancel()
		}()

		ticker := time.NewTicker(keepAliveInterval / 2)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-stream:
				if !ok {
					return
				}
				if err := writeStreamEvent(w, message); err != nil {
					h.logger.Debug().Err(err).Msg("failed to write stream event")
					return
				}
			case <-ticker.C:
				if err := writeKeepAlive(w); err != nil {
					h.logger.Debug().Err(err).Msg("failed to write stream keepalive")
					return
				}
			case <-ctx.Done():
				return
			}
		}
	})

	return nil
}

func (h *ActivityStreamHandler) handleConnection(conn *websocket.Conn) {
	correlation := fmt.Sprint(conn.Locals("correlation_id"))
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)

	opts := service.StreamConnectionOptions{
		CorrelationID: correlation,
		Context:       baseCtx,
	}

	h.logger.Info().Str("correlation_id", correlation).Msg("activity websocket connected")
	h.service.ServeConnection(conn, opts)
	h.logger.Info().Str("correlation_id", correlation).Msg("activity websocket disconnected")
}

func writeStreamEvent(w *bufio.Writer, message dto.StreamMessage) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", message.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeKeepAlive(w *bufio.Writer) error {
	if _, err := fmt.Fprintf(w, ": keep-alive %s\n\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return w.Flush()
}
