package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/pulseboard/pulseboard-api/internal/dto"
	"github.com/pulseboard/pulseboard-api/internal/observability"
	"github.com/pulseboard/pulseboard-api/internal/repository"
)

const (
	streamSendBufferSize = 16
	streamPingInterval   = 30 * time.Second
)

// StreamConnectionOptions wraps metadata extracted during the websocket upgrade.
type StreamConnectionOptions struct {
	CorrelationID string
	Context       context.Context
}

// ActivityStreamService owns the live feed hub: it fans out delta notices
// from the ingest path, recomputes full snapshots on a fixed interval and
// relays deltas across nodes. One instance is created in main and injected
// wherever broadcasting is needed; there is no package-level hub.
type ActivityStreamService interface {
	DeltaBroadcaster
	Subscribe(ctx context.Context) (<-chan dto.StreamMessage, func())
	ServeConnection(conn *websocket.Conn, opts StreamConnectionOptions)
	Start(ctx context.Context)
	SubscriberCount() int
}

type activityStreamService struct {
	repo        repository.ActivityEventRepository
	nats        *nats.Conn
	natsSubject string
	interval    time.Duration
	windowDays  int
	recentLimit int
	logger      zerolog.Logger
	hub         *streamHub
	nodeID      string
	now         func() time.Time
}

// StreamServiceConfig bundles the stream service knobs.
type StreamServiceConfig struct {
	TickInterval time.Duration
	WindowDays   int
	RecentLimit  int
	NATSSubject  string
}

type streamEvent struct {
	Source string                    `json:"source"`
	Event  dto.ActivityEventResponse `json:"event"`
	SentAt time.Time                 `json:"sent_at"`
}

// streamHub tracks live subscribers. The set itself is guarded by the mutex;
// delivery happens against a snapshot of the set so one slow subscriber
// cannot block the others.
type streamHub struct {
	mu          sync.RWMutex
	subscribers map[*streamSubscriber]struct{}
	log         zerolog.Logger
}

type streamSubscriber struct {
	mu     sync.Mutex
	send   chan dto.StreamMessage
	closed bool
	hub    *streamHub
}

// NewActivityStreamService constructs the live feed service. The NATS
// connection may be nil for single-node deployments.
func NewActivityStreamService(repo repository.ActivityEventRepository, natsConn *nats.Conn, cfg StreamServiceConfig, logger zerolog.Logger) ActivityStreamService {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 30 * time.Second
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = defaultWindowDays
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = defaultRecentLimit
	}

	return &activityStreamService{
		repo:        repo,
		nats:        natsConn,
		natsSubject: cfg.NATSSubject,
		interval:    cfg.TickInterval,
		windowDays:  cfg.WindowDays,
		recentLimit: cfg.RecentLimit,
		logger:      logger.With().Str("component", "activity_stream_service").Logger(),
		hub: &streamHub{
			subscribers: make(map[*streamSubscriber]struct{}),
			log:         logger.With().Str("component", "activity_stream_hub").Logger(),
		},
		nodeID: uuid.NewString(),
		now:    time.Now,
	}
}

// Start launches the snapshot ticker and, when configured, the cross-node
// relay consumer. The ticker runs for the lifetime of ctx regardless of
// subscriber count; that keeps its behaviour independent of connection churn.
func (s *activityStreamService) Start(ctx context.Context) {
	go s.runTicker(ctx)
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

// Subscribe registers a new live consumer. The returned channel carries a
// connected notice followed by one full snapshot before any delta can be
// observed. The cleanup function is idempotent; calling it twice is a no-op.
func (s *activityStreamService) Subscribe(ctx context.Context) (<-chan dto.StreamMessage, func()) {
	sub := &streamSubscriber{
		send: make(chan dto.StreamMessage, streamSendBufferSize),
		hub:  s.hub,
	}

	now := s.now()
	sub.enqueue(dto.StreamMessage{
		Type:      dto.StreamTypeConnected,
		Message:   "live activity feed established",
		Timestamp: now,
	})

	snapshot, err := loadSnapshot(ctx, s.repo, now, s.windowDays, s.recentLimit)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to build initial snapshot, sending empty view")
		sub.enqueue(dto.StreamMessage{
			Type:      dto.StreamTypeError,
			Message:   "failed to load activity data",
			Timestamp: now,
		})
		snapshot = emptySnapshot(now, s.windowDays)
	}
	sub.enqueue(dto.StreamMessage{
		Type:      dto.StreamTypeSnapshot,
		Snapshot:  &snapshot,
		Timestamp: now,
	})

	// Only now does the subscriber join the broadcast set, so its first
	// observation is always the full snapshot queued above.
	s.hub.add(sub)
	observability.StreamSubscribers().Inc()

	cleanup := func() {
		if sub.close() {
			observability.StreamSubscribers().Dec()
		}
	}

	return sub.send, cleanup
}

// BroadcastDelta pushes one stored event to every live subscriber and relays
// it to peer nodes. Errors never abort the fan-out.
func (s *activityStreamService) BroadcastDelta(event dto.ActivityEventResponse) error {
	message := dto.StreamMessage{
		Type:      dto.StreamTypeDelta,
		Event:     &event,
		Timestamp: s.now(),
	}
	s.hub.broadcast(message)

	if s.nats != nil && s.natsSubject != "" {
		relay := streamEvent{Source: s.nodeID, Event: event, SentAt: time.Now().UTC()}
		payload, err := json.Marshal(relay)
		if err != nil {
			return err
		}
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			s.logger.Warn().Err(err).Msg("failed to relay activity delta")
		}
	}

	return nil
}

// ServeConnection pumps the live feed over an upgraded websocket until the
// peer disconnects or delivery fails.
func (s *activityStreamService) ServeConnection(conn *websocket.Conn, opts StreamConnectionOptions) {
	baseCtx := opts.Context
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	stream, cancel := s.Subscribe(baseCtx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case message, ok := <-stream:
			if !ok {
				return
			}
			if err := conn.WriteJSON(message); err != nil {
				s.logger.Debug().Err(err).Msg("stream write loop terminated")
				return
			}
		case <-time.After(streamPingInterval):
			if err := conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				s.logger.Debug().Err(err).Msg("stream ping failed")
				return
			}
		case <-done:
			return
		case <-baseCtx.Done():
			return
		}
	}
}

func (s *activityStreamService) SubscriberCount() int {
	return s.hub.size()
}

func (s *activityStreamService) runTicker(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pushSnapshot(ctx)
		}
	}
}

// pushSnapshot recomputes the authoritative view and fans it out. A failed
// recompute is surfaced to subscribers as an error notice; the next tick
// fires on schedule.
func (s *activityStreamService) pushSnapshot(ctx context.Context) {
	start := time.Now()
	now := s.now()

	snapshot, err := loadSnapshot(ctx, s.repo, now, s.windowDays, s.recentLimit)
	observability.SnapshotTickLatency().Observe(time.Since(start).Seconds())
	if err != nil {
		s.logger.Error().Err(err).Msg("snapshot recompute failed")
		s.hub.broadcast(dto.StreamMessage{
			Type:      dto.StreamTypeError,
			Message:   "failed to load activity data",
			Timestamp: now,
		})
		return
	}

	s.hub.broadcast(dto.StreamMessage{
		Type:      dto.StreamTypeSnapshot,
		Snapshot:  &snapshot,
		Timestamp: now,
	})
}

func (s *activityStreamService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleRelay(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to activity relay subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain activity relay subscription")
		}
	}()
}

func (s *activityStreamService) handleRelay(payload []byte) {
	var event streamEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid activity relay payload")
		return
	}
	if event.Source == s.nodeID {
		return
	}

	s.hub.broadcast(dto.StreamMessage{
		Type:      dto.StreamTypeDelta,
		Event:     &event.Event,
		Timestamp: s.now(),
	})
}

func (h *streamHub) add(sub *streamSubscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[sub] = struct{}{}
	h.log.Debug().Int("subscribers", len(h.subscribers)).Msg("stream subscriber connected")
}

func (h *streamHub) remove(sub *streamSubscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers, sub)
	h.log.Debug().Int("subscribers", len(h.subscribers)).Msg("stream subscriber disconnected")
}

func (h *streamHub) size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// broadcast delivers to a snapshot of the subscriber set. A subscriber whose
// buffer is full is treated as dead: it is closed and dropped, and delivery
// to the remaining subscribers continues.
func (h *streamHub) broadcast(message dto.StreamMessage) {
	h.mu.RLock()
	targets := make([]*streamSubscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		if !sub.enqueue(message) {
			h.log.Warn().Msg("dropping stream subscriber after failed delivery")
			observability.StreamDeliveryFailures().Inc()
			if sub.close() {
				observability.StreamSubscribers().Dec()
			}
		}
	}
}

func (sub *streamSubscriber) enqueue(message dto.StreamMessage) bool {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return false
	}
	select {
	case sub.send <- message:
		return true
	default:
		return false
	}
}

// close transitions the subscriber to its terminal state exactly once and
// reports whether this call performed the transition.
func (sub *streamSubscriber) close() bool {
	sub.mu.Lock()
	if sub.closed {
		sub.mu.Unlock()
		return false
	}
	sub.closed = true
	close(sub.send)
	sub.mu.Unlock()

	sub.hub.remove(sub)
	return true
}
