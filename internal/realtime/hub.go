package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/gosuda/boardsync/internal/protocol"
	"github.com/gosuda/boardsync/internal/server/middleware"
)

// HubConfig tunes per-session resources.
type HubConfig struct {
	SendBuffer     int        // queued outbound frames per session
	CursorRate     rate.Limit // inbound cursor:move ceiling per session
	CursorBurst    int
	OriginPatterns []string // extra websocket origins, host patterns
}

func DefaultHubConfig() HubConfig {
	return HubConfig{
		SendBuffer:  256,
		CursorRate:  60,
		CursorBurst: 10,
	}
}

// Hub accepts websocket connections, feeds their commands to the Engine and
// fans the resulting deliveries out to local sessions and, when configured,
// to other nodes through the Relay.
type Hub struct {
	engine *Engine
	relay  Relay
	nodeID string
	cfg    HubConfig
	logger zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	wg       sync.WaitGroup
}

// NewHub creates a hub. relay may be nil for a single process deployment.
func NewHub(engine *Engine, relay Relay, cfg HubConfig, logger zerolog.Logger) *Hub {
	def := DefaultHubConfig()
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	if cfg.CursorRate <= 0 {
		cfg.CursorRate = def.CursorRate
	}
	if cfg.CursorBurst <= 0 {
		cfg.CursorBurst = def.CursorBurst
	}
	return &Hub{
		engine:   engine,
		relay:    relay,
		nodeID:   uuid.NewString(),
		cfg:      cfg,
		logger:   logger.With().Str("component", "hub").Logger(),
		sessions: make(map[string]*Session),
	}
}

// ServeWS upgrades an authenticated request. The identity must already be on
// the request context; the auth middleware refuses anything else first.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.cfg.OriginPatterns})
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	s := newSession(Peer{ConnID: uuid.NewString(), User: *ident}, conn, h.cfg, h.logger)
	h.register(s)
	defer h.unregister(s)

	s.logger.Info().Msg("session opened")
	err = s.run(r.Context(), h.handleFrame)
	if status := websocket.CloseStatus(err); status == -1 && err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Debug().Err(err).Msg("session read ended")
	}
	s.logger.Info().Msg("session closed")
}

func (h *Hub) register(s *Session) {
	h.wg.Add(1)
	h.mu.Lock()
	h.sessions[s.peer.ConnID] = s
	h.mu.Unlock()
}

func (h *Hub) unregister(s *Session) {
	defer h.wg.Done()
	h.mu.Lock()
	delete(h.sessions, s.peer.ConnID)
	h.mu.Unlock()

	// The request context is gone by now.
	h.Dispatch(context.Background(), h.engine.Disconnect(s.peer))
}

func (h *Hub) session(connID string) (*Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[connID]
	return s, ok
}

// SessionCount returns the number of open sessions on this node.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) handleFrame(ctx context.Context, s *Session, frame []byte) {
	env, err := protocol.Decode(frame)
	if err != nil {
		s.logger.Warn().Err(err).Msg("undecodable frame dropped")
		return
	}
	cmd, err := protocol.Parse(env)
	if err != nil {
		s.logger.Warn().Err(err).Str("event", env.Event).Msg("invalid payload dropped")
		return
	}
	if _, ok := cmd.(protocol.MoveCursor); ok && !s.limiter.Allow() {
		return
	}
	h.Dispatch(ctx, h.engine.Handle(ctx, s.peer, cmd))
}

// Dispatch encodes and delivers each message in order. Room members are
// resolved at send time.
func (h *Hub) Dispatch(ctx context.Context, deliveries []Delivery) {
	for _, d := range deliveries {
		frame, err := protocol.Encode(d.Event, d.Payload)
		if err != nil {
			h.logger.Error().Err(err).Str("event", d.Event).Msg("encode delivery")
			continue
		}
		if d.ConnID != "" {
			if s, ok := h.session(d.ConnID); ok {
				s.Enqueue(frame)
			}
			continue
		}
		h.deliverLocal(d.Room, d.Except, frame)
		h.publish(ctx, d.Room, d.Except, frame)
	}
}

func (h *Hub) deliverLocal(room, except string, frame []byte) {
	for _, connID := range h.engine.Rooms().Members(room) {
		if connID == except {
			continue
		}
		if s, ok := h.session(connID); ok {
			s.Enqueue(frame)
		}
	}
}

func (h *Hub) publish(ctx context.Context, room, except string, frame []byte) {
	if h.relay == nil {
		return
	}
	payload, err := encodeRelayFrame(relayFrame{Origin: h.nodeID, Room: room, Except: except, Data: frame})
	if err != nil {
		h.logger.Error().Err(err).Msg("encode relay frame")
		return
	}
	if err := h.relay.Publish(ctx, room, payload); err != nil {
		h.logger.Warn().Err(err).Str("room", room).Msg("relay publish")
	}
}

// Run consumes the relay until ctx ends, delivering other nodes' room
// broadcasts to local members. It returns immediately without a relay.
func (h *Hub) Run(ctx context.Context) error {
	if h.relay == nil {
		return nil
	}
	messages, cleanup, err := h.relay.PSubscribe(ctx, protocol.RoomPrefix+"*")
	if err != nil {
		return fmt.Errorf("realtime.Hub.Run: %w", err)
	}
	defer cleanup()

	h.logger.Info().Str("node_id", h.nodeID).Msg("relay subscribed")
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			f, err := decodeRelayFrame(msg)
			if err != nil {
				h.logger.Warn().Err(err).Msg("relay frame dropped")
				continue
			}
			if f.Origin == h.nodeID {
				continue
			}
			h.deliverLocal(f.Room, f.Except, f.Data)
		}
	}
}

// Shutdown closes every session with StatusGoingAway and waits for their
// cleanup or ctx.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.RLock()
	for _, s := range h.sessions {
		s.Close(websocket.StatusGoingAway, "server shutting down")
	}
	h.mu.RUnlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("realtime.Hub.Shutdown: %w", ctx.Err())
	}
}
