package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/gosuda/boardsync/internal/protocol"
)

var (
	// ErrNotConnected is returned by Emit while the socket is down.
	ErrNotConnected = errors.New("client: not connected")
	// ErrUnauthorized means the server refused the credential. Run stops
	// retrying when it sees it.
	ErrUnauthorized = errors.New("client: unauthorized")
)

const emitTimeout = 5 * time.Second

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Handler receives the raw payload of one server event.
type Handler func(data json.RawMessage)

type Options struct {
	URL     string // ws:// or wss:// endpoint
	Token   string // bearer credential
	Backoff *Backoff
	Logger  zerolog.Logger
}

// Conn is a websocket connection to the board server that reconnects on its
// own. Every board joined through it is joined again after each reconnect,
// and the fresh board:load replaces whatever the client held before.
type Conn struct {
	url     string
	token   string
	backoff *Backoff
	logger  zerolog.Logger

	mu       sync.Mutex
	state    State
	ws       *websocket.Conn
	rooms    map[string]protocol.JoinBoard
	handlers map[string][]Handler
	watchers []func(State)
}

func NewConn(opts Options) *Conn {
	b := opts.Backoff
	if b == nil {
		b = DefaultBackoff()
	}
	return &Conn{
		url:      opts.URL,
		token:    opts.Token,
		backoff:  b,
		logger:   opts.Logger.With().Str("component", "client").Logger(),
		rooms:    make(map[string]protocol.JoinBoard),
		handlers: make(map[string][]Handler),
	}
}

// On registers h for event. Handlers run on the reading goroutine in
// registration order.
func (c *Conn) On(event string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], h)
}

// OnState registers fn to be called on every state transition.
func (c *Conn) OnState(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchers = append(c.watchers, fn)
}

func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run connects and keeps the connection alive until ctx ends or the server
// refuses the credential.
func (c *Conn) Run(ctx context.Context) error {
	defer c.setState(StateDisconnected)

	for attempt := 0; ; attempt++ {
		if attempt == 0 {
			c.setState(StateConnecting)
		} else {
			c.setState(StateReconnecting)
		}

		ws, err := c.dial(ctx)
		if err != nil {
			if errors.Is(err, ErrUnauthorized) {
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn().Err(err).Int("attempt", c.backoff.Attempt()).Msg("connect failed")
			if !c.sleep(ctx) {
				return nil
			}
			continue
		}

		c.backoff.Reset()
		c.attach(ws)
		c.setState(StateConnected)
		c.rejoin(ctx)

		err = c.readLoop(ctx, ws)
		c.detach()
		_ = ws.CloseNow()

		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn().Err(err).Msg("connection lost")
		c.setState(StateReconnecting)
		if !c.sleep(ctx) {
			return nil
		}
	}
}

// Emit sends one event. It fails fast with ErrNotConnected while the socket
// is down; callers rely on the resync after reconnect instead of a queue.
func (c *Conn) Emit(ctx context.Context, event string, payload any) error {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return ErrNotConnected
	}

	frame, err := protocol.Encode(event, payload)
	if err != nil {
		return fmt.Errorf("client.Conn.Emit: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, emitTimeout)
	defer cancel()
	if err := ws.Write(ctx, websocket.MessageText, frame); err != nil {
		return fmt.Errorf("client.Conn.Emit: %s: %w", event, err)
	}
	return nil
}

// Join tracks the board and joins it now if connected, or on the next
// connect otherwise.
func (c *Conn) Join(ctx context.Context, j protocol.JoinBoard) error {
	c.mu.Lock()
	c.rooms[j.BoardID] = j
	connected := c.ws != nil
	c.mu.Unlock()
	if !connected {
		return nil
	}
	return c.Emit(ctx, protocol.EventBoardJoin, j)
}

// Leave stops tracking the board and leaves it if connected.
func (c *Conn) Leave(ctx context.Context, boardID string) error {
	c.mu.Lock()
	delete(c.rooms, boardID)
	connected := c.ws != nil
	c.mu.Unlock()
	if !connected {
		return nil
	}
	return c.Emit(ctx, protocol.EventBoardLeave, protocol.LeaveBoard{BoardID: boardID})
}

func (c *Conn) dial(ctx context.Context) (*websocket.Conn, error) {
	ws, resp, err := websocket.Dial(ctx, c.url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": {"Bearer " + c.token}},
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("client.Conn.dial: %w", ErrUnauthorized)
		}
		return nil, fmt.Errorf("client.Conn.dial: %w", err)
	}
	return ws, nil
}

func (c *Conn) rejoin(ctx context.Context) {
	c.mu.Lock()
	joins := make([]protocol.JoinBoard, 0, len(c.rooms))
	for _, j := range c.rooms {
		joins = append(joins, j)
	}
	c.mu.Unlock()

	for _, j := range joins {
		if err := c.Emit(ctx, protocol.EventBoardJoin, j); err != nil {
			c.logger.Warn().Err(err).Str("board_id", j.BoardID).Msg("rejoin")
		}
	}
}

func (c *Conn) readLoop(ctx context.Context, ws *websocket.Conn) error {
	for {
		_, frame, err := ws.Read(ctx)
		if err != nil {
			return err
		}
		env, err := protocol.Decode(frame)
		if err != nil {
			c.logger.Warn().Err(err).Msg("undecodable frame dropped")
			continue
		}
		c.mu.Lock()
		hs := c.handlers[env.Event]
		c.mu.Unlock()
		for _, h := range hs {
			h(env.Data)
		}
	}
}

func (c *Conn) attach(ws *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws = ws
}

func (c *Conn) detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws = nil
}

func (c *Conn) sleep(ctx context.Context) bool {
	t := time.NewTimer(c.backoff.Next())
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	watchers := append([]func(State){}, c.watchers...)
	c.mu.Unlock()

	c.logger.Debug().Stringer("state", s).Msg("connection state")
	for _, fn := range watchers {
		fn(s)
	}
}
