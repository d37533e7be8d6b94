package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const writeTimeout = 10 * time.Second

// Session is one accepted websocket connection. Outbound frames are queued
// on a bounded buffer drained by a single writer goroutine; a session whose
// buffer fills is closed so its client reconnects and resyncs.
type Session struct {
	peer    Peer
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
	logger  zerolog.Logger

	done      chan struct{}
	closeOnce sync.Once
	status    websocket.StatusCode
	reason    string
}

func newSession(peer Peer, conn *websocket.Conn, cfg HubConfig, logger zerolog.Logger) *Session {
	return &Session{
		peer:    peer,
		conn:    conn,
		send:    make(chan []byte, cfg.SendBuffer),
		limiter: rate.NewLimiter(cfg.CursorRate, cfg.CursorBurst),
		logger:  logger.With().Str("conn_id", peer.ConnID).Str("user_id", peer.User.UserID).Logger(),
		done:    make(chan struct{}),
	}
}

func (s *Session) Peer() Peer { return s.peer }

// Enqueue queues frame without blocking. It reports false when the session
// is closed or its buffer is full; the latter closes the session.
func (s *Session) Enqueue(frame []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- frame:
		return true
	default:
		s.logger.Warn().Int("buffer", cap(s.send)).Msg("send buffer full, closing slow session")
		s.Close(websocket.StatusPolicyViolation, "slow consumer")
		return false
	}
}

// Close ends the session with the given status. Only the first call counts.
func (s *Session) Close(status websocket.StatusCode, reason string) {
	s.closeOnce.Do(func() {
		s.status, s.reason = status, reason
		close(s.done)
	})
}

// run pumps frames until the connection or ctx ends. handle is called for
// every inbound text or binary frame on the reading goroutine.
func (s *Session) run(ctx context.Context, handle func(context.Context, *Session, []byte)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(ctx, cancel)
	}()

	var err error
	for {
		var data []byte
		_, data, err = s.conn.Read(ctx)
		if err != nil {
			break
		}
		handle(ctx, s, data)
	}

	s.Close(websocket.StatusNormalClosure, "")
	cancel()
	<-writerDone
	return err
}

func (s *Session) writeLoop(ctx context.Context, cancel context.CancelFunc) {
	for {
		select {
		case <-ctx.Done():
			_ = s.conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-s.done:
			_ = s.conn.Close(s.status, s.reason)
			cancel()
			return
		case frame := <-s.send:
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := s.conn.Write(wctx, websocket.MessageText, frame)
			wcancel()
			if err != nil {
				s.logger.Debug().Err(err).Msg("websocket write")
				cancel()
				return
			}
		}
	}
}
