package websocket

import (
	"context"
	"encoding/json"

	"github.com/gofiber/contrib/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/makeasinger/compute-worker/internal/executor"
	"github.com/makeasinger/compute-worker/internal/model"
)

// SessionConfig bounds a single executor session
type SessionConfig struct {
	InboxSize int
	Rate      float64 // inbound requests per second
	Burst     int
}

// inbound is either a request or a keep-alive control message
type inbound struct {
	Type string `json:"type"`
	model.Request
}

// Session owns one executor for the lifetime of a WebSocket connection.
// Text frames carry requests in and responses out.
type Session struct {
	ID string

	conn    *websocket.Conn
	exec    *executor.Executor
	limiter *rate.Limiter
	send    chan []byte
	closed  chan struct{}
	log     *logrus.Entry
}

// NewSession creates the session and its executor. Nothing runs until Serve.
func NewSession(c *websocket.Conn, cfg SessionConfig, logger *logrus.Entry) (*Session, error) {
	id := model.NewSessionID()
	s := &Session{
		ID:      id,
		conn:    c,
		limiter: rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
		send:    make(chan []byte, sendBufferSize),
		closed:  make(chan struct{}),
		log:     logger.WithFields(logrus.Fields{"component": "session", "session_id": id}),
	}

	exec, err := executor.New(executor.SinkFunc(s.deliver),
		executor.WithLogger(s.log),
		executor.WithInboxSize(cfg.InboxSize),
	)
	if err != nil {
		return nil, err
	}
	s.exec = exec
	return s, nil
}

// Serve runs the session until the connection closes. Requests still in
// flight at that point are stopped.
func (s *Session) Serve() {
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		if err := s.exec.Run(ctx); err != nil {
			s.log.WithError(err).Error("executor exited")
		}
	}()
	written := make(chan struct{})
	go func() {
		defer close(written)
		writePump(s.conn, s.send, s.closed)
	}()

	s.log.Info("session opened")
	s.readLoop(ctx)

	// the peer is gone, so responses emitted while stopping are dropped
	close(s.closed)
	<-written
	cancel()
	<-stopped
	s.log.Info("session closed")
}

func (s *Session) readLoop(ctx context.Context) {
	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.WithError(err).Warn("websocket error")
			}
			return
		}

		if reply, ok := pong(message); ok {
			s.write(reply)
			continue
		}

		var msg inbound
		if err := json.Unmarshal(message, &msg); err != nil {
			s.deliver(model.Response{
				ID:        model.FallbackID,
				Status:    model.StatusError,
				Error:     "malformed request: " + err.Error(),
				ErrorType: string(executor.KindTypeInvalid),
				Timestamp: model.Now(),
			})
			continue
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
		if err := s.exec.Submit(msg.Request); err != nil {
			s.log.WithError(err).Warn("request dropped")
			return
		}
	}
}

func (s *Session) deliver(resp model.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.WithError(err).WithField("id", resp.ID).Error("failed to marshal response")
		return
	}
	s.write(data)
}

func (s *Session) write(data []byte) {
	select {
	case s.send <- data:
	case <-s.closed:
	}
}
