// Package feed receives posts from the external scraper over WebSocket and
// hands them to the analyzer.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"memecoin-signal-lab/internal/domain"
	"memecoin-signal-lab/internal/observability"
)

// WSConfig configures WebSocket source behavior.
type WSConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the exponential backoff.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages; pongs extend it.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// Buffer is the capacity of the post channel.
	Buffer int
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       90 * time.Second,
		WriteTimeout:      10 * time.Second,
		Buffer:            256,
	}
}

// message is the envelope the scraper sends. Only type "post" carries a post.
type message struct {
	Type string       `json:"type"`
	Post *domain.Post `json:"post,omitempty"`
}

type subscribeRequest struct {
	Type    string   `json:"type"`
	Handles []string `json:"handles,omitempty"`
}

// WSSource streams posts from a WebSocket endpoint, reconnecting with
// exponential backoff and re-sending its subscription after each reconnect.
type WSSource struct {
	endpoint string
	handles  []string
	config   WSConfig
	logger   *log.Logger
}

// NewWSSource creates a source. handles narrows the subscription; empty means all.
func NewWSSource(endpoint string, handles []string, config *WSConfig, logger *log.Logger) *WSSource {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}
	return &WSSource{endpoint: endpoint, handles: handles, config: cfg, logger: logger}
}

// Subscribe connects and returns a channel of posts. The first connection must
// succeed; later disconnects are retried until ctx is cancelled, after which
// the channel is closed.
func (s *WSSource) Subscribe(ctx context.Context) (<-chan domain.Post, error) {
	conn, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.Post, s.config.Buffer)
	go s.run(ctx, conn, out)
	return out, nil
}

func (s *WSSource) connect(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := conn.WriteJSON(subscribeRequest{Type: "subscribe", Handles: s.handles}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("write subscribe: %w", err)
	}
	return conn, nil
}

func (s *WSSource) run(ctx context.Context, conn *websocket.Conn, out chan<- domain.Post) {
	defer close(out)

	delay := s.config.ReconnectDelay
	for {
		err := s.readConn(ctx, conn, out)
		conn.Close()
		if ctx.Err() != nil {
			return
		}
		s.logger.Printf("[feed] connection lost: %v", err)

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}

			observability.RecordFeedReconnect()
			conn, err = s.connect(ctx)
			if err == nil {
				s.logger.Println("[feed] reconnected")
				delay = s.config.ReconnectDelay
				break
			}
			if ctx.Err() != nil {
				return
			}
			s.logger.Printf("[feed] reconnect failed: %v", err)

			delay *= 2
			if delay > s.config.MaxReconnectDelay {
				delay = s.config.MaxReconnectDelay
			}
		}
	}
}

// readConn pumps one connection until it fails or ctx is cancelled.
func (s *WSSource) readConn(ctx context.Context, conn *websocket.Conn, out chan<- domain.Post) error {
	done := make(chan struct{})
	defer close(done)

	conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	})

	go func() {
		ticker := time.NewTicker(s.config.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				// Unblock ReadMessage.
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(s.config.WriteTimeout))
				conn.Close()
				return
			case <-ticker.C:
				conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.config.WriteTimeout))
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		post, ok := s.decode(data)
		if !ok {
			continue
		}

		select {
		case out <- post:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *WSSource) decode(data []byte) (domain.Post, bool) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		observability.RecordPostReceived("invalid")
		s.logger.Printf("[feed] malformed message: %v", err)
		return domain.Post{}, false
	}
	if msg.Type != "post" {
		return domain.Post{}, false
	}
	if msg.Post == nil || msg.Post.ID == "" || msg.Post.Author == "" {
		observability.RecordPostReceived("invalid")
		return domain.Post{}, false
	}
	post := *msg.Post
	if post.ObservedAt.IsZero() {
		post.ObservedAt = time.Now().UTC()
	}
	return post, true
}
