package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WS configuration defaults.
const (
	DefaultReconnectDelay = 5 * time.Second
	DefaultPingInterval   = 30 * time.Second
	wsWriteTimeout        = 10 * time.Second
)

// ActivityNotification signals that an account has new ledger activity.
// The snapshot and event log should be refetched when one arrives.
type ActivityNotification struct {
	Account        string `json:"account"`
	LedgerClosedAt int64  `json:"ledger_closed_at"`
	TxHash         string `json:"tx_hash"`
}

// ActivityStream is a websocket subscription to an account's ledger
// activity feed.
type ActivityStream struct {
	endpoint       string
	account        string
	reconnectDelay time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	notifications chan ActivityNotification
}

// wsSubscribeRequest asks the indexer to stream one account's activity.
type wsSubscribeRequest struct {
	Action  string `json:"action"`
	Account string `json:"account"`
}

// NewActivityStream connects and subscribes to an account's activity.
// Notifications arrive on Notifications until Close or context cancel.
func NewActivityStream(ctx context.Context, endpoint, account string) (*ActivityStream, error) {
	if err := ValidateAccount(account); err != nil {
		return nil, err
	}

	s := &ActivityStream{
		endpoint:       endpoint,
		account:        account,
		reconnectDelay: DefaultReconnectDelay,
		notifications:  make(chan ActivityNotification, 16),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	go s.readLoop(ctx)
	return s, nil
}

// Notifications returns the activity channel. Closed when the stream stops.
func (s *ActivityStream) Notifications() <-chan ActivityNotification {
	return s.notifications
}

// Close stops the stream and closes the notification channel.
func (s *ActivityStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *ActivityStream) connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial websocket %s: %w", s.endpoint, err)
	}

	sub := wsSubscribeRequest{Action: "subscribe", Account: s.account}
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("subscribe account: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	return nil
}

// readLoop delivers notifications, reconnecting on read errors until the
// stream is closed or the context ends.
func (s *ActivityStream) readLoop(ctx context.Context) {
	defer close(s.notifications)

	for {
		s.mu.Lock()
		conn, closed := s.conn, s.closed
		s.mu.Unlock()
		if closed || ctx.Err() != nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if !s.reconnect(ctx) {
				return
			}
			continue
		}

		var notif ActivityNotification
		if err := json.Unmarshal(message, &notif); err != nil {
			continue // not an activity frame
		}
		if notif.Account != s.account {
			continue
		}

		select {
		case s.notifications <- notif:
		case <-ctx.Done():
			return
		}
	}
}

// reconnect waits out the delay and re-establishes the subscription.
// Returns false when the stream is closed or the context ended.
func (s *ActivityStream) reconnect(ctx context.Context) bool {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return false
	}

	select {
	case <-ctx.Done():
		return false
	case <-time.After(s.reconnectDelay):
	}

	if err := s.connect(ctx); err != nil {
		// Try again on the next loop iteration.
		return s.reconnect(ctx)
	}
	return true
}
