package remote

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/TheMichaelB/savesync/internal/events"
)

// ChangeNotice is pushed by the save service when another device writes or
// deletes a cloud slot.
type ChangeNotice struct {
	Slot    int    `json:"slot"`
	Kind    string `json:"kind"` // "write" or "delete"
	Version string `json:"version,omitempty"`
}

// Watcher subscribes to the cloud change feed over a websocket and invokes a
// callback per notice. It is advisory: the registry uses notices only to mark
// cached cloud metadata stale so the next refresh re-stats the slot.
type Watcher struct {
	url    string
	token  string
	logger *events.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	pingInterval time.Duration
}

// NewWatcher creates a change-feed watcher for the given API base URL.
func NewWatcher(baseURL, token string, logger *events.Logger) *Watcher {
	wsURL := baseURL
	if strings.HasPrefix(wsURL, "http") {
		wsURL = "ws" + wsURL[len("http"):]
	}

	return &Watcher{
		url:          wsURL + "/api/v1/slots/watch",
		token:        token,
		logger:       logger.WithField("component", "watcher"),
		pingInterval: 30 * time.Second,
	}
}

// Run connects and dispatches notices to onChange until the context is
// cancelled or the connection drops. The caller decides whether to reconnect.
func (w *Watcher) Run(ctx context.Context, onChange func(ChangeNotice)) error {
	headers := http.Header{}
	if w.token != "" {
		headers.Set("Authorization", "Bearer "+w.token)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, w.url, headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("watch connect failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("watch connect failed: %w", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.closed = false
	w.mu.Unlock()

	w.logger.WithField("url", w.url).Info("Watching cloud change feed")

	go w.pingLoop(ctx)

	// Close the connection when the context ends so ReadJSON unblocks.
	go func() {
		<-ctx.Done()
		_ = w.Close()
	}()

	for {
		var notice ChangeNotice
		if err := conn.ReadJSON(&notice); err != nil {
			w.mu.Lock()
			closed := w.closed
			w.mu.Unlock()

			if closed || ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read change notice: %w", err)
		}

		w.logger.WithFields(map[string]interface{}{
			"slot": notice.Slot,
			"kind": notice.Kind,
		}).Debug("Cloud change notice")

		onChange(notice)
	}
}

// Close terminates the watch connection.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.conn == nil {
		return nil
	}
	w.closed = true

	_ = w.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return w.conn.Close()
}

func (w *Watcher) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.mu.Lock()
			conn := w.conn
			closed := w.closed
			w.mu.Unlock()

			if closed || conn == nil {
				return
			}

			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				w.logger.WithError(err).Debug("Ping failed")
				return
			}
		}
	}
}
