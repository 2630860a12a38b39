package sdcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/printforge/timelapse-exporter/internal/errors"
)

// DefaultPort is the control port the printer listens on.
const DefaultPort = 3030

const writeTimeout = 10 * time.Second

// ErrNoTraffic reports that a receive window elapsed with no inbound frame.
// The connection is still alive; callers keep waiting.
var ErrNoTraffic = errors.New("no traffic within the receive window")

// Session is one persistent control connection. Writes (export trigger,
// keepalive pings) are serialized by a mutex; reads have a single owner, the
// internal read pump.
type Session struct {
	conn *websocket.Conn
	log  *slog.Logger

	wmu sync.Mutex

	frames    chan []byte
	done      chan struct{}
	closeOnce sync.Once
	readErr   error // set by the read pump before frames is closed
}

// URL builds the websocket endpoint for host. A host that already carries a
// port overrides the default control port.
func URL(host string, port int) string {
	if strings.Contains(host, ":") {
		return fmt.Sprintf("ws://%s/websocket", host)
	}
	return fmt.Sprintf("ws://%s:%d/websocket", host, port)
}

// Dial opens the control connection and starts its read pump.
func Dial(ctx context.Context, host string, port int, log *slog.Logger) (*Session, error) {
	u := URL(host, port)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, errors.Connection(fmt.Sprintf("cannot connect to %s", u), err)
	}
	s := &Session{
		conn:   conn,
		log:    log,
		frames: make(chan []byte, 8),
		done:   make(chan struct{}),
	}
	go s.readPump()
	log.Debug("sdcp.session.connected", slog.String("url", u))
	return s, nil
}

// readPump is the single reader of the connection. The frame channel closing
// is how consumers observe a dead connection or a closed session.
func (s *Session) readPump() {
	defer close(s.frames)
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			s.readErr = err
			return
		}
		select {
		case s.frames <- raw:
		case <-s.done:
			return
		}
	}
}

// SendExport sends the export trigger for path and returns its request id.
// Fire and forget: confirmation arrives, if ever, as a later inbound frame.
func (s *Session) SendExport(path string) (string, error) {
	cmd := NewExportCommand(path)
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteJSON(cmd); err != nil {
		return "", errors.Connection("export trigger send failed", err)
	}
	return cmd.Data.RequestID, nil
}

// Ping sends the literal keepalive frame. The printer sends no structured
// reply.
func (s *Session) Ping() error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, []byte("ping"))
}

// Receive returns the next inbound frame, waiting at most timeout. A quiet
// window yields ErrNoTraffic; a dead connection yields a connection error.
func (s *Session) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case raw, ok := <-s.frames:
		if !ok {
			return nil, errors.Connection("connection closed", s.readErr)
		}
		return raw, nil
	case <-t.C:
		return nil, ErrNoTraffic
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close tears the connection down. Safe to call more than once; the read pump
// exits as a consequence.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}
