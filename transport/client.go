package transport

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const closeGrace = time.Second

// WSSender is a client-side handle to a relay's collector port.
type WSSender struct {
	mu sync.Mutex
	ws *websocket.Conn
}

// DialSender connects to a relay's collector port.
func DialSender(ctx context.Context, url string) (*WSSender, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dial collector %s: %w", url, err)
	}
	return &WSSender{ws: ws}, nil
}

// Send pushes one frame to the collector. The transport buffers; from
// the caller's perspective this is fire-and-forget. Any error is fatal
// to the session.
func (s *WSSender) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("transport: send: %w", err)
	}
	return nil
}

func (s *WSSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeGrace))
	return s.ws.Close()
}

// WSSubscriber is a client-side handle to a relay's broadcast port,
// filtered to one topic prefix.
type WSSubscriber struct {
	ws     *websocket.Conn
	prefix []byte

	mu     sync.Mutex
	closed bool
}

// DialSubscriber connects to a relay's broadcast port and subscribes to
// the given topic prefix. The broadcast port ships every frame; frames
// outside the prefix are discarded here, on the subscriber side.
func DialSubscriber(ctx context.Context, url, prefix string) (*WSSubscriber, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dial broadcast %s: %w", url, err)
	}
	return &WSSubscriber{ws: ws, prefix: []byte(prefix)}, nil
}

// Receive blocks until a frame matching the subscribed prefix arrives.
// Close the subscriber to unblock a parked Receive; context
// cancellation is only observed between frames.
func (s *WSSubscriber) Receive(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_, payload, err := s.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if s.isClosed() {
				return nil, ErrClosed
			}
			return nil, fmt.Errorf("transport: receive: %w", err)
		}
		if !bytes.HasPrefix(payload, s.prefix) {
			continue
		}
		return payload, nil
	}
}

func (s *WSSubscriber) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *WSSubscriber) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	_ = s.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeGrace))
	return s.ws.Close()
}
