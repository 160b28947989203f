package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

const (
	defaultQueueSize      = 64
	defaultSubscriberSize = 256
)

// ServerConfig holds the relay-side bind parameters. The collector and
// the broadcaster listen on separate ports, mirroring the PULL/PUB
// split of the original wiring.
type ServerConfig struct {
	Host     string
	PubPort  int
	RecvPort int

	// QueueSize bounds the collector's internal frame queue,
	// SubscriberSize the per-subscriber send buffer. Zero means default.
	QueueSize      int
	SubscriberSize int
}

// Server owns both relay-side transport ports.
type Server struct {
	log       *slog.Logger
	collector *collector
	broadcast *broadcaster
	recvSrv   *http.Server
	pubSrv    *http.Server
	recvLn    net.Listener
	pubLn     net.Listener
	closeOnce sync.Once
}

// Listen binds the collector and broadcast ports. A bind failure on
// either port is fatal; nothing is retried.
func Listen(log *slog.Logger, cfg ServerConfig) (*Server, error) {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.SubscriberSize <= 0 {
		cfg.SubscriberSize = defaultSubscriberSize
	}

	recvLn, err := net.Listen("tcp", net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.RecvPort)))
	if err != nil {
		return nil, fmt.Errorf("transport: bind collector port: %w", err)
	}
	pubLn, err := net.Listen("tcp", net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.PubPort)))
	if err != nil {
		_ = recvLn.Close()
		return nil, fmt.Errorf("transport: bind broadcast port: %w", err)
	}

	s := &Server{
		log:       log,
		collector: newCollector(log, cfg.QueueSize),
		broadcast: newBroadcaster(log, cfg.SubscriberSize),
		recvLn:    recvLn,
		pubLn:     pubLn,
	}

	recvMux := http.NewServeMux()
	recvMux.Handle(pushPath, s.collector)
	s.recvSrv = &http.Server{Handler: recvMux}

	pubMux := http.NewServeMux()
	pubMux.Handle(subPath, s.broadcast)
	s.pubSrv = &http.Server{Handler: pubMux}

	go s.serve(s.recvSrv, recvLn, "collector")
	go s.serve(s.pubSrv, pubLn, "broadcast")

	log.Info("transport listening",
		"collector", recvLn.Addr().String(),
		"broadcast", pubLn.Addr().String())
	return s, nil
}

// serve runs one HTTP listener. A listener that dies outside of Close
// takes the collector down with it, so the relay loop observes the
// failure and terminates.
func (s *Server) serve(srv *http.Server, ln net.Listener, name string) {
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Error("transport listener failed", "listener", name, "error", err)
		s.collector.close()
	}
}

func (s *Server) Collector() Collector     { return s.collector }
func (s *Server) Broadcaster() Broadcaster { return s.broadcast }

// Subscribers reports how many connections the broadcast port is
// currently fanning out to.
func (s *Server) Subscribers() int { return s.broadcast.count() }

// RecvAddr reports the bound collector address (useful with port 0).
func (s *Server) RecvAddr() string { return s.recvLn.Addr().String() }

// PubAddr reports the bound broadcast address.
func (s *Server) PubAddr() string { return s.pubLn.Addr().String() }

// Close releases both ports and disconnects every client.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.collector.close()
		s.broadcast.close()
		_ = s.recvSrv.Close()
		_ = s.pubSrv.Close()
	})
	return nil
}

var upgrader = websocket.Upgrader{
	// The relay trusts its network segment; origins are not checked.
	CheckOrigin: func(*http.Request) bool { return true },
}

// collector merges frames from every connected sender into one queue.
type collector struct {
	log   *slog.Logger
	queue chan []byte
	done  chan struct{}
	once  sync.Once
}

func newCollector(log *slog.Logger, queueSize int) *collector {
	return &collector{
		log:   log,
		queue: make(chan []byte, queueSize),
		done:  make(chan struct{}),
	}
}

func (c *collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.log.Debug("collector upgrade failed", "error", err)
		return
	}
	id := uuid.NewString()
	c.log.Debug("sender connected", "conn_id", id, "remote", r.RemoteAddr)
	go c.read(id, ws)
}

// read drains one sender connection. A broken sender only costs its own
// connection, never the queue.
func (c *collector) read(id string, ws *websocket.Conn) {
	defer func() { _ = ws.Close() }()
	for {
		_, payload, err := ws.ReadMessage()
		if err != nil {
			c.log.Debug("sender disconnected", "conn_id", id, "error", err)
			return
		}
		select {
		case c.queue <- payload:
		case <-c.done:
			return
		}
	}
}

func (c *collector) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	case payload := <-c.queue:
		return payload, nil
	}
}

func (c *collector) close() {
	c.once.Do(func() { close(c.done) })
}

// broadcaster fans every frame out to every subscriber connection. It
// never inspects payloads; filtering belongs to the subscriber side.
type broadcaster struct {
	log    *slog.Logger
	size   int
	mu     sync.RWMutex
	subs   map[string]*subscriberConn
	closed bool
}

type subscriberConn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
}

func newBroadcaster(log *slog.Logger, size int) *broadcaster {
	return &broadcaster{log: log, size: size, subs: make(map[string]*subscriberConn)}
}

func (b *broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Debug("broadcast upgrade failed", "error", err)
		return
	}
	sub := &subscriberConn{id: uuid.NewString(), ws: ws, send: make(chan []byte, b.size)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		_ = ws.Close()
		return
	}
	b.subs[sub.id] = sub
	count := len(b.subs)
	b.mu.Unlock()

	b.log.Debug("subscriber connected", "conn_id", sub.id, "remote", r.RemoteAddr, "subscribers", count)
	go b.write(sub)
	go b.watch(sub)
}

func (b *broadcaster) Publish(payload []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		select {
		case sub.send <- payload:
		default:
			// A subscriber that cannot keep up loses this frame.
			b.log.Debug("slow subscriber, dropping frame", "conn_id", sub.id)
		}
	}
}

func (b *broadcaster) count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *broadcaster) write(sub *subscriberConn) {
	for payload := range sub.send {
		if err := sub.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
			break
		}
	}
	_ = sub.ws.Close()
}

// watch detects a subscriber hanging up. Subscribers never send data;
// the read only ever returns an error.
func (b *broadcaster) watch(sub *subscriberConn) {
	for {
		if _, _, err := sub.ws.NextReader(); err != nil {
			b.remove(sub.id)
			return
		}
	}
}

func (b *broadcaster) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(sub.send)
		b.log.Debug("subscriber disconnected", "conn_id", id, "subscribers", len(b.subs))
	}
}

func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range lo.Values(b.subs) {
		close(sub.send)
	}
	b.subs = make(map[string]*subscriberConn)
}
