// Package client implements one connected user's session: reading
// keyboard input, pushing completed lines to the relay's collector
// port, and rendering envelopes arriving on the subscribed channel.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	gometrics "github.com/rcrowley/go-metrics"

	"github.com/bradmontgomery/zerochat/domain"
	"github.com/bradmontgomery/zerochat/transport"
	"github.com/bradmontgomery/zerochat/wire"
)

// State models the session lifecycle. There is no reconnect transition:
// a transport failure goes straight to STOPPING.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Config fixes the session's identity at start; username and channel
// never change while the session runs.
type Config struct {
	Username string
	Channel  string
	Host     string
	PubPort  int
	SendPort int
}

// Session coordinates three concurrent activities: reading local input,
// sending completed lines as envelopes, and rendering incoming
// envelopes as they arrive. None of them may block the others; the only
// shared resource is the renderer, which serializes its writes.
type Session struct {
	log      *slog.Logger
	cfg      Config
	id       string
	sender   transport.Sender
	sub      transport.Subscriber
	input    io.Reader
	renderer *Renderer
	clock    domain.SenderClock
	registry gometrics.Registry
	state    atomic.Int32
	release  sync.Once
}

// NewSession wires a session over already-established transport
// handles. Connect is the production path; tests inject fakes here.
func NewSession(log *slog.Logger, cfg Config, sender transport.Sender, sub transport.Subscriber, input io.Reader, renderer *Renderer, registry gometrics.Registry) *Session {
	if registry == nil {
		registry = gometrics.DefaultRegistry
	}
	s := &Session{
		log:      log,
		cfg:      cfg,
		id:       uuid.NewString(),
		sender:   sender,
		sub:      sub,
		input:    input,
		renderer: renderer,
		registry: registry,
	}
	s.state.Store(int32(StateStarting))
	return s
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Channel reports the normalized channel the session is subscribed to.
func (s *Session) Channel() string { return s.cfg.Channel }

// Username reports the session's normalized display name.
func (s *Session) Username() string { return s.cfg.Username }

// Run drives the session until the context is canceled, the input
// source reaches EOF, or the transport dies. On the way out it releases
// both transport handles and reports STOPPED; the caller owns the exit.
func (s *Session) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateStarting), int32(StateRunning)) {
		return fmt.Errorf("client: session already started")
	}
	s.log.Info("session running", "session_id", s.id, "channel", s.cfg.Channel, "username", s.cfg.Username)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	fatal := make(chan error, 2)
	sendDone := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() { defer wg.Done(); s.receiveLoop(ctx, fatal) }()
	go func() { defer close(sendDone); s.sendLoop(ctx, lines, fatal) }()

	// The input goroutine is not waited for: a read blocked on a
	// terminal cannot be interrupted, so shutdown abandons it instead.
	// The input source stays line-buffered throughout, there is no
	// terminal mode to restore.
	go s.inputLoop(ctx, lines)

	// End of input is observed through sendDone, not directly: the
	// input goroutine closes lines at EOF and the send activity drains
	// them first, so the last typed line is on the wire before the
	// sender handle is released.
	var runErr error
	select {
	case <-ctx.Done():
	case <-sendDone:
	case runErr = <-fatal:
	}

	s.state.Store(int32(StateStopping))
	s.log.Info("session stopping", "session_id", s.id)
	cancel()
	s.releaseHandles()
	wg.Wait()
	<-sendDone

	// A transport failure that raced the shutdown trigger still counts.
	if runErr == nil {
		select {
		case runErr = <-fatal:
		default:
		}
	}
	s.state.Store(int32(StateStopped))
	return runErr
}

// inputLoop reads completed lines from the local input source and
// closes lines at EOF. Empty lines are not sent: direct keyboard input
// never produces an empty-body envelope.
func (s *Session) inputLoop(ctx context.Context, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(s.input)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case lines <- line:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		s.log.Warn("input source failed", "session_id", s.id, "error", err)
	}
}

// sendLoop turns completed lines into envelopes and pushes them to the
// collector port in the order they were typed. Sending is
// fire-and-forget; only a transport error stops the session.
func (s *Session) sendLoop(ctx context.Context, lines <-chan string, fatal chan<- error) {
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			env, err := domain.NewEnvelope(s.cfg.Channel, s.cfg.Username, line, s.clock.Now())
			if err != nil {
				// Reject this one line; the session keeps running.
				s.renderer.Notice(fmt.Sprintf("not sent: %v", err))
				continue
			}
			payload, err := wire.Encode(env)
			if err != nil {
				s.renderer.Notice(fmt.Sprintf("not sent: %v", err))
				continue
			}
			if err := s.sender.Send(payload); err != nil {
				// The handles are only released after cancellation, so
				// an error with the context still live is a genuine
				// transport failure, not our own close.
				if ctx.Err() == nil {
					select {
					case fatal <- err:
					default:
					}
				}
				return
			}
			s.count("client.sent")
		}
	}
}

// receiveLoop renders envelopes from the broadcast port as they
// arrive. Frames are already filtered to the subscribed channel by the
// transport; a malformed frame is dropped and never crashes the loop.
func (s *Session) receiveLoop(ctx context.Context, fatal chan<- error) {
	for {
		payload, err := s.sub.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, transport.ErrClosed) {
				return
			}
			select {
			case fatal <- err:
			default:
			}
			return
		}
		env, err := wire.Decode(payload)
		if err != nil {
			s.count("client.dropped_malformed")
			s.log.Debug("dropping malformed frame", "session_id", s.id, "error", err)
			continue
		}
		s.renderer.Print(env)
		s.count("client.rendered")
	}
}

func (s *Session) releaseHandles() {
	s.release.Do(func() {
		if err := s.sender.Close(); err != nil {
			s.log.Debug("sender close", "session_id", s.id, "error", err)
		}
		if err := s.sub.Close(); err != nil {
			s.log.Debug("subscriber close", "session_id", s.id, "error", err)
		}
	})
}

func (s *Session) count(name string) {
	gometrics.GetOrRegisterCounter(name, s.registry).Inc(1)
}
