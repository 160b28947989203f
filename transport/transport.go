// Package transport is the messaging substrate underneath the relay: a
// many-to-one collector (clients push frames in) and a one-to-many
// broadcaster (every frame goes to every subscriber). Channel filtering
// happens on the subscriber side with a plain byte-prefix match, so the
// relay side needs no per-channel or per-client bookkeeping.
//
// Frames are opaque byte payloads carried in WebSocket text messages.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
)

const (
	pushPath = "/push"
	subPath  = "/sub"
)

// ErrClosed reports an operation on a transport endpoint that has shut
// down. Any error out of a transport handle is fatal to its owner;
// there is no reconnect path.
var ErrClosed = errors.New("transport: closed")

// Collector is the relay's many-to-one ingestion endpoint.
type Collector interface {
	// Receive blocks until one frame arrives, the context is canceled,
	// or the endpoint dies.
	Receive(ctx context.Context) ([]byte, error)
}

// Broadcaster is the relay's one-to-many publish endpoint. Publish is
// best-effort per subscriber: a subscriber that cannot keep up loses
// frames rather than blocking the relay.
type Broadcaster interface {
	Publish(payload []byte)
}

// Sender is a client's handle to the collector port.
type Sender interface {
	Send(payload []byte) error
	Close() error
}

// Subscriber is a client's filtered handle to the broadcast port. Only
// frames starting with the subscribed prefix are delivered.
type Subscriber interface {
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// PushURL builds the WebSocket URL of a relay's collector port.
func PushURL(host string, port int) string {
	return wsURL(host, port, pushPath)
}

// SubURL builds the WebSocket URL of a relay's broadcast port.
func SubURL(host string, port int) string {
	return wsURL(host, port, subPath)
}

func wsURL(host string, port int, path string) string {
	return fmt.Sprintf("ws://%s%s", net.JoinHostPort(host, strconv.Itoa(port)), path)
}
