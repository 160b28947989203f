// Package relay implements the collect-and-fan-out loop at the center
// of zerochat. The relay owns both transport ports, is channel-agnostic
// and keeps no state across iterations: clients joining or leaving cost
// it nothing, because channel filtering is delegated entirely to
// subscriber-side prefix matching in the transport.
package relay

import (
	"context"
	"fmt"
	"log/slog"

	gometrics "github.com/rcrowley/go-metrics"

	"github.com/bradmontgomery/zerochat/transport"
	"github.com/bradmontgomery/zerochat/wire"
)

type Relay struct {
	log       *slog.Logger
	collector transport.Collector
	broadcast transport.Broadcaster
	registry  gometrics.Registry
}

func New(log *slog.Logger, collector transport.Collector, broadcast transport.Broadcaster, registry gometrics.Registry) *Relay {
	if registry == nil {
		registry = gometrics.DefaultRegistry
	}
	return &Relay{log: log, collector: collector, broadcast: broadcast, registry: registry}
}

// Run blocks until the context is canceled or the transport dies.
// Each iteration receives one frame (the sole suspension point), checks
// that it decodes, and republishes the raw bytes unchanged. A malformed
// frame is dropped and counted; one bad client must not stop the relay.
// A transport failure is fatal and returned: no retry, no reconnect.
func (r *Relay) Run(ctx context.Context) error {
	for {
		payload, err := r.collector.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				r.log.Info("relay stopping", "reason", "canceled")
				return nil
			}
			return fmt.Errorf("relay: collector receive: %w", err)
		}
		r.count("relay.received")

		env, err := wire.Decode(payload)
		if err != nil {
			r.count("relay.dropped_malformed")
			r.log.Debug("dropping malformed frame", "error", err, "size", len(payload))
			continue
		}

		r.broadcast.Publish(payload)
		r.count("relay.relayed")
		r.log.Debug("relayed", "channel", env.Channel, "username", env.Username, "size", len(payload))
	}
}

func (r *Relay) count(name string) {
	gometrics.GetOrRegisterCounter(name, r.registry).Inc(1)
}
