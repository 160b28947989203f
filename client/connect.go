package client

import (
	"context"
	"io"
	"log/slog"

	"github.com/bradmontgomery/zerochat/domain"
	"github.com/bradmontgomery/zerochat/transport"
	"github.com/bradmontgomery/zerochat/wire"
)

// Connect is the STARTING phase of a session: it validates the identity
// fields, establishes both transport handles, and subscribes to exactly
// one channel topic. The returned session is ready to Run.
func Connect(ctx context.Context, log *slog.Logger, cfg Config, input io.Reader, out io.Writer) (*Session, error) {
	channel, err := domain.ValidateChannel(cfg.Channel)
	if err != nil {
		return nil, err
	}
	username, err := domain.ValidateUsername(cfg.Username)
	if err != nil {
		return nil, err
	}
	cfg.Channel, cfg.Username = channel, username

	sender, err := transport.DialSender(ctx, transport.PushURL(cfg.Host, cfg.SendPort))
	if err != nil {
		return nil, err
	}
	sub, err := transport.DialSubscriber(ctx, transport.SubURL(cfg.Host, cfg.PubPort), wire.Topic(channel))
	if err != nil {
		_ = sender.Close()
		return nil, err
	}

	log.Info("connected",
		"host", cfg.Host,
		"channel", channel,
		"username", username,
		"topic", wire.Topic(channel))
	return NewSession(log, cfg, sender, sub, input, NewRenderer(out, true), nil), nil
}
