// Package wire implements the envelope byte layout shared by the relay
// and its clients. One envelope per transport frame:
//
//	[CHANNEL] <unix-nanos> <username>: <body>
//
// The channel tag, including the closing bracket, doubles as the
// subscription topic. Because every topic ends with ']', and ']' can
// never appear inside a channel name, one channel's topic is never a
// byte prefix of another channel's frames: subscribing to "[GEN]" does
// not match "[GENERAL] ..." and vice versa.
package wire

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/bradmontgomery/zerochat/domain"
)

// ErrMalformedEnvelope reports a frame that does not split into the
// expected fields. Both the relay and the client drop such frames and
// keep running.
var ErrMalformedEnvelope = fmt.Errorf("malformed envelope")

// Topic returns the subscription topic for a channel. The channel is
// expected to be normalized (domain.ValidateChannel).
func Topic(channel string) string {
	return "[" + channel + "]"
}

// Encode serializes an envelope into one wire frame. It fails with a
// domain validation error if the channel or username is empty or
// contains reserved bytes.
func Encode(e domain.Envelope) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	frame := fmt.Sprintf("%s %d %s: %s", Topic(e.Channel), e.CreatedAt.UnixNano(), e.Username, e.Body)
	return []byte(frame), nil
}

// Decode parses one wire frame back into an envelope. The first ": "
// after the timestamp is the username separator; usernames cannot
// contain ':' or ' ', so a body is free to contain both.
func Decode(payload []byte) (domain.Envelope, error) {
	if len(payload) == 0 || payload[0] != '[' {
		return domain.Envelope{}, fmt.Errorf("%w: missing channel tag", ErrMalformedEnvelope)
	}
	end := bytes.IndexByte(payload, ']')
	if end < 0 {
		return domain.Envelope{}, fmt.Errorf("%w: unterminated channel tag", ErrMalformedEnvelope)
	}
	channel := string(payload[1:end])
	normalized, err := domain.ValidateChannel(channel)
	if err != nil || normalized != channel {
		// Only canonical (uppercase) channel tags exist on the wire.
		return domain.Envelope{}, fmt.Errorf("%w: bad channel %q", ErrMalformedEnvelope, channel)
	}

	rest := payload[end+1:]
	if len(rest) == 0 || rest[0] != ' ' {
		return domain.Envelope{}, fmt.Errorf("%w: missing timestamp", ErrMalformedEnvelope)
	}
	rest = rest[1:]
	sp := bytes.IndexByte(rest, ' ')
	if sp < 0 {
		return domain.Envelope{}, fmt.Errorf("%w: missing timestamp", ErrMalformedEnvelope)
	}
	nanos, err := strconv.ParseInt(string(rest[:sp]), 10, 64)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("%w: bad timestamp %q", ErrMalformedEnvelope, rest[:sp])
	}

	rest = rest[sp+1:]
	sep := bytes.Index(rest, []byte(": "))
	if sep < 0 {
		return domain.Envelope{}, fmt.Errorf("%w: missing username separator", ErrMalformedEnvelope)
	}
	username := string(rest[:sep])
	trimmed, err := domain.ValidateUsername(username)
	if err != nil || trimmed != username {
		// Only canonical usernames exist on the wire; padding means the
		// separator split in the wrong place.
		return domain.Envelope{}, fmt.Errorf("%w: bad username %q", ErrMalformedEnvelope, username)
	}

	return domain.Envelope{
		Channel:   channel,
		Username:  username,
		Body:      string(rest[sep+2:]),
		CreatedAt: time.Unix(0, nanos),
	}, nil
}
