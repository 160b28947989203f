// Package domain contains core concepts of the chat relay.
// This file defines the Envelope and its validation rules.
// Envelopes are immutable and validated by the domain.
package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	MaxChannelLength  = 32
	MaxUsernameLength = 32
)

// tokenPattern is shared by channels and usernames. It deliberately
// excludes every byte the wire format reserves ('[', ']', ':', space).
var tokenPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ErrInvalid is the root of all validation failures. Callers match it
// with errors.Is to reject bad input before anything reaches the wire.
var ErrInvalid = fmt.Errorf("invalid envelope field")

var (
	ErrEmptyChannel    = fmt.Errorf("%w: channel cannot be empty", ErrInvalid)
	ErrChannelTooLong  = fmt.Errorf("%w: channel cannot exceed %d characters", ErrInvalid, MaxChannelLength)
	ErrInvalidChannel  = fmt.Errorf("%w: channel can only contain letters, numbers, underscores, and hyphens", ErrInvalid)
	ErrEmptyUsername   = fmt.Errorf("%w: username cannot be empty", ErrInvalid)
	ErrUsernameTooLong = fmt.Errorf("%w: username cannot exceed %d characters", ErrInvalid, MaxUsernameLength)
	ErrInvalidUsername = fmt.Errorf("%w: username can only contain letters, numbers, underscores, and hyphens", ErrInvalid)
)

// Envelope represents one immutable chat message unit. It is built by a
// client session at send time, forwarded by the relay without
// modification, and reconstructed by value on every receiving session.
type Envelope struct {
	Channel   string
	Username  string
	Body      string // may be empty
	CreatedAt time.Time
}

// NewEnvelope validates and normalizes the sender-controlled fields and
// stamps the creation instant.
func NewEnvelope(channel, username, body string, at time.Time) (Envelope, error) {
	channel, err := ValidateChannel(channel)
	if err != nil {
		return Envelope{}, err
	}
	username, err = ValidateUsername(username)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Channel: channel, Username: username, Body: body, CreatedAt: at}, nil
}

// Validate checks an already-normalized envelope, as used right before
// encoding. Fields must be in canonical form: a channel that merely
// normalizes without error is not enough, the wire carries only
// uppercase channel tags and trimmed usernames.
func (e Envelope) Validate() error {
	channel, err := ValidateChannel(e.Channel)
	if err != nil {
		return err
	}
	if channel != e.Channel {
		return fmt.Errorf("%w: channel %q is not normalized", ErrInvalid, e.Channel)
	}
	username, err := ValidateUsername(e.Username)
	if err != nil {
		return err
	}
	if username != e.Username {
		return fmt.Errorf("%w: username %q is not normalized", ErrInvalid, e.Username)
	}
	return nil
}

// ValidateChannel returns the normalized channel name. Channels are
// case-insensitive and stored uppercase, as in
// "[GLOBAL] alice: hello".
func ValidateChannel(channel string) (string, error) {
	channel = strings.ToUpper(strings.TrimSpace(channel))
	switch {
	case channel == "":
		return "", ErrEmptyChannel
	case len(channel) > MaxChannelLength:
		return "", ErrChannelTooLong
	case !tokenPattern.MatchString(channel):
		return "", ErrInvalidChannel
	}
	return channel, nil
}

// ValidateUsername returns the trimmed username.
func ValidateUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	switch {
	case username == "":
		return "", ErrEmptyUsername
	case len(username) > MaxUsernameLength:
		return "", ErrUsernameTooLong
	case !tokenPattern.MatchString(username):
		return "", ErrInvalidUsername
	}
	return username, nil
}
