package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValidateChannel_Normalizes(t *testing.T) {
	req := require.New(t)

	// When a lowercase, padded channel is validated
	channel, err := ValidateChannel("  general ")

	// Then it comes back trimmed and uppercase
	req.NoError(err)
	req.Equal("GENERAL", channel)
}

func TestValidateChannel_Rejections(t *testing.T) {
	cases := []struct {
		name    string
		channel string
		want    error
	}{
		{"empty", "", ErrEmptyChannel},
		{"blank", "   ", ErrEmptyChannel},
		{"too_long", strings.Repeat("x", MaxChannelLength+1), ErrChannelTooLong},
		{"inner_space", "general chat", ErrInvalidChannel},
		{"wire_delimiters", "[general]", ErrInvalidChannel},
		{"colon", "general:chat", ErrInvalidChannel},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			_, err := ValidateChannel(tc.channel)
			req.ErrorIs(err, tc.want)
			req.ErrorIs(err, ErrInvalid)
		})
	}
}

func TestValidateUsername_Rejections(t *testing.T) {
	cases := []struct {
		name     string
		username string
		want     error
	}{
		{"empty", "", ErrEmptyUsername},
		{"too_long", strings.Repeat("a", MaxUsernameLength+1), ErrUsernameTooLong},
		{"inner_space", "alice smith", ErrInvalidUsername},
		{"bracket", "alice]", ErrInvalidUsername},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			_, err := ValidateUsername(tc.username)
			req.ErrorIs(err, tc.want)
			req.ErrorIs(err, ErrInvalid)
		})
	}
}

func TestValidateUsername_KeepsCase(t *testing.T) {
	req := require.New(t)

	username, err := ValidateUsername(" Alice_42 ")

	req.NoError(err)
	req.Equal("Alice_42", username)
}

func TestEnvelope_Validate_RequiresCanonicalFields(t *testing.T) {
	req := require.New(t)

	req.NoError(Envelope{Channel: "GLOBAL", Username: "alice"}.Validate())

	// A lowercase channel normalizes without error, but the wire only
	// carries the canonical form, so Validate must not wave it through.
	req.ErrorIs(Envelope{Channel: "general", Username: "alice"}.Validate(), ErrInvalid)
	req.ErrorIs(Envelope{Channel: "GLOBAL", Username: " alice "}.Validate(), ErrInvalid)
}

func TestNewEnvelope(t *testing.T) {
	req := require.New(t)
	at := time.Unix(0, 1700000000123456789)

	// When an envelope is built from raw user input
	env, err := NewEnvelope("general", " alice ", "hello there", at)

	// Then the identity fields are normalized, the body kept verbatim
	req.NoError(err)
	req.Equal("GENERAL", env.Channel)
	req.Equal("alice", env.Username)
	req.Equal("hello there", env.Body)
	req.True(env.CreatedAt.Equal(at))
}

func TestNewEnvelope_EmptyBodyIsAllowed(t *testing.T) {
	req := require.New(t)

	env, err := NewEnvelope("dev", "bob", "", time.Now())

	req.NoError(err)
	req.Empty(env.Body)
}

func TestNewEnvelope_RejectsBadIdentity(t *testing.T) {
	req := require.New(t)

	_, err := NewEnvelope("", "alice", "hi", time.Now())
	req.ErrorIs(err, ErrEmptyChannel)

	_, err = NewEnvelope("general", "", "hi", time.Now())
	req.ErrorIs(err, ErrEmptyUsername)
}
