// Package logs configures structured logging for the zerochat
// binaries. Both write JSON lines to a file under ~/.zerochat/logs/;
// the client keeps stdout clean for the chat itself.
package logs

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// FromString builds a JSON logger at the level named by s. Unknown
// names fall back to INFO.
func FromString(s string, w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(s)}))
}

func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// OpenFile opens (appending, creating directories as needed) the
// default log file for a component, e.g. ~/.zerochat/logs/server.log.
func OpenFile(component string) (*os.File, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("logs: resolve home: %w", err)
	}
	dir := filepath.Join(home, ".zerochat", "logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logs: create %s: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, component+".log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logs: open log file: %w", err)
	}
	return f, nil
}
