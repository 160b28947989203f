package client

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gookit/color"

	"github.com/bradmontgomery/zerochat/domain"
)

// Renderer is the single shared resource inside a session. The receive
// activity and the send activity both write to it; the mutex keeps
// concurrent lines from interleaving mid-line.
type Renderer struct {
	mu      sync.Mutex
	out     io.Writer
	colored bool
}

func NewRenderer(out io.Writer, colored bool) *Renderer {
	return &Renderer{out: out, colored: colored}
}

// Print renders one incoming envelope as "[15:04:05] username: body".
func (r *Renderer) Print(env domain.Envelope) {
	ts := env.CreatedAt.Format(time.TimeOnly)
	name := env.Username
	if r.colored {
		ts = color.FgCyan.Render(ts)
		name = color.FgGreen.Render(name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "[%s] %s: %s\n", ts, name, env.Body)
}

// Notice renders a local, session-only line such as a rejected input.
func (r *Renderer) Notice(text string) {
	if r.colored {
		text = color.FgYellow.Render(text)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "* %s\n", text)
}
