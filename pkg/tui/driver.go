// Package tui hosts a mounted component inside a Bubble Tea program.
// The render boundary is deliberately thin: the driver reads frames with
// View and learns about new ones with Subscribe, nothing else. All state
// lives behind the component's signals, and all writes happen on the
// dispatch loop.
package tui

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/tangle-tui/tangle/pkg/component"
	"github.com/tangle-tui/tangle/pkg/runtime"
)

// repaintMsg carries a freshly rendered frame from the dispatch loop to
// the Bubble Tea event loop.
type repaintMsg struct {
	frame string
}

// Driver runs a mounted component on a terminal.
type Driver struct {
	loop  *runtime.Loop
	inst  *component.Instance
	title string
	keys  func(tea.KeyMsg)
}

// Option configures a Driver.
type Option func(*Driver)

// WithTitle sets the frame title.
func WithTitle(title string) Option {
	return func(d *Driver) { d.title = title }
}

// WithKeyHandler routes key presses to fn on the dispatch loop. The
// driver still handles q and ctrl+c as quit.
func WithKeyHandler(fn func(tea.KeyMsg)) Option {
	return func(d *Driver) { d.keys = fn }
}

// NewDriver prepares a driver for a mounted instance. The loop must be
// running before Run is called.
func NewDriver(loop *runtime.Loop, inst *component.Instance, opts ...Option) *Driver {
	d := &Driver{loop: loop, inst: inst}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// IsTerminal reports whether stdout is an interactive terminal. Callers
// use it to fall back to plain output when piped.
func IsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Run mounts the program on the terminal and blocks until the user quits
// or ctx is cancelled. Frame changes arrive through the view memo's
// subscription and are forwarded with Program.Send.
func (d *Driver) Run(ctx context.Context) error {
	var frame string
	d.loop.Call(func() { frame = d.inst.View() })

	m := newModel(frame, d.title, d.keys, d.loop)
	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	var unsub func()
	d.loop.Call(func() {
		unsub = d.inst.Subscribe(func(frame string) {
			p.Send(repaintMsg{frame: frame})
		})
	})
	defer func() {
		d.loop.Call(func() { unsub() })
	}()

	_, err := p.Run()
	return err
}
