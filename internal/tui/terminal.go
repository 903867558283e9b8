// Package tui is the tcell front end: it decodes key presses into intents
// and renders snapshots.
package tui

import (
	"github.com/gdamore/tcell/v2"

	"gridrealm.dev/internal/play"
	"gridrealm.dev/internal/world"
)

// Terminal implements play.UI on a tcell screen.
type Terminal struct {
	screen tcell.Screen
	keys   Keys
	// events receives all tcell events from the polling goroutine.
	events chan tcell.Event
	quit   chan struct{}
}

// Open takes over the process terminal.
func Open() (*Terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return New(screen)
}

// New initialises screen and starts polling it for events.
func New(screen tcell.Screen) (*Terminal, error) {
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.HideCursor()
	screen.SetStyle(styleDefault)
	t := &Terminal{
		screen: screen,
		events: make(chan tcell.Event, 32),
		quit:   make(chan struct{}),
	}
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case t.events <- ev:
			case <-t.quit:
				return
			}
		}
	}()
	return t, nil
}

// Poll drains pending events without blocking.
func (t *Terminal) Poll(snap world.Snapshot) []play.Input {
	var out []play.Input
	for {
		select {
		case ev := <-t.events:
			switch ev := ev.(type) {
			case *tcell.EventResize:
				t.screen.Sync()
			case *tcell.EventKey:
				if in, ok := t.keys.Handle(ev, snap); ok {
					out = append(out, in)
				}
			}
		default:
			return out
		}
	}
}

func (t *Terminal) Draw(snap world.Snapshot) { draw(t.screen, snap, &t.keys) }

// Close restores the terminal.
func (t *Terminal) Close() {
	close(t.quit)
	t.screen.Fini()
}
