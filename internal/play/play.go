// Package play runs the foreground loop: poll input, hand intents to the
// session, redraw. It stops on quit or as soon as the session terminates.
package play

import (
	"context"
	"time"

	"gridrealm.dev/internal/intent"
	"gridrealm.dev/internal/world"
)

// DefaultFrameInterval is the pause between foreground iterations.
const DefaultFrameInterval = 10 * time.Millisecond

// Input is one decoded user action. Quit wins over Intent.
type Input struct {
	Quit   bool
	Intent intent.Intent
}

// Session is the background side as seen by the foreground.
type Session interface {
	LatestSnapshot() world.Snapshot
	SubmitCommand(intent.Intent) bool
	SubmitChat(intent.Say) bool
	Terminated() bool
}

// UI decodes pending input against a snapshot and renders snapshots. Poll
// must not block.
type UI interface {
	Poll(world.Snapshot) []Input
	Draw(world.Snapshot)
}

type Result int

const (
	// Quit means the user asked to leave.
	Quit Result = iota
	// Terminated means the session ended on its own; ask it why.
	Terminated
)

func (r Result) String() string {
	if r == Terminated {
		return "terminated"
	}
	return "quit"
}

// Run loops until the user quits, ctx is cancelled (treated as quit) or the
// session terminates. Nothing is drawn once termination is observed.
func Run(ctx context.Context, s Session, ui UI, frame time.Duration) Result {
	if frame <= 0 {
		frame = DefaultFrameInterval
	}
	tick := time.NewTicker(frame)
	defer tick.Stop()

	for {
		if s.Terminated() {
			return Terminated
		}
		snap := s.LatestSnapshot()
		for _, in := range ui.Poll(snap) {
			if in.Quit {
				return Quit
			}
			dispatch(s, in.Intent)
		}
		if s.Terminated() {
			return Terminated
		}
		ui.Draw(s.LatestSnapshot())

		select {
		case <-ctx.Done():
			return Quit
		case <-tick.C:
		}
	}
}

func dispatch(s Session, in intent.Intent) {
	switch v := in.(type) {
	case nil:
	case intent.Say:
		s.SubmitChat(v)
	default:
		s.SubmitCommand(v)
	}
}
