package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"gridrealm.dev/internal/authority"
	"gridrealm.dev/internal/intent"
	"gridrealm.dev/internal/world"
)

// DefaultRefreshInterval bounds how long a cycle waits without an intent.
const DefaultRefreshInterval = 200 * time.Millisecond

const (
	wakeStart   = "start"
	wakeTimer   = "timer"
	wakeCommand = "command"
	wakeChat    = "chat"
)

// syncLoop owns the authority for the lifetime of a session. It is the only
// writer of pub.
type syncLoop struct {
	auth     authority.Authority
	self     world.EntityID
	commands *Slot[intent.Intent]
	chats    *Slot[intent.Say]
	pub      *Publisher
	interval time.Duration
	metrics  *Metrics
	log      logrus.FieldLogger
}

// run returns nil when ctx is cancelled and the first authority error
// otherwise.
func (l *syncLoop) run(ctx context.Context) error {
	if err := l.cycle(ctx, wakeStart); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	timer := time.NewTimer(l.interval)
	defer timer.Stop()
	for {
		var wake string
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			wake = wakeTimer
		case <-l.commands.Ready():
			wake = wakeCommand
		case <-l.chats.Ready():
			wake = wakeChat
		}
		if err := l.cycle(ctx, wake); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(l.interval)
	}
}

// cycle persists the intent that woke it, if any, then rebuilds and
// publishes the snapshot. The write always precedes the reads.
func (l *syncLoop) cycle(ctx context.Context, wake string) error {
	l.metrics.Cycles.WithLabelValues(wake).Inc()

	switch wake {
	case wakeCommand:
		if in, ok := l.commands.TakeIfChanged(); ok {
			cmd, ok := intent.ToCommand(l.self, in)
			if ok {
				if err := l.auth.InsertCommand(ctx, cmd); err != nil {
					return fmt.Errorf("insert command: %w", err)
				}
				l.metrics.Writes.WithLabelValues(cmd.Kind).Inc()
				l.log.WithField("kind", cmd.Kind).Debug("command persisted")
			}
		}
	case wakeChat:
		if say, ok := l.chats.TakeIfChanged(); ok {
			if err := l.auth.InsertChat(ctx, intent.ToChat(l.self, say)); err != nil {
				return fmt.Errorf("insert chat: %w", err)
			}
			l.metrics.Writes.WithLabelValues("say").Inc()
			l.log.WithField("recipient", say.Recipient).Debug("chat persisted")
		}
	}

	start := time.Now()
	ents, err := l.auth.FetchWorldEntities(ctx, l.self)
	if err != nil {
		return fmt.Errorf("fetch entities: %w", err)
	}
	chat, err := l.auth.FetchChat(ctx, l.self)
	if err != nil {
		return fmt.Errorf("fetch chat: %w", err)
	}
	l.metrics.Refresh.Observe(time.Since(start).Seconds())

	l.pub.Publish(world.Snapshot{Entities: ents, Chat: chat, Self: l.self, HasSelf: true})
	return nil
}
