// Package bridge keeps a client session in sync with the authority: it
// establishes the session, persists offered intents and republishes the
// world snapshot on a fixed cadence, all on one background goroutine.
package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"gridrealm.dev/internal/authority"
	"gridrealm.dev/internal/intent"
	"gridrealm.dev/internal/world"
)

const logoutTimeout = 2 * time.Second

type Config struct {
	// Addr is passed to authority.Dial when Authority is nil.
	Addr string
	// Authority, when set, is used as is and closed by Close.
	Authority authority.Authority

	Username string
	Password string

	RefreshInterval time.Duration
	Logger          logrus.FieldLogger
	Metrics         *Metrics
}

// Conn is the foreground's view of the background session. Every method is
// safe for concurrent use and none of them waits on the authority except
// Wait and Close.
type Conn struct {
	pub      *Publisher
	commands *Slot[intent.Intent]
	chats    *Slot[intent.Say]
	metrics  *Metrics

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	err       error
}

// Start launches the background goroutine and returns immediately. Dial,
// login and sync failures surface through Terminated and Wait.
func Start(ctx context.Context, cfg Config) *Conn {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(nil)
	}
	ctx, cancel := context.WithCancel(ctx)
	c := &Conn{
		pub:      NewPublisher(),
		commands: NewSlot[intent.Intent](),
		chats:    NewSlot[intent.Say](),
		metrics:  cfg.Metrics,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go func() {
		defer close(c.done)
		c.err = c.run(ctx, cfg)
	}()
	return c
}

func (c *Conn) run(ctx context.Context, cfg Config) error {
	log := cfg.Logger.WithField("component", "bridge")

	auth := cfg.Authority
	if auth == nil {
		var err error
		auth, err = authority.Dial(ctx, cfg.Addr)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.WithError(err).WithField("addr", cfg.Addr).Error("authority unreachable")
			return err
		}
	}
	defer auth.Close()

	self, err := NewEstablisher(auth, cfg.Username, cfg.Password).Establish(ctx)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, ErrLoginRejected) {
			return nil
		}
		log.WithError(err).Error("session not established")
		return err
	}
	log = log.WithField("entity_id", self)
	log.Info("session established")

	loop := &syncLoop{
		auth:     auth,
		self:     self,
		commands: c.commands,
		chats:    c.chats,
		pub:      c.pub,
		interval: cfg.RefreshInterval,
		metrics:  cfg.Metrics,
		log:      log,
	}
	err = loop.run(ctx)
	if err != nil {
		log.WithError(err).Error("sync loop stopped")
	}

	lctx, cancel := context.WithTimeout(context.Background(), logoutTimeout)
	defer cancel()
	if lerr := auth.Logout(lctx, self); lerr != nil {
		log.WithError(lerr).Warn("logout failed")
	}
	return err
}

// LatestSnapshot returns the most recent snapshot, or world.Empty before the
// session exists.
func (c *Conn) LatestSnapshot() world.Snapshot { return c.pub.Current() }

// SubmitCommand offers a game intent. It reports false when the intent was
// discarded: before the session exists, after termination, or for a Say.
func (c *Conn) SubmitCommand(in intent.Intent) bool {
	if _, isSay := in.(intent.Say); isSay || in == nil || !c.accepting() {
		return false
	}
	if c.commands.Offer(in) {
		c.metrics.Conflated.WithLabelValues("command").Inc()
	}
	return true
}

// SubmitChat offers a chat message under the same rules as SubmitCommand.
func (c *Conn) SubmitChat(s intent.Say) bool {
	if !c.accepting() {
		return false
	}
	if c.chats.Offer(s) {
		c.metrics.Conflated.WithLabelValues("chat").Inc()
	}
	return true
}

func (c *Conn) accepting() bool {
	return c.pub.Current().HasSelf && !c.Terminated()
}

// Terminated reports whether the background goroutine has exited.
func (c *Conn) Terminated() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Done is closed when the background goroutine exits.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Wait blocks until the background goroutine exits and returns why: nil
// after Close, an error wrapping ErrLoginRejected, or the fatal error.
func (c *Conn) Wait() error {
	<-c.done
	return c.err
}

// Close stops the background goroutine, releases the session and closes the
// authority. It returns what Wait returns.
func (c *Conn) Close() error {
	c.closeOnce.Do(c.cancel)
	return c.Wait()
}
