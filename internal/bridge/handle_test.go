package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"gridrealm.dev/internal/authority"
	"gridrealm.dev/internal/intent"
	"gridrealm.dev/internal/logging"
	"gridrealm.dev/internal/world"
)

func start(t *testing.T, f *fakeAuth, interval time.Duration) (*Conn, *Metrics) {
	t.Helper()
	m := NewMetrics(nil)
	c := Start(context.Background(), Config{
		Authority:       f,
		Username:        "ada",
		Password:        "pw",
		RefreshInterval: interval,
		Logger:          logging.Discard(),
		Metrics:         m,
	})
	t.Cleanup(func() { _ = c.Close() })
	return c, m
}

func TestNewAccountBecomesSelfOnFirstSnapshot(t *testing.T) {
	f := &fakeAuth{createID: 9}
	c, _ := start(t, f, time.Hour)

	waitFor(t, "first snapshot", func() bool { return c.LatestSnapshot().HasSelf })
	snap := c.LatestSnapshot()
	if snap.Self != 9 {
		t.Fatalf("self = %d", snap.Self)
	}
	if _, ok := snap.SelfEntity(); !ok {
		t.Fatalf("self entity missing from %+v", snap.Entities)
	}
	if len(snap.Chat) != 1 {
		t.Fatalf("chat = %+v", snap.Chat)
	}
	if calls := f.recorded(); calls.creates != 1 {
		t.Fatalf("creates = %d", calls.creates)
	}
}

func TestRejectedSessionNeverPublishes(t *testing.T) {
	f := &fakeAuth{matches: []authority.Match{{EntityID: 3, LoggedIn: true}}}
	c, _ := start(t, f, time.Millisecond)

	err := c.Wait()
	if !errors.Is(err, ErrLoginRejected) {
		t.Fatalf("Wait = %v", err)
	}
	if !c.Terminated() {
		t.Fatalf("expected terminated")
	}
	if snap := c.LatestSnapshot(); snap.HasSelf || len(snap.Entities) != 0 {
		t.Fatalf("snapshot after rejection = %+v", snap)
	}
	calls := f.recorded()
	if calls.fetches != 0 || calls.creates != 0 || len(calls.logouts) != 0 {
		t.Fatalf("calls after rejection = %+v", calls)
	}
	if !calls.closed {
		t.Fatalf("authority left open")
	}
}

func TestMoveRoundTrip(t *testing.T) {
	f := &fakeAuth{matches: []authority.Match{{EntityID: 5}}}
	c, m := start(t, f, time.Hour)
	waitFor(t, "session", func() bool { return c.LatestSnapshot().HasSelf })

	if !c.SubmitCommand(intent.Move{Offset: world.Position{X: 1, Y: 0}}) {
		t.Fatalf("SubmitCommand refused")
	}
	waitFor(t, "command write", func() bool { return len(f.recorded().commands) == 1 })

	cmd := f.recorded().commands[0]
	if cmd.Entity != 5 || cmd.Kind != intent.KindMove || cmd.X == nil || *cmd.X != 1 || cmd.Y == nil || *cmd.Y != 0 || cmd.Target != nil {
		t.Fatalf("persisted command = %+v", cmd)
	}
	if got := testutil.ToFloat64(m.Writes.WithLabelValues(intent.KindMove)); got != 1 {
		t.Fatalf("writes{move} = %v", got)
	}
}

func TestChatRoundTrip(t *testing.T) {
	f := &fakeAuth{matches: []authority.Match{{EntityID: 5}}}
	c, _ := start(t, f, time.Hour)
	waitFor(t, "session", func() bool { return c.LatestSnapshot().HasSelf })

	if !c.SubmitChat(intent.Say{Recipient: "all", Text: "hello"}) {
		t.Fatalf("SubmitChat refused")
	}
	waitFor(t, "chat write", func() bool { return len(f.recorded().chats) == 1 })
	if got := f.recorded().chats[0]; got != (intent.Chat{Speaker: 5, Recipient: "all", Text: "hello"}) {
		t.Fatalf("persisted chat = %+v", got)
	}
	if c.SubmitCommand(intent.Say{Recipient: "all", Text: "x"}) {
		t.Fatalf("SubmitCommand accepted a Say")
	}
}

func TestWriteHappensBeforeNextRefresh(t *testing.T) {
	f := &fakeAuth{matches: []authority.Match{{EntityID: 5}}}
	c, _ := start(t, f, time.Hour)
	waitFor(t, "session", func() bool { return c.LatestSnapshot().HasSelf })

	before := f.recorded().fetches
	c.SubmitCommand(intent.Pickup{Target: 6})
	waitFor(t, "refresh after write", func() bool { return f.recorded().fetches > before })
	if len(f.recorded().commands) != 1 {
		t.Fatalf("snapshot refreshed before the command was written")
	}
}

func TestTimerAloneDrivesRefresh(t *testing.T) {
	f := &fakeAuth{matches: []authority.Match{{EntityID: 5}}}
	c, m := start(t, f, 2*time.Millisecond)
	waitFor(t, "session", func() bool { return c.LatestSnapshot().HasSelf })

	waitFor(t, "timer cycles", func() bool { return testutil.ToFloat64(m.Cycles.WithLabelValues(wakeTimer)) >= 5 })
	calls := f.recorded()
	if calls.fetches < 5 {
		t.Fatalf("fetches = %d, want at least one per cycle", calls.fetches)
	}
	if len(calls.commands) != 0 || len(calls.chats) != 0 {
		t.Fatalf("timer cycles wrote intents: %+v", calls)
	}
}

func TestFatalReadTerminates(t *testing.T) {
	f := &fakeAuth{matches: []authority.Match{{EntityID: 5}}, fetchFailAfter: 2}
	c, _ := start(t, f, time.Millisecond)

	err := c.Wait()
	if !errors.Is(err, errBoom) {
		t.Fatalf("Wait = %v", err)
	}
	if errors.Is(err, ErrLoginRejected) {
		t.Fatalf("fatal error reported as rejection")
	}
	if c.SubmitCommand(intent.Move{Offset: world.Position{X: 1}}) {
		t.Fatalf("SubmitCommand accepted after termination")
	}
	if calls := f.recorded(); len(calls.logouts) != 1 || !calls.closed {
		t.Fatalf("teardown calls = %+v", calls)
	}
}

func TestDialFailureTerminates(t *testing.T) {
	c := Start(context.Background(), Config{Addr: "nope://x", Username: "ada", Logger: logging.Discard()})
	if err := c.Wait(); err == nil {
		t.Fatalf("expected dial error")
	}
	if snap := c.LatestSnapshot(); snap.HasSelf {
		t.Fatalf("snapshot after dial failure = %+v", snap)
	}
}

func TestSubmitBeforeSessionIsDropped(t *testing.T) {
	gate := make(chan struct{})
	f := &fakeAuth{matches: []authority.Match{{EntityID: 5}}, loginGate: gate}
	c, _ := start(t, f, time.Hour)

	if c.SubmitCommand(intent.Move{Offset: world.Position{X: 1}}) {
		t.Fatalf("SubmitCommand accepted before session")
	}
	if c.SubmitChat(intent.Say{Recipient: "all", Text: "early"}) {
		t.Fatalf("SubmitChat accepted before session")
	}
	close(gate)
	waitFor(t, "session", func() bool { return c.LatestSnapshot().HasSelf })
	if calls := f.recorded(); len(calls.commands) != 0 || len(calls.chats) != 0 {
		t.Fatalf("early intents were persisted: %+v", calls)
	}
}

func TestSelfIdentityNeverChanges(t *testing.T) {
	f := &fakeAuth{createID: 11}
	c, _ := start(t, f, time.Millisecond)

	deadline := time.Now().Add(50 * time.Millisecond)
	for time.Now().Before(deadline) {
		snap := c.LatestSnapshot()
		if !snap.HasSelf {
			if len(snap.Entities) != 0 {
				t.Fatalf("entities published without a session: %+v", snap)
			}
			continue
		}
		if snap.Self != 11 {
			t.Fatalf("self changed to %d", snap.Self)
		}
		if _, ok := snap.SelfEntity(); !ok {
			t.Fatalf("snapshot has identity but entities from another read: %+v", snap)
		}
	}
}

func TestCloseLogsOutAndClosesAuthority(t *testing.T) {
	f := &fakeAuth{matches: []authority.Match{{EntityID: 5}}}
	c, _ := start(t, f, time.Millisecond)
	waitFor(t, "session", func() bool { return c.LatestSnapshot().HasSelf })

	if err := c.Close(); err != nil {
		t.Fatalf("Close = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close = %v", err)
	}
	calls := f.recorded()
	if len(calls.logouts) != 1 || calls.logouts[0] != 5 || !calls.closed {
		t.Fatalf("teardown calls = %+v", calls)
	}
	if !c.Terminated() {
		t.Fatalf("expected terminated after Close")
	}
}

func TestCloseDuringFirstRefreshIsClean(t *testing.T) {
	f := &fakeAuth{matches: []authority.Match{{EntityID: 5}}}
	held, _ := f.holdFetches()
	c, _ := start(t, f, time.Hour)

	<-held
	if err := c.Close(); err != nil {
		t.Fatalf("Close during first refresh = %v", err)
	}
	if snap := c.LatestSnapshot(); snap.HasSelf {
		t.Fatalf("snapshot published from a cancelled refresh: %+v", snap)
	}
	if calls := f.recorded(); len(calls.logouts) != 1 || !calls.closed {
		t.Fatalf("teardown calls = %+v", calls)
	}
}

func TestBurstOfCommandsIsConflated(t *testing.T) {
	f := &fakeAuth{matches: []authority.Match{{EntityID: 5}}}
	c, m := start(t, f, time.Hour)
	waitFor(t, "session", func() bool { return c.LatestSnapshot().HasSelf })

	held, release := f.holdFetches()
	if !c.SubmitCommand(intent.Pickup{Target: 6}) {
		t.Fatalf("SubmitCommand refused")
	}
	// The loop has written the pickup and is parked in the refresh.
	<-held

	const burst = 5
	for i := 1; i <= burst; i++ {
		if !c.SubmitCommand(intent.Move{Offset: world.Position{X: i}}) {
			t.Fatalf("SubmitCommand %d refused", i)
		}
	}
	close(release)

	waitFor(t, "second write", func() bool { return len(f.recorded().commands) >= 2 })
	cmds := f.recorded().commands
	if len(cmds) != 2 {
		t.Fatalf("commands = %+v", cmds)
	}
	if cmds[1].Kind != intent.KindMove || cmds[1].X == nil || *cmds[1].X != burst {
		t.Fatalf("persisted move = %+v, want the last offset", cmds[1])
	}
	if got := testutil.ToFloat64(m.Conflated.WithLabelValues("command")); got != burst-1 {
		t.Fatalf("conflated{command} = %v, want %d", got, burst-1)
	}
}
