package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gridrealm.dev/internal/authority"
	"gridrealm.dev/internal/intent"
	"gridrealm.dev/internal/world"
)

var errBoom = errors.New("authority down")

// fakeAuth is an in-memory authority that records every call.
type fakeAuth struct {
	mu sync.Mutex

	matches   []authority.Match
	loginErr  error
	loginGate chan struct{}
	createID  world.EntityID
	createErr error
	// fetchFailAfter makes FetchWorldEntities fail once it was called that
	// many times. Zero disables.
	fetchFailAfter int
	// hold, once set by holdFetches, parks FetchWorldEntities until it is
	// closed or the call's ctx is done; held is signalled on each entry.
	hold chan struct{}
	held chan struct{}

	logins   int
	creates  int
	fetches  int
	logouts  []world.EntityID
	commands []intent.Command
	chats    []intent.Chat
	closed   bool
}

func (f *fakeAuth) Login(ctx context.Context, username, password string) ([]authority.Match, error) {
	if f.loginGate != nil {
		select {
		case <-f.loginGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	return f.matches, f.loginErr
}

func (f *fakeAuth) CreateAccount(ctx context.Context, username, password string) (world.EntityID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.matches = []authority.Match{{EntityID: f.createID, LoggedIn: true}}
	return f.createID, nil
}

func (f *fakeAuth) Logout(ctx context.Context, id world.EntityID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts = append(f.logouts, id)
	return nil
}

func (f *fakeAuth) InsertCommand(ctx context.Context, c intent.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, c)
	return nil
}

func (f *fakeAuth) InsertChat(ctx context.Context, c intent.Chat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, c)
	return nil
}

func (f *fakeAuth) FetchWorldEntities(ctx context.Context, viewer world.EntityID) ([]world.Entity, error) {
	f.mu.Lock()
	hold, held := f.hold, f.held
	f.mu.Unlock()
	if hold != nil {
		select {
		case held <- struct{}{}:
		default:
		}
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchFailAfter > 0 && f.fetches > f.fetchFailAfter {
		return nil, errBoom
	}
	return []world.Entity{
		{ID: viewer, Kind: "player", Loc: world.InRoom(1), Vitality: &world.Vitality{HP: 10, MaxHP: 10}},
		{ID: viewer + 1, Kind: "rat", Loc: world.InRoom(1), Pos: world.Position{X: 3, Y: 1}},
	}, nil
}

func (f *fakeAuth) FetchChat(ctx context.Context, viewer world.EntityID) ([]world.ChatLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return []world.ChatLine{{Sender: "amy", Receiver: "all", Text: "hi"}}, nil
}

func (f *fakeAuth) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// holdFetches parks every later fetch. It returns the entry signal and
// the release channel to close.
func (f *fakeAuth) holdFetches() (held <-chan struct{}, release chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hold = make(chan struct{})
	f.held = make(chan struct{}, 1)
	return f.held, f.hold
}

type callLog struct {
	logins   int
	creates  int
	fetches  int
	logouts  []world.EntityID
	commands []intent.Command
	chats    []intent.Chat
	closed   bool
}

func (f *fakeAuth) recorded() callLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return callLog{
		logins:   f.logins,
		creates:  f.creates,
		fetches:  f.fetches,
		logouts:  append([]world.EntityID(nil), f.logouts...),
		commands: append([]intent.Command(nil), f.commands...),
		chats:    append([]intent.Chat(nil), f.chats...),
		closed:   f.closed,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
