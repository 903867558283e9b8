package bridge

import (
	"context"
	"errors"
	"fmt"

	"gridrealm.dev/internal/authority"
	"gridrealm.dev/internal/world"
)

// ErrLoginRejected is the terminal result when the account is already
// logged in elsewhere or the credentials do not fit an existing username.
var ErrLoginRejected = errors.New("login rejected")

type SessionState int

const (
	StateUnauthenticated SessionState = iota
	StateResolving
	StateResolved
	StateRejected
)

func (s SessionState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateResolving:
		return "resolving"
	case StateResolved:
		return "resolved"
	case StateRejected:
		return "rejected"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// Establisher resolves a credential pair to a session identity exactly once.
type Establisher struct {
	auth     authority.Authority
	username string
	password string

	state SessionState
	self  world.EntityID
}

func NewEstablisher(auth authority.Authority, username, password string) *Establisher {
	return &Establisher{auth: auth, username: username, password: password}
}

func (e *Establisher) State() SessionState { return e.state }

// Establish performs one lookup and at most one account creation. Any error
// other than one wrapping ErrLoginRejected comes from the authority and is
// fatal; the state then stays Resolving.
func (e *Establisher) Establish(ctx context.Context) (world.EntityID, error) {
	if e.state != StateUnauthenticated {
		return 0, fmt.Errorf("establish called in state %s", e.state)
	}
	e.state = StateResolving

	matches, err := e.auth.Login(ctx, e.username, e.password)
	if err != nil {
		return 0, fmt.Errorf("login: %w", err)
	}
	if len(matches) > 0 {
		m := matches[0]
		if m.LoggedIn {
			e.state = StateRejected
			return 0, fmt.Errorf("%w: %q is already logged in", ErrLoginRejected, e.username)
		}
		e.state, e.self = StateResolved, m.EntityID
		return m.EntityID, nil
	}

	id, err := e.auth.CreateAccount(ctx, e.username, e.password)
	if errors.Is(err, authority.ErrAccountExists) {
		e.state = StateRejected
		return 0, fmt.Errorf("%w: wrong password for %q", ErrLoginRejected, e.username)
	}
	if err != nil {
		return 0, fmt.Errorf("create account: %w", err)
	}
	e.state, e.self = StateResolved, id
	return id, nil
}
