// Package authority defines the boundary with the remote system of record
// for accounts and world state.
package authority

import (
	"context"
	"errors"

	"gridrealm.dev/internal/intent"
	"gridrealm.dev/internal/world"
)

var (
	// ErrAccountExists is returned by CreateAccount for a taken username.
	ErrAccountExists = errors.New("account already exists")
	// ErrNotFound is returned when a referenced entity or account is unknown.
	ErrNotFound = errors.New("not found")
	// ErrInvalid is returned for a write missing the fields its kind needs.
	ErrInvalid = errors.New("invalid request")
)

// Match is one account matched by a credential lookup.
type Match struct {
	EntityID world.EntityID `json:"entity_id"`
	LoggedIn bool           `json:"logged_in"`
}

// Authority is the remote store every client talks to. Every call is
// attempted once; callers decide what a failure means.
type Authority interface {
	// Login returns zero or one matches for the credential pair.
	Login(ctx context.Context, username, password string) ([]Match, error)
	// CreateAccount provisions a new account and its controlled entity.
	CreateAccount(ctx context.Context, username, password string) (world.EntityID, error)
	// Logout releases the logged-in flag of the account controlling id.
	Logout(ctx context.Context, id world.EntityID) error

	InsertCommand(ctx context.Context, c intent.Command) error
	InsertChat(ctx context.Context, c intent.Chat) error

	// FetchWorldEntities returns the entities visible to viewer, ordered.
	FetchWorldEntities(ctx context.Context, viewer world.EntityID) ([]world.Entity, error)
	// FetchChat returns the chat backlog visible to viewer, oldest first.
	FetchChat(ctx context.Context, viewer world.EntityID) ([]world.ChatLine, error)

	Close() error
}
