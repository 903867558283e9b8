// Package intent holds the player intents the foreground produces and the
// command/chat records the sync loop persists.
package intent

import (
	"errors"
	"strings"

	"gridrealm.dev/internal/world"
)

// Command kinds understood by the authority.
const (
	KindMove   = "move"
	KindAttack = "attack"
	KindPickup = "pickup"
	KindTravel = "travel"
	KindDrop   = "drop"
)

// Intent is one player request, decided once at the input boundary.
type Intent interface {
	isIntent()
}

type Move struct{ Offset world.Position }

type Attack struct{ Target world.EntityID }

type Pickup struct{ Target world.EntityID }

type Travel struct{ Target world.EntityID }

type Drop struct{ Target world.EntityID }

// Say broadcasts Text to entities whose kind matches Recipient.
type Say struct {
	Recipient string
	Text      string
}

func (Move) isIntent()   {}
func (Attack) isIntent() {}
func (Pickup) isIntent() {}
func (Travel) isIntent() {}
func (Drop) isIntent()   {}
func (Say) isIntent()    {}

// Command is a game command as written to the authority.
type Command struct {
	Entity world.EntityID  `json:"entity_id"`
	Kind   string          `json:"kind"`
	X      *int            `json:"x,omitempty"`
	Y      *int            `json:"y,omitempty"`
	Target *world.EntityID `json:"target_id,omitempty"`
}

// Chat is a chat message as written to the authority.
type Chat struct {
	Speaker   world.EntityID `json:"speaker_id"`
	Recipient string         `json:"recipient"`
	Text      string         `json:"text"`
}

// ToCommand lowers a game intent issued by self. It returns false for Say,
// which travels through the chat mailbox instead.
func ToCommand(self world.EntityID, in Intent) (Command, bool) {
	target := func(id world.EntityID) *world.EntityID { return &id }
	switch v := in.(type) {
	case Move:
		x, y := v.Offset.X, v.Offset.Y
		return Command{Entity: self, Kind: KindMove, X: &x, Y: &y}, true
	case Attack:
		return Command{Entity: self, Kind: KindAttack, Target: target(v.Target)}, true
	case Pickup:
		return Command{Entity: self, Kind: KindPickup, Target: target(v.Target)}, true
	case Travel:
		return Command{Entity: self, Kind: KindTravel, Target: target(v.Target)}, true
	case Drop:
		return Command{Entity: self, Kind: KindDrop, Target: target(v.Target)}, true
	default:
		return Command{}, false
	}
}

// ToChat lowers a Say issued by self.
func ToChat(self world.EntityID, s Say) Chat {
	return Chat{Speaker: self, Recipient: s.Recipient, Text: s.Text}
}

// ErrMalformedSay is returned when composed text has no recipient/body split.
var ErrMalformedSay = errors.New("chat needs a recipient and a message")

// ParseSay splits composed text of the form "<recipient> <message>".
func ParseSay(text string) (Say, error) {
	text = strings.TrimSpace(text)
	recipient, body, ok := strings.Cut(text, " ")
	body = strings.TrimSpace(body)
	if !ok || recipient == "" || body == "" {
		return Say{}, ErrMalformedSay
	}
	return Say{Recipient: recipient, Text: body}, nil
}

// Valid reports whether c carries the fields its kind needs.
func (c Command) Valid() bool {
	switch c.Kind {
	case KindMove:
		return c.X != nil && c.Y != nil
	case KindAttack, KindPickup, KindTravel, KindDrop:
		return c.Target != nil
	default:
		return false
	}
}
