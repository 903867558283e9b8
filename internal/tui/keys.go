package tui

import (
	"github.com/gdamore/tcell/v2"

	"gridrealm.dev/internal/intent"
	"gridrealm.dev/internal/play"
	"gridrealm.dev/internal/world"
)

type Mode int

const (
	ModeNormal Mode = iota
	// ModeCommand composes a "<recipient> <message>" chat line.
	ModeCommand
	// ModeInventory browses carried items.
	ModeInventory
)

var directions = map[rune]world.Position{
	'h': {X: -1, Y: 0},
	'j': {X: 0, Y: 1},
	'k': {X: 0, Y: -1},
	'l': {X: 1, Y: 0},
	'y': {X: -1, Y: -1},
	'u': {X: 1, Y: -1},
	'b': {X: -1, Y: 1},
	'n': {X: 1, Y: 1},
}

// Keys is the presentation state the key mapping needs: the input mode, the
// text being composed and the inventory cursor.
type Keys struct {
	mode    Mode
	compose []rune
	cursor  int
}

func (k *Keys) Mode() Mode      { return k.mode }
func (k *Keys) Compose() string { return string(k.compose) }
func (k *Keys) Cursor() int     { return k.cursor }

// Handle maps one key press to at most one Input. Apart from Ctrl-C, keys are
// ignored until the snapshot contains the controlled entity.
func (k *Keys) Handle(ev *tcell.EventKey, snap world.Snapshot) (play.Input, bool) {
	if ev.Key() == tcell.KeyCtrlC {
		return play.Input{Quit: true}, true
	}
	if _, ok := snap.SelfEntity(); !ok {
		return play.Input{}, false
	}
	switch k.mode {
	case ModeCommand:
		return k.command(ev)
	case ModeInventory:
		return k.inventory(ev, snap)
	default:
		return k.normal(ev, snap)
	}
}

func (k *Keys) normal(ev *tcell.EventKey, snap world.Snapshot) (play.Input, bool) {
	if ev.Key() != tcell.KeyRune {
		return play.Input{}, false
	}
	var in intent.Intent
	switch r := ev.Rune(); r {
	case 'i':
		k.mode, k.cursor = ModeInventory, 0
	case ':':
		k.mode, k.compose = ModeCommand, k.compose[:0]
	case ',':
		in = intent.PickupHere(snap)
	case '<', '>':
		in = intent.TravelHere(snap)
	default:
		if off, ok := directions[r]; ok {
			in = intent.Bump(snap, off)
		}
	}
	if in == nil {
		return play.Input{}, false
	}
	return play.Input{Intent: in}, true
}

func (k *Keys) command(ev *tcell.EventKey) (play.Input, bool) {
	switch ev.Key() {
	case tcell.KeyEnter:
		text := string(k.compose)
		k.mode, k.compose = ModeNormal, k.compose[:0]
		say, err := intent.ParseSay(text)
		if err != nil {
			return play.Input{}, false
		}
		return play.Input{Intent: say}, true
	case tcell.KeyEscape:
		k.mode, k.compose = ModeNormal, k.compose[:0]
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if n := len(k.compose); n > 0 {
			k.compose = k.compose[:n-1]
		}
	case tcell.KeyRune:
		k.compose = append(k.compose, ev.Rune())
	}
	return play.Input{}, false
}

func (k *Keys) inventory(ev *tcell.EventKey, snap world.Snapshot) (play.Input, bool) {
	inv := snap.Inventory()
	if ev.Key() == tcell.KeyEscape {
		k.mode, k.cursor = ModeNormal, 0
		return play.Input{}, false
	}
	if ev.Key() != tcell.KeyRune {
		return play.Input{}, false
	}
	switch ev.Rune() {
	case 'i':
		k.mode, k.cursor = ModeNormal, 0
	case 'j':
		if len(inv) > 0 {
			k.cursor = (k.cursor + 1) % len(inv)
		}
	case 'k':
		if len(inv) > 0 {
			k.cursor = (k.cursor - 1 + len(inv)) % len(inv)
		}
	case 'd':
		if k.cursor < len(inv) {
			item := inv[k.cursor]
			k.mode, k.cursor = ModeNormal, 0
			return play.Input{Intent: intent.Drop{Target: item.ID}}, true
		}
	}
	return play.Input{}, false
}
