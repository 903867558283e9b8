package tui

import (
	"testing"

	"github.com/gdamore/tcell/v2"

	"gridrealm.dev/internal/intent"
	"gridrealm.dev/internal/world"
)

func weight(n int) *int { return &n }

func testSnapshot() world.Snapshot {
	return world.Snapshot{
		Self:    1,
		HasSelf: true,
		Entities: []world.Entity{
			{ID: 1, Kind: "player", Loc: world.InRoom(1), Pos: world.Position{X: 2, Y: 2}, Vitality: &world.Vitality{HP: 5, MaxHP: 10}},
			{ID: 2, Kind: "rat", Loc: world.InRoom(1), Pos: world.Position{X: 3, Y: 2}, Vitality: &world.Vitality{HP: 3, MaxHP: 3}},
			{ID: 3, Kind: "coin", Loc: world.InRoom(1), Pos: world.Position{X: 2, Y: 2}, Weight: weight(1)},
			{ID: 4, Kind: "stairs", Loc: world.InRoom(1), Pos: world.Position{X: 2, Y: 2}, Portal: &world.Portal{Ends: []int64{2}}},
			{ID: 5, Kind: "gem", Loc: world.CarriedBy(1), Weight: weight(1)},
			{ID: 6, Kind: "dagger", Loc: world.CarriedBy(1), Weight: weight(2)},
			{ID: 7, Kind: "rat", Loc: world.InRoom(1), Pos: world.Position{X: 1, Y: 1}, Vitality: &world.Vitality{HP: 0, MaxHP: 3}},
		},
		Chat: []world.ChatLine{{Sender: "amy", Receiver: "all", Text: "hi"}},
	}
}

func press(k *Keys, snap world.Snapshot, r rune) (intent.Intent, bool) {
	in, ok := k.Handle(tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone), snap)
	return in.Intent, ok
}

func TestNormalModeKeys(t *testing.T) {
	snap := testSnapshot()
	var k Keys
	cases := []struct {
		key  rune
		want intent.Intent
	}{
		{'l', intent.Attack{Target: 2}},
		{'h', intent.Move{Offset: world.Position{X: -1}}},
		// The defeated rat does not block movement.
		{'y', intent.Move{Offset: world.Position{X: -1, Y: -1}}},
		{',', intent.Pickup{Target: 3}},
		{'>', intent.Travel{Target: 4}},
		{'<', intent.Travel{Target: 4}},
	}
	for _, c := range cases {
		got, ok := press(&k, snap, c.key)
		if !ok || got != c.want {
			t.Fatalf("key %q = %#v, %v; want %#v", c.key, got, ok, c.want)
		}
	}
	if _, ok := press(&k, snap, 'x'); ok {
		t.Fatalf("unbound key produced an input")
	}
}

func TestCommandModeComposesSay(t *testing.T) {
	snap := testSnapshot()
	var k Keys
	press(&k, snap, ':')
	if k.Mode() != ModeCommand {
		t.Fatalf("mode = %d", k.Mode())
	}
	for _, r := range "all hello!" {
		if _, ok := press(&k, snap, r); ok {
			t.Fatalf("typing produced an input")
		}
	}
	k.Handle(tcell.NewEventKey(tcell.KeyBackspace2, 0, tcell.ModNone), snap)
	if k.Compose() != "all hello" {
		t.Fatalf("compose = %q", k.Compose())
	}
	in, ok := k.Handle(tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone), snap)
	if !ok || in.Intent != (intent.Say{Recipient: "all", Text: "hello"}) {
		t.Fatalf("enter = %#v, %v", in, ok)
	}
	if k.Mode() != ModeNormal || k.Compose() != "" {
		t.Fatalf("state after enter: mode=%d compose=%q", k.Mode(), k.Compose())
	}
}

func TestMalformedSayIsDiscarded(t *testing.T) {
	snap := testSnapshot()
	var k Keys
	press(&k, snap, ':')
	for _, r := range "nobody" {
		press(&k, snap, r)
	}
	if _, ok := k.Handle(tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone), snap); ok {
		t.Fatalf("malformed chat was submitted")
	}
	if k.Mode() != ModeNormal {
		t.Fatalf("mode = %d", k.Mode())
	}
}

func TestInventoryDrop(t *testing.T) {
	snap := testSnapshot()
	var k Keys
	press(&k, snap, 'i')
	if k.Mode() != ModeInventory {
		t.Fatalf("mode = %d", k.Mode())
	}
	press(&k, snap, 'j')
	press(&k, snap, 'j')
	press(&k, snap, 'k')
	if k.Cursor() != 1 {
		t.Fatalf("cursor = %d", k.Cursor())
	}
	got, ok := press(&k, snap, 'd')
	if !ok || got != (intent.Drop{Target: 6}) {
		t.Fatalf("drop = %#v, %v", got, ok)
	}
	if k.Mode() != ModeNormal {
		t.Fatalf("mode after drop = %d", k.Mode())
	}
}

func TestKeysBeforeSession(t *testing.T) {
	var k Keys
	if _, ok := press(&k, world.Empty(), 'l'); ok {
		t.Fatalf("movement accepted without a session")
	}
	in, ok := k.Handle(tcell.NewEventKey(tcell.KeyCtrlC, 0, tcell.ModCtrl), world.Empty())
	if !ok || !in.Quit {
		t.Fatalf("ctrl-c = %+v, %v", in, ok)
	}
}
