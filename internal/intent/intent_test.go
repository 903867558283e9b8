package intent

import (
	"errors"
	"testing"

	"gridrealm.dev/internal/world"
)

func TestParseSay(t *testing.T) {
	s, err := ParseSay("goblin  hand over the gold ")
	if err != nil {
		t.Fatalf("ParseSay: %v", err)
	}
	if s.Recipient != "goblin" || s.Text != "hand over the gold" {
		t.Fatalf("ParseSay = %+v", s)
	}

	for _, bad := range []string{"", "   ", "goblin", "goblin   "} {
		if _, err := ParseSay(bad); !errors.Is(err, ErrMalformedSay) {
			t.Fatalf("ParseSay(%q) err = %v, want ErrMalformedSay", bad, err)
		}
	}
}

func TestToCommandMove(t *testing.T) {
	c, ok := ToCommand(42, Move{Offset: world.Position{X: 1, Y: 0}})
	if !ok {
		t.Fatalf("expected a command for Move")
	}
	if c.Entity != 42 || c.Kind != KindMove || c.X == nil || *c.X != 1 || c.Y == nil || *c.Y != 0 || c.Target != nil {
		t.Fatalf("unexpected move command: %+v", c)
	}
	if !c.Valid() {
		t.Fatalf("move command should be valid")
	}
}

func TestToCommandTargeted(t *testing.T) {
	cases := []struct {
		in   Intent
		kind string
	}{
		{Attack{Target: 7}, KindAttack},
		{Pickup{Target: 7}, KindPickup},
		{Travel{Target: 7}, KindTravel},
		{Drop{Target: 7}, KindDrop},
	}
	for _, tc := range cases {
		c, ok := ToCommand(1, tc.in)
		if !ok || c.Kind != tc.kind || c.Target == nil || *c.Target != 7 || c.X != nil {
			t.Fatalf("ToCommand(%T) = %+v, %v", tc.in, c, ok)
		}
	}
	if _, ok := ToCommand(1, Say{Recipient: "all", Text: "hi"}); ok {
		t.Fatalf("Say must not lower to a command")
	}
}

func TestCommandValid(t *testing.T) {
	if (Command{Kind: KindAttack}).Valid() {
		t.Fatalf("attack without target must be invalid")
	}
	if (Command{Kind: "dance"}).Valid() {
		t.Fatalf("unknown kind must be invalid")
	}
}

func bumpWorld() world.Snapshot {
	return world.Snapshot{
		Entities: []world.Entity{
			{ID: 1, Pos: world.Position{X: 5, Y: 5}, Loc: world.InRoom(1), Kind: "player", Vitality: &world.Vitality{HP: 9, MaxHP: 10}},
			{ID: 2, Pos: world.Position{X: 6, Y: 5}, Loc: world.InRoom(1), Kind: "rat", Vitality: &world.Vitality{HP: 2, MaxHP: 2}},
			{ID: 3, Pos: world.Position{X: 5, Y: 6}, Loc: world.InRoom(1), Kind: "rat", Vitality: &world.Vitality{HP: 0, MaxHP: 2}},
			{ID: 4, Pos: world.Position{X: 5, Y: 5}, Loc: world.InRoom(1), Kind: "coin", Weight: new(int)},
			{ID: 5, Pos: world.Position{X: 6, Y: 5}, Loc: world.InRoom(2), Kind: "rat", Vitality: &world.Vitality{HP: 2, MaxHP: 2}},
		},
		Self:    1,
		HasSelf: true,
	}
}

func TestBump(t *testing.T) {
	s := bumpWorld()

	if got := Bump(s, world.Position{X: 1}); got != (Attack{Target: 2}) {
		t.Fatalf("bump into live rat = %#v", got)
	}
	if got := Bump(s, world.Position{Y: 1}); got != (Move{Offset: world.Position{Y: 1}}) {
		t.Fatalf("bump into defeated rat = %#v", got)
	}
	if got := Bump(s, world.Position{X: -1}); got != (Move{Offset: world.Position{X: -1}}) {
		t.Fatalf("bump into empty tile = %#v", got)
	}

	s.HasSelf = false
	if got := Bump(s, world.Position{X: 1}); got != nil {
		t.Fatalf("bump without session = %#v", got)
	}
}

func TestPickupAndTravelHere(t *testing.T) {
	s := bumpWorld()
	if got := PickupHere(s); got != (Pickup{Target: 4}) {
		t.Fatalf("PickupHere = %#v", got)
	}
	if got := TravelHere(s); got != nil {
		t.Fatalf("TravelHere without portal = %#v", got)
	}

	s.Entities = append(s.Entities, world.Entity{ID: 6, Pos: world.Position{X: 5, Y: 5}, Loc: world.InRoom(1), Kind: "stairs", Portal: &world.Portal{Ends: []int64{2}}})
	if got := TravelHere(s); got != (Travel{Target: 6}) {
		t.Fatalf("TravelHere = %#v", got)
	}
}
