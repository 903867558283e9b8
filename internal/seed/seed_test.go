package seed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultWorldIsValid(t *testing.T) {
	w := Default()
	if w.SpawnRoom != 1 || len(w.Rooms) != 2 {
		t.Fatalf("unexpected default world: spawn=%d rooms=%d", w.SpawnRoom, len(w.Rooms))
	}
	var portals int
	for _, e := range w.Entities {
		if len(e.Ends) > 0 {
			portals++
		}
	}
	if portals != 2 {
		t.Fatalf("expected 2 portals, got %d", portals)
	}
}

func TestLoadFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "world.yaml")
	body := `
spawn_room: 5
rooms:
  - {id: 5, name: hall}
entities:
  - {kind: goblin, room: 5, x: 1, y: 1, hp: 4, max_hp: 4}
`
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	w, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(w.Entities) != 1 || *w.Entities[0].HP != 4 {
		t.Fatalf("unexpected entities: %+v", w.Entities)
	}
}

func TestParseRejectsBrokenSeeds(t *testing.T) {
	cases := map[string]string{
		"no rooms":      `spawn_room: 1`,
		"bad spawn":     "spawn_room: 2\nrooms: [{id: 1}]",
		"unknown room":  "spawn_room: 1\nrooms: [{id: 1}]\nentities: [{kind: rat, room: 3}]",
		"half vitality": "spawn_room: 1\nrooms: [{id: 1}]\nentities: [{kind: rat, room: 1, hp: 2}]",
		"bad portal":    "spawn_room: 1\nrooms: [{id: 1}]\nentities: [{kind: stairs, room: 1, ends: [9]}]",
		"dup room":      "spawn_room: 1\nrooms: [{id: 1}, {id: 1}]",
	}
	for name, body := range cases {
		if _, err := Parse([]byte(body)); err == nil || !strings.HasPrefix(err.Error(), "world seed") {
			t.Fatalf("%s: Parse err = %v", name, err)
		}
	}
}
