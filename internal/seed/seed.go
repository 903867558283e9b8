// Package seed loads the initial world layout an authority starts from.
package seed

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default_world.yaml
var defaultWorld []byte

type World struct {
	SpawnRoom int64    `yaml:"spawn_room"`
	Spawn     [2]int   `yaml:"spawn"`
	Rooms     []Room   `yaml:"rooms"`
	Entities  []Entity `yaml:"entities"`
}

type Room struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
	// Walls draws a rectangular wall of the given size, origin at 0,0.
	Walls *[2]int `yaml:"walls,omitempty"`
}

type Entity struct {
	Kind   string  `yaml:"kind"`
	Room   int64   `yaml:"room"`
	X      int     `yaml:"x"`
	Y      int     `yaml:"y"`
	HP     *int    `yaml:"hp,omitempty"`
	MaxHP  *int    `yaml:"max_hp,omitempty"`
	Weight *int    `yaml:"weight,omitempty"`
	Ends   []int64 `yaml:"ends,omitempty"`
}

// Load reads a world seed file.
func Load(path string) (World, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return World{}, err
	}
	return Parse(raw)
}

// Default returns the embedded starter world.
func Default() World {
	w, err := Parse(defaultWorld)
	if err != nil {
		panic(fmt.Sprintf("seed: embedded default world: %v", err))
	}
	return w
}

func Parse(raw []byte) (World, error) {
	var w World
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return World{}, fmt.Errorf("world seed: %w", err)
	}
	if err := w.Validate(); err != nil {
		return World{}, err
	}
	return w, nil
}

func (w World) Validate() error {
	if len(w.Rooms) == 0 {
		return fmt.Errorf("world seed: no rooms")
	}
	rooms := map[int64]bool{}
	for _, r := range w.Rooms {
		if rooms[r.ID] {
			return fmt.Errorf("world seed: duplicate room %d", r.ID)
		}
		rooms[r.ID] = true
	}
	if !rooms[w.SpawnRoom] {
		return fmt.Errorf("world seed: spawn room %d not defined", w.SpawnRoom)
	}
	for i, e := range w.Entities {
		if e.Kind == "" {
			return fmt.Errorf("world seed: entity %d has no kind", i)
		}
		if !rooms[e.Room] {
			return fmt.Errorf("world seed: entity %d (%s) in unknown room %d", i, e.Kind, e.Room)
		}
		if (e.HP == nil) != (e.MaxHP == nil) {
			return fmt.Errorf("world seed: entity %d (%s) needs both hp and max_hp", i, e.Kind)
		}
		for _, end := range e.Ends {
			if !rooms[end] {
				return fmt.Errorf("world seed: portal %d leads to unknown room %d", i, end)
			}
		}
	}
	return nil
}
