package world

import "fmt"

// EntityID identifies a world object for its whole lifetime.
type EntityID int64

// LocationKind says how Location.ID must be read.
type LocationKind uint8

const (
	// LocRoom places the entity on the grid of room Location.ID.
	LocRoom LocationKind = iota + 1
	// LocCarried means the entity is held by entity Location.ID.
	LocCarried
)

func (k LocationKind) String() string {
	switch k {
	case LocRoom:
		return "room"
	case LocCarried:
		return "carried"
	default:
		return fmt.Sprintf("LocationKind(%d)", uint8(k))
	}
}

// Location is the container relation of an entity: either a room or the
// entity carrying it. The authority stores both in a single column.
type Location struct {
	Kind LocationKind `json:"kind"`
	ID   int64        `json:"id"`
}

func InRoom(room int64) Location { return Location{Kind: LocRoom, ID: room} }

func CarriedBy(owner EntityID) Location { return Location{Kind: LocCarried, ID: int64(owner)} }

func (l Location) IsRoom() bool { return l.Kind == LocRoom }

// Room returns the room id when the entity is placed in a room.
func (l Location) Room() (int64, bool) {
	if l.Kind != LocRoom {
		return 0, false
	}
	return l.ID, true
}

// Owner returns the carrier when the entity is held.
func (l Location) Owner() (EntityID, bool) {
	if l.Kind != LocCarried {
		return 0, false
	}
	return EntityID(l.ID), true
}

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Position) Add(o Position) Position { return Position{X: p.X + o.X, Y: p.Y + o.Y} }

// Vitality is present only on living things.
type Vitality struct {
	HP    int `json:"hp"`
	MaxHP int `json:"max_hp"`
}

// PendingIntent is a command already submitted for the entity but not yet
// resolved by the authority.
type PendingIntent struct {
	Kind   string    `json:"kind"`
	Offset *Position `json:"offset,omitempty"`
}

// Portal marks a travel point; Ends lists the destination rooms.
type Portal struct {
	Ends []int64 `json:"ends"`
}

// Entity is a single world object as seen by one viewer.
//
// Optional attributes are nil when absent. An empty Kind means the entity is
// not independently renderable.
type Entity struct {
	ID       EntityID       `json:"id"`
	Pos      Position       `json:"pos"`
	Loc      Location       `json:"loc"`
	Kind     string         `json:"kind,omitempty"`
	Pending  *PendingIntent `json:"pending,omitempty"`
	Vitality *Vitality      `json:"vitality,omitempty"`
	Portal   *Portal        `json:"portal,omitempty"`
	Weight   *int           `json:"weight,omitempty"`
}

func (e Entity) Renderable() bool { return e.Kind != "" }

func (e Entity) Living() bool { return e.Vitality != nil }

// Alive reports a living entity with positive vitality. Defeated entities stay
// in the snapshot until the authority removes them.
func (e Entity) Alive() bool { return e.Vitality != nil && e.Vitality.HP > 0 }

func (e Entity) Defeated() bool { return e.Vitality != nil && e.Vitality.HP <= 0 }

func (e Entity) IsPortal() bool { return e.Portal != nil }

func (e Entity) Pickable() bool { return e.Weight != nil }

// SameTile reports whether both entities are placed in the same room at the
// same position.
func (e Entity) SameTile(o Entity) bool {
	return e.Loc.IsRoom() && e.Loc == o.Loc && e.Pos == o.Pos
}
