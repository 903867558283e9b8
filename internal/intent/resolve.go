package intent

import "gridrealm.dev/internal/world"

// Bump resolves a directional key: attack a living entity standing at the
// offset, otherwise move there. It returns nil when self is not in the
// snapshot or is not placed in a room.
func Bump(s world.Snapshot, offset world.Position) Intent {
	self, ok := s.SelfEntity()
	if !ok {
		return nil
	}
	room, ok := self.Loc.Room()
	if !ok {
		return nil
	}
	for _, e := range s.At(room, self.Pos.Add(offset)) {
		if e.ID != self.ID && e.Alive() {
			return Attack{Target: e.ID}
		}
	}
	return Move{Offset: offset}
}

// PickupHere targets the first pickable entity on the self tile.
func PickupHere(s world.Snapshot) Intent {
	e, ok := firstHere(s, world.Entity.Pickable)
	if !ok {
		return nil
	}
	return Pickup{Target: e.ID}
}

// TravelHere targets the first portal on the self tile.
func TravelHere(s world.Snapshot) Intent {
	e, ok := firstHere(s, world.Entity.IsPortal)
	if !ok {
		return nil
	}
	return Travel{Target: e.ID}
}

func firstHere(s world.Snapshot, match func(world.Entity) bool) (world.Entity, bool) {
	self, ok := s.SelfEntity()
	if !ok {
		return world.Entity{}, false
	}
	room, ok := self.Loc.Room()
	if !ok {
		return world.Entity{}, false
	}
	for _, e := range s.At(room, self.Pos) {
		if e.ID != self.ID && match(e) {
			return e, true
		}
	}
	return world.Entity{}, false
}
