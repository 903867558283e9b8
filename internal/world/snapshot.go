package world

// ChatLine is one line of the chat backlog, in the order the authority
// returned it.
type ChatLine struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Text     string `json:"text"`
}

// Snapshot is everything the foreground needs for one frame. A snapshot is
// never mutated after it is built; the next refresh replaces it wholesale.
type Snapshot struct {
	Entities []Entity   `json:"entities"`
	Chat     []ChatLine `json:"chat"`

	// Self is meaningful only when HasSelf is set.
	Self    EntityID `json:"self"`
	HasSelf bool     `json:"has_self"`
}

// Empty is the snapshot visible before a session exists.
func Empty() Snapshot {
	return Snapshot{Entities: []Entity{}, Chat: []ChatLine{}}
}

func (s Snapshot) SelfID() (EntityID, bool) { return s.Self, s.HasSelf }

// SelfEntity finds the locally controlled entity.
func (s Snapshot) SelfEntity() (Entity, bool) {
	if !s.HasSelf {
		return Entity{}, false
	}
	return s.Find(s.Self)
}

func (s Snapshot) Find(id EntityID) (Entity, bool) {
	for _, e := range s.Entities {
		if e.ID == id {
			return e, true
		}
	}
	return Entity{}, false
}

// Inventory lists the entities carried by the local entity.
func (s Snapshot) Inventory() []Entity {
	if !s.HasSelf {
		return nil
	}
	var out []Entity
	for _, e := range s.Entities {
		if owner, ok := e.Loc.Owner(); ok && owner == s.Self {
			out = append(out, e)
		}
	}
	return out
}

// At returns the entities placed in room at pos, in snapshot order.
func (s Snapshot) At(room int64, pos Position) []Entity {
	var out []Entity
	for _, e := range s.Entities {
		if r, ok := e.Loc.Room(); ok && r == room && e.Pos == pos {
			out = append(out, e)
		}
	}
	return out
}
