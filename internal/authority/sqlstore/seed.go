package sqlstore

import (
	"context"
	"fmt"
	"strconv"

	"gridrealm.dev/internal/seed"
)

const wallKind = "wall"

// Seed loads w into an empty database. It reports false without touching
// anything when rooms already exist.
func (s *Store) Seed(ctx context.Context, w seed.World) (bool, error) {
	if err := w.Validate(); err != nil {
		return false, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms`).Scan(&n); err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	meta := map[string]string{
		"spawn_room": strconv.FormatInt(w.SpawnRoom, 10),
		"spawn_x":    strconv.Itoa(w.Spawn[0]),
		"spawn_y":    strconv.Itoa(w.Spawn[1]),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO meta(key,value) VALUES(?,?)`, k, v); err != nil {
			return false, err
		}
	}

	insertEntity, err := tx.PrepareContext(ctx,
		`INSERT INTO entities(x,y,loc_kind,loc_id,kind,hp,max_hp,weight) VALUES(?,?,'room',?,?,?,?,?)`)
	if err != nil {
		return false, err
	}
	defer insertEntity.Close()

	for _, r := range w.Rooms {
		if _, err := tx.ExecContext(ctx, `INSERT INTO rooms(id,name) VALUES(?,?)`, r.ID, r.Name); err != nil {
			return false, fmt.Errorf("insert room %d: %w", r.ID, err)
		}
		if r.Walls == nil {
			continue
		}
		wd, ht := r.Walls[0], r.Walls[1]
		for x := 0; x < wd; x++ {
			for y := 0; y < ht; y++ {
				if x != 0 && y != 0 && x != wd-1 && y != ht-1 {
					continue
				}
				if _, err := insertEntity.ExecContext(ctx, x, y, r.ID, wallKind, nil, nil, nil); err != nil {
					return false, fmt.Errorf("insert wall: %w", err)
				}
			}
		}
	}

	for _, e := range w.Entities {
		res, err := insertEntity.ExecContext(ctx, e.X, e.Y, e.Room, e.Kind, nullInt(e.HP), nullInt(e.MaxHP), nullInt(e.Weight))
		if err != nil {
			return false, fmt.Errorf("insert %s: %w", e.Kind, err)
		}
		if len(e.Ends) == 0 {
			continue
		}
		id, err := res.LastInsertId()
		if err != nil {
			return false, err
		}
		for _, end := range e.Ends {
			if _, err := tx.ExecContext(ctx, `INSERT INTO portal_ends(entity_id,room_id) VALUES(?,?)`, id, end); err != nil {
				return false, fmt.Errorf("insert portal end: %w", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}
