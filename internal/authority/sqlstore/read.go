package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gridrealm.dev/internal/authority"
	"gridrealm.dev/internal/world"
)

// visibleCTE selects the ids the viewer can see directly: itself and every
// entity in its room. Carried entities are added by the outer queries.
const visibleCTE = `WITH viewer AS (
	SELECT loc_kind, loc_id FROM entities WHERE id = ?1
), visible AS (
	SELECT e.id FROM entities e, viewer v
	WHERE v.loc_kind = 'room' AND e.loc_kind = 'room' AND e.loc_id = v.loc_id
	UNION SELECT ?1
)`

func (s *Store) FetchWorldEntities(ctx context.Context, viewer world.EntityID) ([]world.Entity, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM entities WHERE id = ?`, int64(viewer)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("viewer %d: %w", viewer, authority.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, visibleCTE+`
SELECT e.id, e.x, e.y, e.loc_kind, e.loc_id, e.kind, e.hp, e.max_hp, e.weight,
	c.kind, c.x, c.y
FROM entities e
LEFT JOIN commands c ON c.id = (
	SELECT MAX(id) FROM commands WHERE entity_id = e.id AND resolved_at IS NULL
)
WHERE e.id IN (SELECT id FROM visible)
	OR (e.loc_kind = 'carried' AND e.loc_id IN (SELECT id FROM visible))
ORDER BY e.id`, int64(viewer))
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	out := []world.Entity{}
	index := map[world.EntityID]int{}
	for rows.Next() {
		var (
			id, x, y, locID   int64
			locKind           string
			kind, cmdKind     sql.NullString
			hp, maxHP, weight sql.NullInt64
			cmdX, cmdY        sql.NullInt64
		)
		if err := rows.Scan(&id, &x, &y, &locKind, &locID, &kind, &hp, &maxHP, &weight, &cmdKind, &cmdX, &cmdY); err != nil {
			return nil, err
		}
		e := world.Entity{
			ID:   world.EntityID(id),
			Pos:  world.Position{X: int(x), Y: int(y)},
			Kind: kind.String,
		}
		if locKind == "carried" {
			e.Loc = world.CarriedBy(world.EntityID(locID))
		} else {
			e.Loc = world.InRoom(locID)
		}
		if hp.Valid && maxHP.Valid {
			e.Vitality = &world.Vitality{HP: int(hp.Int64), MaxHP: int(maxHP.Int64)}
		}
		if weight.Valid {
			w := int(weight.Int64)
			e.Weight = &w
		}
		if cmdKind.Valid {
			p := &world.PendingIntent{Kind: cmdKind.String}
			if cmdX.Valid && cmdY.Valid {
				p.Offset = &world.Position{X: int(cmdX.Int64), Y: int(cmdY.Int64)}
			}
			e.Pending = p
		}
		index[e.ID] = len(out)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	ends, err := tx.QueryContext(ctx, visibleCTE+`
SELECT p.entity_id, p.room_id FROM portal_ends p
WHERE p.entity_id IN (SELECT id FROM visible)
ORDER BY p.entity_id, p.room_id`, int64(viewer))
	if err != nil {
		return nil, fmt.Errorf("query portal ends: %w", err)
	}
	defer ends.Close()
	for ends.Next() {
		var id, room int64
		if err := ends.Scan(&id, &room); err != nil {
			return nil, err
		}
		i, ok := index[world.EntityID(id)]
		if !ok {
			continue
		}
		if out[i].Portal == nil {
			out[i].Portal = &world.Portal{}
		}
		out[i].Portal.Ends = append(out[i].Portal.Ends, room)
	}
	if err := ends.Err(); err != nil {
		return nil, err
	}
	return out, tx.Commit()
}

func (s *Store) FetchChat(ctx context.Context, viewer world.EntityID) ([]world.ChatLine, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT COALESCE(a.username, sp.kind, '?'), m.recipient, m.text FROM (
	SELECT id, speaker_id, recipient, text FROM chat
	WHERE recipient = 'all'
		OR speaker_id = ?1
		OR recipient = (SELECT kind FROM entities WHERE id = ?1)
	ORDER BY id DESC LIMIT ?2
) m
LEFT JOIN accounts a ON a.entity_id = m.speaker_id
LEFT JOIN entities sp ON sp.id = m.speaker_id
ORDER BY m.id ASC`, int64(viewer), chatBacklog)
	if err != nil {
		return nil, fmt.Errorf("query chat: %w", err)
	}
	defer rows.Close()

	out := []world.ChatLine{}
	for rows.Next() {
		var l world.ChatLine
		if err := rows.Scan(&l.Sender, &l.Receiver, &l.Text); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
