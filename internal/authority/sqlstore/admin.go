package sqlstore

import (
	"context"

	"gridrealm.dev/internal/authority"
	"gridrealm.dev/internal/world"
)

type Account struct {
	EntityID  world.EntityID `json:"entity_id"`
	Username  string         `json:"username"`
	LoggedIn  bool           `json:"logged_in"`
	CreatedAt string         `json:"created_at"`
}

func (s *Store) Accounts(ctx context.Context) ([]Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT entity_id, username, logged_in, created_at FROM accounts ORDER BY entity_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.EntityID, &a.Username, &a.LoggedIn, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Release clears the logged-in flag of a stale account, e.g. after a client
// crashed without logging out.
func (s *Store) Release(ctx context.Context, username string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE accounts SET logged_in = 0 WHERE username = ?`, username)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return authority.ErrNotFound
	}
	return nil
}
