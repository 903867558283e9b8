// Package sqlstore implements the world authority on a SQLite database.
//
// Several clients (or one authority server) may share the same database
// file; every operation runs in its own transaction.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"gridrealm.dev/internal/authority"
	"gridrealm.dev/internal/intent"
	"gridrealm.dev/internal/world"
)

const (
	// chatBacklog bounds how many lines FetchChat returns.
	chatBacklog = 100

	playerKind  = "player"
	playerMaxHP = 10
)

func init() {
	open := func(ctx context.Context, addr string) (authority.Authority, error) {
		return Open(ctx, PathFromAddr(addr))
	}
	authority.Register("sqlite", open)
	authority.Register("file", open)
}

type Store struct {
	db   *sql.DB
	cost int
}

type Option func(*Store)

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Store) { s.cost = cost }
}

// PathFromAddr turns "sqlite:///data/w.db", "sqlite:w.db" or "file:w.db"
// into a filesystem path.
func PathFromAddr(addr string) string {
	for _, p := range []string{"sqlite://", "sqlite:", "file://", "file:"} {
		if len(addr) >= len(p) && strings.EqualFold(addr[:len(p)], p) {
			return addr[len(p):]
		}
	}
	return addr
}

func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db, cost: bcrypt.DefaultCost}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func initPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS rooms (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS entities (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			x INTEGER NOT NULL DEFAULT 0,
			y INTEGER NOT NULL DEFAULT 0,
			loc_kind TEXT NOT NULL CHECK (loc_kind IN ('room','carried')),
			loc_id INTEGER NOT NULL,
			kind TEXT,
			hp INTEGER,
			max_hp INTEGER,
			weight INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_entities_loc ON entities(loc_kind, loc_id);`,
		`CREATE TABLE IF NOT EXISTS portal_ends (
			entity_id INTEGER NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
			room_id INTEGER NOT NULL,
			PRIMARY KEY (entity_id, room_id)
		);`,
		`CREATE TABLE IF NOT EXISTS accounts (
			entity_id INTEGER PRIMARY KEY REFERENCES entities(id),
			username TEXT NOT NULL UNIQUE,
			password_hash BLOB NOT NULL,
			logged_in INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS commands (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			entity_id INTEGER NOT NULL,
			kind TEXT NOT NULL,
			x INTEGER,
			y INTEGER,
			target_id INTEGER,
			created_at TEXT NOT NULL,
			resolved_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(entity_id, resolved_at);`,
		`CREATE TABLE IF NOT EXISTS chat (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			speaker_id INTEGER NOT NULL,
			recipient TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }

// Login claims the account on a match: the reported LoggedIn is the flag as
// it was before this call.
//
// The claim commits in the same transaction as the lookup. A call cancelled
// before the commit claims nothing. Once a match with LoggedIn false is
// returned the caller owns the account and must Logout, even if it has
// since given up; otherwise it stays claimed until `admin release`. The
// websocket server does this for abandoned calls by binding the claim to
// the connection and releasing it on disconnect.
func (s *Store) Login(ctx context.Context, username, password string) ([]authority.Match, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		id       int64
		hash     []byte
		loggedIn bool
	)
	err = tx.QueryRowContext(ctx,
		`SELECT entity_id, password_hash, logged_in FROM accounts WHERE username = ?`, username,
	).Scan(&id, &hash, &loggedIn)
	if errors.Is(err, sql.ErrNoRows) {
		return []authority.Match{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		return []authority.Match{}, nil
	}
	if !loggedIn {
		if _, err := tx.ExecContext(ctx, `UPDATE accounts SET logged_in = 1 WHERE entity_id = ?`, id); err != nil {
			return nil, fmt.Errorf("claim account: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return []authority.Match{{EntityID: world.EntityID(id), LoggedIn: loggedIn}}, nil
}

func (s *Store) CreateAccount(ctx context.Context, username, password string) (world.EntityID, error) {
	if username == "" {
		return 0, fmt.Errorf("empty username: %w", authority.ErrInvalid)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE username = ?`, username).Scan(&n); err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, authority.ErrAccountExists
	}

	room, pos, err := spawnPoint(ctx, tx)
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO entities(x,y,loc_kind,loc_id,kind,hp,max_hp) VALUES(?,?,'room',?,?,?,?)`,
		pos.X, pos.Y, room, playerKind, playerMaxHP, playerMaxHP)
	if err != nil {
		return 0, fmt.Errorf("insert player entity: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO accounts(entity_id,username,password_hash,logged_in,created_at) VALUES(?,?,?,1,?)`,
		id, username, hash, now()); err != nil {
		return 0, fmt.Errorf("insert account: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return world.EntityID(id), nil
}

func spawnPoint(ctx context.Context, tx *sql.Tx) (int64, world.Position, error) {
	meta := map[string]int64{}
	rows, err := tx.QueryContext(ctx, `SELECT key, value FROM meta WHERE key IN ('spawn_room','spawn_x','spawn_y')`)
	if err != nil {
		return 0, world.Position{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var v int64
		if err := rows.Scan(&k, &v); err != nil {
			return 0, world.Position{}, err
		}
		meta[k] = v
	}
	if err := rows.Err(); err != nil {
		return 0, world.Position{}, err
	}
	room, ok := meta["spawn_room"]
	if !ok {
		// Unseeded database: fall back to the lowest room, or room 1.
		room = 1
		var min sql.NullInt64
		if err := tx.QueryRowContext(ctx, `SELECT MIN(id) FROM rooms`).Scan(&min); err != nil {
			return 0, world.Position{}, err
		}
		if min.Valid {
			room = min.Int64
		}
		return room, world.Position{X: 1, Y: 1}, nil
	}
	return room, world.Position{X: int(meta["spawn_x"]), Y: int(meta["spawn_y"])}, nil
}

func (s *Store) Logout(ctx context.Context, id world.EntityID) error {
	res, err := s.db.ExecContext(ctx, `UPDATE accounts SET logged_in = 0 WHERE entity_id = ?`, int64(id))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return authority.ErrNotFound
	}
	return nil
}

func (s *Store) InsertCommand(ctx context.Context, c intent.Command) error {
	if !c.Valid() {
		return fmt.Errorf("%q command: %w", c.Kind, authority.ErrInvalid)
	}
	var target sql.NullInt64
	if c.Target != nil {
		target = sql.NullInt64{Int64: int64(*c.Target), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO commands(entity_id,kind,x,y,target_id,created_at) VALUES(?,?,?,?,?,?)`,
		int64(c.Entity), c.Kind, nullInt(c.X), nullInt(c.Y), target, now())
	return err
}

func (s *Store) InsertChat(ctx context.Context, c intent.Chat) error {
	if c.Recipient == "" || c.Text == "" {
		return fmt.Errorf("chat needs recipient and text: %w", authority.ErrInvalid)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat(speaker_id,recipient,text,created_at) VALUES(?,?,?,?)`,
		int64(c.Speaker), c.Recipient, c.Text, now())
	return err
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
