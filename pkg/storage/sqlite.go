package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/taggrove/pkg/model"
)

// SQLite is a Backend over a local sqlite database file. The `nodes` table is
// the tree; `tag_refs` is the slice of the transaction subsystem the usage
// counter reads (one row per transaction-tag link).
type SQLite struct {
	db  *sql.DB
	log zerolog.Logger
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS nodes (
	id         TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	name       TEXT NOT NULL,
	level      INTEGER NOT NULL,
	parent_id  TEXT,
	sort_order REAL NOT NULL,
	color      TEXT,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_nodes_owner ON nodes(owner_id);
CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(owner_id, parent_id);

CREATE TABLE IF NOT EXISTS tag_refs (
	owner_id TEXT NOT NULL,
	tag_id   TEXT NOT NULL,
	txn_id   TEXT NOT NULL,
	PRIMARY KEY (owner_id, tag_id, txn_id)
);
CREATE INDEX IF NOT EXISTS idx_tag_refs_tag ON tag_refs(owner_id, tag_id);
`

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string, log zerolog.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// modernc's driver is not safe for concurrent writers on one connection
	// pool default; a single connection keeps writes serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLite{db: db, log: log}, nil
}

func (s *SQLite) Create(ctx context.Context, ownerID string, n model.Node) (string, error) {
	if n.ID == "" {
		n.ID = NewID()
	}
	now := time.Now()
	var parent any
	if n.ParentID != "" {
		parent = n.ParentID
	}
	var color any
	if n.Color != "" {
		color = n.Color
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO nodes (id, owner_id, name, level, parent_id, sort_order, color, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, ownerID, n.Name, int(n.Level), parent, n.Order, color, now, now)
	if err != nil {
		return "", fmt.Errorf("insert node: %w", err)
	}
	s.log.Debug().Str("id", n.ID).Str("owner", ownerID).Msg("node created")
	return n.ID, nil
}

func (s *SQLite) Update(ctx context.Context, ownerID, id string, p Patch) error {
	if p.IsZero() {
		return nil
	}
	var sets []string
	var args []any
	if p.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *p.Name)
	}
	if p.Color != nil {
		sets = append(sets, "color = ?")
		if *p.Color == "" {
			args = append(args, nil) // explicit clear
		} else {
			args = append(args, *p.Color)
		}
	}
	if p.Level != nil {
		sets = append(sets, "level = ?")
		args = append(args, int(*p.Level))
	}
	if p.ParentID != nil {
		sets = append(sets, "parent_id = ?")
		if *p.ParentID == "" {
			args = append(args, nil) // explicit clear, not a stale reference
		} else {
			args = append(args, *p.ParentID)
		}
	}
	if p.Order != nil {
		sets = append(sets, "sort_order = ?")
		args = append(args, *p.Order)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now())
	args = append(args, id, ownerID)

	res, err := s.db.ExecContext(ctx,
		"UPDATE nodes SET "+strings.Join(sets, ", ")+" WHERE id = ? AND owner_id = ?",
		args...)
	if err != nil {
		return fmt.Errorf("update node %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update node %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("update %s: %w", id, model.ErrNotFound)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, ownerID, id string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM nodes WHERE id = ? AND owner_id = ?", id, ownerID)
	if err != nil {
		return fmt.Errorf("delete node %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete node %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("delete %s: %w", id, model.ErrNotFound)
	}
	s.log.Debug().Str("id", id).Str("owner", ownerID).Msg("node deleted")
	return nil
}

func (s *SQLite) ListAll(ctx context.Context, ownerID string) ([]model.Node, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, name, level, parent_id, sort_order, color, created_at, updated_at
		 FROM nodes WHERE owner_id = ?`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	var out []model.Node
	for rows.Next() {
		var n model.Node
		var level int
		var parent, color sql.NullString
		if err := rows.Scan(&n.ID, &n.OwnerID, &n.Name, &level, &parent, &n.Order,
			&color, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		n.Level = model.Level(level)
		n.ParentID = parent.String
		n.Color = color.String
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	return out, nil
}

func (s *SQLite) CountReferences(ctx context.Context, ownerID, nodeID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tag_refs WHERE owner_id = ? AND tag_id = ?",
		ownerID, nodeID).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("count references for %s: %w", nodeID, err)
	}
	return count, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// AddReference records a transaction-tag link. The real transaction subsystem
// owns this table; the hierarchy only ever reads it, but the import surface
// and tests need a writer.
func (s *SQLite) AddReference(ctx context.Context, ownerID, nodeID, txnID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO tag_refs (owner_id, tag_id, txn_id) VALUES (?, ?, ?)",
		ownerID, nodeID, txnID)
	if err != nil {
		return fmt.Errorf("add reference: %w", err)
	}
	return nil
}
