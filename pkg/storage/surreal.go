package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	surrealdb "github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/vanderheijden86/taggrove/pkg/model"
)

// Surreal is a Backend over a hosted SurrealDB instance, the document-store
// shape the original application ran on. Nodes live in the `node` table,
// transaction-tag links in `tag_ref`.
type Surreal struct {
	db  *surrealdb.DB
	log zerolog.Logger
}

// SurrealOptions configures the connection.
type SurrealOptions struct {
	Endpoint  string // e.g. ws://localhost:8000/rpc
	Namespace string
	Database  string
	Username  string
	Password  string
}

// surrealNode is the wire representation. Absent parent/color are stored as
// NONE, which SurrealDB distinguishes from an omitted field; updates rely on
// that to actually clear fields.
type surrealNode struct {
	ID        *models.RecordID       `json:"id,omitempty"`
	OwnerID   string                 `json:"owner_id"`
	Name      string                 `json:"name"`
	Level     int                    `json:"level"`
	ParentID  *string                `json:"parent_id,omitempty"`
	Order     float64                `json:"sort_order"`
	Color     *string                `json:"color,omitempty"`
	CreatedAt models.CustomDateTime  `json:"created_at"`
	UpdatedAt *models.CustomDateTime `json:"updated_at,omitempty"`
}

func (r surrealNode) toModel() model.Node {
	n := model.Node{
		OwnerID:   r.OwnerID,
		Name:      r.Name,
		Level:     model.Level(r.Level),
		Order:     r.Order,
		CreatedAt: r.CreatedAt.Time,
	}
	if r.ID != nil {
		n.ID = fmt.Sprintf("%v", r.ID.ID)
	}
	if r.ParentID != nil {
		n.ParentID = *r.ParentID
	}
	if r.Color != nil {
		n.Color = *r.Color
	}
	if r.UpdatedAt != nil {
		n.UpdatedAt = r.UpdatedAt.Time
	}
	return n
}

// OpenSurreal connects, authenticates, and selects the namespace/database.
func OpenSurreal(ctx context.Context, opts SurrealOptions, log zerolog.Logger) (*Surreal, error) {
	db, err := surrealdb.FromEndpointURLString(ctx, opts.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("connect surrealdb %s: %w", opts.Endpoint, err)
	}
	if err := db.Use(ctx, opts.Namespace, opts.Database); err != nil {
		return nil, fmt.Errorf("use %s/%s: %w", opts.Namespace, opts.Database, err)
	}
	if opts.Username != "" {
		token, err := db.SignIn(ctx, surrealdb.Auth{
			Username: opts.Username,
			Password: opts.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("sign in: %w", err)
		}
		if err := db.Authenticate(ctx, token); err != nil {
			return nil, fmt.Errorf("authenticate: %w", err)
		}
	}
	log.Debug().Str("endpoint", opts.Endpoint).Msg("surrealdb connected")
	return &Surreal{db: db, log: log}, nil
}

func (s *Surreal) Create(ctx context.Context, ownerID string, n model.Node) (string, error) {
	if n.ID == "" {
		n.ID = NewID()
	}
	rec := surrealNode{
		OwnerID:   ownerID,
		Name:      n.Name,
		Level:     int(n.Level),
		Order:     n.Order,
		CreatedAt: models.CustomDateTime{Time: time.Now()},
	}
	if n.ParentID != "" {
		rec.ParentID = &n.ParentID
	}
	if n.Color != "" {
		rec.Color = &n.Color
	}
	_, err := surrealdb.Create[surrealNode](ctx, s.db, models.NewRecordID("node", n.ID), rec)
	if err != nil {
		return "", fmt.Errorf("create node: %w", err)
	}
	return n.ID, nil
}

func (s *Surreal) Update(ctx context.Context, ownerID, id string, p Patch) error {
	if p.IsZero() {
		return nil
	}
	var sets []string
	vars := map[string]any{
		"rid":   models.NewRecordID("node", id),
		"owner": ownerID,
	}
	if p.Name != nil {
		sets = append(sets, "name = $name")
		vars["name"] = *p.Name
	}
	if p.Color != nil {
		if *p.Color == "" {
			sets = append(sets, "color = NONE")
		} else {
			sets = append(sets, "color = $color")
			vars["color"] = *p.Color
		}
	}
	if p.Level != nil {
		sets = append(sets, "level = $level")
		vars["level"] = int(*p.Level)
	}
	if p.ParentID != nil {
		if *p.ParentID == "" {
			// NONE clears the field in the document; omitting it would
			// leave the old parent reference in place.
			sets = append(sets, "parent_id = NONE")
		} else {
			sets = append(sets, "parent_id = $parent")
			vars["parent"] = *p.ParentID
		}
	}
	if p.Order != nil {
		sets = append(sets, "sort_order = $order")
		vars["order"] = *p.Order
	}
	sets = append(sets, "updated_at = time::now()")

	query := "UPDATE node SET " + strings.Join(sets, ", ") +
		" WHERE id = $rid AND owner_id = $owner"
	res, err := surrealdb.Query[[]surrealNode](ctx, s.db, query, vars)
	if err != nil {
		return fmt.Errorf("update node %s: %w", id, err)
	}
	if res == nil || len(*res) == 0 || len((*res)[0].Result) == 0 {
		return fmt.Errorf("update %s: %w", id, model.ErrNotFound)
	}
	return nil
}

func (s *Surreal) Delete(ctx context.Context, ownerID, id string) error {
	res, err := surrealdb.Query[[]surrealNode](ctx, s.db,
		"DELETE node WHERE id = $rid AND owner_id = $owner RETURN BEFORE",
		map[string]any{
			"rid":   models.NewRecordID("node", id),
			"owner": ownerID,
		})
	if err != nil {
		return fmt.Errorf("delete node %s: %w", id, err)
	}
	if res == nil || len(*res) == 0 || len((*res)[0].Result) == 0 {
		return fmt.Errorf("delete %s: %w", id, model.ErrNotFound)
	}
	s.log.Debug().Str("id", id).Str("owner", ownerID).Msg("node deleted")
	return nil
}

func (s *Surreal) ListAll(ctx context.Context, ownerID string) ([]model.Node, error) {
	res, err := surrealdb.Query[[]surrealNode](ctx, s.db,
		"SELECT * FROM node WHERE owner_id = $owner",
		map[string]any{"owner": ownerID})
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	var out []model.Node
	if res != nil && len(*res) > 0 {
		for _, rec := range (*res)[0].Result {
			out = append(out, rec.toModel())
		}
	}
	return out, nil
}

func (s *Surreal) CountReferences(ctx context.Context, ownerID, nodeID string) (int, error) {
	type countResult struct {
		C int `json:"c"`
	}
	res, err := surrealdb.Query[[]countResult](ctx, s.db,
		"SELECT count() AS c FROM tag_ref WHERE owner_id = $owner AND tag_id = $tag GROUP ALL",
		map[string]any{"owner": ownerID, "tag": nodeID})
	if err != nil {
		return 0, fmt.Errorf("count references for %s: %w", nodeID, err)
	}
	if res == nil || len(*res) == 0 || len((*res)[0].Result) == 0 {
		return 0, nil
	}
	return (*res)[0].Result[0].C, nil
}

func (s *Surreal) Close() error {
	return s.db.Close(context.Background())
}
