// Package tablestore implements the durable chunk table. The backing store
// deliberately exposes no per-row delete or schema migration: callers that
// need a structural change must drop and recreate the table, which keeps the
// repair paths explicit.
package tablestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"

	"github.com/didi/gendry/builder"

	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/model"
	appErr "github.com/DekelUsach/Proyecto-final-de-seminario/internal/pkg/errors"
)

var tableNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS table_meta (name TEXT PRIMARY KEY, dim INTEGER NOT NULL)`); err != nil {
		return nil, fmt.Errorf("init table meta: %w", err)
	}
	return s, nil
}

func checkName(name string) error {
	if !tableNameRe.MatchString(name) {
		return fmt.Errorf("invalid table name: %q", name)
	}
	return nil
}

func (s *Store) HasTable(ctx context.Context, name string) (bool, error) {
	if err := checkName(name); err != nil {
		return false, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = ?`, name)
	var count int
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateTable drops any existing table of the same name and recreates it from
// the given rows; the vector dimension is inferred from the first row.
func (s *Store) CreateTable(ctx context.Context, name string, rows []model.ChunkRow) error {
	if err := checkName(name); err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("initial rows are required to create table %s", name)
	}
	dim := len(rows[0].Vector)
	if dim == 0 {
		return appErr.ErrInvalid
	}
	if err := s.DropTable(ctx, name); err != nil {
		return err
	}
	schema := fmt.Sprintf(`CREATE TABLE %s (
		id TEXT PRIMARY KEY,
		story_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		text TEXT NOT NULL,
		vector BLOB NOT NULL,
		title TEXT NOT NULL DEFAULT ''
	)`, name)
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}
	if _, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO table_meta (name, dim) VALUES (?, ?)`, name, dim); err != nil {
		return err
	}
	table := &Table{store: s, name: name}
	return table.insert(ctx, rows, dim)
}

func (s *Store) DropTable(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, name)); err != nil {
		return fmt.Errorf("drop table %s: %w", name, err)
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM table_meta WHERE name = ?`, name)
	return err
}

func (s *Store) OpenTable(ctx context.Context, name string) (*Table, error) {
	ok, err := s.HasTable(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &Table{store: s, name: name}, nil
}

type Table struct {
	store *Store
	name  string
}

func (t *Table) Dim(ctx context.Context) (int, error) {
	row := t.store.db.QueryRowContext(ctx, `SELECT dim FROM table_meta WHERE name = ?`, t.name)
	var dim int
	if err := row.Scan(&dim); err != nil {
		if err == sql.ErrNoRows {
			return 0, appErr.ErrNotFound
		}
		return 0, err
	}
	return dim, nil
}

// Add appends rows. Rows whose vector dimension differs from the table's
// recorded dimension are rejected with ErrDimensionMismatch so the caller can
// run the rebuild repair path.
func (t *Table) Add(ctx context.Context, rows []model.ChunkRow) error {
	if len(rows) == 0 {
		return nil
	}
	dim, err := t.Dim(ctx)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if len(r.Vector) != dim {
			return appErr.ErrDimensionMismatch
		}
	}
	return t.insert(ctx, rows, dim)
}

func (t *Table) insert(ctx context.Context, rows []model.ChunkRow, dim int) error {
	data := make([]map[string]interface{}, 0, len(rows))
	for _, r := range rows {
		if len(r.Vector) != dim {
			return appErr.ErrDimensionMismatch
		}
		blob, err := json.Marshal(r.Vector)
		if err != nil {
			return err
		}
		data = append(data, map[string]interface{}{
			"id":          r.ID,
			"story_id":    r.StoryID,
			"chunk_index": r.ChunkIndex,
			"text":        r.Text,
			"vector":      blob,
			"title":       r.Title,
		})
	}
	sqlStr, args, err := builder.BuildInsert(t.name, data)
	if err != nil {
		return err
	}
	_, err = t.store.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (t *Table) ToArray(ctx context.Context) ([]model.ChunkRow, error) {
	query := fmt.Sprintf(`SELECT id, story_id, chunk_index, text, vector, title FROM %s ORDER BY story_id, chunk_index`, t.name)
	rows, err := t.store.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.ChunkRow
	for rows.Next() {
		var item model.ChunkRow
		var blob []byte
		if err := rows.Scan(&item.ID, &item.StoryID, &item.ChunkIndex, &item.Text, &blob, &item.Title); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(blob, &item.Vector); err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	return results, rows.Err()
}

// Search returns up to limit rows ordered by descending cosine similarity to
// the query vector. The table is small enough for a brute-force scan.
func (t *Table) Search(ctx context.Context, vector []float32, limit int) ([]model.ChunkRow, error) {
	if limit <= 0 {
		limit = 200
	}
	dim, err := t.Dim(ctx)
	if err != nil {
		return nil, err
	}
	if len(vector) != dim {
		return nil, appErr.ErrDimensionMismatch
	}
	all, err := t.ToArray(ctx)
	if err != nil {
		return nil, err
	}
	type scored struct {
		row model.ChunkRow
		sim float64
	}
	items := make([]scored, 0, len(all))
	for _, r := range all {
		items = append(items, scored{row: r, sim: cosine(vector, r.Vector)})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].sim > items[j].sim
	})
	if len(items) > limit {
		items = items[:limit]
	}
	results := make([]model.ChunkRow, 0, len(items))
	for _, it := range items {
		results = append(results, it.row)
	}
	return results, nil
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(na) * math.Sqrt(nb)
	if denom < 1 {
		denom = 1
	}
	return dot / denom
}
