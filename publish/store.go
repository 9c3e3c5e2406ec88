package publish

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/reportedit/dbopen"
	"github.com/hazyhaar/reportedit/idgen"
)

// ErrNotFound is returned for an unknown report id.
var ErrNotFound = errors.New("publish: report not found")

// MaxHistory is the default number of reports the store keeps.
const MaxHistory = 20

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	html       TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS reports_created ON reports(created_at);
`

// Store keeps published reports in SQLite and prunes everything beyond the
// most recent maxHistory.
type Store struct {
	db         *sql.DB
	maxHistory int
	logger     *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithMaxHistory sets how many reports are kept. Default: MaxHistory.
func WithMaxHistory(n int) StoreOption {
	return func(s *Store) { s.maxHistory = n }
}

// WithStoreLogger sets a custom logger.
func WithStoreLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// OpenStore opens (creating when needed) the store at path.
func OpenStore(path string, opts ...StoreOption) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(schema))
	if err != nil {
		return nil, fmt.Errorf("publish: open store: %w", err)
	}
	return NewStore(db, opts...), nil
}

// NewStore wraps an open database whose schema is already applied.
func NewStore(db *sql.DB, opts ...StoreOption) *Store {
	s := &Store{db: db, maxHistory: MaxHistory, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Schema is the DDL the store expects, for callers opening the database
// themselves.
func Schema() string { return schema }

// Publish stores r, assigning an id and timestamp when missing, then prunes
// old reports.
func (s *Store) Publish(ctx context.Context, r Report) error {
	_, err := s.Put(ctx, r)
	return err
}

// Put stores r and returns it with its id and timestamp set.
func (s *Store) Put(ctx context.Context, r Report) (Report, error) {
	if r.ID == "" {
		r.ID = idgen.Report()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO reports (id, name, html, created_at) VALUES (?, ?, ?, ?)`,
			r.ID, r.Name, r.HTML, r.CreatedAt.UnixNano()); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`DELETE FROM reports WHERE id NOT IN (SELECT id FROM reports ORDER BY created_at DESC LIMIT ?)`,
			s.maxHistory)
		return err
	})
	if err != nil {
		return Report{}, fmt.Errorf("publish: put: %w", err)
	}
	s.logger.Info("publish: report stored", "id", r.ID, "bytes", len(r.HTML))
	return r, nil
}

// Get returns a report by id. A trailing ".html" is accepted so blob-style
// keys resolve.
func (s *Store) Get(ctx context.Context, id string) (Report, error) {
	id = strings.TrimSuffix(id, ".html")
	var r Report
	var created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, html, created_at FROM reports WHERE id = ?`, id).
		Scan(&r.ID, &r.Name, &r.HTML, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if err != nil {
		return Report{}, fmt.Errorf("publish: get: %w", err)
	}
	r.CreatedAt = time.Unix(0, created).UTC()
	return r, nil
}

// List returns report metadata, newest first, without the documents.
func (s *Store) List(ctx context.Context) ([]Report, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM reports ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("publish: list: %w", err)
	}
	defer rows.Close()

	var out []Report
	for rows.Next() {
		var r Report
		var created int64
		if err := rows.Scan(&r.ID, &r.Name, &created); err != nil {
			return nil, fmt.Errorf("publish: list scan: %w", err)
		}
		r.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Delete removes a report.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, strings.TrimSuffix(id, ".html"))
	if err != nil {
		return fmt.Errorf("publish: delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
