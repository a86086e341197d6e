// Package history is the local cache of scanned products.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/zen-systems/ecoscan/pkg/product"
	"github.com/zen-systems/ecoscan/pkg/schema"
)

const (
	// DefaultLimit is the number of scans kept.
	DefaultLimit = 50
	// DefaultUserID tags scans made without an explicit user.
	DefaultUserID = "local-user"
)

// ErrNotFound is returned when a barcode has no history entry.
var ErrNotFound = errors.New("scan not found")

// Entry is one cached scan.
type Entry struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"userId"`
	Product   product.Product        `json:"product"`
	Analysis  *schema.AnalysisResult `json:"analysis,omitempty"`
	ScannedAt time.Time              `json:"scannedAt"`
}

// Store keeps the most recent scans, newest first, one entry per barcode.
type Store struct {
	db     *sql.DB
	limit  int
	userID string
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLimit sets how many scans are kept.
func WithLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithUserID sets the user scans are attributed to.
func WithUserID(id string) Option {
	return func(s *Store) {
		if id != "" {
			s.userID = id
		}
	}
}

// Open opens (or creates) the SQLite database at path.
func Open(path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, limit: DefaultLimit, userID: DefaultUserID, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	for _, stmt := range migrations {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Add records a scan. An existing entry for the same barcode is replaced and
// moved to the front; its analysis is kept when analysis is nil. Entries
// beyond the limit are dropped, oldest first.
func (s *Store) Add(ctx context.Context, p product.Product, analysis *schema.AnalysisResult) (*Entry, error) {
	if p.Barcode == "" {
		return nil, fmt.Errorf("product barcode is required")
	}

	productJSON, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode product: %w", err)
	}
	var analysisJSON *string
	if analysis != nil {
		data, err := json.Marshal(analysis)
		if err != nil {
			return nil, fmt.Errorf("encode analysis: %w", err)
		}
		str := string(data)
		analysisJSON = &str
	}

	scannedAt := p.ScannedAt
	if scannedAt.IsZero() {
		scannedAt = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO scans (barcode, id, user_id, seq, product, analysis, scanned_at)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM scans), ?, ?, ?)
		ON CONFLICT(barcode) DO UPDATE SET
			user_id = excluded.user_id,
			seq = excluded.seq,
			product = excluded.product,
			analysis = COALESCE(excluded.analysis, scans.analysis),
			scanned_at = excluded.scanned_at`,
		p.Barcode, uuid.NewString(), s.userID, string(productJSON), analysisJSON, scannedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("save scan: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM scans WHERE barcode NOT IN (SELECT barcode FROM scans ORDER BY seq DESC LIMIT ?)`,
		s.limit,
	)
	if err != nil {
		return nil, fmt.Errorf("prune history: %w", err)
	}

	entry, err := get(ctx, tx, p.Barcode)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return entry, nil
}

// Get returns the entry for barcode.
func (s *Store) Get(ctx context.Context, barcode string) (*Entry, error) {
	return get(ctx, s.db, barcode)
}

// List returns all entries, newest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, product, analysis, scanned_at FROM scans ORDER BY seq DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// Remove deletes the entry for barcode.
func (s *Store) Remove(ctx context.Context, barcode string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scans WHERE barcode = ?`, barcode)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", barcode, ErrNotFound)
	}
	return nil
}

// Clear deletes every entry.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM scans`)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func get(ctx context.Context, q queryer, barcode string) (*Entry, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, user_id, product, analysis, scanned_at FROM scans WHERE barcode = ?`,
		barcode,
	)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", barcode, ErrNotFound)
	}
	return e, err
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		e            Entry
		productJSON  string
		analysisJSON sql.NullString
		scannedAt    int64
	)
	if err := row.Scan(&e.ID, &e.UserID, &productJSON, &analysisJSON, &scannedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(productJSON), &e.Product); err != nil {
		return nil, fmt.Errorf("decode product: %w", err)
	}
	if analysisJSON.Valid {
		e.Analysis = &schema.AnalysisResult{}
		if err := json.Unmarshal([]byte(analysisJSON.String), e.Analysis); err != nil {
			return nil, fmt.Errorf("decode analysis: %w", err)
		}
	}
	e.ScannedAt = time.Unix(0, scannedAt)
	return &e, nil
}
