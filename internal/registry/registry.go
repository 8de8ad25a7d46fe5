// Package registry persists sandbox records in a local sqlite database.
// Records are soft-state: rows are inserted at provisioning time and
// mutated through explicit field updates and status transitions, never
// deleted.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/draftforge/studio/internal/paths"
	_ "modernc.org/sqlite"
)

// Status is the publication state of a sandbox record. Runtime state
// (running/hibernated) belongs to the external provider and is not
// persisted here.
type Status string

const (
	StatusActive   Status = "active"
	StatusOnReview Status = "on_review"
	StatusPosted   Status = "posted"
	StatusFeatured Status = "featured"
	StatusRejected Status = "rejected"
)

// ParseStatus validates a status string from config, the API, or the
// database.
func ParseStatus(raw string) (Status, error) {
	switch Status(strings.TrimSpace(raw)) {
	case StatusActive:
		return StatusActive, nil
	case StatusOnReview:
		return StatusOnReview, nil
	case StatusPosted:
		return StatusPosted, nil
	case StatusFeatured:
		return StatusFeatured, nil
	case StatusRejected:
		return StatusRejected, nil
	default:
		return "", fmt.Errorf("unknown sandbox status %q", raw)
	}
}

// Record is one persisted sandbox row. ID and ExternalID are assigned at
// creation and never reassigned.
type Record struct {
	ID           int64
	ExternalID   string
	OwnerID      string
	Name         string
	ComponentRef string
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ErrNotFound reports that no row matched the lookup, including lookups
// scoped to an owner that the row does not belong to.
var ErrNotFound = errors.New("sandbox record not found")

// mutableColumns is the allow-list for UpdateFields. Anything else in a
// patch is rejected before touching the database.
var mutableColumns = map[string]struct{}{
	"name":          {},
	"component_ref": {},
}

// MutableField reports whether a patch key may be updated through
// UpdateFields.
func MutableField(name string) bool {
	_, ok := mutableColumns[name]
	return ok
}

type Options struct {
	DBPath string
	Now    func() time.Time
}

type Registry struct {
	dbPath string
	now    func() time.Time

	mu sync.Mutex
}

func New(opts Options) (*Registry, error) {
	dbPath := strings.TrimSpace(opts.DBPath)
	if dbPath == "" {
		var err error
		dbPath, err = paths.RegistryDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve registry database path: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create registry directory for %q: %w", dbPath, err)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Registry{dbPath: dbPath, now: now}, nil
}

func (r *Registry) open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("sqlite", r.dbPath)
	if err != nil {
		return nil, fmt.Errorf("open registry database %q: %w", r.dbPath, err)
	}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS sandboxes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			external_id TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			component_ref TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			created_at_unix INTEGER NOT NULL,
			updated_at_unix INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS sandboxes_owner_idx ON sandboxes(owner_id);
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize registry schema: %w", err)
	}
	return db, nil
}

// Insert persists a freshly provisioned sandbox and returns its id.
func (r *Registry) Insert(ctx context.Context, externalID, ownerID, name string) (Record, error) {
	externalID = strings.TrimSpace(externalID)
	ownerID = strings.TrimSpace(ownerID)
	if externalID == "" {
		return Record{}, errors.New("external id cannot be empty")
	}
	if ownerID == "" {
		return Record{}, errors.New("owner id cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	db, err := r.open(ctx)
	if err != nil {
		return Record{}, err
	}
	defer db.Close()

	now := r.now().UTC()
	res, err := db.ExecContext(ctx, `
		INSERT INTO sandboxes (external_id, owner_id, name, status, created_at_unix, updated_at_unix)
		VALUES (?, ?, ?, ?, ?, ?)
	`, externalID, ownerID, name, string(StatusActive), now.Unix(), now.Unix())
	if err != nil {
		return Record{}, fmt.Errorf("insert sandbox record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Record{}, fmt.Errorf("read inserted sandbox id: %w", err)
	}

	return Record{
		ID:         id,
		ExternalID: externalID,
		OwnerID:    ownerID,
		Name:       name,
		Status:     StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

const recordColumns = `id, external_id, owner_id, name, component_ref, status, created_at_unix, updated_at_unix`

// Get looks up a record by id without ownership scoping. Callers are
// responsible for authorizing the result.
func (r *Registry) Get(ctx context.Context, id int64) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	db, err := r.open(ctx)
	if err != nil {
		return Record{}, err
	}
	defer db.Close()

	row := db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM sandboxes WHERE id = ?`, id)
	return scanRecord(row)
}

// GetOwned looks up a record scoped to its owner. A row owned by someone
// else is indistinguishable from a missing row.
func (r *Registry) GetOwned(ctx context.Context, id int64, ownerID string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	db, err := r.open(ctx)
	if err != nil {
		return Record{}, err
	}
	defer db.Close()

	row := db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM sandboxes WHERE id = ? AND owner_id = ?`, id, ownerID)
	return scanRecord(row)
}

// List returns records owned by ownerID, oldest first.
func (r *Registry) List(ctx context.Context, ownerID string) ([]Record, error) {
	return r.list(ctx, `SELECT `+recordColumns+` FROM sandboxes WHERE owner_id = ? ORDER BY created_at_unix ASC, id ASC`, ownerID)
}

// ListAll returns every record, oldest first.
func (r *Registry) ListAll(ctx context.Context) ([]Record, error) {
	return r.list(ctx, `SELECT `+recordColumns+` FROM sandboxes ORDER BY created_at_unix ASC, id ASC`)
}

func (r *Registry) list(ctx context.Context, query string, args ...any) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	db, err := r.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sandbox records: %w", err)
	}
	defer rows.Close()

	items := make([]Record, 0)
	for rows.Next() {
		record, scanErr := scanRecord(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		items = append(items, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sandbox records: %w", err)
	}
	return items, nil
}

// UpdateFields applies an allow-listed field patch and refreshes
// updated_at. An empty patch is a caller bug here; the lifecycle layer
// screens those out first.
func (r *Registry) UpdateFields(ctx context.Context, id int64, patch map[string]string) (Record, error) {
	if len(patch) == 0 {
		return Record{}, errors.New("empty patch")
	}

	assignments := make([]string, 0, len(patch)+1)
	args := make([]any, 0, len(patch)+2)
	for column, value := range patch {
		if !MutableField(column) {
			return Record{}, fmt.Errorf("field %q is not updatable", column)
		}
		assignments = append(assignments, column+" = ?")
		args = append(args, value)
	}
	assignments = append(assignments, "updated_at_unix = ?")
	args = append(args, r.now().UTC().Unix(), id)

	r.mu.Lock()
	defer r.mu.Unlock()

	db, err := r.open(ctx)
	if err != nil {
		return Record{}, err
	}
	defer db.Close()

	res, err := db.ExecContext(ctx, `UPDATE sandboxes SET `+strings.Join(assignments, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return Record{}, fmt.Errorf("update sandbox record: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return Record{}, ErrNotFound
	}

	row := db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM sandboxes WHERE id = ?`, id)
	return scanRecord(row)
}

// SetStatus transitions the record's publication status and refreshes
// updated_at. The transition is an unconditional overwrite; the lifecycle
// layer decides which edges each principal may take.
func (r *Registry) SetStatus(ctx context.Context, id int64, status Status) (Record, error) {
	if _, err := ParseStatus(string(status)); err != nil {
		return Record{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	db, err := r.open(ctx)
	if err != nil {
		return Record{}, err
	}
	defer db.Close()

	res, err := db.ExecContext(ctx, `UPDATE sandboxes SET status = ?, updated_at_unix = ? WHERE id = ?`,
		string(status), r.now().UTC().Unix(), id)
	if err != nil {
		return Record{}, fmt.Errorf("update sandbox status: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return Record{}, ErrNotFound
	}

	row := db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM sandboxes WHERE id = ?`, id)
	return scanRecord(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		record        Record
		status        string
		createdAtUnix int64
		updatedAtUnix int64
	)
	err := row.Scan(
		&record.ID,
		&record.ExternalID,
		&record.OwnerID,
		&record.Name,
		&record.ComponentRef,
		&status,
		&createdAtUnix,
		&updatedAtUnix,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("scan sandbox record: %w", err)
	}

	parsed, err := ParseStatus(status)
	if err != nil {
		return Record{}, err
	}
	record.Status = parsed
	record.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
	record.UpdatedAt = time.Unix(updatedAtUnix, 0).UTC()
	return record, nil
}
