package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS records (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	type TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS records_owner ON records(owner_id);`

// SQLite is a Persister backed by a local database file.
type SQLite struct {
	DB *sql.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLite{DB: db}, nil
}

// Persist upserts r by id.
func (s *SQLite) Persist(ctx context.Context, r Record) (Response, error) {
	if r.ID == "" || r.OwnerID == "" {
		return Response{Success: false, Error: "record needs an id and an owner"}, nil
	}
	payload, err := json.Marshal(r.Payload)
	if err != nil {
		return Response{Success: false, ID: r.ID, Error: err.Error()}, nil
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO records (id, owner_id, type, payload, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET owner_id = excluded.owner_id, type = excluded.type, payload = excluded.payload`,
		r.ID, r.OwnerID, r.Type, string(payload), r.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return Response{}, fmt.Errorf("sqlite: persist %s: %w", r.ID, err)
	}
	return Response{Success: true, ID: r.ID}, nil
}

// Get returns the record with id.
func (s *SQLite) Get(ctx context.Context, id string) (Record, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT id, owner_id, type, payload, created_at FROM records WHERE id = ?`, id)
	return scanRecord(row)
}

// ListByOwner returns an owner's records, oldest first.
func (s *SQLite) ListByOwner(ctx context.Context, ownerID string) ([]Record, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, owner_id, type, payload, created_at FROM records WHERE owner_id = ? ORDER BY created_at, id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.DB.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var r Record
	var payload, created string
	if err := sc.Scan(&r.ID, &r.OwnerID, &r.Type, &payload, &created); err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal([]byte(payload), &r.Payload); err != nil {
		return Record{}, fmt.Errorf("decoding payload of %s: %w", r.ID, err)
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return r, nil
}
