package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/querysync/internal/value"
	"github.com/roach88/querysync/internal/watch"
)

// Record is one persisted query result.
type Record struct {
	Key     value.QueryKey
	Name    string
	Args    string // canonical JSON
	Value   string // canonical JSON
	Journal watch.Journal
	Seq     int64
}

// SaveResult upserts a record. A stored record with a higher seq wins, so
// late writes from a slower path never roll a result back.
func (s *Store) SaveResult(ctx context.Context, rec Record) error {
	if rec.Key == "" {
		return fmt.Errorf("save result: empty key")
	}
	if rec.Args == "" {
		rec.Args = "{}"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO results (key, name, args, value, journal, seq)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			name = excluded.name,
			args = excluded.args,
			value = excluded.value,
			journal = excluded.journal,
			seq = excluded.seq
		WHERE excluded.seq >= results.seq
	`,
		string(rec.Key),
		rec.Name,
		rec.Args,
		rec.Value,
		string(rec.Journal),
		rec.Seq,
	)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

// LoadResult returns the record for key. ok is false when none exists.
func (s *Store) LoadResult(ctx context.Context, key value.QueryKey) (Record, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key, name, args, value, journal, seq
		FROM results
		WHERE key = ?
	`, string(key))

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("load result: %w", err)
	}
	return rec, true, nil
}

// ListResults returns the records of one query name, or of all queries when
// name is empty, ordered by name, args, key.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) ListResults(ctx context.Context, name string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, name, args, value, journal, seq
		FROM results
		WHERE ? = '' OR name = ?
		ORDER BY name COLLATE BINARY ASC, args COLLATE BINARY ASC, key COLLATE BINARY ASC
	`, name, name)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return records, nil
}

// DeleteResult removes the record for key. Deleting a missing key is not an
// error.
func (s *Store) DeleteResult(ctx context.Context, key value.QueryKey) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM results WHERE key = ?`, string(key)); err != nil {
		return fmt.Errorf("delete result: %w", err)
	}
	return nil
}

// Prune removes every record with seq below beforeSeq and returns how many
// were removed.
func (s *Store) Prune(ctx context.Context, beforeSeq int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM results WHERE seq < ?`, beforeSeq)
	if err != nil {
		return 0, fmt.Errorf("prune results: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune results: %w", err)
	}
	return n, nil
}

// LastSeq returns the highest stored seq, or 0 for an empty store.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM results`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec     Record
		key     string
		journal string
	)
	if err := row.Scan(&key, &rec.Name, &rec.Args, &rec.Value, &journal, &rec.Seq); err != nil {
		return Record{}, err
	}
	rec.Key = value.QueryKey(key)
	rec.Journal = watch.Journal(journal)
	return rec, nil
}
