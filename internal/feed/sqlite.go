package feed

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// NewSQLite returns a Local feed persisted in the feed_nodes table of db.
// The schema is created by the migrations package.
func NewSQLite(db *sql.DB) *Local {
	return newLocal(&sqliteStore{db: db})
}

type sqliteStore struct {
	db *sql.DB
}

func (s *sqliteStore) get(ctx context.Context, parent, key string) (json.RawMessage, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT json(data) FROM feed_nodes WHERE path = ?`, Join(parent, key),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return json.RawMessage(data), true, nil
}

func (s *sqliteStore) put(ctx context.Context, parent, key string, data json.RawMessage) (bool, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	path := Join(parent, key)
	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM feed_nodes WHERE path = ?`, path,
	).Scan(&n); err != nil {
		return false, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO feed_nodes (path, parent, key, data) VALUES (?, ?, ?, jsonb(?))
		 ON CONFLICT(path) DO UPDATE SET data = excluded.data`,
		path, parent, key, string(data),
	); err != nil {
		return false, err
	}
	return n > 0, tx.Commit()
}

func (s *sqliteStore) del(ctx context.Context, parent, key string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM feed_nodes WHERE path = ?`, Join(parent, key),
	)
	if err != nil {
		return false, err
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

func (s *sqliteStore) children(ctx context.Context, parent string) ([]child, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, json(data) FROM feed_nodes WHERE parent = ? ORDER BY key`, parent,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []child
	for rows.Next() {
		var c child
		var data string
		if err := rows.Scan(&c.key, &data); err != nil {
			return nil, err
		}
		c.data = json.RawMessage(data)
		out = append(out, c)
	}
	return out, rows.Err()
}
