package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists logs to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS decision_logs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        decision_id TEXT,
        ts INTEGER,
        source TEXT,
        shortfall INTEGER,
        record TEXT
    );
    CREATE TABLE IF NOT EXISTS decision_circuits (
        log_id INTEGER,
        circuit_id TEXT,
        status TEXT
    );
    CREATE INDEX IF NOT EXISTS decision_circuits_id ON decision_circuits (circuit_id);`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Append writes the record and its circuit statuses in one transaction.
func (s *SQLiteStore) Append(ctx context.Context, rec LogRecord) (err error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	shortfall := 0
	if rec.Decision.DemandExceedsSupply {
		shortfall = 1
	}
	out, err := tx.ExecContext(ctx,
		`INSERT INTO decision_logs (decision_id, ts, source, shortfall, record) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp.UnixNano(), rec.Decision.SelectedSource.String(), shortfall, string(b))
	if err != nil {
		return err
	}
	logID, err := out.LastInsertId()
	if err != nil {
		return err
	}
	for id, st := range rec.Decision.Statuses {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO decision_circuits (log_id, circuit_id, status) VALUES (?, ?, ?)`,
			logID, id, st.String()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Query returns records matching q, oldest first.
func (s *SQLiteStore) Query(ctx context.Context, q LogQuery) ([]LogRecord, error) {
	var args []any
	query := `SELECT record FROM decision_logs l WHERE 1=1`
	if !q.Start.IsZero() {
		query += ` AND l.ts >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		query += ` AND l.ts <= ?`
		args = append(args, q.End.UnixNano())
	}
	if q.Source != nil {
		query += ` AND l.source = ?`
		args = append(args, q.Source.String())
	}
	if q.CircuitID != "" {
		query += ` AND EXISTS (SELECT 1 FROM decision_circuits c WHERE c.log_id = l.id AND c.circuit_id = ?)`
		args = append(args, q.CircuitID)
	}
	if q.Limit > 0 {
		query += ` ORDER BY l.ts DESC, l.id DESC LIMIT ?`
		args = append(args, q.Limit)
	} else {
		query += ` ORDER BY l.ts, l.id`
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []LogRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r LogRecord
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if q.Limit > 0 {
		for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
			res[i], res[j] = res[j], res[i]
		}
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
