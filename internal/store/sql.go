package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"rfidattend/internal/attendance"
	"rfidattend/internal/jalali"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS attendance_records (
		seq BIGINT PRIMARY KEY,
		id TEXT NOT NULL,
		rfid TEXT NOT NULL,
		name TEXT NOT NULL,
		action TEXT NOT NULL,
		jalali_time TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_records_rfid ON attendance_records(rfid, seq)`,
	`CREATE TABLE IF NOT EXISTS rfid_tags (
		rfid TEXT PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS authorized_recipients (
		chat_id BIGINT PRIMARY KEY
	)`,
}

// SQL stores the collections in three tables. Queries are written with '?'
// placeholders and rebound for drivers that number them.
type SQL struct {
	Client   *sql.DB
	numbered bool
}

func newSQL(ctx context.Context, db *sql.DB, numbered bool) (*SQL, error) {
	s := &SQL{Client: db, numbered: numbered}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}
	return s, nil
}

// Healthy pings the database.
func (s *SQL) Healthy(ctx context.Context) bool {
	return s != nil && s.Client != nil && s.Client.PingContext(ctx) == nil
}

// Close closes the underlying connection.
func (s *SQL) Close() error {
	if s == nil || s.Client == nil {
		return nil
	}
	return s.Client.Close()
}

func (s *SQL) rebind(query string) string {
	if !s.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQL) LoadLedger(ctx context.Context) ([]attendance.Record, error) {
	rows, err := s.Client.QueryContext(ctx,
		`SELECT seq, id, rfid, name, action, jalali_time FROM attendance_records ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []attendance.Record
	for rows.Next() {
		var (
			rec    attendance.Record
			action string
			at     string
		)
		if err := rows.Scan(&rec.Seq, &rec.ID, &rec.TagID, &rec.Name, &action, &at); err != nil {
			return nil, err
		}
		rec.Action = attendance.Action(action)
		if rec.Time, err = jalali.Parse(at); err != nil {
			return nil, fmt.Errorf("record %d: %w", rec.Seq, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQL) SaveLedger(ctx context.Context, records []attendance.Record) error {
	return s.replace(ctx, "attendance_records", func(tx *sql.Tx) error {
		for _, rec := range records {
			if err := s.insertRecord(ctx, tx, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// AppendRecord inserts one record without touching the rest of the ledger.
func (s *SQL) AppendRecord(ctx context.Context, rec attendance.Record) error {
	return s.insertRecord(ctx, s.Client, rec)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQL) insertRecord(ctx context.Context, ex execer, rec attendance.Record) error {
	_, err := ex.ExecContext(ctx, s.rebind(
		`INSERT INTO attendance_records (seq, id, rfid, name, action, jalali_time) VALUES (?, ?, ?, ?, ?, ?)`),
		rec.Seq, rec.ID, rec.TagID, rec.Name, string(rec.Action), rec.Time.String())
	return err
}

func (s *SQL) LoadRegistry(ctx context.Context) (map[string]string, error) {
	rows, err := s.Client.QueryContext(ctx, `SELECT rfid, name FROM rfid_tags`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = name
	}
	return out, rows.Err()
}

func (s *SQL) SaveRegistry(ctx context.Context, tags map[string]string) error {
	return s.replace(ctx, "rfid_tags", func(tx *sql.Tx) error {
		for id, name := range tags {
			if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO rfid_tags (rfid, name) VALUES (?, ?)`), id, name); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQL) LoadRecipients(ctx context.Context) ([]int64, error) {
	rows, err := s.Client.QueryContext(ctx, `SELECT chat_id FROM authorized_recipients ORDER BY chat_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *SQL) SaveRecipients(ctx context.Context, ids []int64) error {
	return s.replace(ctx, "authorized_recipients", func(tx *sql.Tx) error {
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO authorized_recipients (chat_id) VALUES (?)`), id); err != nil {
				return err
			}
		}
		return nil
	})
}

// replace empties table and refills it inside one transaction.
func (s *SQL) replace(ctx context.Context, table string, fill func(tx *sql.Tx) error) error {
	tx, err := s.Client.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	if err := fill(tx); err != nil {
		return fmt.Errorf("fill %s: %w", table, err)
	}
	return tx.Commit()
}
