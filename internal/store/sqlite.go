package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/mailnotify/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection. Safe on a store
// that never finished opening.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// FetchAll retrieves all mail records, or only undelivered ones when
// unreadOnly is set.
func (s *SQLiteStore) FetchAll(
	ctx context.Context,
	unreadOnly bool,
) ([]model.MailRecord, error) {
	query := "SELECT uid, thread, date, sender, body, delivered FROM mails"
	if unreadOnly {
		query += " WHERE delivered = 0"
	}

	rows, err := s.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying mails: %w", err)
	}
	defer rows.Close()

	var records []model.MailRecord
	for rows.Next() {
		rec, err := scanMail(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// CommitNew inserts every candidate whose full tuple is not already
// stored, with delivered=false, inside one transaction. Candidates are
// inserted in ascending uid order so a partial failure is deterministic.
func (s *SQLiteStore) CommitNew(
	ctx context.Context,
	candidates map[uint32]model.DecodedMessage,
) (int, error) {
	if len(candidates) == 0 {
		return 0, nil
	}

	existing, err := s.FetchAll(ctx, false)
	if err != nil {
		return 0, fmt.Errorf("loading existing mails: %w", err)
	}

	seen := make(map[string]struct{}, len(existing))
	for _, rec := range existing {
		seen[tupleKey(rec.UID, rec.Content())] = struct{}{}
	}

	uids := make([]uint32, 0, len(candidates))
	for uid, msg := range candidates {
		if _, ok := seen[tupleKey(uid, msg)]; ok {
			continue
		}
		uids = append(uids, uid)
	}
	if len(uids) == 0 {
		return 0, nil
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO mails (uid, thread, date, sender, body, delivered)
		VALUES (?, ?, ?, ?, ?, 0)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, uid := range uids {
		msg := candidates[uid]
		if _, err := stmt.ExecContext(
			ctx, uid, msg.Thread, msg.Date, msg.Sender, msg.Body,
		); err != nil {
			return 0, fmt.Errorf("inserting mail uid=%d: %w", uid, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing mail batch: %w", err)
	}

	return len(uids), nil
}

// MarkDelivered flips delivered to true for every row with the given
// uid. An absent uid is a no-op.
func (s *SQLiteStore) MarkDelivered(ctx context.Context, uid uint32) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE mails SET delivered = 1 WHERE uid = ?", uid,
	)
	if err != nil {
		return fmt.Errorf("marking mail uid=%d delivered: %w", uid, err)
	}
	return nil
}

// scanMail scans a mail row from a sqlx.Rows result set.
func scanMail(rows *sqlx.Rows) (model.MailRecord, error) {
	var (
		rec       model.MailRecord
		delivered int
	)

	err := rows.Scan(
		&rec.UID, &rec.Thread, &rec.Date, &rec.Sender, &rec.Body,
		&delivered,
	)
	if err != nil {
		return model.MailRecord{}, fmt.Errorf("scanning mail row: %w", err)
	}

	rec.Delivered = delivered != 0
	return rec, nil
}

// tupleKey builds the dedup identity for one message: the uid combined
// with every decoded field, NUL-joined so field boundaries can't collide.
func tupleKey(uid uint32, msg model.DecodedMessage) string {
	return strings.Join([]string{
		fmt.Sprintf("%d", uid), msg.Thread, msg.Date, msg.Sender, msg.Body,
	}, "\x00")
}
