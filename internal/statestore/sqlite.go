package statestore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/url"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/daimoniac/vesselfit/internal/errors"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// SQLite DSN parameters
const (
	defaultBusyTimeout = "5000"
	defaultSynchronous = "NORMAL"
	defaultJournalMode = "WAL"
	defaultReadConns   = 4
)

// SQLiteStore implements Store using SQLite. Writes go through a
// single-connection pool; reads use a separate pool against the WAL.
type SQLiteStore struct {
	writeDB *sql.DB
	readDB  *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at dbPath and
// applies pending migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	writeDB, err := openSQLite(dbPath, "write", 0)
	if err != nil {
		return nil, err
	}

	// Migrate before the read pool opens so it never sees a partial schema
	if err := runMigrations(writeDB); err != nil {
		writeDB.Close()
		return nil, errors.NewPermanentf("failed to initialize schema: %w", err)
	}

	readDB, err := openSQLite(dbPath, "read", defaultReadConns)
	if err != nil {
		writeDB.Close()
		return nil, err
	}

	return &SQLiteStore{writeDB: writeDB, readDB: readDB}, nil
}

func openSQLite(path, mode string, maxOpen int) (*sql.DB, error) {
	params := url.Values{}
	params.Set("_journal_mode", defaultJournalMode)
	params.Set("_busy_timeout", defaultBusyTimeout)
	params.Set("_synchronous", defaultSynchronous)
	params.Set("_foreign_keys", "on")
	if mode == "write" {
		params.Set("_txlock", "immediate")
	}

	db, err := sql.Open("sqlite3", path+"?"+params.Encode())
	if err != nil {
		return nil, errors.NewTransientf("failed to open sqlite database (%s): %w", mode, err)
	}

	if mode == "write" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxOpen)
	}
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.NewTransientf("failed to ping sqlite database (%s): %w", mode, err)
	}
	return db, nil
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Close closes both connection pools
func (s *SQLiteStore) Close() error {
	readErr := s.readDB.Close()
	writeErr := s.writeDB.Close()
	return stderrors.Join(writeErr, readErr)
}

// Ping checks both pools
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.writeDB.PingContext(ctx); err != nil {
		return errors.NewTransientf("write pool: %w", err)
	}
	if err := s.readDB.PingContext(ctx); err != nil {
		return errors.NewTransientf("read pool: %w", err)
	}
	return nil
}

// storeError classifies a driver error. Lock contention is transient and
// wraps ErrStoreBusy; constraint violations are permanent.
func storeError(op string, err error) error {
	var sqliteErr sqlite3.Error
	if stderrors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return errors.NewTransientf("%s: %w: %w", op, errors.ErrStoreBusy, err)
		case sqlite3.ErrConstraint:
			return errors.NewPermanentf("%s: %w", op, err)
		}
	}
	return errors.NewTransientf("%s: %w", op, err)
}

// Append inserts entry and sets entry.Seq
func (s *SQLiteStore) Append(ctx context.Context, entry *AuditEntry) error {
	refs, err := json.Marshal(nonNil(entry.CodeReferences))
	if err != nil {
		return errors.NewPermanentf("failed to marshal code references: %w", err)
	}

	result, err := s.writeDB.ExecContext(ctx, `
		INSERT INTO audit_entries (
			id, timestamp_ns, action, entity_type, entity_id, user_id, user_name,
			previous_values, new_values, calculation_inputs, calculation_outputs,
			code_references, metadata, previous_checksum, checksum
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID, entry.Timestamp.UTC().UnixNano(), entry.Action, entry.EntityType, entry.EntityID,
		entry.UserID, entry.UserName,
		rawArg(entry.PreviousValues), rawArg(entry.NewValues),
		rawArg(entry.CalculationInputs), rawArg(entry.CalculationOutputs),
		string(refs), rawArg(entry.Metadata), entry.PreviousChecksum, entry.Checksum,
	)
	if err != nil {
		return storeError("failed to insert audit entry", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return errors.NewTransientf("failed to get audit entry sequence: %w", err)
	}
	entry.Seq = seq
	return nil
}

const auditColumns = `seq, id, timestamp_ns, action, entity_type, entity_id, user_id, user_name,
	previous_values, new_values, calculation_inputs, calculation_outputs,
	code_references, metadata, previous_checksum, checksum`

// Query returns entries matching filter
func (s *SQLiteStore) Query(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error) {
	where, args := filterClause(filter)
	query := `SELECT ` + auditColumns + ` FROM audit_entries WHERE 1=1` + where

	if filter.Ascending {
		query += " ORDER BY timestamp_ns ASC, seq ASC"
	} else {
		query += " ORDER BY timestamp_ns DESC, seq DESC"
	}

	// SQLite needs a LIMIT for OFFSET; -1 means no limit
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, max(filter.Offset, 0))
	}

	rows, err := s.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError("failed to query audit entries", err)
	}
	defer rows.Close()

	entries := []*AuditEntry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewTransientf("failed to iterate audit entries: %w", err)
	}
	return entries, nil
}

// Count returns the number of entries matching filter
func (s *SQLiteStore) Count(ctx context.Context, filter AuditFilter) (int, error) {
	where, args := filterClause(filter)
	var total int
	err := s.readDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_entries WHERE 1=1`+where, args...).Scan(&total)
	if err != nil {
		return 0, storeError("failed to count audit entries", err)
	}
	return total, nil
}

// LastForEntity returns the newest entry of an entity, reading through the
// write pool so a caller holding the append lock sees its own writes.
func (s *SQLiteStore) LastForEntity(ctx context.Context, entityType, entityID string) (*AuditEntry, error) {
	row := s.writeDB.QueryRowContext(ctx, `
		SELECT `+auditColumns+`
		FROM audit_entries
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY seq DESC
		LIMIT 1
	`, entityType, entityID)

	entry, err := scanEntry(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Stats summarizes the audit table
func (s *SQLiteStore) Stats(ctx context.Context) (*AuditStats, error) {
	stats := &AuditStats{ByAction: make(map[string]int)}

	var lastNs sql.NullInt64
	err := s.readDB.QueryRowContext(ctx, `
		SELECT COUNT(*),
			(SELECT COUNT(*) FROM (SELECT DISTINCT entity_type, entity_id FROM audit_entries)),
			MAX(timestamp_ns)
		FROM audit_entries
	`).Scan(&stats.TotalEntries, &stats.Entities, &lastNs)
	if err != nil {
		return nil, storeError("failed to query audit stats", err)
	}
	if lastNs.Valid {
		t := time.Unix(0, lastNs.Int64).UTC()
		stats.LastEntryAt = &t
	}

	rows, err := s.readDB.QueryContext(ctx, `SELECT action, COUNT(*) FROM audit_entries GROUP BY action`)
	if err != nil {
		return nil, storeError("failed to query audit actions", err)
	}
	defer rows.Close()
	for rows.Next() {
		var action string
		var n int
		if err := rows.Scan(&action, &n); err != nil {
			return nil, errors.NewTransientf("failed to scan audit action count: %w", err)
		}
		stats.ByAction[action] = n
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewTransientf("failed to iterate audit actions: %w", err)
	}
	return stats, nil
}

// RecordRun upserts a recalculation run
func (s *SQLiteStore) RecordRun(ctx context.Context, run *RecalculationRun) error {
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now

	_, err := s.writeDB.ExecContext(ctx, `
		INSERT INTO recalculation_runs (
			id, inspection_id, source, requested_by, status,
			components, skipped, error_message, created_ns, updated_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			components = excluded.components,
			skipped = excluded.skipped,
			error_message = excluded.error_message,
			updated_ns = excluded.updated_ns
	`,
		run.ID, run.InspectionID, run.Source, run.RequestedBy, string(run.Status),
		run.Components, run.Skipped, run.ErrorMessage,
		run.CreatedAt.UnixNano(), run.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return storeError("failed to record recalculation run", err)
	}
	return nil
}

// ListRuns returns runs newest first
func (s *SQLiteStore) ListRuns(ctx context.Context, inspectionID string, limit int) ([]*RecalculationRun, error) {
	query := `
		SELECT id, inspection_id, source, requested_by, status,
			components, skipped, error_message, created_ns, updated_ns
		FROM recalculation_runs
		WHERE 1=1
	`
	args := []any{}
	if inspectionID != "" {
		query += " AND inspection_id = ?"
		args = append(args, inspectionID)
	}
	query += " ORDER BY created_ns DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError("failed to query recalculation runs", err)
	}
	defer rows.Close()

	runs := []*RecalculationRun{}
	for rows.Next() {
		var run RecalculationRun
		var status string
		var createdNs, updatedNs int64
		if err := rows.Scan(&run.ID, &run.InspectionID, &run.Source, &run.RequestedBy, &status,
			&run.Components, &run.Skipped, &run.ErrorMessage, &createdNs, &updatedNs); err != nil {
			return nil, errors.NewTransientf("failed to scan recalculation run: %w", err)
		}
		run.Status = RunStatus(status)
		run.CreatedAt = time.Unix(0, createdNs).UTC()
		run.UpdatedAt = time.Unix(0, updatedNs).UTC()
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewTransientf("failed to iterate recalculation runs: %w", err)
	}
	return runs, nil
}

func filterClause(filter AuditFilter) (string, []any) {
	var where string
	args := []any{}

	if filter.EntityType != "" {
		where += " AND entity_type = ?"
		args = append(args, filter.EntityType)
	}
	if filter.EntityID != "" {
		where += " AND entity_id = ?"
		args = append(args, filter.EntityID)
	}
	if filter.Action != "" {
		where += " AND action = ?"
		args = append(args, filter.Action)
	}
	if filter.UserID != "" {
		where += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.From != nil {
		where += " AND timestamp_ns >= ?"
		args = append(args, filter.From.UTC().UnixNano())
	}
	if filter.To != nil {
		where += " AND timestamp_ns <= ?"
		args = append(args, filter.To.UTC().UnixNano())
	}
	return where, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*AuditEntry, error) {
	var entry AuditEntry
	var ts int64
	var prev, next, inputs, outputs, metadata sql.NullString
	var refs string

	err := row.Scan(
		&entry.Seq, &entry.ID, &ts, &entry.Action, &entry.EntityType, &entry.EntityID,
		&entry.UserID, &entry.UserName,
		&prev, &next, &inputs, &outputs,
		&refs, &metadata, &entry.PreviousChecksum, &entry.Checksum,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, errors.NewTransientf("failed to scan audit entry: %w", err)
	}

	entry.Timestamp = time.Unix(0, ts).UTC()
	entry.PreviousValues = rawValue(prev)
	entry.NewValues = rawValue(next)
	entry.CalculationInputs = rawValue(inputs)
	entry.CalculationOutputs = rawValue(outputs)
	entry.Metadata = rawValue(metadata)
	if err := json.Unmarshal([]byte(refs), &entry.CodeReferences); err != nil {
		return nil, errors.NewPermanentf("failed to unmarshal code references of %s: %w", entry.ID, err)
	}
	return &entry, nil
}

func rawArg(r json.RawMessage) any {
	if r == nil {
		return nil
	}
	return string(r)
}

func rawValue(s sql.NullString) json.RawMessage {
	if !s.Valid {
		return nil
	}
	return json.RawMessage(s.String)
}

func nonNil(refs []string) []string {
	if refs == nil {
		return []string{}
	}
	return refs
}
