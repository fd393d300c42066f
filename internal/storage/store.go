package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	_ "github.com/glebarez/go-sqlite"
	"github.com/goccy/go-json"

	"shift_processor/internal/domain"
)

const catalogKeysKey = "catalog.keys"

// AuditKind labels a shift audit row.
type AuditKind string

const (
	AuditCreated          AuditKind = "created"
	AuditIntegrityFailure AuditKind = "integrity_failure"
	AuditCancelled        AuditKind = "cancelled"
)

// AuditEntry is one row of the shift audit trail.
type AuditEntry struct {
	ID      int64
	ShiftID string
	Kind    AuditKind
	Ts      int64
	Payload []byte
}

// Store is the SQLite metadata store: catalog identity set, per-coin records
// and the shift audit trail. It is never on the critical path of a payment.
type Store struct {
	db *sql.DB
}

// Open creates a new SQLite store with WAL mode enabled.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// single writer; pragmas below then hold for every statement
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;", // 2MB cache
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS coins (
			key TEXT PRIMARY KEY COLLATE NOCASE,
			payload BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS shift_audit (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			shift_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			ts INTEGER NOT NULL,
			payload BLOB NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_shift_audit_shift ON shift_audit(shift_id);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// UpsertMetadata saves a key-value pair to the metadata table.
func (s *Store) UpsertMetadata(ctx context.Context, key, value string, ts int64) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at",
		key, value, ts,
	)
	return err
}

// GetMetadata retrieves a value from the metadata table.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// LoadCatalogKeys returns the coin-network keys persisted by the last refresh.
// An empty store returns nil.
func (s *Store) LoadCatalogKeys(ctx context.Context) ([]string, error) {
	raw, err := s.GetMetadata(ctx, catalogKeysKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog keys: %w", err)
	}
	if raw == "" {
		return nil, nil
	}
	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, fmt.Errorf("malformed catalog keys: %w", err)
	}
	return keys, nil
}

// SaveCatalogKeys replaces the persisted key set.
func (s *Store) SaveCatalogKeys(ctx context.Context, keys []string, ts int64) error {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	payload, err := json.Marshal(sorted)
	if err != nil {
		return fmt.Errorf("failed to marshal catalog keys: %w", err)
	}
	if err := s.UpsertMetadata(ctx, catalogKeysKey, string(payload), ts); err != nil {
		return fmt.Errorf("failed to save catalog keys: %w", err)
	}
	return nil
}

// UpsertCoinInfo stores the record of one coin-network, keeping its creation time.
func (s *Store) UpsertCoinInfo(ctx context.Context, info domain.CoinInfo) error {
	if prev, ok, err := s.GetCoinInfo(ctx, info.Key); err != nil {
		return err
	} else if ok && prev.CreatedAtUnixM != 0 {
		info.CreatedAtUnixM = prev.CreatedAtUnixM
	}
	if info.CreatedAtUnixM == 0 {
		info.CreatedAtUnixM = info.UpdatedAtUnixM
	}

	payload, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal coin info: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO coins (key, payload, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET payload=excluded.payload, updated_at=excluded.updated_at",
		info.Key, payload, info.UpdatedAtUnixM,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert coin %s: %w", info.Key, err)
	}
	return nil
}

// GetCoinInfo loads one coin-network record. Lookup is case-insensitive.
func (s *Store) GetCoinInfo(ctx context.Context, key string) (domain.CoinInfo, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM coins WHERE key = ?", key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CoinInfo{}, false, nil
	}
	if err != nil {
		return domain.CoinInfo{}, false, fmt.Errorf("failed to load coin %s: %w", key, err)
	}
	var info domain.CoinInfo
	if err := json.Unmarshal(payload, &info); err != nil {
		return domain.CoinInfo{}, false, fmt.Errorf("malformed coin %s: %w", key, err)
	}
	return info, true, nil
}

// RecordShift appends a created shift to the audit trail.
func (s *Store) RecordShift(ctx context.Context, shift domain.Shift, ts int64) error {
	return s.appendAudit(ctx, shift.ID, AuditCreated, ts, shift)
}

// RecordIntegrityFailure appends a rejected shift together with the mismatch.
func (s *Store) RecordIntegrityFailure(ctx context.Context, shift domain.Shift, mismatch domain.Mismatch, ts int64) error {
	payload := struct {
		Shift    domain.Shift    `json:"shift"`
		Mismatch domain.Mismatch `json:"mismatch"`
	}{shift, mismatch}
	return s.appendAudit(ctx, shift.ID, AuditIntegrityFailure, ts, payload)
}

// RecordCancel appends a cancellation of shiftID.
func (s *Store) RecordCancel(ctx context.Context, shiftID string, ts int64) error {
	return s.appendAudit(ctx, shiftID, AuditCancelled, ts, map[string]string{"shiftId": shiftID})
}

// LoadAudit returns the audit rows of one shift, oldest first.
func (s *Store) LoadAudit(ctx context.Context, shiftID string) ([]AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, shift_id, kind, ts, payload FROM shift_audit WHERE shift_id = ? ORDER BY id ASC",
		shiftID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var kind string
		if err := rows.Scan(&e.ID, &e.ShiftID, &kind, &e.Ts, &e.Payload); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		e.Kind = AuditKind(kind)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return entries, nil
}

func (s *Store) appendAudit(ctx context.Context, shiftID string, kind AuditKind, ts int64, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal audit payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO shift_audit (shift_id, kind, ts, payload) VALUES (?, ?, ?, ?)",
		shiftID, string(kind), ts, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit row: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
