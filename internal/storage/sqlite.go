// Package storage provides persistent storage for decoded OGN beacons.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ArchivedBeacon is one archived feed line with its decode outcome.
type ArchivedBeacon struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	ReceivedAt time.Time `json:"received_at"`
	Timestamp  time.Time `json:"timestamp,omitempty"`
	BeaconType string    `json:"beacon_type,omitempty"`
	SourceID   string    `json:"source_id,omitempty"`
	Address    string    `json:"address,omitempty"`
	Receiver   string    `json:"receiver,omitempty"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	Alt        float64   `json:"alt"`
	RawLine    string    `json:"raw_line"`
	BeaconJSON string    `json:"-"`
	ErrorKind  string    `json:"error_kind,omitempty"`
}

// SQLiteDB is a local beacon archive.
type SQLiteDB struct {
	db *sql.DB
}

// OpenSQLite opens or creates a SQLite archive at the given path.
func OpenSQLite(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Pipeline workers insert concurrently; SQLite allows one writer.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent access.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := createSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

// NewSQLite wraps an existing connection whose schema is already in place.
func NewSQLite(db *sql.DB) *SQLiteDB {
	return &SQLiteDB{db: db}
}

// Close closes the database connection.
func (d *SQLiteDB) Close() error {
	return d.db.Close()
}

func createSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS beacons (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		received_at TEXT NOT NULL,
		timestamp TEXT,
		beacon_type TEXT NOT NULL DEFAULT '',
		source_id TEXT NOT NULL DEFAULT '',
		address TEXT,
		receiver TEXT,
		lat REAL,
		lon REAL,
		alt REAL,
		raw_line TEXT NOT NULL,
		beacon_json TEXT,
		error_kind TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_beacons_type ON beacons(beacon_type);
	CREATE INDEX IF NOT EXISTS idx_beacons_source ON beacons(source_id);
	CREATE INDEX IF NOT EXISTS idx_beacons_address ON beacons(address);
	CREATE INDEX IF NOT EXISTS idx_beacons_timestamp ON beacons(timestamp);
	CREATE INDEX IF NOT EXISTS idx_beacons_session ON beacons(session_id);

	-- FTS5 virtual table for full-text search on raw lines.
	CREATE VIRTUAL TABLE IF NOT EXISTS beacons_fts USING fts5(
		raw_line,
		content='beacons',
		content_rowid='id'
	);

	CREATE TRIGGER IF NOT EXISTS beacons_ai AFTER INSERT ON beacons BEGIN
		INSERT INTO beacons_fts(rowid, raw_line) VALUES (new.id, new.raw_line);
	END;

	CREATE TRIGGER IF NOT EXISTS beacons_ad AFTER DELETE ON beacons BEGIN
		INSERT INTO beacons_fts(beacons_fts, rowid, raw_line) VALUES('delete', old.id, old.raw_line);
	END;
	`

	if _, err := db.Exec(schema); err != nil {
		return err
	}
	return migrateSQLiteSchema(db)
}

// migrateSQLiteSchema adds columns introduced after the first release.
func migrateSQLiteSchema(db *sql.DB) error {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('beacons') WHERE name='error_kind'`).Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if _, err := db.Exec(`ALTER TABLE beacons ADD COLUMN error_kind TEXT`); err != nil {
		// Ignore "duplicate column" errors for idempotency.
		if !strings.Contains(err.Error(), "duplicate column") {
			return err
		}
	}
	return nil
}

// InsertParams contains the parameters for archiving one line.
type InsertParams struct {
	SessionID  string
	ReceivedAt time.Time
	RawLine    string
	Row        *BeaconRow  // Nil when the line failed to decode.
	Beacon     interface{} // Marshalled into beacon_json.
	ErrorKind  string
}

// Insert archives one line and returns its row id.
func (d *SQLiteDB) Insert(p InsertParams) (int64, error) {
	var beaconJSON sql.NullString
	if p.Beacon != nil {
		data, err := json.Marshal(p.Beacon)
		if err != nil {
			return 0, fmt.Errorf("marshal beacon: %w", err)
		}
		beaconJSON = sql.NullString{String: string(data), Valid: true}
	}

	var (
		ts                sql.NullString
		typ, src          string
		address, receiver sql.NullString
		lat, lon, alt     sql.NullFloat64
	)
	if r := p.Row; r != nil {
		ts = sql.NullString{String: r.Timestamp.UTC().Format(time.RFC3339), Valid: true}
		typ, src = r.BeaconType, r.SourceID
		address = nullString(r.Address)
		receiver = nullString(r.Receiver)
		lat = sql.NullFloat64{Float64: r.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: r.Lon, Valid: true}
		alt = sql.NullFloat64{Float64: r.Alt, Valid: true}
	}

	result, err := d.db.Exec(`
		INSERT INTO beacons (session_id, received_at, timestamp, beacon_type, source_id, address, receiver, lat, lon, alt, raw_line, beacon_json, error_kind)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.SessionID, p.ReceivedAt.UTC().Format(time.RFC3339Nano), ts, typ, src, address, receiver, lat, lon, alt,
		p.RawLine, beaconJSON, nullString(p.ErrorKind))
	if err != nil {
		return 0, fmt.Errorf("insert beacon: %w", err)
	}

	return result.LastInsertId()
}

// QueryParams contains filtering options for querying the archive.
type QueryParams struct {
	ID         int64  // Filter by row id.
	BeaconType string // Filter by beacon type (exact match).
	SourceID   string // Filter by source id (LIKE match).
	Address    string // Filter by aircraft address (exact match).
	Receiver   string // Filter by receiver name (exact match).
	SessionID  string // Filter by ingest session.
	ErrorKind  string // Filter by failure kind (exact match).
	Failed     bool   // Only lines that failed to decode.
	FullText   string // FTS5 full-text search on raw_line.
	Limit      int    // Max results (default 100).
	Offset     int    // Pagination offset.
	OrderBy    string // Sort field (timestamp, received_at, beacon_type, source_id).
	OrderDesc  bool   // Sort descending.
}

const archiveColumns = `id, session_id, received_at, timestamp, beacon_type, source_id,
	address, receiver, lat, lon, alt, raw_line, beacon_json, error_kind`

// Query retrieves archived lines matching the given parameters.
func (d *SQLiteDB) Query(p QueryParams) ([]ArchivedBeacon, error) {
	var conditions []string
	var args []interface{}

	if p.ID != 0 {
		conditions = append(conditions, "id = ?")
		args = append(args, p.ID)
	}
	if p.BeaconType != "" {
		conditions = append(conditions, "beacon_type = ?")
		args = append(args, p.BeaconType)
	}
	if p.SourceID != "" {
		conditions = append(conditions, "source_id LIKE ?")
		args = append(args, "%"+p.SourceID+"%")
	}
	if p.Address != "" {
		conditions = append(conditions, "address = ?")
		args = append(args, strings.ToUpper(p.Address))
	}
	if p.Receiver != "" {
		conditions = append(conditions, "receiver = ?")
		args = append(args, p.Receiver)
	}
	if p.SessionID != "" {
		conditions = append(conditions, "session_id = ?")
		args = append(args, p.SessionID)
	}
	if p.ErrorKind != "" {
		conditions = append(conditions, "error_kind = ?")
		args = append(args, p.ErrorKind)
	}
	if p.Failed {
		conditions = append(conditions, "error_kind IS NOT NULL AND error_kind != ''")
	}

	var query string
	if p.FullText != "" {
		query = `SELECT ` + archiveColumns + `
				FROM beacons
				WHERE id IN (SELECT rowid FROM beacons_fts WHERE beacons_fts MATCH ?)`
		args = append([]interface{}{p.FullText}, args...)
		if len(conditions) > 0 {
			query += " AND " + strings.Join(conditions, " AND ")
		}
	} else {
		query = `SELECT ` + archiveColumns + ` FROM beacons`
		if len(conditions) > 0 {
			query += " WHERE " + strings.Join(conditions, " AND ")
		}
	}

	orderField := "id"
	switch p.OrderBy {
	case "timestamp", "received_at", "beacon_type", "source_id":
		orderField = p.OrderBy
	}
	direction := "ASC"
	if p.OrderDesc {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", orderField, direction)

	limit := 100
	if p.Limit > 0 {
		limit = p.Limit
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, p.Offset)

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query beacons: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ArchivedBeacon
	for rows.Next() {
		b, err := scanArchived(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArchived(s rowScanner) (ArchivedBeacon, error) {
	var b ArchivedBeacon
	var received string
	var ts, address, receiver, beaconJSON, errKind sql.NullString
	var lat, lon, alt sql.NullFloat64

	err := s.Scan(&b.ID, &b.SessionID, &received, &ts, &b.BeaconType, &b.SourceID,
		&address, &receiver, &lat, &lon, &alt, &b.RawLine, &beaconJSON, &errKind)
	if err != nil {
		return b, err
	}

	b.ReceivedAt, _ = time.Parse(time.RFC3339Nano, received)
	if ts.Valid {
		b.Timestamp, _ = time.Parse(time.RFC3339, ts.String)
	}
	b.Address = address.String
	b.Receiver = receiver.String
	b.Lat, b.Lon, b.Alt = lat.Float64, lon.Float64, alt.Float64
	b.BeaconJSON = beaconJSON.String
	b.ErrorKind = errKind.String
	return b, nil
}

// Stats returns aggregate statistics about the archive.
type Stats struct {
	TotalLines  int            `json:"total_lines"`
	ByType      map[string]int `json:"by_type"`
	ByErrorKind map[string]int `json:"by_error_kind"`
	TopSources  map[string]int `json:"top_sources"`
}

// GetStats returns statistics about the archived lines.
func (d *SQLiteDB) GetStats() (*Stats, error) {
	stats := &Stats{
		ByType:      make(map[string]int),
		ByErrorKind: make(map[string]int),
		TopSources:  make(map[string]int),
	}

	if err := d.db.QueryRow("SELECT COUNT(*) FROM beacons").Scan(&stats.TotalLines); err != nil {
		return nil, err
	}

	groups := []struct {
		query string
		into  map[string]int
	}{
		{"SELECT beacon_type, COUNT(*) FROM beacons WHERE beacon_type != '' GROUP BY beacon_type", stats.ByType},
		{"SELECT error_kind, COUNT(*) FROM beacons WHERE error_kind IS NOT NULL AND error_kind != '' GROUP BY error_kind", stats.ByErrorKind},
		{"SELECT source_id, COUNT(*) FROM beacons WHERE source_id != '' GROUP BY source_id ORDER BY COUNT(*) DESC LIMIT 20", stats.TopSources},
	}
	for _, g := range groups {
		if err := d.countInto(g.query, g.into); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

func (d *SQLiteDB) countInto(query string, into map[string]int) error {
	rows, err := d.db.Query(query)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		into[key] = count
	}
	return rows.Err()
}

// Distinct returns distinct values for a given column.
func (d *SQLiteDB) Distinct(column string) ([]string, error) {
	// Validate column name to prevent SQL injection.
	validColumns := map[string]bool{
		"beacon_type": true,
		"source_id":   true,
		"address":     true,
		"receiver":    true,
		"session_id":  true,
		"error_kind":  true,
	}
	if !validColumns[column] {
		return nil, fmt.Errorf("invalid column: %s", column)
	}

	query := fmt.Sprintf("SELECT DISTINCT %s FROM beacons WHERE %s IS NOT NULL AND %s != '' ORDER BY %s", column, column, column, column)
	rows, err := d.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// GetByID retrieves a single archived line by row id.
func (d *SQLiteDB) GetByID(id int64) (*ArchivedBeacon, error) {
	row := d.db.QueryRow(`SELECT `+archiveColumns+` FROM beacons WHERE id = ?`, id)
	b, err := scanArchived(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CountByType returns archived beacon counts grouped by beacon type.
func (d *SQLiteDB) CountByType() (map[string]int, error) {
	counts := make(map[string]int)
	if err := d.countInto("SELECT beacon_type, COUNT(*) FROM beacons WHERE beacon_type != '' GROUP BY beacon_type", counts); err != nil {
		return nil, err
	}
	return counts, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
