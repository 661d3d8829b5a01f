package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// ClickHouseDB wraps a ClickHouse connection for beacon history.
type ClickHouseDB struct {
	conn driver.Conn
}

// OpenClickHouse opens a connection to ClickHouse.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	// Test the connection.
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Close closes the ClickHouse connection.
func (d *ClickHouseDB) Close() error {
	return d.conn.Close()
}

// CreateSchema creates the ClickHouse tables.
func (d *ClickHouseDB) CreateSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS beacons (
			timestamp       DateTime('UTC'),
			beacon_type     LowCardinality(String),
			source_id       String,
			address         String,
			address_type    LowCardinality(String),
			aircraft_type   LowCardinality(String),
			receiver        LowCardinality(String),
			lat             Float64,
			lon             Float64,
			alt             Float32,
			track           UInt16,
			ground_speed    Float32,
			climb_rate      Float32,
			signal_strength Float32,
			session_id      String,
			created_at      DateTime64(3) DEFAULT now64(3)
		)
		ENGINE = MergeTree()
		PARTITION BY toYYYYMM(timestamp)
		ORDER BY (beacon_type, source_id, timestamp)
		SETTINGS index_granularity = 8192`,
	}

	for _, q := range queries {
		if err := d.conn.Exec(ctx, q); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	// Skip index for address lookups (ignore error if already exists).
	_ = d.conn.Exec(ctx, `ALTER TABLE beacons ADD INDEX IF NOT EXISTS idx_address_bloom address TYPE bloom_filter GRANULARITY 4`)

	return nil
}

// InsertBatch stores beacon rows in one round trip.
func (d *ClickHouseDB) InsertBatch(ctx context.Context, sessionID string, rows []BeaconRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := d.conn.PrepareBatch(ctx, `
		INSERT INTO beacons (timestamp, beacon_type, source_id, address, address_type, aircraft_type, receiver, lat, lon, alt, track, ground_speed, climb_rate, signal_strength, session_id)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		err = batch.Append(r.Timestamp, r.BeaconType, r.SourceID, r.Address, r.AddressType, r.AircraftType, r.Receiver,
			r.Lat, r.Lon, float32(r.Alt), uint16(r.Track), float32(r.GroundSpeed), float32(r.ClimbRate), float32(r.SignalStrength), sessionID)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// CHQueryParams contains filtering options for the beacon history.
type CHQueryParams struct {
	BeaconType string
	SourceID   string
	Address    string
	Receiver   string
	Since      time.Time
	Limit      int
	OrderDesc  bool
}

// Query retrieves beacon rows matching the given parameters, ordered by time.
func (d *ClickHouseDB) Query(ctx context.Context, p CHQueryParams) ([]BeaconRow, error) {
	var conditions []string
	var args []interface{}

	if p.BeaconType != "" {
		conditions = append(conditions, "beacon_type = ?")
		args = append(args, p.BeaconType)
	}
	if p.SourceID != "" {
		conditions = append(conditions, "source_id = ?")
		args = append(args, p.SourceID)
	}
	if p.Address != "" {
		conditions = append(conditions, "address = ?")
		args = append(args, strings.ToUpper(p.Address))
	}
	if p.Receiver != "" {
		conditions = append(conditions, "receiver = ?")
		args = append(args, p.Receiver)
	}
	if !p.Since.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, p.Since.UTC())
	}

	query := `SELECT timestamp, beacon_type, source_id, address, address_type, aircraft_type, receiver, lat, lon, alt, track, ground_speed, climb_rate, signal_strength FROM beacons`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	direction := "ASC"
	if p.OrderDesc {
		direction = "DESC"
	}
	limit := 100
	if p.Limit > 0 {
		limit = p.Limit
	}
	query += fmt.Sprintf(" ORDER BY timestamp %s LIMIT %d", direction, limit)

	rows, err := d.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query beacons: %w", err)
	}
	defer rows.Close()

	var out []BeaconRow
	for rows.Next() {
		var r BeaconRow
		var alt, speed, climb, signal float32
		var track uint16
		err := rows.Scan(&r.Timestamp, &r.BeaconType, &r.SourceID, &r.Address, &r.AddressType, &r.AircraftType, &r.Receiver,
			&r.Lat, &r.Lon, &alt, &track, &speed, &climb, &signal)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Alt, r.Track, r.GroundSpeed, r.ClimbRate, r.SignalStrength = float64(alt), int(track), float64(speed), float64(climb), float64(signal)
		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return out, nil
}

// Count returns the total number of beacons, optionally filtered by type.
func (d *ClickHouseDB) Count(ctx context.Context, beaconType string) (uint64, error) {
	var count uint64
	var err error
	if beaconType != "" {
		row := d.conn.QueryRow(ctx, "SELECT count() FROM beacons WHERE beacon_type = ?", beaconType)
		err = row.Scan(&count)
	} else {
		row := d.conn.QueryRow(ctx, "SELECT count() FROM beacons")
		err = row.Scan(&count)
	}
	return count, err
}

// CountByType returns beacon counts grouped by beacon type.
func (d *ClickHouseDB) CountByType(ctx context.Context) (map[string]uint64, error) {
	counts := make(map[string]uint64)
	rows, err := d.conn.Query(ctx, "SELECT beacon_type, count() FROM beacons GROUP BY beacon_type")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var typ string
		var count uint64
		if err := rows.Scan(&typ, &count); err != nil {
			return nil, fmt.Errorf("scan count by type: %w", err)
		}
		counts[typ] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate count by type: %w", err)
	}
	return counts, nil
}

// HistoryStats summarises the beacon history table.
type HistoryStats struct {
	Total     uint64            `json:"total"`
	ByType    map[string]uint64 `json:"by_type"`
	Receivers []string          `json:"receivers"`
}

// GetHistoryStats counts the stored beacons per type and lists the receivers
// that relayed them.
func (d *ClickHouseDB) GetHistoryStats(ctx context.Context) (*HistoryStats, error) {
	total, err := d.Count(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("count beacons: %w", err)
	}
	byType, err := d.CountByType(ctx)
	if err != nil {
		return nil, fmt.Errorf("count beacons by type: %w", err)
	}
	receivers, err := d.Distinct(ctx, "receiver")
	if err != nil {
		return nil, fmt.Errorf("list receivers: %w", err)
	}
	return &HistoryStats{Total: total, ByType: byType, Receivers: receivers}, nil
}

// Distinct returns distinct values for a given column.
func (d *ClickHouseDB) Distinct(ctx context.Context, column string) ([]string, error) {
	// Validate column name to prevent SQL injection.
	validColumns := map[string]bool{
		"beacon_type":   true,
		"source_id":     true,
		"address":       true,
		"receiver":      true,
		"aircraft_type": true,
	}
	if !validColumns[column] {
		return nil, fmt.Errorf("invalid column: %s", column)
	}

	query := fmt.Sprintf("SELECT DISTINCT %s FROM beacons WHERE %s != '' ORDER BY %s", column, column, column)
	rows, err := d.conn.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan distinct value: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate distinct values: %w", err)
	}
	return values, nil
}
