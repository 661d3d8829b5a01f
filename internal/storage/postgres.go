package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ogn_parser/internal/ddb"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// ConnString returns the pgx connection URL.
func (c PostgresConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// PostgresDB wraps a PostgreSQL connection pool for state storage.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a connection pool to PostgreSQL.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresDB, error) {
	return OpenPostgresURL(ctx, cfg.ConnString())
}

// OpenPostgresURL opens a connection pool from a connection string.
func OpenPostgresURL(ctx context.Context, connStr string) (*PostgresDB, error) {
	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	// Test the connection.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Close closes the PostgreSQL connection pool.
func (d *PostgresDB) Close() {
	d.pool.Close()
}

// Pool returns the underlying connection pool for advanced operations.
func (d *PostgresDB) Pool() *pgxpool.Pool {
	return d.pool
}

// CreateSchema creates the PostgreSQL tables.
func (d *PostgresDB) CreateSchema(ctx context.Context) error {
	schema := `
	-- Reference data: device database mirror
	CREATE TABLE IF NOT EXISTS descriptors (
		address         TEXT PRIMARY KEY,
		device_type     TEXT NOT NULL DEFAULT '',
		model           TEXT NOT NULL DEFAULT '',
		registration    TEXT NOT NULL DEFAULT '',
		cn              TEXT NOT NULL DEFAULT '',
		tracked         BOOLEAN NOT NULL DEFAULT TRUE,
		identified      BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_descriptors_registration ON descriptors(registration);

	-- Operational: latest state per receiving station
	CREATE TABLE IF NOT EXISTS receivers (
		name                        TEXT PRIMARY KEY,
		server_name                 TEXT,
		latitude                    DOUBLE PRECISION,
		longitude                   DOUBLE PRECISION,
		altitude                    DOUBLE PRECISION,
		version                     TEXT,
		platform                    TEXT,
		cpu_load                    DOUBLE PRECISION,
		free_ram                    DOUBLE PRECISION,
		total_ram                   DOUBLE PRECISION,
		cpu_temp                    DOUBLE PRECISION,
		rec_crystal_correction      INTEGER,
		rec_crystal_correction_fine DOUBLE PRECISION,
		rec_input_noise             DOUBLE PRECISION,
		aircrafts_received          INTEGER,
		aircrafts_visible           INTEGER,
		last_position               TIMESTAMPTZ,
		last_status                 TIMESTAMPTZ,
		first_seen                  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		msg_count                   INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_receivers_last_status ON receivers(last_status);

	-- Operational: latest sighting per aircraft
	CREATE TABLE IF NOT EXISTS aircraft_sightings (
		address         TEXT PRIMARY KEY,
		source_id       TEXT NOT NULL,
		address_type    TEXT,
		aircraft_type   TEXT,
		registration    TEXT,
		cn              TEXT,
		model           TEXT,
		log_file_id     TEXT,
		receiver        TEXT,
		latitude        DOUBLE PRECISION,
		longitude       DOUBLE PRECISION,
		altitude        DOUBLE PRECISION,
		track           INTEGER,
		ground_speed    DOUBLE PRECISION,
		climb_rate      DOUBLE PRECISION,
		first_seen      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_seen       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		msg_count       INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_sightings_last_seen ON aircraft_sightings(last_seen);
	CREATE INDEX IF NOT EXISTS idx_sightings_registration ON aircraft_sightings(registration);
	`

	if _, err := d.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// UpsertDescriptor inserts or updates a device database entry.
func (d *PostgresDB) UpsertDescriptor(ctx context.Context, desc ddb.Descriptor) error {
	_, err := d.pool.Exec(ctx, upsertDescriptorSQL,
		desc.Address, desc.DeviceType, desc.Model, desc.Registration, desc.CN, desc.Tracked, desc.Identified)
	return err
}

const upsertDescriptorSQL = `
	INSERT INTO descriptors (address, device_type, model, registration, cn, tracked, identified, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	ON CONFLICT (address) DO UPDATE SET
		device_type = EXCLUDED.device_type,
		model = EXCLUDED.model,
		registration = EXCLUDED.registration,
		cn = EXCLUDED.cn,
		tracked = EXCLUDED.tracked,
		identified = EXCLUDED.identified,
		updated_at = EXCLUDED.updated_at
`

// SyncDescriptors upserts descs in one transaction and returns how many were
// written.
func (d *PostgresDB) SyncDescriptors(ctx context.Context, descs []ddb.Descriptor) (int, error) {
	if len(descs) == 0 {
		return 0, nil
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, desc := range descs {
		batch.Queue(upsertDescriptorSQL,
			desc.Address, desc.DeviceType, desc.Model, desc.Registration, desc.CN, desc.Tracked, desc.Identified)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("sync descriptors: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(descs), nil
}

// GetDescriptor retrieves a descriptor by address.
func (d *PostgresDB) GetDescriptor(ctx context.Context, address string) (*ddb.Descriptor, error) {
	var desc ddb.Descriptor
	err := d.pool.QueryRow(ctx, `
		SELECT address, device_type, model, registration, cn, tracked, identified
		FROM descriptors WHERE address = $1
	`, ddb.NormaliseAddress(address)).Scan(&desc.Address, &desc.DeviceType, &desc.Model, &desc.Registration, &desc.CN, &desc.Tracked, &desc.Identified)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &desc, nil
}

// ListDescriptors returns every descriptor.
func (d *PostgresDB) ListDescriptors(ctx context.Context) ([]ddb.Descriptor, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT address, device_type, model, registration, cn, tracked, identified
		FROM descriptors
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ddb.Descriptor
	for rows.Next() {
		var desc ddb.Descriptor
		if err := rows.Scan(&desc.Address, &desc.DeviceType, &desc.Model, &desc.Registration, &desc.CN, &desc.Tracked, &desc.Identified); err != nil {
			return nil, err
		}
		out = append(out, desc)
	}
	return out, rows.Err()
}

// ReceiverState is the latest known state of a receiving station. Nil pointer
// fields leave the stored value unchanged.
type ReceiverState struct {
	Name       string    `json:"name"`
	ServerName string    `json:"server_name,omitempty"`
	SeenAt     time.Time `json:"-"`

	// Set by position beacons.
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Altitude  *float64 `json:"altitude,omitempty"`

	// Set by status beacons.
	Version                  *string  `json:"version,omitempty"`
	Platform                 *string  `json:"platform,omitempty"`
	CPULoad                  *float64 `json:"cpu_load,omitempty"`
	FreeRAM                  *float64 `json:"free_ram,omitempty"`
	TotalRAM                 *float64 `json:"total_ram,omitempty"`
	CPUTemp                  *float64 `json:"cpu_temp,omitempty"`
	RecCrystalCorrection     *int     `json:"rec_crystal_correction,omitempty"`
	RecCrystalCorrectionFine *float64 `json:"rec_crystal_correction_fine,omitempty"`
	RecInputNoise            *float64 `json:"rec_input_noise,omitempty"`
	AircraftsReceived        *int     `json:"aircrafts_received,omitempty"`
	AircraftsVisible         *int     `json:"aircrafts_visible,omitempty"`

	LastPosition *time.Time `json:"last_position,omitempty"`
	LastStatus   *time.Time `json:"last_status,omitempty"`
	FirstSeen    time.Time  `json:"first_seen"`
	MsgCount     int        `json:"msg_count"`
}

// UpsertReceiver merges a receiver update into the stored state.
func (d *PostgresDB) UpsertReceiver(ctx context.Context, r ReceiverState) error {
	var lastPosition, lastStatus *time.Time
	if r.Latitude != nil {
		lastPosition = &r.SeenAt
	}
	if r.Version != nil || r.CPULoad != nil || r.RecInputNoise != nil {
		lastStatus = &r.SeenAt
	}

	_, err := d.pool.Exec(ctx, `
		INSERT INTO receivers (name, server_name, latitude, longitude, altitude, version, platform, cpu_load, free_ram, total_ram, cpu_temp,
			rec_crystal_correction, rec_crystal_correction_fine, rec_input_noise, aircrafts_received, aircrafts_visible,
			last_position, last_status, first_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (name) DO UPDATE SET
			server_name = COALESCE(EXCLUDED.server_name, receivers.server_name),
			latitude = COALESCE(EXCLUDED.latitude, receivers.latitude),
			longitude = COALESCE(EXCLUDED.longitude, receivers.longitude),
			altitude = COALESCE(EXCLUDED.altitude, receivers.altitude),
			version = COALESCE(EXCLUDED.version, receivers.version),
			platform = COALESCE(EXCLUDED.platform, receivers.platform),
			cpu_load = COALESCE(EXCLUDED.cpu_load, receivers.cpu_load),
			free_ram = COALESCE(EXCLUDED.free_ram, receivers.free_ram),
			total_ram = COALESCE(EXCLUDED.total_ram, receivers.total_ram),
			cpu_temp = COALESCE(EXCLUDED.cpu_temp, receivers.cpu_temp),
			rec_crystal_correction = COALESCE(EXCLUDED.rec_crystal_correction, receivers.rec_crystal_correction),
			rec_crystal_correction_fine = COALESCE(EXCLUDED.rec_crystal_correction_fine, receivers.rec_crystal_correction_fine),
			rec_input_noise = COALESCE(EXCLUDED.rec_input_noise, receivers.rec_input_noise),
			aircrafts_received = COALESCE(EXCLUDED.aircrafts_received, receivers.aircrafts_received),
			aircrafts_visible = COALESCE(EXCLUDED.aircrafts_visible, receivers.aircrafts_visible),
			last_position = COALESCE(EXCLUDED.last_position, receivers.last_position),
			last_status = COALESCE(EXCLUDED.last_status, receivers.last_status),
			msg_count = receivers.msg_count + 1
	`, r.Name, nullIfEmpty(r.ServerName), r.Latitude, r.Longitude, r.Altitude, r.Version, r.Platform, r.CPULoad, r.FreeRAM, r.TotalRAM, r.CPUTemp,
		r.RecCrystalCorrection, r.RecCrystalCorrectionFine, r.RecInputNoise, r.AircraftsReceived, r.AircraftsVisible,
		lastPosition, lastStatus, r.SeenAt)
	return err
}

// GetReceiver retrieves a receiver by name.
func (d *PostgresDB) GetReceiver(ctx context.Context, name string) (*ReceiverState, error) {
	var r ReceiverState
	var serverName *string
	err := d.pool.QueryRow(ctx, `
		SELECT name, server_name, latitude, longitude, altitude, version, platform, cpu_load, free_ram, total_ram, cpu_temp,
			rec_crystal_correction, rec_crystal_correction_fine, rec_input_noise, aircrafts_received, aircrafts_visible,
			last_position, last_status, first_seen, msg_count
		FROM receivers WHERE name = $1
	`, name).Scan(&r.Name, &serverName, &r.Latitude, &r.Longitude, &r.Altitude, &r.Version, &r.Platform, &r.CPULoad, &r.FreeRAM, &r.TotalRAM, &r.CPUTemp,
		&r.RecCrystalCorrection, &r.RecCrystalCorrectionFine, &r.RecInputNoise, &r.AircraftsReceived, &r.AircraftsVisible,
		&r.LastPosition, &r.LastStatus, &r.FirstSeen, &r.MsgCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if serverName != nil {
		r.ServerName = *serverName
	}
	return &r, nil
}

// AircraftSighting is the latest enriched position of an aircraft.
type AircraftSighting struct {
	Address      string     `json:"address"`
	SourceID     string     `json:"source_id"`
	AddressType  string     `json:"address_type"`
	AircraftType string     `json:"aircraft_type"`
	Registration string     `json:"registration,omitempty"`
	CN           string     `json:"cn,omitempty"`
	Model        string     `json:"model,omitempty"`
	LogFileID    string     `json:"log_file_id"`
	Receiver     string     `json:"receiver"`
	Latitude     float64    `json:"latitude"`
	Longitude    float64    `json:"longitude"`
	Altitude     float64    `json:"altitude"`
	Track        int        `json:"track"`
	GroundSpeed  float64    `json:"ground_speed"`
	ClimbRate    float64    `json:"climb_rate"`
	SeenAt       time.Time  `json:"seen_at"`
	FirstSeen    *time.Time `json:"first_seen,omitempty"`
	MsgCount     int        `json:"msg_count,omitempty"`
}

// UpsertSighting inserts or updates the latest sighting of an aircraft.
func (d *PostgresDB) UpsertSighting(ctx context.Context, s AircraftSighting) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO aircraft_sightings (address, source_id, address_type, aircraft_type, registration, cn, model, log_file_id, receiver,
			latitude, longitude, altitude, track, ground_speed, climb_rate, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16)
		ON CONFLICT (address) DO UPDATE SET
			source_id = EXCLUDED.source_id,
			address_type = EXCLUDED.address_type,
			aircraft_type = EXCLUDED.aircraft_type,
			registration = COALESCE(EXCLUDED.registration, aircraft_sightings.registration),
			cn = COALESCE(EXCLUDED.cn, aircraft_sightings.cn),
			model = COALESCE(EXCLUDED.model, aircraft_sightings.model),
			log_file_id = EXCLUDED.log_file_id,
			receiver = EXCLUDED.receiver,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			altitude = EXCLUDED.altitude,
			track = EXCLUDED.track,
			ground_speed = EXCLUDED.ground_speed,
			climb_rate = EXCLUDED.climb_rate,
			last_seen = GREATEST(EXCLUDED.last_seen, aircraft_sightings.last_seen),
			msg_count = aircraft_sightings.msg_count + 1
	`, s.Address, s.SourceID, s.AddressType, s.AircraftType, nullIfEmpty(s.Registration), nullIfEmpty(s.CN), nullIfEmpty(s.Model), s.LogFileID, s.Receiver,
		s.Latitude, s.Longitude, s.Altitude, s.Track, s.GroundSpeed, s.ClimbRate, s.SeenAt)
	return err
}

// GetSighting retrieves the latest sighting of an aircraft.
func (d *PostgresDB) GetSighting(ctx context.Context, address string) (*AircraftSighting, error) {
	var s AircraftSighting
	var reg, cn, model *string
	var firstSeen time.Time
	err := d.pool.QueryRow(ctx, `
		SELECT address, source_id, address_type, aircraft_type, registration, cn, model, log_file_id, receiver,
			latitude, longitude, altitude, track, ground_speed, climb_rate, first_seen, last_seen, msg_count
		FROM aircraft_sightings WHERE address = $1
	`, ddb.NormaliseAddress(address)).Scan(&s.Address, &s.SourceID, &s.AddressType, &s.AircraftType, &reg, &cn, &model, &s.LogFileID, &s.Receiver,
		&s.Latitude, &s.Longitude, &s.Altitude, &s.Track, &s.GroundSpeed, &s.ClimbRate, &firstSeen, &s.SeenAt, &s.MsgCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Registration, s.CN, s.Model = deref(reg), deref(cn), deref(model)
	s.FirstSeen = &firstSeen
	return &s, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
