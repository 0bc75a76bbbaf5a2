package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var schemaStatements = []string{
	`
	CREATE TABLE IF NOT EXISTS technicians (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		name TEXT NOT NULL
	);
	`,
	`
	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		name TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		lon DOUBLE PRECISION,
		lat DOUBLE PRECISION
	);
	`,
	`
	CREATE TABLE IF NOT EXISTS routes (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		technician_id TEXT REFERENCES technicians(id),
		day_of_week TEXT NOT NULL
	);
	`,
	// Positions are unique per route, checked at commit so a renumbering
	// can pass through transient duplicates.
	`
	CREATE TABLE IF NOT EXISTS route_stops (
		id TEXT PRIMARY KEY,
		route_id TEXT NOT NULL REFERENCES routes(id),
		client_id TEXT NOT NULL REFERENCES clients(id),
		order_index INTEGER NOT NULL CHECK (order_index >= 0),
		estimated_minutes INTEGER NOT NULL DEFAULT 30,
		custom_instructions TEXT,
		lon DOUBLE PRECISION,
		lat DOUBLE PRECISION,
		CONSTRAINT route_stops_route_order_key UNIQUE (route_id, order_index)
			DEFERRABLE INITIALLY DEFERRED
	);
	`,
	`
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		client_id TEXT NOT NULL REFERENCES clients(id),
		kind TEXT NOT NULL,
		scheduled_date DATE NOT NULL,
		status TEXT NOT NULL,
		notes TEXT,
		estimated_minutes INTEGER NOT NULL DEFAULT 0
	);
	`,
	`
	CREATE TABLE IF NOT EXISTS maintenance_assignments (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		job_id TEXT NOT NULL REFERENCES jobs(id),
		route_id TEXT NOT NULL REFERENCES routes(id),
		route_stop_id TEXT NOT NULL REFERENCES route_stops(id),
		date DATE NOT NULL,
		status TEXT NOT NULL,
		CONSTRAINT maintenance_assignments_job_date_key UNIQUE (job_id, date)
	);
	`,
	`
	CREATE TABLE IF NOT EXISTS directions_leg_cache (
		cache_key TEXT PRIMARY KEY,
		duration_seconds INTEGER NOT NULL,
		duration_text TEXT NOT NULL,
		distance_meters INTEGER NOT NULL,
		distance_text TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	`,
	`CREATE INDEX IF NOT EXISTS idx_routes_org_day ON routes(organization_id, day_of_week);`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_org_date ON jobs(organization_id, scheduled_date);`,
	`CREATE INDEX IF NOT EXISTS idx_assignments_org_date ON maintenance_assignments(organization_id, date);`,
	`CREATE INDEX IF NOT EXISTS idx_assignments_stop ON maintenance_assignments(route_stop_id);`,
}

// Initialize the Postgres database schema.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

// Populate the database with dispatch reference data from a JSON file.
func SeedFromJSON(ctx context.Context, db *sql.DB, jsonPath string) error {
	data, err := LoadSeedFile(jsonPath)
	if err != nil {
		return err
	}
	return NewPostgresDispatchRepository(db).Seed(ctx, data)
}
