package store

import (
	"context"
	"fmt"
)

// Statements are run one at a time because the pgx extended protocol
// rejects multi-statement strings.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS leads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		first_name TEXT,
		last_name TEXT,
		phone TEXT,
		email TEXT,
		chat_logs TEXT,
		created_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS buyers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		first_name TEXT,
		last_name TEXT,
		phone_number TEXT,
		created_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS cars (
		id INTEGER PRIMARY KEY,
		vin TEXT,
		year INTEGER,
		make TEXT,
		model TEXT,
		trim TEXT,
		mileage INTEGER,
		interior_condition TEXT,
		exterior_condition TEXT,
		seller_ask_cents INTEGER,
		buyer_offer_cents INTEGER,
		created_at TEXT,
		lead_id INTEGER REFERENCES leads(id)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_cars_vin_unique ON cars(vin)`,
	`CREATE TABLE IF NOT EXISTS lead_buyer_map (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		lead_id INTEGER REFERENCES leads(id),
		buyer_id INTEGER REFERENCES buyers(id)
	)`,
	`CREATE TABLE IF NOT EXISTS pickup (
		pick_up_id INTEGER PRIMARY KEY,
		car_id INTEGER REFERENCES cars(id),
		address TEXT,
		contact_phone TEXT,
		pick_up_info TEXT,
		created_at TEXT,
		dropoff_time TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS buyer_schedule (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		buyer_id INTEGER NOT NULL,
		description TEXT NOT NULL,
		schedule_time TEXT NOT NULL,
		priority TEXT CHECK (priority IN ('Low', 'Medium', 'High')) DEFAULT 'Medium'
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS leads (
		id SERIAL PRIMARY KEY,
		first_name TEXT,
		last_name TEXT,
		phone TEXT,
		email TEXT,
		chat_logs TEXT,
		created_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS buyers (
		id SERIAL PRIMARY KEY,
		first_name TEXT,
		last_name TEXT,
		phone_number TEXT,
		created_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS cars (
		id INTEGER PRIMARY KEY,
		vin TEXT,
		year INTEGER,
		make TEXT,
		model TEXT,
		trim TEXT,
		mileage INTEGER,
		interior_condition TEXT,
		exterior_condition TEXT,
		seller_ask_cents INTEGER,
		buyer_offer_cents INTEGER,
		created_at TEXT,
		lead_id INTEGER REFERENCES leads(id)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_cars_vin_unique ON cars(vin)`,
	`CREATE TABLE IF NOT EXISTS lead_buyer_map (
		id SERIAL PRIMARY KEY,
		lead_id INTEGER REFERENCES leads(id),
		buyer_id INTEGER REFERENCES buyers(id)
	)`,
	`CREATE TABLE IF NOT EXISTS pickup (
		pick_up_id INTEGER PRIMARY KEY,
		car_id INTEGER REFERENCES cars(id),
		address TEXT,
		contact_phone TEXT,
		pick_up_info TEXT,
		created_at TEXT,
		dropoff_time TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS buyer_schedule (
		id SERIAL PRIMARY KEY,
		buyer_id INTEGER NOT NULL,
		description TEXT NOT NULL,
		schedule_time TEXT NOT NULL,
		priority TEXT CHECK (priority IN ('Low', 'Medium', 'High')) DEFAULT 'Medium'
	)`,
}

// Tables in reverse dependency order so drops do not trip foreign keys.
var dropOrder = []string{"buyer_schedule", "pickup", "lead_buyer_map", "cars", "buyers", "leads"}

// EnsureSchema creates all tables and indexes if they do not exist.
func (d *DB) EnsureSchema(ctx context.Context) error {
	stmts := sqliteSchema
	if d.flavor == FlavorPostgres {
		stmts = postgresSchema
	}
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// DropSchema removes all tables. Used by the migration command when
// rebuilding the target database.
func (d *DB) DropSchema(ctx context.Context) error {
	for _, table := range dropOrder {
		stmt := "DROP TABLE IF EXISTS " + table
		if d.flavor == FlavorPostgres {
			stmt += " CASCADE"
		}
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("drop table %s: %w", table, err)
		}
	}
	return nil
}
