package database

import (
	"database/sql"
	"fmt"
	"log"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered, embedded schema history. The schema is small
// enough that external migration tooling is not worth carrying.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_positions",
		SQL: `
			CREATE TABLE IF NOT EXISTS positions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				latitude REAL NOT NULL,
				longitude REAL NOT NULL,
				timestamp INTEGER NOT NULL,
				accuracy REAL NOT NULL,
				speed REAL NOT NULL DEFAULT 0,
				altitude REAL NOT NULL DEFAULT 0,
				bearing REAL NOT NULL DEFAULT 0,
				activity TEXT NOT NULL DEFAULT '',
				created_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
			);
			CREATE INDEX IF NOT EXISTS idx_positions_timestamp ON positions(timestamp);
		`,
	},
	{
		Version: 2,
		Name:    "create_places",
		SQL: `
			CREATE TABLE IF NOT EXISTS places (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				latitude REAL NOT NULL,
				longitude REAL NOT NULL,
				radius_meters REAL NOT NULL,
				category TEXT NOT NULL DEFAULT 'UNKNOWN',
				name TEXT NOT NULL DEFAULT '',
				address TEXT NOT NULL DEFAULT '',
				visit_count INTEGER NOT NULL DEFAULT 0,
				total_time_seconds INTEGER NOT NULL DEFAULT 0,
				last_visit_time INTEGER NOT NULL DEFAULT 0,
				confidence REAL NOT NULL DEFAULT 0,
				created_at INTEGER NOT NULL DEFAULT (strftime('%s','now')),
				updated_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
			);
		`,
	},
	{
		Version: 3,
		Name:    "create_visits",
		SQL: `
			CREATE TABLE IF NOT EXISTS visits (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				place_id INTEGER NOT NULL REFERENCES places(id) ON DELETE CASCADE,
				entry_time INTEGER NOT NULL,
				exit_time INTEGER,
				duration_seconds INTEGER NOT NULL DEFAULT 0,
				confidence REAL NOT NULL DEFAULT 0,
				created_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
			);
			CREATE INDEX IF NOT EXISTS idx_visits_place ON visits(place_id);
			CREATE INDEX IF NOT EXISTS idx_visits_entry ON visits(entry_time);
			CREATE INDEX IF NOT EXISTS idx_visits_open ON visits(exit_time) WHERE exit_time IS NULL;
		`,
	},
	{
		Version: 4,
		Name:    "create_current_state",
		SQL: `
			CREATE TABLE IF NOT EXISTS current_state (
				id INTEGER PRIMARY KEY CHECK (id = 1),
				tracking_active INTEGER NOT NULL DEFAULT 0,
				tracking_start INTEGER NOT NULL DEFAULT 0,
				current_place_id INTEGER NOT NULL DEFAULT 0,
				current_visit_id INTEGER NOT NULL DEFAULT 0,
				visit_entry_time INTEGER NOT NULL DEFAULT 0,
				today_location_count INTEGER NOT NULL DEFAULT 0,
				today_place_count INTEGER NOT NULL DEFAULT 0,
				today_time_seconds INTEGER NOT NULL DEFAULT 0,
				stats_day TEXT NOT NULL DEFAULT '',
				last_updated INTEGER NOT NULL DEFAULT 0
			);
		`,
	},
}

// RunMigrations applies all pending migrations.
func RunMigrations(db *sql.DB) error {
	if err := initMigrationsTable(db); err != nil {
		return err
	}

	applied, err := appliedMigrations(db)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if applied[migration.Version] {
			continue
		}
		if err := applyMigration(db, migration); err != nil {
			return err
		}
	}

	log.Println("All migrations applied successfully")
	return nil
}

func initMigrationsTable(db *sql.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

func appliedMigrations(db *sql.DB) (map[int]bool, error) {
	rows, err := db.Query("SELECT version FROM migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}

	return applied, nil
}

func applyMigration(db *sql.DB, migration Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.Exec(migration.SQL); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
	}

	if _, err := tx.Exec("INSERT INTO migrations (version, name) VALUES (?, ?)", migration.Version, migration.Name); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
	}

	log.Printf("Applied migration %d: %s", migration.Version, migration.Name)
	return nil
}
