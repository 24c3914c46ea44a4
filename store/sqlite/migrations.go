// Package sqlite - database migrations
package sqlite

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a single database migration. Migrations must be
// idempotent: they run once and are recorded, but a re-run must not corrupt
// an already-migrated database.
type Migration struct {
	Name string
	Func func(*sql.DB) error
}

// migrationsList is the ordered list of all migrations to run during
// database initialization.
var migrationsList = []Migration{
	{"call_logs_quality_score", migrateCallLogQualityScore},
	{"prompts_category_index", migratePromptsCategoryIndex},
}

// RunMigrations is exposed for the seed tool; Open calls it automatically.
func RunMigrations(db *sql.DB) error {
	return runMigrations(db)
}

// runMigrations executes all registered migrations in order, inside an
// EXCLUSIVE transaction so parallel processes opening the same database
// cannot race on check-then-modify operations.
func runMigrations(db *sql.DB) error {
	if _, err := db.Exec("BEGIN EXCLUSIVE"); err != nil {
		return fmt.Errorf("acquire exclusive lock for migrations: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_, _ = db.Exec("ROLLBACK")
		}
	}()

	for _, migration := range migrationsList {
		applied, err := migrationApplied(db, migration.Name)
		if err != nil {
			return err
		}
		if applied {
			continue
		}
		if err := migration.Func(db); err != nil {
			return fmt.Errorf("migration %s failed: %w", migration.Name, err)
		}
		if _, err := db.Exec(
			`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`,
			migration.Name, fmtTime(time.Now()),
		); err != nil {
			return fmt.Errorf("record migration %s: %w", migration.Name, err)
		}
	}

	if _, err := db.Exec("COMMIT"); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	committed = true
	return nil
}

func migrationApplied(db *sql.DB, name string) (bool, error) {
	var found string
	err := db.QueryRow(`SELECT name FROM schema_migrations WHERE name = ?`, name).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check migration %s: %w", name, err)
	}
	return true, nil
}

// migrateCallLogQualityScore adds the quality_score column to call_logs.
// Databases created before scoring existed lack it.
func migrateCallLogQualityScore(db *sql.DB) error {
	var colName string
	err := db.QueryRow(`
		SELECT name FROM pragma_table_info('call_logs')
		WHERE name = 'quality_score'
	`).Scan(&colName)

	if err == sql.ErrNoRows {
		if _, err := db.Exec(`ALTER TABLE call_logs ADD COLUMN quality_score REAL`); err != nil {
			return fmt.Errorf("add quality_score column: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("check quality_score column: %w", err)
	}
	return nil
}

// migratePromptsCategoryIndex adds the category lookup index for filtered
// prompt listings.
func migratePromptsCategoryIndex(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_prompts_category
		ON prompts(category) WHERE deleted_at IS NULL
	`)
	if err != nil {
		return fmt.Errorf("create category index: %w", err)
	}
	return nil
}
