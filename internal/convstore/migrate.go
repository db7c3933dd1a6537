package convstore

import (
	"database/sql"
	"embed"
	"fmt"
	"io"

	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/localmind/cortex/internal/logging"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// applyMigrations walks the embedded migration set with golang-migrate's
// source.Driver (the same iofs/file abstraction vanducng-goclaw drives its
// Postgres migrator with) and executes each "up" script in version order
// against db. golang-migrate ships no SQLite database driver compatible with
// modernc.org/sqlite's pure-Go connection, so the source reader is reused
// without a matching migrate.Migrate database driver: we step the iofs
// driver ourselves and Exec each script directly.
func applyMigrations(db *sql.DB) error {
	if err := ensureMigrationsTable(db); err != nil {
		return err
	}

	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	defer src.Close()

	version, err := src.First()
	if err == io.EOF || isNoMoreFiles(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read first migration: %w", err)
	}

	for {
		applied, err := migrationApplied(db, version)
		if err != nil {
			return err
		}
		if !applied {
			if err := runMigration(db, src, version); err != nil {
				return err
			}
		}

		next, err := src.Next(version)
		if isNoMoreFiles(err) {
			break
		}
		if err != nil {
			return fmt.Errorf("read next migration after %d: %w", version, err)
		}
		version = next
	}
	return nil
}

func runMigration(db *sql.DB, src source.Driver, version uint) error {
	rc, identifier, err := src.ReadUp(version)
	if err != nil {
		return fmt.Errorf("read migration %d: %w", version, err)
	}
	defer rc.Close()

	body, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("read migration %d body: %w", version, err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(string(body)); err != nil {
		tx.Rollback()
		return fmt.Errorf("apply migration %d (%s): %w", version, identifier, err)
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	logging.Info().Uint("version", version).Str("name", identifier).Msg("applied migration")
	return nil
}

func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`)
	return err
}

func migrationApplied(db *sql.DB, version uint) (bool, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// isNoMoreFiles reports whether err is golang-migrate's source.ErrNoMoreFiles,
// its standard iteration-done sentinel.
func isNoMoreFiles(err error) bool {
	return err == source.ErrNoMoreFiles
}
