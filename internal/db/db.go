// Package db opens the application database. Production deployments point
// PHOTOLOG_DB_HOST at PostgreSQL and run the migrations under migrations/;
// development and tests use a SQLite file carrying the embedded schema.
package db

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"photolog/internal/config"
)

//go:embed schema.sql
var schemaFS embed.FS

// Open connects to the configured backend and returns a ready database
// handle. For PostgreSQL, migrationsPath points at the migrations directory;
// pass "" to skip migrations.
func Open(cfg config.DBConfig, migrationsPath string) (*sqlx.DB, error) {
	if cfg.Host == "" {
		return openSQLite(cfg.Path)
	}
	return openPostgres(cfg, migrationsPath)
}

func openSQLite(path string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, err
	}
	sqlBytes, err := fs.ReadFile(schemaFS, "schema.sql")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(string(sqlBytes)); err != nil {
		return nil, err
	}
	return db, nil
}

func openPostgres(cfg config.DBConfig, migrationsPath string) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if migrationsPath != "" {
		if err := runMigrations(dsn, migrationsPath); err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

func runMigrations(dsn, path string) error {
	m, err := migrate.New("file://"+path, dsn)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Reset restores the benchmark baseline: rows above the seed id ranges are
// dropped and the deterministic ban pattern (every 50th user) is reapplied.
func Reset(db *sqlx.DB) error {
	stmts := []string{
		`DELETE FROM users WHERE id > 1000`,
		`DELETE FROM posts WHERE id > 10000`,
		`DELETE FROM comments WHERE id > 100000`,
		`UPDATE users SET del_flg = 0`,
		`UPDATE users SET del_flg = 1 WHERE id % 50 = 0`,
	}
	for _, q := range stmts {
		if _, err := db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}
