package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/uptrace/bun/driver/pgdriver"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsTable = "kv_migrations"

// NewPostgres opens a connection pool for dsn and applies pending migrations.
func NewPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithTimeout(5*time.Second),
	))

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	n, err := applyMigrations(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Info("postgres migrations applied", "count", n)

	return db, nil
}

func applyMigrations(db *sql.DB) (int, error) {
	migrate.SetTable(migrationsTable)

	source := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrationsFS,
		Root:       "migrations",
	}

	n, err := migrate.Exec(db, "postgres", source, migrate.Up)
	if err != nil {
		return 0, fmt.Errorf("applying migrations: %w", err)
	}
	return n, nil
}
