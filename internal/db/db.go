package db

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

var Pool *pgxpool.Pool

// Migrator is implemented by each repository that owns tables.
type Migrator interface {
	RunMigrations(ctx context.Context) error
}

func InitPostgres(ctx context.Context, dsn string) {
	if dsn == "" {
		log.Println("DATABASE_URL not set, skipping Postgres connection")
		return
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatalf("failed to connect to Postgres: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("failed to ping Postgres: %v", err)
	}
	Pool = pool
	log.Println("Connected to Postgres")
}

// Migrate runs migrations in order and stops at the first failure.
func Migrate(ctx context.Context, migrators ...Migrator) error {
	for i, m := range migrators {
		if err := m.RunMigrations(ctx); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
