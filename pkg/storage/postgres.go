package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

// PostgresStore writes rows through a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn, optionally applies migrations, and creates any
// configured tables the migrations do not cover.
func OpenPostgres(ctx context.Context, dsn string, runMigrations bool, tables []TableSpec) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if runMigrations {
		if err := s.migrate(); err != nil {
			pool.Close()
			return nil, err
		}
	}
	for _, spec := range tablesToCreate(tables, runMigrations) {
		if _, err := pool.Exec(ctx, postgresDialect.createTable(spec)); err != nil {
			pool.Close()
			return nil, fmt.Errorf("create table %s: %w", spec.Name, err)
		}
	}
	return s, nil
}

func (s *PostgresStore) migrate() error {
	db := stdlib.OpenDBFromPool(s.pool)

	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return fmt.Errorf("failed to create pgx migrate driver: %w", err)
	}
	source, err := iofs.New(postgresMigrations, "migrations/postgres")
	if err != nil {
		_ = driver.Close()
		return fmt.Errorf("failed to create iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "pgx5", driver)
	if err != nil {
		_ = source.Close()
		_ = driver.Close()
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return upAndClose(m)
}

// migrator is the part of *migrate.Migrate used to apply migrations.
type migrator interface {
	Up() error
	Close() (source error, database error)
}

// upAndClose applies pending migrations and then releases the migration
// source and the database/sql wrapper. The pgx pool itself stays open.
func upAndClose(m migrator) error {
	upErr := m.Up()
	srcErr, dbErr := m.Close()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", upErr)
	}
	if srcErr != nil {
		return fmt.Errorf("close migration source: %w", srcErr)
	}
	if dbErr != nil {
		return fmt.Errorf("close migration database: %w", dbErr)
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, table string, row map[string]any) error {
	query, args, err := postgresDialect.insert(table, row)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

func (s *PostgresStore) Select(ctx context.Context, table string, columns []string, limit int) ([]map[string]any, error) {
	query, args, err := postgresDialect.selectRows(table, columns, limit)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select from %s: %w", table, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read %s row: %w", table, err)
		}
		row := make(map[string]any, len(values))
		for i, v := range values {
			row[fields[i].Name] = normalizeValue(v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", table, err)
	}
	return out, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
