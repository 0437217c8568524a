// Package storage persists article and summary rows into per-category tables.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Supported drivers.
const (
	DriverBolt     = "bolt"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverSupabase = "supabase"
)

// ErrInvalidTable is returned for table or column names that are not plain identifiers.
var ErrInvalidTable = errors.New("invalid table or column name")

// Sink accepts rows for a named table.
type Sink interface {
	Insert(ctx context.Context, table string, row map[string]any) error
}

// Reader returns up to limit rows of a table, in insertion order, projected onto columns.
type Reader interface {
	Select(ctx context.Context, table string, columns []string, limit int) ([]map[string]any, error)
}

// Store is a Sink and Reader backed by a closable connection.
type Store interface {
	Sink
	Reader
	Close() error
}

// Kind describes the row shape a table holds.
type Kind int

const (
	KindArticles Kind = iota
	KindSummary
)

// Columns lists the text columns of a table kind.
func (k Kind) Columns() []string {
	if k == KindSummary {
		return []string{"date", "summary", "news_title", "news_url"}
	}
	return []string{"date", "title", "content", "news_url"}
}

// TableSpec names a table the store must be able to write.
type TableSpec struct {
	Name string
	Kind Kind
}

// Config selects and configures a driver.
type Config struct {
	Driver      string
	Path        string // bolt and sqlite file
	DSN         string // postgres
	SupabaseURL string
	SupabaseKey string
	Migrate     bool
	Tables      []TableSpec
}

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func validIdent(name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidTable, name)
	}
	return nil
}

func validColumns(columns []string) error {
	for _, c := range columns {
		if err := validIdent(c); err != nil {
			return err
		}
	}
	return nil
}

// project keeps only the requested columns of row. No columns keeps everything.
func project(row map[string]any, columns []string) map[string]any {
	if len(columns) == 0 {
		return row
	}
	out := make(map[string]any, len(columns))
	for _, c := range columns {
		if v, ok := row[c]; ok {
			out[c] = v
		}
	}
	return out
}

// Open builds the store for cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	for _, t := range cfg.Tables {
		if err := validIdent(t.Name); err != nil {
			return nil, err
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverBolt:
		return OpenBolt(cfg.Path)
	case DriverSQLite:
		return OpenSQLite(ctx, cfg.Path, cfg.Migrate, cfg.Tables)
	case DriverPostgres:
		return OpenPostgres(ctx, cfg.DSN, cfg.Migrate, cfg.Tables)
	case DriverSupabase:
		return NewSupabase(cfg.SupabaseURL, cfg.SupabaseKey, nil)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}
