package storage

import (
	"fmt"
	"sort"
	"strings"
)

// Default per-category tables created by the bundled migrations.
var defaultCategories = []string{"sports", "technology", "health", "politics"}

type dialect struct {
	name        string
	idColumn    string
	quote       func(string) string
	placeholder func(n int) string
}

var postgresDialect = dialect{
	name:        DriverPostgres,
	idColumn:    "id BIGSERIAL PRIMARY KEY",
	quote:       func(s string) string { return `"` + s + `"` },
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
}

var sqliteDialect = dialect{
	name:        DriverSQLite,
	idColumn:    "id INTEGER PRIMARY KEY AUTOINCREMENT",
	quote:       func(s string) string { return `"` + s + `"` },
	placeholder: func(int) string { return "?" },
}

func (d dialect) createTable(spec TableSpec) string {
	cols := []string{d.idColumn}
	for _, c := range spec.Kind.Columns() {
		cols = append(cols, d.quote(c)+" TEXT NOT NULL DEFAULT ''")
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.quote(spec.Name), strings.Join(cols, ", "))
}

// insert builds an INSERT for row with columns in sorted order.
func (d dialect) insert(table string, row map[string]any) (string, []any, error) {
	if err := validIdent(table); err != nil {
		return "", nil, err
	}
	if len(row) == 0 {
		return "", nil, fmt.Errorf("insert into %s: empty row", table)
	}

	columns := make([]string, 0, len(row))
	for c := range row {
		columns = append(columns, c)
	}
	sort.Strings(columns)
	if err := validColumns(columns); err != nil {
		return "", nil, err
	}

	quoted := make([]string, len(columns))
	holders := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, c := range columns {
		quoted[i] = d.quote(c)
		holders[i] = d.placeholder(i + 1)
		args[i] = row[c]
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.quote(table), strings.Join(quoted, ", "), strings.Join(holders, ", "))
	return query, args, nil
}

// selectRows builds a SELECT over columns in insertion order. No columns selects everything.
func (d dialect) selectRows(table string, columns []string, limit int) (string, []any, error) {
	if err := validIdent(table); err != nil {
		return "", nil, err
	}
	if err := validColumns(columns); err != nil {
		return "", nil, err
	}

	projection := "*"
	if len(columns) > 0 {
		quoted := make([]string, len(columns))
		for i, c := range columns {
			quoted[i] = d.quote(c)
		}
		projection = strings.Join(quoted, ", ")
	}

	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY id", projection, d.quote(table))
	if limit > 0 {
		return query + " LIMIT " + d.placeholder(1), []any{limit}, nil
	}
	return query, nil, nil
}

// tablesToCreate returns the specs that still need a CREATE TABLE. With
// migrations applied, the default category tables already exist.
func tablesToCreate(specs []TableSpec, migrated bool) []TableSpec {
	if !migrated {
		return specs
	}
	known := make(map[string]struct{}, len(defaultCategories)*2)
	for _, c := range defaultCategories {
		known[c+"_articles"] = struct{}{}
		known[c+"_summary"] = struct{}{}
	}
	var out []TableSpec
	for _, s := range specs {
		if _, ok := known[s.Name]; !ok {
			out = append(out, s)
		}
	}
	return out
}

func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
