package storage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/golang-migrate/migrate/v4"
)

func articleRow(title string) map[string]any {
	return map[string]any{
		"date":     "2024-05-01",
		"title":    title,
		"content":  "body of " + title,
		"news_url": "https://news.example.com/" + title,
	}
}

func TestBoltInsertAndSelect(t *testing.T) {
	store, err := OpenBolt(filepath.Join(t.TempDir(), "khobor.db"))
	if err != nil {
		t.Fatalf("OpenBolt: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	for _, title := range []string{"a", "b", "c"} {
		if err := store.Insert(ctx, "sports_articles", articleRow(title)); err != nil {
			t.Fatalf("Insert(%s): %v", title, err)
		}
	}

	rows, err := store.Select(ctx, "sports_articles", []string{"content", "title"}, 2)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0]["title"] != "a" || rows[1]["title"] != "b" {
		t.Errorf("rows out of insertion order: %v", rows)
	}
	if _, ok := rows[0]["news_url"]; ok {
		t.Errorf("projection leaked news_url: %v", rows[0])
	}

	empty, err := store.Select(ctx, "health_articles", nil, 5)
	if err != nil || len(empty) != 0 {
		t.Errorf("missing table should read as empty, got %v, %v", empty, err)
	}
}

func TestBoltConcurrentInserts(t *testing.T) {
	store, err := OpenBolt(filepath.Join(t.TempDir(), "khobor.db"))
	if err != nil {
		t.Fatalf("OpenBolt: %v", err)
	}
	defer store.Close()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.Insert(context.Background(), "tech_summary", map[string]any{"summary": "x"}); err != nil {
				t.Errorf("Insert: %v", err)
			}
		}()
	}
	wg.Wait()

	rows, err := store.Select(context.Background(), "tech_summary", nil, 0)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(rows) != 20 {
		t.Errorf("expected 20 rows, got %d", len(rows))
	}
}

func TestRejectsUnsafeNames(t *testing.T) {
	store, err := OpenBolt(filepath.Join(t.TempDir(), "khobor.db"))
	if err != nil {
		t.Fatalf("OpenBolt: %v", err)
	}
	defer store.Close()

	if err := store.Insert(context.Background(), "sports; drop table x", articleRow("a")); !errors.Is(err, ErrInvalidTable) {
		t.Errorf("expected ErrInvalidTable, got %v", err)
	}
	if _, _, err := postgresDialect.insert("sports_articles", map[string]any{"title\"": "x"}); !errors.Is(err, ErrInvalidTable) {
		t.Errorf("expected ErrInvalidTable for column, got %v", err)
	}
}

func TestDialectStatements(t *testing.T) {
	query, args, err := postgresDialect.insert("sports_articles", articleRow("a"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	want := `INSERT INTO "sports_articles" ("content", "date", "news_url", "title") VALUES ($1, $2, $3, $4)`
	if query != want {
		t.Errorf("query = %s", query)
	}
	if len(args) != 4 || args[1] != "2024-05-01" {
		t.Errorf("args = %v", args)
	}

	sel, selArgs, err := sqliteDialect.selectRows("sports_articles", []string{"content", "title"}, 5)
	if err != nil {
		t.Fatalf("selectRows: %v", err)
	}
	if sel != `SELECT "content", "title" FROM "sports_articles" ORDER BY id LIMIT ?` || selArgs[0] != 5 {
		t.Errorf("select = %s %v", sel, selArgs)
	}

	ddl := sqliteDialect.createTable(TableSpec{Name: "science_summary", Kind: KindSummary})
	if ddl != `CREATE TABLE IF NOT EXISTS "science_summary" (id INTEGER PRIMARY KEY AUTOINCREMENT, "date" TEXT NOT NULL DEFAULT '', "summary" TEXT NOT NULL DEFAULT '', "news_title" TEXT NOT NULL DEFAULT '', "news_url" TEXT NOT NULL DEFAULT '')` {
		t.Errorf("ddl = %s", ddl)
	}
}

func TestTablesToCreate(t *testing.T) {
	specs := []TableSpec{{Name: "sports_articles"}, {Name: "science_articles"}}
	if got := tablesToCreate(specs, true); len(got) != 1 || got[0].Name != "science_articles" {
		t.Errorf("migrated = %v", got)
	}
	if got := tablesToCreate(specs, false); len(got) != 2 {
		t.Errorf("unmigrated = %v", got)
	}
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "khobor.sqlite"), true, []TableSpec{
		{Name: "science_articles", Kind: KindArticles},
	})
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer store.Close()

	for _, table := range []string{"politics_articles", "science_articles"} {
		if err := store.Insert(ctx, table, articleRow("first")); err != nil {
			t.Fatalf("Insert(%s): %v", table, err)
		}
		if err := store.Insert(ctx, table, articleRow("second")); err != nil {
			t.Fatalf("Insert(%s): %v", table, err)
		}
		rows, err := store.Select(ctx, table, []string{"title"}, 1)
		if err != nil {
			t.Fatalf("Select(%s): %v", table, err)
		}
		if len(rows) != 1 || rows[0]["title"] != "first" {
			t.Errorf("%s rows = %v", table, rows)
		}
	}
}

func TestSupabaseStore(t *testing.T) {
	var mu sync.Mutex
	var inserted []map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != "anon" || r.Header.Get("Authorization") != "Bearer anon" {
			t.Errorf("missing auth headers: %v", r.Header)
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/rest/v1/sports_articles":
			var row map[string]any
			_ = json.NewDecoder(r.Body).Decode(&row)
			mu.Lock()
			inserted = append(inserted, row)
			mu.Unlock()
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodGet && r.URL.Path == "/rest/v1/sports_articles":
			if r.URL.Query().Get("select") != "content,title" || r.URL.Query().Get("limit") != "5" {
				t.Errorf("unexpected query: %s", r.URL.RawQuery)
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[{"content":"c1","title":"t1"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"relation does not exist"}`))
		}
	}))
	defer srv.Close()

	store, err := NewSupabase(srv.URL+"/", "anon", nil)
	if err != nil {
		t.Fatalf("NewSupabase: %v", err)
	}
	ctx := context.Background()

	if err := store.Insert(ctx, "sports_articles", articleRow("a")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if len(inserted) != 1 || inserted[0]["title"] != "a" {
		t.Errorf("inserted = %v", inserted)
	}

	rows, err := store.Select(ctx, "sports_articles", []string{"content", "title"}, 5)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(rows) != 1 || rows[0]["content"] != "c1" {
		t.Errorf("rows = %v", rows)
	}

	if err := store.Insert(ctx, "crypto_articles", articleRow("b")); err == nil {
		t.Error("expected error for 404")
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Config{Driver: "mongo"}); err == nil {
		t.Fatal("expected error")
	}
	if _, err := Open(context.Background(), Config{Driver: DriverBolt, Tables: []TableSpec{{Name: "Bad-Name"}}}); !errors.Is(err, ErrInvalidTable) {
		t.Fatalf("expected ErrInvalidTable, got %v", err)
	}
}

type fakeMigrator struct {
	upErr  error
	dbErr  error
	closed bool
}

func (f *fakeMigrator) Up() error { return f.upErr }

func (f *fakeMigrator) Close() (error, error) {
	f.closed = true
	return nil, f.dbErr
}

func TestUpAndCloseReleasesMigrator(t *testing.T) {
	tests := []struct {
		name    string
		m       *fakeMigrator
		wantErr bool
	}{
		{name: "applied", m: &fakeMigrator{}},
		{name: "no change", m: &fakeMigrator{upErr: migrate.ErrNoChange}},
		{name: "up fails", m: &fakeMigrator{upErr: errors.New("dirty")}, wantErr: true},
		{name: "close fails", m: &fakeMigrator{dbErr: errors.New("busy")}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := upAndClose(tt.m)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.m.closed {
				t.Error("migrator was not closed")
			}
		})
	}
}
