package storage

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// SupabaseStore writes rows through the Supabase PostgREST API.
type SupabaseStore struct {
	rc      *resty.Client
	baseURL string
}

// NewSupabase builds a store for the project at baseURL. A nil client gets a default one.
func NewSupabase(baseURL, apiKey string, rc *resty.Client) (*SupabaseStore, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("supabase url is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("supabase key is required")
	}
	if rc == nil {
		rc = resty.New().SetTimeout(15 * time.Second)
	}
	rc.SetHeader("apikey", apiKey).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json")
	return &SupabaseStore{rc: rc, baseURL: baseURL}, nil
}

func (s *SupabaseStore) tableURL(table string) string {
	return s.baseURL + "/rest/v1/" + table
}

func (s *SupabaseStore) Insert(ctx context.Context, table string, row map[string]any) error {
	if err := validIdent(table); err != nil {
		return err
	}
	resp, err := s.rc.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=minimal").
		SetBody(row).
		Post(s.tableURL(table))
	if err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	if resp.StatusCode() != http.StatusCreated && resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusNoContent {
		return fmt.Errorf("insert into %s: status %d: %s", table, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}

func (s *SupabaseStore) Select(ctx context.Context, table string, columns []string, limit int) ([]map[string]any, error) {
	if err := validIdent(table); err != nil {
		return nil, err
	}
	if err := validColumns(columns); err != nil {
		return nil, err
	}

	projection := "*"
	if len(columns) > 0 {
		projection = strings.Join(columns, ",")
	}
	req := s.rc.R().
		SetContext(ctx).
		SetQueryParam("select", projection)
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}

	var rows []map[string]any
	resp, err := req.SetResult(&rows).Get(s.tableURL(table))
	if err != nil {
		return nil, fmt.Errorf("select from %s: %w", table, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("select from %s: status %d: %s", table, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return rows, nil
}

func (s *SupabaseStore) Close() error { return nil }
