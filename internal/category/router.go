// Package category maps category names to the summarizer and tables that serve them.
package category

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Adda-Baaj/khobor-digest/pkg/summarizer"
)

// ErrUnknownCategory is matched by every *UnknownCategoryError.
var ErrUnknownCategory = errors.New("unknown category")

// UnknownCategoryError reports a name with no registered profile.
type UnknownCategoryError struct {
	Name string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown category %q", e.Name)
}

func (e *UnknownCategoryError) Is(target error) bool {
	return target == ErrUnknownCategory
}

// Summarizer is the per-category summarization collaborator.
type Summarizer interface {
	Summarize(ctx context.Context, category, content string) (summarizer.Result, error)
}

// Profile is everything needed to ingest one category.
type Profile struct {
	Name          string
	Query         string
	Summarizer    Summarizer
	ArticlesTable string
	SummaryTable  string
}

// DefaultTables returns the conventional table names for a category.
func DefaultTables(name string) (articles, summary string) {
	name = normalize(name)
	return name + "_articles", name + "_summary"
}

// Router resolves category names to profiles. It is read-only after construction.
type Router struct {
	profiles map[string]Profile
	names    []string
}

// NewRouter validates profiles and builds a Router. Empty table names fall
// back to DefaultTables; a missing summarizer or a duplicate name is an error.
func NewRouter(profiles []Profile) (*Router, error) {
	r := &Router{profiles: make(map[string]Profile, len(profiles))}
	for i, p := range profiles {
		key := normalize(p.Name)
		if key == "" {
			return nil, fmt.Errorf("category %d: name is required", i)
		}
		if _, dup := r.profiles[key]; dup {
			return nil, fmt.Errorf("category %q: duplicate name", key)
		}
		if p.Summarizer == nil {
			return nil, fmt.Errorf("category %q: summarizer is required", key)
		}

		articles, summary := DefaultTables(key)
		p.Name = key
		if strings.TrimSpace(p.ArticlesTable) == "" {
			p.ArticlesTable = articles
		}
		if strings.TrimSpace(p.SummaryTable) == "" {
			p.SummaryTable = summary
		}
		if strings.TrimSpace(p.Query) == "" {
			p.Query = key
		}

		r.profiles[key] = p
		r.names = append(r.names, key)
	}
	sort.Strings(r.names)
	return r, nil
}

// Resolve returns the profile registered under name.
func (r *Router) Resolve(name string) (Profile, error) {
	if p, ok := r.profiles[normalize(name)]; ok {
		return p, nil
	}
	return Profile{}, &UnknownCategoryError{Name: name}
}

// Names lists the registered categories in sorted order.
func (r *Router) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Profiles returns every profile, sorted by name.
func (r *Router) Profiles() []Profile {
	out := make([]Profile, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, r.profiles[n])
	}
	return out
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
