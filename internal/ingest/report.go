package ingest

import (
	"errors"
	"time"

	"github.com/Adda-Baaj/khobor-digest/pkg/summarizer"
)

// ItemReport records what happened to one news item.
type ItemReport struct {
	Link          string   `json:"link"`
	Title         string   `json:"title"`
	ArticleStored bool     `json:"article_stored"`
	Summarized    bool     `json:"summarized"`
	Relevant      bool     `json:"relevant"`
	SummaryStored bool     `json:"summary_stored"`
	Published     bool     `json:"published"`
	Errors        []string `json:"errors,omitempty"`

	errs []error
}

func (r *ItemReport) fail(err error) {
	r.errs = append(r.errs, err)
	r.Errors = append(r.Errors, err.Error())
}

// Failed reports whether any recorded error matches target.
func (r ItemReport) Failed(target error) bool {
	for _, err := range r.errs {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Report summarizes one ingestion or on-demand summarization run.
type Report struct {
	TaskID     string             `json:"task_id,omitempty"`
	Category   string             `json:"category"`
	Topic      string             `json:"topic"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Items      []ItemReport       `json:"items,omitempty"`
	Summary    *summarizer.Result `json:"summary,omitempty"`
	Err        string             `json:"error,omitempty"`
}

// ArticlesStored counts items whose article row was written.
func (r Report) ArticlesStored() int {
	return r.count(func(i ItemReport) bool { return i.ArticleStored })
}

// SummariesStored counts items whose summary row was written.
func (r Report) SummariesStored() int {
	return r.count(func(i ItemReport) bool { return i.SummaryStored })
}

// Irrelevant counts items the summarizer classified as off-topic.
func (r Report) Irrelevant() int {
	return r.count(func(i ItemReport) bool { return i.Summarized && !i.Relevant })
}

// Failures counts items with at least one error.
func (r Report) Failures() int {
	return r.count(func(i ItemReport) bool { return len(i.Errors) > 0 })
}

func (r Report) count(pred func(ItemReport) bool) int {
	n := 0
	for _, item := range r.Items {
		if pred(item) {
			n++
		}
	}
	return n
}
