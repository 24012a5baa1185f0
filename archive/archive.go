// Package archive persists finished research reports so they can be
// fetched again by session id.
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/errors"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/research"
)

// Report is an archived research session.
type Report struct {
	research.Response
	CreatedAt time.Time `json:"created_at"`
}

// ID returns the session id of the report.
func (r *Report) ID() string {
	return r.SessionID
}

// NewReport wraps a finished session. Search records are not archived.
func NewReport(resp *research.Response, now time.Time) *Report {
	r := &Report{Response: *resp, CreatedAt: now.UTC()}
	r.Records = nil
	return r
}

// Store saves and loads reports.
type Store interface {
	Save(ctx context.Context, report *Report) error
	// Load returns errors.ErrNotFound for an unknown id.
	Load(ctx context.Context, id string) (*Report, error)
	// List returns up to limit reports, newest first.
	List(ctx context.Context, limit int) ([]*Report, error)
	Close() error
}

func validate(report *Report) error {
	if report == nil {
		return fmt.Errorf("%w: report cannot be nil", errors.ErrInvalidInput)
	}
	if report.SessionID == "" {
		return fmt.Errorf("%w: report has no session id", errors.ErrInvalidInput)
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	return nil
}

func notFound(id string) error {
	return fmt.Errorf("report %s: %w", id, errors.ErrNotFound)
}

const defaultListLimit = 20

func listLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}
