// Package search provides web search backends exposed as tools.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/tool"
)

// ToolName is the name the search tool registers under.
const ToolName = "web_search"

// DefaultMaxResults caps the hits a backend returns.
const DefaultMaxResults = 5

// Hit is one search result.
type Hit struct {
	Title   string
	URL     string
	Snippet string
}

// Searcher is a search backend.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Hit, error)
}

// Grounded backends answer with their own text and span-level citations.
type Grounded interface {
	SearchGrounded(ctx context.Context, query string) (*tool.Result, error)
}

// NewTool exposes s as the web_search tool. Grounded backends return their
// result unchanged; plain backends render hits as a numbered digest whose
// references follow hit order.
func NewTool(s Searcher) *tool.Tool {
	return &tool.Tool{
		Name:        ToolName,
		Description: "Search the web and return the most relevant results with their sources.",
		Parameters: []tool.Parameter{
			{Name: "query", Type: "string", Description: "A self-contained web search query", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any) (*tool.Result, error) {
			query := strings.TrimSpace(tool.StringArg(args, "query"))
			if query == "" {
				return nil, errors.New("query is empty")
			}
			if g, ok := s.(Grounded); ok {
				return g.SearchGrounded(ctx, query)
			}
			hits, err := s.Search(ctx, query)
			if err != nil {
				return nil, err
			}
			return Digest(query, hits), nil
		},
	}
}

// Digest renders hits as text with one reference per hit.
func Digest(query string, hits []Hit) *tool.Result {
	if len(hits) == 0 {
		return tool.TextResult(fmt.Sprintf("No results found for %q.", query))
	}
	var b strings.Builder
	res := &tool.Result{References: make([]tool.Reference, 0, len(hits))}
	fmt.Fprintf(&b, "Search results for %q:\n", query)
	for i, h := range hits {
		fmt.Fprintf(&b, "\n%d. %s", i+1, h.Title)
		if h.Snippet != "" {
			fmt.Fprintf(&b, "\n%s", h.Snippet)
		}
		b.WriteString("\n")
		res.References = append(res.References, tool.Reference{Title: h.Title, URL: h.URL})
	}
	res.Text = strings.TrimRight(b.String(), "\n")
	return res
}

// statusError is a retryable HTTP status that outlived the retry policy.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http %d", e.code)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// retryPolicy returns the backoff used for 429 and 5xx responses.
type retryPolicy func() backoff.BackOff

func defaultRetry() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 2 * time.Minute
	return b
}

// doWithRetry sends the request built by newReq and retries while the
// server answers 429 or 5xx. Other statuses are returned to the caller.
func doWithRetry(ctx context.Context, client *http.Client, policy retryPolicy, newReq func() (*http.Request, error)) (*http.Response, error) {
	if policy == nil {
		policy = defaultRetry
	}
	op := func() (*http.Response, error) {
		req, err := newReq()
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if retryableStatus(resp.StatusCode) {
			resp.Body.Close()
			return nil, &statusError{code: resp.StatusCode}
		}
		return resp, nil
	}
	return backoff.RetryWithData(op, backoff.WithContext(policy(), ctx))
}

func limitHits(hits []Hit, max int) []Hit {
	if max <= 0 {
		max = DefaultMaxResults
	}
	if len(hits) > max {
		return hits[:max]
	}
	return hits
}
