package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const braveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// Brave uses the Brave Search API. An API key is required via
// X-Subscription-Token.
type Brave struct {
	APIKey     string
	MaxResults int
	Endpoint   string

	client  *http.Client
	retry   retryPolicy
	limiter *rate.Limiter
}

// NewBrave constructs a Brave search backend.
func NewBrave(apiKey string) *Brave {
	return &Brave{
		APIKey:     apiKey,
		MaxResults: DefaultMaxResults,
		Endpoint:   braveEndpoint,
		client:     &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Search executes a Brave query. Calls are paced to the free tier's one
// request per second.
func (b *Brave) Search(ctx context.Context, query string) ([]Hit, error) {
	if strings.TrimSpace(b.APIKey) == "" {
		return nil, errors.New("brave: API key is missing")
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(b.MaxResults))
	endpoint := b.Endpoint + "?" + params.Encode()

	resp, err := doWithRetry(ctx, b.client, b.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Subscription-Token", b.APIKey)
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("brave: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave http %d", resp.StatusCode)
	}

	var payload struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("brave: decode response: %w", err)
	}

	hits := make([]Hit, 0, len(payload.Web.Results))
	for _, r := range payload.Web.Results {
		hits = append(hits, Hit{Title: r.Title, URL: r.URL, Snippet: r.Description})
	}
	return limitHits(hits, b.MaxResults), nil
}
