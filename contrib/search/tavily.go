package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const tavilyEndpoint = "https://api.tavily.com/search"

// Tavily calls the Tavily search API.
type Tavily struct {
	APIKey string
	// Depth is Tavily's search_depth, basic or advanced.
	Depth      string
	MaxResults int
	Endpoint   string

	client *http.Client
	retry  retryPolicy
}

// NewTavily constructs a Tavily search backend.
func NewTavily(apiKey, depth string) *Tavily {
	if depth == "" {
		depth = "basic"
	}
	return &Tavily{
		APIKey:     apiKey,
		Depth:      depth,
		MaxResults: DefaultMaxResults,
		Endpoint:   tavilyEndpoint,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Search posts a query to Tavily.
func (t *Tavily) Search(ctx context.Context, query string) ([]Hit, error) {
	if strings.TrimSpace(t.APIKey) == "" {
		return nil, errors.New("tavily: API key is missing")
	}
	payload, err := json.Marshal(map[string]any{
		"query":        query,
		"search_depth": t.Depth,
		"max_results":  t.MaxResults,
	})
	if err != nil {
		return nil, err
	}

	resp, err := doWithRetry(ctx, t.client, t.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+t.APIKey)
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("tavily: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily http %d", resp.StatusCode)
	}

	var response struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("tavily: decode response: %w", err)
	}

	hits := make([]Hit, 0, len(response.Results))
	for _, r := range response.Results {
		hits = append(hits, Hit{Title: r.Title, URL: r.URL, Snippet: r.Content})
	}
	return limitHits(hits, t.MaxResults), nil
}
