package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/tool"
)

const googleEndpoint = "https://generativelanguage.googleapis.com/v1beta"

// Google runs a Gemini generation grounded on Google Search. The model's
// text comes back with span-level citations, so the caller can place
// inline markers instead of a reference list.
type Google struct {
	APIKey   string
	Model    string
	Endpoint string

	client *http.Client
	retry  retryPolicy
}

// NewGoogle constructs a grounded search backend.
func NewGoogle(apiKey, model string) *Google {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Google{
		APIKey:   apiKey,
		Model:    model,
		Endpoint: googleEndpoint,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

type groundedResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		GroundingMetadata struct {
			GroundingChunks []struct {
				Web struct {
					URI   string `json:"uri"`
					Title string `json:"title"`
				} `json:"web"`
			} `json:"groundingChunks"`
			GroundingSupports []struct {
				Segment struct {
					StartIndex int `json:"startIndex"`
					EndIndex   int `json:"endIndex"`
				} `json:"segment"`
				GroundingChunkIndices []int `json:"groundingChunkIndices"`
			} `json:"groundingSupports"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
}

// SearchGrounded asks the model to research query with Google Search.
func (g *Google) SearchGrounded(ctx context.Context, query string) (*tool.Result, error) {
	if strings.TrimSpace(g.APIKey) == "" {
		return nil, errors.New("google: API key is missing")
	}
	body, err := json.Marshal(map[string]any{
		"contents": []map[string]any{{
			"role":  "user",
			"parts": []map[string]any{{"text": groundedPrompt(query)}},
		}},
		"tools":            []map[string]any{{"google_search": map[string]any{}}},
		"generationConfig": map[string]any{"temperature": 0},
	})
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(g.Endpoint, "/"), g.Model)

	resp, err := doWithRetry(ctx, g.client, g.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", g.APIKey)
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("google: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("google http %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out groundedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("google: decode response: %w", err)
	}
	return groundedResult(&out)
}

// Search satisfies Searcher by flattening the grounded answer into hits.
func (g *Google) Search(ctx context.Context, query string) ([]Hit, error) {
	res, err := g.SearchGrounded(ctx, query)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(res.References))
	for _, ref := range res.References {
		hits = append(hits, Hit{Title: ref.Title, URL: ref.URL})
	}
	return hits, nil
}

func groundedResult(resp *groundedResponse) (*tool.Result, error) {
	if len(resp.Candidates) == 0 {
		return nil, errors.New("google: no candidates in response")
	}
	cand := resp.Candidates[0]
	var text strings.Builder
	for _, p := range cand.Content.Parts {
		text.WriteString(p.Text)
	}

	res := &tool.Result{Text: text.String()}
	for _, chunk := range cand.GroundingMetadata.GroundingChunks {
		res.References = append(res.References, tool.Reference{Title: chunk.Web.Title, URL: chunk.Web.URI})
	}
	for _, support := range cand.GroundingMetadata.GroundingSupports {
		if len(support.GroundingChunkIndices) == 0 {
			continue
		}
		res.Spans = append(res.Spans, tool.Span{
			Start: support.Segment.StartIndex,
			End:   support.Segment.EndIndex,
			Refs:  support.GroundingChunkIndices,
		})
	}
	return res, nil
}

func groundedPrompt(query string) string {
	return "Conduct targeted Google Searches to gather the most recent, credible information on \"" + query +
		"\" and synthesize it into a verifiable text artifact. Only include information found in the search results."
}
