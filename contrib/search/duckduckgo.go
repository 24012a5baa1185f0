package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

const duckDuckGoEndpoint = "https://lite.duckduckgo.com/lite/"

// DuckDuckGo scrapes the DuckDuckGo lite HTML page. It needs no API key.
type DuckDuckGo struct {
	MaxResults int
	Endpoint   string

	client  *http.Client
	retry   retryPolicy
	limiter *rate.Limiter
}

// NewDuckDuckGo creates a DuckDuckGo backend limited to one query per second.
func NewDuckDuckGo() *DuckDuckGo {
	return &DuckDuckGo{
		MaxResults: DefaultMaxResults,
		Endpoint:   duckDuckGoEndpoint,
		client:     &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Search posts the query form and parses the result table.
func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]Hit, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	form := url.Values{}
	form.Set("q", query)

	resp, err := doWithRetry(ctx, d.client, d.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo http %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: parse html: %w", err)
	}
	return limitHits(parseLite(doc), d.MaxResults), nil
}

// parseLite pairs each result link with the snippet in the row below it.
func parseLite(doc *goquery.Document) []Hit {
	var hits []Hit
	doc.Find("a.result-link").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		target := resolveRedirect(strings.TrimSpace(href))
		title := strings.TrimSpace(link.Text())
		if target == "" || title == "" {
			return
		}
		snippet := link.Closest("tr").Next().Find("td.result-snippet")
		hits = append(hits, Hit{
			Title:   title,
			URL:     target,
			Snippet: strings.Join(strings.Fields(snippet.Text()), " "),
		})
	})
	return hits
}

// resolveRedirect unwraps DuckDuckGo's "/l/?uddg=" redirect links.
func resolveRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.HasSuffix(u.Host, "duckduckgo.com") && strings.HasPrefix(u.Path, "/l/") {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}
