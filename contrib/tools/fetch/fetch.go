// Package fetch provides the fetch_page tool, which downloads a web page
// and reduces it to readable text.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/tool"
)

// ToolName is the registered tool name.
const ToolName = "fetch_page"

const (
	defaultMaxChars = 8000
	maxBodyBytes    = 4 << 20
)

// Fetcher downloads pages.
type Fetcher struct {
	// MaxChars caps the extracted text.
	MaxChars int
	client   *http.Client
}

// New creates a Fetcher. A nil client uses a 20s timeout client.
func New(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Fetcher{MaxChars: defaultMaxChars, client: client}
}

// Tool exposes the fetcher as fetch_page.
func (f *Fetcher) Tool() *tool.Tool {
	return &tool.Tool{
		Name:        ToolName,
		Description: "Download a web page and return its readable text. Use it to read a search result in full.",
		Parameters: []tool.Parameter{
			{Name: "url", Type: "string", Description: "Absolute http(s) URL of the page", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any) (*tool.Result, error) {
			return f.Fetch(ctx, tool.StringArg(args, "url"))
		},
	}
}

// Fetch downloads rawURL and returns its text with the page as the single
// reference.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*tool.Result, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "deepresearch/0.1 (+https://github.com/Jxika/gemini-fullstack-langgraph-quickstart)")
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: http %d", u, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxBodyBytes)
	var title, text string
	if ct := resp.Header.Get("Content-Type"); strings.HasPrefix(ct, "text/plain") {
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, err
		}
		text = CleanText(string(data))
	} else {
		doc, err := goquery.NewDocumentFromReader(body)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", u, err)
		}
		title = strings.TrimSpace(doc.Find("title").First().Text())
		text = CleanText(HTMLToText(doc))
	}
	if text == "" {
		return nil, errors.New("page has no readable text")
	}

	if title == "" {
		title = u.Host
	}
	return &tool.Result{
		Text:       truncate(text, f.MaxChars),
		References: []tool.Reference{{Title: title, URL: u.String()}},
	}, nil
}

// HTMLToText keeps headings, paragraphs, list items, code and tables.
// Page chrome (scripts, navigation, headers and footers) is dropped.
func HTMLToText(doc *goquery.Document) string {
	doc.Find("script,style,noscript,nav,header,footer,aside,form,iframe").Remove()

	var out []string
	doc.Find("h1,h2,h3,h4,p,li,pre,table").Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered("table,pre").Length() > 0 {
			return
		}
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		switch goquery.NodeName(s) {
		case "h1":
			out = append(out, "# "+text)
		case "h2":
			out = append(out, "## "+text)
		case "h3", "h4":
			out = append(out, "### "+text)
		case "li":
			out = append(out, "- "+text)
		case "pre":
			out = append(out, "```\n"+text+"\n```")
		case "table":
			out = append(out, tableText(s))
		default:
			out = append(out, text)
		}
	})
	if len(out) == 0 {
		return doc.Find("body").Text()
	}
	return strings.Join(out, "\n\n")
}

func tableText(sel *goquery.Selection) string {
	var rows []string
	sel.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cols []string
		tr.Find("th,td").Each(func(_ int, td *goquery.Selection) {
			cols = append(cols, strings.Join(strings.Fields(td.Text()), " "))
		})
		if len(cols) > 0 {
			rows = append(rows, "| "+strings.Join(cols, " | ")+" |")
		}
	})
	return strings.Join(rows, "\n")
}

var (
	reSpaces   = regexp.MustCompile(`[ \t]+`)
	reNewlines = regexp.MustCompile(`\n{3,}`)
)

// CleanText removes control characters, collapses whitespace and drops
// repeated paragraphs.
func CleanText(text string) string {
	text = strings.Map(func(r rune) rune {
		if r == '\n' {
			return r
		}
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, text)
	text = reSpaces.ReplaceAllString(text, " ")
	text = reNewlines.ReplaceAllString(text, "\n\n")

	seen := map[string]struct{}{}
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return strings.Join(out, "\n\n")
}

func truncate(text string, max int) string {
	if max <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "\n\n[truncated]"
}
