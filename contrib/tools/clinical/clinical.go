// Package clinical exposes a PharmaOne-style pharmaceutical data API as
// research tools: clinical results, drug patents, global clinical trials,
// published trial outcomes and drug R&D pipelines.
package clinical

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/tool"
)

// Tool names.
const (
	ToolClinicalResults      = "get_clinical_results"
	ToolDrugPatents          = "get_global_drug_patents"
	ToolGlobalClinicalTrials = "search_global_clinical_trials"
	ToolClinicalTrialResults = "search_clinical_trial_results"
	ToolGlobalDrugRnD        = "search_global_drug_rnd"
)

const (
	defaultLabel         = "PharmaOne"
	defaultRnDPageSize   = 50
	maxRows              = 50
	trialsPageSize       = 20
	trialResultsPageSize = 50
)

// ErrNoFilter is returned when a search tool gets no filter at all.
var ErrNoFilter = errors.New("at least one of target, drug, company or disease is required")

// Client talks to the data API.
type Client struct {
	BaseURL string
	// Label names the data source in references.
	Label   string
	client  *http.Client
	limiter *rate.Limiter
}

// New creates a Client. requestsPerSecond <= 0 disables rate limiting.
func New(baseURL string, requestsPerSecond float64, client *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("clinical: invalid base url %q", baseURL)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	c := &Client{
		BaseURL: strings.TrimRight(u.String(), "/"),
		Label:   defaultLabel,
		client:  client,
	}
	if requestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	return c, nil
}

// Tools returns every tool backed by the client.
func (c *Client) Tools() []*tool.Tool {
	filters := []tool.Parameter{
		{Name: "target", Type: "string", Description: "Drug target, empty for any"},
		{Name: "drug", Type: "string", Description: "Drug English or generic name, empty for any"},
		{Name: "company", Type: "string", Description: "Sponsor or collaborator company, empty for any"},
		{Name: "disease", Type: "string", Description: "Indication, including sub-indications, empty for any"},
	}

	return []*tool.Tool{
		{
			Name: ToolClinicalResults,
			Description: "Retrieve clinical trial results for drugs, conditions or interventions. " +
				"Use it when you need clinical study outcomes.",
			Parameters: []tool.Parameter{
				{Name: "keywords", Type: "string", Description: "Keywords such as a drug name, condition or intervention", Required: true},
				{Name: "country", Type: "string", Description: "Optional country filter"},
				{Name: "year", Type: "integer", Description: "Optional year filter"},
			},
			Handler: func(ctx context.Context, args map[string]any) (*tool.Result, error) {
				body := map[string]any{"keywords": tool.StringArg(args, "keywords")}
				if v := tool.StringArg(args, "country"); v != "" {
					body["country"] = v
				}
				if v := tool.IntArg(args, "year", 0); v > 0 {
					body["year"] = v
				}
				return c.post(ctx, "/api/Clinical/GetTableList", body)
			},
		},
		{
			Name: ToolDrugPatents,
			Description: "Look up global drug patents and their legal status. " +
				"Use it when you need patent data for pharmaceuticals.",
			Parameters: []tool.Parameter{
				{Name: "drug_name", Type: "string", Description: "Drug name to look up", Required: true},
				{Name: "country", Type: "string", Description: "Optional country or region filter"},
				{Name: "status", Type: "string", Description: "Patent status filter, e.g. Active or Expired"},
			},
			Handler: func(ctx context.Context, args map[string]any) (*tool.Result, error) {
				body := map[string]any{"drug_name": tool.StringArg(args, "drug_name")}
				if v := tool.StringArg(args, "country"); v != "" {
					body["country"] = v
				}
				if v := tool.StringArg(args, "status"); v != "" {
					body["status"] = v
				}
				return c.post(ctx, "/api/GlobalDrugPatents/GetTableList", body)
			},
		},
		{
			Name:        ToolGlobalClinicalTrials,
			Description: "Search registered clinical trials worldwide by target, drug, company or disease.",
			Parameters:  filters,
			Handler: func(ctx context.Context, args map[string]any) (*tool.Result, error) {
				f, err := readFilters(args)
				if err != nil {
					return nil, err
				}
				body := f.body()
				body["pageSize"] = trialsPageSize
				return c.post(ctx, "/api/Clinical/GetTableListForAI", body)
			},
		},
		{
			Name:        ToolClinicalTrialResults,
			Description: "Search recently published clinical trial results by target, drug, company or disease.",
			Parameters:  filters,
			Handler: func(ctx context.Context, args map[string]any) (*tool.Result, error) {
				f, err := readFilters(args)
				if err != nil {
					return nil, err
				}
				return c.get(ctx, "/api/ClinicalOutcomes/GetTableListForAI", f.query(trialResultsPageSize, 0))
			},
		},
		{
			Name:        ToolGlobalDrugRnD,
			Description: "Search the global drug research and development pipeline by target, drug, company or disease.",
			Parameters: append(append([]tool.Parameter{}, filters...),
				tool.Parameter{Name: "page", Type: "integer", Description: "Result page, starting at 1"},
				tool.Parameter{Name: "page_size", Type: "integer", Description: "Rows per page", Default: defaultRnDPageSize},
			),
			Handler: func(ctx context.Context, args map[string]any) (*tool.Result, error) {
				f, err := readFilters(args)
				if err != nil {
					return nil, err
				}
				size := tool.IntArg(args, "page_size", defaultRnDPageSize)
				if size <= 0 || size > maxRows {
					size = defaultRnDPageSize
				}
				return c.get(ctx, "/api/GlobalNewDrug/GetTableListForAI", f.query(size, tool.IntArg(args, "page", 0)))
			},
		},
	}
}

type filters struct {
	target, drug, company, disease string
}

func readFilters(args map[string]any) (filters, error) {
	f := filters{
		target:  tool.StringArg(args, "target"),
		drug:    tool.StringArg(args, "drug"),
		company: tool.StringArg(args, "company"),
		disease: tool.StringArg(args, "disease"),
	}
	if f.target == "" && f.drug == "" && f.company == "" && f.disease == "" {
		return f, ErrNoFilter
	}
	return f, nil
}

func (f filters) body() map[string]any {
	return map[string]any{
		"Target":     f.target,
		"Drug":       f.drug,
		"Enterprise": f.company,
		"Disease":    f.disease,
	}
}

func (f filters) query(pageSize, page int) url.Values {
	q := url.Values{}
	for k, v := range map[string]string{"Target": f.target, "Drug": f.drug, "Enterprise": f.company, "Disease": f.disease} {
		if v != "" {
			q.Set(k, v)
		}
	}
	q.Set("pageSize", strconv.Itoa(pageSize))
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	return q
}

func (c *Client) post(ctx context.Context, path string, body map[string]any) (*tool.Result, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) get(ctx context.Context, path string, q url.Values) (*tool.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*tool.Result, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s: http %d: %s", req.URL.Path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	rows, err := decodeRows(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.URL.Path, err)
	}
	return c.render(rows), nil
}

// decodeRows accepts a bare array or an envelope carrying the rows under
// data, rows, list or items (possibly nested one level under data).
func decodeRows(data []byte) ([]map[string]any, error) {
	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err == nil {
		return rows, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	for _, key := range []string{"data", "rows", "list", "items"} {
		raw, ok := envelope[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, &rows); err == nil {
			return rows, nil
		}
		if key == "data" {
			return decodeRows(raw)
		}
	}
	return nil, errors.New("decode response: no rows")
}

func (c *Client) render(rows []map[string]any) *tool.Result {
	res := &tool.Result{
		References: []tool.Reference{{Title: c.Label, URL: c.BaseURL}},
	}
	if len(rows) == 0 {
		res.Text = "No matching records."
		return res
	}
	if len(rows) > maxRows {
		rows = rows[:maxRows]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d records from %s:\n", len(rows), c.Label)
	for i, row := range rows {
		fmt.Fprintf(&b, "\n%d.", i+1)
		keys := make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v := formatValue(row[k])
			if v == "" {
				continue
			}
			if isLink(v) {
				res.References = append(res.References, tool.Reference{Title: rowTitle(row, i), URL: v})
				continue
			}
			fmt.Fprintf(&b, " %s: %s;", k, v)
		}
	}
	res.Text = strings.TrimSuffix(b.String(), ";")
	return res
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}

func isLink(v string) bool {
	return strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://")
}

func rowTitle(row map[string]any, i int) string {
	for _, k := range []string{"title", "Title", "文献标题", "name", "Name", "drug", "Drug", "药物"} {
		if v, ok := row[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return fmt.Sprintf("record %d", i+1)
}
