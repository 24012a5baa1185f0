// Package citation maps raw source references to short, batch-scoped
// references and rewrites text with citation markers.
//
// A short reference has the form "<scheme>/<batch>-<ordinal>". Short
// references are unique within a batch only: the same URL found by two
// different searches gets two different short references. Deduplication
// happens when the final answer is expanded.
package citation

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/tool"
)

// DefaultScheme prefixes short references when none is configured.
const DefaultScheme = "https://research.ref/id"

// ReferencesHeading introduces an appended reference list.
const ReferencesHeading = "## Sources"

// Source is a gathered source: a display label, its batch-scoped short
// reference and the canonical value (usually a URL) it stands for.
type Source struct {
	Label    string `json:"label"`
	ShortRef string `json:"short_reference"`
	Value    string `json:"value"`
}

// Citation ties the text range [Start, End) to one or more sources.
// A zero Start and End means the position is unknown.
type Citation struct {
	Start    int      `json:"start"`
	End      int      `json:"end"`
	Segments []Source `json:"segments"`
}

// Resolver assigns short references within one batch.
type Resolver struct {
	scheme string
	batch  int

	mu      sync.Mutex
	byValue map[string]string
	next    int
}

// NewResolver creates a resolver for batch. An empty scheme uses DefaultScheme.
func NewResolver(scheme string, batch int) *Resolver {
	scheme = strings.TrimRight(strings.TrimSpace(scheme), "/")
	if scheme == "" {
		scheme = DefaultScheme
	}
	return &Resolver{
		scheme:  scheme,
		batch:   batch,
		byValue: make(map[string]string),
	}
}

// Batch returns the batch id.
func (r *Resolver) Batch() int {
	return r.batch
}

// Add records one occurrence of value in the batch's reference stream and
// returns its short reference. Repeated values keep the short reference of
// their first occurrence; every occurrence still advances the ordinal.
func (r *Resolver) Add(value string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ordinal := r.next
	r.next++
	if short, ok := r.byValue[value]; ok {
		return short
	}
	short := fmt.Sprintf("%s/%d-%d", r.scheme, r.batch, ordinal)
	r.byValue[value] = short
	return short
}

// Lookup returns the short reference already assigned to value.
func (r *Resolver) Lookup(value string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	short, ok := r.byValue[value]
	return short, ok
}

// ResolveAll resolves refs in order and returns one Source per reference,
// index-aligned with refs. References without a URL are skipped and yield a
// zero Source. Untitled references are labelled "Source N".
func (r *Resolver) ResolveAll(refs []tool.Reference) []Source {
	out := make([]Source, len(refs))
	for i, ref := range refs {
		value := strings.TrimSpace(ref.URL)
		if value == "" {
			continue
		}
		label := strings.TrimSpace(ref.Title)
		if label == "" {
			label = fmt.Sprintf("Source %d", i+1)
		}
		out[i] = Source{Label: label, ShortRef: r.Add(value), Value: value}
	}
	return out
}

// Annotate resolves the references of res and renders its text with
// citations: inline markers when res carries spans, otherwise an appended
// reference list. It returns the rendered text and the distinct sources of
// the result in first-occurrence order.
func Annotate(r *Resolver, res *tool.Result) (string, []Source) {
	if res == nil {
		return "", nil
	}
	resolved := r.ResolveAll(res.References)
	sources := distinct(resolved)

	var cites []Citation
	if len(res.Spans) > 0 {
		for _, span := range res.Spans {
			c := Citation{Start: span.Start, End: span.End}
			for _, idx := range span.Refs {
				if idx >= 0 && idx < len(resolved) && resolved[idx].ShortRef != "" {
					c.Segments = append(c.Segments, resolved[idx])
				}
			}
			if len(c.Segments) > 0 {
				cites = append(cites, c)
			}
		}
	} else {
		for _, s := range sources {
			cites = append(cites, Citation{Segments: []Source{s}})
		}
	}
	return InsertMarkers(res.Text, cites), sources
}

// InsertMarkers inserts " [label](short_ref)" after each citation's End
// offset. Citations are applied from the highest End to the lowest so that
// earlier offsets stay valid. When no citation carries a position the
// references are appended as a numbered list instead. An empty list returns
// text unchanged.
func InsertMarkers(text string, cites []Citation) string {
	if len(cites) == 0 {
		return text
	}
	if !hasPositions(cites) {
		return AppendReferences(text, cites)
	}

	sorted := make([]Citation, len(cites))
	copy(sorted, cites)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].End != sorted[j].End {
			return sorted[i].End > sorted[j].End
		}
		return sorted[i].Start > sorted[j].Start
	})

	out := text
	for _, c := range sorted {
		pos := clampOffset(text, c.End)
		var marker strings.Builder
		for _, seg := range c.Segments {
			fmt.Fprintf(&marker, " [%s](%s)", seg.Label, seg.ShortRef)
		}
		out = out[:pos] + marker.String() + out[pos:]
	}
	return out
}

// AppendReferences appends a numbered reference list under ReferencesHeading.
func AppendReferences(text string, cites []Citation) string {
	if len(cites) == 0 {
		return text
	}
	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n\n")
	b.WriteString(ReferencesHeading)
	b.WriteString("\n")
	for i, c := range cites {
		for _, seg := range c.Segments {
			label := seg.Label
			if label == "" {
				label = fmt.Sprintf("Source %d", i+1)
			}
			ref := seg.ShortRef
			if ref == "" {
				ref = seg.Value
			}
			fmt.Fprintf(&b, "\n%d. [%s](%s)", i+1, label, ref)
		}
	}
	return b.String()
}

// Expand replaces every short reference that occurs in text with its
// canonical value and returns the sources actually referenced, deduplicated
// by value and kept in their original order. Longer short references are
// replaced first so ".../1-1" never rewrites part of ".../1-10".
func Expand(text string, sources []Source) (string, []Source) {
	order := make([]int, 0, len(sources))
	for i, s := range sources {
		if s.ShortRef != "" {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return len(sources[order[a]].ShortRef) > len(sources[order[b]].ShortRef)
	})

	used := make([]bool, len(sources))
	for _, i := range order {
		s := sources[i]
		if strings.Contains(text, s.ShortRef) {
			text = strings.ReplaceAll(text, s.ShortRef, s.Value)
			used[i] = true
		}
	}

	seen := make(map[string]struct{})
	var out []Source
	for i, s := range sources {
		if !used[i] {
			continue
		}
		if _, dup := seen[s.Value]; dup {
			continue
		}
		seen[s.Value] = struct{}{}
		out = append(out, s)
	}
	return text, out
}

func hasPositions(cites []Citation) bool {
	for _, c := range cites {
		if c.Start != 0 || c.End != 0 {
			return true
		}
	}
	return false
}

// clampOffset bounds off to text and moves it forward to a rune boundary.
func clampOffset(text string, off int) int {
	if off < 0 {
		return 0
	}
	if off >= len(text) {
		return len(text)
	}
	for off < len(text) && !utf8.RuneStart(text[off]) {
		off++
	}
	return off
}

func distinct(resolved []Source) []Source {
	seen := make(map[string]struct{}, len(resolved))
	var out []Source
	for _, s := range resolved {
		if s.ShortRef == "" {
			continue
		}
		if _, ok := seen[s.ShortRef]; ok {
			continue
		}
		seen[s.ShortRef] = struct{}{}
		out = append(out, s)
	}
	return out
}
