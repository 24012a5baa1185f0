package citation

import (
	"strings"
	"testing"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/tool"
)

func TestResolverStableWithinBatch(t *testing.T) {
	r := NewResolver("https://ref.test/id/", 2)

	a := r.Add("https://a.example")
	b := r.Add("https://b.example")
	again := r.Add("https://a.example")
	c := r.Add("https://c.example")

	if a != "https://ref.test/id/2-0" || b != "https://ref.test/id/2-1" {
		t.Fatalf("unexpected refs %q %q", a, b)
	}
	if again != a {
		t.Errorf("repeated value must keep its short ref: %q vs %q", again, a)
	}
	if c != "https://ref.test/id/2-3" {
		t.Errorf("ordinal should follow stream position, got %q", c)
	}
	if got, ok := r.Lookup("https://b.example"); !ok || got != b {
		t.Errorf("Lookup = %q, %v", got, ok)
	}
}

func TestResolverBatchScoped(t *testing.T) {
	r0 := NewResolver("", 0)
	r1 := NewResolver("", 1)
	if r0.Add("https://same") == r1.Add("https://same") {
		t.Error("different batches must issue different short refs")
	}
	if !strings.HasPrefix(r0.Add("x"), DefaultScheme+"/0-") {
		t.Error("empty scheme should use the default")
	}
}

func TestResolveAllLabels(t *testing.T) {
	r := NewResolver("s", 0)
	got := r.ResolveAll([]tool.Reference{
		{Title: "Reuters", URL: "https://reuters.com/x"},
		{URL: ""},
		{URL: "https://who.int"},
	})
	if len(got) != 3 {
		t.Fatalf("expected index-aligned output, got %d", len(got))
	}
	if got[0].Label != "Reuters" || got[0].ShortRef != "s/0-0" {
		t.Errorf("unexpected first source %+v", got[0])
	}
	if got[1] != (Source{}) {
		t.Errorf("reference without URL must be skipped: %+v", got[1])
	}
	if got[2].Label != "Source 3" || got[2].ShortRef != "s/0-1" {
		t.Errorf("unexpected untitled source %+v", got[2])
	}
}

func TestInsertMarkersEmptyIsIdentity(t *testing.T) {
	text := "nothing to cite"
	if got := InsertMarkers(text, nil); got != text {
		t.Errorf("got %q", got)
	}
}

func TestInsertMarkersHighestOffsetFirst(t *testing.T) {
	text := "ab|cd|ef"
	cites := []Citation{
		{Start: 0, End: 2, Segments: []Source{{Label: "x", ShortRef: "r/0-0"}}},
		{Start: 3, End: 5, Segments: []Source{{Label: "y", ShortRef: "r/0-1"}}},
	}
	got := InsertMarkers(text, cites)
	want := "ab [x](r/0-0)|cd [y](r/0-1)|ef"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if cites[0].End != 2 {
		t.Error("input slice must not be reordered")
	}
}

func TestInsertMarkersMultipleSegmentsAndClamp(t *testing.T) {
	got := InsertMarkers("short", []Citation{
		{Start: 0, End: 99, Segments: []Source{{Label: "a", ShortRef: "r/1-0"}, {Label: "b", ShortRef: "r/1-1"}}},
	})
	if got != "short [a](r/1-0) [b](r/1-1)" {
		t.Errorf("got %q", got)
	}
}

func TestInsertMarkersRuneBoundary(t *testing.T) {
	// "é" is two bytes; an offset inside it moves to the next boundary.
	got := InsertMarkers("é!", []Citation{{Start: 0, End: 1, Segments: []Source{{Label: "a", ShortRef: "r"}}}})
	if got != "é [a](r)!" {
		t.Errorf("got %q", got)
	}
}

func TestInsertMarkersWithoutPositionsAppendsList(t *testing.T) {
	got := InsertMarkers("body", []Citation{
		{Segments: []Source{{Label: "A", ShortRef: "r/0-0"}}},
		{Segments: []Source{{ShortRef: "r/0-1"}}},
	})
	want := "body\n\n## Sources\n\n1. [A](r/0-0)\n2. [Source 2](r/0-1)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestAnnotateWithSpans(t *testing.T) {
	r := NewResolver("g", 4)
	text, sources := Annotate(r, &tool.Result{
		Text: "Fact one. Fact two.",
		References: []tool.Reference{
			{Title: "apnews", URL: "https://apnews.com/1"},
			{Title: "bbc", URL: "https://bbc.com/2"},
		},
		Spans: []tool.Span{
			{Start: 0, End: 9, Refs: []int{0}},
			{Start: 10, End: 19, Refs: []int{1, 7}},
		},
	})
	want := "Fact one. [apnews](g/4-0) Fact two. [bbc](g/4-1)"
	if text != want {
		t.Errorf("got %q, want %q", text, want)
	}
	if len(sources) != 2 {
		t.Errorf("expected 2 sources, got %+v", sources)
	}
}

func TestAnnotateWithoutSpansDedupes(t *testing.T) {
	r := NewResolver("t", 0)
	text, sources := Annotate(r, &tool.Result{
		Text: "summary",
		References: []tool.Reference{
			{Title: "A", URL: "https://a"},
			{Title: "A again", URL: "https://a"},
			{Title: "B", URL: "https://b"},
		},
	})
	if len(sources) != 2 || sources[1].ShortRef != "t/0-2" {
		t.Fatalf("unexpected sources %+v", sources)
	}
	if !strings.Contains(text, "1. [A](t/0-0)") || !strings.Contains(text, "2. [B](t/0-2)") {
		t.Errorf("unexpected reference list %q", text)
	}
	if strings.Count(text, "t/0-0") != 1 {
		t.Errorf("duplicate reference listed twice: %q", text)
	}
}

func TestExpand(t *testing.T) {
	sources := []Source{
		{Label: "one", ShortRef: "r/1-1", Value: "https://one"},
		{Label: "ten", ShortRef: "r/1-10", Value: "https://ten"},
		{Label: "unused", ShortRef: "r/2-0", Value: "https://unused"},
		{Label: "one again", ShortRef: "r/3-0", Value: "https://one"},
	}
	text := "See [one](r/1-1), [ten](r/1-10) and [dup](r/3-0)."

	got, used := Expand(text, sources)
	want := "See [one](https://one), [ten](https://ten) and [dup](https://one)."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if len(used) != 2 || used[0].Label != "one" || used[1].Label != "ten" {
		t.Errorf("unexpected used sources %+v", used)
	}
}

func TestExpandDropsUnreferenced(t *testing.T) {
	_, used := Expand("no citations here", []Source{{ShortRef: "r/0-0", Value: "https://x"}})
	if len(used) != 0 {
		t.Errorf("expected no used sources, got %+v", used)
	}
}
