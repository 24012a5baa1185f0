package prompt

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestManagerRender(t *testing.T) {
	m := NewManager()
	if err := m.RegisterString("greet", "Today is {{.Date}}. Topic: {{.Topic}}"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.RegisterString("greet", "dup"); err == nil {
		t.Error("expected duplicate registration error")
	}

	out, err := m.Render("greet", map[string]any{"Date": "May 01, 2025", "Topic": "tb"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "Today is May 01, 2025. Topic: tb" {
		t.Errorf("unexpected render %q", out)
	}
}

func TestRenderMissingVariable(t *testing.T) {
	m := NewManager()
	_ = m.RegisterString("needs", "{{.Topic}}")
	if _, err := m.Render("needs", map[string]any{}); err == nil {
		t.Error("expected error for missing variable")
	}
	if _, err := m.Render("unknown", nil); err == nil {
		t.Error("expected error for unknown template")
	}
}

func TestParseError(t *testing.T) {
	if _, err := NewTemplate("bad", "{{.Open"); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadFSOverridesKnownTemplates(t *testing.T) {
	m := NewManager()
	_ = m.RegisterString("reflection", "default")
	_ = m.RegisterString("answer", "default answer")

	fsys := fstest.MapFS{
		"prompts/reflection.tmpl": {Data: []byte("custom {{.Topic}}")},
		"prompts/README.md":       {Data: []byte("ignored")},
	}
	if err := m.LoadFS(fsys, "prompts"); err != nil {
		t.Fatalf("LoadFS: %v", err)
	}

	out, _ := m.Render("reflection", map[string]any{"Topic": "x"})
	if out != "custom x" {
		t.Errorf("override not applied: %q", out)
	}
	out, _ = m.Render("answer", nil)
	if out != "default answer" {
		t.Errorf("untouched template changed: %q", out)
	}

	bad := fstest.MapFS{"p/typo.tmpl": {Data: []byte("x")}}
	if err := m.LoadFS(bad, "p"); err == nil || !strings.Contains(err.Error(), "typo.tmpl") {
		t.Errorf("expected unknown-template error, got %v", err)
	}
}

func TestListSorted(t *testing.T) {
	m := NewManager()
	_ = m.RegisterString("b", "")
	_ = m.RegisterString("a", "")
	names := m.List()
	if len(names) != 2 || names[0] != "a" {
		t.Errorf("List = %v", names)
	}
}
