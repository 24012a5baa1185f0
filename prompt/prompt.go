package prompt

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"text/template"
)

// Template represents a prompt template with variables
type Template struct {
	Name     string
	Content  string
	template *template.Template
}

// NewTemplate parses content. Referencing a variable that is not supplied
// at render time is an error.
func NewTemplate(name, content string) (*Template, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	return &Template{
		Name:     name,
		Content:  content,
		template: tmpl,
	}, nil
}

// Render renders the template with given variables
func (t *Template) Render(vars map[string]any) (string, error) {
	var buf strings.Builder
	if err := t.template.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", t.Name, err)
	}
	return buf.String(), nil
}

// Manager manages prompt templates. Safe for concurrent use.
type Manager struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewManager creates a new prompt manager
func NewManager() *Manager {
	return &Manager{
		templates: make(map[string]*Template),
	}
}

// Register adds a template to the manager
func (m *Manager) Register(tmpl *Template) error {
	if tmpl == nil || tmpl.Name == "" {
		return fmt.Errorf("template name cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.templates[tmpl.Name]; exists {
		return fmt.Errorf("template %s already registered", tmpl.Name)
	}
	m.templates[tmpl.Name] = tmpl
	return nil
}

// RegisterString registers a template from string content
func (m *Manager) RegisterString(name, content string) error {
	tmpl, err := NewTemplate(name, content)
	if err != nil {
		return err
	}
	return m.Register(tmpl)
}

// Override registers or replaces a template.
func (m *Manager) Override(name, content string) error {
	tmpl, err := NewTemplate(name, content)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[name] = tmpl
	return nil
}

// LoadFS overrides templates with every "<name>.tmpl" file in dir of fsys.
// Only names that are already registered are replaced; unknown files are
// rejected so a typo does not silently leave the default in place.
func (m *Manager) LoadFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("read prompt dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".tmpl" {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".tmpl")
		if _, err := m.Get(name); err != nil {
			return fmt.Errorf("prompt override %s: %w", entry.Name(), err)
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return err
		}
		if err := m.Override(name, string(data)); err != nil {
			return err
		}
	}
	return nil
}

// Get retrieves a template by name
func (m *Manager) Get(name string) (*Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tmpl, ok := m.templates[name]
	if !ok {
		return nil, fmt.Errorf("template %s not found", name)
	}
	return tmpl, nil
}

// Render renders a template by name with given variables
func (m *Manager) Render(name string, vars map[string]any) (string, error) {
	tmpl, err := m.Get(name)
	if err != nil {
		return "", err
	}
	return tmpl.Render(vars)
}

// List returns all registered template names in sorted order.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.templates))
	for name := range m.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
