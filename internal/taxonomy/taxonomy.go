// Package taxonomy loads the accounting vocabulary used for dropdowns and
// suggestion prompts.
package taxonomy

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jask/ledgergrid/internal/grid"
)

//go:embed default.yaml
var defaultYAML []byte

type Category struct {
	Name          string   `yaml:"name"`
	Subcategories []string `yaml:"subcategories"`
}

// Taxonomy is the set of known currencies, categories and entities.
type Taxonomy struct {
	Currencies []string   `yaml:"currencies"`
	Categories []Category `yaml:"categories"`
	Entities   []string   `yaml:"entities"`
}

// Default returns the built-in taxonomy.
func Default() *Taxonomy {
	t, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("taxonomy: built-in default is invalid: %v", err))
	}
	return t
}

// Load reads path, or returns the default when path is empty.
func Load(path string) (*Taxonomy, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy file: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy file: %w", err)
	}
	return t, nil
}

// Parse decodes and validates a YAML taxonomy.
func Parse(data []byte) (*Taxonomy, error) {
	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	for i, c := range t.Categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("category %d has no name", i)
		}
		if grid.IsPlaceholder(name) {
			return nil, fmt.Errorf("category %q is reserved", name)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate category %q", name)
		}
		seen[name] = struct{}{}
		t.Categories[i].Name = name
	}
	return &t, nil
}

// CategoryNames lists categories in file order.
func (t *Taxonomy) CategoryNames() []string {
	out := make([]string, 0, len(t.Categories))
	for _, c := range t.Categories {
		out = append(out, c.Name)
	}
	return out
}

// Subcategories maps each category to its subcategories.
func (t *Taxonomy) Subcategories() map[string][]string {
	out := make(map[string][]string, len(t.Categories))
	for _, c := range t.Categories {
		out[c.Name] = append([]string(nil), c.Subcategories...)
	}
	return out
}

// Options implements grid.OptionSource. Subcategories follow the row's
// category; an unset category offers every subcategory.
func (t *Taxonomy) Options(f grid.Field, rec grid.Record) []string {
	switch f {
	case grid.FieldCurrency:
		return append([]string(nil), t.Currencies...)
	case grid.FieldAccountingCategory:
		return t.CategoryNames()
	case grid.FieldClassifiedEntity:
		return append([]string(nil), t.Entities...)
	case grid.FieldSubcategory:
		cat := rec.Value(grid.FieldAccountingCategory)
		for _, c := range t.Categories {
			if c.Name == cat {
				return append([]string(nil), c.Subcategories...)
			}
		}
		var all []string
		for _, c := range t.Categories {
			all = append(all, c.Subcategories...)
		}
		return all
	}
	return nil
}
