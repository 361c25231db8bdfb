// Package catalog holds the immutable list of draftable items.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed countries.yaml
var defaultCatalog []byte

// Item is a draftable resource. Score is a precomputed desirability used by
// the best-available auto pick.
type Item struct {
	Code  string  `yaml:"code" json:"code"`
	Name  string  `yaml:"name" json:"name"`
	Score float64 `yaml:"score" json:"score"`
}

type file struct {
	Items []Item `yaml:"items"`
}

// Catalog is safe for concurrent use; it is never mutated after New.
type Catalog struct {
	items  []Item
	byCode map[string]int
}

// New validates items and builds a catalog. Codes are normalized to upper case.
func New(items []Item) (*Catalog, error) {
	if len(items) == 0 {
		return nil, errors.New("catalog is empty")
	}

	c := &Catalog{
		items:  make([]Item, 0, len(items)),
		byCode: make(map[string]int, len(items)),
	}
	for i, it := range items {
		it.Code = Normalize(it.Code)
		if it.Code == "" {
			return nil, fmt.Errorf("item %d has no code", i)
		}
		if _, dup := c.byCode[it.Code]; dup {
			return nil, fmt.Errorf("duplicate item code %q", it.Code)
		}
		if it.Name == "" {
			it.Name = it.Code
		}
		c.byCode[it.Code] = len(c.items)
		c.items = append(c.items, it)
	}
	return c, nil
}

// Load reads a YAML catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return parse(data)
}

// Default returns the built-in country catalog.
func Default() *Catalog {
	c, err := parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

// LoadOrDefault loads path, or the built-in catalog when path is empty.
func LoadOrDefault(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

func parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return New(f.Items)
}

// Normalize canonicalizes an item code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Lookup returns the item for code.
func (c *Catalog) Lookup(code string) (Item, bool) {
	i, ok := c.byCode[Normalize(code)]
	if !ok {
		return Item{}, false
	}
	return c.items[i], true
}

// Contains reports whether code is a known item.
func (c *Catalog) Contains(code string) bool {
	_, ok := c.byCode[Normalize(code)]
	return ok
}

// Len returns the number of items.
func (c *Catalog) Len() int {
	return len(c.items)
}

// Items returns a copy of all items in catalog order.
func (c *Catalog) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Available returns the items not in held, in catalog order.
func (c *Catalog) Available(held map[string]bool) []Item {
	out := make([]Item, 0, len(c.items))
	for _, it := range c.items {
		if !held[it.Code] {
			out = append(out, it)
		}
	}
	return out
}

// Ranked returns the items not in held, best score first. Ties break on code.
func (c *Catalog) Ranked(held map[string]bool) []Item {
	out := c.Available(held)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Code < out[j].Code
	})
	return out
}
