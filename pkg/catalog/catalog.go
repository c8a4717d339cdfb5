// Package catalog holds the fixed list of queries a scrape run works through.
//
// A catalog is a set of named groups, each an ordered list of entries. An
// entry pairs a filter set with the label its output files are named after.
// The group name becomes the output subdirectory; otherwise groups do not
// change how an entry is run.
//
// A Catalog is immutable once built. Select returns a new Catalog.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Sternrassler/county-property-scraper/pkg/filter"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

var (
	// ErrInvalidCatalog wraps every load and validation failure.
	ErrInvalidCatalog = errors.New("invalid catalog")

	// ErrNoMatch is returned by Select when nothing matches.
	ErrNoMatch = errors.New("no catalog entries match")
)

// Entry is one query and the label its results are stored under.
type Entry struct {
	Group   string           `yaml:"-" json:"group"`
	Label   string           `yaml:"label" json:"label"`
	Filters filter.FilterSet `yaml:"filters" json:"filters"`
}

// Name returns "group/label".
func (e Entry) Name() string {
	return e.Group + "/" + e.Label
}

// Validate checks that the entry can be used to name output files.
func (e Entry) Validate() error {
	if err := validName("group", e.Group); err != nil {
		return err
	}
	return validName("label", e.Label)
}

// Group is a named, ordered list of entries.
type Group struct {
	Name    string  `yaml:"name"`
	Entries []Entry `yaml:"entries"`
}

type document struct {
	Groups []Group `yaml:"groups"`
}

// Catalog is an ordered, validated list of entries.
type Catalog struct {
	entries []Entry
	groups  []string
}

// New builds a catalog from groups, in order.
func New(groups ...Group) (*Catalog, error) {
	if len(groups) == 0 {
		return nil, fmt.Errorf("%w: no groups", ErrInvalidCatalog)
	}

	c := &Catalog{}
	seenGroups := make(map[string]bool)
	seenEntries := make(map[string]bool)

	for _, g := range groups {
		if err := validName("group", g.Name); err != nil {
			return nil, err
		}
		if seenGroups[g.Name] {
			return nil, fmt.Errorf("%w: duplicate group %q", ErrInvalidCatalog, g.Name)
		}
		seenGroups[g.Name] = true

		if len(g.Entries) == 0 {
			return nil, fmt.Errorf("%w: group %q has no entries", ErrInvalidCatalog, g.Name)
		}
		c.groups = append(c.groups, g.Name)

		for i, e := range g.Entries {
			e.Group = g.Name
			if err := e.Validate(); err != nil {
				return nil, fmt.Errorf("group %q entry %d: %w", g.Name, i+1, err)
			}
			if seenEntries[e.Name()] {
				return nil, fmt.Errorf("%w: duplicate label %q in group %q", ErrInvalidCatalog, e.Label, g.Name)
			}
			seenEntries[e.Name()] = true
			c.entries = append(c.entries, e)
		}
	}

	return c, nil
}

// Parse decodes a YAML catalog. Unknown fields are rejected.
func Parse(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidCatalog)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	return New(doc.Groups...)
}

// Load reads and parses a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("built-in catalog: %v", err))
	}
	return c
}

// Entries returns the entries in run order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Groups returns the group names in order.
func (c *Catalog) Groups() []string {
	out := make([]string, len(c.groups))
	copy(out, c.groups)
	return out
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Select returns the entries matching group and label. An empty argument
// matches everything. Order is preserved.
func (c *Catalog) Select(group, label string) (*Catalog, error) {
	out := &Catalog{}
	for _, e := range c.entries {
		if group != "" && e.Group != group {
			continue
		}
		if label != "" && e.Label != label {
			continue
		}
		if len(out.groups) == 0 || out.groups[len(out.groups)-1] != e.Group {
			out.groups = append(out.groups, e.Group)
		}
		out.entries = append(out.entries, e)
	}

	if len(out.entries) == 0 {
		return nil, fmt.Errorf("%w: group=%q label=%q", ErrNoMatch, group, label)
	}
	return out, nil
}

func validName(kind, name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty %s", ErrInvalidCatalog, kind)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %s %q is not a valid file name", ErrInvalidCatalog, kind, name)
	case strings.ContainsAny(name, `/\`+"\x00"):
		return fmt.Errorf("%w: %s %q contains a path separator", ErrInvalidCatalog, kind, name)
	}
	return nil
}
