// Package schema describes the columns of a harvested profile record: for
// every field, where its value comes from and what to write when it cannot
// be found.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"linkedin-harvester/internal/browser"
)

type Source string

const (
	// FromElement reads the text of an element below the profile overview.
	FromElement Source = "element"
	// FromURL writes the profile URL itself.
	FromURL Source = "url"
	// FromURLName guesses a display name from the profile URL slug.
	FromURLName Source = "url-name"
	// FromQuery writes the name that was searched for.
	FromQuery Source = "query"
)

type Field struct {
	Name    string          `yaml:"name"`
	Source  Source          `yaml:"source,omitempty"`
	Locator browser.Locator `yaml:"locator,omitempty"`
	Default string          `yaml:"default,omitempty"`
}

func (f Field) source() Source {
	if f.Source == "" {
		return FromElement
	}
	return f.Source
}

// Schema is the ordered column list. The order is the header order and the
// order of every row written after it.
type Schema []Field

func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Normalize fills in the default source for fields that omit it.
func (s Schema) Normalize() Schema {
	out := make(Schema, len(s))
	for i, f := range s {
		f.Source = f.source()
		out[i] = f
	}
	return out
}

func (s Schema) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("schema has no fields")
	}
	seen := map[string]bool{}
	for i, f := range s {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("schema field %d has no name", i)
		}
		if seen[f.Name] {
			return fmt.Errorf("schema field %q is listed twice", f.Name)
		}
		seen[f.Name] = true

		switch f.source() {
		case FromElement:
			if f.Locator.IsZero() {
				return fmt.Errorf("schema field %q needs a locator", f.Name)
			}
		case FromURL, FromURLName, FromQuery:
		default:
			return fmt.Errorf("schema field %q has unknown source %q", f.Name, f.Source)
		}
	}
	return nil
}

// Record maps field names to extracted values.
type Record map[string]string

// Row lays a record out in schema order. Fields the record lacks are
// written as their default.
func (s Schema) Row(r Record) []string {
	row := make([]string, len(s))
	for i, f := range s {
		v, ok := r[f.Name]
		if !ok {
			v = f.Default
		}
		row[i] = v
	}
	return row
}

var presets = map[string]Schema{
	"full": {
		{Name: "fullname", Locator: browser.ByClass("full-name")},
		{Name: "locality", Locator: browser.MustParseLocator("#location .locality")},
		{Name: "industry", Locator: browser.MustParseLocator("#location .industry")},
		{Name: "current_summary", Locator: browser.MustParseLocator("#overview-summary-current td")},
		{Name: "past_summary", Locator: browser.MustParseLocator("#overview-summary-past td")},
		{Name: "education", Locator: browser.MustParseLocator("#overview-summary-education td")},
	},
	"basic": {
		{Name: "fullname", Locator: browser.ByClass("full-name")},
		{Name: "country", Locator: browser.MustParseLocator("#location .locality")},
	},
}

// Preset returns a copy of a built-in schema.
func Preset(name string) (Schema, error) {
	p, ok := presets[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown schema preset %q (use one of %s)", name, strings.Join(PresetNames(), ", "))
	}
	return append(Schema(nil), p...).Normalize(), nil
}

func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
