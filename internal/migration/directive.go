package migration

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rename moves the value of field From to field To.
type Rename struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Directive is the operator-supplied migration of one entity type. Defaults
// override the computed default of a field; Remove lists deprecated fields.
type Directive struct {
	Entity   string         `yaml:"entity"`
	Renames  []Rename       `yaml:"renames"`
	Defaults map[string]any `yaml:"defaults"`
	Remove   []string       `yaml:"remove"`
}

type directiveFile struct {
	Directives []Directive `yaml:"directives"`
}

// Validate rejects directives that can not be applied.
func (d Directive) Validate() error {
	if d.Entity == "" {
		return errors.New("directive without entity")
	}
	for _, r := range d.Renames {
		if r.From == "" || r.To == "" || r.From == r.To {
			return fmt.Errorf("%s: invalid rename %q -> %q", d.Entity, r.From, r.To)
		}
	}
	for _, f := range d.Remove {
		if f == "" {
			return fmt.Errorf("%s: empty field in remove", d.Entity)
		}
	}
	return nil
}

// ParseDirectives decodes a directive document:
//
//	directives:
//	  - entity: Trip
//	    renames: [{from: name, to: title}]
//	    defaults: {createdAt: 1970-01-01}
//	    remove: [legacyRating]
func ParseDirectives(data []byte) ([]Directive, error) {
	var f directiveFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse directives: %w", err)
	}
	for _, d := range f.Directives {
		if err := d.Validate(); err != nil {
			return nil, err
		}
	}
	return f.Directives, nil
}

// LoadDirectives reads and parses a directive file.
func LoadDirectives(path string) ([]Directive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read directives: %w", err)
	}
	return ParseDirectives(data)
}
