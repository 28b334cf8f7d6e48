package priority

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kilianp07/gridshed/core/model"
)

// Category classifies a circuit class as critical or not.
type Category string

const (
	Critical    Category = "critical"
	NonCritical Category = "non_critical"
)

// Categories lists every category in declaration order.
var Categories = []Category{Critical, NonCritical}

// ParseCategory validates a category name. Unknown names are a validation
// error, they are never created on the fly.
func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case Critical:
		return Critical, nil
	case NonCritical, "non-critical", "noncritical":
		return NonCritical, nil
	default:
		return "", fmt.Errorf("%w: unknown priority category %q", model.ErrValidation, s)
	}
}

// Entry is one ranked circuit class.
type Entry struct {
	Name      string `json:"-"`
	Priority  int    `json:"priority"`
	Rationale string `json:"rationale"`
}

// Classes is an ordered set of entries. It is encoded as a JSON object keyed by
// class name and keeps the key order of the document it was decoded from.
type Classes []Entry

// Index returns the position of name, or -1.
func (c Classes) Index(name string) int {
	for i, e := range c {
		if e.Name == name {
			return i
		}
	}
	return -1
}

// MarshalJSON writes the entries as an object in declaration order.
func (c Classes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object of entries, preserving key order.
func (c *Classes) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*c = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("priority classes must be an object")
	}
	out := Classes{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		var e Entry
		if err := dec.Decode(&e); err != nil {
			return fmt.Errorf("class %s: %w", name, err)
		}
		e.Name = name
		out = append(out, e)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = out
	return nil
}

// Metadata describes where a configuration came from.
type Metadata struct {
	Source      string `json:"source"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// Document is the persisted shape of a priority configuration.
type Document struct {
	Metadata    Metadata `json:"metadata"`
	Critical    Classes  `json:"critical"`
	NonCritical Classes  `json:"non_critical"`
}

// Classes returns the entries of the given category.
func (d *Document) Classes(cat Category) Classes {
	if cat == Critical {
		return d.Critical
	}
	return d.NonCritical
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	out := Document{Metadata: d.Metadata}
	out.Critical = append(Classes(nil), d.Critical...)
	out.NonCritical = append(Classes(nil), d.NonCritical...)
	return out
}

// Validate checks that class names are non-empty, unique and that the two
// categories are disjoint.
func (d Document) Validate() error {
	seen := make(map[string]Category)
	for _, cat := range Categories {
		for _, e := range d.Classes(cat) {
			if e.Name == "" {
				return fmt.Errorf("%w: empty class name in %s", model.ErrValidation, cat)
			}
			if prev, ok := seen[e.Name]; ok {
				return fmt.Errorf("%w: class %s declared in %s and %s", model.ErrValidation, e.Name, prev, cat)
			}
			seen[e.Name] = cat
		}
	}
	if len(seen) == 0 {
		return fmt.Errorf("%w: priority document has no classes", model.ErrValidation)
	}
	return nil
}

// Builtin returns the baseline used when no stored configuration is usable.
func Builtin() Document {
	return Document{
		Metadata: Metadata{Source: "builtin", Description: "Default priorities", Version: "1.0"},
		Critical: Classes{
			{Name: "hospital_equipment", Priority: 1, Rationale: "Critical systems"},
			{Name: "emergency_systems", Priority: 2, Rationale: "Emergency systems"},
		},
		NonCritical: Classes{
			{Name: "general_purpose", Priority: 5, Rationale: "General purpose"},
			{Name: "auxiliary", Priority: 6, Rationale: "Support systems"},
		},
	}
}
