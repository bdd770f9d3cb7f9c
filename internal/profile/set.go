package profile

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/KaramelBytes/sheetlens/internal/table"
)

// Set maps header names to profiles and remembers header order.
type Set struct {
	order  []string
	byName map[string]ColumnProfile
}

// Get returns the profile for a header.
func (s Set) Get(header string) (ColumnProfile, bool) {
	p, ok := s.byName[header]
	return p, ok
}

// Headers returns the distinct header names in table order.
func (s Set) Headers() []string { return append([]string(nil), s.order...) }

func (s Set) Len() int { return len(s.order) }

// Map returns a copy keyed by header.
func (s Set) Map() map[string]ColumnProfile {
	out := make(map[string]ColumnProfile, len(s.byName))
	for k, v := range s.byName {
		out[k] = v
	}
	return out
}

type numericWire struct {
	Type           Type `json:"type" yaml:"type"`
	NumericProfile `yaml:",inline"`
}

type categoricalWire struct {
	Type               Type `json:"type" yaml:"type"`
	CategoricalProfile `yaml:",inline"`
}

// MarshalJSON writes an object keyed by header in table order; each profile
// carries a "type" discriminator.
func (s Set) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, h := range s.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(h)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(wrapJSON(s.byName[h]))
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

func (s *Set) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*s = Set{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("profiles: expected object, got %v", tok)
	}
	out := Set{byName: map[string]ColumnProfile{}}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		h, _ := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("profiles: %s: %w", h, err)
		}
		p, err := unwrap(raw)
		if err != nil {
			return fmt.Errorf("profiles: %s: %w", h, err)
		}
		if _, dup := out.byName[h]; !dup {
			out.order = append(out.order, h)
		}
		out.byName[h] = p
	}
	*s = out
	return nil
}

// MarshalYAML emits an ordered list of header/profile pairs.
func (s Set) MarshalYAML() (any, error) {
	type item struct {
		Header  string `yaml:"header"`
		Profile any    `yaml:"profile"`
	}
	out := make([]item, 0, len(s.order))
	for _, h := range s.order {
		out = append(out, item{Header: h, Profile: wrap(s.byName[h])})
	}
	return out, nil
}

func wrapJSON(p ColumnProfile) any {
	if v, ok := p.(*NumericProfile); ok {
		return v.wire(TypeNumeric)
	}
	return wrap(p)
}

// wrap adds the type discriminator for YAML output.
func wrap(p ColumnProfile) any {
	switch v := p.(type) {
	case *NumericProfile:
		return numericWire{Type: TypeNumeric, NumericProfile: *v}
	case *CategoricalProfile:
		return categoricalWire{Type: TypeCategorical, CategoricalProfile: *v}
	}
	return nil
}

func unwrap(raw json.RawMessage) (ColumnProfile, error) {
	var head struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}
	switch head.Type {
	case TypeNumeric:
		var p NumericProfile
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return &p, nil
	case TypeCategorical:
		var p CategoricalProfile
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		if p.TopValues == nil {
			p.TopValues = []table.Cell{}
		}
		return &p, nil
	}
	return nil, fmt.Errorf("unknown profile type %q", head.Type)
}
