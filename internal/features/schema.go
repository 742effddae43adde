package features

import (
	"errors"
	"fmt"
	"strings"
)

// Kind selects how a slot coerces its raw value.
type Kind int

const (
	// Numeric slots accept numbers, numeric strings and booleans.
	Numeric Kind = iota
	// Categorical slots map known strings through a lookup table.
	Categorical
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Slot is one named, ordered position of the vector a model expects.
type Slot struct {
	// Name is the model-facing feature name.
	Name string
	// Source is the input record key. Empty means Name.
	Source string
	// Aliases are further input keys tried, in order, when Source is absent.
	Aliases []string
	Kind    Kind
	// Default is used for a numeric slot whose key is absent.
	Default float64
	// Lookup maps raw categorical values to the integer codes the model was trained on.
	Lookup map[string]float64
	// Unknown is used for a categorical slot whose value is absent or not in Lookup.
	Unknown float64
	// AcceptCodes lets a value equal to one of Lookup's codes pass through
	// instead of mapping to Unknown.
	AcceptCodes bool
}

// Key returns the input key the slot reads from.
func (s Slot) Key() string {
	if s.Source != "" {
		return s.Source
	}
	return s.Name
}

func (s Slot) value(rec Record) (any, bool) {
	if v, ok := rec[s.Key()]; ok && v != nil {
		return v, true
	}
	for _, alias := range s.Aliases {
		if v, ok := rec[alias]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// Schema is an ordered, validated list of slots. It is immutable once built.
type Schema struct {
	name  string
	slots []Slot
}

// NewSchema validates the slots and returns a schema that owns a private copy of them.
func NewSchema(name string, slots []Slot) (*Schema, error) {
	if len(slots) == 0 {
		return nil, errors.New("schema has no slots")
	}
	seen := make(map[string]struct{}, len(slots))
	copied := make([]Slot, len(slots))
	for i, slot := range slots {
		slot.Name = strings.TrimSpace(slot.Name)
		if slot.Name == "" {
			return nil, fmt.Errorf("slot %d has no name", i)
		}
		if _, dup := seen[slot.Name]; dup {
			return nil, fmt.Errorf("duplicate slot %q", slot.Name)
		}
		seen[slot.Name] = struct{}{}
		slot.Aliases = append([]string(nil), slot.Aliases...)
		switch slot.Kind {
		case Numeric:
		case Categorical:
			if len(slot.Lookup) == 0 {
				return nil, fmt.Errorf("categorical slot %q has no lookup table", slot.Name)
			}
			table := make(map[string]float64, len(slot.Lookup))
			for k, v := range slot.Lookup {
				table[k] = v
			}
			slot.Lookup = table
		default:
			return nil, fmt.Errorf("slot %q has unsupported kind %s", slot.Name, slot.Kind)
		}
		copied[i] = slot
	}
	return &Schema{name: name, slots: copied}, nil
}

// NewNumericSchema builds a schema of numeric slots defaulting to zero.
func NewNumericSchema(name string, names []string) (*Schema, error) {
	slots := make([]Slot, 0, len(names))
	for _, n := range names {
		slots = append(slots, Slot{Name: n, Kind: Numeric})
	}
	return NewSchema(name, slots)
}

// Name returns the schema's task name.
func (s *Schema) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

// Len returns the number of slots, which is also the vector length.
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.slots)
}

// Names returns the slot names in declared order.
func (s *Schema) Names() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.slots))
	for i, slot := range s.slots {
		out[i] = slot.Name
	}
	return out
}

// Keys returns the input keys in declared order.
func (s *Schema) Keys() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.slots))
	for i, slot := range s.slots {
		out[i] = slot.Key()
	}
	return out
}

// Slot returns the slot at index i and whether i is in range.
func (s *Schema) Slot(i int) (Slot, bool) {
	if s == nil || i < 0 || i >= len(s.slots) {
		return Slot{}, false
	}
	return s.slots[i], true
}
