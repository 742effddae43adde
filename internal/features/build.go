package features

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Record is a loosely typed input: decoded JSON or flattened form values.
type Record map[string]any

// FromForm flattens form values, keeping the first value of each key.
func FromForm(values url.Values) Record {
	rec := make(Record, len(values))
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		rec[key] = vals[0]
	}
	return rec
}

// InputError reports a present value that cannot be coerced to a number.
type InputError struct {
	Field string
	Value any
	Err   error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid value %v for %s: expected a number", e.Value, e.Field)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// IsInputError reports whether err carries an InputError.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

var errNotNumeric = errors.New("not numeric")

// Build maps the record onto the schema in slot order. Absent keys take the
// slot default; the only failure is a numeric slot holding uncoercible text.
func Build(schema *Schema, rec Record) ([]float64, error) {
	if schema == nil {
		return nil, errors.New("schema is nil")
	}
	vector := make([]float64, len(schema.slots))
	for i, slot := range schema.slots {
		raw, ok := slot.value(rec)
		if !ok {
			if slot.Kind == Categorical {
				vector[i] = slot.Unknown
			} else {
				vector[i] = slot.Default
			}
			continue
		}
		switch slot.Kind {
		case Categorical:
			vector[i] = lookup(slot, raw)
		default:
			v, err := toFloat(raw)
			if err != nil {
				return nil, &InputError{Field: slot.Key(), Value: raw, Err: err}
			}
			vector[i] = v
		}
	}
	return vector, nil
}

func lookup(slot Slot, raw any) float64 {
	var key string
	switch v := raw.(type) {
	case string:
		key = strings.TrimSpace(v)
	case json.Number:
		key = v.String()
	case float64:
		key = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		key = strconv.Itoa(v)
	default:
		key = fmt.Sprint(v)
	}
	if code, ok := slot.Lookup[key]; ok {
		return code
	}
	if !slot.AcceptCodes {
		return slot.Unknown
	}
	if n, err := strconv.ParseFloat(key, 64); err == nil {
		for _, code := range slot.Lookup {
			if code == n {
				return code
			}
		}
	}
	return slot.Unknown
}

func toFloat(raw any) (float64, error) {
	var v float64
	switch t := raw.(type) {
	case float64:
		v = t
	case float32:
		v = float64(t)
	case int:
		v = float64(t)
	case int64:
		v = float64(t)
	case int32:
		v = float64(t)
	case uint:
		v = float64(t)
	case uint64:
		v = float64(t)
	case bool:
		if t {
			v = 1
		}
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, err
		}
		v = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, err
		}
		v = f
	default:
		return 0, errNotNumeric
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNotNumeric
	}
	return v, nil
}
