// Package model holds the declarative description of a record: field kinds
// with their wire codecs, the Schema builder enforcing the single primary
// field invariant, and the Record with its lifecycle flags and change
// tracking.
package model

import (
	"fmt"
	"strconv"

	"github.com/sharedcode/kvom"
)

// Kind enumerates the value types a field can carry. Every kind round-trips
// through the hash store's string representation.
type Kind int

const (
	String Kind = iota
	Int
	Float
	Bool
	JSON
	StringList
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case JSON:
		return "json"
	case StringList:
		return "stringlist"
	}
	return "unknown"
}

// Field describes one attribute of a record.
type Field struct {
	Name     string
	Kind     Kind
	Primary  bool
	Required bool
}

// PrimaryField is shorthand for the schema's identifying field; primary
// implies required.
func PrimaryField(name string) Field {
	return Field{Name: name, Kind: String, Primary: true, Required: true}
}

// Encode converts a field value to its wire string.
func (f Field) Encode(v any) (string, error) {
	switch f.Kind {
	case String:
		s, ok := v.(string)
		if !ok {
			return "", f.typeError(v)
		}
		return s, nil
	case Int:
		switch t := v.(type) {
		case int:
			return strconv.Itoa(t), nil
		case int64:
			return strconv.FormatInt(t, 10), nil
		}
		return "", f.typeError(v)
	case Float:
		switch t := v.(type) {
		case float64:
			return strconv.FormatFloat(t, 'g', -1, 64), nil
		case int:
			return strconv.Itoa(t), nil
		}
		return "", f.typeError(v)
	case Bool:
		b, ok := v.(bool)
		if !ok {
			return "", f.typeError(v)
		}
		if b {
			return "1", nil
		}
		return "0", nil
	case JSON, StringList:
		ba, err := kvom.DefaultMarshaler.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("field %s: %w", f.Name, err)
		}
		return string(ba), nil
	}
	return "", f.typeError(v)
}

// Decode converts a wire string back to the field's value type.
func (f Field) Decode(s string) (any, error) {
	switch f.Kind {
	case String:
		return s, nil
	case Int:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		return n, nil
	case Float:
		fl, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		return fl, nil
	case Bool:
		return s == "1" || s == "true", nil
	case JSON:
		var v any
		if err := kvom.DefaultMarshaler.Unmarshal([]byte(s), &v); err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		return v, nil
	case StringList:
		var v []string
		if err := kvom.DefaultMarshaler.Unmarshal([]byte(s), &v); err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("field %s: unknown kind %d", f.Name, f.Kind)
}

func (f Field) typeError(v any) error {
	return fmt.Errorf("field %s holds %T, want %s", f.Name, v, f.Kind)
}
