package model

import "fmt"

// Schema is the validated, immutable description of a record type. Built once
// at startup; exactly one field must be primary.
type Schema struct {
	name   string
	fields []Field
	byName map[string]Field
	pkey   string
}

// NewSchema validates the field set eagerly and returns the schema.
func NewSchema(name string, fields ...Field) (*Schema, error) {
	if name == "" {
		return nil, fmt.Errorf("schema name can't be empty")
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("schema %s has no fields", name)
	}
	s := &Schema{
		name:   name,
		fields: fields,
		byName: make(map[string]Field, len(fields)),
	}
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("schema %s has a field with no name", name)
		}
		if _, dup := s.byName[f.Name]; dup {
			return nil, fmt.Errorf("schema %s declares field %s twice", name, f.Name)
		}
		s.byName[f.Name] = f
		if f.Primary {
			if s.pkey != "" {
				return nil, fmt.Errorf("one primary field allowed, you have: %s %s", f.Name, s.pkey)
			}
			s.pkey = f.Name
		}
	}
	if s.pkey == "" {
		return nil, fmt.Errorf("no primary field specified in %s", name)
	}
	return s, nil
}

// MustSchema is NewSchema that panics on invalid declarations. For package
// level schema variables.
func MustSchema(name string, fields ...Field) *Schema {
	s, err := NewSchema(name, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Name() string {
	return s.name
}

// PrimaryKeyField returns the name of the identifying field.
func (s *Schema) PrimaryKeyField() string {
	return s.pkey
}

// FieldNames returns field names in declaration order. Multi-field reads and
// loads rely on this ordering.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

func (s *Schema) Field(name string) (Field, bool) {
	f, ok := s.byName[name]
	return f, ok
}
