package model

import "testing"

func TestNewSchemaValidation(t *testing.T) {
	if _, err := NewSchema(""); err == nil {
		t.Fatal("empty name accepted")
	}
	if _, err := NewSchema("users"); err == nil {
		t.Fatal("no fields accepted")
	}
	if _, err := NewSchema("users", Field{Name: "a", Kind: String}); err == nil {
		t.Fatal("no primary field accepted")
	}
	if _, err := NewSchema("users",
		PrimaryField("id"),
		Field{Name: "id", Kind: Int},
	); err == nil {
		t.Fatal("duplicate field accepted")
	}
	if _, err := NewSchema("users",
		PrimaryField("id"),
		PrimaryField("other"),
	); err == nil {
		t.Fatal("two primary fields accepted")
	}
}

func TestSchemaAccessors(t *testing.T) {
	s := MustSchema("users",
		PrimaryField("id"),
		Field{Name: "name", Kind: String, Required: true},
		Field{Name: "age", Kind: Int},
	)
	if s.Name() != "users" || s.PrimaryKeyField() != "id" {
		t.Fatalf("%s / %s", s.Name(), s.PrimaryKeyField())
	}
	names := s.FieldNames()
	if len(names) != 3 || names[0] != "id" || names[1] != "name" || names[2] != "age" {
		t.Fatalf("declaration order lost: %v", names)
	}
	f, ok := s.Field("age")
	if !ok || f.Kind != Int {
		t.Fatalf("field lookup: %v, %v", f, ok)
	}
	if _, ok := s.Field("missing"); ok {
		t.Fatal("phantom field")
	}
}

func TestMustSchemaPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	MustSchema("bad", Field{Name: "a", Kind: String})
}

func TestFieldCodecs(t *testing.T) {
	cases := []struct {
		kind Kind
		v    any
		wire string
	}{
		{String, "hello", "hello"},
		{Int, int64(-7), "-7"},
		{Int, 42, "42"},
		{Float, 1.5, "1.5"},
		{Bool, true, "1"},
		{Bool, false, "0"},
		{StringList, []string{"a", "b"}, `["a","b"]`},
	}
	for _, tc := range cases {
		f := Field{Name: "f", Kind: tc.kind}
		s, err := f.Encode(tc.v)
		if err != nil || s != tc.wire {
			t.Fatalf("%s encode(%v): %q, %v", tc.kind, tc.v, s, err)
		}
	}

	// Encoding a mistyped value fails.
	f := Field{Name: "f", Kind: Int}
	if _, err := f.Encode("not a number"); err == nil {
		t.Fatal("mistyped encode accepted")
	}

	if v, err := (Field{Name: "f", Kind: Int}).Decode("17"); err != nil || v != int64(17) {
		t.Fatalf("int decode: %v, %v", v, err)
	}
	if v, err := (Field{Name: "f", Kind: Bool}).Decode("1"); err != nil || v != true {
		t.Fatalf("bool decode: %v, %v", v, err)
	}
	if _, err := (Field{Name: "f", Kind: Float}).Decode("x"); err == nil {
		t.Fatal("bad float decoded")
	}
	v, err := (Field{Name: "f", Kind: StringList}).Decode(`["x","y"]`)
	if err != nil {
		t.Fatal(err)
	}
	if l := v.([]string); len(l) != 2 || l[0] != "x" {
		t.Fatalf("list decode %v", l)
	}
}
