package value

import (
	"testing"

	"github.com/dr8co/tang/unicodeseg"
)

func TestIntegerArithmetic(t *testing.T) {
	tests := []struct {
		a, b int64
		op   func(a, b *Value) *Value
		want int64
	}{
		{2, 3, func(a, b *Value) *Value { return a.Add(nil, b) }, 5},
		{5, 3, func(a, b *Value) *Value { return a.Subtract(nil, b) }, 2},
		{4, 3, func(a, b *Value) *Value { return a.Multiply(nil, b) }, 12},
		{10, 2, func(a, b *Value) *Value { return a.Divide(nil, b) }, 5},
		{10, 3, func(a, b *Value) *Value { return a.Modulo(nil, b) }, 1},
	}

	for _, tt := range tests {
		a := NewInteger(nil, tt.a)
		b := NewInteger(nil, tt.b)
		got := tt.op(a, b)
		if got.Kind != KindInteger || got.I != tt.want {
			t.Errorf("%d op %d = %v, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestDivisionByZero(t *testing.T) {
	a := NewInteger(nil, 1)
	b := NewInteger(nil, 0)
	got := a.Divide(nil, b)
	if !got.IsError() || got.ErrKind != ErrDivideByZero {
		t.Errorf("expected division-by-zero error, got %v", got)
	}
}

func TestTypeMismatch(t *testing.T) {
	a := NewInteger(nil, 1)
	b := NewString(nil, "x")
	got := a.Add(nil, b)
	if !got.IsError() || got.ErrKind != ErrNotSupported {
		t.Errorf("expected not-supported error, got %v", got)
	}
}

func TestStringConcatAndEqual(t *testing.T) {
	a := NewString(nil, "foo")
	b := NewString(nil, "bar")
	got := a.Add(nil, b)
	if got.Kind != KindString || got.S != "foobar" {
		t.Errorf("expected \"foobar\", got %v", got)
	}

	c := NewString(nil, "foo")
	if !a.Equal(c) {
		t.Errorf("expected equal strings to compare equal")
	}
	if a.Equal(b) {
		t.Errorf("expected different strings to compare unequal")
	}
}

func TestStringSizeIsGraphemeCorrect(t *testing.T) {
	// "é" is a single grapheme cluster (e + combining acute accent)
	// but two runes, so a grapheme-correct .size must report 1.
	s := NewString(nil, "é")
	got := s.Attribute(nil, "size")
	if got.Kind != KindInteger || got.I != 1 {
		t.Errorf("expected size 1, got %v", got)
	}
}

func TestArrayIndexAndSlice(t *testing.T) {
	a := NewArray(nil, []*Value{NewInteger(nil, 1), NewInteger(nil, 2), NewInteger(nil, 3)})

	got := a.Index(nil, NewInteger(nil, 1))
	if got.Kind != KindInteger || got.I != 2 {
		t.Errorf("expected 2, got %v", got)
	}

	sliced := a.Slice(nil, NewInteger(nil, 0), NewInteger(nil, 2), nil)
	if sliced.Kind != KindArray || len(sliced.A) != 2 {
		t.Errorf("expected a 2-element slice, got %v", sliced)
	}
}

func TestArrayNegativeIndex(t *testing.T) {
	a := NewArray(nil, []*Value{NewInteger(nil, 1), NewInteger(nil, 2), NewInteger(nil, 3)})
	got := a.Index(nil, NewInteger(nil, -1))
	if got.Kind != KindInteger || got.I != 3 {
		t.Errorf("expected 3, got %v", got)
	}
}

func TestArrayIndexOutOfBounds(t *testing.T) {
	a := NewArray(nil, []*Value{NewInteger(nil, 1)})
	got := a.Index(nil, NewInteger(nil, 5))
	if !got.IsError() || got.ErrKind != ErrInvalidIndex {
		t.Errorf("expected invalid-index error, got %v", got)
	}
}

func TestCastStringToInt(t *testing.T) {
	s := NewString(nil, "42")
	got := s.Cast(nil, KindInteger)
	if got.Kind != KindInteger || got.I != 42 {
		t.Errorf("expected 42, got %v", got)
	}
}

func TestCastInvalidStringToInt(t *testing.T) {
	s := NewString(nil, "not a number")
	got := s.Cast(nil, KindInteger)
	if !got.IsError() || got.ErrKind != ErrNotSupported {
		t.Errorf("expected not-supported error, got %v", got)
	}
}

func TestMapAttribute(t *testing.T) {
	m := NewMap(nil, map[string]*Value{"a": NewInteger(nil, 1)})
	got := m.Attribute(nil, "a")
	if got.Kind != KindInteger || got.I != 1 {
		t.Errorf("expected 1, got %v", got)
	}
}

func TestIteratorOverArray(t *testing.T) {
	iter := NewIteratorArray(nil, []*Value{NewInteger(nil, 10), NewInteger(nil, 20)})

	v, ok := iter.Iter.Next(nil)
	if !ok || v.I != 10 {
		t.Errorf("expected 10, got %v, ok=%v", v, ok)
	}
	v, ok = iter.Iter.Next(nil)
	if !ok || v.I != 20 {
		t.Errorf("expected 20, got %v, ok=%v", v, ok)
	}
	_, ok = iter.Iter.Next(nil)
	if ok {
		t.Errorf("expected iterator to be exhausted")
	}
}

func TestLess(t *testing.T) {
	a := NewInteger(nil, 1)
	b := NewInteger(nil, 2)
	if !a.Less(b) {
		t.Errorf("expected 1 < 2")
	}
	if b.Less(a) {
		t.Errorf("expected 2 not< 1")
	}
}

func TestNegateAndNot(t *testing.T) {
	a := NewInteger(nil, 5)
	if got := a.Negate(nil); got.I != -5 {
		t.Errorf("expected -5, got %v", got)
	}

	if got := True.Not(nil); got != False {
		t.Errorf("expected False, got %v", got)
	}
}

func TestNullAndSingletons(t *testing.T) {
	if Null.Kind != KindNull {
		t.Errorf("expected Null singleton to have KindNull")
	}
	if !True.IsTrue() || False.IsTrue() {
		t.Errorf("expected True.IsTrue()=true, False.IsTrue()=false")
	}
}

func TestErrorSingletons(t *testing.T) {
	a := ErrorValue(ErrDivideByZero)
	b := ErrorValue(ErrDivideByZero)
	if a != b {
		t.Errorf("expected one shared value per error kind")
	}
	if !a.IsError() || a.Flags&FlagIsSingleton == 0 {
		t.Errorf("expected an error singleton, got %v", a)
	}
	if a.IsTrue() {
		t.Errorf("expected error singletons to be falsy")
	}

	// Dividing by zero must hand back the singleton, not a fresh value.
	got := NewInteger(nil, 1).Divide(nil, NewInteger(nil, 0))
	if got != ErrorValue(ErrDivideByZero) {
		t.Errorf("expected the divide-by-zero singleton, got %v", got)
	}
	got = NewInteger(nil, 1).Modulo(nil, NewInteger(nil, 0))
	if got != ErrorValue(ErrModuloByZero) {
		t.Errorf("expected the modulo-by-zero singleton, got %v", got)
	}
}

func TestMapKeyErrors(t *testing.T) {
	m := NewMap(nil, map[string]*Value{"a": NewInteger(nil, 1)})

	got := m.Index(nil, NewString(nil, "missing"))
	if got != ErrorValue(ErrMapKeyNotFound) {
		t.Errorf("expected the map-key-not-found singleton, got %v", got)
	}
	got = m.Index(nil, NewInteger(nil, 1))
	if got != ErrorValue(ErrMapKeyNotString) {
		t.Errorf("expected the map-key-not-string singleton, got %v", got)
	}
}

func TestMapSetAttributeWritesEntries(t *testing.T) {
	m := NewMap(nil, map[string]*Value{"a": NewInteger(nil, 1)})
	m.SetAttribute("a", NewInteger(nil, 10))
	got := m.Attribute(nil, "a")
	if got.Kind != KindInteger || got.I != 10 {
		t.Errorf("expected 10 after attribute write, got %v", got)
	}
}

func TestRenderAttributesTagWithoutEscaping(t *testing.T) {
	s := NewString(nil, "a&b")
	tagged := s.Attribute(nil, "html")
	if tagged.Kind != KindString || tagged.S != "a&b" {
		t.Fatalf("expected the raw text to survive tagging, got %v", tagged)
	}
	if got := unicodeseg.Render(tagged.Tagged()); got != "a&amp;b" {
		t.Errorf("rendered: got %q, want %q", got, "a&amp;b")
	}

	// Concatenation keeps each side's policy per range.
	mixed := tagged.Add(nil, NewString(nil, "<i>"))
	if mixed.S != "a&b<i>" {
		t.Fatalf("unexpected concatenated text %q", mixed.S)
	}
	if got := unicodeseg.Render(mixed.Tagged()); got != "a&amp;b<i>" {
		t.Errorf("rendered concat: got %q, want %q", got, "a&amp;b<i>")
	}

	// .trusted strips the tag again.
	trusted := tagged.Attribute(nil, "trusted")
	if trusted.Ranges != nil {
		t.Errorf("expected .trusted to drop render tags, got %#v", trusted.Ranges)
	}
}
