// Package value implements Tang's runtime value model: a tagged [Value]
// with a per-kind operator dispatch table, flag bits, and a per-instance
// attribute map for user-defined fields and read-only built-in properties.
//
// Values never import package runtime (the execution context that owns
// them) to avoid a cycle; instead each Value holds an [Owner], the minimal
// interface runtime's context type satisfies.
package value

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dr8co/tang/unicodeseg"
)

// Kind identifies a Value's concrete runtime type.
type Kind uint8

// Concrete value kinds.
const (
	KindNull Kind = iota
	KindBoolean
	KindInteger
	KindFloat
	KindString
	KindArray
	KindMap
	KindFunction
	KindNativeFunction
	KindIterator
	KindError
	KindRNG
)

// String returns the kind's lowercase name, as used by `as` cast targets
// and printed type names.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBoolean:
		return "bool"
	case KindInteger:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	case KindFunction:
		return "function"
	case KindNativeFunction:
		return "native_function"
	case KindIterator:
		return "iterator"
	case KindError:
		return "error"
	case KindRNG:
		return "rng"
	default:
		return "unknown"
	}
}

// ErrorKind enumerates the error singletons a runtime operation can
// produce. The enumeration is closed; new kinds append.
type ErrorKind uint8

// Built-in error kinds, each backed by a process-wide singleton Value
// (see ErrorValue).
const (
	ErrNone ErrorKind = iota
	ErrOutOfMemory
	ErrDivideByZero
	ErrModuloByZero
	ErrInvalidIndex
	ErrInvalidFunctionCall
	ErrArgumentCountMismatch
	ErrNotImplemented
	ErrNotSupported
	ErrInvalidBytecode
	ErrIteratorEnd
	ErrMapKeyNotFound
	ErrMapKeyNotString
	ErrFunctionRedeclared
	ErrIdentifierRedeclared
	ErrGlobalRNGSeedNotChangeable
	ErrParseErrorOutOfMemory
)

// Flags are bit flags describing a Value's runtime disposition.
type Flags uint8

// Flag bits.
const (
	FlagIsTrue Flags = 1 << iota
	FlagIsError
	FlagIsTemporary
	FlagIsSingleton
	FlagIsReference
)

// Owner is the minimal interface a Value's execution-context back-pointer
// needs. It is satisfied by runtime.Context without value importing
// runtime, breaking the otherwise-unavoidable import cycle (runtime holds
// Values on its operand stack and so must import value; value must not
// import runtime back).
type Owner interface {
	// Register adds v to the owning context's GC arena, to be released
	// (along with every other registered value) when the context tears
	// down.
	Register(v *Value)

	// Library resolves a library name (from the context's library table)
	// to its Value, a map of the library's members, or reports it
	// unresolved.
	Library(name string) (*Value, bool)
}

// Vtable is the per-kind operator dispatch table. Every slot may be nil,
// meaning the operation is unsupported for that kind; callers fall back to
// the not-supported error singleton in that case. Modeled as a
// struct-of-function-pointers rather than a type switch in each
// operator. The x86_64 native code generator does not call through it;
// it emits its own arithmetic for the scalar kinds it supports.
type Vtable struct {
	Add      func(owner Owner, a, b *Value) *Value
	Subtract func(owner Owner, a, b *Value) *Value
	Multiply func(owner Owner, a, b *Value) *Value
	Divide   func(owner Owner, a, b *Value) *Value
	Modulo   func(owner Owner, a, b *Value) *Value
	Negate   func(owner Owner, a *Value) *Value
	Not      func(owner Owner, a *Value) *Value
	Equal    func(a, b *Value) bool
	Less     func(a, b *Value) bool
	ToString func(a *Value) string
	Index    func(owner Owner, a, idx *Value) *Value
	SetIndex func(owner Owner, a, idx, v *Value) *Value
	Slice    func(owner Owner, a, begin, end, skip *Value) *Value
	Attribute func(owner Owner, a *Value, name string) *Value
	Cast      func(owner Owner, a *Value, target Kind) *Value
	Iterate   func(owner Owner, a *Value) *Value // returns an iterator Value
}

// vtables is the table-of-tables indexed by Kind, populated in init().
var vtables [KindRNG + 1]*Vtable

// Value is a tagged runtime value. Exactly one of the payload fields is
// meaningful, selected by Kind.
type Value struct {
	Kind  Kind
	Flags Flags
	owner Owner

	I int64
	F float64
	S string
	A []*Value
	M map[string]*Value

	// Ranges carries a string value's per-grapheme-range render-type tags
	// (set by the .html/.html-attribute/.javascript/.percent attributes and
	// preserved across concatenation). nil means the whole string is
	// Trusted. The escape policy is applied per range when composed output
	// is finally rendered, not here.
	Ranges []unicodeseg.Range

	Fn      *Function
	Native  NativeFunc
	Iter    *Iterator
	ErrKind ErrorKind
	ErrMsg  string
	Attrs   map[string]*Value
}

// Tagged returns a string value's text with its render-type ranges,
// defaulting to a single Trusted range for strings that never passed
// through a render attribute.
func (v *Value) Tagged() unicodeseg.TaggedString {
	if v.Ranges != nil {
		return unicodeseg.TaggedString{Text: v.S, Ranges: v.Ranges}
	}
	return unicodeseg.Plain(v.S)
}

// NativeFunc is a host-provided function, called with the owning context
// and the argument list, returning the result Value.
type NativeFunc func(owner Owner, args []*Value) *Value

// Function is a compiled (or not-yet-compiled) Tang function value.
type Function struct {
	Name string

	// ParameterNames holds each parameter's mangled local name, in
	// declaration order, so a call can bind argument i into the callee's
	// local environment under ParameterNames[i].
	ParameterNames []string
	NumParameters  int
	NumLocals      int
	Instructions   []byte // set by the bytecode compiler
	Native         []byte // set by the x86_64 JIT if native compilation succeeded
}

// Iterator is the runtime cursor produced by OpIterInit, walking an
// array's elements or a map's values.
type Iterator struct {
	array []*Value
	keys  []string
	m     map[string]*Value
	pos   int
}

// singletons for null/true/false, created once and marked FlagIsSingleton
// so the arena GC (and equality checks) can special-case them instead of
// allocating a fresh Value on every evaluation of a literal.
var (
	Null  = &Value{Kind: KindNull, Flags: FlagIsSingleton}
	True  = &Value{Kind: KindBoolean, Flags: FlagIsTrue | FlagIsSingleton}
	False = &Value{Kind: KindBoolean, Flags: FlagIsSingleton}
)

// errorValues holds the process-wide error singletons, one per ErrorKind.
// Like Null/True/False they are immutable, never arena-registered, and
// never freed; a failed operation returns the shared Value for its kind
// and the message is the kind's, not the call site's.
var errorValues = [...]*Value{
	ErrOutOfMemory:                {Kind: KindError, ErrKind: ErrOutOfMemory, ErrMsg: "out of memory", Flags: FlagIsError | FlagIsSingleton},
	ErrDivideByZero:               {Kind: KindError, ErrKind: ErrDivideByZero, ErrMsg: "divide by zero", Flags: FlagIsError | FlagIsSingleton},
	ErrModuloByZero:               {Kind: KindError, ErrKind: ErrModuloByZero, ErrMsg: "modulo by zero", Flags: FlagIsError | FlagIsSingleton},
	ErrInvalidIndex:               {Kind: KindError, ErrKind: ErrInvalidIndex, ErrMsg: "invalid index", Flags: FlagIsError | FlagIsSingleton},
	ErrInvalidFunctionCall:        {Kind: KindError, ErrKind: ErrInvalidFunctionCall, ErrMsg: "invalid function call", Flags: FlagIsError | FlagIsSingleton},
	ErrArgumentCountMismatch:      {Kind: KindError, ErrKind: ErrArgumentCountMismatch, ErrMsg: "argument count mismatch", Flags: FlagIsError | FlagIsSingleton},
	ErrNotImplemented:             {Kind: KindError, ErrKind: ErrNotImplemented, ErrMsg: "not implemented", Flags: FlagIsError | FlagIsSingleton},
	ErrNotSupported:               {Kind: KindError, ErrKind: ErrNotSupported, ErrMsg: "not supported", Flags: FlagIsError | FlagIsSingleton},
	ErrInvalidBytecode:            {Kind: KindError, ErrKind: ErrInvalidBytecode, ErrMsg: "invalid bytecode", Flags: FlagIsError | FlagIsSingleton},
	ErrIteratorEnd:                {Kind: KindError, ErrKind: ErrIteratorEnd, ErrMsg: "iterator end", Flags: FlagIsError | FlagIsSingleton},
	ErrMapKeyNotFound:             {Kind: KindError, ErrKind: ErrMapKeyNotFound, ErrMsg: "map key not found", Flags: FlagIsError | FlagIsSingleton},
	ErrMapKeyNotString:            {Kind: KindError, ErrKind: ErrMapKeyNotString, ErrMsg: "map key not string", Flags: FlagIsError | FlagIsSingleton},
	ErrFunctionRedeclared:         {Kind: KindError, ErrKind: ErrFunctionRedeclared, ErrMsg: "function redeclared", Flags: FlagIsError | FlagIsSingleton},
	ErrIdentifierRedeclared:       {Kind: KindError, ErrKind: ErrIdentifierRedeclared, ErrMsg: "identifier redeclared", Flags: FlagIsError | FlagIsSingleton},
	ErrGlobalRNGSeedNotChangeable: {Kind: KindError, ErrKind: ErrGlobalRNGSeedNotChangeable, ErrMsg: "global rng seed not changeable", Flags: FlagIsError | FlagIsSingleton},
	ErrParseErrorOutOfMemory:      {Kind: KindError, ErrKind: ErrParseErrorOutOfMemory, ErrMsg: "parse error: out of memory", Flags: FlagIsError | FlagIsSingleton},
}

// ErrorValue returns the process-wide error singleton for kind.
func ErrorValue(kind ErrorKind) *Value {
	if int(kind) < len(errorValues) && errorValues[kind] != nil {
		return errorValues[kind]
	}
	return errorValues[ErrNotSupported]
}

// Bool returns the True or False singleton for b.
func Bool(b bool) *Value {
	if b {
		return True
	}
	return False
}

// NewInteger creates a temporary integer Value, registering it with owner
// for later GC release.
func NewInteger(owner Owner, v int64) *Value {
	val := &Value{Kind: KindInteger, I: v, Flags: FlagIsTemporary}
	if owner != nil {
		owner.Register(val)
	}
	return val
}

// NewFloat creates a temporary float Value.
func NewFloat(owner Owner, v float64) *Value {
	val := &Value{Kind: KindFloat, F: v, Flags: FlagIsTemporary}
	if owner != nil {
		owner.Register(val)
	}
	return val
}

// NewString creates a temporary string Value.
func NewString(owner Owner, v string) *Value {
	val := &Value{Kind: KindString, S: v, Flags: FlagIsTemporary}
	if owner != nil {
		owner.Register(val)
	}
	return val
}

// newTagged wraps s as a string Value carrying a single render-type
// range, the shape the .html/.html-attribute/.javascript/.percent
// attributes produce.
func newTagged(owner Owner, s string, t unicodeseg.RenderType) *Value {
	val := NewString(owner, s)
	val.Ranges = unicodeseg.Tagged(s, t).Ranges
	return val
}

// NewArray creates a temporary array Value wrapping elems.
func NewArray(owner Owner, elems []*Value) *Value {
	val := &Value{Kind: KindArray, A: elems, Flags: FlagIsTemporary}
	if owner != nil {
		owner.Register(val)
	}
	return val
}

// NewMap creates a temporary map Value wrapping pairs.
func NewMap(owner Owner, pairs map[string]*Value) *Value {
	val := &Value{Kind: KindMap, M: pairs, Flags: FlagIsTemporary}
	if owner != nil {
		owner.Register(val)
	}
	return val
}

// NewFunction wraps fn as a callable Value.
func NewFunction(owner Owner, fn *Function) *Value {
	val := &Value{Kind: KindFunction, Fn: fn, Flags: FlagIsTemporary}
	if owner != nil {
		owner.Register(val)
	}
	return val
}

// NewNativeFunction wraps a host function as a callable Value.
func NewNativeFunction(owner Owner, fn NativeFunc) *Value {
	val := &Value{Kind: KindNativeFunction, Native: fn, Flags: FlagIsTemporary}
	if owner != nil {
		owner.Register(val)
	}
	return val
}

// NewIteratorArray creates an iterator Value over an array.
func NewIteratorArray(owner Owner, elems []*Value) *Value {
	val := &Value{Kind: KindIterator, Iter: &Iterator{array: elems}, Flags: FlagIsTemporary}
	if owner != nil {
		owner.Register(val)
	}
	return val
}

// NewIteratorMap creates an iterator Value yielding a map's values; the
// order is that of Go's map iteration when the iterator is created, so it
// is not defined.
func NewIteratorMap(owner Owner, m map[string]*Value) *Value {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	val := &Value{Kind: KindIterator, Iter: &Iterator{keys: keys, m: m}, Flags: FlagIsTemporary}
	if owner != nil {
		owner.Register(val)
	}
	return val
}

// NewRNG creates a random-number-generator Value. The generator state
// itself lives with whoever builds the value (the runtime's random
// library); the Value carries the draw/seed operations in its Attrs.
func NewRNG(owner Owner) *Value {
	val := &Value{Kind: KindRNG, Flags: FlagIsTemporary}
	if owner != nil {
		owner.Register(val)
	}
	return val
}

// Next advances the iterator, returning the next element and true, or nil
// and false once exhausted.
func (it *Iterator) Next(owner Owner) (*Value, bool) {
	if it.array != nil {
		if it.pos >= len(it.array) {
			return nil, false
		}
		v := it.array[it.pos]
		it.pos++
		return v, true
	}
	if it.pos >= len(it.keys) {
		return nil, false
	}
	k := it.keys[it.pos]
	it.pos++
	return it.m[k], true
}

// IsTrue reports whether v is truthy: non-null, non-false, non-zero,
// non-empty.
func (v *Value) IsTrue() bool {
	switch v.Kind {
	case KindNull:
		return false
	case KindBoolean:
		return v.Flags&FlagIsTrue != 0
	case KindInteger:
		return v.I != 0
	case KindFloat:
		return v.F != 0
	case KindString:
		return v.S != ""
	case KindArray:
		return len(v.A) != 0
	case KindMap:
		return len(v.M) != 0
	case KindError:
		return false
	default:
		return true
	}
}

// IsError reports whether v is an error value.
func (v *Value) IsError() bool { return v.Flags&FlagIsError != 0 }

// Owner returns the Value's owning execution context, if any.
func (v *Value) Owner() Owner { return v.owner }

// SetOwner attaches owner to v (used when a Value crosses into a new
// context, e.g. a library function's return value).
func (v *Value) SetOwner(owner Owner) { v.owner = owner }

// Attribute looks up a user-set attribute or a built-in read-only
// property (.size, .html, .javascript, .percent, .trusted) by dispatching
// through the Value's vtable, falling back to the Attrs map for
// user-defined fields on non-map values (a map's fields live in its own
// entries).
func (v *Value) Attribute(owner Owner, name string) *Value {
	if vt := vtables[v.Kind]; vt != nil && vt.Attribute != nil {
		if r := vt.Attribute(owner, v, name); r != nil {
			return r
		}
	}
	if v.Attrs != nil {
		if a, ok := v.Attrs[name]; ok {
			return a
		}
	}
	return ErrorValue(ErrNotSupported)
}

// SetAttribute records a user-defined attribute on v. For map values the
// attribute and index namespaces are one and the same, so the write goes
// into the map's own entries where the Attribute handler reads from.
func (v *Value) SetAttribute(name string, val *Value) {
	if v.Kind == KindMap {
		v.M[name] = val
		return
	}
	if v.Attrs == nil {
		v.Attrs = make(map[string]*Value)
	}
	v.Attrs[name] = val
}

// vt returns v's vtable, or an empty one if its kind registered none.
func (v *Value) vt() *Vtable {
	if t := vtables[v.Kind]; t != nil {
		return t
	}
	return &Vtable{}
}

// Add, Subtract, Multiply, Divide, Modulo, Negate and Not dispatch the
// corresponding binary/unary operator through v's vtable, producing the
// not-supported error singleton for a kind that leaves the slot nil
// (operators that simply make no sense on that kind, e.g. negating a map).

func (v *Value) Add(owner Owner, b *Value) *Value {
	if f := v.vt().Add; f != nil {
		return f(owner, v, b)
	}
	return ErrorValue(ErrNotSupported)
}

func (v *Value) Subtract(owner Owner, b *Value) *Value {
	if f := v.vt().Subtract; f != nil {
		return f(owner, v, b)
	}
	return ErrorValue(ErrNotSupported)
}

func (v *Value) Multiply(owner Owner, b *Value) *Value {
	if f := v.vt().Multiply; f != nil {
		return f(owner, v, b)
	}
	return ErrorValue(ErrNotSupported)
}

func (v *Value) Divide(owner Owner, b *Value) *Value {
	if f := v.vt().Divide; f != nil {
		return f(owner, v, b)
	}
	return ErrorValue(ErrNotSupported)
}

func (v *Value) Modulo(owner Owner, b *Value) *Value {
	if f := v.vt().Modulo; f != nil {
		return f(owner, v, b)
	}
	return ErrorValue(ErrNotSupported)
}

func (v *Value) Negate(owner Owner) *Value {
	if f := v.vt().Negate; f != nil {
		return f(owner, v)
	}
	return ErrorValue(ErrNotSupported)
}

func (v *Value) Not(owner Owner) *Value {
	if f := v.vt().Not; f != nil {
		return f(owner, v)
	}
	return Bool(!v.IsTrue())
}

// Equal reports whether v equals other, falling back to pointer identity
// for a kind with no Equal slot.
func (v *Value) Equal(other *Value) bool {
	if f := v.vt().Equal; f != nil {
		return f(v, other)
	}
	return v == other
}

// Less reports whether v orders before other, for kinds that support
// relational comparison. Unsupported kinds always compare false.
func (v *Value) Less(other *Value) bool {
	if f := v.vt().Less; f != nil {
		return f(v, other)
	}
	return false
}

// Index, SetIndex and Slice dispatch v's subscripting operators.
func (v *Value) Index(owner Owner, idx *Value) *Value {
	if f := v.vt().Index; f != nil {
		return f(owner, v, idx)
	}
	return ErrorValue(ErrNotSupported)
}

func (v *Value) SetIndex(owner Owner, idx, val *Value) *Value {
	if f := v.vt().SetIndex; f != nil {
		return f(owner, v, idx, val)
	}
	return ErrorValue(ErrNotSupported)
}

func (v *Value) Slice(owner Owner, begin, end, skip *Value) *Value {
	if f := v.vt().Slice; f != nil {
		return f(owner, v, begin, end, skip)
	}
	return ErrorValue(ErrNotSupported)
}

// Cast converts v to target, dispatching through v's vtable.
func (v *Value) Cast(owner Owner, target Kind) *Value {
	if f := v.vt().Cast; f != nil {
		return f(owner, v, target)
	}
	return ErrorValue(ErrNotSupported)
}

// Iterate produces an iterator Value walking v's elements, for the kinds
// that support `for (x : v)`.
func (v *Value) Iterate(owner Owner) *Value {
	if f := v.vt().Iterate; f != nil {
		return f(owner, v)
	}
	return ErrorValue(ErrNotSupported)
}

// String renders v for printing/concatenation, dispatching through the
// vtable.
func (v *Value) String() string {
	if vt := vtables[v.Kind]; vt != nil && vt.ToString != nil {
		return vt.ToString(v)
	}
	return v.Kind.String()
}

func init() {
	vtables[KindNull] = &Vtable{
		ToString: func(*Value) string { return "null" },
		Equal:    func(a, b *Value) bool { return b.Kind == KindNull },
	}
	vtables[KindBoolean] = &Vtable{
		ToString: func(a *Value) string { return strconv.FormatBool(a.Flags&FlagIsTrue != 0) },
		Equal:    func(a, b *Value) bool { return b.Kind == KindBoolean && a.IsTrue() == b.IsTrue() },
		Not:      func(owner Owner, a *Value) *Value { return Bool(!a.IsTrue()) },
	}
	vtables[KindInteger] = &Vtable{
		ToString: func(a *Value) string { return strconv.FormatInt(a.I, 10) },
		Equal:    func(a, b *Value) bool { return b.Kind == KindInteger && a.I == b.I },
		Less:     func(a, b *Value) bool { return b.Kind == KindInteger && a.I < b.I },
		Add: func(owner Owner, a, b *Value) *Value {
			if b.Kind != KindInteger {
				return ErrorValue(ErrNotSupported)
			}
			return NewInteger(owner, a.I+b.I)
		},
		Subtract: func(owner Owner, a, b *Value) *Value {
			if b.Kind != KindInteger {
				return ErrorValue(ErrNotSupported)
			}
			return NewInteger(owner, a.I-b.I)
		},
		Multiply: func(owner Owner, a, b *Value) *Value {
			if b.Kind != KindInteger {
				return ErrorValue(ErrNotSupported)
			}
			return NewInteger(owner, a.I*b.I)
		},
		Divide: func(owner Owner, a, b *Value) *Value {
			if b.Kind != KindInteger {
				return ErrorValue(ErrNotSupported)
			}
			if b.I == 0 {
				return ErrorValue(ErrDivideByZero)
			}
			return NewInteger(owner, a.I/b.I)
		},
		Modulo: func(owner Owner, a, b *Value) *Value {
			if b.Kind != KindInteger {
				return ErrorValue(ErrNotSupported)
			}
			if b.I == 0 {
				return ErrorValue(ErrModuloByZero)
			}
			return NewInteger(owner, a.I%b.I)
		},
		Negate: func(owner Owner, a *Value) *Value { return NewInteger(owner, -a.I) },
		Cast: func(owner Owner, a *Value, target Kind) *Value {
			switch target {
			case KindInteger:
				return a
			case KindFloat:
				return NewFloat(owner, float64(a.I))
			case KindString:
				return NewString(owner, strconv.FormatInt(a.I, 10))
			case KindBoolean:
				return Bool(a.I != 0)
			}
			return ErrorValue(ErrNotSupported)
		},
	}
	vtables[KindFloat] = &Vtable{
		ToString: func(a *Value) string { return strconv.FormatFloat(a.F, 'g', -1, 64) },
		Equal:    func(a, b *Value) bool { return b.Kind == KindFloat && a.F == b.F },
		Less:     func(a, b *Value) bool { return b.Kind == KindFloat && a.F < b.F },
		Add: func(owner Owner, a, b *Value) *Value {
			if b.Kind != KindFloat {
				return ErrorValue(ErrNotSupported)
			}
			return NewFloat(owner, a.F+b.F)
		},
		Subtract: func(owner Owner, a, b *Value) *Value {
			if b.Kind != KindFloat {
				return ErrorValue(ErrNotSupported)
			}
			return NewFloat(owner, a.F-b.F)
		},
		Multiply: func(owner Owner, a, b *Value) *Value {
			if b.Kind != KindFloat {
				return ErrorValue(ErrNotSupported)
			}
			return NewFloat(owner, a.F*b.F)
		},
		Divide: func(owner Owner, a, b *Value) *Value {
			if b.Kind != KindFloat {
				return ErrorValue(ErrNotSupported)
			}
			if b.F == 0 {
				return ErrorValue(ErrDivideByZero)
			}
			return NewFloat(owner, a.F/b.F)
		},
		Negate: func(owner Owner, a *Value) *Value { return NewFloat(owner, -a.F) },
		Cast: func(owner Owner, a *Value, target Kind) *Value {
			switch target {
			case KindFloat:
				return a
			case KindInteger:
				return NewInteger(owner, int64(a.F))
			case KindString:
				return NewString(owner, strconv.FormatFloat(a.F, 'g', -1, 64))
			case KindBoolean:
				return Bool(a.F != 0)
			}
			return ErrorValue(ErrNotSupported)
		},
	}
	vtables[KindString] = &Vtable{
		ToString: func(a *Value) string { return a.S },
		Equal:    func(a, b *Value) bool { return b.Kind == KindString && a.S == b.S },
		Less:     func(a, b *Value) bool { return b.Kind == KindString && a.S < b.S },
		Add: func(owner Owner, a, b *Value) *Value {
			if b.Kind != KindString {
				return ErrorValue(ErrNotSupported)
			}
			out := NewString(owner, a.S+b.S)
			if a.Ranges != nil || b.Ranges != nil {
				out.Ranges = unicodeseg.Concat(a.Tagged(), b.Tagged()).Ranges
			}
			return out
		},
		// The render attributes tag the text rather than escaping it in
		// place: escaping happens per range when the composed output is
		// rendered, so a later concatenation keeps each contributing
		// value's policy. .trusted strips any tag.
		Attribute: func(owner Owner, a *Value, name string) *Value {
			switch name {
			case "size":
				return NewInteger(owner, int64(unicodeseg.Count(a.S)))
			case "trusted":
				return NewString(owner, a.S)
			case "html":
				return newTagged(owner, a.S, unicodeseg.HTML)
			case "html-attribute":
				return newTagged(owner, a.S, unicodeseg.HTMLAttribute)
			case "javascript":
				return newTagged(owner, a.S, unicodeseg.JavaScript)
			case "percent":
				return newTagged(owner, a.S, unicodeseg.Percent)
			}
			return nil
		},
		Cast: func(owner Owner, a *Value, target Kind) *Value {
			switch target {
			case KindString:
				return a
			case KindInteger:
				n, err := strconv.ParseInt(strings.TrimSpace(a.S), 10, 64)
				if err != nil {
					return ErrorValue(ErrNotSupported)
				}
				return NewInteger(owner, n)
			case KindFloat:
				f, err := strconv.ParseFloat(strings.TrimSpace(a.S), 64)
				if err != nil {
					return ErrorValue(ErrNotSupported)
				}
				return NewFloat(owner, f)
			case KindBoolean:
				return Bool(a.S != "")
			}
			return ErrorValue(ErrNotSupported)
		},
		Iterate: func(owner Owner, a *Value) *Value {
			runes := []rune(a.S)
			elems := make([]*Value, len(runes))
			for i, r := range runes {
				elems[i] = NewString(owner, string(r))
			}
			return NewIteratorArray(owner, elems)
		},
	}
	vtables[KindArray] = &Vtable{
		ToString: func(a *Value) string {
			parts := make([]string, len(a.A))
			for i, e := range a.A {
				parts[i] = e.String()
			}
			return "[" + strings.Join(parts, ", ") + "]"
		},
		Attribute: func(owner Owner, a *Value, name string) *Value {
			if name == "size" {
				return NewInteger(owner, int64(len(a.A)))
			}
			return nil
		},
		Index: func(owner Owner, a, idx *Value) *Value {
			if idx.Kind != KindInteger {
				return ErrorValue(ErrNotSupported)
			}
			i := normalizeIndex(idx.I, len(a.A))
			if i < 0 || i >= int64(len(a.A)) {
				return ErrorValue(ErrInvalidIndex)
			}
			return a.A[i]
		},
		SetIndex: func(owner Owner, a, idx, v *Value) *Value {
			if idx.Kind != KindInteger {
				return ErrorValue(ErrNotSupported)
			}
			i := normalizeIndex(idx.I, len(a.A))
			if i < 0 || i >= int64(len(a.A)) {
				return ErrorValue(ErrInvalidIndex)
			}
			a.A[i] = v
			return v
		},
		Slice: func(owner Owner, a, begin, end, skip *Value) *Value {
			b, e, s := sliceBounds(begin, end, skip, len(a.A))
			var out []*Value
			if s > 0 {
				for i := b; i < e; i += s {
					out = append(out, a.A[i])
				}
			} else if s < 0 {
				for i := b; i > e; i += s {
					out = append(out, a.A[i])
				}
			}
			return NewArray(owner, out)
		},
		Iterate: func(owner Owner, a *Value) *Value { return NewIteratorArray(owner, a.A) },
	}
	vtables[KindMap] = &Vtable{
		ToString: func(a *Value) string {
			parts := make([]string, 0, len(a.M))
			for k, v := range a.M {
				parts = append(parts, k+": "+v.String())
			}
			return "{" + strings.Join(parts, ", ") + "}"
		},
		Attribute: func(owner Owner, a *Value, name string) *Value {
			if name == "size" {
				return NewInteger(owner, int64(len(a.M)))
			}
			if v, ok := a.M[name]; ok {
				return v
			}
			return ErrorValue(ErrMapKeyNotFound)
		},
		Index: func(owner Owner, a, idx *Value) *Value {
			if idx.Kind != KindString {
				return ErrorValue(ErrMapKeyNotString)
			}
			if v, ok := a.M[idx.S]; ok {
				return v
			}
			return ErrorValue(ErrMapKeyNotFound)
		},
		SetIndex: func(owner Owner, a, idx, v *Value) *Value {
			if idx.Kind != KindString {
				return ErrorValue(ErrMapKeyNotString)
			}
			a.M[idx.S] = v
			return v
		},
		Iterate: func(owner Owner, a *Value) *Value { return NewIteratorMap(owner, a.M) },
	}
	vtables[KindFunction] = &Vtable{
		ToString: func(a *Value) string { return fmt.Sprintf("function<%s>", a.Fn.Name) },
	}
	vtables[KindNativeFunction] = &Vtable{
		ToString: func(*Value) string { return "native_function" },
	}
	vtables[KindIterator] = &Vtable{
		ToString: func(*Value) string { return "iterator" },
	}
	vtables[KindError] = &Vtable{
		ToString: func(a *Value) string { return "error: " + a.ErrMsg },
	}
	vtables[KindRNG] = &Vtable{
		ToString: func(*Value) string { return "rng" },
	}
}

// normalizeIndex converts a possibly-negative index (Python-style, counting
// from the end) into a non-negative one, given the collection's length.
func normalizeIndex(i int64, length int) int64 {
	if i < 0 {
		return int64(length) + i
	}
	return i
}

// sliceBounds resolves the three optional slice bounds (any may be the
// null Value, meaning omitted) into concrete begin/end/step integers.
func sliceBounds(begin, end, skip *Value, length int) (int, int, int) {
	step := 1
	if skip != nil && skip.Kind == KindInteger {
		step = int(skip.I)
	}
	if step == 0 {
		step = 1
	}
	b, e := 0, length
	if step < 0 {
		b, e = length-1, -1
	}
	if begin != nil && begin.Kind == KindInteger {
		b = int(normalizeIndex(begin.I, length))
	}
	if end != nil && end.Kind == KindInteger {
		e = int(normalizeIndex(end.I, length))
	}
	if b < 0 {
		b = 0
	}
	if b > length {
		b = length
	}
	return b, e, step
}

