package runtime

import (
	"math"
	"math/rand"
	"strings"
	"sync"

	"github.com/dr8co/tang/unicodeseg"
	"github.com/dr8co/tang/value"
)

// installStandardLibraries populates ctx's library table with the
// built-in "math", "string", "array" and "random" libraries a `use` declaration can
// import. Each library is a map Value whose entries are native function
// Values, looked up via attribute or index access the same way a
// user-defined map's fields are — no dedicated library Kind is needed.
func installStandardLibraries(ctx *Context) {
	ctx.libraries["math"] = mathLibrary(ctx)
	ctx.libraries["string"] = stringLibrary(ctx)
	ctx.libraries["array"] = arrayLibrary(ctx)
	ctx.libraries["random"] = randomLibrary(ctx)
}

func native(ctx *Context, fn value.NativeFunc) *value.Value {
	return value.NewNativeFunction(ctx, fn)
}

// floatArg coerces an int or float argument to float64, reporting the
// not-supported error singleton for anything else.
func floatArg(_ *Context, v *value.Value) (float64, *value.Value) {
	switch v.Kind {
	case value.KindFloat:
		return v.F, nil
	case value.KindInteger:
		return float64(v.I), nil
	default:
		return 0, value.ErrorValue(value.ErrNotSupported)
	}
}

// mathLibrary is grounded on the reference builtins' `len`/arithmetic
// helpers in spirit, generalized to the floating-point math the original
// CTang math module exposes (original_source's math bindings cover
// sqrt/pow/abs/floor/ceil/min/max).
func mathLibrary(ctx *Context) *value.Value {
	m := map[string]*value.Value{
		"pi": value.NewFloat(ctx, math.Pi),
		"sqrt": native(ctx, func(owner value.Owner, args []*value.Value) *value.Value {
			if len(args) != 1 {
				return value.ErrorValue(value.ErrArgumentCountMismatch)
			}
			f, errv := floatArg(ctx, args[0])
			if errv != nil {
				return errv
			}
			return value.NewFloat(owner, math.Sqrt(f))
		}),
		"pow": native(ctx, func(owner value.Owner, args []*value.Value) *value.Value {
			if len(args) != 2 {
				return value.ErrorValue(value.ErrArgumentCountMismatch)
			}
			base, errv := floatArg(ctx, args[0])
			if errv != nil {
				return errv
			}
			exp, errv := floatArg(ctx, args[1])
			if errv != nil {
				return errv
			}
			return value.NewFloat(owner, math.Pow(base, exp))
		}),
		"abs": native(ctx, func(owner value.Owner, args []*value.Value) *value.Value {
			if len(args) != 1 {
				return value.ErrorValue(value.ErrArgumentCountMismatch)
			}
			if args[0].Kind == value.KindInteger {
				n := args[0].I
				if n < 0 {
					n = -n
				}
				return value.NewInteger(owner, n)
			}
			f, errv := floatArg(ctx, args[0])
			if errv != nil {
				return errv
			}
			return value.NewFloat(owner, math.Abs(f))
		}),
		"floor": native(ctx, func(owner value.Owner, args []*value.Value) *value.Value {
			if len(args) != 1 {
				return value.ErrorValue(value.ErrArgumentCountMismatch)
			}
			f, errv := floatArg(ctx, args[0])
			if errv != nil {
				return errv
			}
			return value.NewFloat(owner, math.Floor(f))
		}),
		"ceil": native(ctx, func(owner value.Owner, args []*value.Value) *value.Value {
			if len(args) != 1 {
				return value.ErrorValue(value.ErrArgumentCountMismatch)
			}
			f, errv := floatArg(ctx, args[0])
			if errv != nil {
				return errv
			}
			return value.NewFloat(owner, math.Ceil(f))
		}),
		"max": native(ctx, func(owner value.Owner, args []*value.Value) *value.Value {
			if len(args) != 2 {
				return value.ErrorValue(value.ErrArgumentCountMismatch)
			}
			a, errv := floatArg(ctx, args[0])
			if errv != nil {
				return errv
			}
			b, errv := floatArg(ctx, args[1])
			if errv != nil {
				return errv
			}
			if a >= b {
				return args[0]
			}
			return args[1]
		}),
		"min": native(ctx, func(owner value.Owner, args []*value.Value) *value.Value {
			if len(args) != 2 {
				return value.ErrorValue(value.ErrArgumentCountMismatch)
			}
			a, errv := floatArg(ctx, args[0])
			if errv != nil {
				return errv
			}
			b, errv := floatArg(ctx, args[1])
			if errv != nil {
				return errv
			}
			if a <= b {
				return args[0]
			}
			return args[1]
		}),
	}
	return value.NewMap(ctx, m)
}

// stringLibrary exposes string utilities, including grapheme-cluster-
// aware width and segmentation built on github.com/rivo/uniseg, since
// naive rune counting undercounts combining sequences and emoji.
func stringLibrary(ctx *Context) *value.Value {
	m := map[string]*value.Value{
		"upper": native(ctx, func(owner value.Owner, args []*value.Value) *value.Value {
			if len(args) != 1 || args[0].Kind != value.KindString {
				return value.ErrorValue(value.ErrArgumentCountMismatch)
			}
			return value.NewString(owner, strings.ToUpper(args[0].S))
		}),
		"lower": native(ctx, func(owner value.Owner, args []*value.Value) *value.Value {
			if len(args) != 1 || args[0].Kind != value.KindString {
				return value.ErrorValue(value.ErrArgumentCountMismatch)
			}
			return value.NewString(owner, strings.ToLower(args[0].S))
		}),
		"trim": native(ctx, func(owner value.Owner, args []*value.Value) *value.Value {
			if len(args) != 1 || args[0].Kind != value.KindString {
				return value.ErrorValue(value.ErrArgumentCountMismatch)
			}
			return value.NewString(owner, strings.TrimSpace(args[0].S))
		}),
		"contains": native(ctx, func(owner value.Owner, args []*value.Value) *value.Value {
			if len(args) != 2 || args[0].Kind != value.KindString || args[1].Kind != value.KindString {
				return value.ErrorValue(value.ErrArgumentCountMismatch)
			}
			return value.Bool(strings.Contains(args[0].S, args[1].S))
		}),
		"split": native(ctx, func(owner value.Owner, args []*value.Value) *value.Value {
			if len(args) != 2 || args[0].Kind != value.KindString || args[1].Kind != value.KindString {
				return value.ErrorValue(value.ErrArgumentCountMismatch)
			}
			parts := strings.Split(args[0].S, args[1].S)
			elems := make([]*value.Value, len(parts))
			for i, p := range parts {
				elems[i] = value.NewString(owner, p)
			}
			return value.NewArray(owner, elems)
		}),
		"join": native(ctx, func(owner value.Owner, args []*value.Value) *value.Value {
			if len(args) != 2 || args[0].Kind != value.KindArray || args[1].Kind != value.KindString {
				return value.ErrorValue(value.ErrArgumentCountMismatch)
			}
			parts := make([]string, len(args[0].A))
			for i, e := range args[0].A {
				parts[i] = e.String()
			}
			return value.NewString(owner, strings.Join(parts, args[1].S))
		}),
		// width returns the terminal display width of s, accounting for
		// wide runes and combining marks via grapheme clustering, for
		// scripts the REPL lays out with lipgloss/bubbletea.
		"width": native(ctx, func(owner value.Owner, args []*value.Value) *value.Value {
			if len(args) != 1 || args[0].Kind != value.KindString {
				return value.ErrorValue(value.ErrArgumentCountMismatch)
			}
			return value.NewInteger(owner, int64(unicodeseg.Width(args[0].S)))
		}),
		// graphemes splits s into user-perceived characters rather than
		// raw runes, so e.g. combining accents and flag emoji count as
		// one element each.
		"graphemes": native(ctx, func(owner value.Owner, args []*value.Value) *value.Value {
			if len(args) != 1 || args[0].Kind != value.KindString {
				return value.ErrorValue(value.ErrArgumentCountMismatch)
			}
			graphemes := unicodeseg.Graphemes(args[0].S)
			elems := make([]*value.Value, len(graphemes))
			for i, g := range graphemes {
				elems[i] = value.NewString(owner, g)
			}
			return value.NewArray(owner, elems)
		}),
	}
	return value.NewMap(ctx, m)
}

// arrayLibrary adapts the reference builtins' first/last/rest/push over
// to Tang arrays (len is covered by the language-level `.size` attribute
// instead of a library call).
func arrayLibrary(ctx *Context) *value.Value {
	m := map[string]*value.Value{
		"first": native(ctx, func(owner value.Owner, args []*value.Value) *value.Value {
			if len(args) != 1 || args[0].Kind != value.KindArray {
				return value.ErrorValue(value.ErrArgumentCountMismatch)
			}
			if len(args[0].A) == 0 {
				return value.Null
			}
			return args[0].A[0]
		}),
		"last": native(ctx, func(owner value.Owner, args []*value.Value) *value.Value {
			if len(args) != 1 || args[0].Kind != value.KindArray {
				return value.ErrorValue(value.ErrArgumentCountMismatch)
			}
			a := args[0].A
			if len(a) == 0 {
				return value.Null
			}
			return a[len(a)-1]
		}),
		"rest": native(ctx, func(owner value.Owner, args []*value.Value) *value.Value {
			if len(args) != 1 || args[0].Kind != value.KindArray {
				return value.ErrorValue(value.ErrArgumentCountMismatch)
			}
			a := args[0].A
			if len(a) == 0 {
				return value.NewArray(owner, nil)
			}
			rest := make([]*value.Value, len(a)-1)
			copy(rest, a[1:])
			return value.NewArray(owner, rest)
		}),
		"push": native(ctx, func(owner value.Owner, args []*value.Value) *value.Value {
			if len(args) != 2 || args[0].Kind != value.KindArray {
				return value.ErrorValue(value.ErrArgumentCountMismatch)
			}
			a := args[0].A
			out := make([]*value.Value, len(a)+1)
			copy(out, a)
			out[len(a)] = args[1]
			return value.NewArray(owner, out)
		}),
	}
	return value.NewMap(ctx, m)
}

// globalRNG is the one piece of process-wide mutable state in the whole
// runtime. Any context on any thread may draw from it, so every access
// goes through globalRNGSem.
var (
	globalRNGSem sync.Mutex
	globalRNG    = rand.New(rand.NewSource(1))
)

// randomLibrary exposes the RNG value model: `random.global` is the shared
// process-wide generator, and `random.new(seed)` creates a context-local
// generator whose seed the script controls.
func randomLibrary(ctx *Context) *value.Value {
	m := map[string]*value.Value{
		"global": rngValue(ctx, nil),
		"new": native(ctx, func(owner value.Owner, args []*value.Value) *value.Value {
			if len(args) != 1 {
				return value.ErrorValue(value.ErrArgumentCountMismatch)
			}
			if args[0].Kind != value.KindInteger {
				return value.ErrorValue(value.ErrNotSupported)
			}
			return rngValue(ctx, rand.New(rand.NewSource(args[0].I)))
		}),
	}
	return value.NewMap(ctx, m)
}

// rngValue builds a generator Value. A nil r means the shared global
// generator: draws take the semaphore, and reseeding is refused with the
// dedicated error kind rather than perturbing every other context's
// sequence.
func rngValue(ctx *Context, r *rand.Rand) *value.Value {
	draw := func(f func(g *rand.Rand) *value.Value) *value.Value {
		if r == nil {
			globalRNGSem.Lock()
			defer globalRNGSem.Unlock()
			return f(globalRNG)
		}
		return f(r)
	}
	v := value.NewRNG(ctx)
	v.Attrs = map[string]*value.Value{
		"int": native(ctx, func(owner value.Owner, args []*value.Value) *value.Value {
			if len(args) != 1 {
				return value.ErrorValue(value.ErrArgumentCountMismatch)
			}
			if args[0].Kind != value.KindInteger || args[0].I <= 0 {
				return value.ErrorValue(value.ErrNotSupported)
			}
			n := args[0].I
			return draw(func(g *rand.Rand) *value.Value {
				return value.NewInteger(owner, g.Int63n(n))
			})
		}),
		"float": native(ctx, func(owner value.Owner, args []*value.Value) *value.Value {
			if len(args) != 0 {
				return value.ErrorValue(value.ErrArgumentCountMismatch)
			}
			return draw(func(g *rand.Rand) *value.Value {
				return value.NewFloat(owner, g.Float64())
			})
		}),
		"seed": native(ctx, func(owner value.Owner, args []*value.Value) *value.Value {
			if len(args) != 1 {
				return value.ErrorValue(value.ErrArgumentCountMismatch)
			}
			if r == nil {
				return value.ErrorValue(value.ErrGlobalRNGSeedNotChangeable)
			}
			if args[0].Kind != value.KindInteger {
				return value.ErrorValue(value.ErrNotSupported)
			}
			r.Seed(args[0].I)
			return value.Null
		}),
	}
	return v
}
