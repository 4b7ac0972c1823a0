package runtime

import (
	"testing"

	"github.com/dr8co/tang/value"
)

func member(t *testing.T, lib *value.Value, name string) *value.Value {
	t.Helper()
	m, ok := lib.M[name]
	if !ok {
		t.Fatalf("library has no member %q", name)
	}
	return m
}

func call(t *testing.T, ctx *Context, fn *value.Value, args ...*value.Value) *value.Value {
	t.Helper()
	if fn.Kind != value.KindNativeFunction {
		t.Fatalf("not a native function: %v", fn)
	}
	return fn.Native(ctx, args)
}

func TestMathLibrary(t *testing.T) {
	ctx := New()
	defer ctx.Destroy()
	lib, ok := ctx.Library("math")
	if !ok {
		t.Fatal("math library not installed")
	}

	got := call(t, ctx, member(t, lib, "sqrt"), value.NewFloat(ctx, 16))
	if got.Kind != value.KindFloat || got.F != 4 {
		t.Errorf("sqrt(16): got %v, want 4", got)
	}

	got = call(t, ctx, member(t, lib, "abs"), value.NewInteger(ctx, -7))
	if got.Kind != value.KindInteger || got.I != 7 {
		t.Errorf("abs(-7): got %v, want 7", got)
	}

	got = call(t, ctx, member(t, lib, "sqrt"))
	if !got.IsError() {
		t.Errorf("sqrt(): expected an argument-count error, got %v", got)
	}
}

func TestRandomLibraryDraws(t *testing.T) {
	ctx := New()
	defer ctx.Destroy()
	lib, ok := ctx.Library("random")
	if !ok {
		t.Fatal("random library not installed")
	}
	global := member(t, lib, "global")
	if global.Kind != value.KindRNG {
		t.Fatalf("random.global is %v, want an rng", global)
	}

	intFn := global.Attribute(ctx, "int")
	for range 20 {
		got := call(t, ctx, intFn, value.NewInteger(ctx, 10))
		if got.Kind != value.KindInteger || got.I < 0 || got.I >= 10 {
			t.Fatalf("global.int(10): got %v, want an int in [0, 10)", got)
		}
	}

	floatFn := global.Attribute(ctx, "float")
	got := call(t, ctx, floatFn)
	if got.Kind != value.KindFloat || got.F < 0 || got.F >= 1 {
		t.Fatalf("global.float(): got %v, want a float in [0, 1)", got)
	}
}

func TestRandomLibrarySeeding(t *testing.T) {
	ctx := New()
	defer ctx.Destroy()
	lib, _ := ctx.Library("random")

	// The global generator's seed is fixed for the process.
	global := member(t, lib, "global")
	got := call(t, ctx, global.Attribute(ctx, "seed"), value.NewInteger(ctx, 42))
	if !got.IsError() || got.ErrKind != value.ErrGlobalRNGSeedNotChangeable {
		t.Fatalf("global.seed(42): got %v, want ErrGlobalRNGSeedNotChangeable", got)
	}

	// Context-local generators with the same seed draw the same sequence.
	newFn := member(t, lib, "new")
	a := call(t, ctx, newFn, value.NewInteger(ctx, 42))
	b := call(t, ctx, newFn, value.NewInteger(ctx, 42))
	if a.Kind != value.KindRNG || b.Kind != value.KindRNG {
		t.Fatalf("random.new(42): got %v / %v, want rng values", a, b)
	}
	for range 5 {
		x := call(t, ctx, a.Attribute(ctx, "int"), value.NewInteger(ctx, 1000))
		y := call(t, ctx, b.Attribute(ctx, "int"), value.NewInteger(ctx, 1000))
		if x.I != y.I {
			t.Fatalf("same-seeded generators diverged: %d vs %d", x.I, y.I)
		}
	}

	// Reseeding a local generator replays its sequence.
	first := call(t, ctx, a.Attribute(ctx, "int"), value.NewInteger(ctx, 1000))
	if got := call(t, ctx, a.Attribute(ctx, "seed"), value.NewInteger(ctx, 42)); got.IsError() {
		t.Fatalf("a.seed(42): unexpected error %v", got)
	}
	for range 5 {
		call(t, ctx, a.Attribute(ctx, "int"), value.NewInteger(ctx, 1000))
	}
	replayed := call(t, ctx, a.Attribute(ctx, "int"), value.NewInteger(ctx, 1000))
	if first.I != replayed.I {
		t.Fatalf("reseeded generator did not replay: %d vs %d", first.I, replayed.I)
	}
}

func TestStringLibraryGraphemes(t *testing.T) {
	ctx := New()
	defer ctx.Destroy()
	lib, _ := ctx.Library("string")

	got := call(t, ctx, member(t, lib, "graphemes"), value.NewString(ctx, "héllo"))
	if got.Kind != value.KindArray || len(got.A) != 5 {
		t.Errorf("graphemes(héllo): got %v, want 5 elements", got)
	}

	got = call(t, ctx, member(t, lib, "upper"), value.NewString(ctx, "abc"))
	if got.Kind != value.KindString || got.S != "ABC" {
		t.Errorf("upper(abc): got %v, want ABC", got)
	}
}
