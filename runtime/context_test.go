package runtime

import (
	"strings"
	"testing"

	"github.com/dr8co/tang/value"
)

func TestArenaOwnsEveryTemporary(t *testing.T) {
	ctx := New()
	before := len(ctx.arena)

	value.NewInteger(ctx, 1)
	value.NewString(ctx, "s")
	value.NewArray(ctx, nil)
	if got := len(ctx.arena); got != before+3 {
		t.Fatalf("expected %d arena entries, got %d", before+3, got)
	}

	// Singletons are process-wide constants and never enter the arena.
	_ = value.Bool(true)
	_ = value.Null
	if got := len(ctx.arena); got != before+3 {
		t.Fatalf("singleton was arena-registered: %d entries", got)
	}

	ctx.Destroy()
	if ctx.arena != nil {
		t.Fatal("Destroy left the arena populated")
	}
}

func TestGlobalsDefaultToNull(t *testing.T) {
	ctx := New()
	defer ctx.Destroy()
	if got := ctx.GetGlobal("global/missing"); got != value.Null {
		t.Fatalf("unset global: got %v, want the null singleton", got)
	}
	v := value.NewInteger(ctx, 9)
	ctx.SetGlobal("global/x", v)
	if got := ctx.GetGlobal("global/x"); got != v {
		t.Fatalf("set/get round trip failed: got %v", got)
	}
}

func TestPrintWritesToOutput(t *testing.T) {
	ctx := New()
	defer ctx.Destroy()
	var out strings.Builder
	ctx.Output = &out
	ctx.Print("ab")
	ctx.Print("c")
	if out.String() != "abc" {
		t.Fatalf("output: got %q, want %q", out.String(), "abc")
	}
}
