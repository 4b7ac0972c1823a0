package vm

import (
	"strings"
	"testing"

	"github.com/dr8co/tang/compiler"
	"github.com/dr8co/tang/lexer"
	"github.com/dr8co/tang/parser"
	"github.com/dr8co/tang/runtime"
	"github.com/dr8co/tang/value"
)

func runSource(t *testing.T, input string) (*VM, *runtime.Context) {
	t.Helper()
	l := lexer.New(input)
	p := parser.New(l)
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) != 0 {
		t.Fatalf("parser errors: %v", errs)
	}
	for _, stmt := range program.Statements {
		if errNode := stmt.Analyze(program, program.GlobalScope); errNode != nil {
			t.Fatalf("analyze error: %s", errNode.Message)
		}
	}
	ctx := compiler.New()
	if !ctx.Compile(program) {
		t.Fatalf("compile failed for %q", input)
	}
	rt := runtime.New()
	machine := New(ctx.Bytecode(), rt)
	if err := machine.Run(); err != nil {
		t.Fatalf("vm error: %s", err)
	}
	return machine, rt
}

func TestVMArithmetic(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"x = 1 + 2;", 3},
		{"x = 10 - 4;", 6},
		{"x = 3 * 4;", 12},
		{"x = 10 / 2;", 5},
		{"x = 10 % 3;", 1},
		{"x = (2 + 3) * 4;", 20},
		{"x = -5 + 10;", 5},
	}
	for _, tt := range tests {
		_, rt := runSource(t, tt.input)
		got := rt.GetGlobal("global/x")
		if got.Kind != value.KindInteger || got.I != tt.want {
			t.Errorf("%q: expected %d, got %v", tt.input, tt.want, got)
		}
	}
}

func TestVMComparisons(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"x = 1 < 2;", true},
		{"x = 1 > 2;", false},
		{"x = 2 <= 2;", true},
		{"x = 3 >= 4;", false},
		{"x = 1 == 1;", true},
		{"x = 1 != 1;", false},
		{"x = true && false;", false},
		{"x = true || false;", true},
	}
	for _, tt := range tests {
		_, rt := runSource(t, tt.input)
		got := rt.GetGlobal("global/x")
		if got.Kind != value.KindBoolean || got.IsTrue() != tt.want {
			t.Errorf("%q: expected %v, got %v", tt.input, tt.want, got)
		}
	}
}

func TestVMIfElse(t *testing.T) {
	_, rt := runSource(t, `if (1 < 2) { x = 10; } else { x = 20; }`)
	got := rt.GetGlobal("global/x")
	if got.I != 10 {
		t.Errorf("expected 10, got %v", got)
	}

	_, rt = runSource(t, `if (1 > 2) { x = 10; } else { x = 20; }`)
	got = rt.GetGlobal("global/x")
	if got.I != 20 {
		t.Errorf("expected 20, got %v", got)
	}
}

func TestVMWhileLoop(t *testing.T) {
	_, rt := runSource(t, `i = 0; sum = 0; while (i < 5) { sum = sum + i; i = i + 1; }`)
	got := rt.GetGlobal("global/sum")
	if got.I != 10 {
		t.Errorf("expected 10, got %v", got)
	}
}

func TestVMBreakContinue(t *testing.T) {
	_, rt := runSource(t, `
		i = 0; sum = 0;
		while (i < 10) {
			i = i + 1;
			if (i > 5) { break; }
			if (i == 3) { continue; }
			sum = sum + i;
		}
	`)
	got := rt.GetGlobal("global/sum")
	if got.I != 12 { // 1+2+4+5
		t.Errorf("expected 12, got %v", got)
	}
}

func TestVMFunctionCall(t *testing.T) {
	_, rt := runSource(t, `
		add = function(a, b) { return a + b; };
		x = add(3, 4);
	`)
	got := rt.GetGlobal("global/x")
	if got.Kind != value.KindInteger || got.I != 7 {
		t.Errorf("expected 7, got %v", got)
	}
}

func TestVMRecursiveFunctionCall(t *testing.T) {
	_, rt := runSource(t, `
		fact = function(n) {
			if (n <= 1) { return 1; }
			return n * fact(n - 1);
		};
		x = fact(5);
	`)
	got := rt.GetGlobal("global/x")
	if got.Kind != value.KindInteger || got.I != 120 {
		t.Errorf("expected 120, got %v", got)
	}
}

func TestVMArrayAndIndex(t *testing.T) {
	_, rt := runSource(t, `
		a = [1, 2, 3];
		x = a[1];
		a[1] = 20;
		y = a[1];
	`)
	if got := rt.GetGlobal("global/x"); got.I != 2 {
		t.Errorf("expected 2, got %v", got)
	}
	if got := rt.GetGlobal("global/y"); got.I != 20 {
		t.Errorf("expected 20, got %v", got)
	}
}

func TestVMMapAndAttribute(t *testing.T) {
	_, rt := runSource(t, `
		m = {"a": 1, "b": 2};
		x = m.a;
		m.a = 10;
		y = m.a;
	`)
	if got := rt.GetGlobal("global/x"); got.I != 1 {
		t.Errorf("expected 1, got %v", got)
	}
	if got := rt.GetGlobal("global/y"); got.I != 10 {
		t.Errorf("expected 10, got %v", got)
	}
}

func TestVMRangedForOverArray(t *testing.T) {
	_, rt := runSource(t, `
		sum = 0;
		for (v : [1, 2, 3, 4]) { sum = sum + v; }
	`)
	if got := rt.GetGlobal("global/sum"); got.I != 10 {
		t.Errorf("expected 10, got %v", got)
	}
}

func TestVMSlice(t *testing.T) {
	_, rt := runSource(t, `
		a = [1, 2, 3, 4, 5];
		x = a[1:3];
	`)
	got := rt.GetGlobal("global/x")
	if got.Kind != value.KindArray || len(got.A) != 2 || got.A[0].I != 2 || got.A[1].I != 3 {
		t.Errorf("expected [2, 3], got %v", got)
	}
}

func TestVMCast(t *testing.T) {
	_, rt := runSource(t, `x = "42" as int;`)
	got := rt.GetGlobal("global/x")
	if got.Kind != value.KindInteger || got.I != 42 {
		t.Errorf("expected 42, got %v", got)
	}
}

func TestVMPrint(t *testing.T) {
	l := lexer.New(`print("a", "b", 1);`)
	p := parser.New(l)
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) != 0 {
		t.Fatalf("parser errors: %v", errs)
	}
	for _, stmt := range program.Statements {
		if errNode := stmt.Analyze(program, program.GlobalScope); errNode != nil {
			t.Fatalf("analyze error: %s", errNode.Message)
		}
	}
	ctx := compiler.New()
	if !ctx.Compile(program) {
		t.Fatalf("compile failed")
	}
	rt := runtime.New()
	var out strings.Builder
	rt.Output = &out
	machine := New(ctx.Bytecode(), rt)
	if err := machine.Run(); err != nil {
		t.Fatalf("vm error: %s", err)
	}
	if out.String() != "ab1" {
		t.Errorf("expected %q, got %q", "ab1", out.String())
	}
}

func TestVMLibraryCall(t *testing.T) {
	_, rt := runSource(t, `
		use math;
		x = math.sqrt(16.0);
	`)
	got := rt.GetGlobal("global/x")
	if got.Kind != value.KindFloat || got.F != 4 {
		t.Errorf("expected 4.0, got %v", got)
	}
}

func TestVMArgumentCountMismatch(t *testing.T) {
	_, rt := runSource(t, `
		add = function(a, b) { return a + b; };
		x = add(1);
	`)
	got := rt.GetGlobal("global/x")
	if got != value.ErrorValue(value.ErrArgumentCountMismatch) {
		t.Errorf("expected the argument-count-mismatch singleton, got %v", got)
	}
}

func TestVMPrintAppliesRenderTags(t *testing.T) {
	l := lexer.New(`print("a&b".html, "<i>");`)
	p := parser.New(l)
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) != 0 {
		t.Fatalf("parser errors: %v", errs)
	}
	for _, stmt := range program.Statements {
		if errNode := stmt.Analyze(program, program.GlobalScope); errNode != nil {
			t.Fatalf("analyze error: %s", errNode.Message)
		}
	}
	ctx := compiler.New()
	if !ctx.Compile(program) {
		t.Fatalf("compile failed")
	}
	rt := runtime.New()
	var out strings.Builder
	rt.Output = &out
	machine := New(ctx.Bytecode(), rt)
	if err := machine.Run(); err != nil {
		t.Fatalf("vm error: %s", err)
	}
	if out.String() != "a&amp;b<i>" {
		t.Errorf("expected %q, got %q", "a&amp;b<i>", out.String())
	}
}

func TestVMTopLevelReturn(t *testing.T) {
	machine, _ := runSource(t, `x = 1; return x + 1; x = 99;`)
	got := machine.LastPoppedStackElem()
	if got == nil || got.Kind != value.KindInteger || got.I != 2 {
		t.Errorf("expected 2, got %v", got)
	}
}

func TestVMRandomLibrary(t *testing.T) {
	_, rt := runSource(t, `
		use random;
		r = random.new(7);
		x = r.int(10);
	`)
	got := rt.GetGlobal("global/x")
	if got.Kind != value.KindInteger || got.I < 0 || got.I >= 10 {
		t.Errorf("expected an int in [0, 10), got %v", got)
	}
}
