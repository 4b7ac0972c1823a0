package tang

import (
	"strings"
	"testing"

	"github.com/dr8co/tang/value"
)

func execute(t *testing.T, source string, flags Flags) *ExecutionContext {
	t.Helper()
	prog, err := Create("", source, flags)
	if err != nil {
		t.Fatalf("Create(%q): %v", source, err)
	}
	t.Cleanup(prog.Destroy)
	ec := NewExecutionContext(prog)
	t.Cleanup(ec.Destroy)
	ec.Execute()
	return ec
}

func TestProgramOutput(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{
			`print("start "); if (true) { print("true"); } else { print("false"); } print(" end");`,
			"start true end",
		},
		{
			`i=0; while(i<3){print(i); i=i+1;}`,
			"012",
		},
		{
			`function fib(n){ if(n<=0){return 0;} else if(n<=2){return 1;} return fib(n-1)+fib(n-2); } print(fib(10));`,
			"55",
		},
		{
			`x=3; function f(z){y=x+1; y=y+z; return y;} print(f(4));`,
			"8",
		},
		{
			`print([1,2,3].size); print(" "); print([1,2,3][-1]);`,
			"3 3",
		},
		{
			`print("a&b".html);`,
			"a&amp;b",
		},
		{
			// Concatenation keeps each contributing value's render policy
			// per range: only the tagged half is escaped.
			`print("a&b".html + " & " + "c<d".javascript);`,
			"a&amp;b & c\\x3Cd",
		},
	}
	for _, tt := range tests {
		ec := execute(t, tt.input, FlagDefault)
		if got := ec.Output(); got != tt.want {
			t.Errorf("%q: output %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestProgramResult(t *testing.T) {
	ec := execute(t, `x = 40; x + 2;`, FlagDisableNative)
	if ec.Result == nil || ec.Result.Kind != value.KindInteger || ec.Result.I != 42 {
		t.Fatalf("result: got %v, want 42", ec.Result)
	}
}

func TestCreateReportsParseError(t *testing.T) {
	if _, err := Create("", `if (true { print("x"); }`, FlagDefault); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestRedeclarationErrors(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`function f(){ return 1; } function f(){ return 2; }`, "function redeclared"},
		{`x = 1; function x(){ return 2; }`, "identifier redeclared"},
		{`function g(){ y = 1; function y(){ return 2; } return y(); }`, "identifier redeclared"},
	}
	for _, tt := range tests {
		_, err := Create("", tt.input, FlagDefault)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%q: expected %q error, got %v", tt.input, tt.want, err)
		}
	}

	// Plain reassignment is not redeclaration; only the declaration forms
	// collide.
	if _, err := Create("", `x = 1; x = 2;`, FlagDefault); err != nil {
		t.Errorf("reassignment: unexpected error %v", err)
	}
}

func TestSimplifyPreservesMeaning(t *testing.T) {
	// Constant folding must not change observable output, including for
	// variables reassigned inside conditional and loop bodies.
	tests := []struct {
		input string
		want  string
	}{
		{`x = 2 + 3; print(x * 2);`, "10"},
		{`x = 1; if (1 > 2) { x = 9; } print(x);`, "1"},
		{`x = 1; i = 0; while (i < 2) { x = x + 1; i = i + 1; } print(x);`, "3"},
		{`print("a" + "b");`, "ab"},
	}
	for _, tt := range tests {
		ec := execute(t, tt.input, FlagDefault)
		if got := ec.Output(); got != tt.want {
			t.Errorf("%q: output %q, want %q", tt.input, got, tt.want)
		}
	}
}

// TestNativeMatchesBytecode pins the two backends to the same observable
// results: every program below runs once with native compilation allowed
// (used when the platform supports it) and once forced onto the bytecode
// VM, and both executions must agree on the result value.
func TestNativeMatchesBytecode(t *testing.T) {
	sources := []string{
		`3 * 4;`,
		`x = 3; y = 4; x * y;`,
		`i = 0; n = 0; while (i < 10) { n = n + i; i = i + 1; } n;`,
		`1.5 + 2.25;`,
		`2 < 3;`,
		`true ? 1 : 2;`,
		`x = 0; if (1 < 2) { x = 5; } else { x = 7; } x;`,
		`null;`,
		`x = 0; 5 / x;`,
		`x = 1; return x + 1;`,
		`x = 20; if (x > 10) { return 1; } return 0;`,
	}
	for _, src := range sources {
		native := execute(t, src, FlagDefault)
		bytecode := execute(t, src, FlagDisableNative)
		if !sameResult(native.Result, bytecode.Result) {
			t.Errorf("%q: native result %v, bytecode result %v", src, native.Result, bytecode.Result)
		}
	}
}

func sameResult(a, b *value.Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.IsError() || b.IsError() {
		return a.IsError() == b.IsError()
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case value.KindInteger:
		return a.I == b.I
	case value.KindFloat:
		return a.F == b.F
	case value.KindBoolean:
		return a.IsTrue() == b.IsTrue()
	case value.KindNull:
		return true
	default:
		return false
	}
}
