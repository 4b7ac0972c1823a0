package native

import (
	"math"
	"testing"

	"github.com/dr8co/tang/ast"
	"github.com/dr8co/tang/lexer"
	"github.com/dr8co/tang/parser"
)

func compileSource(t *testing.T, input string) (*Code, bool) {
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
	return Compile(program)
}

func TestLabelBackpatchRoundTrip(t *testing.T) {
	c := NewContext()

	forward := c.GetLabel()
	c.EmitBytes(0xE9)
	c.AddLabelJump(forward)
	c.EmitBytes(0, 0, 0, 0)
	c.EmitBytes(0x90, 0x90, 0x90)
	c.SetLabel(forward)

	backward := c.GetLabel()
	c.SetLabel(backward)
	c.EmitBytes(0x90)
	c.EmitBytes(0xE9)
	c.AddLabelJump(backward)
	c.EmitBytes(0, 0, 0, 0)

	s := c.current()
	code := patchJumps(s)
	for _, j := range s.jumps {
		target := s.labels[j.label]
		rel := int32(uint32(code[j.offset]) |
			uint32(code[j.offset+1])<<8 |
			uint32(code[j.offset+2])<<16 |
			uint32(code[j.offset+3])<<24)
		if int(rel) != target-(j.offset+4) {
			t.Errorf("label %d: patched rel32 %d, want %d", j.label, rel, target-(j.offset+4))
		}
	}
}

func TestGlobalSlotAssignment(t *testing.T) {
	c := NewContext()
	if got := c.GlobalSlot("global/a"); got != 0 {
		t.Errorf("first slot: got %d, want 0", got)
	}
	if got := c.GlobalSlot("global/b"); got != 1 {
		t.Errorf("second slot: got %d, want 1", got)
	}
	if got := c.GlobalSlot("global/a"); got != 0 {
		t.Errorf("repeated lookup: got %d, want 0", got)
	}
}

func TestCompileDeclines(t *testing.T) {
	if !nativeSupported {
		t.Skip("no native backend on this platform")
	}
	tests := []string{
		``,                                  // nothing to produce a result from
		`print("x");`,                       // output needs the runtime
		`"a" + "b";`,                        // strings are heap values
		`[1, 2, 3];`,                        // composite literal
		`f = function() { return 1; } f();`, // function call
		`x = a[0]; x + 1;`,                  // untyped global read
	}
	for _, input := range tests {
		if _, ok := compileSource(t, input); ok {
			t.Errorf("%q: expected native compilation to decline", input)
		}
	}
}

func TestCompileScalarPrograms(t *testing.T) {
	if !nativeSupported {
		t.Skip("no native backend on this platform")
	}
	tests := []struct {
		input       string
		globalWords int
	}{
		{`3 * 4;`, 0},
		{`1.5 + 2.5;`, 0},
		{`true && false;`, 0},
		{`x = 1; x + 1;`, 1},
		{`i = 0; n = 0; while (i < 10) { n = n + i; i = i + 1; } n;`, 2},
		{`x = 0; if (1 < 2) { x = 5; } x;`, 1},
	}
	for _, tt := range tests {
		code, ok := compileSource(t, tt.input)
		if !ok {
			t.Errorf("%q: native compilation declined", tt.input)
			continue
		}
		if len(code.Text) == 0 || code.Text[len(code.Text)-1] != 0xC3 {
			t.Errorf("%q: code does not end in RET", tt.input)
		}
		if code.GlobalWords != tt.globalWords {
			t.Errorf("%q: got %d global words, want %d", tt.input, code.GlobalWords, tt.globalWords)
		}
	}
}

func TestExecutableRun(t *testing.T) {
	if !nativeSupported {
		t.Skip("no native backend on this platform")
	}
	tests := []struct {
		input string
		kind  ast.NativeKind
		check func(bits uint64) bool
	}{
		{`3 * 4;`, ast.NativeKindInteger, func(b uint64) bool { return int64(b) == 12 }},
		{`-3;`, ast.NativeKindInteger, func(b uint64) bool { return int64(b) == -3 }},
		{`x = 3; y = 4; x * y;`, ast.NativeKindInteger, func(b uint64) bool { return int64(b) == 12 }},
		{`i = 0; n = 0; while (i < 10) { n = n + i; i = i + 1; } n;`, ast.NativeKindInteger, func(b uint64) bool { return int64(b) == 45 }},
		{`1 < 2;`, ast.NativeKindBoolean, func(b uint64) bool { return b == 1 }},
		{`1.5 + 2.25;`, ast.NativeKindFloat, func(b uint64) bool { return math.Float64frombits(b) == 3.75 }},
		{`null;`, ast.NativeKindNull, func(uint64) bool { return true }},
		{`x = 0; 5 / x;`, ast.NativeKindDivisionByZero, func(uint64) bool { return true }},
		{`x = 0; 1 + 5 % x;`, ast.NativeKindModuloByZero, func(uint64) bool { return true }},
	}
	for _, tt := range tests {
		code, ok := compileSource(t, tt.input)
		if !ok {
			t.Errorf("%q: native compilation declined", tt.input)
			continue
		}
		exe, err := NewExecutable(code)
		if err != nil {
			t.Fatalf("%q: load: %v", tt.input, err)
		}
		kind, bits := exe.Run()
		if kind != tt.kind {
			t.Errorf("%q: result kind %d, want %d", tt.input, kind, tt.kind)
		} else if !tt.check(bits) {
			t.Errorf("%q: unexpected result bits %#x", tt.input, bits)
		}
		if err := exe.Release(); err != nil {
			t.Errorf("%q: release: %v", tt.input, err)
		}
	}
}
