package compiler

import (
	"strings"
	"testing"

	"github.com/dr8co/tang/code"
	"github.com/dr8co/tang/lexer"
	"github.com/dr8co/tang/parser"
	"github.com/dr8co/tang/value"
)

func compileSource(t *testing.T, input string) *Bytecode {
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
	ctx := New()
	if !ctx.Compile(program) {
		t.Fatalf("compile failed for %q", input)
	}
	return ctx.Bytecode()
}

func TestCompileArithmetic(t *testing.T) {
	bc := compileSource(t, "x = 1 + 2;")
	if len(bc.Constants) != 3 {
		// 1, 2, and the mangled name "global/x"
		t.Fatalf("expected 3 constants, got %d", len(bc.Constants))
	}
	dis := bc.Instructions.String()
	for _, want := range []string{"OpConstant", "OpAdd", "OpSetGlobal", "OpPop"} {
		if !strings.Contains(dis, want) {
			t.Errorf("expected disassembly to contain %s, got:\n%s", want, dis)
		}
	}
}

func TestCompileIfElse(t *testing.T) {
	bc := compileSource(t, `if (true) { x = 1; } else { x = 2; }`)
	dis := bc.Instructions.String()
	for _, want := range []string{"OpJumpNotTruthy", "OpJump"} {
		if !strings.Contains(dis, want) {
			t.Errorf("expected disassembly to contain %s, got:\n%s", want, dis)
		}
	}
}

func TestCompileWhileLoop(t *testing.T) {
	bc := compileSource(t, `i = 0; while (i < 3) { i = i + 1; }`)
	dis := bc.Instructions.String()
	for _, want := range []string{"OpLessThan", "OpJumpNotTruthy", "OpJump"} {
		if !strings.Contains(dis, want) {
			t.Errorf("expected disassembly to contain %s, got:\n%s", want, dis)
		}
	}
}

func TestCompileFunctionLiteral(t *testing.T) {
	bc := compileSource(t, `add = function(a, b) { return a + b; };`)
	var fnConst *value.Value
	for _, c := range bc.Constants {
		if c.Kind == value.KindFunction {
			fnConst = c
		}
	}
	if fnConst == nil {
		t.Fatalf("expected a function constant, got none in %#v", bc.Constants)
	}
	if fnConst.Fn.NumParameters != 2 {
		t.Errorf("expected 2 parameters, got %d", fnConst.Fn.NumParameters)
	}
	dis := code.Instructions(fnConst.Fn.Instructions).String()
	if !strings.Contains(dis, "OpReturnValue") {
		t.Errorf("expected function body to contain OpReturnValue, got:\n%s", dis)
	}
}

func TestCompileBreakContinue(t *testing.T) {
	bc := compileSource(t, `while (true) { break; continue; }`)
	dis := bc.Instructions.String()
	jumps := strings.Count(dis, "OpJump ")
	if jumps < 2 {
		t.Errorf("expected at least 2 OpJump instructions for break+continue, got %d:\n%s", jumps, dis)
	}
}
