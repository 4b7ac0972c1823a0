// Package tang is the embedding surface for the Tang scripting language:
// parse/analyze/compile a source string into a Program, run it against an
// ExecutionContext, and read back its result and composed output.
//
// This mirrors the reference embedding API's six calls — program_create,
// program_destroy, execution_context_create, library_add, program_execute,
// execution_context_destroy — as Go methods instead of a C handle table.
package tang

import (
	"fmt"
	"math"
	"strings"

	"github.com/dr8co/tang/ast"
	"github.com/dr8co/tang/compiler"
	"github.com/dr8co/tang/lexer"
	"github.com/dr8co/tang/native"
	"github.com/dr8co/tang/parser"
	"github.com/dr8co/tang/runtime"
	"github.com/dr8co/tang/value"
	"github.com/dr8co/tang/vm"
)

// Flags configures how a Program is created and run.
type Flags uint8

const (
	// FlagDefault requests ordinary bytecode compilation and execution.
	FlagDefault Flags = 0

	// FlagDebug asks the VM to trace each dispatched opcode.
	FlagDebug Flags = 1 << (iota - 1)

	// FlagDuplicateSource copies the source string into the Program
	// rather than retaining the caller's, for callers that mutate or
	// free their buffer after program_create returns.
	FlagDuplicateSource

	// FlagDisableBytecode rejects programs that would fall back to the
	// bytecode VM, forcing native-or-fail. Mostly useful for testing the
	// native backend's coverage.
	FlagDisableBytecode

	// FlagDisableNative skips native code generation entirely and always
	// runs on the bytecode VM.
	FlagDisableNative

	// FlagIsTemplate marks source that mixes literal text with embedded
	// print statements, for hosts that render templates through Tang.
	FlagIsTemplate
)

// Program is a parsed, analyzed, and compiled unit of Tang source. Create
// one with Create, run it any number of times against fresh
// ExecutionContexts, and release it with Destroy when done.
type Program struct {
	source   string
	flags    Flags
	bytecode *compiler.Bytecode

	// native holds the loaded executable native.Compile produced, or nil
	// if native compilation was skipped or declined. Execute prefers it
	// over the bytecode when present.
	native *native.Executable
}

// Create parses, semantically analyzes, and compiles source, returning a
// Program ready to execute, or an error describing the first parse or
// analysis failure. language is accepted for API symmetry with embedders
// that host more than one language; Tang is the only one implemented here.
func Create(language, source string, flags Flags) (*Program, error) {
	if language != "" && language != "tang" {
		return nil, fmt.Errorf("tang: unsupported language %q", language)
	}

	stored := source
	if flags&FlagDuplicateSource != 0 {
		stored = strings.Clone(source)
	}

	l := lexer.New(stored)
	p := parser.New(l)
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) != 0 {
		return nil, fmt.Errorf("tang: parse error: %s", strings.Join(errs, "; "))
	}

	for _, stmt := range prog.Statements {
		if errNode := stmt.Analyze(prog, prog.GlobalScope); errNode != nil {
			return nil, fmt.Errorf("tang: analysis error: %s", errNode.Message)
		}
	}

	bindings := ast.NewBindings()
	for i, stmt := range prog.Statements {
		if n, ok := stmt.Simplify(bindings); ok {
			prog.Statements[i] = n.(ast.Statement)
		}
	}

	var exe *native.Executable
	if flags&FlagDisableNative == 0 {
		if compiled, ok := native.Compile(prog); ok {
			if loaded, err := native.NewExecutable(compiled); err == nil {
				exe = loaded
			}
		}
	}

	if exe == nil && flags&FlagDisableBytecode != 0 {
		return nil, fmt.Errorf("tang: native compilation unavailable and bytecode disabled")
	}

	c := compiler.New()
	if !c.Compile(prog) {
		if exe != nil {
			_ = exe.Release()
		}
		return nil, fmt.Errorf("tang: compilation failed")
	}

	return &Program{source: stored, flags: flags, bytecode: c.Bytecode(), native: exe}, nil
}

// Destroy releases the Program's compiled forms, including any executable
// memory the native backend mapped. After Destroy the Program must not be
// executed again.
func (p *Program) Destroy() {
	p.bytecode = nil
	if p.native != nil {
		_ = p.native.Release()
		p.native = nil
	}
}

// LibraryCallback produces the value bound to a host-registered library
// name. It is invoked once, when AddLibrary registers it, not on the
// first `use` of the name.
// The original spec's two-callback shape (one to produce the library value,
// one per native-function invocation) collapses here into ordinary Go
// closures: callback returns a *value.Value built with value.NewNativeFunction
// for any members that should be callable.
type LibraryCallback func(ctx *ExecutionContext) *value.Value

// ExecutionContext is one run of a Program: its runtime state (globals, GC
// arena, library table) plus the result and composed output left behind
// after Execute returns.
type ExecutionContext struct {
	rt      *runtime.Context
	program *Program

	// Result holds the value left on top of the VM's operand stack after
	// the last executed statement, mirroring context.result.
	Result *value.Value
}

// NewExecutionContext creates a context bound to program. The same Program
// may back many concurrent ExecutionContexts since compiled bytecode is
// read-only; each context gets its own runtime.Context (globals + GC arena).
func NewExecutionContext(program *Program) *ExecutionContext {
	rt := runtime.New()
	rt.Debug = program.flags&FlagDebug != 0
	return &ExecutionContext{rt: rt, program: program}
}

// AddLibrary registers a host-supplied library under name. callback runs
// immediately, during this call, and its return value is what `use` binds — typically value.NewMap wrapping value.NewNativeFunction
// entries, the same shape installStandardLibraries uses for math/string/array.
func (ec *ExecutionContext) AddLibrary(name string, callback LibraryCallback) {
	ec.rt.AddLibrary(name, callback(ec))
}

// Output returns the output composed by print statements during Execute.
func (ec *ExecutionContext) Output() string {
	if sb, ok := ec.rt.Output.(*strings.Builder); ok {
		return sb.String()
	}
	return ""
}

// Execute runs the context's program, dispatching to the native buffer if
// compilation produced one and to the bytecode VM otherwise. It returns
// false (with Result set to an error value) on a failure, true otherwise.
// Result and Output are both readable afterward regardless of the return
// value.
func (ec *ExecutionContext) Execute() bool {
	var out strings.Builder
	ec.rt.Output = &out

	if exe := ec.program.native; exe != nil {
		kind, bits := exe.Run()
		ec.Result = ec.boxNativeResult(kind, bits)
		return !ec.Result.IsError()
	}

	machine := vm.New(ec.program.bytecode, ec.rt)
	if err := machine.Run(); err != nil {
		ec.Result = value.ErrorValue(value.ErrInvalidBytecode)
		return false
	}

	ec.Result = machine.LastPoppedStackElem()
	return ec.Result == nil || !ec.Result.IsError()
}

// boxNativeResult lifts the {tag, bits} pair a native program left in its
// result slot into a runtime value registered with this context's arena.
func (ec *ExecutionContext) boxNativeResult(kind ast.NativeKind, bits uint64) *value.Value {
	switch kind {
	case ast.NativeKindBoolean:
		return value.Bool(bits != 0)
	case ast.NativeKindInteger:
		return value.NewInteger(ec.rt, int64(bits))
	case ast.NativeKindFloat:
		return value.NewFloat(ec.rt, math.Float64frombits(bits))
	case ast.NativeKindDivisionByZero:
		return value.ErrorValue(value.ErrDivideByZero)
	case ast.NativeKindModuloByZero:
		return value.ErrorValue(value.ErrModuloByZero)
	default:
		return value.Null
	}
}

// Destroy releases the context's GC arena and globals. After Destroy the
// context must not be used again.
func (ec *ExecutionContext) Destroy() {
	ec.rt.Destroy()
}
