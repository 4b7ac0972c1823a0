// Package native implements Tang's x86_64 native code generator: the
// NativeEmitter an ast.Node's EmitNative method writes machine code into,
// the executable-memory allocator the final buffer runs from, and the
// trampoline that calls into it.
//
// It mirrors the original binary compiler context (a growable byte buffer
// plus label/backpatch bookkeeping) with a Go-idiomatic emitter. Nothing
// here is architecture portable: Compile only attempts generation on
// GOARCH=amd64/GOOS=linux (see exec_memory_linux_amd64.go); everywhere
// else Compile declines immediately so the caller falls back to the
// bytecode VM.
package native

import (
	"github.com/dr8co/tang/ast"
)

// Register holds the fixed role assignments native code relies on across
// an emitted program, so no sequence inside it has to renegotiate where
// its context lives.
//
//   - R15: reserved for a pointer to the running *runtime.Context; the
//     trampoline does not load it and generated code does not read it
//   - R14: pointer to the context's two-word result slot, so a `return`
//     can store directly into it without a call back into Go
//   - R13: pointer to the global-variable frame
//   - R12: reserved for a local-variable frame; while native code runs
//     the trampoline keeps the saved Go stack pointer in it, and
//     generated code does not touch it
//   - R11: the entry RSP, captured by the program prologue so an error
//     bail-out mid-expression can unwind pushed operands before returning
//   - RAX, RBX, R10: scratch
//
// RBP/RSP carry the native call stack. Generated code makes no calls back
// into Go, so RDI/RSI/RCX/R8/R9 go unused (RDX is clobbered by IDIV).
const (
	RegContext     = "r15"
	RegResultSlot  = "r14"
	RegGlobalFrame = "r13"
	RegLocalFrame  = "r12"
	RegSavedStack  = "r11"
	RegScratchA    = "rax"
	RegScratchB    = "rbx"
	RegScratchC    = "r10"
)

// loopLabels is the break/continue pair tracked for one enclosing loop.
type loopLabels struct {
	breakLabel, continueLabel int
}

// functionScope holds one nested EnterFunctionScope/LeaveFunctionScope
// level's own instruction buffer, the same way the bytecode compiler's
// scope stack separates a function body from its enclosing code.
type functionScope struct {
	code      []byte
	labels    map[int]int // label id -> byte offset, once resolved
	jumps     []labelJump // patch sites recorded before their label resolves
	nextLabel int
}

type labelJump struct {
	label  int
	offset int // byte offset of the 4-byte rel32 operand to patch
}

// Context is the native code generator's NativeEmitter implementation. A
// Context is created per Compile call and discarded afterward; it holds no
// state that survives past producing one program's machine code.
type Context struct {
	constants   []any
	scopes      []*functionScope
	loops       []loopLabels
	globalSlots map[string]int
}

// NewContext creates an empty native-code generation context.
func NewContext() *Context {
	c := &Context{globalSlots: make(map[string]int)}
	c.scopes = append(c.scopes, &functionScope{labels: make(map[int]int)})
	return c
}

func (c *Context) current() *functionScope {
	return c.scopes[len(c.scopes)-1]
}

// EmitBytes appends raw machine code bytes to the current function scope's
// buffer.
func (c *Context) EmitBytes(b ...byte) {
	s := c.current()
	s.code = append(s.code, b...)
}

// AddConstant stores value in the constant pool and returns its index,
// exactly like the bytecode emitter's constant pool. No native emitter
// reads the pool back: literals are encoded as immediates.
func (c *Context) AddConstant(value any) int {
	c.constants = append(c.constants, value)
	return len(c.constants) - 1
}

// GlobalSlot returns the word-sized index name addresses in the native
// global frame (RegGlobalFrame), allocating the next sequential slot on
// first use. The bytecode path looks globals up by mangled name at
// runtime; native code computes a fixed [r13+slot*8] displacement at
// compile time instead, so the assignment is cached here.
func (c *Context) GlobalSlot(name string) int {
	if slot, ok := c.globalSlots[name]; ok {
		return slot
	}
	slot := len(c.globalSlots)
	c.globalSlots[name] = slot
	return slot
}

// GetLabel allocates a new, as-yet-unresolved label id in the current
// function scope.
func (c *Context) GetLabel() int {
	s := c.current()
	id := s.nextLabel
	s.nextLabel++
	return id
}

// AddLabelJump records a 4-byte rel32 operand at the current end of the
// buffer that SetLabel must patch once label's address is known. Emitters
// call this immediately after writing a near-jump opcode and before writing
// its placeholder operand bytes.
func (c *Context) AddLabelJump(label int) {
	s := c.current()
	s.jumps = append(s.jumps, labelJump{label: label, offset: len(s.code)})
}

// SetLabel marks label as resolved at the current end of the buffer.
// Patching of already-recorded jumps happens once the whole function body
// has been emitted, since a forward jump's target offset isn't known until
// SetLabel is reached.
func (c *Context) SetLabel(label int) {
	s := c.current()
	s.labels[label] = len(s.code)
}

// EnterLoop pushes break/continue target labels for the innermost loop.
func (c *Context) EnterLoop(breakLabel, continueLabel int) {
	c.loops = append(c.loops, loopLabels{breakLabel, continueLabel})
}

// LeaveLoop pops the innermost loop's break/continue labels.
func (c *Context) LeaveLoop() {
	c.loops = c.loops[:len(c.loops)-1]
}

// CurrentLoop returns the innermost loop's break/continue labels.
func (c *Context) CurrentLoop() (breakLabel, continueLabel int, ok bool) {
	if len(c.loops) == 0 {
		return 0, 0, false
	}
	l := c.loops[len(c.loops)-1]
	return l.breakLabel, l.continueLabel, true
}

// EnterFunctionScope pushes a fresh instruction buffer for a nested
// function literal, matching the bytecode compiler's scope stack.
func (c *Context) EnterFunctionScope() {
	c.scopes = append(c.scopes, &functionScope{labels: make(map[int]int)})
}

// LeaveFunctionScope pops the current function scope, patches its internal
// label jumps, and returns the resolved machine code.
func (c *Context) LeaveFunctionScope() []byte {
	s := c.current()
	code := patchJumps(s)
	c.scopes = c.scopes[:len(c.scopes)-1]
	return code
}

// patchJumps resolves every recorded rel32 operand against the scope's
// label table. A jump to a label that never resolved is a generator bug,
// not a user error, so it panics rather than returning false.
func patchJumps(s *functionScope) []byte {
	code := make([]byte, len(s.code))
	copy(code, s.code)
	for _, j := range s.jumps {
		target, ok := s.labels[j.label]
		if !ok {
			panic("native: unresolved label")
		}
		rel := int32(target - (j.offset + 4))
		code[j.offset] = byte(rel)
		code[j.offset+1] = byte(rel >> 8)
		code[j.offset+2] = byte(rel >> 16)
		code[j.offset+3] = byte(rel >> 24)
	}
	return code
}

// Code is one successfully compiled native program: the finished machine
// code and the number of 8-byte words its global frame needs.
type Code struct {
	Text        []byte
	GlobalWords int
}

// Compile attempts to generate native code for program. It returns false
// when any node declines native emission — per ast.Node's EmitNative
// contract, the caller must then run the whole program on the bytecode VM
// instead, since partial native/bytecode execution isn't supported.
func Compile(program *ast.Program) (*Code, bool) {
	if !nativeSupported {
		return nil, false
	}

	c := NewContext()
	if !program.EmitNative(c) {
		return nil, false
	}
	return &Code{Text: patchJumps(c.current()), GlobalWords: len(c.globalSlots)}, true
}
