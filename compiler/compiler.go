// Package compiler drives bytecode generation for a compiled Tang
// program.
//
// Unlike a tree-walking compiler with one big type switch over ast.Node,
// every node compiles itself via ast.Node.EmitBytecode; this package only
// supplies the sink those calls write to: the instruction buffer, the
// constant pool, label/backpatch bookkeeping for forward jumps, the loop
// label stack break/continue reads, and the nested-scope bookkeeping a
// function literal's body compiles into. It implements
// ast.BytecodeEmitter.
package compiler

import (
	"encoding/binary"

	"github.com/dr8co/tang/ast"
	"github.com/dr8co/tang/code"
	"github.com/dr8co/tang/value"
)

// loopFrame records the break/continue jump targets for one enclosing
// loop, pushed by EnterLoop and popped by LeaveLoop.
type loopFrame struct {
	breakLabel    int
	continueLabel int
}

// pendingPatch is one as-yet-unresolved jump operand: the byte offset
// (within the scope's instruction buffer active when AddLabelJump was
// called) to overwrite once the label's position is known.
type pendingPatch struct {
	scopeIndex int
	offset     int
}

// scope is one nested instruction buffer, pushed by EnterFunctionScope
// and popped by LeaveFunctionScope, mirroring the reference compiler's
// compilation-scope stack.
type scope struct {
	instructions code.Instructions
}

// Context compiles a single ast.Program to bytecode. Create one with New,
// call Compile, then Bytecode to retrieve the result.
type Context struct {
	scopes     []*scope
	scopeIndex int

	constants []*value.Value

	nextLabel int
	labelPos  map[int]int            // label -> resolved instruction position, once known
	pending   map[int][]pendingPatch // label -> patches awaiting that label

	loops []loopFrame
}

// New creates an empty compilation context with one (the outermost)
// instruction scope.
func New() *Context {
	return &Context{
		scopes:   []*scope{{}},
		labelPos: make(map[int]int),
		pending:  make(map[int][]pendingPatch),
	}
}

// Bytecode is the result of compiling a program: its instruction stream
// and the constant pool EmitBytecode populated along the way.
type Bytecode struct {
	Instructions code.Instructions
	Constants    []*value.Value
}

// Compile compiles program's top-level statements into the outermost
// scope, returning false if any node's EmitBytecode reports failure.
func (c *Context) Compile(program *ast.Program) bool {
	for _, stmt := range program.Statements {
		if !stmt.EmitBytecode(c) {
			return false
		}
	}
	return true
}

// Bytecode returns the compiled instructions and constant pool. Call
// after Compile.
func (c *Context) Bytecode() *Bytecode {
	return &Bytecode{Instructions: c.current(), Constants: c.constants}
}

func (c *Context) current() code.Instructions { return c.scopes[c.scopeIndex].instructions }

// Emit appends one instruction to the active scope's instruction stream
// and returns its starting byte offset.
func (c *Context) Emit(op byte, operands ...int) int {
	ins := code.Make(code.Opcode(op), operands...)
	pos := len(c.current())
	c.scopes[c.scopeIndex].instructions = append(c.current(), ins...)
	return pos
}

// AddConstant adds value to the constant pool, converting it to the
// runtime's tagged *value.Value representation, and returns its index.
// An *ast.CompiledFunction is turned into a function value; anything
// else is wrapped via the matching value constructor. Constants are
// built with a nil owner: they are compiled once and live for the
// program's whole run, never registered with any execution context's
// arena.
func (c *Context) AddConstant(v any) int {
	var cv *value.Value
	switch x := v.(type) {
	case int64:
		cv = value.NewInteger(nil, x)
	case float64:
		cv = value.NewFloat(nil, x)
	case string:
		cv = value.NewString(nil, x)
	case *ast.CompiledFunction:
		cv = value.NewFunction(nil, &value.Function{
			Name:           x.Name,
			ParameterNames: x.ParameterNames,
			Instructions:   x.Instructions,
			NumParameters:  x.NumParameters,
			NumLocals:      x.NumLocals,
		})
	default:
		cv = value.Null
	}
	c.constants = append(c.constants, cv)
	return len(c.constants) - 1
}

// GetLabel allocates a fresh, as-yet-unresolved label identifier.
func (c *Context) GetLabel() int {
	id := c.nextLabel
	c.nextLabel++
	return id
}

// AddLabelJump records that the 2-byte big-endian operand immediately
// following the opcode byte of the instruction most recently emitted in
// the active scope should be patched to label's position once SetLabel
// resolves it. If label is already resolved, the operand is patched
// immediately instead of deferred.
func (c *Context) AddLabelJump(label int) {
	offset := len(c.current()) - 2 // operand trails the 1-byte opcode
	if pos, ok := c.labelPos[label]; ok {
		c.patch(c.scopeIndex, offset, pos)
		return
	}
	c.pending[label] = append(c.pending[label], pendingPatch{scopeIndex: c.scopeIndex, offset: offset})
}

// SetLabel resolves label to the active scope's current instruction
// position and patches every jump recorded against it so far.
func (c *Context) SetLabel(label int) {
	pos := len(c.current())
	c.labelPos[label] = pos
	for _, p := range c.pending[label] {
		c.patch(p.scopeIndex, p.offset, pos)
	}
	delete(c.pending, label)
}

func (c *Context) patch(scopeIndex, offset, pos int) {
	binary.BigEndian.PutUint16(c.scopes[scopeIndex].instructions[offset:], uint16(pos))
}

// EnterLoop pushes a new loop frame, making breakLabel/continueLabel
// visible to CurrentLoop for any break/continue compiled within.
func (c *Context) EnterLoop(breakLabel, continueLabel int) {
	c.loops = append(c.loops, loopFrame{breakLabel: breakLabel, continueLabel: continueLabel})
}

// LeaveLoop pops the innermost loop frame.
func (c *Context) LeaveLoop() {
	c.loops = c.loops[:len(c.loops)-1]
}

// CurrentLoop returns the innermost loop's break/continue labels, or
// ok=false if no loop is currently open.
func (c *Context) CurrentLoop() (breakLabel, continueLabel int, ok bool) {
	if len(c.loops) == 0 {
		return 0, 0, false
	}
	top := c.loops[len(c.loops)-1]
	return top.breakLabel, top.continueLabel, true
}

// EnterFunctionScope pushes a fresh instruction buffer so a function
// body compiles independently of the instructions surrounding its
// literal. Label state is shared across scopes (label identifiers are
// unique regardless of scope), matching that a function body never
// jumps into its enclosing scope or vice versa.
func (c *Context) EnterFunctionScope() {
	c.scopes = append(c.scopes, &scope{})
	c.scopeIndex++
}

// LeaveFunctionScope pops the innermost instruction buffer and returns
// its contents.
func (c *Context) LeaveFunctionScope() []byte {
	ins := c.current()
	c.scopes = c.scopes[:len(c.scopes)-1]
	c.scopeIndex--
	return ins
}
