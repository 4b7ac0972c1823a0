// Package ast defines the Abstract Syntax Tree (AST) for the Tang
// programming language.
//
// Every node implements a uniform protocol mirrored from the language's
// reference vtable: Print/String for diagnostics, Simplify for constant
// folding, Analyze for variable-scope resolution, and EmitBytecode/
// EmitNative for code generation. Program and Scope live in this package,
// not a separate one, because Node.Analyze needs both in its signature and
// Go (unlike a single C translation unit) rejects the resulting import
// cycle a separate package would create.
package ast

import (
	"strings"

	"github.com/dr8co/tang/token"
)

// PossibleType is a bitmask of the types a node's value might take on,
// computed and narrowed during Simplify/Analyze. It mirrors the reference
// implementation's type-inference bitmask so the bytecode/native emitters
// can skip runtime type dispatch when a node's type is already known.
type PossibleType uint8

// Bits of PossibleType. A node whose type is not yet known has Unknown
// set; a node that can raise an error has Error set alongside its other
// possible bits.
const (
	Unknown PossibleType = 1 << iota
	TypeError
	TypeNull
	TypeBoolean
	TypeInteger
	TypeFloat
	TypeString
)

// BytecodeEmitter is the subset of the bytecode generator a node needs to
// compile itself: emitting an instruction, allocating a constant slot, and
// the label/backpatch vocabulary shared with the native emitter. Defined
// here (rather than imported from package compiler) so ast never imports
// the packages that depend on it.
type BytecodeEmitter interface {
	Emit(op byte, operands ...int) int
	AddConstant(value any) int
	GetLabel() int
	AddLabelJump(label int)
	SetLabel(label int)
	EnterLoop(breakLabel, continueLabel int)
	LeaveLoop()
	CurrentLoop() (breakLabel, continueLabel int, ok bool)

	// EnterFunctionScope and LeaveFunctionScope bracket compilation of a
	// function body into its own instruction stream, mirroring the
	// reference compiler's scope stack: instructions emitted between the
	// two calls accumulate separately from the enclosing scope's, and
	// LeaveFunctionScope hands them back for wrapping in a constant.
	EnterFunctionScope()
	LeaveFunctionScope() []byte
}

// NativeEmitter is the equivalent contract for x86_64 native code
// generation, mirroring BytecodeEmitter's shape so node implementations
// stay structurally parallel between the two backends.
type NativeEmitter interface {
	EmitBytes(b ...byte)
	AddConstant(value any) int
	GetLabel() int
	AddLabelJump(label int)
	SetLabel(label int)
	EnterLoop(breakLabel, continueLabel int)
	LeaveLoop()
	CurrentLoop() (breakLabel, continueLabel int, ok bool)
	EnterFunctionScope()
	LeaveFunctionScope() []byte

	// GlobalSlot returns the word-sized slot index a global variable's
	// mangled name addresses in the native global frame (RegGlobalFrame),
	// allocating one on first use. Unlike the bytecode emitter, which
	// looks globals up by name through a constant-pool index, native
	// code computes a fixed displacement at compile time, so the slot
	// assignment has to be cached here rather than recomputed per access.
	GlobalSlot(name string) int
}

// Node is the interface every AST node implements. It mirrors the
// reference vtable's simplify, analyze, the two code generators, and
// walk; String takes the place of print, and there is no destroy method.
type Node interface {
	// TokenLiteral returns the literal value of the node's leading token.
	TokenLiteral() string

	// String returns a source-like representation, for diagnostics and tests.
	String() string

	// Pos returns the node's source position.
	Pos() token.Position

	// Type returns the node's currently known possible-type bitmask.
	Type() PossibleType

	// Simplify attempts constant folding using the current variable
	// bindings, returning a node and true if anything in the subtree was
	// simplified, or nil and false if nothing applied. Simplified children
	// are stored into the receiver in place, so the returned node may be
	// the receiver itself; the caller stores the returned node in place
	// of the original.
	Simplify(bindings *Bindings) (Node, bool)

	// Analyze resolves identifiers against scope, classifying each as
	// local, global, library, or function, and returns a non-nil error
	// node on the first declaration error (a redeclared function or
	// identifier, or an unknown cast target). A reference that resolves
	// to nothing is not an error.
	Analyze(program *Program, scope *Scope) *ErrorNode

	// EmitBytecode compiles the node to bytecode via e, returning false
	// on an unrecoverable compilation failure.
	EmitBytecode(e BytecodeEmitter) bool

	// EmitNative compiles the node to x86_64 machine code via e,
	// returning false if native compilation isn't possible for this
	// node (the caller falls back to bytecode for the whole program).
	EmitNative(e NativeEmitter) bool

	// Walk invokes callback on this node and recursively on every child,
	// pre-order.
	Walk(callback func(Node))
}

// Statement is a node that does not produce a value when executed.
type Statement interface {
	Node
	statementNode()
}

// Expression is a node that produces a value when executed.
type Expression interface {
	Node
	expressionNode()
}

// base holds the fields common to every node: its leading token (for
// TokenLiteral/position) and the possible-type bitmask narrowed by
// Simplify/Analyze. Concrete node types embed base.
type base struct {
	Token        token.Token
	PossibleType PossibleType
}

func (b *base) TokenLiteral() string { return b.Token.Literal }
func (b *base) Pos() token.Position  { return b.Token.Pos }
func (b *base) Type() PossibleType {
	if b.PossibleType == 0 {
		return Unknown
	}
	return b.PossibleType
}

// Bindings maps a mangled identifier name to the AST node most recently
// assigned to it along the current execution path, for use by Simplify.
// A missing entry means the identifier's value is unknown (not constant).
// Bindings must be cloned before entering a branch so that reassignments
// on one path don't leak into a sibling path, and merged (intersected) on
// rejoin so that only bindings identical across every path survive.
type Bindings struct {
	vars map[string]Node
}

// NewBindings creates an empty binding set.
func NewBindings() *Bindings {
	return &Bindings{vars: make(map[string]Node)}
}

// Get returns the node bound to name, if any.
func (b *Bindings) Get(name string) (Node, bool) {
	n, ok := b.vars[name]
	return n, ok
}

// Set records name as bound to n, replacing any prior binding.
func (b *Bindings) Set(name string, n Node) {
	b.vars[name] = n
}

// Invalidate removes any binding for name, marking its value as unknown.
// Called whenever an assignment's target can't be proven to be a simple
// constant, or when control flow makes the prior value unreliable.
func (b *Bindings) Invalidate(name string) {
	delete(b.vars, name)
}

// Clone returns an independent copy, for entering a branch whose
// reassignments must not be visible to sibling branches.
func (b *Bindings) Clone() *Bindings {
	cp := make(map[string]Node, len(b.vars))
	for k, v := range b.vars {
		cp[k] = v
	}
	return &Bindings{vars: cp}
}

// Intersect keeps only the bindings present and identical in both b and
// other, mutating b in place. Used to rejoin bindings after an if/else or
// loop body where either path might or might not have executed.
func (b *Bindings) Intersect(other *Bindings) {
	for k, v := range b.vars {
		ov, ok := other.vars[k]
		if !ok || ov != v {
			delete(b.vars, k)
		}
	}
}

// VarClass classifies how an identifier resolves, per the variable scope
// analyzer.
type VarClass int

// Classes a resolved identifier can belong to.
const (
	ClassUnknown VarClass = iota
	ClassLocal
	ClassGlobal
	ClassLibrary
	ClassFunction
)

// Scope tracks identifier resolution for one lexical nesting level:
// locals declared directly within it, function declarations registered
// under it, a link to its parent (nil at the outermost/global scope),
// whether it is a function boundary, and the names a `global` statement
// has forced to resolve outward.
type Scope struct {
	Parent    *Scope
	IsFunc    bool
	Name      string // scope name, used to build mangled identifiers
	locals    map[string]bool
	globals   map[string]bool // names forced global via a `global` statement
	functions map[string]bool // names bound by a function declaration
}

// NewScope creates a scope nested under parent. isFunc marks a function
// body boundary, which stops global-forcing and free-variable capture
// from reaching further outward implicitly.
func NewScope(parent *Scope, name string, isFunc bool) *Scope {
	return &Scope{
		Parent:    parent,
		IsFunc:    isFunc,
		Name:      name,
		locals:    make(map[string]bool),
		globals:   make(map[string]bool),
		functions: make(map[string]bool),
	}
}

// DeclareLocal records name as a local of this scope.
func (s *Scope) DeclareLocal(name string) {
	s.locals[name] = true
}

// DeclareFunction registers name as a function declaration of this scope.
// Registration happens at most once per scope: the caller checks
// FunctionDeclared/IdentifierDeclared first and raises the redeclaration
// errors on a hit.
func (s *Scope) DeclareFunction(name string) {
	s.functions[name] = true
}

// FunctionDeclared reports whether name is already a function declared in
// this scope. Mangled names make the same bare name in different scopes
// distinct declarations, so only the one scope is consulted.
func (s *Scope) FunctionDeclared(name string) bool {
	return s.functions[name]
}

// IdentifierDeclared reports whether name is already an ordinary variable
// of this scope, which a function declaration may not shadow.
func (s *Scope) IdentifierDeclared(name string) bool {
	return s.locals[name]
}

// ResolveFunction walks the scope chain inner-to-outer (crossing function
// boundaries, unlike variable resolution) looking for a function declared
// under name, returning its declaring scope.
func (s *Scope) ResolveFunction(name string) (*Scope, bool) {
	for cur := s; cur != nil; cur = cur.Parent {
		if cur.functions[name] {
			return cur, true
		}
	}
	return nil, false
}

// ForceGlobal records name (from a `global` statement) as resolving
// against the outermost scope rather than becoming a local here.
func (s *Scope) ForceGlobal(name string) {
	s.globals[name] = true
}

// Mangled returns the fully-qualified name used to key this identifier in
// the runtime's variable tables: "<scope-name>/<identifier>".
func (s *Scope) Mangled(name string) string {
	return s.Name + "/" + name
}

// Outermost walks up to the outermost (global) scope.
func (s *Scope) Outermost() *Scope {
	cur := s
	for cur.Parent != nil {
		cur = cur.Parent
	}
	return cur
}

// Resolve classifies name against this scope chain, per §4.3: a name
// forced global by a `global` statement in this scope (or any enclosing
// function scope reached without crossing a function boundary first, per
// the language's global statement semantics) resolves against the
// outermost scope; a name declared local in this scope or an enclosing
// non-function scope resolves locally (as ClassGlobal when that scope is
// the outermost one); otherwise it is a free reference, returned as
// ClassUnknown with a nil scope for the caller to classify.
func (s *Scope) Resolve(name string) (VarClass, *Scope) {
	for cur := s; cur != nil; cur = cur.Parent {
		if cur.globals[name] {
			return ClassGlobal, cur.Outermost()
		}
		if cur.locals[name] {
			if cur.Parent == nil {
				return ClassGlobal, cur
			}
			return ClassLocal, cur
		}
		if cur.IsFunc {
			break
		}
	}
	return ClassUnknown, nil
}

// LibraryDecl records one `use a.b.c [as name];` declaration resolved at
// the outermost scope.
type LibraryDecl struct {
	Path  []string
	Alias string
}

// Program is the root node of the AST: a complete Tang source file or
// template, compiled as a single implicit top-level function.
type Program struct {
	Statements          []Statement
	GlobalScope         *Scope
	LibraryDeclarations []LibraryDecl
	IsTemplate          bool
}

// NewProgram creates an empty program with a fresh outermost scope.
func NewProgram() *Program {
	return &Program{GlobalScope: NewScope(nil, "global", false)}
}

func (p *Program) TokenLiteral() string {
	if len(p.Statements) > 0 {
		return p.Statements[0].TokenLiteral()
	}
	return ""
}

func (p *Program) Pos() token.Position {
	if len(p.Statements) > 0 {
		return p.Statements[0].Pos()
	}
	return token.Position{}
}

func (p *Program) String() string {
	var out strings.Builder
	for _, s := range p.Statements {
		out.WriteString(s.String())
	}
	return out.String()
}

// AddLibrary records a `use` declaration in the program's outermost
// library table.
func (p *Program) AddLibrary(decl LibraryDecl) {
	p.LibraryDeclarations = append(p.LibraryDeclarations, decl)
}

// ErrorNode represents a parse- or analysis-time error discovered while
// walking the tree. Analyze returns one instead of nil on the first
// declaration error it finds; nothing below it in the tree is
// compiled.
type ErrorNode struct {
	base
	Message string
}

func NewErrorNode(tok token.Token, message string) *ErrorNode {
	return &ErrorNode{base: base{Token: tok, PossibleType: TypeError}, Message: message}
}

func (e *ErrorNode) expressionNode() {}
func (e *ErrorNode) statementNode()  {}

func (e *ErrorNode) String() string { return "<error: " + e.Message + ">" }

func (e *ErrorNode) Simplify(*Bindings) (Node, bool) { return nil, false }

func (e *ErrorNode) Analyze(*Program, *Scope) *ErrorNode { return e }

func (e *ErrorNode) EmitBytecode(BytecodeEmitter) bool { return false }
func (e *ErrorNode) EmitNative(NativeEmitter) bool     { return false }

func (e *ErrorNode) Walk(callback func(Node)) { callback(e) }
