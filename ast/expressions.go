package ast

import (
	"math"
	"strconv"
	"strings"

	"github.com/dr8co/tang/code"
	"github.com/dr8co/tang/token"
)

// walkSelf is a small helper concrete nodes use to implement Walk: call
// callback on the node itself, then on each non-nil child in order.
func walkSelf(n Node, callback func(Node), children ...Node) {
	callback(n)
	for _, c := range children {
		if c != nil {
			c.Walk(callback)
		}
	}
}

// Identifier is a name reference, resolved during Analyze into a local,
// global, library, or function-scope variable.
type Identifier struct {
	base
	Value string

	// Resolved is filled in by Analyze: which class this identifier
	// belongs to and the mangled name used to key it at runtime. For
	// ClassFunction, Storage additionally records whether the declaring
	// scope keeps the function value in the global table (outermost
	// declarations) or in a call frame's locals (nested declarations).
	Resolved VarClass
	Storage  VarClass
	Mangled  string
}

func (id *Identifier) expressionNode() {}
func (id *Identifier) String() string  { return id.Value }

func (id *Identifier) Simplify(bindings *Bindings) (Node, bool) {
	if n, ok := bindings.Get(id.Mangled); ok {
		return n, true
	}
	return nil, false
}

// Analyze resolves the identifier in the order the scope analyzer
// defines: declared variables of the scope chain first, then the
// outermost scope's declarations (captured-read globals, visible from
// inside function bodies), then the library table, then function
// declarations of each enclosing scope inner-to-outer, and finally
// implicit declaration in the current scope — reading a never-declared
// name yields null at runtime; there is no undeclared-identifier error
// in the language.
func (id *Identifier) Analyze(program *Program, scope *Scope) *ErrorNode {
	class, owner := scope.Resolve(id.Value)
	if class == ClassUnknown {
		if outer := scope.Outermost(); outer.locals[id.Value] {
			id.Resolved = ClassGlobal
			id.Mangled = outer.Mangled(id.Value)
			return nil
		}
		for _, lib := range program.LibraryDeclarations {
			name := lib.Alias
			if name == "" && len(lib.Path) > 0 {
				name = lib.Path[len(lib.Path)-1]
			}
			if name == id.Value {
				id.Resolved = ClassLibrary
				id.Mangled = id.Value
				return nil
			}
		}
		if declScope, ok := scope.ResolveFunction(id.Value); ok {
			id.Resolved = ClassFunction
			id.Storage = ClassLocal
			if declScope.Parent == nil {
				id.Storage = ClassGlobal
			}
			id.Mangled = declScope.Mangled(id.Value)
			return nil
		}
		scope.DeclareLocal(id.Value)
		class, owner = scope.Resolve(id.Value)
	}
	id.Resolved = class
	id.Mangled = owner.Mangled(id.Value)
	return nil
}

func (id *Identifier) EmitBytecode(e BytecodeEmitter) bool {
	idx := e.AddConstant(id.Mangled)
	switch id.Resolved {
	case ClassLocal:
		e.Emit(byte(code.OpGetLocal), idx)
	case ClassLibrary:
		e.Emit(byte(code.OpGetLibrary), idx)
	case ClassFunction:
		// A function reference reads the slot its declaration stored the
		// function value into, in the declaring scope's frame.
		if id.Storage == ClassLocal {
			e.Emit(byte(code.OpGetLocal), idx)
		} else {
			e.Emit(byte(code.OpGetGlobal), idx)
		}
	default:
		e.Emit(byte(code.OpGetGlobal), idx)
	}
	return true
}

// EmitNative loads the identifier's current value as a raw 64-bit word.
// Only ClassGlobal identifiers with a scalar type concluded by
// inferGlobalTypes are native-eligible: locals only exist inside a
// function scope, and function literals/calls always decline native
// compilation for the whole program (see FunctionLiteral.EmitNative), so a
// ClassLocal reference can't actually appear in surviving native code. An
// untyped global read must decline too — its slot's raw word has no known
// representation, and declining here is what keeps the optimistic type
// inference sound (see inferGlobalTypes).
func (id *Identifier) EmitNative(e NativeEmitter) bool {
	if id.Resolved != ClassGlobal || !nativeEligible(id.Type()) {
		return false
	}
	emitLoadGlobal(e, e.GlobalSlot(id.Mangled))
	emitPushRAX(e)
	return true
}
func (id *Identifier) Walk(callback func(Node))      { walkSelf(id, callback) }

// IntegerLiteral is a literal integer value.
type IntegerLiteral struct {
	base
	Value int64
}

func (il *IntegerLiteral) expressionNode() {}
func (il *IntegerLiteral) String() string  { return il.Token.Literal }
func (il *IntegerLiteral) Simplify(*Bindings) (Node, bool) { return nil, false }
func (il *IntegerLiteral) Analyze(*Program, *Scope) *ErrorNode {
	il.PossibleType = TypeInteger
	return nil
}
func (il *IntegerLiteral) EmitBytecode(e BytecodeEmitter) bool {
	e.Emit(byte(code.OpConstant), e.AddConstant(il.Value))
	return true
}
func (il *IntegerLiteral) EmitNative(e NativeEmitter) bool {
	emitMovRAXImm64(e, uint64(il.Value))
	emitPushRAX(e)
	return true
}
func (il *IntegerLiteral) Walk(callback func(Node))      { walkSelf(il, callback) }

// FloatLiteral is a literal floating-point value.
type FloatLiteral struct {
	base
	Value float64
}

func (fl *FloatLiteral) expressionNode() {}
func (fl *FloatLiteral) String() string  { return fl.Token.Literal }
func (fl *FloatLiteral) Simplify(*Bindings) (Node, bool) { return nil, false }
func (fl *FloatLiteral) Analyze(*Program, *Scope) *ErrorNode {
	fl.PossibleType = TypeFloat
	return nil
}
func (fl *FloatLiteral) EmitBytecode(e BytecodeEmitter) bool {
	e.Emit(byte(code.OpConstant), e.AddConstant(fl.Value))
	return true
}
func (fl *FloatLiteral) EmitNative(e NativeEmitter) bool {
	emitMovRAXImm64(e, math.Float64bits(fl.Value))
	emitPushRAX(e)
	return true
}
func (fl *FloatLiteral) Walk(callback func(Node))      { walkSelf(fl, callback) }

// StringLiteral is a literal string value.
type StringLiteral struct {
	base
	Value string
}

func (sl *StringLiteral) expressionNode() {}
func (sl *StringLiteral) String() string  { return strconv.Quote(sl.Value) }
func (sl *StringLiteral) Simplify(*Bindings) (Node, bool) { return nil, false }
func (sl *StringLiteral) Analyze(*Program, *Scope) *ErrorNode {
	sl.PossibleType = TypeString
	return nil
}
func (sl *StringLiteral) EmitBytecode(e BytecodeEmitter) bool {
	e.Emit(byte(code.OpConstant), e.AddConstant(sl.Value))
	return true
}
func (sl *StringLiteral) EmitNative(NativeEmitter) bool { return false }
func (sl *StringLiteral) Walk(callback func(Node))      { walkSelf(sl, callback) }

// Boolean is a literal true/false value.
type Boolean struct {
	base
	Value bool
}

func (b *Boolean) expressionNode() {}
func (b *Boolean) String() string  { return b.Token.Literal }
func (b *Boolean) Simplify(*Bindings) (Node, bool) { return nil, false }
func (b *Boolean) Analyze(*Program, *Scope) *ErrorNode {
	b.PossibleType = TypeBoolean
	return nil
}
func (b *Boolean) EmitBytecode(e BytecodeEmitter) bool {
	if b.Value {
		e.Emit(byte(code.OpTrue))
	} else {
		e.Emit(byte(code.OpFalse))
	}
	return true
}
func (b *Boolean) EmitNative(e NativeEmitter) bool {
	if b.Value {
		emitMovRAXImm64(e, 1)
	} else {
		emitMovRAXImm64(e, 0)
	}
	emitPushRAX(e)
	return true
}
func (b *Boolean) Walk(callback func(Node))      { walkSelf(b, callback) }

// NullLiteral is the `null` literal.
type NullLiteral struct{ base }

func (n *NullLiteral) expressionNode() {}
func (n *NullLiteral) String() string  { return "null" }
func (n *NullLiteral) Simplify(*Bindings) (Node, bool) { return nil, false }
func (n *NullLiteral) Analyze(*Program, *Scope) *ErrorNode {
	n.PossibleType = TypeNull
	return nil
}
func (n *NullLiteral) EmitBytecode(e BytecodeEmitter) bool {
	e.Emit(byte(code.OpNull))
	return true
}
func (n *NullLiteral) EmitNative(e NativeEmitter) bool {
	emitMovRAXImm64(e, 0)
	emitPushRAX(e)
	return true
}
func (n *NullLiteral) Walk(callback func(Node))      { walkSelf(n, callback) }

// ArrayLiteral is an array literal expression, e.g. `[1, 2 * 2, 3 + 3]`.
type ArrayLiteral struct {
	base
	Elements []Expression
}

func (al *ArrayLiteral) expressionNode() {}

func (al *ArrayLiteral) String() string {
	var out strings.Builder
	elems := make([]string, 0, len(al.Elements))
	for _, el := range al.Elements {
		elems = append(elems, el.String())
	}
	out.WriteString("[")
	out.WriteString(strings.Join(elems, ", "))
	out.WriteString("]")
	return out.String()
}

func (al *ArrayLiteral) Simplify(bindings *Bindings) (Node, bool) {
	changed := false
	for i, el := range al.Elements {
		if n, ok := el.Simplify(bindings); ok {
			al.Elements[i] = n.(Expression)
			changed = true
		}
	}
	return al, changed
}

func (al *ArrayLiteral) Analyze(program *Program, scope *Scope) *ErrorNode {
	for _, el := range al.Elements {
		if err := el.Analyze(program, scope); err != nil {
			return err
		}
	}
	return nil
}

func (al *ArrayLiteral) EmitBytecode(e BytecodeEmitter) bool {
	for _, el := range al.Elements {
		if !el.EmitBytecode(e) {
			return false
		}
	}
	e.Emit(byte(code.OpArray), len(al.Elements))
	return true
}
func (al *ArrayLiteral) EmitNative(NativeEmitter) bool { return false }
func (al *ArrayLiteral) Walk(callback func(Node)) {
	callback(al)
	for _, el := range al.Elements {
		el.Walk(callback)
	}
}

// MapPair is one key/value pair of a MapLiteral, kept as a slice (rather
// than a Go map keyed by Expression) so evaluation order is deterministic.
type MapPair struct {
	Key   Expression
	Value Expression
}

// MapLiteral is a map literal expression, e.g. `{"a": 1, "b": 2}`.
type MapLiteral struct {
	base
	Pairs []MapPair
}

func (ml *MapLiteral) expressionNode() {}

func (ml *MapLiteral) String() string {
	var out strings.Builder
	pairs := make([]string, 0, len(ml.Pairs))
	for _, p := range ml.Pairs {
		pairs = append(pairs, p.Key.String()+": "+p.Value.String())
	}
	out.WriteString("{")
	out.WriteString(strings.Join(pairs, ", "))
	out.WriteString("}")
	return out.String()
}

func (ml *MapLiteral) Simplify(bindings *Bindings) (Node, bool) {
	changed := false
	for i, p := range ml.Pairs {
		if n, ok := p.Key.Simplify(bindings); ok {
			ml.Pairs[i].Key = n.(Expression)
			changed = true
		}
		if n, ok := p.Value.Simplify(bindings); ok {
			ml.Pairs[i].Value = n.(Expression)
			changed = true
		}
	}
	return ml, changed
}

func (ml *MapLiteral) Analyze(program *Program, scope *Scope) *ErrorNode {
	for _, p := range ml.Pairs {
		if err := p.Key.Analyze(program, scope); err != nil {
			return err
		}
		if err := p.Value.Analyze(program, scope); err != nil {
			return err
		}
	}
	return nil
}

func (ml *MapLiteral) EmitBytecode(e BytecodeEmitter) bool {
	for _, p := range ml.Pairs {
		if !p.Key.EmitBytecode(e) || !p.Value.EmitBytecode(e) {
			return false
		}
	}
	e.Emit(byte(code.OpMap), len(ml.Pairs))
	return true
}
func (ml *MapLiteral) EmitNative(NativeEmitter) bool { return false }
func (ml *MapLiteral) Walk(callback func(Node)) {
	callback(ml)
	for _, p := range ml.Pairs {
		p.Key.Walk(callback)
		p.Value.Walk(callback)
	}
}

// FunctionLiteral is a function definition, e.g.
// `function(x, y) { return x + y; }`.
type FunctionLiteral struct {
	base
	Parameters []*Identifier
	Body       *BlockStatement
	Name       string

	// NumLocals is filled in by Analyze, once the body's scope has
	// finished declaring every local.
	NumLocals int
}

func (fl *FunctionLiteral) expressionNode() {}

func (fl *FunctionLiteral) String() string {
	var out strings.Builder
	params := make([]string, 0, len(fl.Parameters))
	for _, p := range fl.Parameters {
		params = append(params, p.String())
	}
	out.WriteString(fl.TokenLiteral())
	if fl.Name != "" {
		out.WriteString(" " + fl.Name)
	}
	out.WriteString("(")
	out.WriteString(strings.Join(params, ", "))
	out.WriteString(") ")
	out.WriteString(fl.Body.String())
	return out.String()
}

func (fl *FunctionLiteral) Simplify(*Bindings) (Node, bool) {
	// Function bodies fold under their own fresh bindings, not the
	// enclosing scope's, since reassignments outside can't be assumed to
	// hold by the time (if ever) the function runs.
	inner := NewBindings()
	fl.Body.Simplify(inner)
	return nil, false
}

func (fl *FunctionLiteral) Analyze(program *Program, scope *Scope) *ErrorNode {
	fnScope := NewScope(scope, scope.Name+"/"+fl.Name, true)
	for _, p := range fl.Parameters {
		fnScope.DeclareLocal(p.Value)
	}
	declareLocals(fl.Body, fnScope)
	if err := fl.Body.Analyze(program, fnScope); err != nil {
		return err
	}
	for _, p := range fl.Parameters {
		p.Resolved = ClassLocal
		p.Mangled = fnScope.Mangled(p.Value)
	}
	fl.NumLocals = len(fnScope.locals)
	return nil
}

func (fl *FunctionLiteral) EmitBytecode(e BytecodeEmitter) bool {
	e.EnterFunctionScope()
	ok := fl.Body.EmitBytecode(e)
	e.Emit(byte(code.OpReturn))
	instructions := e.LeaveFunctionScope()
	if !ok {
		return false
	}
	paramNames := make([]string, len(fl.Parameters))
	for i, p := range fl.Parameters {
		paramNames[i] = p.Mangled
	}
	idx := e.AddConstant(&CompiledFunction{
		Instructions:   instructions,
		ParameterNames: paramNames,
		NumParameters:  len(fl.Parameters),
		NumLocals:      fl.NumLocals,
		Name:           fl.Name,
	})
	e.Emit(byte(code.OpConstant), idx)
	return true
}

// CompiledFunction is the constant-pool payload a FunctionLiteral compiles
// to: a self-contained instruction stream plus the parameter/local counts
// the VM needs to set up a call frame. The compiler package turns this
// into a *value.Value of kind function when building the final constant
// pool, keeping package ast free of a dependency on package value.
type CompiledFunction struct {
	Instructions   []byte
	ParameterNames []string
	NumParameters  int
	NumLocals      int
	Name           string
}
func (fl *FunctionLiteral) EmitNative(NativeEmitter) bool { return false }
func (fl *FunctionLiteral) Walk(callback func(Node)) {
	callback(fl)
	for _, p := range fl.Parameters {
		p.Walk(callback)
	}
	fl.Body.Walk(callback)
}

// declareLocals walks a block looking for direct assignment targets and
// registers each as a local of scope before analysis resolves any
// reference to it, so forward references within the same function body
// resolve correctly regardless of statement order. Function declarations
// are skipped: they register through the function table during analysis,
// and pre-declaring their name as a local would read as an identifier
// redeclaration when the declaration itself is reached.
func declareLocals(block *BlockStatement, scope *Scope) {
	for _, stmt := range block.Statements {
		exprStmt, ok := stmt.(*ExpressionStatement)
		if !ok || exprStmt.Expression == nil {
			continue
		}
		assign, ok := exprStmt.Expression.(*AssignExpression)
		if !ok {
			continue
		}
		ident, ok := assign.Target.(*Identifier)
		if !ok {
			continue
		}
		if _, isFn := assign.Value.(*FunctionLiteral); isFn {
			continue
		}
		if _, owner := scope.Resolve(ident.Value); owner == nil {
			scope.DeclareLocal(ident.Value)
		}
	}
}

// CallExpression is a function call, e.g. `add(1, 2)`.
type CallExpression struct {
	base
	Function  Expression
	Arguments []Expression
}

func (ce *CallExpression) expressionNode() {}

func (ce *CallExpression) String() string {
	var out strings.Builder
	args := make([]string, 0, len(ce.Arguments))
	for _, a := range ce.Arguments {
		args = append(args, a.String())
	}
	out.WriteString(ce.Function.String())
	out.WriteString("(")
	out.WriteString(strings.Join(args, ", "))
	out.WriteString(")")
	return out.String()
}

func (ce *CallExpression) Simplify(bindings *Bindings) (Node, bool) {
	changed := false
	if n, ok := ce.Function.Simplify(bindings); ok {
		ce.Function = n.(Expression)
		changed = true
	}
	for i, a := range ce.Arguments {
		if n, ok := a.Simplify(bindings); ok {
			ce.Arguments[i] = n.(Expression)
			changed = true
		}
	}
	return ce, changed
}

func (ce *CallExpression) Analyze(program *Program, scope *Scope) *ErrorNode {
	if err := ce.Function.Analyze(program, scope); err != nil {
		return err
	}
	for _, a := range ce.Arguments {
		if err := a.Analyze(program, scope); err != nil {
			return err
		}
	}
	return nil
}

func (ce *CallExpression) EmitBytecode(e BytecodeEmitter) bool {
	if !ce.Function.EmitBytecode(e) {
		return false
	}
	for _, a := range ce.Arguments {
		if !a.EmitBytecode(e) {
			return false
		}
	}
	e.Emit(byte(code.OpCall), len(ce.Arguments))
	return true
}
func (ce *CallExpression) EmitNative(NativeEmitter) bool { return false }
func (ce *CallExpression) Walk(callback func(Node)) {
	callback(ce)
	ce.Function.Walk(callback)
	for _, a := range ce.Arguments {
		a.Walk(callback)
	}
}

// IndexExpression is a collection index, e.g. `myArray[1]`.
type IndexExpression struct {
	base
	Left  Expression
	Index Expression
}

func (ie *IndexExpression) expressionNode() {}
func (ie *IndexExpression) String() string {
	return "(" + ie.Left.String() + "[" + ie.Index.String() + "])"
}

func (ie *IndexExpression) Simplify(bindings *Bindings) (Node, bool) {
	changed := false
	if n, ok := ie.Left.Simplify(bindings); ok {
		ie.Left = n.(Expression)
		changed = true
	}
	if n, ok := ie.Index.Simplify(bindings); ok {
		ie.Index = n.(Expression)
		changed = true
	}
	return ie, changed
}

func (ie *IndexExpression) Analyze(program *Program, scope *Scope) *ErrorNode {
	if err := ie.Left.Analyze(program, scope); err != nil {
		return err
	}
	return ie.Index.Analyze(program, scope)
}

func (ie *IndexExpression) EmitBytecode(e BytecodeEmitter) bool {
	if !ie.Left.EmitBytecode(e) || !ie.Index.EmitBytecode(e) {
		return false
	}
	e.Emit(byte(code.OpIndex))
	return true
}
func (ie *IndexExpression) EmitNative(NativeEmitter) bool { return false }
func (ie *IndexExpression) Walk(callback func(Node)) {
	callback(ie)
	ie.Left.Walk(callback)
	ie.Index.Walk(callback)
}

// SliceExpression is a collection slice, e.g. `a[-2:]` or `a[1:5:2]`. Any
// of Begin/End/Skip may be nil, meaning that bound was omitted.
type SliceExpression struct {
	base
	Left  Expression
	Begin Expression
	End   Expression
	Skip  Expression
}

func (se *SliceExpression) expressionNode() {}

func (se *SliceExpression) String() string {
	var out strings.Builder
	out.WriteString("(")
	out.WriteString(se.Left.String())
	out.WriteString("[")
	if se.Begin != nil {
		out.WriteString(se.Begin.String())
	}
	out.WriteString(":")
	if se.End != nil {
		out.WriteString(se.End.String())
	}
	if se.Skip != nil {
		out.WriteString(":")
		out.WriteString(se.Skip.String())
	}
	out.WriteString("])")
	return out.String()
}

func (se *SliceExpression) Simplify(bindings *Bindings) (Node, bool) {
	changed := false
	for _, pair := range []*Expression{&se.Begin, &se.End, &se.Skip} {
		if *pair == nil {
			continue
		}
		if n, ok := (*pair).Simplify(bindings); ok {
			*pair = n.(Expression)
			changed = true
		}
	}
	return se, changed
}

func (se *SliceExpression) Analyze(program *Program, scope *Scope) *ErrorNode {
	if err := se.Left.Analyze(program, scope); err != nil {
		return err
	}
	for _, e := range []Expression{se.Begin, se.End, se.Skip} {
		if e == nil {
			continue
		}
		if err := e.Analyze(program, scope); err != nil {
			return err
		}
	}
	return nil
}

func (se *SliceExpression) EmitBytecode(e BytecodeEmitter) bool {
	if !se.Left.EmitBytecode(e) {
		return false
	}
	for _, bound := range []Expression{se.Begin, se.End, se.Skip} {
		if bound == nil {
			e.Emit(byte(code.OpNull))
			continue
		}
		if !bound.EmitBytecode(e) {
			return false
		}
	}
	e.Emit(byte(code.OpSlice))
	return true
}
func (se *SliceExpression) EmitNative(NativeEmitter) bool { return false }
func (se *SliceExpression) Walk(callback func(Node)) {
	callback(se)
	se.Left.Walk(callback)
	for _, e := range []Expression{se.Begin, se.End, se.Skip} {
		if e != nil {
			e.Walk(callback)
		}
	}
}

// AttributeExpression is a period-access expression, e.g. `value.size` or
// `response.html`.
type AttributeExpression struct {
	base
	Left Expression
	Name string
}

func (ae *AttributeExpression) expressionNode() {}
func (ae *AttributeExpression) String() string  { return "(" + ae.Left.String() + "." + ae.Name + ")" }

func (ae *AttributeExpression) Simplify(bindings *Bindings) (Node, bool) {
	if n, ok := ae.Left.Simplify(bindings); ok {
		ae.Left = n.(Expression)
		return ae, true
	}
	return nil, false
}

func (ae *AttributeExpression) Analyze(program *Program, scope *Scope) *ErrorNode {
	return ae.Left.Analyze(program, scope)
}

func (ae *AttributeExpression) EmitBytecode(e BytecodeEmitter) bool {
	if !ae.Left.EmitBytecode(e) {
		return false
	}
	e.Emit(byte(code.OpAttribute), e.AddConstant(ae.Name))
	return true
}
func (ae *AttributeExpression) EmitNative(NativeEmitter) bool { return false }
func (ae *AttributeExpression) Walk(callback func(Node)) {
	callback(ae)
	ae.Left.Walk(callback)
}

// PrefixExpression is a prefix operator expression, e.g. `-5` or `!true`.
type PrefixExpression struct {
	base
	Operator string
	Right    Expression
}

func (pe *PrefixExpression) expressionNode() {}
func (pe *PrefixExpression) String() string {
	return "(" + pe.Operator + pe.Right.String() + ")"
}

func (pe *PrefixExpression) Simplify(bindings *Bindings) (Node, bool) {
	if n, ok := pe.Right.Simplify(bindings); ok {
		pe.Right = n.(Expression)
	}
	switch right := pe.Right.(type) {
	case *IntegerLiteral:
		switch pe.Operator {
		case "-":
			return &IntegerLiteral{base: base{Token: pe.Token, PossibleType: TypeInteger}, Value: -right.Value}, true
		}
	case *FloatLiteral:
		switch pe.Operator {
		case "-":
			return &FloatLiteral{base: base{Token: pe.Token, PossibleType: TypeFloat}, Value: -right.Value}, true
		}
	case *Boolean:
		if pe.Operator == "!" {
			return &Boolean{base: base{Token: pe.Token, PossibleType: TypeBoolean}, Value: !right.Value}, true
		}
	}
	return pe, false
}

func (pe *PrefixExpression) Analyze(program *Program, scope *Scope) *ErrorNode {
	if err := pe.Right.Analyze(program, scope); err != nil {
		return err
	}
	switch pe.Operator {
	case "-":
		if t := pe.Right.Type(); t == TypeInteger || t == TypeFloat {
			pe.PossibleType = t
		}
	case "!":
		if pe.Right.Type() == TypeBoolean {
			pe.PossibleType = TypeBoolean
		}
	}
	return nil
}

func (pe *PrefixExpression) EmitBytecode(e BytecodeEmitter) bool {
	if !pe.Right.EmitBytecode(e) {
		return false
	}
	switch pe.Operator {
	case "-":
		e.Emit(byte(code.OpMinus))
	case "!":
		e.Emit(byte(code.OpBang))
	default:
		return false
	}
	return true
}
func (pe *PrefixExpression) EmitNative(e NativeEmitter) bool {
	rt := pe.Right.Type()
	switch pe.Operator {
	case "-":
		if rt != TypeInteger && rt != TypeFloat {
			return false
		}
	case "!":
		if rt != TypeBoolean {
			return false
		}
	default:
		return false
	}
	if !pe.Right.EmitNative(e) {
		return false
	}
	emitPopRAX(e)
	switch pe.Operator {
	case "-":
		if rt == TypeInteger {
			emitNegRAX(e)
		} else {
			emitFlipSignRAX(e)
		}
	case "!":
		emitNotRAX(e)
	}
	emitPushRAX(e)
	return true
}
func (pe *PrefixExpression) Walk(callback func(Node)) {
	callback(pe)
	pe.Right.Walk(callback)
}

// InfixExpression is a binary operator expression, e.g. `5 + 5`, `x == y`,
// or a short-circuiting `a && b` / `a || b`.
type InfixExpression struct {
	base
	Left     Expression
	Operator string
	Right    Expression
}

func (ie *InfixExpression) expressionNode() {}
func (ie *InfixExpression) String() string {
	return "(" + ie.Left.String() + " " + ie.Operator + " " + ie.Right.String() + ")"
}

func (ie *InfixExpression) Simplify(bindings *Bindings) (Node, bool) {
	changed := false
	if n, ok := ie.Left.Simplify(bindings); ok {
		ie.Left = n.(Expression)
		changed = true
	}
	if n, ok := ie.Right.Simplify(bindings); ok {
		ie.Right = n.(Expression)
		changed = true
	}
	if folded, ok := foldInfix(ie.Token, ie.Operator, ie.Left, ie.Right); ok {
		return folded, true
	}
	return ie, changed
}

// foldInfix constant-folds an infix expression whose operands are both
// literals of the same concrete kind. Mixed int/float operands are left
// unfolded; the cast opcode handles promotion at runtime instead.
func foldInfix(tok token.Token, op string, left, right Expression) (Node, bool) {
	li, lIsInt := left.(*IntegerLiteral)
	ri, rIsInt := right.(*IntegerLiteral)
	if lIsInt && rIsInt {
		switch op {
		case "+":
			return &IntegerLiteral{base: base{Token: tok, PossibleType: TypeInteger}, Value: li.Value + ri.Value}, true
		case "-":
			return &IntegerLiteral{base: base{Token: tok, PossibleType: TypeInteger}, Value: li.Value - ri.Value}, true
		case "*":
			return &IntegerLiteral{base: base{Token: tok, PossibleType: TypeInteger}, Value: li.Value * ri.Value}, true
		case "<":
			return &Boolean{base: base{Token: tok, PossibleType: TypeBoolean}, Value: li.Value < ri.Value}, true
		case ">":
			return &Boolean{base: base{Token: tok, PossibleType: TypeBoolean}, Value: li.Value > ri.Value}, true
		case "==":
			return &Boolean{base: base{Token: tok, PossibleType: TypeBoolean}, Value: li.Value == ri.Value}, true
		case "!=":
			return &Boolean{base: base{Token: tok, PossibleType: TypeBoolean}, Value: li.Value != ri.Value}, true
		}
	}
	lf, lIsFloat := left.(*FloatLiteral)
	rf, rIsFloat := right.(*FloatLiteral)
	if lIsFloat && rIsFloat {
		switch op {
		case "+":
			return &FloatLiteral{base: base{Token: tok, PossibleType: TypeFloat}, Value: lf.Value + rf.Value}, true
		case "-":
			return &FloatLiteral{base: base{Token: tok, PossibleType: TypeFloat}, Value: lf.Value - rf.Value}, true
		case "*":
			return &FloatLiteral{base: base{Token: tok, PossibleType: TypeFloat}, Value: lf.Value * rf.Value}, true
		}
	}
	ls, lIsStr := left.(*StringLiteral)
	rs, rIsStr := right.(*StringLiteral)
	if lIsStr && rIsStr && op == "+" {
		return &StringLiteral{base: base{Token: tok, PossibleType: TypeString}, Value: ls.Value + rs.Value}, true
	}
	return nil, false
}

func (ie *InfixExpression) Analyze(program *Program, scope *Scope) *ErrorNode {
	if err := ie.Left.Analyze(program, scope); err != nil {
		return err
	}
	if err := ie.Right.Analyze(program, scope); err != nil {
		return err
	}
	ie.PossibleType = inferInfixType(ie.Operator, ie.Left.Type(), ie.Right.Type())
	return nil
}

// inferInfixType narrows an infix expression's static type from its
// operator and operand types. The bytecode path dispatches on the runtime
// value instead and has no use for this; it exists so the native code
// generator can decide, at compile time, whether an operand is provably an
// integer or a float word without consulting a runtime value vtable.
func inferInfixType(op string, lt, rt PossibleType) PossibleType {
	switch op {
	case "+", "-", "*", "/", "%":
		if lt == TypeInteger && rt == TypeInteger {
			return TypeInteger
		}
		if lt == TypeFloat && rt == TypeFloat {
			return TypeFloat
		}
		if op == "+" && lt == TypeString && rt == TypeString {
			return TypeString
		}
	case "<", "<=", ">", ">=", "==", "!=":
		if lt == rt && (lt == TypeInteger || lt == TypeFloat) {
			return TypeBoolean
		}
	case "&&", "||":
		if lt == TypeBoolean && rt == TypeBoolean {
			return TypeBoolean
		}
	}
	return Unknown
}

func (ie *InfixExpression) EmitBytecode(e BytecodeEmitter) bool {
	if ie.Operator == "&&" || ie.Operator == "||" {
		return ie.emitShortCircuit(e)
	}
	if !ie.Left.EmitBytecode(e) || !ie.Right.EmitBytecode(e) {
		return false
	}
	switch ie.Operator {
	case "+":
		e.Emit(byte(code.OpAdd))
	case "-":
		e.Emit(byte(code.OpSub))
	case "*":
		e.Emit(byte(code.OpMul))
	case "/":
		e.Emit(byte(code.OpDiv))
	case "%":
		e.Emit(byte(code.OpMod))
	case "==":
		e.Emit(byte(code.OpEqual))
	case "!=":
		e.Emit(byte(code.OpNotEqual))
	case "<":
		e.Emit(byte(code.OpLessThan))
	case "<=":
		e.Emit(byte(code.OpLessEqual))
	case ">":
		e.Emit(byte(code.OpGreaterThan))
	case ">=":
		e.Emit(byte(code.OpGreaterEqual))
	default:
		return false
	}
	return true
}

// emitShortCircuit compiles && and || to jump-based short-circuit
// evaluation rather than an eager logical opcode, matching how the
// reference VM's bytecode avoids evaluating the right operand when the
// left already decides the result.
func (ie *InfixExpression) emitShortCircuit(e BytecodeEmitter) bool {
	if !ie.Left.EmitBytecode(e) {
		return false
	}
	e.Emit(byte(code.OpDup))
	skipLabel := e.GetLabel()
	if ie.Operator == "&&" {
		e.Emit(byte(code.OpJumpNotTruthy))
	} else {
		e.Emit(byte(code.OpBang))
		e.Emit(byte(code.OpJumpNotTruthy))
	}
	e.AddLabelJump(skipLabel)
	e.Emit(byte(code.OpPop))
	if !ie.Right.EmitBytecode(e) {
		return false
	}
	e.SetLabel(skipLabel)
	return true
}

func (ie *InfixExpression) EmitNative(e NativeEmitter) bool {
	if ie.Operator == "&&" || ie.Operator == "||" {
		return ie.emitNativeShortCircuit(e)
	}
	if ie.Type() == Unknown {
		return false
	}
	if !ie.Left.EmitNative(e) || !ie.Right.EmitNative(e) {
		return false
	}
	isFloat := ie.Left.Type() == TypeFloat
	emitPopRBX(e)
	emitPopRAX(e)
	switch ie.Operator {
	case "+", "-", "*":
		if isFloat {
			emitFloatArith(e, ie.Operator)
		} else if ie.Operator == "+" {
			emitAddRAXRBX(e)
		} else if ie.Operator == "-" {
			emitSubRAXRBX(e)
		} else {
			emitMulRAXRBX(e)
		}
	case "/":
		if isFloat {
			emitFloatArith(e, "/")
		} else {
			emitIntDivMod(e, false)
		}
	case "%":
		if isFloat {
			return false
		}
		emitIntDivMod(e, true)
	case "<", "<=", ">", ">=", "==", "!=":
		emitCompare(e, ie.Operator, isFloat)
	default:
		return false
	}
	emitPushRAX(e)
	return true
}

// emitNativeShortCircuit mirrors emitShortCircuit's jump discipline using
// the real machine stack: evaluate Left, keep one copy on the stack while
// testing it in RAX, and either leave that copy as the final result (the
// short-circuiting case) or discard it and evaluate Right in its place.
func (ie *InfixExpression) emitNativeShortCircuit(e NativeEmitter) bool {
	if ie.Left.Type() != TypeBoolean || ie.Right.Type() != TypeBoolean {
		return false
	}
	if !ie.Left.EmitNative(e) {
		return false
	}
	emitPopRAX(e)
	emitPushRAX(e)
	emitTestRAX(e)
	skipLabel := e.GetLabel()
	if ie.Operator == "&&" {
		emitJZ(e, skipLabel)
	} else {
		emitJNZ(e, skipLabel)
	}
	emitPopRAX(e)
	if !ie.Right.EmitNative(e) {
		return false
	}
	e.SetLabel(skipLabel)
	return true
}
func (ie *InfixExpression) Walk(callback func(Node)) {
	callback(ie)
	ie.Left.Walk(callback)
	ie.Right.Walk(callback)
}

// TernaryExpression is a conditional expression, e.g. `cond ? a : b`.
type TernaryExpression struct {
	base
	Condition   Expression
	Consequence Expression
	Alternative Expression
}

func (te *TernaryExpression) expressionNode() {}
func (te *TernaryExpression) String() string {
	return "(" + te.Condition.String() + " ? " + te.Consequence.String() + " : " + te.Alternative.String() + ")"
}

func (te *TernaryExpression) Simplify(bindings *Bindings) (Node, bool) {
	if n, ok := te.Condition.Simplify(bindings); ok {
		te.Condition = n.(Expression)
	}
	if b, ok := te.Condition.(*Boolean); ok {
		if b.Value {
			return te.Consequence, true
		}
		return te.Alternative, true
	}
	changed := false
	if n, ok := te.Consequence.Simplify(bindings.Clone()); ok {
		te.Consequence = n.(Expression)
		changed = true
	}
	if n, ok := te.Alternative.Simplify(bindings.Clone()); ok {
		te.Alternative = n.(Expression)
		changed = true
	}
	return te, changed
}

func (te *TernaryExpression) Analyze(program *Program, scope *Scope) *ErrorNode {
	if err := te.Condition.Analyze(program, scope); err != nil {
		return err
	}
	if err := te.Consequence.Analyze(program, scope); err != nil {
		return err
	}
	if err := te.Alternative.Analyze(program, scope); err != nil {
		return err
	}
	if ct, at := te.Consequence.Type(), te.Alternative.Type(); ct == at && nativeEligible(ct) {
		te.PossibleType = ct
	}
	return nil
}

func (te *TernaryExpression) EmitBytecode(e BytecodeEmitter) bool {
	if !te.Condition.EmitBytecode(e) {
		return false
	}
	e.Emit(byte(code.OpJumpNotTruthy))
	altLabel := e.GetLabel()
	e.AddLabelJump(altLabel)
	if !te.Consequence.EmitBytecode(e) {
		return false
	}
	e.Emit(byte(code.OpJump))
	endLabel := e.GetLabel()
	e.AddLabelJump(endLabel)
	e.SetLabel(altLabel)
	if !te.Alternative.EmitBytecode(e) {
		return false
	}
	e.SetLabel(endLabel)
	return true
}
func (te *TernaryExpression) EmitNative(e NativeEmitter) bool {
	if te.Condition.Type() != TypeBoolean {
		return false
	}
	if !te.Condition.EmitNative(e) {
		return false
	}
	emitPopRAX(e)
	emitTestRAX(e)
	altLabel := e.GetLabel()
	emitJZ(e, altLabel)

	if !te.Consequence.EmitNative(e) {
		return false
	}
	endLabel := e.GetLabel()
	emitJMP(e, endLabel)

	e.SetLabel(altLabel)
	if !te.Alternative.EmitNative(e) {
		return false
	}
	e.SetLabel(endLabel)
	return true
}
func (te *TernaryExpression) Walk(callback func(Node)) {
	callback(te)
	te.Condition.Walk(callback)
	te.Consequence.Walk(callback)
	te.Alternative.Walk(callback)
}

// CastExpression is a type-cast expression, e.g. `3 as float`.
type CastExpression struct {
	base
	Left       Expression
	TargetType string
}

// castTags maps a cast target type name to the OpCast operand tag.
var castTags = map[string]int{
	"int":    1,
	"float":  2,
	"bool":   3,
	"string": 4,
}

func (ce *CastExpression) expressionNode() {}
func (ce *CastExpression) String() string  { return ce.Left.String() + " as " + ce.TargetType }

func (ce *CastExpression) Simplify(bindings *Bindings) (Node, bool) {
	if n, ok := ce.Left.Simplify(bindings); ok {
		ce.Left = n.(Expression)
		return ce, true
	}
	return nil, false
}

func (ce *CastExpression) Analyze(program *Program, scope *Scope) *ErrorNode {
	if _, ok := castTags[ce.TargetType]; !ok {
		return NewErrorNode(ce.Token, "unknown cast target: "+ce.TargetType)
	}
	return ce.Left.Analyze(program, scope)
}

func (ce *CastExpression) EmitBytecode(e BytecodeEmitter) bool {
	if !ce.Left.EmitBytecode(e) {
		return false
	}
	e.Emit(byte(code.OpCast), castTags[ce.TargetType])
	return true
}
func (ce *CastExpression) EmitNative(NativeEmitter) bool { return false }
func (ce *CastExpression) Walk(callback func(Node)) {
	callback(ce)
	ce.Left.Walk(callback)
}

// AssignExpression is an assignment, e.g. `x = 5;` or `a[0] = 1;` or
// `obj.field = 1;`. Tang has no `let` keyword: assignment to a bare
// identifier both declares and (re)binds it.
type AssignExpression struct {
	base
	Target Expression // *Identifier, *IndexExpression, or *AttributeExpression
	Value  Expression
}

func (ae *AssignExpression) expressionNode() {}
func (ae *AssignExpression) String() string {
	return ae.Target.String() + " = " + ae.Value.String()
}

func (ae *AssignExpression) Simplify(bindings *Bindings) (Node, bool) {
	changed := false
	if n, ok := ae.Value.Simplify(bindings); ok {
		ae.Value = n.(Expression)
		changed = true
	}
	if ident, ok := ae.Target.(*Identifier); ok {
		if isConstant(ae.Value) {
			bindings.Set(ident.Mangled, ae.Value)
		} else {
			bindings.Invalidate(ident.Mangled)
		}
	}
	return ae, changed
}

// isConstant reports whether n is a literal node safe to propagate as a
// binding (as opposed to a call or indexing expression, whose value may
// differ between evaluations).
func isConstant(n Expression) bool {
	switch n.(type) {
	case *IntegerLiteral, *FloatLiteral, *StringLiteral, *Boolean, *NullLiteral:
		return true
	default:
		return false
	}
}

// Analyze resolves the target before the value, so a function literal's
// body can refer to the name it is being bound to (recursion). An
// assignment whose value is a function literal is a function declaration:
// it registers once per scope, and redeclaring a function — or declaring
// one under a name already used by an ordinary variable — is the
// enumerated function-redeclared / identifier-redeclared error.
func (ae *AssignExpression) Analyze(program *Program, scope *Scope) *ErrorNode {
	if ident, ok := ae.Target.(*Identifier); ok {
		if _, isFn := ae.Value.(*FunctionLiteral); isFn {
			if scope.FunctionDeclared(ident.Value) {
				return NewErrorNode(ident.Token, "function redeclared: "+ident.Value)
			}
			if scope.IdentifierDeclared(ident.Value) {
				return NewErrorNode(ident.Token, "identifier redeclared: "+ident.Value)
			}
			scope.DeclareFunction(ident.Value)
			ident.Resolved = ClassFunction
			ident.Storage = ClassLocal
			if scope.Parent == nil {
				ident.Storage = ClassGlobal
			}
			ident.Mangled = scope.Mangled(ident.Value)
			if err := ae.Value.Analyze(program, scope); err != nil {
				return err
			}
			ae.PossibleType = ae.Value.Type()
			return nil
		}
	}
	if err := ae.Target.Analyze(program, scope); err != nil {
		return err
	}
	if err := ae.Value.Analyze(program, scope); err != nil {
		return err
	}
	ae.PossibleType = ae.Value.Type()
	return nil
}

func (ae *AssignExpression) EmitBytecode(e BytecodeEmitter) bool {
	switch target := ae.Target.(type) {
	case *Identifier:
		if !ae.Value.EmitBytecode(e) {
			return false
		}
		e.Emit(byte(code.OpDup))
		idx := e.AddConstant(target.Mangled)
		local := target.Resolved == ClassLocal ||
			(target.Resolved == ClassFunction && target.Storage == ClassLocal)
		if local {
			e.Emit(byte(code.OpSetLocal), idx)
		} else {
			e.Emit(byte(code.OpSetGlobal), idx)
		}
		return true
	case *IndexExpression:
		if !target.Left.EmitBytecode(e) || !target.Index.EmitBytecode(e) || !ae.Value.EmitBytecode(e) {
			return false
		}
		e.Emit(byte(code.OpSetIndex))
		return true
	case *AttributeExpression:
		if !target.Left.EmitBytecode(e) || !ae.Value.EmitBytecode(e) {
			return false
		}
		e.Emit(byte(code.OpSetAttribute), e.AddConstant(target.Name))
		return true
	default:
		return false
	}
}
// EmitNative only handles a bare-identifier target: index/attribute
// assignment targets a heap-allocated collection, which needs the value
// vtable this narrow code generator never calls back into Go for.
func (ae *AssignExpression) EmitNative(e NativeEmitter) bool {
	ident, ok := ae.Target.(*Identifier)
	if !ok || ident.Resolved != ClassGlobal {
		return false
	}
	if !ae.Value.EmitNative(e) {
		return false
	}
	emitPopRAX(e)
	emitPushRAX(e) // assignment is itself an expression: leave the value on the stack
	emitStoreGlobal(e, e.GlobalSlot(ident.Mangled))
	return true
}
func (ae *AssignExpression) Walk(callback func(Node)) {
	callback(ae)
	ae.Target.Walk(callback)
	ae.Value.Walk(callback)
}
