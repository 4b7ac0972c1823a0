package ast

import (
	"strings"

	"github.com/dr8co/tang/code"
)

// collectAssignedIdents walks each of nodes (skipping nils) and records the
// mangled name of every identifier that appears as an assignment target,
// via each node's Walk traversal. Used by the
// repeated-body loop statements to find which bindings a single pass
// through the loop might stomp on before that loop's first iteration even
// runs.
func collectAssignedIdents(names map[string]struct{}, nodes ...Node) {
	for _, n := range nodes {
		if n == nil {
			continue
		}
		n.Walk(func(node Node) {
			ae, ok := node.(*AssignExpression)
			if !ok {
				return
			}
			if ident, ok := ae.Target.(*Identifier); ok {
				names[ident.Mangled] = struct{}{}
			}
		})
	}
}

// invalidateAssigned removes from bindings every identifier that nodes
// assign to, so a loop's condition/update can't be folded against a value
// that a prior or later iteration's body reassigns. It must run before any
// of nodes is simplified, and against the caller's live bindings, not a
// clone of them: the simplification of the repeated branches themselves
// then runs against independent clones of this already-narrowed map (see
// WhileStatement.Simplify and friends).
func invalidateAssigned(bindings *Bindings, nodes ...Node) {
	names := make(map[string]struct{})
	collectAssignedIdents(names, nodes...)
	for name := range names {
		bindings.Invalidate(name)
	}
}

// ExpressionStatement is a statement consisting of a single expression,
// evaluated for its side effects (typically a call or an assignment) with
// its result discarded.
type ExpressionStatement struct {
	base
	Expression Expression
}

func (es *ExpressionStatement) statementNode() {}
func (es *ExpressionStatement) String() string {
	if es.Expression != nil {
		return es.Expression.String()
	}
	return ""
}

func (es *ExpressionStatement) Simplify(bindings *Bindings) (Node, bool) {
	if es.Expression == nil {
		return nil, false
	}
	if n, ok := es.Expression.Simplify(bindings); ok {
		es.Expression = n.(Expression)
		return es, true
	}
	return nil, false
}

func (es *ExpressionStatement) Analyze(program *Program, scope *Scope) *ErrorNode {
	if es.Expression == nil {
		return nil
	}
	return es.Expression.Analyze(program, scope)
}

func (es *ExpressionStatement) EmitBytecode(e BytecodeEmitter) bool {
	if es.Expression == nil {
		return true
	}
	if !es.Expression.EmitBytecode(e) {
		return false
	}
	e.Emit(byte(code.OpPop))
	return true
}
func (es *ExpressionStatement) EmitNative(e NativeEmitter) bool {
	if es.Expression == nil {
		return true
	}
	if !es.Expression.EmitNative(e) {
		return false
	}
	emitPopRAX(e)
	return true
}
func (es *ExpressionStatement) Walk(callback func(Node)) {
	callback(es)
	if es.Expression != nil {
		es.Expression.Walk(callback)
	}
}

// BlockStatement is a brace-delimited sequence of statements.
type BlockStatement struct {
	base
	Statements []Statement
}

func (bs *BlockStatement) statementNode() {}
func (bs *BlockStatement) String() string {
	var out strings.Builder
	for _, s := range bs.Statements {
		out.WriteString(s.String())
	}
	return out.String()
}

func (bs *BlockStatement) Simplify(bindings *Bindings) (Node, bool) {
	changed := false
	for i, s := range bs.Statements {
		if n, ok := s.Simplify(bindings); ok {
			bs.Statements[i] = n.(Statement)
			changed = true
		}
	}
	return bs, changed
}

func (bs *BlockStatement) Analyze(program *Program, scope *Scope) *ErrorNode {
	for _, s := range bs.Statements {
		if err := s.Analyze(program, scope); err != nil {
			return err
		}
	}
	return nil
}

func (bs *BlockStatement) EmitBytecode(e BytecodeEmitter) bool {
	for _, s := range bs.Statements {
		if !s.EmitBytecode(e) {
			return false
		}
	}
	return true
}
func (bs *BlockStatement) EmitNative(e NativeEmitter) bool {
	for _, s := range bs.Statements {
		if !s.EmitNative(e) {
			return false
		}
	}
	return true
}
func (bs *BlockStatement) Walk(callback func(Node)) {
	callback(bs)
	for _, s := range bs.Statements {
		s.Walk(callback)
	}
}

// PrintStatement is a `print(expr, ...);` statement. Each argument's
// string form is concatenated and written to the execution context's
// output.
type PrintStatement struct {
	base
	Arguments []Expression
}

func (ps *PrintStatement) statementNode() {}
func (ps *PrintStatement) String() string {
	var out strings.Builder
	args := make([]string, 0, len(ps.Arguments))
	for _, a := range ps.Arguments {
		args = append(args, a.String())
	}
	out.WriteString("print(")
	out.WriteString(strings.Join(args, ", "))
	out.WriteString(");")
	return out.String()
}

func (ps *PrintStatement) Simplify(bindings *Bindings) (Node, bool) {
	changed := false
	for i, a := range ps.Arguments {
		if n, ok := a.Simplify(bindings); ok {
			ps.Arguments[i] = n.(Expression)
			changed = true
		}
	}
	return ps, changed
}

func (ps *PrintStatement) Analyze(program *Program, scope *Scope) *ErrorNode {
	for _, a := range ps.Arguments {
		if err := a.Analyze(program, scope); err != nil {
			return err
		}
	}
	return nil
}

func (ps *PrintStatement) EmitBytecode(e BytecodeEmitter) bool {
	for _, a := range ps.Arguments {
		if !a.EmitBytecode(e) {
			return false
		}
	}
	e.Emit(byte(code.OpPrint), len(ps.Arguments))
	return true
}
func (ps *PrintStatement) EmitNative(NativeEmitter) bool { return false }
func (ps *PrintStatement) Walk(callback func(Node)) {
	callback(ps)
	for _, a := range ps.Arguments {
		a.Walk(callback)
	}
}

// ReturnStatement is a `return expr;` or bare `return;` statement.
type ReturnStatement struct {
	base
	ReturnValue Expression
}

func (rs *ReturnStatement) statementNode() {}
func (rs *ReturnStatement) String() string {
	var out strings.Builder
	out.WriteString("return")
	if rs.ReturnValue != nil {
		out.WriteString(" " + rs.ReturnValue.String())
	}
	out.WriteString(";")
	return out.String()
}

func (rs *ReturnStatement) Simplify(bindings *Bindings) (Node, bool) {
	if rs.ReturnValue == nil {
		return nil, false
	}
	if n, ok := rs.ReturnValue.Simplify(bindings); ok {
		rs.ReturnValue = n.(Expression)
		return rs, true
	}
	return nil, false
}

func (rs *ReturnStatement) Analyze(program *Program, scope *Scope) *ErrorNode {
	if rs.ReturnValue == nil {
		return nil
	}
	return rs.ReturnValue.Analyze(program, scope)
}

func (rs *ReturnStatement) EmitBytecode(e BytecodeEmitter) bool {
	if rs.ReturnValue == nil {
		e.Emit(byte(code.OpReturn))
		return true
	}
	if !rs.ReturnValue.EmitBytecode(e) {
		return false
	}
	e.Emit(byte(code.OpReturnValue))
	return true
}
func (rs *ReturnStatement) EmitNative(e NativeEmitter) bool {
	if rs.ReturnValue == nil {
		emitMovRAXImm64(e, 0)
		emitStoreResultWord(e, NativeKindNull)
		e.EmitBytes(0xC3) // ret
		return true
	}
	kind, ok := nativeResultKind(rs.ReturnValue.Type())
	if !ok {
		return false
	}
	if !rs.ReturnValue.EmitNative(e) {
		return false
	}
	emitPopRAX(e)
	emitStoreResultWord(e, kind)
	e.EmitBytes(0xC3) // ret
	return true
}
func (rs *ReturnStatement) Walk(callback func(Node)) {
	callback(rs)
	if rs.ReturnValue != nil {
		rs.ReturnValue.Walk(callback)
	}
}

// IfStatement is an `if (cond) {...} else {...}` statement. The `else`
// branch is optional and may itself be another IfStatement (else-if chain).
type IfStatement struct {
	base
	Condition   Expression
	Consequence *BlockStatement
	Alternative Statement
}

func (is *IfStatement) statementNode() {}
func (is *IfStatement) String() string {
	var out strings.Builder
	out.WriteString("if (")
	out.WriteString(is.Condition.String())
	out.WriteString(") {")
	out.WriteString(is.Consequence.String())
	out.WriteString("}")
	if is.Alternative != nil {
		out.WriteString(" else ")
		out.WriteString(is.Alternative.String())
	}
	return out.String()
}

func (is *IfStatement) Simplify(bindings *Bindings) (Node, bool) {
	if n, ok := is.Condition.Simplify(bindings); ok {
		is.Condition = n.(Expression)
	}
	if b, isConst := is.Condition.(*Boolean); isConst {
		if b.Value {
			is.Consequence.Simplify(bindings)
			return is.Consequence, true
		}
		if is.Alternative != nil {
			is.Alternative.Simplify(bindings)
			return is.Alternative, true
		}
		return &BlockStatement{base: is.base}, true
	}

	consBindings := bindings.Clone()
	is.Consequence.Simplify(consBindings)

	altBindings := bindings.Clone()
	if is.Alternative != nil {
		is.Alternative.Simplify(altBindings)
	}

	bindings.Intersect(consBindings)
	bindings.Intersect(altBindings)
	return is, false
}

func (is *IfStatement) Analyze(program *Program, scope *Scope) *ErrorNode {
	if err := is.Condition.Analyze(program, scope); err != nil {
		return err
	}
	if err := is.Consequence.Analyze(program, scope); err != nil {
		return err
	}
	if is.Alternative != nil {
		return is.Alternative.Analyze(program, scope)
	}
	return nil
}

func (is *IfStatement) EmitBytecode(e BytecodeEmitter) bool {
	if !is.Condition.EmitBytecode(e) {
		return false
	}
	e.Emit(byte(code.OpJumpNotTruthy))
	altLabel := e.GetLabel()
	e.AddLabelJump(altLabel)

	if !is.Consequence.EmitBytecode(e) {
		return false
	}

	e.Emit(byte(code.OpJump))
	endLabel := e.GetLabel()
	e.AddLabelJump(endLabel)

	e.SetLabel(altLabel)
	if is.Alternative != nil {
		if !is.Alternative.EmitBytecode(e) {
			return false
		}
	}
	e.SetLabel(endLabel)
	return true
}
func (is *IfStatement) EmitNative(e NativeEmitter) bool {
	if is.Condition.Type() != TypeBoolean {
		return false
	}
	if !is.Condition.EmitNative(e) {
		return false
	}
	emitPopRAX(e)
	emitTestRAX(e)
	altLabel := e.GetLabel()
	emitJZ(e, altLabel)

	if !is.Consequence.EmitNative(e) {
		return false
	}
	endLabel := e.GetLabel()
	emitJMP(e, endLabel)

	e.SetLabel(altLabel)
	if is.Alternative != nil {
		if !is.Alternative.EmitNative(e) {
			return false
		}
	}
	e.SetLabel(endLabel)
	return true
}
func (is *IfStatement) Walk(callback func(Node)) {
	callback(is)
	is.Condition.Walk(callback)
	is.Consequence.Walk(callback)
	if is.Alternative != nil {
		is.Alternative.Walk(callback)
	}
}

// WhileStatement is a `while (cond) { body }` loop.
type WhileStatement struct {
	base
	Condition Expression
	Body      *BlockStatement
}

func (ws *WhileStatement) statementNode() {}
func (ws *WhileStatement) String() string {
	return "while (" + ws.Condition.String() + ") {" + ws.Body.String() + "}"
}

func (ws *WhileStatement) Simplify(bindings *Bindings) (Node, bool) {
	invalidateAssigned(bindings, ws.Condition, ws.Body)

	condBindings := bindings.Clone()
	if n, ok := ws.Condition.Simplify(condBindings); ok {
		ws.Condition = n.(Expression)
	}
	if b, ok := ws.Condition.(*Boolean); ok && !b.Value {
		return &BlockStatement{base: ws.base}, true
	}

	bodyBindings := bindings.Clone()
	ws.Body.Simplify(bodyBindings)

	bindings.Intersect(condBindings)
	bindings.Intersect(bodyBindings)
	return ws, false
}

func (ws *WhileStatement) Analyze(program *Program, scope *Scope) *ErrorNode {
	if err := ws.Condition.Analyze(program, scope); err != nil {
		return err
	}
	return ws.Body.Analyze(program, scope)
}

func (ws *WhileStatement) EmitBytecode(e BytecodeEmitter) bool {
	condLabel := e.GetLabel()
	e.SetLabel(condLabel)
	if !ws.Condition.EmitBytecode(e) {
		return false
	}
	e.Emit(byte(code.OpJumpNotTruthy))
	endLabel := e.GetLabel()
	e.AddLabelJump(endLabel)

	e.EnterLoop(endLabel, condLabel)
	ok := ws.Body.EmitBytecode(e)
	e.LeaveLoop()
	if !ok {
		return false
	}

	e.Emit(byte(code.OpJump))
	e.AddLabelJump(condLabel)
	e.SetLabel(endLabel)
	return true
}
func (ws *WhileStatement) EmitNative(e NativeEmitter) bool {
	if ws.Condition.Type() != TypeBoolean {
		return false
	}
	condLabel := e.GetLabel()
	e.SetLabel(condLabel)
	if !ws.Condition.EmitNative(e) {
		return false
	}
	emitPopRAX(e)
	emitTestRAX(e)
	endLabel := e.GetLabel()
	emitJZ(e, endLabel)

	e.EnterLoop(endLabel, condLabel)
	ok := ws.Body.EmitNative(e)
	e.LeaveLoop()
	if !ok {
		return false
	}

	emitJMP(e, condLabel)
	e.SetLabel(endLabel)
	return true
}
func (ws *WhileStatement) Walk(callback func(Node)) {
	callback(ws)
	ws.Condition.Walk(callback)
	ws.Body.Walk(callback)
}

// DoWhileStatement is a `do { body } while (cond);` loop: the body runs
// at least once.
type DoWhileStatement struct {
	base
	Body      *BlockStatement
	Condition Expression
}

func (dw *DoWhileStatement) statementNode() {}
func (dw *DoWhileStatement) String() string {
	return "do {" + dw.Body.String() + "} while (" + dw.Condition.String() + ");"
}

func (dw *DoWhileStatement) Simplify(bindings *Bindings) (Node, bool) {
	invalidateAssigned(bindings, dw.Body, dw.Condition)

	bodyBindings := bindings.Clone()
	dw.Body.Simplify(bodyBindings)

	condBindings := bindings.Clone()
	if n, ok := dw.Condition.Simplify(condBindings); ok {
		dw.Condition = n.(Expression)
	}

	bindings.Intersect(bodyBindings)
	bindings.Intersect(condBindings)
	return dw, false
}

func (dw *DoWhileStatement) Analyze(program *Program, scope *Scope) *ErrorNode {
	if err := dw.Body.Analyze(program, scope); err != nil {
		return err
	}
	return dw.Condition.Analyze(program, scope)
}

func (dw *DoWhileStatement) EmitBytecode(e BytecodeEmitter) bool {
	startLabel := e.GetLabel()
	e.SetLabel(startLabel)
	condLabel := e.GetLabel()
	endLabel := e.GetLabel()

	e.EnterLoop(endLabel, condLabel)
	ok := dw.Body.EmitBytecode(e)
	e.LeaveLoop()
	if !ok {
		return false
	}

	e.SetLabel(condLabel)
	if !dw.Condition.EmitBytecode(e) {
		return false
	}
	e.Emit(byte(code.OpJumpNotTruthy))
	e.AddLabelJump(endLabel)
	e.Emit(byte(code.OpJump))
	e.AddLabelJump(startLabel)
	e.SetLabel(endLabel)
	return true
}
func (dw *DoWhileStatement) EmitNative(e NativeEmitter) bool {
	if dw.Condition.Type() != TypeBoolean {
		return false
	}
	startLabel := e.GetLabel()
	e.SetLabel(startLabel)
	condLabel := e.GetLabel()
	endLabel := e.GetLabel()

	e.EnterLoop(endLabel, condLabel)
	ok := dw.Body.EmitNative(e)
	e.LeaveLoop()
	if !ok {
		return false
	}

	e.SetLabel(condLabel)
	if !dw.Condition.EmitNative(e) {
		return false
	}
	emitPopRAX(e)
	emitTestRAX(e)
	emitJZ(e, endLabel)
	emitJMP(e, startLabel)
	e.SetLabel(endLabel)
	return true
}
func (dw *DoWhileStatement) Walk(callback func(Node)) {
	callback(dw)
	dw.Body.Walk(callback)
	dw.Condition.Walk(callback)
}

// ForStatement is a C-style `for (init; cond; update) { body }` loop. Any
// of Init/Condition/Update may be nil.
type ForStatement struct {
	base
	Init      Statement
	Condition Expression
	Update    Statement
	Body      *BlockStatement
}

func (fs *ForStatement) statementNode() {}
func (fs *ForStatement) String() string {
	var out strings.Builder
	out.WriteString("for (")
	if fs.Init != nil {
		out.WriteString(fs.Init.String())
	}
	out.WriteString("; ")
	if fs.Condition != nil {
		out.WriteString(fs.Condition.String())
	}
	out.WriteString("; ")
	if fs.Update != nil {
		out.WriteString(fs.Update.String())
	}
	out.WriteString(") {")
	out.WriteString(fs.Body.String())
	out.WriteString("}")
	return out.String()
}

func (fs *ForStatement) Simplify(bindings *Bindings) (Node, bool) {
	if fs.Init != nil {
		fs.Init.Simplify(bindings)
	}

	invalidateAssigned(bindings, fs.Condition, fs.Body, fs.Update)

	condBindings := bindings.Clone()
	if fs.Condition != nil {
		if n, ok := fs.Condition.Simplify(condBindings); ok {
			fs.Condition = n.(Expression)
		}
	}

	bodyBindings := bindings.Clone()
	fs.Body.Simplify(bodyBindings)
	if fs.Update != nil {
		fs.Update.Simplify(bodyBindings)
	}

	bindings.Intersect(condBindings)
	bindings.Intersect(bodyBindings)
	return fs, false
}

func (fs *ForStatement) Analyze(program *Program, scope *Scope) *ErrorNode {
	if fs.Init != nil {
		if err := fs.Init.Analyze(program, scope); err != nil {
			return err
		}
	}
	if fs.Condition != nil {
		if err := fs.Condition.Analyze(program, scope); err != nil {
			return err
		}
	}
	if fs.Update != nil {
		if err := fs.Update.Analyze(program, scope); err != nil {
			return err
		}
	}
	return fs.Body.Analyze(program, scope)
}

func (fs *ForStatement) EmitBytecode(e BytecodeEmitter) bool {
	if fs.Init != nil {
		if !fs.Init.EmitBytecode(e) {
			return false
		}
	}
	condLabel := e.GetLabel()
	e.SetLabel(condLabel)
	endLabel := e.GetLabel()
	updateLabel := e.GetLabel()

	if fs.Condition != nil {
		if !fs.Condition.EmitBytecode(e) {
			return false
		}
		e.Emit(byte(code.OpJumpNotTruthy))
		e.AddLabelJump(endLabel)
	}

	e.EnterLoop(endLabel, updateLabel)
	ok := fs.Body.EmitBytecode(e)
	e.LeaveLoop()
	if !ok {
		return false
	}

	e.SetLabel(updateLabel)
	if fs.Update != nil {
		if !fs.Update.EmitBytecode(e) {
			return false
		}
	}
	e.Emit(byte(code.OpJump))
	e.AddLabelJump(condLabel)
	e.SetLabel(endLabel)
	return true
}
func (fs *ForStatement) EmitNative(e NativeEmitter) bool {
	if fs.Condition != nil && fs.Condition.Type() != TypeBoolean {
		return false
	}
	if fs.Init != nil {
		if !fs.Init.EmitNative(e) {
			return false
		}
	}
	condLabel := e.GetLabel()
	e.SetLabel(condLabel)
	endLabel := e.GetLabel()
	updateLabel := e.GetLabel()

	if fs.Condition != nil {
		if !fs.Condition.EmitNative(e) {
			return false
		}
		emitPopRAX(e)
		emitTestRAX(e)
		emitJZ(e, endLabel)
	}

	e.EnterLoop(endLabel, updateLabel)
	ok := fs.Body.EmitNative(e)
	e.LeaveLoop()
	if !ok {
		return false
	}

	e.SetLabel(updateLabel)
	if fs.Update != nil {
		if !fs.Update.EmitNative(e) {
			return false
		}
	}
	emitJMP(e, condLabel)
	e.SetLabel(endLabel)
	return true
}
func (fs *ForStatement) Walk(callback func(Node)) {
	callback(fs)
	if fs.Init != nil {
		fs.Init.Walk(callback)
	}
	if fs.Condition != nil {
		fs.Condition.Walk(callback)
	}
	if fs.Update != nil {
		fs.Update.Walk(callback)
	}
	fs.Body.Walk(callback)
}

// RangedForStatement is a `for (ident : collection) { body }` loop,
// iterating the collection's elements via the runtime iterator protocol.
type RangedForStatement struct {
	base
	Iterator   *Identifier
	Collection Expression
	Body       *BlockStatement
}

func (rf *RangedForStatement) statementNode() {}
func (rf *RangedForStatement) String() string {
	return "for (" + rf.Iterator.String() + " : " + rf.Collection.String() + ") {" + rf.Body.String() + "}"
}

func (rf *RangedForStatement) Simplify(bindings *Bindings) (Node, bool) {
	if n, ok := rf.Collection.Simplify(bindings); ok {
		rf.Collection = n.(Expression)
	}

	invalidateAssigned(bindings, rf.Body)
	bindings.Invalidate(rf.Iterator.Mangled)

	bodyBindings := bindings.Clone()
	rf.Body.Simplify(bodyBindings)
	bindings.Intersect(bodyBindings)
	return rf, false
}

func (rf *RangedForStatement) Analyze(program *Program, scope *Scope) *ErrorNode {
	if err := rf.Collection.Analyze(program, scope); err != nil {
		return err
	}
	if _, owner := scope.Resolve(rf.Iterator.Value); owner == nil {
		scope.DeclareLocal(rf.Iterator.Value)
	}
	if err := rf.Iterator.Analyze(program, scope); err != nil {
		return err
	}
	return rf.Body.Analyze(program, scope)
}

func (rf *RangedForStatement) EmitBytecode(e BytecodeEmitter) bool {
	if !rf.Collection.EmitBytecode(e) {
		return false
	}
	e.Emit(byte(code.OpIterInit))

	condLabel := e.GetLabel()
	e.SetLabel(condLabel)
	endLabel := e.GetLabel()
	e.Emit(byte(code.OpIterNext))
	e.AddLabelJump(endLabel)

	idx := e.AddConstant(rf.Iterator.Mangled)
	if rf.Iterator.Resolved == ClassLocal {
		e.Emit(byte(code.OpSetLocal), idx)
	} else {
		e.Emit(byte(code.OpSetGlobal), idx)
	}

	e.EnterLoop(endLabel, condLabel)
	ok := rf.Body.EmitBytecode(e)
	e.LeaveLoop()
	if !ok {
		return false
	}

	e.Emit(byte(code.OpJump))
	e.AddLabelJump(condLabel)
	e.SetLabel(endLabel)
	return true
}
func (rf *RangedForStatement) EmitNative(NativeEmitter) bool { return false }
func (rf *RangedForStatement) Walk(callback func(Node)) {
	callback(rf)
	rf.Iterator.Walk(callback)
	rf.Collection.Walk(callback)
	rf.Body.Walk(callback)
}

// BreakStatement is a `break;` statement. Outside a loop it compiles to a
// bare return rather than a compile error, ending the current function, or
// the program at top level, matching the reference implementation's
// behavior (see DESIGN.md).
type BreakStatement struct{ base }

func (bs *BreakStatement) statementNode()                           {}
func (bs *BreakStatement) String() string                           { return "break;" }
func (bs *BreakStatement) Simplify(*Bindings) (Node, bool)           { return nil, false }
func (bs *BreakStatement) Analyze(*Program, *Scope) *ErrorNode       { return nil }
func (bs *BreakStatement) EmitBytecode(e BytecodeEmitter) bool {
	if label, _, ok := e.CurrentLoop(); ok {
		e.Emit(byte(code.OpJump))
		e.AddLabelJump(label)
		return true
	}
	e.Emit(byte(code.OpReturn))
	return true
}
func (bs *BreakStatement) EmitNative(e NativeEmitter) bool {
	if label, _, ok := e.CurrentLoop(); ok {
		emitJMP(e, label)
		return true
	}
	emitMovRAXImm64(e, 0)
	emitStoreResultWord(e, NativeKindNull)
	e.EmitBytes(0xC3) // ret
	return true
}
func (bs *BreakStatement) Walk(callback func(Node))      { callback(bs) }

// ContinueStatement is a `continue;` statement. Outside a loop it compiles
// to a no-op, matching the reference implementation's behavior (see
// DESIGN.md).
type ContinueStatement struct{ base }

func (cs *ContinueStatement) statementNode()                     {}
func (cs *ContinueStatement) String() string                     { return "continue;" }
func (cs *ContinueStatement) Simplify(*Bindings) (Node, bool)     { return nil, false }
func (cs *ContinueStatement) Analyze(*Program, *Scope) *ErrorNode { return nil }
func (cs *ContinueStatement) EmitBytecode(e BytecodeEmitter) bool {
	if _, label, ok := e.CurrentLoop(); ok {
		e.Emit(byte(code.OpJump))
		e.AddLabelJump(label)
	}
	return true
}
func (cs *ContinueStatement) EmitNative(e NativeEmitter) bool {
	if _, label, ok := e.CurrentLoop(); ok {
		emitJMP(e, label)
	}
	return true
}
func (cs *ContinueStatement) Walk(callback func(Node))      { callback(cs) }

// UseStatement is a `use a.b.c [as name];` declaration, populating the
// outermost scope's library table.
type UseStatement struct {
	base
	Path  []string
	Alias string
}

func (us *UseStatement) statementNode() {}
func (us *UseStatement) String() string {
	out := "use " + strings.Join(us.Path, ".")
	if us.Alias != "" {
		out += " as " + us.Alias
	}
	return out + ";"
}

func (us *UseStatement) Simplify(*Bindings) (Node, bool) { return nil, false }

func (us *UseStatement) Analyze(program *Program, scope *Scope) *ErrorNode {
	program.AddLibrary(LibraryDecl{Path: us.Path, Alias: us.Alias})
	return nil
}

func (us *UseStatement) EmitBytecode(BytecodeEmitter) bool { return true }
func (us *UseStatement) EmitNative(NativeEmitter) bool     { return true }
func (us *UseStatement) Walk(callback func(Node))          { callback(us) }

// GlobalStatement is a `global x, y;` statement inside a function body,
// forcing the named identifiers to resolve against the outermost scope
// rather than becoming locals.
type GlobalStatement struct {
	base
	Names []string
}

func (gs *GlobalStatement) statementNode() {}
func (gs *GlobalStatement) String() string {
	return "global " + strings.Join(gs.Names, ", ") + ";"
}

func (gs *GlobalStatement) Simplify(*Bindings) (Node, bool) { return nil, false }

func (gs *GlobalStatement) Analyze(program *Program, scope *Scope) *ErrorNode {
	for _, n := range gs.Names {
		scope.ForceGlobal(n)
	}
	return nil
}

func (gs *GlobalStatement) EmitBytecode(BytecodeEmitter) bool { return true }
func (gs *GlobalStatement) EmitNative(NativeEmitter) bool     { return true }
func (gs *GlobalStatement) Walk(callback func(Node))          { callback(gs) }
