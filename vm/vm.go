// Package vm executes compiled Tang bytecode: a stack machine dispatching
// on the opcode set package code defines, with arithmetic, comparison and
// cast operators delegated to value.Value's per-kind vtable rather than a
// type switch per opcode, so that table is the VM's single source of truth
// for operator semantics.
package vm

import (
	"fmt"

	"github.com/dr8co/tang/code"
	"github.com/dr8co/tang/compiler"
	"github.com/dr8co/tang/runtime"
	"github.com/dr8co/tang/unicodeseg"
	"github.com/dr8co/tang/value"
)

const (
	stackSize  = 2048
	maxFrames  = 1024
)

// VM runs one compiled program's bytecode against a runtime.Context.
type VM struct {
	constants []*value.Value
	ctx       *runtime.Context

	stack []*value.Value
	sp    int // points to the next free stack slot

	frames      []*Frame
	framesIndex int
}

// New creates a VM ready to run bc's instructions as the program's
// implicit top-level function, against ctx.
func New(bc *compiler.Bytecode, ctx *runtime.Context) *VM {
	mainFn := value.NewFunction(nil, &value.Function{
		Name:         "main",
		Instructions: bc.Instructions,
	})
	mainFrame := NewFrame(mainFn, nil)

	frames := make([]*Frame, maxFrames)
	frames[0] = mainFrame

	return &VM{
		constants:   bc.Constants,
		ctx:         ctx,
		stack:       make([]*value.Value, stackSize),
		frames:      frames,
		framesIndex: 1,
	}
}

func (vm *VM) currentFrame() *Frame { return vm.frames[vm.framesIndex-1] }

func (vm *VM) pushFrame(f *Frame) {
	vm.frames[vm.framesIndex] = f
	vm.framesIndex++
}

func (vm *VM) popFrame() *Frame {
	vm.framesIndex--
	return vm.frames[vm.framesIndex]
}

func (vm *VM) push(v *value.Value) error {
	if vm.sp >= stackSize {
		return fmt.Errorf("stack overflow")
	}
	vm.stack[vm.sp] = v
	vm.sp++
	return nil
}

func (vm *VM) pop() *value.Value {
	vm.sp--
	return vm.stack[vm.sp]
}

// LastPoppedStackElem returns the value most recently popped off the
// stack — the result of the last top-level expression statement, used by
// the REPL to print a value for a bare expression.
func (vm *VM) LastPoppedStackElem() *value.Value {
	return vm.stack[vm.sp]
}

// Run executes the program's bytecode to completion, returning a non-nil
// error only for a VM fault (stack overflow, an unknown opcode or cast tag,
// iterating a non-iterator). An error Value produced by an operation is an
// ordinary value and does not stop the run.
func (vm *VM) Run() error {
	for vm.currentFrame().ip < len(vm.currentFrame().Instructions())-1 {
		vm.currentFrame().ip++
		ip := vm.currentFrame().ip
		ins := vm.currentFrame().Instructions()
		op := code.Opcode(ins[ip])

		if vm.ctx.Debug {
			def, _ := code.Lookup(byte(op))
			if def != nil {
				fmt.Fprintf(vm.ctx.Output, "; %04d %s\n", ip, def.Name)
			}
		}

		switch op {
		case code.OpConstant:
			idx := code.ReadUint16(ins[ip+1:])
			vm.currentFrame().ip += 2
			if err := vm.push(vm.constants[idx]); err != nil {
				return err
			}

		case code.OpPop:
			vm.pop()

		case code.OpDup:
			if err := vm.push(vm.stack[vm.sp-1]); err != nil {
				return err
			}

		case code.OpTrue:
			if err := vm.push(value.True); err != nil {
				return err
			}
		case code.OpFalse:
			if err := vm.push(value.False); err != nil {
				return err
			}
		case code.OpNull:
			if err := vm.push(value.Null); err != nil {
				return err
			}

		case code.OpAdd, code.OpSub, code.OpMul, code.OpDiv, code.OpMod,
			code.OpEqual, code.OpNotEqual, code.OpGreaterThan, code.OpGreaterEqual,
			code.OpLessThan, code.OpLessEqual:
			if err := vm.execBinaryOp(op); err != nil {
				return err
			}

		case code.OpMinus:
			operand := vm.pop()
			if err := vm.push(operand.Negate(vm.ctx)); err != nil {
				return err
			}
		case code.OpBang:
			operand := vm.pop()
			if err := vm.push(operand.Not(vm.ctx)); err != nil {
				return err
			}

		case code.OpJump:
			pos := int(code.ReadUint16(ins[ip+1:]))
			vm.currentFrame().ip = pos - 1

		case code.OpJumpNotTruthy:
			pos := int(code.ReadUint16(ins[ip+1:]))
			vm.currentFrame().ip += 2
			condition := vm.pop()
			if !condition.IsTrue() {
				vm.currentFrame().ip = pos - 1
			}

		case code.OpGetGlobal:
			idx := code.ReadUint16(ins[ip+1:])
			vm.currentFrame().ip += 2
			name := vm.constants[idx].S
			if err := vm.push(vm.ctx.GetGlobal(name)); err != nil {
				return err
			}
		case code.OpSetGlobal:
			idx := code.ReadUint16(ins[ip+1:])
			vm.currentFrame().ip += 2
			name := vm.constants[idx].S
			vm.ctx.SetGlobal(name, vm.pop())

		case code.OpGetLocal:
			idx := code.ReadUint16(ins[ip+1:])
			vm.currentFrame().ip += 2
			name := vm.constants[idx].S
			v, ok := vm.currentFrame().locals[name]
			if !ok {
				v = value.Null
			}
			if err := vm.push(v); err != nil {
				return err
			}
		case code.OpSetLocal:
			idx := code.ReadUint16(ins[ip+1:])
			vm.currentFrame().ip += 2
			name := vm.constants[idx].S
			vm.currentFrame().locals[name] = vm.pop()

		case code.OpGetLibrary:
			idx := code.ReadUint16(ins[ip+1:])
			vm.currentFrame().ip += 2
			name := vm.constants[idx].S
			lib, ok := vm.ctx.Library(name)
			if !ok {
				lib = value.ErrorValue(value.ErrNotSupported)
			}
			if err := vm.push(lib); err != nil {
				return err
			}

		case code.OpArray:
			count := int(code.ReadUint16(ins[ip+1:]))
			vm.currentFrame().ip += 2
			elems := make([]*value.Value, count)
			copy(elems, vm.stack[vm.sp-count:vm.sp])
			vm.sp -= count
			if err := vm.push(value.NewArray(vm.ctx, elems)); err != nil {
				return err
			}

		case code.OpMap:
			count := int(code.ReadUint16(ins[ip+1:]))
			vm.currentFrame().ip += 2
			pairs := make(map[string]*value.Value, count)
			start := vm.sp - count*2
			for i := start; i < vm.sp; i += 2 {
				pairs[vm.stack[i].String()] = vm.stack[i+1]
			}
			vm.sp = start
			if err := vm.push(value.NewMap(vm.ctx, pairs)); err != nil {
				return err
			}

		case code.OpIndex:
			idx := vm.pop()
			left := vm.pop()
			if err := vm.push(left.Index(vm.ctx, idx)); err != nil {
				return err
			}
		case code.OpSetIndex:
			val := vm.pop()
			idx := vm.pop()
			coll := vm.pop()
			if err := vm.push(coll.SetIndex(vm.ctx, idx, val)); err != nil {
				return err
			}
		case code.OpSlice:
			skip := vm.pop()
			end := vm.pop()
			begin := vm.pop()
			coll := vm.pop()
			if err := vm.push(coll.Slice(vm.ctx, begin, end, skip)); err != nil {
				return err
			}

		case code.OpAttribute:
			idx := code.ReadUint16(ins[ip+1:])
			vm.currentFrame().ip += 2
			name := vm.constants[idx].S
			left := vm.pop()
			if err := vm.push(left.Attribute(vm.ctx, name)); err != nil {
				return err
			}
		case code.OpSetAttribute:
			idx := code.ReadUint16(ins[ip+1:])
			vm.currentFrame().ip += 2
			name := vm.constants[idx].S
			assigned := vm.pop()
			target := vm.pop()
			target.SetAttribute(name, assigned)
			if err := vm.push(assigned); err != nil {
				return err
			}

		case code.OpCall:
			numArgs := int(ins[ip+1])
			vm.currentFrame().ip += 1
			if err := vm.callFunction(numArgs); err != nil {
				return err
			}

		case code.OpReturnValue:
			returnValue := vm.pop()
			if vm.framesIndex == 1 {
				return vm.haltWithResult(returnValue)
			}
			vm.popFrame()
			if err := vm.push(returnValue); err != nil {
				return err
			}
		case code.OpReturn:
			if vm.framesIndex == 1 {
				return vm.haltWithResult(value.Null)
			}
			vm.popFrame()
			if err := vm.push(value.Null); err != nil {
				return err
			}

		case code.OpPrint:
			count := int(ins[ip+1])
			vm.currentFrame().ip += 1
			for i := vm.sp - count; i < vm.sp; i++ {
				v := vm.stack[i]
				if v.IsError() {
					continue // printing an error value produces no output
				}
				if v.Kind == value.KindString {
					vm.ctx.PrintTagged(v.Tagged())
					continue
				}
				vm.ctx.PrintTagged(unicodeseg.Plain(v.String()))
			}
			vm.sp -= count

		case code.OpCast:
			tag := int(ins[ip+1])
			vm.currentFrame().ip += 1
			target := vm.pop()
			kind, ok := castKind(tag)
			if !ok {
				return fmt.Errorf("unknown cast tag %d", tag)
			}
			if err := vm.push(target.Cast(vm.ctx, kind)); err != nil {
				return err
			}

		case code.OpIterInit:
			coll := vm.pop()
			if err := vm.push(coll.Iterate(vm.ctx)); err != nil {
				return err
			}
		case code.OpIterNext:
			pos := int(code.ReadUint16(ins[ip+1:]))
			vm.currentFrame().ip += 2
			iter := vm.stack[vm.sp-1]
			if iter.Kind != value.KindIterator {
				return fmt.Errorf("iterator next on non-iterator value")
			}
			elem, ok := iter.Iter.Next(vm.ctx)
			if !ok {
				vm.pop() // discard the exhausted iterator
				vm.currentFrame().ip = pos - 1
				continue
			}
			if err := vm.push(elem); err != nil {
				return err
			}

		default:
			return fmt.Errorf("unknown opcode %d", op)
		}
	}
	return nil
}

// haltWithResult ends execution of the main frame with result as the
// program's final value. A `return` at the top level stops the program
// rather than popping a frame that isn't there; pushing and popping makes
// the value what LastPoppedStackElem reports.
func (vm *VM) haltWithResult(result *value.Value) error {
	if err := vm.push(result); err != nil {
		return err
	}
	vm.pop()
	return nil
}

func (vm *VM) execBinaryOp(op code.Opcode) error {
	right := vm.pop()
	left := vm.pop()

	var result *value.Value
	switch op {
	case code.OpAdd:
		result = left.Add(vm.ctx, right)
	case code.OpSub:
		result = left.Subtract(vm.ctx, right)
	case code.OpMul:
		result = left.Multiply(vm.ctx, right)
	case code.OpDiv:
		result = left.Divide(vm.ctx, right)
	case code.OpMod:
		result = left.Modulo(vm.ctx, right)
	case code.OpEqual:
		result = value.Bool(left.Equal(right))
	case code.OpNotEqual:
		result = value.Bool(!left.Equal(right))
	case code.OpGreaterThan:
		result = value.Bool(right.Less(left))
	case code.OpGreaterEqual:
		result = value.Bool(!left.Less(right))
	case code.OpLessThan:
		result = value.Bool(left.Less(right))
	case code.OpLessEqual:
		result = value.Bool(!right.Less(left))
	default:
		return fmt.Errorf("unknown binary operator %d", op)
	}
	return vm.push(result)
}

// callFunction pops the callee and its numArgs arguments off the stack
// (in the order CallExpression pushed them: function, then each
// argument) and either pushes a new Frame (compiled function) or invokes
// the native Go closure directly (native function), pushing its result.
func (vm *VM) callFunction(numArgs int) error {
	callee := vm.stack[vm.sp-1-numArgs]
	args := make([]*value.Value, numArgs)
	copy(args, vm.stack[vm.sp-numArgs:vm.sp])

	switch callee.Kind {
	case value.KindFunction:
		vm.sp = vm.sp - numArgs - 1
		if numArgs != callee.Fn.NumParameters {
			return vm.push(value.ErrorValue(value.ErrArgumentCountMismatch))
		}
		frame := NewFrame(callee, args)
		vm.pushFrame(frame)
		return nil
	case value.KindNativeFunction:
		result := callee.Native(vm.ctx, args)
		vm.sp = vm.sp - numArgs - 1
		if result == nil {
			result = value.Null
		}
		return vm.push(result)
	default:
		vm.sp = vm.sp - numArgs - 1
		return vm.push(value.ErrorValue(value.ErrInvalidFunctionCall))
	}
}

// castKind maps an OpCast operand tag (ast.castTags) to the target Kind.
func castKind(tag int) (value.Kind, bool) {
	switch tag {
	case 1:
		return value.KindInteger, true
	case 2:
		return value.KindFloat, true
	case 3:
		return value.KindBoolean, true
	case 4:
		return value.KindString, true
	default:
		return 0, false
	}
}
