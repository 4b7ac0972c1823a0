package vm

import (
	"github.com/dr8co/tang/code"
	"github.com/dr8co/tang/value"
)

// Frame is one call's execution state: the function being run, its
// instruction pointer, and its local environment. Unlike the reference
// compiler's stack-slot locals, Tang locals are resolved by mangled name
// (see ast.Scope.Mangled), so a Frame's locals are a name-keyed map rather
// than a base-pointer offset into the operand stack.
type Frame struct {
	fn     *value.Value
	ip     int
	locals map[string]*value.Value
}

// NewFrame creates a frame for calling fn, with its parameters already
// bound in args (by declaration order, matching fn.Fn.ParameterNames).
func NewFrame(fn *value.Value, args []*value.Value) *Frame {
	locals := make(map[string]*value.Value, fn.Fn.NumLocals)
	for i, name := range fn.Fn.ParameterNames {
		if i < len(args) {
			locals[name] = args[i]
		} else {
			locals[name] = value.Null
		}
	}
	return &Frame{fn: fn, ip: -1, locals: locals}
}

// Instructions returns the bytecode of the function this frame is running.
func (f *Frame) Instructions() code.Instructions {
	return f.fn.Fn.Instructions
}
