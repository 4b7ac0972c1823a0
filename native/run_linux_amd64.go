//go:build linux && amd64

package native

import (
	"runtime"
	"unsafe"

	"github.com/dr8co/tang/ast"
)

// machineStackSize is the private evaluation stack handed to a native
// program. Generated code pushes one word per pending operand, so depth is
// bounded by expression nesting; 64 KiB is orders of magnitude past what
// any parseable program reaches.
const machineStackSize = 64 * 1024

// Executable is a loaded, runnable native program: its machine code in an
// RX mapping plus the frame sizes Run needs to set up each call.
type Executable struct {
	mem         *ExecutableMemory
	globalWords int
	stack       []byte
}

// NewExecutable copies code.Text into executable memory, ready for Run.
func NewExecutable(code *Code) (*Executable, error) {
	mem, err := Load(code.Text)
	if err != nil {
		return nil, err
	}
	return &Executable{
		mem:         mem,
		globalWords: code.GlobalWords,
		stack:       make([]byte, machineStackSize),
	}, nil
}

// Run executes the program once against a zeroed global frame and returns
// the tag and raw bits it left in the result slot. Each Run is independent;
// native programs are self-contained (any construct touching host state
// declines compilation), so no state survives between calls.
func (x *Executable) Run() (ast.NativeKind, uint64) {
	words := x.globalWords
	if words == 0 {
		words = 1
	}
	globals := make([]uint64, words)
	var result [2]uint64

	// The machine stack grows down; start at a 16-byte-aligned offset one
	// slot below the allocation's end so the pointer stays inside it.
	base := unsafe.Pointer(&x.stack[0])
	top := len(x.stack) - int((uintptr(base)+uintptr(len(x.stack)))&15) - 16

	callNative(
		unsafe.Pointer(x.mem.Addr()),
		unsafe.Pointer(&globals[0]),
		unsafe.Pointer(&result[0]),
		unsafe.Add(base, top),
	)
	runtime.KeepAlive(globals)
	runtime.KeepAlive(x)

	return ast.NativeKind(result[0]), result[1]
}

// Release unmaps the program's executable memory. The Executable must not
// be run again afterward.
func (x *Executable) Release() error {
	return x.mem.Release()
}

// callNative transfers control to compiled code at code, with the global
// frame in R13, the result slot in R14, and RSP switched to stack.
// Implemented in call_linux_amd64.s.
func callNative(code, globals, result, stack unsafe.Pointer)
