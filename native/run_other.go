//go:build !(linux && amd64)

package native

import (
	"fmt"

	"github.com/dr8co/tang/ast"
)

// Executable is unused on this platform; NewExecutable always fails, and
// Compile has already declined before any caller reaches it.
type Executable struct{}

// NewExecutable always fails on platforms without a native backend.
func NewExecutable(*Code) (*Executable, error) {
	return nil, fmt.Errorf("native: unsupported on this platform")
}

// Run is unreachable since NewExecutable never succeeds.
func (x *Executable) Run() (ast.NativeKind, uint64) {
	return ast.NativeKindNull, 0
}

// Release is a no-op since NewExecutable never succeeds.
func (x *Executable) Release() error { return nil }
