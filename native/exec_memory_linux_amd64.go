//go:build linux && amd64

package native

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// nativeSupported is true only on the one platform this backend actually
// targets. Compile declines immediately everywhere else.
const nativeSupported = true

// ExecutableMemory owns one mmap'd, page-aligned region holding compiled
// native code. Release must be called exactly once, mirroring the
// reference allocator's create/destroy pair for the final binary buffer.
type ExecutableMemory struct {
	region []byte
}

// Load copies code into a fresh RW mapping, then flips it to RX, the two-
// step sequence required to avoid a mapping that is simultaneously
// writable and executable (W^X).
func Load(code []byte) (*ExecutableMemory, error) {
	if len(code) == 0 {
		return nil, fmt.Errorf("native: empty code buffer")
	}

	region, err := unix.Mmap(-1, 0, len(code), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("native: mmap: %w", err)
	}

	copy(region, code)

	if err := unix.Mprotect(region, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		_ = unix.Munmap(region)
		return nil, fmt.Errorf("native: mprotect: %w", err)
	}

	return &ExecutableMemory{region: region}, nil
}

// Addr returns the address of the first byte of compiled code, for
// building a function pointer over it via unsafe.
func (m *ExecutableMemory) Addr() uintptr {
	return uintptr(unsafe.Pointer(&m.region[0]))
}

// Release unmaps the executable region. The ExecutableMemory must not be
// called into or used again afterward.
func (m *ExecutableMemory) Release() error {
	if m.region == nil {
		return nil
	}
	err := unix.Munmap(m.region)
	m.region = nil
	return err
}
