// Package runtime provides Tang's execution context: the arena-based GC
// registry, the global variable table, and the host library table that
// `use` declarations resolve against. It implements value.Owner so
// package value never needs to import it back.
package runtime

import (
	"fmt"
	"io"
	"os"

	"github.com/dr8co/tang/unicodeseg"
	"github.com/dr8co/tang/value"
)

// Context is one program run's execution state. Create with New, run a
// compiled program against it with the vm package, then Destroy to
// release every arena-registered value.
type Context struct {
	// arena holds every temporary Value created during this run, in
	// creation order, so Destroy can release them in one pass. Tang has
	// no reference counting or mark-sweep; the arena is freed wholesale
	// at context teardown, matching the reference implementation's
	// arena allocator.
	arena []*value.Value

	globals   map[string]*value.Value
	libraries map[string]*value.Value

	// Output is where PrintStatement writes composed output. Defaults to
	// os.Stdout; the REPL substitutes its own sink.
	Output io.Writer

	// composed accumulates the run's full print output with each range's
	// render-type tag intact, so a host can re-render it under a policy
	// of its own. What goes to Output is the rendered (escaped) form.
	composed unicodeseg.TaggedString

	// Debug, when set, makes the VM log each dispatched opcode to
	// Output before executing it.
	Debug bool
}

// New creates an execution context with the standard library table
// installed and Output defaulted to os.Stdout.
func New() *Context {
	ctx := &Context{
		globals:   make(map[string]*value.Value),
		libraries: make(map[string]*value.Value),
		Output:    os.Stdout,
	}
	installStandardLibraries(ctx)
	return ctx
}

// Register adds v to the GC arena. Satisfies value.Owner.
func (c *Context) Register(v *value.Value) {
	c.arena = append(c.arena, v)
}

// Library resolves a library-qualified name to its Value (a map-shaped
// Value whose Attrs hold the library's members), populated either by
// AddLibrary (host-registered libraries) or installStandardLibraries.
// Satisfies value.Owner.
func (c *Context) Library(name string) (*value.Value, bool) {
	v, ok := c.libraries[name]
	return v, ok
}

// AddLibrary registers a host-provided library under name, overwriting
// any standard library of the same name. Used by embedders per the
// program_add_library entry point.
func (c *Context) AddLibrary(name string, lib *value.Value) {
	c.libraries[name] = lib
}

// GetGlobal reads the named global, or value.Null if unset.
func (c *Context) GetGlobal(name string) *value.Value {
	if v, ok := c.globals[name]; ok {
		return v
	}
	return value.Null
}

// SetGlobal binds name to v in the global table.
func (c *Context) SetGlobal(name string, v *value.Value) {
	c.globals[name] = v
}

// PrintTagged concatenates ts into the context's composed output,
// preserving its render-type ranges, and writes the rendered (per-range
// escaped) form through to Output. Ranges are appended whole, so
// rendering each increment as it arrives is equivalent to rendering the
// final composition once.
func (c *Context) PrintTagged(ts unicodeseg.TaggedString) {
	c.composed = unicodeseg.Concat(c.composed, ts)
	_, _ = fmt.Fprint(c.Output, unicodeseg.Render(ts))
}

// Print writes s to Output as trusted (unescaped) text, the plain-string
// form of PrintTagged.
func (c *Context) Print(s string) {
	c.PrintTagged(unicodeseg.Plain(s))
}

// Composed returns the run's accumulated print output with render-type
// tags intact.
func (c *Context) Composed() unicodeseg.TaggedString {
	return c.composed
}

// Destroy releases every arena-registered value. After Destroy, the
// Context must not be reused.
func (c *Context) Destroy() {
	c.arena = nil
	c.globals = nil
}
