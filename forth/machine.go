package forth

import (
	"github.com/chazu/typedbuilder/buffer"
	"github.com/chazu/typedbuilder/machine"
)

// Options configure programs created by a Machine.
type Options struct {
	Buffers     buffer.Options
	StackDepth  int
	ReturnDepth int
	// Trace logs every instruction at debug level.
	Trace bool
}

// DefaultOptions returns the buffer defaults with 1024-deep stacks.
func DefaultOptions() Options {
	return Options{Buffers: buffer.DefaultOptions(), StackDepth: 1024, ReturnDepth: 1024}
}

func (o Options) normalize() Options {
	if o.StackDepth <= 0 {
		o.StackDepth = 1024
	}
	if o.ReturnDepth <= 0 {
		o.ReturnDepth = 1024
	}
	return o
}

// Machine compiles program text into Programs.
type Machine struct {
	opts Options
}

var _ machine.Machine = (*Machine)(nil)

func New(opts Options) *Machine {
	return &Machine{opts: opts}
}

func (m *Machine) Compile(source string) (machine.Program, error) {
	chunk, err := Compile(source)
	if err != nil {
		return nil, err
	}
	log.Debugf("compiled %d bytes of code, %d words, %d outputs", len(chunk.Code), len(chunk.Words), len(chunk.Outputs))
	p, err := NewProgram(chunk, m.opts)
	if err != nil {
		return nil, err
	}
	return p, nil
}
