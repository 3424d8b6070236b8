// Package machine defines what the builder needs from a stack-machine
// executor: compile program text, bind named inputs, expose named outputs
// and variables, and run until the inputs are drained.
package machine

import "github.com/chazu/typedbuilder/buffer"

// Machine compiles program text into runnable programs.
type Machine interface {
	Compile(source string) (Program, error)
}

// Checkpoint is an opaque saved program state.
type Checkpoint any

// Program is a compiled program together with its buffers and execution
// state.
type Program interface {
	// BindInput attaches a declared input to a byte stream.
	BindInput(name string, in *buffer.Input) error
	// Output returns a declared output buffer.
	Output(name string) (*buffer.Output, error)
	// Outputs lists the declared output names in declaration order.
	Outputs() []string
	// Variable returns the current value of a declared variable.
	Variable(name string) (int64, error)

	// Resume runs until the program needs input that has not been written
	// yet, or finishes. A nil error means the program is waiting.
	Resume() error

	// Checkpoint captures the execution state, output lengths, variables
	// and input positions. Restore returns to it, discarding everything
	// written since.
	Checkpoint() Checkpoint
	Restore(Checkpoint) error

	// Reset empties all outputs and variables and rewinds to the start.
	Reset() error

	// String describes the execution state for debugging.
	String() string
}
