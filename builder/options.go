package builder

import "github.com/chazu/typedbuilder/machine"

// Options configures a TypedArrayBuilder.
type Options struct {
	// Machine, when set, compiles the program as soon as a form is bound.
	// Without it the facade stays bound until Connect is called.
	Machine machine.Machine
}
