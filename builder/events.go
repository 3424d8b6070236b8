package builder

import (
	"fmt"

	"github.com/chazu/typedbuilder/content"
)

// Event is the code the facade writes to the "events" input. Payloads go to
// the "data" input: boolean writes an int64 0 or 1, integer an int64, real a
// float64, complex two float64s, bytestring and string an int64 length and
// the bytes. index and field write the int64 field index, append the int64
// index into the foreign array and select the int64 union tag.
type Event int32

const (
	EventNull        Event = 0
	EventBoolean     Event = 1
	EventInteger     Event = 2
	EventReal        Event = 3
	EventComplex     Event = 4
	EventBytestring  Event = 5
	EventString      Event = 6
	EventBeginList   Event = 7
	EventEndList     Event = 8
	EventBeginTuple  Event = 9
	EventIndex       Event = 10
	EventEndTuple    Event = 11
	EventBeginRecord Event = 12
	EventField       Event = 13
	EventEndRecord   Event = 14
	EventAppend      Event = 15
	EventSelect      Event = 16
)

var eventNames = [...]string{
	"null", "boolean", "integer", "real", "complex", "bytestring", "string",
	"beginlist", "endlist", "begintuple", "index", "endtuple",
	"beginrecord", "field", "endrecord", "append", "select",
}

func (e Event) String() string {
	if e >= 0 && int(e) < len(eventNames) {
		return eventNames[e]
	}
	return fmt.Sprintf("Event(%d)", int32(e))
}

// IsScalar reports whether e carries a single primitive value.
func (e Event) IsScalar() bool { return e <= EventString }

// event is one value-starting call on the facade with its payload.
type event struct {
	code Event

	b   bool
	i   int64
	f   float64
	c   complex128
	raw []byte

	// beginrecord_fast / beginrecord_check
	name    string
	named   bool
	checked bool

	// begintuple
	arity int

	// append
	foreign content.Content
}
