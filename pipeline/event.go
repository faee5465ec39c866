package pipeline

import "github.com/amenzhinsky/azcore/result"

// EventType tags an event with its originating facility and an id,
// using the same bit layout as result codes minus the severity bit.
type EventType uint32

// MakeEventType builds an event type from a facility and an id.
func MakeEventType(f result.Facility, id uint16) EventType {
	return EventType(uint32(f)<<16 | uint32(id))
}

// Event is a type tag plus an opaque payload pointer. The payload is
// only valid for the duration of the dispatch.
type Event struct {
	Type EventType
	Data any
}

// Well-known event types every pipeline understands.
var (
	// EventTimeout is posted outbound by a pipeline timer that fired;
	// Data is the *Timer.
	EventTimeout = MakeEventType(result.FacilityCore, 3)

	// EventError is posted inbound when a handler fails; Data is *ErrorData.
	EventError = MakeEventType(result.FacilityCore, 4)
)

// ErrorData identifies a failed dispatch: the failing result, the
// policy that produced it, and the event being processed at the time.
type ErrorData struct {
	Err    error
	Sender *Policy
	Event  Event
}
