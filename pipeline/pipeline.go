// Package pipeline implements the bi-directional event pipeline: a
// chain of policies traversed outbound (application to transport) and
// inbound (transport to application) under a single serializing mutex.
// The chain is two unidirectional linked lists, one per direction;
// the pipeline owner wires and owns the policies.
package pipeline

import (
	"sync"

	"github.com/amenzhinsky/azcore/platform"
	"github.com/amenzhinsky/azcore/result"
)

// Handler processes one event travelling in one direction. A handler
// does local work, possibly mutates the event's payload, and forwards
// via SendOutbound/SendInbound; a terminal policy does not forward.
type Handler func(e Event) error

// Policy is a node in the pipeline. The two next pointers form the
// per-direction chains; handlers are invoked with the pipeline mutex
// held, so a policy never observes two events concurrently.
type Policy struct {
	InboundHandler  Handler
	OutboundHandler Handler

	inboundNext  *Policy
	outboundNext *Policy
}

// LinkOutbound sets the policy's outbound neighbor.
func (p *Policy) LinkOutbound(next *Policy) {
	p.outboundNext = next
}

// LinkInbound sets the policy's inbound neighbor.
func (p *Policy) LinkInbound(next *Policy) {
	p.inboundNext = next
}

// OutboundNext returns the outbound neighbor, nil for a terminal policy.
func (p *Policy) OutboundNext() *Policy {
	return p.outboundNext
}

// InboundNext returns the inbound neighbor, nil for the outermost policy.
func (p *Policy) InboundNext() *Policy {
	return p.inboundNext
}

// SendOutbound forwards e to the outbound neighbor.
func (p *Policy) SendOutbound(e Event) error {
	if p.outboundNext == nil || p.outboundNext.OutboundHandler == nil {
		return result.ErrHTTPPipelineInvalidPolicy
	}
	return p.outboundNext.OutboundHandler(e)
}

// SendInbound forwards e to the inbound neighbor.
func (p *Policy) SendInbound(e Event) error {
	if p.inboundNext == nil || p.inboundNext.InboundHandler == nil {
		return result.ErrHTTPPipelineInvalidPolicy
	}
	return p.inboundNext.InboundHandler(e)
}

// Pipeline holds the two chain heads and the mutex serializing all
// traffic. Outbound and inbound events never run concurrently on the
// same instance.
type Pipeline struct {
	mu       sync.Mutex
	outbound *Policy
	inbound  *Policy
}

// Init points the pipeline at its outbound-most and inbound-most
// policies. The caller has already linked the chain.
func (pl *Pipeline) Init(outbound, inbound *Policy) {
	pl.outbound = outbound
	pl.inbound = inbound
}

// PostOutbound dispatches e to the outbound-most policy under the
// pipeline mutex.
func (pl *Pipeline) PostOutbound(e Event) error {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.outbound.OutboundHandler(e)
}

// PostInbound dispatches e to the inbound-most policy under the
// pipeline mutex.
func (pl *Pipeline) PostInbound(e Event) error {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.inbound.InboundHandler(e)
}

// Timer is a platform one-shot timer bound to a pipeline. When it
// fires it posts EventTimeout outbound with itself as the payload; if
// that dispatch fails it posts EventError inbound; if that fails too
// the critical-error hook runs.
type Timer struct {
	pipeline *Pipeline
	timer    *platform.Timer

	// Data lets the owner tag the timer so handlers can tell
	// concurrent timers apart.
	Data any
}

// NewTimer creates a timer bound to the pipeline.
func (pl *Pipeline) NewTimer() *Timer {
	t := &Timer{pipeline: pl}
	t.timer = platform.NewTimer(t.fire)
	return t
}

func (t *Timer) fire() {
	e := Event{Type: EventTimeout, Data: t}
	err := t.pipeline.PostOutbound(e)
	if result.Failed(err) {
		err = t.pipeline.PostInbound(Event{Type: EventError, Data: &ErrorData{
			Err:    err,
			Sender: t.pipeline.outbound,
			Event:  e,
		}})
	}
	if result.Failed(err) {
		platform.CriticalError()
	}
}

// Start arms the timer for a single shot after delayMs milliseconds.
func (t *Timer) Start(delayMs int32) {
	t.timer.Start(delayMs)
}

// Stop disarms the timer.
func (t *Timer) Stop() {
	t.timer.Stop()
}
