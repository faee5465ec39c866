package azmqtt

import (
	"github.com/amenzhinsky/azcore/azctx"
	"github.com/amenzhinsky/azcore/pipeline"
	"github.com/amenzhinsky/azcore/platform"
	"github.com/amenzhinsky/azcore/result"
)

// Transport is the concrete MQTT implementation consumed through this
// narrow interface. Inbound traffic flows back through the Receiver
// registered at connection setup.
type Transport interface {
	SetReceiver(r Receiver)
	Connect(ctx *azctx.Context, data *ConnectData) error
	Disconnect() error
	Pub(data *PubData) error
	Sub(data *SubData) error
}

// Receiver accepts the transport's inbound traffic, re-raising it as
// pipeline events. Calls arrive on the host's MQTT threads and contend
// on the pipeline mutex, never on pipeline dispatch itself.
type Receiver interface {
	Connack(data *ConnackData) error
	Suback(data *SubackData) error
	Puback(data *PubackData) error
	Received(data *RecvData) error
	Disconnected(data *DisconnectData) error
}

// Adapter is the terminal policy of an MQTT event pipeline. Outbound
// request events dispatch to the transport; anything else outbound is a
// pipeline wiring error and hits the critical-error hook.
type Adapter struct {
	Policy pipeline.Policy

	tr    Transport
	pl    *pipeline.Pipeline
	ctx   *azctx.Context
	clock func() int64
}

// InitAdapter wires the adapter in front of tr on the given pipeline.
func (a *Adapter) InitAdapter(pl *pipeline.Pipeline, tr Transport, ctx *azctx.Context, inbound *pipeline.Policy) {
	a.tr = tr
	a.pl = pl
	a.ctx = ctx
	a.clock = platform.Clock
	a.Policy.OutboundHandler = a.processOutbound
	a.Policy.InboundHandler = a.processInbound
	a.Policy.LinkInbound(inbound)
	tr.SetReceiver(a)
}

func (a *Adapter) processOutbound(e pipeline.Event) error {
	if a.ctx.HasExpired(a.clock()) {
		return result.ErrCanceled
	}

	switch e.Type {
	case EventConnectReq:
		return a.tr.Connect(a.ctx, e.Data.(*ConnectData))
	case EventDisconnectReq:
		return a.tr.Disconnect()
	case EventPubReq:
		return a.tr.Pub(e.Data.(*PubData))
	case EventSubReq:
		return a.tr.Sub(e.Data.(*SubData))
	}
	platform.CriticalError()
	return result.ErrHFSMInvalidState
}

// processInbound validates the event and forwards it up the chain.
func (a *Adapter) processInbound(e pipeline.Event) error {
	switch e.Type {
	case EventConnectRsp, EventDisconnectRsp, EventPubackRsp, EventPubRecvInd,
		EventSubackRsp, pipeline.EventError:
		return a.Policy.SendInbound(e)
	}
	platform.CriticalError()
	return result.ErrHFSMInvalidState
}

// Receiver implementation: each transport callback becomes an inbound
// pipeline event.

func (a *Adapter) Connack(data *ConnackData) error {
	return a.pl.PostInbound(pipeline.Event{Type: EventConnectRsp, Data: data})
}

func (a *Adapter) Suback(data *SubackData) error {
	return a.pl.PostInbound(pipeline.Event{Type: EventSubackRsp, Data: data})
}

func (a *Adapter) Puback(data *PubackData) error {
	return a.pl.PostInbound(pipeline.Event{Type: EventPubackRsp, Data: data})
}

func (a *Adapter) Received(data *RecvData) error {
	return a.pl.PostInbound(pipeline.Event{Type: EventPubRecvInd, Data: data})
}

func (a *Adapter) Disconnected(data *DisconnectData) error {
	return a.pl.PostInbound(pipeline.Event{Type: EventDisconnectRsp, Data: data})
}
