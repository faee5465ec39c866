package azmqtt

import (
	"github.com/amenzhinsky/azcore/azctx"
	"github.com/amenzhinsky/azcore/hfsm"
	"github.com/amenzhinsky/azcore/pipeline"
	"github.com/amenzhinsky/azcore/platform"
	"github.com/amenzhinsky/azcore/result"
	"github.com/amenzhinsky/azcore/retry"
	"github.com/amenzhinsky/azcore/span"
)

// Connection lifecycle defaults.
const (
	DefaultConnectTimeoutMs    = 30 * 1000
	DefaultDisconnectTimeoutMs = 5 * 1000
	DefaultMinRetryDelayMs     = 1000
	DefaultMaxRetryDelayMs     = 100 * 1000
	DefaultMaxRandomJitterMs   = 5000
)

// ConnectionCallback receives connection lifecycle events: connect and
// disconnect responses, puback/suback/publish indications that no
// subclient consumed, and inbound errors.
type ConnectionCallback func(c *Connection, e pipeline.Event) error

// ConnectionOptions configures the connection state machine.
type ConnectionOptions struct {
	Hostname string
	Port     uint16
	ClientID string
	Username string
	Password string

	ConnectTimeoutMs    int32
	DisconnectTimeoutMs int32

	MinRetryDelayMs   int32
	MaxRetryDelayMs   int32
	MaxRandomJitterMs int32

	// MaxConnectAttempts caps reconnect attempts; -1 and the zero value
	// retry forever.
	MaxConnectAttempts int16
}

func (o *ConnectionOptions) applyDefaults() {
	if o.ConnectTimeoutMs == 0 {
		o.ConnectTimeoutMs = DefaultConnectTimeoutMs
	}
	if o.DisconnectTimeoutMs == 0 {
		o.DisconnectTimeoutMs = DefaultDisconnectTimeoutMs
	}
	if o.MinRetryDelayMs == 0 {
		o.MinRetryDelayMs = DefaultMinRetryDelayMs
	}
	if o.MaxRetryDelayMs == 0 {
		o.MaxRetryDelayMs = DefaultMaxRetryDelayMs
	}
	if o.MaxRandomJitterMs == 0 {
		o.MaxRandomJitterMs = DefaultMaxRandomJitterMs
	}
	if o.MaxConnectAttempts == 0 {
		o.MaxConnectAttempts = -1
	}
}

// Connection drives an MQTT connection through its event pipeline:
// application -> state machine -> subclient collection -> transport
// adapter, with inbound events walking the same chain in reverse.
type Connection struct {
	machine    hfsm.Machine
	collection pipeline.Collection
	adapter    Adapter
	pl         pipeline.Pipeline

	opts     ConnectionOptions
	callback ConnectionCallback
	ctx      *azctx.Context

	idle, connecting, connected, disconnecting, faulted *hfsm.State

	timer       *pipeline.Timer
	attempt     int16
	connectData ConnectData

	random func() int32
}

// NewConnection wires the pipeline and enters the idle state.
func NewConnection(tr Transport, ctx *azctx.Context, callback ConnectionCallback, opts ConnectionOptions) (*Connection, error) {
	if tr == nil || callback == nil {
		return nil, result.ErrInvalidArg
	}
	opts.applyDefaults()

	c := &Connection{
		opts:     opts,
		callback: callback,
		ctx:      ctx,
		random:   platform.Random,
	}
	c.initStates()

	c.collection.InitCollection(&c.adapter.Policy, &c.machine.Policy)
	c.adapter.InitAdapter(&c.pl, tr, ctx, &c.collection.Policy)
	if err := c.machine.Init(c.root(), &c.collection.Policy, nil); err != nil {
		return nil, err
	}
	c.pl.Init(&c.machine.Policy, &c.adapter.Policy)
	c.timer = c.pl.NewTimer()

	return c, c.machine.TransitionSubstate(c.root(), c.idle)
}

// Open requests the connection to be established.
func (c *Connection) Open() error {
	return c.pl.PostOutbound(pipeline.Event{Type: EventConnectionOpenReq})
}

// Close requests an orderly disconnect.
func (c *Connection) Close() error {
	return c.pl.PostOutbound(pipeline.Event{Type: EventConnectionCloseReq})
}

// AddClient attaches a subclient policy sharing this connection.
func (c *Connection) AddClient(p *pipeline.Policy) {
	c.collection.AddClient(p)
}

// Pipeline exposes the connection's event pipeline to codecs built on
// top of it.
func (c *Connection) Pipeline() *pipeline.Pipeline {
	return &c.pl
}

func (c *Connection) root() *hfsm.State {
	return c.idle.Parent
}

func (c *Connection) initStates() {
	root := &hfsm.State{Name: "root", Handle: c.rootHandle}
	c.idle = &hfsm.State{Name: "idle", Parent: root, Handle: c.idleHandle}
	c.connecting = &hfsm.State{Name: "connecting", Parent: root, Handle: c.connectingHandle}
	c.connected = &hfsm.State{Name: "connected", Parent: root, Handle: c.connectedHandle}
	c.disconnecting = &hfsm.State{Name: "disconnecting", Parent: root, Handle: c.disconnectingHandle}
	c.faulted = &hfsm.State{Name: "faulted", Parent: root, Handle: c.faultedHandle}
}

// rootHandle is the default for every state: pass requests down the
// chain, surface responses and errors to the application.
func (c *Connection) rootHandle(m *hfsm.Machine, e pipeline.Event) error {
	switch e.Type {
	case hfsm.EventEntry, hfsm.EventExit, pipeline.EventTimeout:
		return nil
	case EventPubReq, EventSubReq:
		return m.Policy.SendOutbound(e)
	case EventPubackRsp, EventSubackRsp, EventPubRecvInd,
		EventConnectRsp, EventDisconnectRsp, pipeline.EventError:
		return c.callback(c, e)
	case EventConnectionOpenReq, EventConnectionCloseReq:
		return nil
	}
	return nil
}

func (c *Connection) idleHandle(m *hfsm.Machine, e pipeline.Event) error {
	switch e.Type {
	case hfsm.EventEntry, hfsm.EventExit:
		return nil
	case EventConnectionOpenReq:
		return c.connect(m, c.idle)
	case pipeline.EventTimeout:
		if e.Data != c.timer {
			return nil
		}
		// The reconnect back-off elapsed.
		return c.connect(m, c.idle)
	}
	return hfsm.ErrHandleBySuperstate
}

// connect emits CONNECT_REQ, arms the connect timer and moves to
// connecting.
func (c *Connection) connect(m *hfsm.Machine, source *hfsm.State) error {
	c.connectData = ConnectData{
		Host:     span.FromString(c.opts.Hostname),
		Port:     c.opts.Port,
		ClientID: span.FromString(c.opts.ClientID),
		Username: span.FromString(c.opts.Username),
		Password: span.FromString(c.opts.Password),
	}
	if err := m.Policy.SendOutbound(pipeline.Event{
		Type: EventConnectReq, Data: &c.connectData,
	}); result.Failed(err) {
		return err
	}
	c.timer.Start(c.opts.ConnectTimeoutMs)
	return m.TransitionPeer(source, c.connecting)
}

func (c *Connection) connectingHandle(m *hfsm.Machine, e pipeline.Event) error {
	switch e.Type {
	case hfsm.EventEntry, hfsm.EventExit:
		return nil

	case EventConnectRsp:
		c.timer.Stop()
		data := e.Data.(*ConnackData)
		if data.ConnackReason == 0 {
			c.attempt = 0
			if err := m.TransitionPeer(c.connecting, c.connected); result.Failed(err) {
				return err
			}
			return c.callback(c, e)
		}
		return c.connectFailed(m, e, IsConnackRetriable(data.ConnackReason))

	case pipeline.EventTimeout:
		if e.Data != c.timer {
			return nil
		}
		return c.connectFailed(m, e, true)

	case EventConnectionCloseReq:
		return c.disconnect(m, c.connecting)
	}
	return hfsm.ErrHandleBySuperstate
}

// connectFailed schedules a retry or gives up into faulted.
func (c *Connection) connectFailed(m *hfsm.Machine, e pipeline.Event, retriable bool) error {
	exhausted := c.opts.MaxConnectAttempts >= 0 && c.attempt+1 >= c.opts.MaxConnectAttempts
	if !retriable || exhausted {
		if err := m.TransitionPeer(m.Current(), c.faulted); result.Failed(err) {
			return err
		}
		return c.callback(c, pipeline.Event{Type: pipeline.EventError, Data: &pipeline.ErrorData{
			Err:    result.ErrHTTPAuthenticationFailed,
			Sender: &c.machine.Policy,
			Event:  e,
		}})
	}

	var jitter int32
	if c.opts.MaxRandomJitterMs > 0 {
		jitter = c.random() % c.opts.MaxRandomJitterMs
	}
	delay := retry.CalcDelay(0, c.attempt, c.opts.MinRetryDelayMs, c.opts.MaxRetryDelayMs, jitter)
	c.attempt++

	if err := m.TransitionPeer(m.Current(), c.idle); result.Failed(err) {
		return err
	}
	c.timer.Start(delay)
	return c.callback(c, e)
}

func (c *Connection) connectedHandle(m *hfsm.Machine, e pipeline.Event) error {
	switch e.Type {
	case hfsm.EventEntry, hfsm.EventExit:
		return nil

	case EventConnectionCloseReq:
		return c.disconnect(m, c.connected)

	case EventDisconnectRsp:
		// Unsolicited drop: surface it, then back off and reconnect.
		if err := c.callback(c, e); result.Failed(err) {
			return err
		}
		if err := m.TransitionPeer(c.connected, c.idle); result.Failed(err) {
			return err
		}
		var jitter int32
		if c.opts.MaxRandomJitterMs > 0 {
			jitter = c.random() % c.opts.MaxRandomJitterMs
		}
		c.timer.Start(retry.CalcDelay(0, c.attempt, c.opts.MinRetryDelayMs, c.opts.MaxRetryDelayMs, jitter))
		return nil
	}
	return hfsm.ErrHandleBySuperstate
}

// disconnect emits DISCONNECT_REQ, arms the handshake timer and moves
// to disconnecting.
func (c *Connection) disconnect(m *hfsm.Machine, source *hfsm.State) error {
	if err := m.Policy.SendOutbound(pipeline.Event{Type: EventDisconnectReq}); result.Failed(err) {
		return err
	}
	c.timer.Start(c.opts.DisconnectTimeoutMs)
	return m.TransitionPeer(source, c.disconnecting)
}

func (c *Connection) disconnectingHandle(m *hfsm.Machine, e pipeline.Event) error {
	switch e.Type {
	case hfsm.EventEntry, hfsm.EventExit:
		return nil

	case EventDisconnectRsp:
		c.timer.Stop()
		if err := m.TransitionPeer(c.disconnecting, c.idle); result.Failed(err) {
			return err
		}
		return c.callback(c, e)

	case pipeline.EventTimeout:
		if e.Data != c.timer {
			return nil
		}
		// The handshake never completed; force idle.
		return m.TransitionPeer(c.disconnecting, c.idle)
	}
	return hfsm.ErrHandleBySuperstate
}

// faultedHandle rejects everything until the application closes the
// connection.
func (c *Connection) faultedHandle(m *hfsm.Machine, e pipeline.Event) error {
	switch e.Type {
	case hfsm.EventEntry, hfsm.EventExit, pipeline.EventTimeout:
		return nil
	case EventConnectionCloseReq:
		c.attempt = 0
		return m.TransitionPeer(c.faulted, c.idle)
	}
	return result.ErrHTTPInvalidState
}
