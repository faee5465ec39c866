// Package paho adapts the Eclipse Paho MQTT client to the transport
// contract consumed by the azmqtt adapter policy. Acknowledgements and
// received publishes are re-raised into the event pipeline through the
// registered receiver.
package paho

import (
	"crypto/tls"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/amenzhinsky/azcore/azctx"
	"github.com/amenzhinsky/azcore/azmqtt"
	"github.com/amenzhinsky/azcore/logger"
	"github.com/amenzhinsky/azcore/result"
	"github.com/amenzhinsky/azcore/span"
)

// DefaultQoS is the default quality of service value.
const DefaultQoS = 1

// TransportOption is a transport configuration option.
type TransportOption func(tr *Transport)

// WithTLSConfig sets the TLS configuration used when dialing.
func WithTLSConfig(config *tls.Config) TransportOption {
	return func(tr *Transport) {
		tr.tls = config
	}
}

// WithWebSocket makes the client use MQTT over WebSockets on port 443,
// which is great if e.g. port 8883 is blocked.
func WithWebSocket(enable bool) TransportOption {
	return func(tr *Transport) {
		tr.webSocket = enable
	}
}

// WithClientOptionsConfig adjusts the underlying paho options, use it
// only when you know EXACTLY what you're doing.
func WithClientOptionsConfig(fn func(opts *mqtt.ClientOptions)) TransportOption {
	if fn == nil {
		panic("fn is nil")
	}
	return func(tr *Transport) {
		tr.cocfg = fn
	}
}

// New returns a new paho-backed transport.
func New(opts ...TransportOption) *Transport {
	tr := &Transport{}
	for _, opt := range opts {
		opt(tr)
	}
	return tr
}

// Transport drives a paho client and posts its callbacks into the
// pipeline through the receiver.
type Transport struct {
	conn     mqtt.Client
	receiver azmqtt.Receiver

	tls       *tls.Config
	webSocket bool
	cocfg     func(opts *mqtt.ClientOptions)

	mid int32 // message id, incremented per request
}

// SetReceiver registers the inbound event sink. The adapter calls it
// once during connection setup, before any traffic.
func (tr *Transport) SetReceiver(r azmqtt.Receiver) {
	tr.receiver = r
}

// Connect dials the broker. The connack is reported asynchronously via
// the receiver, as are connection losses.
func (tr *Transport) Connect(ctx *azctx.Context, data *azmqtt.ConnectData) error {
	o := mqtt.NewClientOptions()
	if tr.webSocket {
		o.AddBroker("wss://" + string(data.Host) + ":443/$iothub/websocket")
	} else {
		o.AddBroker("tls://" + string(data.Host) + ":" + strconv.Itoa(int(data.Port)))
	}
	if tr.tls != nil {
		o.SetTLSConfig(tr.tls)
	}
	o.SetProtocolVersion(4) // 4 = MQTT 3.1.1
	o.SetClientID(string(data.ClientID))
	o.SetUsername(string(data.Username))
	o.SetPassword(string(data.Password))
	o.SetAutoReconnect(false) // reconnects belong to the connection state machine
	o.SetWriteTimeout(30 * time.Second)
	o.SetOnConnectHandler(func(c mqtt.Client) {
		logger.Write(logger.MQTTConnection, span.FromString("connection established"))
		tr.receiver.Connack(&azmqtt.ConnackData{})
	})
	o.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Write(logger.MQTTConnection, span.FromString("connection lost: "+err.Error()))
		tr.receiver.Disconnected(&azmqtt.DisconnectData{})
	})
	o.SetDefaultPublishHandler(func(_ mqtt.Client, m mqtt.Message) {
		if logger.Should(logger.MQTTReceivedTopic) {
			logger.Write(logger.MQTTReceivedTopic, span.FromString(m.Topic()))
		}
		if logger.Should(logger.MQTTReceivedPayload) {
			logger.Write(logger.MQTTReceivedPayload, m.Payload())
		}
		tr.receiver.Received(&azmqtt.RecvData{
			Topic:   span.FromString(m.Topic()),
			Payload: m.Payload(),
			QOS:     m.Qos(),
			ID:      int32(m.MessageID()),
		})
	})
	if tr.cocfg != nil {
		tr.cocfg(o)
	}

	c := mqtt.NewClient(o)
	tr.conn = c

	// The connect token resolves on the paho network goroutine; a
	// refused connect surfaces as a non-zero connack reason.
	token := c.Connect()
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			tr.receiver.Connack(&azmqtt.ConnackData{ConnackReason: 136})
		}
	}()
	return nil
}

// Disconnect closes the network connection and acknowledges through
// the receiver from a separate goroutine, matching brokers that drop
// without a DISCONNECT.
func (tr *Transport) Disconnect() error {
	if tr.conn == nil {
		return result.ErrHTTPInvalidState
	}
	tr.conn.Disconnect(250)
	go tr.receiver.Disconnected(&azmqtt.DisconnectData{DisconnectRequested: true})
	return nil
}

// Pub publishes the payload and posts the puback once the token
// resolves.
func (tr *Transport) Pub(data *azmqtt.PubData) error {
	if tr.conn == nil {
		return result.ErrHTTPInvalidState
	}
	qos := data.QOS
	if qos > 1 {
		return result.ErrNotSupported
	}
	tr.mid++
	data.ID = tr.mid

	token := tr.conn.Publish(string(data.Topic), qos, false, []byte(data.Payload))
	go tr.ack(token, data.ID, func(id int32) {
		tr.receiver.Puback(&azmqtt.PubackData{ID: id})
	})
	return nil
}

// Sub subscribes to the topic filter and posts the suback once the
// token resolves.
func (tr *Transport) Sub(data *azmqtt.SubData) error {
	if tr.conn == nil {
		return result.ErrHTTPInvalidState
	}
	tr.mid++
	data.ID = tr.mid

	token := tr.conn.Subscribe(string(data.TopicFilter), data.QOS, nil)
	go tr.ack(token, data.ID, func(id int32) {
		tr.receiver.Suback(&azmqtt.SubackData{ID: id})
	})
	return nil
}

func (tr *Transport) ack(token mqtt.Token, id int32, done func(id int32)) {
	token.Wait()
	if err := token.Error(); err != nil {
		logger.Write(logger.MQTTConnection, span.FromString("request failed: "+err.Error()))
		return
	}
	done(id)
}

var _ azmqtt.Transport = (*Transport)(nil)
