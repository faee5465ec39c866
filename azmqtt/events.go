// Package azmqtt builds the event-driven MQTT layer: typed pipeline
// events, the terminal adapter policy in front of the concrete MQTT
// transport, the connection state machine with back-off reconnects,
// and the pending-request correlation table used by request/response
// codecs.
package azmqtt

import (
	"github.com/amenzhinsky/azcore/pipeline"
	"github.com/amenzhinsky/azcore/result"
	"github.com/amenzhinsky/azcore/span"
)

// Outbound request and inbound response event types.
var (
	EventConnectReq    = pipeline.MakeEventType(result.FacilityMQTT, 1)
	EventConnectRsp    = pipeline.MakeEventType(result.FacilityMQTT, 2)
	EventDisconnectReq = pipeline.MakeEventType(result.FacilityMQTT, 3)
	EventDisconnectRsp = pipeline.MakeEventType(result.FacilityMQTT, 4)
	EventPubReq        = pipeline.MakeEventType(result.FacilityMQTT, 5)
	EventPubackRsp     = pipeline.MakeEventType(result.FacilityMQTT, 6)
	EventPubRecvInd    = pipeline.MakeEventType(result.FacilityMQTT, 7)
	EventSubReq        = pipeline.MakeEventType(result.FacilityMQTT, 8)
	EventSubackRsp     = pipeline.MakeEventType(result.FacilityMQTT, 9)
)

// Connection management events posted by the application.
var (
	EventConnectionOpenReq  = pipeline.MakeEventType(result.FacilityMQTT, 10)
	EventConnectionCloseReq = pipeline.MakeEventType(result.FacilityMQTT, 11)
)

// ConnectData parameterizes an outbound connect.
type ConnectData struct {
	Host     span.Span
	Port     uint16
	ClientID span.Span
	Username span.Span
	Password span.Span
}

// ConnackData reports the broker's connect response. Reason zero is
// success; reasons 4, 5 and 135 are authentication failures and are
// never retried.
type ConnackData struct {
	ConnackReason int32
	TLSAuthError  bool
}

// DisconnectData reports a broker or transport initiated disconnect.
type DisconnectData struct {
	TLSAuthError        bool
	DisconnectRequested bool
}

// SubData parameterizes an outbound subscribe. ID is filled by the
// transport with the message id of the in-flight request.
type SubData struct {
	TopicFilter span.Span
	QOS         byte
	ID          int32
}

// SubackData acknowledges a subscribe.
type SubackData struct {
	ID int32
}

// PubData parameterizes an outbound publish. ID is filled by the
// transport with the message id of the in-flight request.
type PubData struct {
	Topic   span.Span
	Payload span.Span
	QOS     byte
	ID      int32
}

// PubackData acknowledges a QOS 1 publish.
type PubackData struct {
	ID int32
}

// RecvData is a publish received from the broker. The spans are valid
// only for the duration of the dispatch.
type RecvData struct {
	Topic   span.Span
	Payload span.Span
	QOS     byte
	ID      int32
}

// PropertyBag is the MQTT 5 property abstraction a transport may
// support; implementations that speak MQTT 3.1.1 return
// result.ErrNotSupported from every method.
type PropertyBag interface {
	AppendString(key, value span.Span) error
	AppendBinary(key span.Span, value span.Span) error
	Clear() error
}

// IsConnackRetriable reports whether a failed connect may be retried:
// any non-zero reason except the authentication failures.
func IsConnackRetriable(reason int32) bool {
	switch reason {
	case 4, 5, 135:
		return false
	}
	return reason != 0
}
