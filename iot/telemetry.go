package iot

import (
	"github.com/amenzhinsky/azcore/result"
	"github.com/amenzhinsky/azcore/span"
)

// Default telemetry topic formats for the MQTT 5 codecs.
const (
	// TelemetryProducerTopicFormat is published to by producers.
	TelemetryProducerTopicFormat = "services/{modelId}/{senderId}/telemetry"

	// TelemetryConsumerTopicFormat is subscribed to by consumers.
	TelemetryConsumerTopicFormat = "services/{serviceId}/{senderId}/telemetry"
)

// TelemetryPublishTopic renders the producer topic for the given model
// and sender.
func TelemetryPublishTopic(dst span.Span, values *TopicValues) (int32, error) {
	return BuildTopic(dst, TelemetryProducerTopicFormat, values, nil)
}

// TelemetrySubscribeTopic renders the consumer topic filter; an empty
// SenderID is not wildcarded, consumers pass the sender they follow.
func TelemetrySubscribeTopic(dst span.Span, values *TopicValues, group span.Span) (int32, error) {
	return BuildTopic(dst, TelemetryConsumerTopicFormat, values, group)
}

// ParseTelemetryTopic binds a received producer topic to its values.
func ParseTelemetryTopic(received span.Span, out *TopicValues) error {
	return ParseTopic(received, TelemetryProducerTopicFormat, out)
}

// MessageProperties is the property bag appended to an IoT Hub
// telemetry publish topic. Encoding hints come first, user properties
// follow in insertion order.
type MessageProperties struct {
	ContentType     span.Span
	ContentEncoding span.Span

	keys   []span.Span
	values []span.Span
}

// Add appends one user property.
func (p *MessageProperties) Add(key, value span.Span) {
	p.keys = append(p.keys, key)
	p.values = append(p.values, value)
}

func (p *MessageProperties) empty() bool {
	return p == nil || (len(p.ContentType) == 0 && len(p.ContentEncoding) == 0 && len(p.keys) == 0)
}

// hubTopic appends the device (and optional module) path segments.
func hubTopic(out span.Span, deviceID, moduleID span.Span) span.Span {
	out = append(out, "devices/"...)
	out = append(out, deviceID...)
	if len(moduleID) > 0 {
		out = append(out, "/modules/"...)
		out = append(out, moduleID...)
	}
	return out
}

// HubTelemetryPublishTopic renders the device-to-cloud events topic,
// `devices/<id>/messages/events/` followed by the property bag in ct,
// ce, user-property order. Values are url-encoded; keys are written as
// given.
func HubTelemetryPublishTopic(dst span.Span, deviceID, moduleID span.Span, props *MessageProperties) (int32, error) {
	if len(deviceID) == 0 {
		return 0, result.ErrInvalidArg
	}

	required := int32(len("devices/") + len(deviceID) + len("/messages/events/"))
	if len(moduleID) > 0 {
		required += int32(len("/modules/") + len(moduleID))
	}
	var pairs int32
	count := func(k, v span.Span) {
		if pairs > 0 {
			required++ // '&'
		}
		required += span.Size(k) + 1 + span.URLEncodedLength(v)
		pairs++
	}
	if !props.empty() {
		if len(props.ContentType) > 0 {
			count(span.FromString("ct"), props.ContentType)
		}
		if len(props.ContentEncoding) > 0 {
			count(span.FromString("ce"), props.ContentEncoding)
		}
		for i := range props.keys {
			count(props.keys[i], props.values[i])
		}
	}
	if required > span.Capacity(dst) {
		return required, result.ErrInsufficientSpanSize
	}

	out := hubTopic(dst[:0:cap(dst)], deviceID, moduleID)
	out = append(out, "/messages/events/"...)
	pairs = 0
	write := func(k, v span.Span) {
		if pairs > 0 {
			out = append(out, '&')
		}
		out = append(out, k...)
		out = append(out, '=')
		n, _ := span.URLEncode(out[len(out):len(out):cap(out)], v)
		out = out[:int32(len(out))+n]
		pairs++
	}
	if !props.empty() {
		if len(props.ContentType) > 0 {
			write(span.FromString("ct"), props.ContentType)
		}
		if len(props.ContentEncoding) > 0 {
			write(span.FromString("ce"), props.ContentEncoding)
		}
		for i := range props.keys {
			write(props.keys[i], props.values[i])
		}
	}
	return required, nil
}

// C2DSubscribeTopicFilter renders the cloud-to-device topic filter,
// `devices/<id>/messages/devicebound/#`.
func C2DSubscribeTopicFilter(dst span.Span, deviceID span.Span) (int32, error) {
	if len(deviceID) == 0 {
		return 0, result.ErrInvalidArg
	}
	required := int32(len("devices/") + len(deviceID) + len("/messages/devicebound/#"))
	if required > span.Capacity(dst) {
		return required, result.ErrInsufficientSpanSize
	}
	out := hubTopic(dst[:0:cap(dst)], deviceID, nil)
	out = append(out, "/messages/devicebound/#"...)
	return required, nil
}
