// Package iot contains the wire codecs translating typed operations
// into MQTT topics and back: the token-replacement engine for RPC and
// telemetry topic formats, the IoT Hub telemetry and cloud-to-device
// topics, and the Device Provisioning registration topics.
package iot

import (
	"strings"

	"github.com/amenzhinsky/azcore/result"
	"github.com/amenzhinsky/azcore/span"
)

// MaxTopicLength is the safe upper bound for generated topics.
const MaxTopicLength = 4096

// AnyExecutor is the wildcard executor id matching any executor.
const AnyExecutor = "_any_"

const serviceGroupPrefix = "$share/"

// Replacement tokens understood by the topic formats. Each must occupy
// a whole topic level.
const (
	tokenServiceID       = "{serviceId}"
	tokenExecutorID      = "{executorId}"
	tokenInvokerClientID = "{invokerClientId}"
	tokenName            = "{name}"
	tokenSenderID        = "{senderId}"
	tokenModelID         = "{modelId}"
)

// TopicValues carries the values substituted for the format tokens.
// An empty ExecutorID builds as the AnyExecutor wildcard; every other
// referenced token must be non-empty.
type TopicValues struct {
	ServiceID       span.Span
	ExecutorID      span.Span
	InvokerClientID span.Span
	CommandName     span.Span
	SenderID        span.Span
	ModelID         span.Span
}

func (v *TopicValues) lookup(token string) (span.Span, error) {
	var val span.Span
	switch token {
	case tokenServiceID:
		val = v.ServiceID
	case tokenExecutorID:
		if len(v.ExecutorID) == 0 {
			return span.FromString(AnyExecutor), nil
		}
		val = v.ExecutorID
	case tokenInvokerClientID:
		val = v.InvokerClientID
	case tokenName:
		val = v.CommandName
	case tokenSenderID:
		val = v.SenderID
	case tokenModelID:
		val = v.ModelID
	default:
		return nil, result.ErrInvalidArg
	}
	if len(val) == 0 {
		return nil, result.ErrInvalidArg
	}
	return val, nil
}

func (v *TopicValues) bind(token string, val span.Span) error {
	switch token {
	case tokenServiceID:
		v.ServiceID = val
	case tokenExecutorID:
		v.ExecutorID = val
	case tokenInvokerClientID:
		v.InvokerClientID = val
	case tokenName:
		v.CommandName = val
	case tokenSenderID:
		v.SenderID = val
	case tokenModelID:
		v.ModelID = val
	default:
		return result.ErrInvalidArg
	}
	return nil
}

// validTopicFormat checks that every token is known and wholly
// surrounded by '/' or a string boundary, with no stray braces.
func validTopicFormat(format string) error {
	for i := 0; i < len(format); i++ {
		switch format[i] {
		case '}':
			return result.ErrInvalidArg
		case '{':
			j := strings.IndexByte(format[i:], '}')
			if j < 0 {
				return result.ErrInvalidArg
			}
			end := i + j + 1
			if err := (&TopicValues{}).bind(format[i:end], nil); err != nil {
				return err
			}
			if i > 0 && format[i-1] != '/' {
				return result.ErrInvalidArg
			}
			if end < len(format) && format[end] != '/' {
				return result.ErrInvalidArg
			}
			i = end - 1
		}
	}
	return nil
}

// BuildTopic renders format into dst substituting the tokens with the
// caller's values, prefixed with `$share/<group>/` when group is not
// empty. It returns the required length even when dst is too small, so
// callers can size buffers; overflow yields ErrInsufficientSpanSize
// and no partial write.
func BuildTopic(dst span.Span, format string, values *TopicValues, group span.Span) (int32, error) {
	if err := validTopicFormat(format); err != nil {
		return 0, err
	}

	required := int32(0)
	if len(group) > 0 {
		required += int32(len(serviceGroupPrefix)+len(group)) + 1
	}
	for i := 0; i < len(format); i++ {
		if format[i] != '{' {
			required++
			continue
		}
		j := strings.IndexByte(format[i:], '}')
		val, err := values.lookup(format[i : i+j+1])
		if err != nil {
			return 0, err
		}
		required += span.Size(val)
		i += j
	}
	if required > MaxTopicLength {
		return required, result.ErrInvalidArg
	}
	if required > span.Capacity(dst) {
		return required, result.ErrInsufficientSpanSize
	}

	out := dst[:0:cap(dst)]
	if len(group) > 0 {
		out = append(out, serviceGroupPrefix...)
		out = append(out, group...)
		out = append(out, '/')
	}
	for i := 0; i < len(format); i++ {
		if format[i] != '{' {
			out = append(out, format[i])
			continue
		}
		j := strings.IndexByte(format[i:], '}')
		val, _ := values.lookup(format[i : i+j+1])
		out = append(out, val...)
		i += j
	}
	return required, nil
}

// ParseTopic walks received and format in lockstep, binding each token
// to the matching level of the received topic. A mismatch yields
// ErrIoTTopicNoMatch without writing any output.
func ParseTopic(received span.Span, format string, out *TopicValues) error {
	if err := validTopicFormat(format); err != nil {
		return err
	}

	var bound TopicValues
	ri := int32(0)
	for fi := 0; fi < len(format); fi++ {
		if format[fi] != '{' {
			if ri >= span.Size(received) || received[ri] != format[fi] {
				return result.ErrIoTTopicNoMatch
			}
			ri++
			continue
		}

		j := strings.IndexByte(format[fi:], '}')
		end := ri
		for end < span.Size(received) && received[end] != '/' {
			end++
		}
		if end == ri {
			return result.ErrIoTTopicNoMatch
		}
		if err := bound.bind(format[fi:fi+j+1], span.Slice(received, ri, end)); err != nil {
			return err
		}
		ri = end
		fi += j
	}
	if ri != span.Size(received) {
		return result.ErrIoTTopicNoMatch
	}

	*out = bound
	return nil
}
