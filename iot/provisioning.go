package iot

import (
	"sync/atomic"

	"github.com/amenzhinsky/azcore/result"
	"github.com/amenzhinsky/azcore/span"
)

// Device Provisioning Service topics.
const (
	// ProvisioningSubscribeTopicFilter receives registration responses.
	ProvisioningSubscribeTopicFilter = "$dps/registrations/res/#"

	provisioningRegisterPrefix    = "$dps/registrations/PUT/iotdps-register/?$rid="
	provisioningQueryPrefix       = "$dps/registrations/GET/iotdps-get-operationstatus/?$rid="
	provisioningResponsePrefix    = "$dps/registrations/res/"
	provisioningOperationIDSuffix = "&operationId="
)

// RIDGenerator produces unique request ids for provisioning requests
// by incrementing numbers starting from 1.
type RIDGenerator uint32

// Next returns the next request id.
func (r *RIDGenerator) Next() uint32 {
	return atomic.AddUint32((*uint32)(r), 1)
}

// ProvisioningRegisterTopic renders the register publish topic,
// `$dps/registrations/PUT/iotdps-register/?$rid=<rid>`.
func ProvisioningRegisterTopic(dst span.Span, rid uint32) (int32, error) {
	required := int32(len(provisioningRegisterPrefix)) + span.U32DigitCount(rid)
	if required > span.Capacity(dst) {
		return required, result.ErrInsufficientSpanSize
	}
	out := append(dst[:0:cap(dst)], provisioningRegisterPrefix...)
	out, _ = span.AppendU32(out, rid)
	return required, nil
}

// ProvisioningQueryStatusTopic renders the operation status poll topic,
// `$dps/registrations/GET/iotdps-get-operationstatus/?$rid=<rid>&operationId=<id>`.
func ProvisioningQueryStatusTopic(dst span.Span, rid uint32, operationID span.Span) (int32, error) {
	if len(operationID) == 0 {
		return 0, result.ErrInvalidArg
	}
	required := int32(len(provisioningQueryPrefix)) + span.U32DigitCount(rid) +
		int32(len(provisioningOperationIDSuffix)) + span.Size(operationID)
	if required > span.Capacity(dst) {
		return required, result.ErrInsufficientSpanSize
	}
	out := append(dst[:0:cap(dst)], provisioningQueryPrefix...)
	out, _ = span.AppendU32(out, rid)
	out = append(out, provisioningOperationIDSuffix...)
	out = append(out, operationID...)
	return required, nil
}

// ProvisioningResponse is a parsed registration response topic.
type ProvisioningResponse struct {
	Status      int32
	RequestID   uint32
	RetryAfterS int32
}

// ParseProvisioningResponseTopic parses
// `$dps/registrations/res/<status>/?$rid=<rid>[&retry-after=<s>]`.
func ParseProvisioningResponseTopic(received span.Span, out *ProvisioningResponse) error {
	prefix := span.FromString(provisioningResponsePrefix)
	if span.Size(received) <= span.Size(prefix) ||
		!span.IsContentEqual(received[:len(prefix)], prefix) {
		return result.ErrIoTTopicNoMatch
	}

	var resp ProvisioningResponse
	i := span.Size(prefix)
	i, err := parseU32(received, i, func(v uint32) { resp.Status = int32(v) })
	if err != nil {
		return err
	}

	rid := span.FromString("/?$rid=")
	if span.Size(received)-i < span.Size(rid) ||
		!span.IsContentEqual(received[i:i+span.Size(rid)], rid) {
		return result.ErrIoTTopicNoMatch
	}
	i += span.Size(rid)
	i, err = parseU32(received, i, func(v uint32) { resp.RequestID = v })
	if err != nil {
		return err
	}

	if i < span.Size(received) {
		retry := span.FromString("&retry-after=")
		if span.Size(received)-i < span.Size(retry) ||
			!span.IsContentEqual(received[i:i+span.Size(retry)], retry) {
			return result.ErrIoTTopicNoMatch
		}
		i += span.Size(retry)
		i, err = parseU32(received, i, func(v uint32) { resp.RetryAfterS = int32(v) })
		if err != nil {
			return err
		}
		if i != span.Size(received) {
			return result.ErrIoTTopicNoMatch
		}
	}

	*out = resp
	return nil
}

func parseU32(s span.Span, i int32, set func(uint32)) (int32, error) {
	start := i
	var v uint32
	for i < span.Size(s) && s[i] >= '0' && s[i] <= '9' {
		v = v*10 + uint32(s[i]-'0')
		i++
	}
	if i == start {
		return i, result.ErrIoTTopicNoMatch
	}
	set(v)
	return i, nil
}

// ProvisioningSASScope is the signing scope for a DPS registration,
// `<idScope>/registrations/<registrationID>`, passed to
// credentials.SharedAccessKey.Sign to produce the MQTT password.
func ProvisioningSASScope(idScope, registrationID string) string {
	return idScope + "/registrations/" + registrationID
}
