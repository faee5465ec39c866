// Package retry computes back-off delays shared by the HTTP retry
// policy and the MQTT reconnect logic.
package retry

import (
	"github.com/amenzhinsky/azcore/logger"
)

// CalcDelay returns the recommended delay in milliseconds before
// retrying an operation that failed.
//
// The base delay doubles per attempt starting from minMs and is clamped
// to maxMs; jitterMs is added only when it fits under the clamp; the
// time the failed operation already took is subtracted; the result
// never goes below zero.
//
// operationMs, minMs, maxMs and jitterMs must be in [0, MaxInt32-1] and
// attempt in [0, MaxInt16-1].
func CalcDelay(operationMs int32, attempt int16, minMs, maxMs, jitterMs int32) int32 {
	logger.Write(logger.IoTRetry, nil)

	delay := int64(minMs)
	for i := int16(0); i < attempt && delay <= int64(maxMs); i++ {
		delay <<= 1
	}
	if delay > int64(maxMs) {
		delay = int64(maxMs)
	}

	if int64(maxMs)-delay > int64(jitterMs) {
		delay += int64(jitterMs)
	}

	delay -= int64(operationMs)
	if delay < 0 {
		return 0
	}
	return int32(delay)
}
