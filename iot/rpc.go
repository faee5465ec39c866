package iot

import (
	"github.com/google/uuid"

	"github.com/amenzhinsky/azcore/span"
)

// Default RPC topic formats.
const (
	// RPCServerRequestTopicFormat is subscribed by command executors.
	RPCServerRequestTopicFormat = "services/{serviceId}/{executorId}/command/{name}/request"

	// RPCClientResponseTopicFormat is subscribed by command invokers.
	RPCClientResponseTopicFormat = "clients/{invokerClientId}/services/{serviceId}/{executorId}/command/{name}/response"
)

// RPCStatus is the status code carried on RPC responses, following
// HTTP semantics.
type RPCStatus int32

// Failed reports whether the status is outside the 2xx success range.
func (s RPCStatus) Failed() bool {
	return s < 200 || s >= 300
}

// NewCorrelationID returns a fresh random correlation id binding an
// RPC request to its response.
func NewCorrelationID() span.Span {
	u := uuid.New()
	return u[:]
}

// RPCServerSubscribeTopic renders the request topic filter a command
// executor subscribes to. An empty ExecutorID subscribes as the
// AnyExecutor wildcard; group enables a shared subscription.
func RPCServerSubscribeTopic(dst span.Span, values *TopicValues, group span.Span) (int32, error) {
	return BuildTopic(dst, RPCServerRequestTopicFormat, values, group)
}

// RPCClientSubscribeTopic renders the response topic filter a command
// invoker subscribes to.
func RPCClientSubscribeTopic(dst span.Span, values *TopicValues) (int32, error) {
	return BuildTopic(dst, RPCClientResponseTopicFormat, values, nil)
}

// RPCRequestPublishTopic renders the topic a request is published to;
// it is the executor's subscribe topic with concrete values.
func RPCRequestPublishTopic(dst span.Span, values *TopicValues) (int32, error) {
	return BuildTopic(dst, RPCServerRequestTopicFormat, values, nil)
}

// RPCResponsePublishTopic renders the topic an executor publishes the
// response to.
func RPCResponsePublishTopic(dst span.Span, values *TopicValues) (int32, error) {
	return BuildTopic(dst, RPCClientResponseTopicFormat, values, nil)
}

// ParseRPCRequestTopic binds a received request topic to its values.
func ParseRPCRequestTopic(received span.Span, out *TopicValues) error {
	return ParseTopic(received, RPCServerRequestTopicFormat, out)
}

// ParseRPCResponseTopic binds a received response topic to its values.
func ParseRPCResponseTopic(received span.Span, out *TopicValues) error {
	return ParseTopic(received, RPCClientResponseTopicFormat, out)
}
