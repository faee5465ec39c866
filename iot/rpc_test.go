package iot

import (
	"errors"
	"testing"

	"github.com/amenzhinsky/azcore/result"
	"github.com/amenzhinsky/azcore/span"
)

func TestRPCRequestTopicRoundTrip(t *testing.T) {
	t.Parallel()

	values := testValues()
	buf := make([]byte, 128)
	n, err := RPCRequestPublishTopic(buf, values)
	if err != nil {
		t.Fatal(err)
	}
	if g := string(buf[:n]); g != "services/svc/exec/command/unlock/request" {
		t.Errorf("RPCRequestPublishTopic = %q", g)
	}

	var parsed TopicValues
	if err = ParseRPCRequestTopic(buf[:n], &parsed); err != nil {
		t.Fatal(err)
	}
	if string(parsed.ServiceID) != "svc" || string(parsed.ExecutorID) != "exec" ||
		string(parsed.CommandName) != "unlock" {
		t.Errorf("ParseRPCRequestTopic = %q/%q/%q",
			parsed.ServiceID, parsed.ExecutorID, parsed.CommandName)
	}
}

func TestRPCResponseTopicRoundTrip(t *testing.T) {
	t.Parallel()

	values := testValues()
	buf := make([]byte, 128)
	n, err := RPCResponsePublishTopic(buf, values)
	if err != nil {
		t.Fatal(err)
	}
	if g := string(buf[:n]); g != "clients/inv/services/svc/exec/command/unlock/response" {
		t.Errorf("RPCResponsePublishTopic = %q", g)
	}

	var parsed TopicValues
	if err = ParseRPCResponseTopic(buf[:n], &parsed); err != nil {
		t.Fatal(err)
	}
	if string(parsed.InvokerClientID) != "inv" || string(parsed.ServiceID) != "svc" ||
		string(parsed.ExecutorID) != "exec" || string(parsed.CommandName) != "unlock" {
		t.Errorf("ParseRPCResponseTopic = %+v", parsed)
	}
}

func TestRPCServerSubscribeTopic(t *testing.T) {
	t.Parallel()

	// An executor subscribing for any instance within a service group.
	values := testValues()
	values.ExecutorID = nil
	buf := make([]byte, 128)
	n, err := RPCServerSubscribeTopic(buf, values, span.FromString("workers"))
	if err != nil {
		t.Fatal(err)
	}
	if g := string(buf[:n]); g != "$share/workers/services/svc/_any_/command/unlock/request" {
		t.Errorf("RPCServerSubscribeTopic = %q", g)
	}
}

func TestRPCClientSubscribeTopic(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 128)
	n, err := RPCClientSubscribeTopic(buf, testValues())
	if err != nil {
		t.Fatal(err)
	}
	if g := string(buf[:n]); g != "clients/inv/services/svc/exec/command/unlock/response" {
		t.Errorf("RPCClientSubscribeTopic = %q", g)
	}
}

func TestParseRPCRequestTopicNoMatch(t *testing.T) {
	t.Parallel()

	var parsed TopicValues
	for _, topic := range []string{
		"clients/inv/services/svc/exec/command/unlock/response",
		"services/svc/exec/command/unlock",
		"services/svc/exec/telemetry",
	} {
		if err := ParseRPCRequestTopic(span.FromString(topic), &parsed); !errors.Is(err, result.ErrIoTTopicNoMatch) {
			t.Errorf("ParseRPCRequestTopic(%q) = %v, want ErrIoTTopicNoMatch", topic, err)
		}
	}
}
