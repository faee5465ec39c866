package iot

import (
	"errors"
	"testing"

	"github.com/amenzhinsky/azcore/result"
	"github.com/amenzhinsky/azcore/span"
)

func TestProvisioningSubscribeTopicFilter(t *testing.T) {
	t.Parallel()

	if ProvisioningSubscribeTopicFilter != "$dps/registrations/res/#" {
		t.Errorf("filter = %q", ProvisioningSubscribeTopicFilter)
	}
}

func TestProvisioningRegisterTopic(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 128)
	n, err := ProvisioningRegisterTopic(buf, 1)
	if err != nil {
		t.Fatal(err)
	}
	if g := string(buf[:n]); g != "$dps/registrations/PUT/iotdps-register/?$rid=1" {
		t.Errorf("topic = %q", g)
	}
}

func TestProvisioningQueryStatusTopic(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 128)
	n, err := ProvisioningQueryStatusTopic(buf, 2, span.FromString("op123"))
	if err != nil {
		t.Fatal(err)
	}
	w := "$dps/registrations/GET/iotdps-get-operationstatus/?$rid=2&operationId=op123"
	if g := string(buf[:n]); g != w {
		t.Errorf("topic = %q, want %q", g, w)
	}
}

func TestParseProvisioningResponseTopic(t *testing.T) {
	t.Parallel()

	var resp ProvisioningResponse
	err := ParseProvisioningResponseTopic(
		span.FromString("$dps/registrations/res/202/?$rid=1&retry-after=3"), &resp,
	)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != 202 || resp.RequestID != 1 || resp.RetryAfterS != 3 {
		t.Errorf("parsed = %+v", resp)
	}

	err = ParseProvisioningResponseTopic(
		span.FromString("$dps/registrations/res/200/?$rid=7"), &resp,
	)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != 200 || resp.RequestID != 7 || resp.RetryAfterS != 0 {
		t.Errorf("parsed = %+v", resp)
	}
}

func TestParseProvisioningResponseTopicNoMatch(t *testing.T) {
	t.Parallel()

	var resp ProvisioningResponse
	for _, topic := range []string{
		"$iothub/twin/res/200/?$rid=1",
		"$dps/registrations/res/abc/?$rid=1",
		"$dps/registrations/res/200/?$rid=1&unexpected=1",
	} {
		if err := ParseProvisioningResponseTopic(span.FromString(topic), &resp); !errors.Is(err, result.ErrIoTTopicNoMatch) {
			t.Errorf("ParseProvisioningResponseTopic(%q) = %v, want ErrIoTTopicNoMatch", topic, err)
		}
	}
}

func TestRIDGenerator(t *testing.T) {
	t.Parallel()

	var g RIDGenerator
	if g.Next() != 1 || g.Next() != 2 {
		t.Error("rids are not sequential from 1")
	}
}

func TestProvisioningSASScope(t *testing.T) {
	t.Parallel()

	if g := ProvisioningSASScope("0ne000AB", "dev1"); g != "0ne000AB/registrations/dev1" {
		t.Errorf("scope = %q", g)
	}
}

func TestRPCStatusFailed(t *testing.T) {
	t.Parallel()

	for s, w := range map[RPCStatus]bool{
		200: false, 204: false, 199: true, 300: true, 500: true,
	} {
		if g := s.Failed(); g != w {
			t.Errorf("RPCStatus(%d).Failed() = %v, want %v", s, g, w)
		}
	}
}

func TestNewCorrelationID(t *testing.T) {
	t.Parallel()

	a, b := NewCorrelationID(), NewCorrelationID()
	if len(a) != 16 || span.IsContentEqual(a, b) {
		t.Error("correlation ids must be 16 unique random bytes")
	}
}
