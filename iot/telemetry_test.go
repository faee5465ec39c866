package iot

import (
	"errors"
	"testing"

	"github.com/amenzhinsky/azcore/result"
	"github.com/amenzhinsky/azcore/span"
)

func TestHubTelemetryPublishTopic(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 256)
	n, err := HubTelemetryPublishTopic(buf, span.FromString("dev"), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if g := string(buf[:n]); g != "devices/dev/messages/events/" {
		t.Errorf("topic = %q, want %q", g, "devices/dev/messages/events/")
	}
}

func TestHubTelemetryPublishTopicModule(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 256)
	n, err := HubTelemetryPublishTopic(buf, span.FromString("dev"), span.FromString("mod"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if g := string(buf[:n]); g != "devices/dev/modules/mod/messages/events/" {
		t.Errorf("topic = %q", g)
	}
}

func TestHubTelemetryPublishTopicProperties(t *testing.T) {
	t.Parallel()

	props := &MessageProperties{
		ContentType:     span.FromString("application/json"),
		ContentEncoding: span.FromString("utf-8"),
	}
	props.Add(span.FromString("key"), span.FromString("value one"))

	buf := make([]byte, 256)
	n, err := HubTelemetryPublishTopic(buf, span.FromString("dev"), nil, props)
	if err != nil {
		t.Fatal(err)
	}
	// Encoding hints come first, user properties keep insertion order.
	w := "devices/dev/messages/events/ct=application%2Fjson&ce=utf-8&key=value%20one"
	if g := string(buf[:n]); g != w {
		t.Errorf("topic = %q, want %q", g, w)
	}
}

func TestHubTelemetryPublishTopicOverflow(t *testing.T) {
	t.Parallel()

	_, err := HubTelemetryPublishTopic(make([]byte, 8), span.FromString("dev"), nil, nil)
	if !errors.Is(err, result.ErrInsufficientSpanSize) {
		t.Errorf("HubTelemetryPublishTopic = %v, want ErrInsufficientSpanSize", err)
	}
}

func TestC2DSubscribeTopicFilter(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 256)
	n, err := C2DSubscribeTopicFilter(buf, span.FromString("my_device"))
	if err != nil {
		t.Fatal(err)
	}
	if g := string(buf[:n]); g != "devices/my_device/messages/devicebound/#" {
		t.Errorf("filter = %q, want %q", g, "devices/my_device/messages/devicebound/#")
	}
}

func TestTelemetryTopicRoundTrip(t *testing.T) {
	t.Parallel()

	values := &TopicValues{
		ModelID:  span.FromString("thermostat"),
		SenderID: span.FromString("dev1"),
	}
	buf := make([]byte, 128)
	n, err := TelemetryPublishTopic(buf, values)
	if err != nil {
		t.Fatal(err)
	}
	if g := string(buf[:n]); g != "services/thermostat/dev1/telemetry" {
		t.Errorf("topic = %q", g)
	}

	var parsed TopicValues
	if err = ParseTelemetryTopic(buf[:n], &parsed); err != nil {
		t.Fatal(err)
	}
	if string(parsed.ModelID) != "thermostat" || string(parsed.SenderID) != "dev1" {
		t.Errorf("parsed = %q/%q", parsed.ModelID, parsed.SenderID)
	}
}

func TestTelemetrySubscribeTopicGroup(t *testing.T) {
	t.Parallel()

	values := &TopicValues{
		ServiceID: span.FromString("svc"),
		SenderID:  span.FromString("dev1"),
	}
	buf := make([]byte, 128)
	n, err := TelemetrySubscribeTopic(buf, values, span.FromString("g1"))
	if err != nil {
		t.Fatal(err)
	}
	if g := string(buf[:n]); g != "$share/g1/services/svc/dev1/telemetry" {
		t.Errorf("topic = %q", g)
	}
}
