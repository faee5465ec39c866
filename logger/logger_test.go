package logger

import "testing"

func TestFiltering(t *testing.T) {
	var got []Classification
	SetListener(func(c Classification, message []byte) {
		got = append(got, c)
	})
	SetClassifications(HTTPRequest | IoTRetry)
	t.Cleanup(func() {
		SetListener(nil)
		SetClassifications(All)
	})

	Write(HTTPRequest, []byte("req"))
	Write(HTTPResponse, []byte("rsp"))
	Write(IoTRetry, nil)

	if len(got) != 2 || got[0] != HTTPRequest || got[1] != IoTRetry {
		t.Errorf("delivered classifications = %v, want [HTTPRequest IoTRetry]", got)
	}

	if Should(HTTPResponse) {
		t.Error("Should(HTTPResponse) = true with the classification filtered out")
	}
	if !Should(HTTPRequest) {
		t.Error("Should(HTTPRequest) = false with the classification enabled")
	}
}

func TestNilListener(t *testing.T) {
	SetListener(nil)
	if Should(HTTPRequest) {
		t.Error("Should() = true with no listener registered")
	}
	Write(HTTPRequest, []byte("dropped")) // must not panic
}
