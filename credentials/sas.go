package credentials

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SharedAccessKey generates shared-access signatures for IoT Hub and
// Device Provisioning scopes.
type SharedAccessKey struct {
	// Key is the base64-encoded signing key.
	Key string

	// KeyName is the optional shared access policy name, appended as skn.
	KeyName string

	// needed for testing
	now time.Time
}

// Sign generates a token for the given scope valid for the duration.
//
// The signature covers the document `<url-enc(scope)>\n<epoch-seconds>`.
func (k *SharedAccessKey) Sign(scope string, duration time.Duration) (string, error) {
	switch {
	case scope == "":
		return "", errors.New("scope is blank")
	case duration == 0:
		return "", errors.New("duration is zero")
	case k.Key == "":
		return "", errors.New("shared access key is blank")
	}

	key, err := base64.StdEncoding.DecodeString(k.Key)
	if err != nil {
		return "", err
	}

	start := k.now
	if start.IsZero() {
		start = time.Now()
	}
	expiry := strconv.FormatInt(start.Add(duration).Unix(), 10)
	resource := url.QueryEscape(scope)

	doc := make([]byte, 0, len(resource)+1+len(expiry))
	doc = append(doc, resource...)
	doc = append(doc, '\n')
	doc = append(doc, expiry...)

	mac := hmac.New(sha256.New, key)
	mac.Write(doc)
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	var token strings.Builder
	token.WriteString("SharedAccessSignature sr=")
	token.WriteString(resource)
	token.WriteString("&sig=")
	token.WriteString(url.QueryEscape(signature))
	token.WriteString("&se=")
	token.WriteString(expiry)
	if k.KeyName != "" {
		token.WriteString("&skn=")
		token.WriteString(url.QueryEscape(k.KeyName))
	}
	return token.String(), nil
}
