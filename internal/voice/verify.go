package voice

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"
)

// Validator checks the X-Twilio-Signature header on inbound webhooks so
// only the real gateway can drive a call.
type Validator struct {
	authToken string
}

// NewValidator creates a validator for the given auth token.
func NewValidator(authToken string) *Validator {
	return &Validator{authToken: authToken}
}

// Valid reports whether signature matches the expected HMAC-SHA1 over the
// full request URL plus the form parameters sorted by key, per the Twilio
// signing scheme.
func (v *Validator) Valid(fullURL string, params url.Values, signature string) bool {
	if signature == "" {
		return false
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	payload := fullURL
	for _, k := range keys {
		for _, val := range params[k] {
			payload += k + val
		}
	}

	mac := hmac.New(sha1.New, []byte(v.authToken))
	mac.Write([]byte(payload))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// RequestURL reconstructs the public URL the gateway signed. Behind a proxy
// the scheme arrives in X-Forwarded-Proto.
func RequestURL(r *http.Request) string {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		if r.TLS != nil {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return scheme + "://" + host + r.URL.RequestURI()
}
