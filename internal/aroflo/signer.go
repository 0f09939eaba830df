package aroflo

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"strings"
	"time"
)

// TimestampLayout is the afdatetimeutc format: UTC, millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Credentials are the pre-encoded values issued by AroFlo site admin.
type Credentials struct {
	OrgEncoded string
	UEncoded   string
	PEncoded   string
	SecretKey  string
	// HostIP participates in signing only when set.
	HostIP string
}

// Validate reports every required field that is blank.
func (c Credentials) Validate() error {
	var missing []string
	if c.OrgEncoded == "" {
		missing = append(missing, "AROFLO_ORG_NAME")
	}
	if c.UEncoded == "" {
		missing = append(missing, "AROFLO_USERNAME")
	}
	if c.PEncoded == "" {
		missing = append(missing, "AROFLO_PASSWORD")
	}
	if c.SecretKey == "" {
		missing = append(missing, "AROFLO_SECRET_KEY")
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}
	return nil
}

// Headers are the per-request authentication headers.
type Headers map[string]string

// Signer computes the HMAC-SHA512 authentication headers for one request.
type Signer struct {
	Credentials Credentials
}

// AuthString returns the Authorization header value.
func (s Signer) AuthString() string {
	return "uencoded=" + quote(s.Credentials.UEncoded) +
		"&pencoded=" + quote(s.Credentials.PEncoded) +
		"&orgEncoded=" + quote(s.Credentials.OrgEncoded)
}

// StringToSign builds the canonical payload. Field order is fixed by the
// remote service:
// method + hostIP (if set) + urlPath (always empty) + accept + auth + timestamp + varString.
func (s Signer) StringToSign(method, varString, accept, timestamp string) string {
	parts := []string{method}
	if s.Credentials.HostIP != "" {
		parts = append(parts, s.Credentials.HostIP)
	}
	parts = append(parts, "", accept, s.AuthString(), timestamp, varString)
	return strings.Join(parts, "+")
}

// Signature returns the lowercase hex HMAC-SHA512 of the canonical payload.
func (s Signer) Signature(method, varString, accept, timestamp string) string {
	mac := hmac.New(sha512.New, []byte(s.Credentials.SecretKey))
	mac.Write([]byte(s.StringToSign(method, varString, accept, timestamp)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Sign returns the headers for a request issued at ts.
func (s Signer) Sign(method, varString, accept string, ts time.Time) Headers {
	timestamp := FormatTimestamp(ts)
	h := Headers{
		"Accept":         accept,
		"Authentication": "HMAC " + s.Signature(method, varString, accept, timestamp),
		"Authorization":  s.AuthString(),
		"afdatetimeutc":  timestamp,
	}
	if s.Credentials.HostIP != "" {
		h["HostIP"] = s.Credentials.HostIP
	}
	return h
}

// FormatTimestamp renders ts in UTC truncated to milliseconds.
func FormatTimestamp(ts time.Time) string {
	return ts.UTC().Truncate(time.Millisecond).Format(TimestampLayout)
}

// quote percent-encodes every byte outside the unreserved set, spaces
// included, so the value matches what the service re-derives.
func quote(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
