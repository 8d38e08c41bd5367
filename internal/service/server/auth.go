package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/drivehit/gallery-sync/internal/domain"
)

// Signature headers
const (
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
	HeaderUserEmail = "X-User-Email"
)

// Canonical builds the string covered by the request signature. Query
// parameters are canonicalized by sorted key so equivalent URLs sign
// identically.
func Canonical(method, path, sortedQuery string, body []byte, timestamp string) string {
	return strings.Join([]string{method, path, sortedQuery, string(body), timestamp}, "|")
}

// Signature computes the base64 HMAC-SHA256 of a canonical string
func Signature(canonical, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(canonical))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyRequest checks the signature headers of a request. The timestamp
// must be within the freshness window to bound replay; the signature is
// compared in constant time.
func VerifyRequest(r *http.Request, body []byte, secret string, freshness time.Duration, now time.Time) error {
	sig := r.Header.Get(HeaderSignature)
	ts := r.Header.Get(HeaderTimestamp)
	if sig == "" || ts == "" {
		return domain.ErrMissingSignature
	}

	millis, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return domain.ErrMissingSignature
	}
	age := now.Sub(time.UnixMilli(millis))
	if age > freshness || age < -freshness {
		return domain.ErrExpiredRequest
	}

	expected := Signature(Canonical(r.Method, r.URL.Path, r.URL.Query().Encode(), body, ts), secret)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return domain.ErrInvalidSignature
	}
	return nil
}
