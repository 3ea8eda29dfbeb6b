package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"time"
)

// Header names carried by signed metadata requests.
const (
	HeaderTimestamp = "X-Winzzers-Timestamp"
	HeaderSignature = "X-Winzzers-Signature"
)

// DefaultMaxSkew bounds how far a request timestamp may drift from now.
const DefaultMaxSkew = 5 * time.Minute

var (
	ErrMissingSignature = errors.New("crypto: missing request signature")
	ErrStaleSignature   = errors.New("crypto: request timestamp outside allowed skew")
	ErrBadSignature     = errors.New("crypto: request signature mismatch")
)

// RequestSigner signs and verifies HTTP requests with a shared secret.
// The signature is base64(HMAC-SHA256(secret, timestamp+method+path+body)).
type RequestSigner struct {
	secret  []byte
	maxSkew time.Duration
	now     func() time.Time
}

// NewRequestSigner returns a signer for secret. A zero maxSkew uses
// DefaultMaxSkew.
func NewRequestSigner(secret string, maxSkew time.Duration) *RequestSigner {
	if maxSkew <= 0 {
		maxSkew = DefaultMaxSkew
	}
	return &RequestSigner{secret: []byte(secret), maxSkew: maxSkew, now: time.Now}
}

// Headers returns the headers to attach to a request signed now.
func (s *RequestSigner) Headers(method, path string, body []byte) map[string]string {
	return s.HeadersAt(method, path, body, s.now().Unix())
}

// HeadersAt is Headers with a caller-supplied unix timestamp.
func (s *RequestSigner) HeadersAt(method, path string, body []byte, unixTS int64) map[string]string {
	ts := strconv.FormatInt(unixTS, 10)
	return map[string]string{
		HeaderTimestamp: ts,
		HeaderSignature: s.sign(ts, method, path, body),
	}
}

// Verify checks a timestamp and signature pair for the given request parts.
func (s *RequestSigner) Verify(method, path string, body []byte, timestamp, signature string) error {
	if timestamp == "" || signature == "" {
		return ErrMissingSignature
	}
	unixTS, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrStaleSignature
	}
	skew := s.now().Sub(time.Unix(unixTS, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > s.maxSkew {
		return ErrStaleSignature
	}

	want := s.sign(timestamp, method, path, body)
	if !hmac.Equal([]byte(want), []byte(signature)) {
		return ErrBadSignature
	}
	return nil
}

func (s *RequestSigner) sign(ts, method, path string, body []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(ts))
	mac.Write([]byte(method))
	mac.Write([]byte(path))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// String redacts the secret for logging.
func (s *RequestSigner) String() string {
	return "RequestSigner{secret=****}"
}
