package transport

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"time"
)

// ErrAuth is returned when a handshake's signature is missing, expired, or
// does not verify.
var ErrAuth = errors.New("transport: handshake auth failed")

// signatureWindow bounds how far a handshake's ts may drift from now.
const signatureWindow = 5 * time.Minute

// verifyHandshake checks the ts/sig query parameters (or their X-Api-Ts /
// X-Api-Sign aliases) against secret. When secret is empty, every handshake
// is accepted. now is injected for testability.
func verifyHandshake(r *http.Request, secret string, now time.Time) error {
	if secret == "" {
		return nil
	}
	q := r.URL.Query()

	ts := q.Get("ts")
	if ts == "" {
		ts = q.Get("X-Api-Ts")
	}
	sig := q.Get("sig")
	if sig == "" {
		sig = q.Get("X-Api-Sign")
	}
	if ts == "" || sig == "" {
		return ErrAuth
	}

	tsInt, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrAuth
	}
	delta := now.Unix() - tsInt
	if delta < 0 {
		delta = -delta
	}
	if time.Duration(delta)*time.Second > signatureWindow {
		return ErrAuth
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return ErrAuth
	}
	return nil
}
