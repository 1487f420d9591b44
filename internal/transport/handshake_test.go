package transport

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func signTS(secret, ts string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	return hex.EncodeToString(mac.Sum(nil))
}

func reqWithQuery(q url.Values) *http.Request {
	return &http.Request{URL: &url.URL{RawQuery: q.Encode()}}
}

func TestVerifyHandshakeNoSecretAlwaysAccepts(t *testing.T) {
	r := reqWithQuery(url.Values{})
	require.NoError(t, verifyHandshake(r, "", time.Now()))
}

func TestVerifyHandshakeValidSignature(t *testing.T) {
	now := time.Unix(1700000000, 0)
	ts := strconv.FormatInt(now.Unix(), 10)
	q := url.Values{"ts": {ts}, "sig": {signTS("s", ts)}}
	require.NoError(t, verifyHandshake(reqWithQuery(q), "s", now))
}

func TestVerifyHandshakeAliasParams(t *testing.T) {
	now := time.Unix(1700000000, 0)
	ts := strconv.FormatInt(now.Unix(), 10)
	q := url.Values{"X-Api-Ts": {ts}, "X-Api-Sign": {signTS("s", ts)}}
	require.NoError(t, verifyHandshake(reqWithQuery(q), "s", now))
}

func TestVerifyHandshakeMissingParams(t *testing.T) {
	require.ErrorIs(t, verifyHandshake(reqWithQuery(url.Values{}), "s", time.Now()), ErrAuth)
}

func TestVerifyHandshakeBadSignature(t *testing.T) {
	now := time.Unix(1700000000, 0)
	ts := strconv.FormatInt(now.Unix(), 10)
	q := url.Values{"ts": {ts}, "sig": {"deadbeef"}}
	require.ErrorIs(t, verifyHandshake(reqWithQuery(q), "s", now), ErrAuth)
}

func TestVerifyHandshakeReplayWindow(t *testing.T) {
	now := time.Unix(1700000000, 0)
	stale := now.Add(-400 * time.Second)
	ts := strconv.FormatInt(stale.Unix(), 10)
	q := url.Values{"ts": {ts}, "sig": {signTS("s", ts)}}
	require.ErrorIs(t, verifyHandshake(reqWithQuery(q), "s", now), ErrAuth)
}

func TestVerifyHandshakeWithinWindowBoundary(t *testing.T) {
	now := time.Unix(1700000000, 0)
	edge := now.Add(-300 * time.Second)
	ts := strconv.FormatInt(edge.Unix(), 10)
	q := url.Values{"ts": {ts}, "sig": {signTS("s", ts)}}
	require.NoError(t, verifyHandshake(reqWithQuery(q), "s", now))
}
