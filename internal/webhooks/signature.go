package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries "t=<unix seconds>,v1=<hex HMAC-SHA256>" where the
// MAC covers "<unix seconds>.<body>".
const SignatureHeader = "X-Evdarp-Signature"

var (
	ErrSignature = errors.New("webhooks: bad signature")
	ErrStale     = errors.New("webhooks: stale signature")
)

func mac(secret string, ts int64, body []byte) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(strconv.FormatInt(ts, 10)))
	h.Write([]byte{'.'})
	h.Write(body)
	return h.Sum(nil)
}

// Sign returns the SignatureHeader value for body sent at ts.
func Sign(secret string, ts time.Time, body []byte) string {
	unix := ts.Unix()
	return "t=" + strconv.FormatInt(unix, 10) + ",v1=" + hex.EncodeToString(mac(secret, unix, body))
}

// Verify checks header against body. Signatures older than tolerance at now
// are rejected; a zero tolerance disables the check.
func Verify(secret, header string, body []byte, now time.Time, tolerance time.Duration) error {
	var ts int64
	var sig []byte
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return ErrSignature
		}
		var err error
		switch k {
		case "t":
			ts, err = strconv.ParseInt(v, 10, 64)
		case "v1":
			sig, err = hex.DecodeString(v)
		}
		if err != nil {
			return ErrSignature
		}
	}
	if ts == 0 || sig == nil || !hmac.Equal(sig, mac(secret, ts, body)) {
		return ErrSignature
	}
	if tolerance > 0 && now.Sub(time.Unix(ts, 0)) > tolerance {
		return ErrStale
	}
	return nil
}
