package wompi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Sign builds the signature header value "<timestamp>.<hex hmac-sha256>" over
// "<event>.<timestamp>".
func Sign(event string, timestamp int64, secret string) string {
	ts := strconv.FormatInt(timestamp, 10)
	return ts + "." + hex.EncodeToString(mac(event, ts, secret))
}

// VerifySignature reports whether signature was produced by Sign with the same inputs.
// The timestamp inside the header must match the timestamp header verbatim.
func VerifySignature(signature, event string, timestamp int64, secret string) bool {
	tsPart, sigPart, ok := strings.Cut(signature, ".")
	if !ok || strings.Contains(sigPart, ".") {
		return false
	}
	ts := strconv.FormatInt(timestamp, 10)
	if tsPart != ts {
		return false
	}
	got, err := hex.DecodeString(sigPart)
	if err != nil {
		return false
	}
	return hmac.Equal(got, mac(event, ts, secret))
}

func mac(event, ts, secret string) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(event + "." + ts))
	return h.Sum(nil)
}
