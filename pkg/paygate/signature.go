package paygate

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Sign computes the HMAC-SHA256 hex digest over the canonical form of params.
// Canonical form sorts keys and joins "key=value" pairs with "&". The signature
// field itself is never part of the signed payload.
func Sign(secret string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == signatureField {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	payload := strings.Join(pairs, "&")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether the provided signature matches the params.
// Comparison is constant time.
func VerifySignature(secret string, params map[string]string, signature string) bool {
	if signature == "" {
		return false
	}
	expected := Sign(secret, params)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}
