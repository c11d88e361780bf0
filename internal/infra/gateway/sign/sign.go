// Package sign implements the per-provider signature schemes: ordered
// concatenation with hash-then-encode (Best2Pay) and canonical JSON with a
// keyed hash (NOWPayments). Pure transforms, no I/O and no business state.
package sign

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// OrderedTag signs the fixed-order concatenation of parts plus the shared
// password. The SHA256 digest is rendered as lowercase hex first and the
// base64 encoding is applied to that hex text, not to the raw digest bytes.
func OrderedTag(parts []string, password string) string {
	payload := strings.Join(parts, "") + password
	sum := sha256.Sum256([]byte(payload))
	hexText := hex.EncodeToString(sum[:])
	return base64.StdEncoding.EncodeToString([]byte(hexText))
}

// HMACSHA512Hex computes the keyed hash over body with the shared secret,
// rendered as lowercase hex.
func HMACSHA512Hex(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// IPNTag canonicalizes a JSON body (recursively sorted keys, compact
// serialization) and computes its HMAC-SHA512 tag.
func IPNTag(secret string, body []byte) (string, error) {
	canonical, err := CanonicalJSON(body)
	if err != nil {
		return "", err
	}
	return HMACSHA512Hex(secret, canonical), nil
}

// Equal compares two tags byte-exact in constant time. Used for base64 tags,
// where case is significant.
func Equal(supplied, expected string) bool {
	return hmac.Equal([]byte(supplied), []byte(expected))
}

// EqualHex compares two hex tags in constant time, case-insensitively,
// matching how providers render digests.
func EqualHex(supplied, expected string) bool {
	return hmac.Equal([]byte(strings.ToLower(supplied)), []byte(strings.ToLower(expected)))
}
