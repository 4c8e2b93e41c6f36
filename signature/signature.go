// Package signature implements the gateway's payload checksum.
//
// The digest is MD5 because the gateway's protocol mandates it. Changing the
// hash breaks interoperability, so nothing else in the service should reuse
// this package for its own integrity checks.
package signature

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

const passphraseKey = "passphrase"

// Canonical renders payload as the sorted, form-encoded string the gateway
// hashes. Empty values are dropped. A non-empty passphrase is appended last.
func Canonical(payload map[string]string, passphrase string) string {
	keys := make([]string, 0, len(payload))
	for k, v := range payload {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(encode(payload[k]))
	}

	if passphrase != "" {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(passphraseKey)
		b.WriteByte('=')
		b.WriteString(encode(passphrase))
	}

	return b.String()
}

// Sign returns the lowercase hex MD5 of the canonical form of payload.
func Sign(payload map[string]string, passphrase string) string {
	sum := md5.Sum([]byte(Canonical(payload, passphrase)))
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the signature over payload and compares it with claimed.
// payload must not contain the signature field itself.
func Verify(payload map[string]string, claimed, passphrase string) bool {
	if claimed == "" {
		return false
	}
	expected := Sign(payload, passphrase)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(claimed))) == 1
}

// encode applies form encoding: spaces become '+', everything else outside
// the unreserved set is percent-encoded with uppercase hex.
func encode(v string) string {
	return url.QueryEscape(v)
}
