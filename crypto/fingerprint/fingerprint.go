// Package fingerprint hashes a byte sequence and hex-encodes the digest.
// It started out as a general-purpose hash/prefix/encoding helper; the
// only shape this repository ever needs is "hash with a named algorithm,
// hex-encode the result" (used by the fingerprint package to build the
// MetaFingerprint tier digests), so that is the only shape kept.
package fingerprint

import (
	"crypto"
	"encoding/hex"
	"fmt"
	"strings"
)

// Fingerprint hashes input with hash and returns the lowercase hex
// encoding of the digest.
func Fingerprint(input []byte, hash crypto.Hash) string {
	h := hash.New()
	if _, err := h.Write(input); err != nil {
		panic(fmt.Sprintf("BUG: hash must not return error: %s", err))
	}
	return strings.ToLower(hex.EncodeToString(h.Sum(nil)))
}
