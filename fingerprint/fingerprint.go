// Package fingerprint implements MetaFingerprint: four tiers of host and
// process identifiers, each reduced to a SHA-512 hex digest, plus a
// composed string sent to Tang as an opaque "id=" query parameter. The
// tier boundaries and raw-data sources are grounded on the metaInfo
// collectors of the original implementation; the hashing itself reuses
// this repository's own crypto/fingerprint package, the same way the
// teacher's ssh/x509 commands fingerprint keys.
package fingerprint

import (
	"crypto"
	_ "crypto/sha512"
	"strings"

	cryptofp "github.com/nearedge/latchy/crypto/fingerprint"
)

// tierSeparator joins the raw contributions within a single tier.
const tierSeparator = "::"

// composedSeparator joins the four tier digests into the composed string.
const composedSeparator = "~~"

// Tiers holds the four SHA-512 hex digests MetaFingerprint produces, plus
// the raw (pre-hash) strings for debug output.
type Tiers struct {
	PersistentRaw     string
	SemiPersistentRaw string
	SemiVolatileRaw   string
	VolatileRaw       string

	Persistent     string
	SemiPersistent string
	SemiVolatile   string
	Volatile       string
}

// Collect gathers all four tiers from the running host and process. It
// never fails: unreadable sources contribute an empty string to their
// tier, matching the "missing files are never fatal" rule.
func Collect() *Tiers {
	t := &Tiers{
		PersistentRaw:     persistentRaw(),
		SemiPersistentRaw: semiPersistentRaw(),
		SemiVolatileRaw:   semiVolatileRaw(),
		VolatileRaw:       volatileRaw(),
	}
	t.Persistent = hashTier(t.PersistentRaw)
	t.SemiPersistent = hashTier(t.SemiPersistentRaw)
	t.SemiVolatile = hashTier(t.SemiVolatileRaw)
	t.Volatile = hashTier(t.VolatileRaw)
	return t
}

// Composed returns the four tier digests joined into the single string
// placed in the Tang request as id={composed}.
func (t *Tiers) Composed() string {
	return strings.Join([]string{t.Persistent, t.SemiPersistent, t.SemiVolatile, t.Volatile}, composedSeparator)
}

func hashTier(raw string) string {
	return cryptofp.Fingerprint([]byte(raw), crypto.SHA512)
}

// joinNonEmpty mirrors the original collectors' habit of only inserting a
// separator ahead of an item once the accumulated string is non-empty,
// i.e. it never leaves a dangling separator when an earlier source was
// unreadable.
func joinNonEmpty(sep string, items ...string) string {
	var nonEmpty []string
	for _, item := range items {
		if item != "" {
			nonEmpty = append(nonEmpty, item)
		}
	}
	return strings.Join(nonEmpty, sep)
}
