// Package assets implements the ingress (AssetSource) and egress
// (AssetProvider) halves of the unseal pipeline, and the AssetList that
// orchestrates pairs of them end to end.
package assets

import "time"

// Source is the capability-based contract shared by every asset source
// variant: StaticString, PlainFile, and ClevisFile. Dynamic dispatch on
// this interface happens once per asset at construction time; it is not a
// hot path.
type Source interface {
	// IsReady reports whether the background unseal/read activity has
	// finished, successfully or not. A non-nil error return surfaces a
	// failure captured by that activity; it is returned at most once by
	// whichever of IsReady or GetAsset observes it first.
	IsReady() (bool, error)

	// GetAsset returns the recovered plaintext once ready, without
	// blocking. Calling it before IsReady reports true returns a nil buffer
	// and a nil error.
	GetAsset() (*SecretBuffer, error)

	// Destroy zeroes any retained plaintext. Idempotent.
	Destroy()

	// Cancel requests cooperative abort of any in-flight retry loop. It
	// does not block.
	Cancel()

	// DumpInfo returns a human-readable description of the source for
	// --dump output. It never triggers recovery or decryption.
	DumpInfo() string
}

// pollInterval is how often callers are expected to re-poll IsReady.
const pollInterval = 100 * time.Millisecond
