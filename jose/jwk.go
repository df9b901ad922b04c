// Package jose is the CryptoAdapter: a narrow wrapper around go-jose and
// crypto/elliptic that exposes exactly the JOSE/JWE primitives the Clevis
// unsealer needs — parsing a compact JWE, ephemeral EC key generation, raw
// ECDH (including the point-subtraction form Tang's blind recovery
// requires), and AEAD payload decryption. It does not attempt to be a
// general-purpose JOSE toolkit.
package jose

import (
	"crypto/elliptic"

	"github.com/pkg/errors"
	gojose "gopkg.in/square/go-jose.v2"
)

// JSONWebKey is go-jose's own representation. We don't wrap it: every
// operation below accepts and returns this type directly, the same way the
// teacher package threads *JSONWebKey through ParseKey/GenerateJWK.
type JSONWebKey = gojose.JSONWebKey

// Supported curve names, matching the JWA "crv" values.
const (
	P256 = "P-256"
	P384 = "P-384"
	P521 = "P-521"
)

// ParseError is returned by ParseJWE when the compact serialization or its
// protected header is malformed or missing a required field.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return "failed to parse JWE: " + e.Reason }

func newParseError(format string, args ...interface{}) error {
	return &ParseError{Reason: errors.Errorf(format, args...).Error()}
}

// CryptoError is returned by GenerateEphemeralEC/Ecdh/DecryptPayload when a
// cryptographic operation cannot be completed: an unsupported curve, a
// curve mismatch, an operand that is not an EC key, an unsupported enc, or
// an AEAD authentication failure.
type CryptoError struct {
	Reason string
}

func (e *CryptoError) Error() string { return "cryptographic operation failed: " + e.Reason }

func newCryptoError(format string, args ...interface{}) error {
	return &CryptoError{Reason: errors.Errorf(format, args...).Error()}
}

func curveByName(name string) (elliptic.Curve, error) {
	switch name {
	case P256:
		return elliptic.P256(), nil
	case P384:
		return elliptic.P384(), nil
	case P521:
		return elliptic.P521(), nil
	default:
		return nil, newCryptoError("unsupported curve %q", name)
	}
}

// CurveName returns the JWA "crv" name for curve, the inverse of
// curveByName. It is used to re-derive the curve name GenerateEphemeralEC
// expects from the elliptic.Curve an already-parsed Envelope carries.
func CurveName(curve elliptic.Curve) (string, error) {
	switch curve {
	case elliptic.P256():
		return P256, nil
	case elliptic.P384():
		return P384, nil
	case elliptic.P521():
		return P521, nil
	default:
		return "", newCryptoError("unsupported curve %q", curve.Params().Name)
	}
}
