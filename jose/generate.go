package jose

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// GenerateEphemeralEC generates a fresh EC keypair on the named curve. It
// is used once per unseal attempt to build the ephemeral key E in the
// Clevis blind-recovery exchange.
func GenerateEphemeralEC(curveName string) (*JSONWebKey, error) {
	curve, err := curveByName(curveName)
	if err != nil {
		return nil, err
	}
	key, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "error generating ephemeral EC key")
	}
	return &JSONWebKey{Key: key}, nil
}

// StripPrivate removes the private scalar from jwk in place, leaving only
// the public point. It is a no-op on a key that is already public-only.
func StripPrivate(jwk *JSONWebKey) {
	if priv, ok := jwk.Key.(*ecdsa.PrivateKey); ok {
		jwk.Key = &priv.PublicKey
	}
}

// MarshalPublic serializes jwk as a JWK JSON object containing only public
// fields, suitable as the Tang /rec request body. StripPrivate is applied
// defensively before marshaling.
func MarshalPublic(jwk *JSONWebKey) ([]byte, error) {
	pub := *jwk
	StripPrivate(&pub)
	b, err := json.Marshal(pub)
	if err != nil {
		return nil, errors.Wrap(err, "error marshaling JWK")
	}
	return b, nil
}

// UnmarshalJWK parses a single JSON JWK object, as returned (base64url
// decoded) from a Tang /rec response.
func UnmarshalJWK(b []byte) (*JSONWebKey, error) {
	jwk := new(JSONWebKey)
	if err := json.Unmarshal(b, jwk); err != nil {
		return nil, errors.Wrap(err, "error unmarshaling JWK")
	}
	return jwk, nil
}

// PrettyPrint renders jwk as a human-readable string for debug output. It
// always elides private material, regardless of what jwk actually carries.
func PrettyPrint(jwk *JSONWebKey) string {
	if jwk == nil {
		return "<nil jwk>"
	}
	pub := *jwk
	StripPrivate(&pub)

	switch k := pub.Key.(type) {
	case *ecdsa.PublicKey:
		return fmt.Sprintf("EC(%s) kid=%q x=%x y=%x", k.Curve.Params().Name, pub.KeyID, k.X.Bytes(), k.Y.Bytes())
	default:
		b, err := json.Marshal(pub)
		if err != nil {
			return fmt.Sprintf("<unprintable jwk kid=%q>", pub.KeyID)
		}
		return string(b)
	}
}
