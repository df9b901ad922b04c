package jose

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"strings"
)

// Envelope is a parsed compact-serialized JWE, decomposed into the fields
// the Clevis unseal protocol needs. It intentionally exposes the raw
// ciphertext parts rather than a go-jose JSONWebEncryption, since the CEK
// for a Tang-bound JWE is derived through the custom blind exchange in
// §4.4, not through go-jose's own ECDH-ES recipient path.
type Envelope struct {
	// ProtectedB64 is the first compact segment, verbatim: it doubles as
	// the AEAD's additional authenticated data.
	ProtectedB64 string

	Alg string // must be ECDH-ES
	Enc string // AEAD identifier, e.g. A256GCM

	EPK      *JSONWebKey
	EPKCurve elliptic.Curve

	KID string

	AdvertisedKeys  []JSONWebKey
	ActiveServerKey *JSONWebKey

	TangURL string

	IV         []byte
	Ciphertext []byte
	Tag        []byte
}

type protectedHeader struct {
	Alg string `json:"alg"`
	Enc string `json:"enc"`
	Epk struct {
		Kty string `json:"kty"`
		Crv string `json:"crv"`
		X   string `json:"x"`
		Y   string `json:"y"`
	} `json:"epk"`
	Kid           string          `json:"kid"`
	ClevisTangURL string          `json:"clevis.tang.url"`
	ClevisTangAdv json.RawMessage `json:"clevis.tang.adv"`
}

type jwkSet struct {
	Keys []JSONWebKey `json:"keys"`
}

// ParseJWE decodes a compact-serialized JWE (five base64url segments
// separated by '.') into an Envelope. It is the only entry point the asset
// layer uses to get at a Clevis-bound blob's structure.
func ParseJWE(compact []byte) (*Envelope, error) {
	parts := strings.Split(strings.TrimSpace(string(compact)), ".")
	if len(parts) != 5 {
		return nil, newParseError("compact serialization has %d segments, want 5", len(parts))
	}

	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, newParseError("protected header is not valid base64url: %v", err)
	}

	var hdr protectedHeader
	if err := json.Unmarshal(headerJSON, &hdr); err != nil {
		return nil, newParseError("protected header is not valid JSON: %v", err)
	}

	if hdr.Alg != "ECDH-ES" {
		return nil, newParseError("unsupported alg %q, want ECDH-ES", hdr.Alg)
	}
	if hdr.Enc == "" {
		return nil, newParseError("protected header is missing enc")
	}
	if hdr.Kid == "" {
		return nil, newParseError("protected header is missing kid")
	}
	if hdr.Epk.Kty != "EC" || hdr.Epk.X == "" || hdr.Epk.Y == "" {
		return nil, newParseError("protected header is missing a usable epk")
	}

	curve, err := curveByName(hdr.Epk.Crv)
	if err != nil {
		return nil, newParseError("epk names unsupported curve %q", hdr.Epk.Crv)
	}

	epkX, err := decodeCoordinate(hdr.Epk.X)
	if err != nil {
		return nil, newParseError("epk.x is not valid base64url: %v", err)
	}
	epkY, err := decodeCoordinate(hdr.Epk.Y)
	if err != nil {
		return nil, newParseError("epk.y is not valid base64url: %v", err)
	}
	if !curve.IsOnCurve(epkX, epkY) {
		return nil, newParseError("epk is not a point on %s", hdr.Epk.Crv)
	}

	epk := &JSONWebKey{
		Key:   &ecdsa.PublicKey{Curve: curve, X: epkX, Y: epkY},
		KeyID: hdr.Kid,
	}

	if len(hdr.ClevisTangAdv) == 0 {
		return nil, newParseError("protected header is missing clevis.tang.adv")
	}
	var adv jwkSet
	if err := json.Unmarshal(hdr.ClevisTangAdv, &adv); err != nil {
		return nil, newParseError("clevis.tang.adv is not a JWK set: %v", err)
	}
	if len(adv.Keys) == 0 {
		return nil, newParseError("clevis.tang.adv has no keys")
	}

	var active *JSONWebKey
	for i := range adv.Keys {
		if adv.Keys[i].KeyID == hdr.Kid {
			active = &adv.Keys[i]
			break
		}
	}
	if active == nil {
		return nil, newParseError("clevis.tang.adv has no key matching kid %q", hdr.Kid)
	}

	if hdr.ClevisTangURL == "" {
		return nil, newParseError("protected header is missing clevis.tang.url")
	}

	iv, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, newParseError("iv is not valid base64url: %v", err)
	}
	ciphertext, err := base64.RawURLEncoding.DecodeString(parts[3])
	if err != nil {
		return nil, newParseError("ciphertext is not valid base64url: %v", err)
	}
	tag, err := base64.RawURLEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, newParseError("tag is not valid base64url: %v", err)
	}

	return &Envelope{
		ProtectedB64:    parts[0],
		Alg:             hdr.Alg,
		Enc:             hdr.Enc,
		EPK:             epk,
		EPKCurve:        curve,
		KID:             hdr.Kid,
		AdvertisedKeys:  adv.Keys,
		ActiveServerKey: active,
		TangURL:         hdr.ClevisTangURL,
		IV:              iv,
		Ciphertext:      ciphertext,
		Tag:             tag,
	}, nil
}

func decodeCoordinate(s string) (*big.Int, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}
