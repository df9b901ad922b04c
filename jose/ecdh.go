package jose

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"encoding/binary"
	"math/big"
)

// Ecdh implements the McCallum-Relyea exchange primitive the Clevis
// unsealer drives in three shapes (§4.4 steps 2, 6 and 7):
//
//   - X = Ecdh(EPK, E):    left (EPK) has no private scalar.
//   - Y = Ecdh(E, server):  left (E) has a private scalar.
//   - UK = Ecdh(R, Y, true): left (R) has no private scalar.
//
// The left operand decides the mode: if it carries a private scalar d,
// the result is d·right.pub (standard ECDH), and right's own private
// part, if any, is ignored. Otherwise both operands are treated purely
// as points and the result is left.pub + right.pub, or left.pub -
// right.pub when subtract is true — this is the additive-blinding
// exchange that lets E's contribution cancel between the X and Y calls
// without Tang ever seeing an unblinded value.
func Ecdh(left, right *JSONWebKey, subtract bool) (*JSONWebKey, error) {
	leftPub, leftPriv, err := splitKey(left)
	if err != nil {
		return nil, err
	}
	rightPub, _, err := splitKey(right)
	if err != nil {
		return nil, err
	}
	if leftPub.Curve != rightPub.Curve {
		return nil, newCryptoError("curve mismatch: %s vs %s", leftPub.Curve.Params().Name, rightPub.Curve.Params().Name)
	}
	curve := leftPub.Curve

	if leftPriv != nil {
		x, y := curve.ScalarMult(rightPub.X, rightPub.Y, leftPriv.D.Bytes())
		return &JSONWebKey{Key: &ecdsa.PublicKey{Curve: curve, X: x, Y: y}}, nil
	}
	if subtract {
		negX, negY := negatePoint(curve, rightPub.X, rightPub.Y)
		x, y := curve.Add(leftPub.X, leftPub.Y, negX, negY)
		return &JSONWebKey{Key: &ecdsa.PublicKey{Curve: curve, X: x, Y: y}}, nil
	}
	x, y := curve.Add(leftPub.X, leftPub.Y, rightPub.X, rightPub.Y)
	return &JSONWebKey{Key: &ecdsa.PublicKey{Curve: curve, X: x, Y: y}}, nil
}

func splitKey(jwk *JSONWebKey) (*ecdsa.PublicKey, *ecdsa.PrivateKey, error) {
	switch k := jwk.Key.(type) {
	case *ecdsa.PrivateKey:
		return &k.PublicKey, k, nil
	case *ecdsa.PublicKey:
		return k, nil, nil
	case ecdsa.PublicKey:
		return &k, nil, nil
	default:
		return nil, nil, newCryptoError("key is not an EC key (%T)", jwk.Key)
	}
}

// negatePoint returns -P for a point P=(x,y) on curve: (x, p-y mod p).
func negatePoint(curve elliptic.Curve, x, y *big.Int) (*big.Int, *big.Int) {
	p := curve.Params().P
	negY := new(big.Int).Sub(p, y)
	negY.Mod(negY, p)
	return new(big.Int).Set(x), negY
}

// keyLenFor returns the CEK length in bytes for a JWE "enc" identifier.
// Only the AEAD families Tang advertises are supported.
func keyLenFor(enc string) (int, error) {
	switch enc {
	case "A128GCM":
		return 16, nil
	case "A192GCM":
		return 24, nil
	case "A256GCM":
		return 32, nil
	default:
		return 0, newCryptoError("unsupported enc %q", enc)
	}
}

// concatKDF implements the single-round Concat KDF of NIST SP 800-56A as
// profiled by RFC 7518 §4.6.2 for ECDH-ES direct key agreement: each round
// hashes a big-endian round counter, the shared secret Z, and OtherInfo
// (AlgorithmID || PartyUInfo || PartyVInfo || SuppPubInfo). apu/apv are
// empty for Tang-bound JWEs, so OtherInfo reduces to the enc identifier
// length-prefixed, two empty length prefixes, and the key length in bits.
func concatKDF(z []byte, enc string, keyLen int) []byte {
	lenPrefixed := func(b []byte) []byte {
		out := make([]byte, 4+len(b))
		binary.BigEndian.PutUint32(out, uint32(len(b)))
		copy(out[4:], b)
		return out
	}

	otherInfo := lenPrefixed([]byte(enc))
	otherInfo = append(otherInfo, lenPrefixed(nil)...) // PartyUInfo
	otherInfo = append(otherInfo, lenPrefixed(nil)...) // PartyVInfo

	suppPub := make([]byte, 4)
	binary.BigEndian.PutUint32(suppPub, uint32(keyLen*8))
	otherInfo = append(otherInfo, suppPub...)

	out := make([]byte, 0, keyLen)
	for round := uint32(1); len(out) < keyLen; round++ {
		h := sha256.New()
		var counter [4]byte
		binary.BigEndian.PutUint32(counter[:], round)
		h.Write(counter[:])
		h.Write(z)
		h.Write(otherInfo)
		out = append(out, h.Sum(nil)...)
	}
	return out[:keyLen]
}

// DecryptPayload derives the content-encryption key from the unwrapping
// JWK's point via Concat KDF and AEAD-decrypts env's ciphertext, using the
// base64url protected header as additional authenticated data, per RFC
// 7516. unwrapping must be a public-only EC key (a bare point), which is
// exactly what Ecdh's point-subtraction branch produces.
func DecryptPayload(unwrapping *JSONWebKey, env *Envelope) ([]byte, error) {
	pub, _, err := splitKey(unwrapping)
	if err != nil {
		return nil, err
	}

	size := (pub.Curve.Params().BitSize + 7) / 8
	z := make([]byte, size)
	xb := pub.X.Bytes()
	copy(z[size-len(xb):], xb)

	keyLen, err := keyLenFor(env.Enc)
	if err != nil {
		return nil, err
	}
	cek := concatKDF(z, env.Enc, keyLen)

	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, newCryptoError("error constructing AES cipher: %v", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(env.IV))
	if err != nil {
		return nil, newCryptoError("error constructing AES-GCM: %v", err)
	}

	sealed := append(append([]byte{}, env.Ciphertext...), env.Tag...)
	plaintext, err := gcm.Open(nil, env.IV, sealed, []byte(env.ProtectedB64))
	if err != nil {
		return nil, newCryptoError("AEAD decryption failed: %v", err)
	}
	return plaintext, nil
}
