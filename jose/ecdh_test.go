package jose

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// simulateEncrypt builds the key material a Clevis-Tang encryption would
// have produced: a static server exchange keypair and an ephemeral local
// keypair whose public part is embedded as the JWE's "epk". It returns the
// shared secret Z a compliant encrypter would have derived directly, so
// tests can check that the decrypt-side blind exchange reconstructs it.
func simulateEncrypt(t *testing.T, curve elliptic.Curve) (serverKey, epk *JSONWebKey, z *JSONWebKey) {
	t.Helper()
	serverPriv, err := ecdsa.GenerateKey(curve, rand.Reader)
	require.NoError(t, err)
	localPriv, err := ecdsa.GenerateKey(curve, rand.Reader)
	require.NoError(t, err)

	serverKey = &JSONWebKey{Key: serverPriv}
	epk = &JSONWebKey{Key: &localPriv.PublicKey}

	serverPub := &JSONWebKey{Key: &serverPriv.PublicKey}
	z, err = Ecdh(&JSONWebKey{Key: localPriv}, serverPub, false)
	require.NoError(t, err)
	return serverKey, epk, z
}

func TestEcdhUnblindRecoversSharedSecret(t *testing.T) {
	curve := elliptic.P256()
	serverKey, epk, z := simulateEncrypt(t, curve)
	serverPub := &JSONWebKey{Key: &serverKey.Key.(*ecdsa.PrivateKey).PublicKey}

	e, err := GenerateEphemeralEC(P256)
	require.NoError(t, err)

	x, err := Ecdh(epk, e, false)
	require.NoError(t, err)

	r, err := Ecdh(serverKey, x, false)
	require.NoError(t, err)
	StripPrivate(r)

	y, err := Ecdh(e, serverPub, false)
	require.NoError(t, err)

	uk, err := Ecdh(r, y, true)
	require.NoError(t, err)

	zPub := z.Key.(*ecdsa.PublicKey)
	ukPub := uk.Key.(*ecdsa.PublicKey)
	require.Equal(t, zPub.X, ukPub.X)
	require.Equal(t, zPub.Y, ukPub.Y)
}

func TestEcdhRejectsCurveMismatch(t *testing.T) {
	a, err := GenerateEphemeralEC(P256)
	require.NoError(t, err)
	b, err := GenerateEphemeralEC(P384)
	require.NoError(t, err)
	_, err = Ecdh(a, b, false)
	require.Error(t, err)
}

func TestDecryptPayloadRoundTrip(t *testing.T) {
	curve := elliptic.P256()
	_, _, z := simulateEncrypt(t, curve)
	zPub := z.Key.(*ecdsa.PublicKey)

	size := (curve.Params().BitSize + 7) / 8
	zBytes := make([]byte, size)
	xb := zPub.X.Bytes()
	copy(zBytes[size-len(xb):], xb)

	protected := "eyJhbGciOiJFQ0RILUVTIn0"
	cek := concatKDF(zBytes, "A256GCM", 32)

	block, err := aes.NewCipher(cek)
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)

	iv := make([]byte, gcm.NonceSize())
	_, err = rand.Read(iv)
	require.NoError(t, err)

	plaintext := []byte("the quick unsealed fox")
	sealed := gcm.Seal(nil, iv, plaintext, []byte(protected))
	ciphertext := sealed[:len(sealed)-gcm.Overhead()]
	tag := sealed[len(sealed)-gcm.Overhead():]

	env := &Envelope{
		ProtectedB64: protected,
		Enc:          "A256GCM",
		IV:           iv,
		Ciphertext:   ciphertext,
		Tag:          tag,
	}

	got, err := DecryptPayload(&JSONWebKey{Key: zPub}, env)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestDecryptPayloadRejectsTamperedTag(t *testing.T) {
	curve := elliptic.P256()
	_, _, z := simulateEncrypt(t, curve)
	zPub := z.Key.(*ecdsa.PublicKey)

	size := (curve.Params().BitSize + 7) / 8
	zBytes := make([]byte, size)
	xb := zPub.X.Bytes()
	copy(zBytes[size-len(xb):], xb)

	cek := concatKDF(zBytes, "A128GCM", 16)
	block, err := aes.NewCipher(cek)
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)

	iv := make([]byte, gcm.NonceSize())
	sealed := gcm.Seal(nil, iv, []byte("secret"), []byte("hdr"))
	ciphertext := sealed[:len(sealed)-gcm.Overhead()]
	tag := sealed[len(sealed)-gcm.Overhead():]
	tag[0] ^= 0xFF

	env := &Envelope{ProtectedB64: "hdr", Enc: "A128GCM", IV: iv, Ciphertext: ciphertext, Tag: tag}
	_, err = DecryptPayload(&JSONWebKey{Key: zPub}, env)
	require.Error(t, err)
}
