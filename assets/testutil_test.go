package assets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/nearedge/latchy/jose"
	"github.com/stretchr/testify/require"
)

// buildClevisJWE assembles a compact-serialized JWE the same way a real
// Clevis/Tang binding would, along with the server's advertised signing
// key (R-producer) and the plaintext it protects, so tests can drive the
// full unseal exchange end to end against a stub Tang recoverer.
func buildClevisJWE(t *testing.T, plaintext []byte) (compact []byte, serverKey *jose.JSONWebKey, kid string) {
	t.Helper()

	curve := elliptic.P256()
	serverPriv, err := ecdsa.GenerateKey(curve, rand.Reader)
	require.NoError(t, err)
	localPriv, err := ecdsa.GenerateKey(curve, rand.Reader)
	require.NoError(t, err)

	serverKey = &jose.JSONWebKey{Key: serverPriv, KeyID: "testkid"}
	epk := &jose.JSONWebKey{Key: &localPriv.PublicKey}

	serverPub := &jose.JSONWebKey{Key: &serverPriv.PublicKey, KeyID: "testkid"}
	z, err := jose.Ecdh(&jose.JSONWebKey{Key: localPriv}, serverPub, false)
	require.NoError(t, err)

	zPub := z.Key.(*ecdsa.PublicKey)
	size := (curve.Params().BitSize + 7) / 8
	zBytes := make([]byte, size)
	xb := zPub.X.Bytes()
	copy(zBytes[size-len(xb):], xb)

	type epkHeader struct {
		Kty string `json:"kty"`
		Crv string `json:"crv"`
		X   string `json:"x"`
		Y   string `json:"y"`
	}
	localPub := epk.Key.(*ecdsa.PublicKey)
	hdr := map[string]interface{}{
		"alg": "ECDH-ES",
		"enc": "A128GCM",
		"epk": epkHeader{
			Kty: "EC",
			Crv: "P-256",
			X:   base64.RawURLEncoding.EncodeToString(localPub.X.Bytes()),
			Y:   base64.RawURLEncoding.EncodeToString(localPub.Y.Bytes()),
		},
		"kid":             "testkid",
		"clevis.tang.url": "http://tang.example",
	}

	advKeys := []map[string]string{
		{
			"kty": "EC",
			"crv": "P-256",
			"kid": "testkid",
			"x":   base64.RawURLEncoding.EncodeToString(serverPriv.PublicKey.X.Bytes()),
			"y":   base64.RawURLEncoding.EncodeToString(serverPriv.PublicKey.Y.Bytes()),
		},
	}
	advJSON, err := json.Marshal(map[string]interface{}{"keys": advKeys})
	require.NoError(t, err)
	hdr["clevis.tang.adv"] = json.RawMessage(advJSON)

	hdrJSON, err := json.Marshal(hdr)
	require.NoError(t, err)
	protected := base64.RawURLEncoding.EncodeToString(hdrJSON)

	cek := concatKDFForTest(zBytes, "A128GCM", 16)
	block, err := aes.NewCipher(cek)
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)

	iv := make([]byte, gcm.NonceSize())
	_, err = rand.Read(iv)
	require.NoError(t, err)

	sealed := gcm.Seal(nil, iv, plaintext, []byte(protected))
	ciphertext := sealed[:len(sealed)-gcm.Overhead()]
	tag := sealed[len(sealed)-gcm.Overhead():]

	compactStr := protected + ".." +
		base64.RawURLEncoding.EncodeToString(iv) + "." +
		base64.RawURLEncoding.EncodeToString(ciphertext) + "." +
		base64.RawURLEncoding.EncodeToString(tag)

	return []byte(compactStr), serverKey, "testkid"
}

// concatKDFForTest mirrors jose's private concatKDF (RFC 7518 §4.6.2,
// empty apu/apv) so the helper above can produce the same CEK a real
// encrypter would, without reaching into the jose package's internals.
func concatKDFForTest(z []byte, enc string, keyLen int) []byte {
	lenPrefixed := func(b []byte) []byte {
		out := make([]byte, 4+len(b))
		binary.BigEndian.PutUint32(out, uint32(len(b)))
		copy(out[4:], b)
		return out
	}
	otherInfo := lenPrefixed([]byte(enc))
	otherInfo = append(otherInfo, lenPrefixed(nil)...)
	otherInfo = append(otherInfo, lenPrefixed(nil)...)
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
