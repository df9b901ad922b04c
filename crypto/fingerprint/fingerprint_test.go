package fingerprint

import (
	"crypto"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"testing"
)

func TestFingerprintHexEncodesDigest(t *testing.T) {
	tests := []struct {
		name  string
		input string
		hash  crypto.Hash
		want  string
	}{
		{"sha256 empty", "", crypto.SHA256, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"sha256", "raw-data\n", crypto.SHA256, "9d9b7b1f190165f8adaf15596b8d0ffd093f98dd022af12f0d214c3b55a6ed09"},
		{"sha512", "raw-data\n", crypto.SHA512, "bc8434cc445305fa52c1a6405dc49f5cd0bc028b664e3cf3187487748f8234b015995c0f4b1726665c92f5324156659b60af4e687f8041bccbdaeee94c999c43"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fingerprint([]byte(tt.input), tt.hash)
			if got != tt.want {
				t.Fatalf("Fingerprint() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFingerprintIsDeterministic(t *testing.T) {
	a := Fingerprint([]byte("same input"), crypto.SHA256)
	b := Fingerprint([]byte("same input"), crypto.SHA256)
	if a != b {
		t.Fatalf("Fingerprint() not deterministic: %s != %s", a, b)
	}
}
