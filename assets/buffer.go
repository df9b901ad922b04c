package assets

import "sync"

// SecretBuffer holds plaintext recovered from an AssetSource. It is safe
// for concurrent use: Destroy may race with a reader that already holds a
// reference, so all access goes through the mutex rather than relying on
// the caller to serialize setup-thread and background-activity access.
//
// Destroy overwrites the backing array with zero bytes and is idempotent;
// callers must treat the byte slice returned by Bytes as borrowed and
// never retain it past a subsequent Destroy call.
type SecretBuffer struct {
	mu        sync.Mutex
	data      []byte
	destroyed bool
}

// NewSecretBuffer wraps plaintext in a SecretBuffer. The caller gives up
// ownership of plaintext's backing array: it will be zeroed on Destroy.
func NewSecretBuffer(plaintext []byte) *SecretBuffer {
	return &SecretBuffer{data: plaintext}
}

// Bytes returns the current contents. After Destroy it returns nil.
func (b *SecretBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data
}

// Destroy zeroes the buffer's backing array and marks it destroyed. It is
// idempotent: a second call is a harmless no-op.
func (b *SecretBuffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return
	}
	for i := range b.data {
		b.data[i] = 0
	}
	b.data = nil
	b.destroyed = true
}

// Destroyed reports whether Destroy has already run.
func (b *SecretBuffer) Destroyed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.destroyed
}
