package assets

import "fmt"

// StaticString is a test-only Source that returns a fixed byte sequence
// immediately. It exists so provider tests can exercise delivery without
// depending on a real Tang server or filesystem input.
type StaticString struct {
	value     []byte
	buf       *SecretBuffer
	destroyed bool
}

// NewStaticString returns a Source that is ready immediately with value.
func NewStaticString(value []byte) *StaticString {
	return &StaticString{value: value}
}

func (s *StaticString) IsReady() (bool, error) { return true, nil }

func (s *StaticString) GetAsset() (*SecretBuffer, error) {
	if s.buf == nil && !s.destroyed {
		s.buf = NewSecretBuffer(append([]byte{}, s.value...))
	}
	return s.buf, nil
}

func (s *StaticString) Destroy() {
	if s.buf != nil {
		s.buf.Destroy()
	}
	s.destroyed = true
}

func (s *StaticString) Cancel() {}

func (s *StaticString) DumpInfo() string {
	return fmt.Sprintf("StaticString(%d bytes)", len(s.value))
}
