package cryptox

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCipher(t *testing.T, secret string) *Cipher {
	t.Helper()
	key, err := DeriveKey(secret)
	require.NoError(t, err)
	c, err := NewCipher(key)
	require.NoError(t, err)
	return c
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func TestCipher_RoundTrip(t *testing.T) {
	c := newTestCipher(t, "round-trip-secret")

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"empty", []byte{}},
		{"one byte", []byte{0x42}},
		{"block minus one", bytes.Repeat([]byte{'a'}, BlockSize-1)},
		{"exactly one block", bytes.Repeat([]byte{'b'}, BlockSize)},
		{"two blocks plus one", bytes.Repeat([]byte{'c'}, 2*BlockSize+1)},
		{"invalid utf8", []byte{0xff, 0xfe, 0xfd, 0x00, 0xc3, 0x28}},
		{"hello world", []byte("hello world")},
		{"multi megabyte", randomBytes(t, 3*1024*1024+7)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envelope, err := c.Encrypt(tt.plaintext)
			require.NoError(t, err)
			assert.Len(t, envelope, EnvelopeSize(len(tt.plaintext)))
			assert.Greater(t, len(envelope), len(tt.plaintext))

			got, err := c.Decrypt(envelope)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(tt.plaintext, got), "round trip mismatch")
		})
	}
}

func TestCipher_EncryptIsNonDeterministic(t *testing.T) {
	c := newTestCipher(t, "iv-secret")
	plaintext := []byte("same input every time")

	a, err := c.Encrypt(plaintext)
	require.NoError(t, err)
	b, err := c.Encrypt(plaintext)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a[:BlockSize], b[:BlockSize], "IVs must differ")

	for _, env := range [][]byte{a, b} {
		got, err := c.Decrypt(env)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestEnvelopeSize(t *testing.T) {
	tests := []struct {
		n, want int
	}{
		{0, 32},
		{1, 32},
		{15, 32},
		{16, 48},
		{17, 48},
		{31, 48},
		{32, 64},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EnvelopeSize(tt.n), "n=%d", tt.n)
	}
}

func TestCipher_DecryptRejectsMalformedEnvelopes(t *testing.T) {
	c := newTestCipher(t, "malformed-secret")
	valid, err := c.Encrypt([]byte("some payload"))
	require.NoError(t, err)

	tests := []struct {
		name     string
		envelope []byte
	}{
		{"nil", nil},
		{"shorter than one block", make([]byte, BlockSize-1)},
		{"iv only", make([]byte, BlockSize)},
		{"ragged ciphertext", append(append([]byte{}, valid...), 0x01)},
		{"truncated ciphertext", valid[:len(valid)-1]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := c.Decrypt(tt.envelope)
			require.ErrorIs(t, err, ErrDecryption)
			assert.Nil(t, out)
		})
	}
}

func TestCipher_DecryptRejectsBadPadding(t *testing.T) {
	c := newTestCipher(t, "padding-secret")

	// An empty plaintext encrypts to a single block of sixteen 0x10 bytes, so
	// flipping IV bits rewrites the padding deterministically.
	tests := []struct {
		name string
		pos  int
		mask byte
	}{
		{"pad length above block size", BlockSize - 1, 0x01},
		{"pad length zero", BlockSize - 1, 0x10},
		{"inconsistent pad byte", BlockSize - 2, 0x01},
		{"first pad byte", 0, 0x80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envelope, err := c.Encrypt(nil)
			require.NoError(t, err)

			envelope[tt.pos] ^= tt.mask

			_, err = c.Decrypt(envelope)
			require.ErrorIs(t, err, ErrDecryption)
		})
	}
}

func TestCipher_WrongKeyNeverYieldsPlaintext(t *testing.T) {
	plaintext := []byte("confidential report, quarter three")
	envelope, err := newTestCipher(t, "right-secret").Encrypt(plaintext)
	require.NoError(t, err)

	got, err := newTestCipher(t, "wrong-secret").Decrypt(envelope)
	if err != nil {
		require.ErrorIs(t, err, ErrDecryption)
		return
	}
	assert.NotEqual(t, plaintext, got)
}

func TestNewCipher_RejectsBadKeys(t *testing.T) {
	for _, n := range []int{0, 16, 24, 31, 33} {
		_, err := NewCipher(make([]byte, n))
		require.ErrorIs(t, err, ErrConfiguration, "key length %d", n)
	}
}
