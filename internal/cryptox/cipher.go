package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
)

// BlockSize is the AES block size and the IV length of every envelope.
const BlockSize = aes.BlockSize

// ErrDecryption covers malformed envelopes, wrong keys and bad padding.
var ErrDecryption = errors.New("decryption failed")

// Cipher encrypts and decrypts file payloads with AES-256-CBC.
//
// Envelope layout: IV (16 bytes) followed by the PKCS#7-padded ciphertext.
// A Cipher is safe for concurrent use; it only holds the expanded key.
type Cipher struct {
	block cipher.Block
}

// NewCipher builds a Cipher from a 32-byte key produced by DeriveKey.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", ErrConfiguration, KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return &Cipher{block: block}, nil
}

// EnvelopeSize returns the envelope length for a plaintext of n bytes.
func EnvelopeSize(n int) int {
	return BlockSize + (n/BlockSize+1)*BlockSize
}

// Encrypt pads plaintext, encrypts it under a fresh random IV and returns IV || ciphertext.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	padded := pad(plaintext)

	envelope := make([]byte, BlockSize+len(padded))
	iv := envelope[:BlockSize]
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}

	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(envelope[BlockSize:], padded)
	return envelope, nil
}

// Decrypt reverses Encrypt. It never returns partially decrypted data: any
// structural or padding problem yields ErrDecryption.
func (c *Cipher) Decrypt(envelope []byte) ([]byte, error) {
	if len(envelope) < 2*BlockSize {
		return nil, fmt.Errorf("%w: envelope too short (%d bytes)", ErrDecryption, len(envelope))
	}
	if (len(envelope)-BlockSize)%BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext is not a multiple of the block size", ErrDecryption)
	}

	iv := envelope[:BlockSize]
	ciphertext := envelope[BlockSize:]

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(plaintext, ciphertext)

	return unpad(plaintext)
}

// pad applies PKCS#7 padding; aligned input gets a full extra block.
func pad(data []byte) []byte {
	n := BlockSize - len(data)%BlockSize
	out := make([]byte, len(data)+n)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func unpad(data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%BlockSize != 0 {
		return nil, fmt.Errorf("%w: invalid padded length", ErrDecryption)
	}

	n := int(data[len(data)-1])
	if n == 0 || n > BlockSize {
		return nil, fmt.Errorf("%w: invalid padding", ErrDecryption)
	}

	// all pad bytes must equal n
	tail := data[len(data)-n:]
	want := make([]byte, n)
	for i := range want {
		want[i] = byte(n)
	}
	if subtle.ConstantTimeCompare(tail, want) != 1 {
		return nil, fmt.Errorf("%w: invalid padding", ErrDecryption)
	}

	return data[:len(data)-n], nil
}
