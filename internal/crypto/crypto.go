package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"
)

// Encryption key for contact emails at rest (in production, use a secure key
// management system and SetKey at startup).
var encryptionKey = []byte("32-byte-key-for-aes-encryption!!")

// SetKey replaces the default encryption key. The key must be 16, 24 or 32
// bytes (AES-128/192/256).
func SetKey(key []byte) error {
	switch len(key) {
	case 16, 24, 32:
		encryptionKey = key
		return nil
	default:
		return errors.New("crypto: key must be 16, 24 or 32 bytes")
	}
}

// Encrypt encrypts data using AES-GCM and returns the ciphertext and nonce.
func Encrypt(plaintext string) ([]byte, []byte, error) {
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, nil, err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, err
	}

	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, err
	}

	ciphertext := aesgcm.Seal(nil, nonce, []byte(plaintext), nil)
	return ciphertext, nonce, nil
}

// Decrypt decrypts AES-GCM encrypted data.
func Decrypt(ciphertext, nonce []byte) (string, error) {
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return "", err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}
