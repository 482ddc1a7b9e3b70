package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"golang.org/x/crypto/hkdf"
)

const (
	FieldKeySize = 32

	encryptionKeyInfo = "clients/field-encryption/v1"
	hashKeyInfo       = "clients/field-hash/v1"
)

var ErrCiphertextInvalid = errors.New("ciphertext is invalid")

// FieldCipher encrypts sensitive client fields with AES-256-GCM and produces
// the deterministic HMAC used for uniqueness lookups on the encrypted columns.
// Encryption and hashing use separate keys derived from one master key.
type FieldCipher struct {
	aead    cipher.AEAD
	hashKey []byte
}

func NewFieldCipher(masterKey []byte) (*FieldCipher, error) {
	if len(masterKey) != FieldKeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", FieldKeySize, len(masterKey))
	}

	encKey, err := deriveKey(masterKey, encryptionKeyInfo)
	if err != nil {
		return nil, err
	}
	hashKey, err := deriveKey(masterKey, hashKeyInfo)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &FieldCipher{aead: aead, hashKey: hashKey}, nil
}

// NewFieldCipherFromBase64 accepts the key as stored in CLIENT_ENCRYPTION_KEY.
func NewFieldCipherFromBase64(encoded string) (*FieldCipher, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	return NewFieldCipher(key)
}

func deriveKey(masterKey []byte, info string) ([]byte, error) {
	key := make([]byte, FieldKeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterKey, nil, []byte(info)), key); err != nil {
		return nil, err
	}
	return key, nil
}

// Encrypt returns base64(nonce || sealed).
func (c *FieldCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *FieldCipher) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrCiphertextInvalid
	}
	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", ErrCiphertextInvalid
	}
	plain, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", ErrCiphertextInvalid
	}
	return string(plain), nil
}

// Hash is the deterministic index value for a sensitive field.
// Values that differ only by case, spaces or dashes hash the same.
func (c *FieldCipher) Hash(value string) string {
	normalized := NormalizeForHash(value)
	if normalized == "" {
		return ""
	}
	mac := hmac.New(sha256.New, c.hashKey)
	mac.Write([]byte(normalized))
	return hex.EncodeToString(mac.Sum(nil))
}

func NormalizeForHash(value string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(value) {
		if unicode.IsSpace(r) || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
