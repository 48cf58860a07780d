package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const sealedPrefix = "v1:"

var (
	ErrMissingKey        = errors.New("BROKER_CREDENTIALS_KEY is not set")
	ErrInvalidKey        = errors.New("invalid credentials key: must be 32 bytes base64")
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")
	ErrDecryptionFailed  = errors.New("decryption failed")
)

// Sealer encrypts short secrets with XChaCha20-Poly1305.
type Sealer struct {
	key []byte
}

// NewSealer builds a Sealer from a base64 encoded 32 byte key.
func NewSealer(encodedKey string) (*Sealer, error) {
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil || len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKey
	}
	return &Sealer{key: key}, nil
}

// Encrypt returns "v1:" followed by base64(nonce || ciphertext).
func (s *Sealer) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("create aead: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (s *Sealer) Decrypt(ciphertext string) (string, error) {
	if !strings.HasPrefix(ciphertext, sealedPrefix) {
		return "", ErrInvalidCiphertext
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ciphertext, sealedPrefix))
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("create aead: %w", err)
	}
	if len(raw) < aead.NonceSize() {
		return "", ErrInvalidCiphertext
	}

	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plain), nil
}

// CheckKey reports whether the configured credentials key can seal tokens.
func CheckKey() error {
	_, err := configuredSealer()
	return err
}

func configuredSealer() (*Sealer, error) {
	key := GetConfig().CredentialsKey
	if key == "" {
		return nil, ErrMissingKey
	}
	return NewSealer(key)
}

// EncryptString seals plaintext with the configured key.
func EncryptString(plaintext string) (string, error) {
	s, err := configuredSealer()
	if err != nil {
		return "", err
	}
	return s.Encrypt(plaintext)
}

// DecryptString opens a value produced by EncryptString.
func DecryptString(ciphertext string) (string, error) {
	s, err := configuredSealer()
	if err != nil {
		return "", err
	}
	return s.Decrypt(ciphertext)
}
