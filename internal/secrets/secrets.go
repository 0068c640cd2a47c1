package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

var (
	ErrKeyMissing       = errors.New("encryption_key_missing")
	ErrInvalidEnvelope  = errors.New("invalid_secret_envelope")
	ErrDecryptionFailed = errors.New("secret_decryption_failed")
)

type envelope struct {
	Version    int    `json:"version"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// Cipher decrypts at-rest-encrypted gateway settings. The AES-256 key is
// derived from the configured secret; plaintexts are held only for the
// duration of one call and never logged.
type Cipher struct {
	key []byte
}

func NewCipher(secret string) *Cipher {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return &Cipher{}
	}
	sum := sha256.Sum256([]byte(secret))
	return &Cipher{key: sum[:]}
}

func (c *Cipher) Decrypt(encoded string) (string, error) {
	if c == nil || len(c.key) == 0 {
		return "", ErrKeyMissing
	}
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return "", ErrInvalidEnvelope
	}

	var payload envelope
	if err := json.Unmarshal([]byte(encoded), &payload); err != nil {
		return "", ErrInvalidEnvelope
	}
	if payload.Version != 1 {
		return "", ErrInvalidEnvelope
	}

	nonce, err := base64.RawStdEncoding.DecodeString(payload.Nonce)
	if err != nil {
		return "", ErrInvalidEnvelope
	}
	ciphertext, err := base64.RawStdEncoding.DecodeString(payload.Ciphertext)
	if err != nil {
		return "", ErrInvalidEnvelope
	}

	gcm, err := c.aead()
	if err != nil {
		return "", err
	}
	if len(nonce) != gcm.NonceSize() {
		return "", ErrInvalidEnvelope
	}
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plain), nil
}

// Encrypt produces a version-1 envelope. Used by provisioning tooling and
// tests; the service itself only decrypts.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if c == nil || len(c.key) == 0 {
		return "", ErrKeyMissing
	}
	gcm, err := c.aead()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)

	out, err := json.Marshal(envelope{
		Version:    1,
		Nonce:      base64.RawStdEncoding.EncodeToString(nonce),
		Ciphertext: base64.RawStdEncoding.EncodeToString(sealed),
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (c *Cipher) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
