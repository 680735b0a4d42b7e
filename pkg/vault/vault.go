package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"log/slog"
)

const (
	nonceSize = 12
	tagSize   = 16
)

// Vault encrypts credentials at rest with AES-256-GCM. When no key is
// configured it degrades to a passthrough that stores values unchanged,
// which is logged loudly at startup so operators notice.
//
// Ciphertext layout: nonce || auth tag || encrypted bytes, base64-encoded
// as one opaque string.
type Vault struct {
	aead   cipher.AEAD
	logger *slog.Logger
}

// New builds a vault from a base64-encoded 32-byte key. An empty or
// malformed key yields a passthrough vault.
func New(base64Key string, logger *slog.Logger) *Vault {
	if logger == nil {
		logger = slog.Default()
	}
	v := &Vault{logger: logger}

	if base64Key == "" {
		logger.Warn("credentials encryption key not configured, secrets will be stored in cleartext")
		return v
	}

	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil || len(key) != 32 {
		logger.Warn("credentials encryption key is malformed, secrets will be stored in cleartext")
		return v
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		logger.Warn("failed to initialize cipher, secrets will be stored in cleartext", "error", err)
		return v
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		logger.Warn("failed to initialize GCM, secrets will be stored in cleartext", "error", err)
		return v
	}

	v.aead = aead
	return v
}

// Enabled reports whether secrets are actually encrypted at rest.
func (v *Vault) Enabled() bool {
	return v.aead != nil
}

// Encrypt returns the ciphertext for plaintext, or plaintext unchanged in
// passthrough mode.
func (v *Vault) Encrypt(plaintext string) string {
	if v.aead == nil || plaintext == "" {
		return plaintext
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		v.logger.Error("failed to generate nonce, storing value unencrypted", "error", err)
		return plaintext
	}

	sealed := v.aead.Seal(nil, nonce, []byte(plaintext), nil)
	// Seal appends the tag after the encrypted bytes; reorder to
	// nonce || tag || encrypted to match the stored layout.
	encrypted := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	out := make([]byte, 0, nonceSize+tagSize+len(encrypted))
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, encrypted...)

	return base64.StdEncoding.EncodeToString(out)
}

// Decrypt reverses Encrypt. It fails closed: any malformed or tampered
// input is returned unchanged, so a value written before encryption was
// enabled (or after a key change) stays usable as plaintext.
func (v *Vault) Decrypt(ciphertext string) string {
	if v.aead == nil || ciphertext == "" {
		return ciphertext
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil || len(raw) < nonceSize+tagSize {
		return ciphertext
	}

	nonce := raw[:nonceSize]
	tag := raw[nonceSize : nonceSize+tagSize]
	encrypted := raw[nonceSize+tagSize:]

	sealed := make([]byte, 0, len(encrypted)+tagSize)
	sealed = append(sealed, encrypted...)
	sealed = append(sealed, tag...)

	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return ciphertext
	}
	return string(plaintext)
}
