package security

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// ErrSecretMismatch is returned when a sealed secret cannot be opened with the presented value.
var ErrSecretMismatch = errors.New("secret cannot be opened with presented value")

const secretInfo = "authsession login token secret v1"

// SecretBox encrypts secrets bound to login tokens. The key is derived from the
// value the client presents (session id or token string) and a server key, so the
// database alone cannot recover a secret.
type SecretBox struct {
	serverKey []byte
}

// NewSecretBox returns a SecretBox that mixes serverKey into every derived key.
func NewSecretBox(serverKey string) *SecretBox {
	return &SecretBox{serverKey: []byte(serverKey)}
}

// Seal encrypts secret for presentedValue. Output is nonce || ciphertext.
func (b *SecretBox) Seal(presentedValue string, secret []byte) ([]byte, error) {
	aead, err := b.aead(presentedValue)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(secret)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, secret, nil), nil
}

// Open decrypts a value produced by Seal. Returns ErrSecretMismatch when
// presentedValue is not the one the secret was sealed for.
func (b *SecretBox) Open(presentedValue string, sealed []byte) ([]byte, error) {
	aead, err := b.aead(presentedValue)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrSecretMismatch
	}
	nonce, ct := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, ErrSecretMismatch
	}
	return pt, nil
}

func (b *SecretBox) aead(presentedValue string) (cipher.AEAD, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	r := hkdf.New(sha256.New, []byte(presentedValue), b.serverKey, []byte(secretInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return chacha20poly1305.NewX(key)
}
