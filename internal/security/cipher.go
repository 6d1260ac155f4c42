// Package security encrypts stored profile passwords.
//
// Keys are never written to disk. Each profile's key is derived from its
// "username@host" seed, so a profile file stays usable across reloads
// without a separate key file. Anyone who knows the scheme can derive the
// key too; the file is meant to stay on the operator's machine.
package security

import (
	"crypto/sha256"
	"encoding/base64"
	"time"

	"github.com/fernet/fernet-go"
	"golang.org/x/crypto/pbkdf2"

	"remoteqna/internal/models"
)

const (
	keySalt       = "salt_"
	keyIterations = 100000
	keyLength     = 32
)

// noExpiry disables the fernet timestamp check.
const noExpiry = time.Duration(-1)

// DeriveKey returns the URL-safe base64 encoding of a PBKDF2-SHA256 key
// derived from seed. The same seed always yields the same key.
func DeriveKey(seed string) string {
	raw := pbkdf2.Key([]byte(seed), []byte(keySalt), keyIterations, keyLength, sha256.New)
	return base64.URLEncoding.EncodeToString(raw)
}

// Encrypt returns a URL-safe base64 wrapped fernet token for plaintext.
// Empty input and any failure both yield "".
func Encrypt(plaintext, key string) string {
	if plaintext == "" {
		return ""
	}
	k, err := fernet.DecodeKey(key)
	if err != nil {
		return ""
	}
	tok, err := fernet.EncryptAndSign([]byte(plaintext), k)
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(tok)
}

// Decrypt reverses Encrypt. Empty input, a wrong key or corrupt data all
// yield "".
func Decrypt(ciphertext, key string) string {
	if ciphertext == "" {
		return ""
	}
	k, err := fernet.DecodeKey(key)
	if err != nil {
		return ""
	}
	tok, err := base64.URLEncoding.DecodeString(ciphertext)
	if err != nil {
		return ""
	}
	msg := fernet.VerifyAndDecrypt(tok, noExpiry, []*fernet.Key{k})
	if msg == nil {
		return ""
	}
	return string(msg)
}

// SealPassword encrypts plaintext with the key for p's seed.
func SealPassword(p models.ConnectionProfile, plaintext string) string {
	return Encrypt(plaintext, DeriveKey(p.CipherSeed()))
}

// OpenPassword decrypts p.Password with the key for p's seed.
func OpenPassword(p models.ConnectionProfile) string {
	return Decrypt(p.Password, DeriveKey(p.CipherSeed()))
}
