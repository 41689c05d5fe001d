// Package backupcrypto implements the password-based encryption used for
// backup blobs. Clients run the same construction; the server only calls
// Decrypt transiently, inside a single request, to prove backup ownership.
package backupcrypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Argon2id parameters. Matching values on client and server are part of the
// backup format: changing them breaks decryption of existing blobs.
const (
	saltLen = 16
	keyLen  = 32

	argonTime    uint32 = 3
	argonMemory  uint32 = 64 * 1024 // 64 MB
	argonThreads uint8  = 1
)

// Rand returns n cryptographically secure random bytes.
func Rand(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// DeriveKey derives the AEAD key from password and salt using Argon2id.
func DeriveKey(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, keyLen)
}

// Encrypt seals plaintext under the password. Output layout, base64-encoded:
// salt(16) || nonce(24) || ciphertext.
func Encrypt(password, plaintext []byte) (string, error) {
	salt, err := Rand(saltLen)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.NewX(DeriveKey(password, salt))
	if err != nil {
		return "", err
	}
	nonce, err := Rand(chacha20poly1305.NonceSizeX)
	if err != nil {
		return "", err
	}
	out := make([]byte, 0, saltLen+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, aead.Seal(nil, nonce, plaintext, nil)...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt opens a blob produced by Encrypt. Callers must treat any error as
// "wrong password or corrupted backup" and must not retain the plaintext
// beyond the current request.
func Decrypt(password []byte, blob string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, errors.New("backup not base64")
	}
	if len(raw) < saltLen+chacha20poly1305.NonceSizeX {
		return nil, errors.New("backup too short")
	}
	salt := raw[:saltLen]
	nonce := raw[saltLen : saltLen+chacha20poly1305.NonceSizeX]
	ct := raw[saltLen+chacha20poly1305.NonceSizeX:]
	aead, err := chacha20poly1305.NewX(DeriveKey(password, salt))
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, nonce, ct, nil)
}
