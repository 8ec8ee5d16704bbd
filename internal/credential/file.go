package credential

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// File layout, bit-exact for portability across implementations:
//
//	base64(salt) || 0x00 || nonce[12] || AES-256-GCM(JSON map)
//
// Salt and nonce are regenerated on every write.
const (
	saltLen  = 16
	nonceLen = 12

	// argon2id parameters for the 32-byte AES key.
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

var (
	// ErrDecrypt: wrong master password or tampered ciphertext.
	ErrDecrypt = errors.New("credential: decryption failed")

	// ErrMalformed: the file does not match the expected layout.
	ErrMalformed = errors.New("credential: malformed store file")
)

func deriveKey(master string, salt []byte) []byte {
	return argon2.IDKey([]byte(master), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// encodeFile serializes and encrypts the credential map with a fresh salt
// and nonce.
func encodeFile(master string, creds map[string]Credential) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("credential: salt: %w", err)
	}
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("credential: nonce: %w", err)
	}

	plaintext, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("credential: marshal: %w", err)
	}

	gcm, err := newGCM(deriveKey(master, salt))
	if err != nil {
		return nil, err
	}

	out := []byte(base64.StdEncoding.EncodeToString(salt))
	out = append(out, 0x00)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, plaintext, nil)
	zero(plaintext)
	return out, nil
}

// decodeFile decrypts and parses a store file. Empty input is an empty map.
func decodeFile(master string, data []byte) (map[string]Credential, error) {
	if len(data) == 0 {
		return map[string]Credential{}, nil
	}

	sep := bytes.IndexByte(data, 0x00)
	if sep < 0 {
		return nil, fmt.Errorf("%w: missing salt terminator", ErrMalformed)
	}
	salt, err := base64.StdEncoding.DecodeString(string(data[:sep]))
	if err != nil {
		return nil, fmt.Errorf("%w: salt not base64", ErrMalformed)
	}

	rest := data[sep+1:]
	if len(rest) < nonceLen {
		return nil, fmt.Errorf("%w: truncated nonce", ErrMalformed)
	}
	nonce, ciphertext := rest[:nonceLen], rest[nonceLen:]

	gcm, err := newGCM(deriveKey(master, salt))
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	defer zero(plaintext)

	creds := map[string]Credential{}
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, fmt.Errorf("%w: payload parse: %v", ErrDecrypt, err)
	}
	return creds, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("credential: cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("credential: gcm: %w", err)
	}
	return gcm, nil
}
