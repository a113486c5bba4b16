// Package crypto provides AES-256-GCM field-level encryption for
// transcription and analysis payloads at rest.
//
// Encrypted payloads are stored as a self-contained envelope: a fresh
// 96-bit IV concatenated with the GCM ciphertext (tag included),
// base64-encoded. The key material is injected at construction and is
// never part of the envelope.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
)

// ivSize is the GCM nonce length in bytes (96 bits).
const ivSize = 12

// minEnvelopeSize is the smallest decodable envelope: a full IV plus at
// least one ciphertext byte. Anything shorter is rejected outright.
const minEnvelopeSize = ivSize + 1

// Error is the typed error for all encryption and decryption failures.
// Authentication failures, malformed envelopes and bad key material all
// surface as *Error so callers can distinguish crypto faults from other
// storage problems.
type Error struct {
	Op  string
	Err error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("crypto: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("crypto: %s", e.Op)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Envelope is the discriminated storage shape for an encrypted payload.
// When no key is configured the plaintext document is stored instead, so
// readers must always check both variants.
type Envelope struct {
	Encrypted bool   `json:"encrypted"`
	Data      string `json:"data"`
}

// envelopeProbe mirrors Envelope for shape detection without committing
// to a full decode.
type envelopeProbe struct {
	Encrypted bool `json:"encrypted"`
}

// IsEnvelope reports whether a stored JSON document has the encrypted
// envelope shape.
func IsEnvelope(raw []byte) bool {
	var probe envelopeProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	return probe.Encrypted
}

// Encryptor performs authenticated encryption of string payloads.
// A nil-key Encryptor is valid and operates in pass-through mode:
// Enabled reports false and callers persist the plaintext shape.
type Encryptor struct {
	aead cipher.AEAD
}

// New creates an Encryptor from raw key material. Key must be exactly
// 32 bytes (AES-256). An empty key yields a disabled pass-through
// Encryptor; malformed key material is an error, never a silent
// downgrade.
func New(key []byte) (*Encryptor, error) {
	if len(key) == 0 {
		return &Encryptor{}, nil
	}
	if len(key) != 32 {
		return nil, &Error{Op: "key import", Err: fmt.Errorf("key must be 32 bytes, got %d", len(key))}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &Error{Op: "key import", Err: err}
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, &Error{Op: "key import", Err: err}
	}

	return &Encryptor{aead: aead}, nil
}

// Enabled reports whether key material is configured
func (e *Encryptor) Enabled() bool {
	return e.aead != nil
}

// Encrypt encrypts plaintext into a base64(IV||ciphertext+tag) envelope
// payload. Every call draws a fresh random IV, so encrypting the same
// plaintext twice yields different ciphertexts.
//
// In pass-through mode the plaintext is returned unchanged; the caller
// must then persist the plaintext-shaped record, not a fake envelope.
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	if !e.Enabled() {
		return plaintext, nil
	}

	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", &Error{Op: "generate iv", Err: err}
	}

	// Seal appends ciphertext to iv, producing IV||ciphertext+tag.
	sealed := e.aead.Seal(iv, iv, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. It fails with *Error on malformed base64,
// truncated envelopes, and authentication failure (tampered data or
// wrong key) -- it never returns corrupted plaintext.
func (e *Encryptor) Decrypt(encoded string) (string, error) {
	if !e.Enabled() {
		return "", &Error{Op: "decrypt", Err: fmt.Errorf("no encryption key configured")}
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", &Error{Op: "decode envelope", Err: err}
	}
	if len(data) < minEnvelopeSize {
		return "", &Error{Op: "decode envelope", Err: fmt.Errorf("invalid envelope: %d bytes", len(data))}
	}

	iv, ciphertext := data[:ivSize], data[ivSize:]
	plaintext, err := e.aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return "", &Error{Op: "decrypt", Err: err}
	}
	return string(plaintext), nil
}

// Seal wraps an already-encrypted payload into the envelope document
// stored in place of the plaintext record.
func Seal(data string) Envelope {
	return Envelope{Encrypted: true, Data: data}
}
