package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := New(testKey(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	tests := []struct {
		name      string
		plaintext string
	}{
		{"simple string", "hello world"},
		{"empty string", ""},
		{"unicode", "skambutis iš Vilniaus, ačiū"},
		{"json payload", `{"id":"abc","text":"klientas skambino","segments":[]}`},
		{"long text", "Lorem ipsum dolor sit amet, consectetur adipiscing elit. Sed do eiusmod tempor incididunt ut labore et dolore magna aliqua."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sealed, err := enc.Encrypt(tc.plaintext)
			if err != nil {
				t.Fatalf("Encrypt failed: %v", err)
			}
			if sealed == tc.plaintext && tc.plaintext != "" {
				t.Error("ciphertext should differ from plaintext")
			}

			got, err := enc.Decrypt(sealed)
			if err != nil {
				t.Fatalf("Decrypt failed: %v", err)
			}
			if got != tc.plaintext {
				t.Errorf("expected %q, got %q", tc.plaintext, got)
			}
		})
	}
}

func TestEncryptProducesDifferentCiphertexts(t *testing.T) {
	enc, _ := New(testKey(t))
	plaintext := "same input"

	first, _ := enc.Encrypt(plaintext)
	second, _ := enc.Encrypt(plaintext)

	if first == second {
		t.Error("encrypting the same plaintext twice should produce different ciphertexts due to random IV")
	}

	for _, sealed := range []string{first, second} {
		got, err := enc.Decrypt(sealed)
		if err != nil || got != plaintext {
			t.Errorf("both ciphertexts must decrypt back to the plaintext, got %q err %v", got, err)
		}
	}
}

func TestDecryptDetectsTampering(t *testing.T) {
	enc, _ := New(testKey(t))
	sealed, err := enc.Encrypt("asmens kodas 39001011234")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	raw, _ := base64.StdEncoding.DecodeString(sealed)
	// Flip one byte in every position class: IV, ciphertext body, tag.
	for _, pos := range []int{0, ivSize + 1, len(raw) - 1} {
		tampered := make([]byte, len(raw))
		copy(tampered, raw)
		tampered[pos] ^= 0x01

		_, err := enc.Decrypt(base64.StdEncoding.EncodeToString(tampered))
		if err == nil {
			t.Fatalf("tampering at byte %d must fail decryption, not return altered plaintext", pos)
		}
		var cryptoErr *Error
		if !errors.As(err, &cryptoErr) {
			t.Errorf("tamper failure should be a crypto *Error, got %T", err)
		}
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	enc1, _ := New(testKey(t))
	enc2, _ := New(testKey(t))

	sealed, err := enc1.Encrypt("secret data")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if _, err := enc2.Decrypt(sealed); err == nil {
		t.Error("expected decryption to fail with wrong key")
	}
}

func TestDecryptRejectsShortEnvelopes(t *testing.T) {
	enc, _ := New(testKey(t))

	tests := []struct {
		name    string
		encoded string
	}{
		{"not base64", "not-valid-base64!!!"},
		{"one byte", base64.StdEncoding.EncodeToString([]byte{0x01})},
		{"exactly iv size", base64.StdEncoding.EncodeToString(make([]byte, ivSize))},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := enc.Decrypt(tc.encoded)
			if err == nil {
				t.Fatal("expected error for malformed envelope")
			}
			var cryptoErr *Error
			if !errors.As(err, &cryptoErr) {
				t.Errorf("expected crypto *Error, got %T", err)
			}
		})
	}
}

func TestNewRejectsBadKeyMaterial(t *testing.T) {
	if _, err := New(make([]byte, 16)); err == nil {
		t.Error("16-byte key must be rejected")
	}
	if _, err := New(make([]byte, 33)); err == nil {
		t.Error("33-byte key must be rejected")
	}
}

func TestPassThroughWithoutKey(t *testing.T) {
	enc, err := New(nil)
	if err != nil {
		t.Fatalf("New with nil key failed: %v", err)
	}
	if enc.Enabled() {
		t.Fatal("nil-key encryptor must report disabled")
	}

	out, err := enc.Encrypt("plain payload")
	if err != nil {
		t.Fatalf("pass-through Encrypt failed: %v", err)
	}
	if out != "plain payload" {
		t.Errorf("pass-through must return plaintext unchanged, got %q", out)
	}

	if _, err := enc.Decrypt("anything"); err == nil {
		t.Error("Decrypt without a key must fail, not pretend to succeed")
	}
}

func TestEnvelopeShapeDetection(t *testing.T) {
	env, _ := json.Marshal(Seal("YWJj"))
	if !IsEnvelope(env) {
		t.Error("sealed envelope document must be detected")
	}

	plain := []byte(`{"id":"x","text":"labas","segments":[]}`)
	if IsEnvelope(plain) {
		t.Error("plaintext transcript document must not be detected as envelope")
	}

	if IsEnvelope([]byte("not json")) {
		t.Error("non-JSON must not be detected as envelope")
	}
}
