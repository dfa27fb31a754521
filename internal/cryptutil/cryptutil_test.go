package cryptutil_test

import (
	"encoding/base64"
	"testing"

	"github.com/corewire/assistant-core/internal/cryptutil"
)

func testKey() string {
	return base64.StdEncoding.EncodeToString(make([]byte, 32))
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	box, err := cryptutil.NewBox(testKey())
	if err != nil {
		t.Fatalf("NewBox() error = %v", err)
	}

	plaintext := []byte(`{"accessToken":"secret-token"}`)
	ciphertext, err := box.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if string(ciphertext) == string(plaintext) {
		t.Error("ciphertext must not equal plaintext")
	}

	got, err := box.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if string(got) != string(plaintext) {
		t.Errorf("Decrypt() = %q, want %q", got, plaintext)
	}
}

func TestNewBox_RejectsInvalidKeyLength(t *testing.T) {
	shortKey := base64.StdEncoding.EncodeToString(make([]byte, 16))
	if _, err := cryptutil.NewBox(shortKey); err != cryptutil.ErrInvalidKey {
		t.Errorf("NewBox() error = %v, want ErrInvalidKey", err)
	}
}

func TestDecrypt_RejectsTamperedCiphertext(t *testing.T) {
	box, _ := cryptutil.NewBox(testKey())
	ciphertext, _ := box.Encrypt([]byte("hello"))
	ciphertext[len(ciphertext)-1] ^= 0xFF

	if _, err := box.Decrypt(ciphertext); err == nil {
		t.Error("expected Decrypt() to fail on tampered ciphertext")
	}
}
