// Package credential keeps the archive password encrypted at rest.
//
// INVARIANTS:
// - The password is never written in plaintext
// - The key is derived from machine identity, never stored
// - Every encryption uses a fresh random IV
// - Malformed, truncated and wrong-key blobs fail identically
package credential

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/user"
	"runtime"
	"strings"
	"sync"
)

const (
	ivSize = aes.BlockSize
	// marker prefixes the plaintext so a wrong key is detected without
	// relying on the padding check alone.
	marker = "za7z:"
)

// Key is a 256-bit AES key.
type Key [sha256.Size]byte

// Fingerprint returns a short, non-reversible identifier of the key.
func (k Key) Fingerprint() string {
	sum := sha256.Sum256(k[:])
	return hex.EncodeToString(sum[:4])
}

// MachineKey derives the key for the given host identity.
func MachineKey(hostname, username, platform string) Key {
	return Key(sha256.Sum256([]byte(hostname + "-" + username + "-" + platform)))
}

var (
	machineKeyOnce sync.Once
	machineKey     Key
)

// DeriveMachineKey returns the key of the current machine. It is computed once
// per process from the hostname, the OS user and runtime.GOOS.
func DeriveMachineKey() Key {
	machineKeyOnce.Do(func() {
		host, err := os.Hostname()
		if err != nil {
			host = "localhost"
		}
		machineKey = MachineKey(host, currentUser(), runtime.GOOS)
	})
	return machineKey
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	for _, env := range []string{"USER", "USERNAME", "LOGNAME"} {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	return "unknown"
}

// Encrypt encrypts plaintext with AES-256-CBC and returns hex(iv):hex(ciphertext).
func Encrypt(plaintext string, key Key) (string, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	padded := pad([]byte(marker+plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. It reports false for any blob it cannot open.
func Decrypt(blob string, key Key) (string, bool) {
	ivHex, ctHex, ok := strings.Cut(strings.TrimSpace(blob), ":")
	if !ok {
		return "", false
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != ivSize {
		return "", false
	}
	ciphertext, err := hex.DecodeString(ctHex)
	if err != nil || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", false
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return "", false
	}
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)

	plain, ok = unpad(plain, aes.BlockSize)
	if !ok || !bytes.HasPrefix(plain, []byte(marker)) {
		return "", false
	}
	return string(plain[len(marker):]), true
}

// pad applies PKCS#7 padding.
func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, size int) ([]byte, bool) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, false
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size {
		return nil, false
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, false
		}
	}
	return b[:len(b)-n], true
}
