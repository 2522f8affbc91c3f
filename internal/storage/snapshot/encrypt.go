package snapshot

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"

	"github.com/yndnr/datalayer-go/pkg/crypto/adaptive"
)

// Encryption errors.
var (
	ErrKeyTooShort       = errors.New("snapshot: encryption key too short (minimum 16 bytes)")
	ErrPassphraseTooWeak = errors.New("snapshot: passphrase too weak (minimum 8 characters)")
	ErrDecryptionFailed  = errors.New("snapshot: decryption failed, wrong key or corrupted data")
	ErrEncrypted         = errors.New("snapshot: file is encrypted and no key is configured")
)

const (
	MinKeyLength        = 16
	MinPassphraseLength = 8
	SaltLength          = 16

	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	keyLength     = 32

	subkeyInfo = "datalayer snapshot v1"
)

// EncryptionConfig configures snapshot encryption. With neither Key nor
// Passphrase set, snapshots are written in the clear.
type EncryptionConfig struct {
	// Passphrase derives a key per file. It wins over Key.
	Passphrase []byte

	// Key is a raw master key; the cipher key is derived from it with
	// HKDF-SHA256.
	Key []byte

	// Algorithm is "aes-gcm", "chacha20-poly1305" or empty for the
	// hardware-appropriate default.
	Algorithm string
}

// Enabled reports whether snapshots will be encrypted.
func (c EncryptionConfig) Enabled() bool {
	return len(c.Passphrase) > 0 || len(c.Key) > 0
}

// Validate checks key material lengths and the algorithm.
func (c EncryptionConfig) Validate() error {
	if len(c.Passphrase) > 0 && len(c.Passphrase) < MinPassphraseLength {
		return ErrPassphraseTooWeak
	}
	if len(c.Passphrase) == 0 && len(c.Key) > 0 && len(c.Key) < MinKeyLength {
		return ErrKeyTooShort
	}
	switch adaptive.CipherType(c.Algorithm) {
	case "", adaptive.CipherAESGCM, adaptive.CipherChaCha20:
		return nil
	default:
		return fmt.Errorf("snapshot: unsupported algorithm %q", c.Algorithm)
	}
}

// cipher builds the cipher for one file. For passphrases a nil salt
// generates a fresh one; the salt in use is returned so it can be
// recorded in the header.
func (c EncryptionConfig) cipher(algorithm string, salt []byte) (adaptive.Cipher, []byte, error) {
	var key []byte
	switch {
	case len(c.Passphrase) > 0:
		if salt == nil {
			salt = make([]byte, SaltLength)
			if _, err := rand.Read(salt); err != nil {
				return nil, nil, fmt.Errorf("snapshot: salt: %w", err)
			}
		}
		key = DeriveKeyFromPassphrase(c.Passphrase, salt)
	case len(c.Key) > 0:
		var err error
		if key, err = DeriveSubkey(c.Key, subkeyInfo, keyLength); err != nil {
			return nil, nil, err
		}
		salt = nil
	default:
		return nil, nil, ErrEncrypted
	}
	defer ZeroKey(key)

	ci, err := adaptive.NewWithType(key, adaptive.CipherType(algorithm))
	if err != nil {
		return nil, nil, err
	}
	return ci, salt, nil
}

// DeriveKeyFromPassphrase derives a 32-byte key with Argon2id.
func DeriveKeyFromPassphrase(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, argon2Time, argon2Memory, argon2Threads, keyLength)
}

// DeriveSubkey derives a purpose-bound key from a master key with HKDF.
func DeriveSubkey(masterKey []byte, info string, length int) ([]byte, error) {
	if len(masterKey) < MinKeyLength {
		return nil, ErrKeyTooShort
	}
	reader := hkdf.New(sha256.New, masterKey, nil, []byte(info))
	key := make([]byte, length)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("snapshot: derive subkey: %w", err)
	}
	return key, nil
}

// ZeroKey overwrites key material.
func ZeroKey(key []byte) {
	clear(key)
}
