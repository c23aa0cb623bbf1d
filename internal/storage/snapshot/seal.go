package snapshot

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Supported envelope ciphers.
const (
	CipherAESGCM   = "aes-gcm"
	CipherChaCha20 = "chacha20-poly1305"
)

const (
	// MinPassphraseLength is the minimum accepted passphrase length.
	MinPassphraseLength = 8

	// SaltLength is the Argon2id salt length stored in the envelope.
	SaltLength = 16

	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2KeyLen  = 32
)

var (
	ErrPassphraseTooWeak = errors.New("snapshot: passphrase too weak (minimum 8 characters)")
	ErrDecryptionFailed  = errors.New("snapshot: decryption failed - wrong passphrase or corrupted data")
)

// Sealer encrypts snapshot documents with a passphrase-derived key.
// Derived keys are cached per salt, so Argon2id runs once per salt
// rather than on every write.
type Sealer struct {
	passphrase []byte
	algorithm  string

	mu   sync.Mutex
	salt []byte
	keys map[string][]byte
}

// NewSealer creates a sealer. An empty algorithm picks AES-GCM on
// platforms with hardware AES and ChaCha20-Poly1305 elsewhere.
func NewSealer(passphrase string, algorithm string) (*Sealer, error) {
	if len(passphrase) < MinPassphraseLength {
		return nil, ErrPassphraseTooWeak
	}
	if algorithm == "" {
		algorithm = preferredCipher()
	}
	switch algorithm {
	case CipherAESGCM, CipherChaCha20:
	default:
		return nil, fmt.Errorf("snapshot: unsupported cipher: %s", algorithm)
	}

	return &Sealer{
		passphrase: []byte(passphrase),
		algorithm:  algorithm,
		keys:       make(map[string][]byte),
	}, nil
}

// Algorithm returns the cipher used for new envelopes.
func (s *Sealer) Algorithm() string {
	return s.algorithm
}

// Seal encrypts plaintext. It returns the salt the key was derived
// with and nonce||ciphertext.
func (s *Sealer) Seal(plaintext []byte) (salt, sealed []byte, err error) {
	s.mu.Lock()
	if s.salt == nil {
		s.salt = make([]byte, SaltLength)
		if _, err := rand.Read(s.salt); err != nil {
			s.mu.Unlock()
			return nil, nil, fmt.Errorf("snapshot: generate salt: %w", err)
		}
	}
	salt = s.salt
	s.mu.Unlock()

	aead, err := s.aead(s.algorithm, salt)
	if err != nil {
		return nil, nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("snapshot: generate nonce: %w", err)
	}
	return salt, aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts an envelope payload. A successful open adopts salt for
// subsequent writes.
func (s *Sealer) Open(algorithm string, salt, sealed []byte) ([]byte, error) {
	aead, err := s.aead(algorithm, salt)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, ErrDecryptionFailed
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	s.mu.Lock()
	s.salt = append([]byte(nil), salt...)
	s.mu.Unlock()
	return plain, nil
}

func (s *Sealer) aead(algorithm string, salt []byte) (cipher.AEAD, error) {
	if len(salt) != SaltLength {
		return nil, fmt.Errorf("snapshot: invalid salt length %d", len(salt))
	}
	key := s.key(salt)

	switch algorithm {
	case CipherAESGCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case CipherChaCha20:
		return chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("snapshot: unsupported cipher: %s", algorithm)
	}
}

func (s *Sealer) key(salt []byte) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k, ok := s.keys[string(salt)]; ok {
		return k
	}
	k := argon2.IDKey(s.passphrase, salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	s.keys[string(salt)] = k
	return k
}

// preferredCipher picks AES-GCM where Go uses hardware AES.
func preferredCipher() string {
	switch runtime.GOARCH {
	case "amd64", "arm64", "s390x", "ppc64le":
		return CipherAESGCM
	default:
		return CipherChaCha20
	}
}
