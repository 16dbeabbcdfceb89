// Package filestore is a durable credentials.Store backed by a single file.
// Writes are atomic (temp file + rename) and the file is created with 0600
// permissions. With a passphrase configured, the payload is sealed with
// ChaCha20-Poly1305 under an Argon2id-derived key.
package filestore

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/thevaultgame/vault-auth-client/credentials"
)

var (
	CorruptStoreErr  = errors.New("credential file corrupt")
	DecryptFailedErr = errors.New("credential file decryption failed")
)

// magic prefixes encrypted files so that Load can tell the formats apart.
var magic = []byte("VAULTC1")

const (
	saltLength   = 16
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	keyLength    = 32
)

var _ credentials.Store = (*Store)(nil)

type Store struct {
	path       string
	passphrase string
	mu         sync.Mutex
}

type Option func(*Store)

// WithPassphrase enables at-rest encryption. The key is re-derived on every
// write with a fresh salt, so rotating the passphrase only requires a Save.
func WithPassphrase(passphrase string) Option {
	return func(s *Store) {
		s.passphrase = passphrase
	}
}

func New(path string, options ...Option) *Store {
	s := &Store{path: path}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Store) Save(session credentials.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "[Save] failed to encode session")
	}

	if s.passphrase != "" {
		if payload, err = s.seal(payload); err != nil {
			return err
		}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "[Save] failed to create store directory")
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return errors.Wrap(err, "[Save] failed to create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.Wrap(err, "[Save] failed to set permissions")
	}
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return errors.Wrap(err, "[Save] failed to write session")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "[Save] failed to close temp file")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return errors.Wrap(err, "[Save] failed to replace credential file")
	}
	return nil
}

func (s *Store) Load() (credentials.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return credentials.Session{}, nil
	}
	if err != nil {
		return credentials.Session{}, errors.Wrap(err, "[Load] failed to read credential file")
	}

	if len(payload) >= len(magic) && string(payload[:len(magic)]) == string(magic) {
		if s.passphrase == "" {
			return credentials.Session{}, errors.Wrap(DecryptFailedErr, "[Load] encrypted file but no passphrase configured")
		}
		if payload, err = s.open(payload); err != nil {
			return credentials.Session{}, err
		}
	}

	var session credentials.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return credentials.Session{}, errors.Wrap(CorruptStoreErr, "[Load] failed to decode session")
	}
	return session, nil
}

func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "[Clear] failed to remove credential file")
	}
	return nil
}

// seal encrypts payload as magic || salt || nonce || ciphertext.
func (s *Store) seal(payload []byte) ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Wrap(err, "[seal] failed to generate salt")
	}

	aead, err := newAEAD(s.passphrase, salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "[seal] failed to generate nonce")
	}

	out := make([]byte, 0, len(magic)+len(salt)+len(nonce)+len(payload)+aead.Overhead())
	out = append(out, magic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, payload, nil), nil
}

func (s *Store) open(payload []byte) ([]byte, error) {
	body := payload[len(magic):]
	if len(body) < saltLength+chacha20poly1305.NonceSize {
		return nil, errors.Wrap(CorruptStoreErr, "[open] truncated header")
	}

	salt := body[:saltLength]
	nonce := body[saltLength : saltLength+chacha20poly1305.NonceSize]
	ciphertext := body[saltLength+chacha20poly1305.NonceSize:]

	aead, err := newAEAD(s.passphrase, salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.Wrap(DecryptFailedErr, "[open] aead open")
	}
	return plaintext, nil
}

func newAEAD(passphrase string, salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, keyLength)
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialise cipher")
	}
	return aead, nil
}
