package keystore

import (
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

var (
	ErrEmptyPassphrase    = errors.New("passphrase cannot be empty")
	ErrRandomNonceFailure = errors.New("random nonce creation failure")
	ErrKeyDerivation      = errors.New("key derivation failure")
	ErrOpenDataFailure    = errors.New("open data failure, cannot decrypt data")
)

const (
	saltSize  = 16
	nonceSize = 24
	keySize   = 32

	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// SecretBox seals data with NaCl secretbox using a key derived from the passphrase with scrypt.
// Sealed layout is salt | nonce | box.
type SecretBox struct{}

// Encrypt seals data with key derived from the passphrase.
func (SecretBox) Encrypt(passphrase, data []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, ErrEmptyPassphrase
	}
	head := make([]byte, saltSize+nonceSize)
	if _, err := io.ReadFull(rand.Reader, head); err != nil {
		return nil, errors.Join(ErrRandomNonceFailure, err)
	}
	key, err := deriveKey(passphrase, head[:saltSize])
	if err != nil {
		return nil, err
	}
	var nonce [nonceSize]byte
	copy(nonce[:], head[saltSize:])
	return secretbox.Seal(head, data, &nonce, key), nil
}

// Decrypt opens data sealed with Encrypt.
func (SecretBox) Decrypt(passphrase, data []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, ErrEmptyPassphrase
	}
	if len(data) < saltSize+nonceSize+secretbox.Overhead {
		return nil, ErrOpenDataFailure
	}
	key, err := deriveKey(passphrase, data[:saltSize])
	if err != nil {
		return nil, err
	}
	var nonce [nonceSize]byte
	copy(nonce[:], data[saltSize:saltSize+nonceSize])
	opened, ok := secretbox.Open(nil, data[saltSize+nonceSize:], &nonce, key)
	if !ok {
		return nil, ErrOpenDataFailure
	}
	return opened, nil
}

func deriveKey(passphrase, salt []byte) (*[keySize]byte, error) {
	raw, err := scrypt.Key(passphrase, salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, errors.Join(ErrKeyDerivation, err)
	}
	var key [keySize]byte
	copy(key[:], raw)
	return &key, nil
}
