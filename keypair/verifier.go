package keypair

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"errors"

	"github.com/bartossh/Multisigner/identity"
)

var (
	ErrHashCorrupted    = errors.New("hash is corrupted")
	ErrInvalidSignature = errors.New("message signature isn't valid")
)

// Verifier checks signatures knowing only the owner address.
type Verifier struct{}

// NewVerifier creates new Verifier.
func NewVerifier() Verifier {
	return Verifier{}
}

// Verify verifies if message is signed by the owner and the digest is the sha256 of the message.
func (Verifier) Verify(message, signature []byte, digest [32]byte, owner identity.Owner) error {
	d := sha256.Sum256(message)
	if !bytes.Equal(digest[:], d[:]) {
		return ErrHashCorrupted
	}

	pub, err := owner.PublicKey()
	if err != nil {
		return err
	}

	if !ed25519.Verify(pub, d[:], signature) {
		return ErrInvalidSignature
	}
	return nil
}
