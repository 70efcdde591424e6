package identity

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	checksumLength = 4

	// KeyVersion is the address version byte of owners backed by an ed25519 keypair.
	KeyVersion = byte(0x00)
	// AuthorityVersion is the address version byte of authorities derived from a wallet handle.
	AuthorityVersion = byte(0x01)

	authoritySeed = "multisig/authority/"
)

var (
	ErrEmptyOwner       = errors.New("owner address is empty")
	ErrInvalidEncoding  = errors.New("owner address is not valid base58")
	ErrInvalidLength    = errors.New("owner address of invalid length")
	ErrChecksumMismatch = errors.New("owner address checksum is not equal")
	ErrVersionMismatch  = errors.New("owner address version mismatch")
	ErrInvalidHandle    = errors.New("invalid resource handle")
)

// Owner is a public identity token of a party. Two owners are the same party
// when their addresses are equal.
type Owner string

// OwnerFromPublicKey creates an owner address from the ed25519 public key.
func OwnerFromPublicKey(pub ed25519.PublicKey) Owner {
	return encode(KeyVersion, pub)
}

// String returns the address.
func (o Owner) String() string {
	return string(o)
}

// Validate checks the address encoding, payload length and checksum.
func (o Owner) Validate() error {
	_, _, err := o.decode()
	return err
}

// PublicKey returns the ed25519 public key the owner address was created from.
// Derived authorities have no public key and return ErrVersionMismatch.
func (o Owner) PublicKey() (ed25519.PublicKey, error) {
	v, payload, err := o.decode()
	if err != nil {
		return nil, err
	}
	if v != KeyVersion {
		return nil, errors.Join(ErrVersionMismatch, fmt.Errorf("expected %d but got %d", KeyVersion, v))
	}
	return ed25519.PublicKey(payload), nil
}

// IsAuthority tells if the owner address was derived from a wallet handle.
func (o Owner) IsAuthority() bool {
	v, _, err := o.decode()
	return err == nil && v == AuthorityVersion
}

func (o Owner) decode() (byte, []byte, error) {
	if o == "" {
		return 0, nil, ErrEmptyOwner
	}
	raw, err := base58.Decode(string(o))
	if err != nil {
		return 0, nil, errors.Join(ErrInvalidEncoding, err)
	}
	if len(raw) != 1+ed25519.PublicKeySize+checksumLength {
		return 0, nil, errors.Join(ErrInvalidLength, fmt.Errorf("got %d bytes", len(raw)))
	}
	body, actual := raw[:len(raw)-checksumLength], raw[len(raw)-checksumLength:]
	if !bytes.Equal(actual, checksum(body)) {
		return 0, nil, ErrChecksumMismatch
	}
	return body[0], body[1:], nil
}

// Handle identifies a resource allocated by the ledger, a wallet or a transaction.
type Handle string

// NewHandle allocates a fresh, unique handle.
func NewHandle() Handle {
	return Handle(primitive.NewObjectID().Hex())
}

// String returns the handle.
func (h Handle) String() string {
	return string(h)
}

// Validate checks that the handle is a well formed hex encoded object ID.
func (h Handle) Validate() error {
	if _, err := primitive.ObjectIDFromHex(string(h)); err != nil {
		return errors.Join(ErrInvalidHandle, err)
	}
	return nil
}

// DeriveAuthority returns the signer address a wallet acts with when executing
// transactions. It is a pure function of the wallet handle, so every party can
// derive it, and it never collides with a keypair owner.
func DeriveAuthority(wallet Handle) Owner {
	digest := sha256.Sum256([]byte(authoritySeed + string(wallet)))
	return encode(AuthorityVersion, digest[:])
}

func encode(version byte, payload []byte) Owner {
	body := append([]byte{version}, payload...)
	full := append(body, checksum(body)...)
	return Owner(base58.Encode(full))
}

func checksum(payload []byte) []byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return second[:checksumLength]
}
