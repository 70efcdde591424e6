package keypair

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/gob"
	"encoding/pem"
	"errors"

	"github.com/bartossh/Multisigner/identity"
)

var (
	ErrPemDecode  = errors.New("cannot decode key from PEM format")
	ErrKeyCast    = errors.New("cannot cast x509 parsed key to ed25519 key")
	ErrKeyInvalid = errors.New("keypair is invalid")
)

// Keypair is the signing capability bound to an owner identity.
type Keypair struct {
	Private ed25519.PrivateKey `json:"private" bson:"private"`
	Public  ed25519.PublicKey  `json:"public"  bson:"public"`
}

// New generates a fresh Keypair or returns error otherwise.
func New() (Keypair, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Keypair{}, err
	}
	return Keypair{Private: private, Public: public}, nil
}

// Address returns the owner identity of the keypair.
func (k *Keypair) Address() identity.Owner {
	return identity.OwnerFromPublicKey(k.Public)
}

// Validate checks that private and public key belong together.
func (k *Keypair) Validate() error {
	if len(k.Private) != ed25519.PrivateKeySize || len(k.Public) != ed25519.PublicKeySize {
		return ErrKeyInvalid
	}
	if !bytes.Equal(k.Private.Public().(ed25519.PublicKey), k.Public) {
		return ErrKeyInvalid
	}
	return nil
}

// Sign signs the message with Ed25519 signature.
// Returns digest hash sha256 and signature of the digest.
func (k *Keypair) Sign(message []byte) (digest [32]byte, signature []byte) {
	digest = sha256.Sum256(message)
	signature = ed25519.Sign(k.Private, digest[:])
	return digest, signature
}

// Verify verifies message ED25519 signature and hash.
func (k *Keypair) Verify(message, signature []byte, digest [32]byte) bool {
	d := sha256.Sum256(message)
	if !bytes.Equal(digest[:], d[:]) {
		return false
	}
	return ed25519.Verify(k.Public, d[:], signature)
}

// EncodePEM encodes private and public key in PEM format.
func (k *Keypair) EncodePEM() (private, public []byte, err error) {
	prv, err := x509.MarshalPKCS8PrivateKey(k.Private)
	if err != nil {
		return nil, nil, err
	}
	pub, err := x509.MarshalPKIXPublicKey(k.Public)
	if err != nil {
		return nil, nil, err
	}
	private = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: prv})
	public = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pub})
	return private, public, nil
}

// DecodePEM creates Keypair from PEM encoded private and public key.
func DecodePEM(private, public []byte) (Keypair, error) {
	var k Keypair
	blockPub, _ := pem.Decode(public)
	if blockPub == nil || blockPub.Type != "PUBLIC KEY" {
		return k, errors.Join(ErrPemDecode, errors.New("public key"))
	}
	pub, err := x509.ParsePKIXPublicKey(blockPub.Bytes)
	if err != nil {
		return k, err
	}
	blockPrv, _ := pem.Decode(private)
	if blockPrv == nil || blockPrv.Type != "PRIVATE KEY" {
		return k, errors.Join(ErrPemDecode, errors.New("private key"))
	}
	prv, err := x509.ParsePKCS8PrivateKey(blockPrv.Bytes)
	if err != nil {
		return k, err
	}
	var ok bool
	if k.Public, ok = pub.(ed25519.PublicKey); !ok {
		return k, ErrKeyCast
	}
	if k.Private, ok = prv.(ed25519.PrivateKey); !ok {
		return k, ErrKeyCast
	}
	return k, k.Validate()
}

// EncodeGOB encodes Keypair in to the gob representation or returns error otherwise.
func (k *Keypair) EncodeGOB() ([]byte, error) {
	var content bytes.Buffer
	if err := gob.NewEncoder(&content).Encode(k); err != nil {
		return nil, err
	}
	return content.Bytes(), nil
}

// DecodeGOB decodes Keypair from gob representation or returns error otherwise.
func DecodeGOB(data []byte) (Keypair, error) {
	var k Keypair
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&k); err != nil {
		return Keypair{}, err
	}
	return k, k.Validate()
}
