package keystore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bartossh/Multisigner/identity"
	"github.com/bartossh/Multisigner/keypair"
)

const keyExt = ".key"

var ErrKeyMismatch = errors.New("stored keypair does not match its file name")

// Config holds configuration of the keystore.
type Config struct {
	Dir        string `yaml:"dir"`        // directory holding sealed keypairs
	Passphrase string `yaml:"passphrase"` // passphrase the keypairs are sealed with
}

// Sealer offers behaviour to seal and open the bytes with a passphrase.
type Sealer interface {
	Encrypt(passphrase, data []byte) ([]byte, error)
	Decrypt(passphrase, data []byte) ([]byte, error)
}

// Store keeps keypairs on disk, one sealed file per owner.
type Store struct {
	s   Sealer
	cfg Config
}

// New creates new Store. SecretBox is used if s is nil.
func New(cfg Config, s Sealer) Store {
	if s == nil {
		s = SecretBox{}
	}
	return Store{cfg: cfg, s: s}
}

// Save seals the keypair and writes it to the owner's file.
func (st Store) Save(kp keypair.Keypair) (identity.Owner, error) {
	if err := kp.Validate(); err != nil {
		return "", err
	}
	raw, err := kp.EncodeGOB()
	if err != nil {
		return "", err
	}
	closed, err := st.s.Encrypt([]byte(st.cfg.Passphrase), raw)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(st.cfg.Dir, 0700); err != nil {
		return "", err
	}
	owner := kp.Address()
	return owner, os.WriteFile(st.path(owner), closed, 0600)
}

// Create generates a new keypair and saves it, so a staged owner survives the process.
func (st Store) Create() (keypair.Keypair, error) {
	kp, err := keypair.New()
	if err != nil {
		return keypair.Keypair{}, err
	}
	if _, err := st.Save(kp); err != nil {
		return keypair.Keypair{}, err
	}
	return kp, nil
}

// Read reads the keypair of the owner.
func (st Store) Read(owner identity.Owner) (keypair.Keypair, error) {
	if err := owner.Validate(); err != nil {
		return keypair.Keypair{}, err
	}
	raw, err := os.ReadFile(st.path(owner))
	if err != nil {
		return keypair.Keypair{}, err
	}
	opened, err := st.s.Decrypt([]byte(st.cfg.Passphrase), raw)
	if err != nil {
		return keypair.Keypair{}, err
	}
	kp, err := keypair.DecodeGOB(opened)
	if err != nil {
		return keypair.Keypair{}, err
	}
	if kp.Address() != owner {
		return keypair.Keypair{}, errors.Join(ErrKeyMismatch, fmt.Errorf("file of [ %s ] holds [ %s ]", owner, kp.Address()))
	}
	return kp, nil
}

// ReadAll reads every keypair in the store directory. Missing directory holds no keypairs.
func (st Store) ReadAll() ([]keypair.Keypair, error) {
	entries, err := os.ReadDir(st.cfg.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var kps []keypair.Keypair
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), keyExt) {
			continue
		}
		kp, err := st.Read(identity.Owner(strings.TrimSuffix(e.Name(), keyExt)))
		if err != nil {
			return nil, errors.Join(fmt.Errorf("reading %s", e.Name()), err)
		}
		kps = append(kps, kp)
	}
	return kps, nil
}

func (st Store) path(owner identity.Owner) string {
	return filepath.Join(st.cfg.Dir, owner.String()+keyExt)
}
