package multisig

import (
	"errors"
	"fmt"

	"github.com/bartossh/Multisigner/identity"
)

// Wallet is an aggregate of owners jointly controlling the actions proposed against it.
// Threshold is fixed once the wallet is created and the transactions are only ever appended.
type Wallet struct {
	ID           identity.Handle  `json:"id"`
	Owners       []identity.Owner `json:"owners"`
	Threshold    int              `json:"threshold"`
	Authority    identity.Owner   `json:"authority"`
	Transactions []Transaction    `json:"transactions"`
}

// ValidateOwnership checks the owners set and threshold a wallet can be created with.
func ValidateOwnership(owners []identity.Owner, threshold int) error {
	if len(owners) == 0 {
		return ErrEmptyOwnerSet
	}
	if threshold < 1 || threshold > len(owners) {
		return errors.Join(ErrInvalidThreshold, fmt.Errorf("threshold %d, owners %d", threshold, len(owners)))
	}
	seen := make(map[identity.Owner]struct{}, len(owners))
	for _, o := range owners {
		if err := o.Validate(); err != nil {
			return fmt.Errorf("owner %q: %w", o, err)
		}
		if o.IsAuthority() {
			return errors.Join(identity.ErrVersionMismatch, fmt.Errorf("owner %s is a derived authority and cannot sign", o))
		}
		if _, ok := seen[o]; ok {
			return errors.Join(ErrDuplicateOwner, fmt.Errorf("owner %s", o))
		}
		seen[o] = struct{}{}
	}
	return nil
}

// Validate checks wallet invariants and invariants of every transaction against the wallet.
func (w *Wallet) Validate() error {
	if err := w.ID.Validate(); err != nil {
		return err
	}
	if err := ValidateOwnership(w.Owners, w.Threshold); err != nil {
		return err
	}
	for i := range w.Transactions {
		if err := w.Transactions[i].Validate(w); err != nil {
			return fmt.Errorf("transaction %s: %w", w.Transactions[i].ID, err)
		}
	}
	return nil
}

// HasOwner tells if the owner belongs to the wallet owners set.
func (w *Wallet) HasOwner(o identity.Owner) bool {
	for _, owner := range w.Owners {
		if owner == o {
			return true
		}
	}
	return false
}

// Transaction returns the transaction with given ID.
func (w *Wallet) Transaction(id identity.Handle) (Transaction, bool) {
	for _, trx := range w.Transactions {
		if trx.ID == id {
			return trx.Copy(), true
		}
	}
	return Transaction{}, false
}

// WithTransaction returns a copy of the wallet where the transaction of the same ID is replaced
// by trx, or trx is appended when the wallet does not have it yet. Other transactions are untouched.
func (w Wallet) WithTransaction(trx Transaction) Wallet {
	cp := w.Copy()
	for i := range cp.Transactions {
		if cp.Transactions[i].ID == trx.ID {
			cp.Transactions[i] = trx.Copy()
			return cp
		}
	}
	cp.Transactions = append(cp.Transactions, trx.Copy())
	return cp
}

// Copy makes a deep copy of the wallet.
func (w Wallet) Copy() Wallet {
	cp := w
	cp.Owners = append([]identity.Owner(nil), w.Owners...)
	cp.Transactions = make([]Transaction, 0, len(w.Transactions))
	for _, trx := range w.Transactions {
		cp.Transactions = append(cp.Transactions, trx.Copy())
	}
	return cp
}
