package multisig

import (
	"fmt"

	"github.com/bartossh/Multisigner/identity"
)

// Transaction is an action proposed against a wallet. Approvals only grow
// and once executed the transaction stays executed.
// Proposing does not count as approving.
type Transaction struct {
	ID        identity.Handle  `json:"id"`
	WalletID  identity.Handle  `json:"wallet_id"`
	Proposer  identity.Owner   `json:"proposer"`
	Subject   string           `json:"subject"`
	Payload   []byte           `json:"payload"`
	Approvals []identity.Owner `json:"approvals"`
	Executed  bool             `json:"executed"`
}

// Validate checks the transaction against the owning wallet.
func (t *Transaction) Validate(w *Wallet) error {
	if t.WalletID != w.ID {
		return ErrWalletMismatch
	}
	if !w.HasOwner(t.Proposer) {
		return fmt.Errorf("%w: %s", ErrUnknownProposer, t.Proposer)
	}
	seen := make(map[identity.Owner]struct{}, len(t.Approvals))
	for _, a := range t.Approvals {
		if !w.HasOwner(a) {
			return fmt.Errorf("%w: %s", ErrUnknownApprover, a)
		}
		if _, ok := seen[a]; ok {
			return fmt.Errorf("%w: approval of %s", ErrDuplicateOwner, a)
		}
		seen[a] = struct{}{}
	}
	return nil
}

// HasApproved tells if the owner approved the transaction.
func (t *Transaction) HasApproved(o identity.Owner) bool {
	for _, a := range t.Approvals {
		if a == o {
			return true
		}
	}
	return false
}

// WithApprovals returns a copy of the transaction with approvers merged in.
// Merge is keyed by approver so applying the same approval again is a no-op.
func (t Transaction) WithApprovals(approvers ...identity.Owner) Transaction {
	cp := t.Copy()
	for _, a := range approvers {
		if cp.HasApproved(a) {
			continue
		}
		cp.Approvals = append(cp.Approvals, a)
	}
	return cp
}

// CanExecute tells if the transaction collected enough approvals and is not executed yet.
func (t *Transaction) CanExecute(threshold int) error {
	if t.Executed {
		return ErrAlreadyExecuted
	}
	if len(t.Approvals) < threshold {
		return fmt.Errorf("%w: %d of %d", ErrNotEnoughApprovals, len(t.Approvals), threshold)
	}
	return nil
}

// WithExecuted returns a copy of the transaction marked as executed.
func (t Transaction) WithExecuted() Transaction {
	cp := t.Copy()
	cp.Executed = true
	return cp
}

// Merge combines two views of the same transaction. The result has the union
// of approvals and is executed if any of the views is.
func (t Transaction) Merge(other Transaction) Transaction {
	cp := t.WithApprovals(other.Approvals...)
	cp.Executed = t.Executed || other.Executed
	return cp
}

// Copy makes a deep copy of the transaction.
func (t Transaction) Copy() Transaction {
	cp := t
	cp.Payload = append([]byte(nil), t.Payload...)
	cp.Approvals = append([]identity.Owner(nil), t.Approvals...)
	return cp
}
