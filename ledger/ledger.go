package ledger

import (
	"context"
	"errors"

	"github.com/bartossh/Multisigner/identity"
)

// ErrRejected is wrapped by every error a Ledger returns when it refuses an action.
// The remaining error chain carries the cause, which callers surface but do not interpret.
var ErrRejected = errors.New("rejected by ledger")

// Ledger is the authoritative system recording wallets and transactions.
// Every call blocks until the ledger acknowledges or rejects the action.
type Ledger interface {
	CreateWallet(ctx context.Context, owners []identity.Owner, threshold int) (WalletRecord, error)
	CreateTransaction(
		ctx context.Context, walletID identity.Handle, proposer identity.Owner, subject string, payload []byte, proof Proof,
	) (TransactionRecord, error)
	Approve(ctx context.Context, walletID, trxID identity.Handle, approver identity.Owner, proof Proof) (ApprovalAck, error)
	Execute(ctx context.Context, walletID, trxID identity.Handle, authority identity.Owner, proof Proof) (ExecutionAck, error)
	FetchWallet(ctx context.Context, walletID identity.Handle) (WalletRecord, error)
}

// Reject creates a rejection error with the given cause.
func Reject(cause error) error {
	return errors.Join(ErrRejected, cause)
}
