package notary

import (
	"context"
	"errors"

	"github.com/bartossh/Multisigner/identity"
	"github.com/bartossh/Multisigner/ledger"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateApproval = errors.New("owner has already approved the transaction")
	ErrAlreadyExecuted   = errors.New("transaction already marked as executed")
)

// Storage persists the authoritative ledger state.
// Wallet records are read and written without their transactions.
// WriteApproval must return ErrDuplicateApproval when the approver is already recorded
// and MarkExecuted must return ErrAlreadyExecuted when the transaction is executed,
// so that two ledger nodes sharing the storage can not both succeed.
type Storage interface {
	WriteWallet(ctx context.Context, w ledger.WalletRecord) error
	ReadWallet(ctx context.Context, id identity.Handle) (ledger.WalletRecord, error)
	WriteTransaction(ctx context.Context, trx ledger.TransactionRecord) error
	ReadTransaction(ctx context.Context, id identity.Handle) (ledger.TransactionRecord, error)
	ReadTransactions(ctx context.Context, walletID identity.Handle) ([]ledger.TransactionRecord, error)
	WriteApproval(ctx context.Context, trxID identity.Handle, approver identity.Owner) error
	MarkExecuted(ctx context.Context, trxID identity.Handle) error
}
