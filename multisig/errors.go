package multisig

import "errors"

var (
	ErrInvalidThreshold   = errors.New("threshold must be greater than zero and less than or equal to the number of owners")
	ErrEmptyOwnerSet      = errors.New("owners set must be non empty")
	ErrDuplicateOwner     = errors.New("owners must be unique")
	ErrUnknownProposer    = errors.New("proposer is not an owner of the wallet")
	ErrUnknownApprover    = errors.New("approver is not an owner of the wallet")
	ErrAlreadyExecuted    = errors.New("transaction has already been executed")
	ErrNotEnoughApprovals = errors.New("not enough owners approved the transaction")
	ErrLedgerRejected     = errors.New("ledger rejected")
	ErrWalletMismatch     = errors.New("transaction belongs to another wallet")
)
