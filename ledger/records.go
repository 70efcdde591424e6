package ledger

import (
	"github.com/bartossh/Multisigner/identity"
	"github.com/bartossh/Multisigner/multisig"
)

// WalletRecord is the ledger view of a wallet with transactions in proposal order.
type WalletRecord struct {
	ID           identity.Handle     `json:"id"`
	Owners       []identity.Owner    `json:"owners"`
	Threshold    int                 `json:"threshold"`
	Authority    identity.Owner      `json:"authority"`
	Transactions []TransactionRecord `json:"transactions"`
}

// TransactionRecord is the ledger view of a transaction.
type TransactionRecord struct {
	ID        identity.Handle  `json:"id"`
	WalletID  identity.Handle  `json:"wallet_id"`
	Proposer  identity.Owner   `json:"proposer"`
	Subject   string           `json:"subject"`
	Payload   []byte           `json:"payload"`
	Approvals []identity.Owner `json:"approvals"`
	Executed  bool             `json:"executed"`
}

// ApprovalAck acknowledges an approval and carries all approvals the ledger holds for the transaction.
type ApprovalAck struct {
	WalletID      identity.Handle  `json:"wallet_id"`
	TransactionID identity.Handle  `json:"transaction_id"`
	Approver      identity.Owner   `json:"approver"`
	Approvals     []identity.Owner `json:"approvals"`
}

// ExecutionAck acknowledges the execution of a transaction.
type ExecutionAck struct {
	WalletID      identity.Handle `json:"wallet_id"`
	TransactionID identity.Handle `json:"transaction_id"`
	Executed      bool            `json:"executed"`
}

// Wallet converts the record to the wallet aggregate.
func (r WalletRecord) Wallet() multisig.Wallet {
	w := multisig.Wallet{
		ID:           r.ID,
		Owners:       append([]identity.Owner(nil), r.Owners...),
		Threshold:    r.Threshold,
		Authority:    r.Authority,
		Transactions: make([]multisig.Transaction, 0, len(r.Transactions)),
	}
	for _, t := range r.Transactions {
		w.Transactions = append(w.Transactions, t.Transaction())
	}
	return w
}

// Transaction converts the record to the transaction aggregate.
func (r TransactionRecord) Transaction() multisig.Transaction {
	return multisig.Transaction{
		ID:        r.ID,
		WalletID:  r.WalletID,
		Proposer:  r.Proposer,
		Subject:   r.Subject,
		Payload:   append([]byte(nil), r.Payload...),
		Approvals: append([]identity.Owner(nil), r.Approvals...),
		Executed:  r.Executed,
	}
}

// NewWalletRecord creates the record from the wallet aggregate.
func NewWalletRecord(w multisig.Wallet) WalletRecord {
	r := WalletRecord{
		ID:           w.ID,
		Owners:       append([]identity.Owner(nil), w.Owners...),
		Threshold:    w.Threshold,
		Authority:    w.Authority,
		Transactions: make([]TransactionRecord, 0, len(w.Transactions)),
	}
	for _, t := range w.Transactions {
		r.Transactions = append(r.Transactions, NewTransactionRecord(t))
	}
	return r
}

// NewTransactionRecord creates the record from the transaction aggregate.
func NewTransactionRecord(t multisig.Transaction) TransactionRecord {
	return TransactionRecord{
		ID:        t.ID,
		WalletID:  t.WalletID,
		Proposer:  t.Proposer,
		Subject:   t.Subject,
		Payload:   append([]byte(nil), t.Payload...),
		Approvals: append([]identity.Owner(nil), t.Approvals...),
		Executed:  t.Executed,
	}
}
