package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/bartossh/Multisigner/identity"
	"github.com/bartossh/Multisigner/ledger"
)

// Operation labels.
const (
	OpCreateWallet      = "create_wallet"
	OpCreateTransaction = "create_transaction"
	OpApprove           = "approve"
	OpExecute           = "execute"
	OpFetchWallet       = "fetch_wallet"
)

// Ledger decorates a ledger.Ledger recording every call in Measurements.
type Ledger struct {
	next ledger.Ledger
	m    *Measurements
}

// Instrument wraps l so every call is measured.
func Instrument(l ledger.Ledger, m *Measurements) *Ledger {
	return &Ledger{next: l, m: m}
}

func (l *Ledger) record(op string, start time.Time, err error) {
	outcome := OutcomeOK
	switch {
	case errors.Is(err, ledger.ErrRejected):
		outcome = OutcomeRejected
	case err != nil:
		outcome = OutcomeError
	}
	l.m.Record(op, outcome, time.Since(start))
}

// CreateWallet implements ledger.Ledger.
func (l *Ledger) CreateWallet(ctx context.Context, owners []identity.Owner, threshold int) (ledger.WalletRecord, error) {
	start := time.Now()
	w, err := l.next.CreateWallet(ctx, owners, threshold)
	l.record(OpCreateWallet, start, err)
	return w, err
}

// CreateTransaction implements ledger.Ledger.
func (l *Ledger) CreateTransaction(
	ctx context.Context, walletID identity.Handle, proposer identity.Owner, subject string, payload []byte, proof ledger.Proof,
) (ledger.TransactionRecord, error) {
	start := time.Now()
	trx, err := l.next.CreateTransaction(ctx, walletID, proposer, subject, payload, proof)
	l.record(OpCreateTransaction, start, err)
	return trx, err
}

// Approve implements ledger.Ledger.
func (l *Ledger) Approve(
	ctx context.Context, walletID, trxID identity.Handle, approver identity.Owner, proof ledger.Proof,
) (ledger.ApprovalAck, error) {
	start := time.Now()
	ack, err := l.next.Approve(ctx, walletID, trxID, approver, proof)
	l.record(OpApprove, start, err)
	return ack, err
}

// Execute implements ledger.Ledger.
func (l *Ledger) Execute(
	ctx context.Context, walletID, trxID identity.Handle, authority identity.Owner, proof ledger.Proof,
) (ledger.ExecutionAck, error) {
	start := time.Now()
	ack, err := l.next.Execute(ctx, walletID, trxID, authority, proof)
	l.record(OpExecute, start, err)
	return ack, err
}

// FetchWallet implements ledger.Ledger.
func (l *Ledger) FetchWallet(ctx context.Context, walletID identity.Handle) (ledger.WalletRecord, error) {
	start := time.Now()
	w, err := l.next.FetchWallet(ctx, walletID)
	l.record(OpFetchWallet, start, err)
	return w, err
}
