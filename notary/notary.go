package notary

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bartossh/Multisigner/identity"
	"github.com/bartossh/Multisigner/ledger"
	"github.com/bartossh/Multisigner/logger"
	"github.com/bartossh/Multisigner/multisig"
)

var (
	ErrUnauthorized     = errors.New("proof is not valid for the action")
	ErrInvalidAuthority = errors.New("derived authority does not match the wallet")
)

// Verifier verifies that the message was signed by the owner.
type Verifier interface {
	Verify(message, signature []byte, digest [32]byte, owner identity.Owner) error
}

// Notary is the authoritative ledger. It enforces who may propose, who may approve
// and when execution is legal, whatever a client believes about the state.
// State changes are serialised, reads are not.
type Notary struct {
	mux      sync.Mutex
	storage  Storage
	verifier Verifier
	pub      Publisher
	log      logger.Logger
	now      func() time.Time
}

// New creates Notary. Publisher may be nil.
func New(storage Storage, verifier Verifier, pub Publisher, log logger.Logger) *Notary {
	if pub == nil {
		pub = nopPublisher{}
	}
	return &Notary{storage: storage, verifier: verifier, pub: pub, log: log, now: time.Now}
}

var _ ledger.Ledger = (*Notary)(nil)

// CreateWallet records a new wallet with the owners set and threshold.
func (n *Notary) CreateWallet(ctx context.Context, owners []identity.Owner, threshold int) (ledger.WalletRecord, error) {
	if err := multisig.ValidateOwnership(owners, threshold); err != nil {
		return ledger.WalletRecord{}, ledger.Reject(err)
	}

	id := identity.NewHandle()
	w := ledger.NewWalletRecord(multisig.Wallet{
		ID:        id,
		Owners:    owners,
		Threshold: threshold,
		Authority: identity.DeriveAuthority(id),
	})

	n.mux.Lock()
	defer n.mux.Unlock()

	if err := n.storage.WriteWallet(ctx, w); err != nil {
		return ledger.WalletRecord{}, err
	}
	n.publish(Event{Kind: WalletCreated, WalletID: id})
	n.log.Info(fmt.Sprintf("wallet [ %s ] created with [ %d ] owners and threshold [ %d ]", id, len(owners), threshold))
	return w, nil
}

// CreateTransaction records a transaction proposed by one of the wallet owners.
func (n *Notary) CreateTransaction(
	ctx context.Context, walletID identity.Handle, proposer identity.Owner, subject string, payload []byte, proof ledger.Proof,
) (ledger.TransactionRecord, error) {
	n.mux.Lock()
	defer n.mux.Unlock()

	w, err := n.readWallet(ctx, walletID)
	if err != nil {
		return ledger.TransactionRecord{}, err
	}
	if !hasOwner(w.Owners, proposer) {
		return ledger.TransactionRecord{}, ledger.Reject(fmt.Errorf("%w: %s", multisig.ErrUnknownProposer, proposer))
	}
	if err := n.verify(proof, proposer, ledger.ProposalMessage(walletID, proposer, subject, payload)); err != nil {
		return ledger.TransactionRecord{}, err
	}

	trx := ledger.TransactionRecord{
		ID:        identity.NewHandle(),
		WalletID:  walletID,
		Proposer:  proposer,
		Subject:   subject,
		Payload:   append([]byte(nil), payload...),
		Approvals: []identity.Owner{},
	}
	if err := n.storage.WriteTransaction(ctx, trx); err != nil {
		return ledger.TransactionRecord{}, err
	}
	n.publish(Event{Kind: TransactionProposed, WalletID: walletID, TransactionID: trx.ID, Owner: proposer})
	n.log.Info(fmt.Sprintf("transaction [ %s ] proposed for wallet [ %s ] by [ %s ]", trx.ID, walletID, proposer))
	return trx, nil
}

// Approve records the approval of an owner. An owner can approve a transaction only once.
func (n *Notary) Approve(
	ctx context.Context, walletID, trxID identity.Handle, approver identity.Owner, proof ledger.Proof,
) (ledger.ApprovalAck, error) {
	n.mux.Lock()
	defer n.mux.Unlock()

	w, trx, err := n.readWalletTransaction(ctx, walletID, trxID)
	if err != nil {
		return ledger.ApprovalAck{}, err
	}
	if !hasOwner(w.Owners, approver) {
		return ledger.ApprovalAck{}, ledger.Reject(fmt.Errorf("%w: %s", multisig.ErrUnknownApprover, approver))
	}
	if err := n.verify(proof, approver, ledger.ApprovalMessage(walletID, trxID, approver)); err != nil {
		return ledger.ApprovalAck{}, err
	}
	if trx.Executed {
		return ledger.ApprovalAck{}, ledger.Reject(multisig.ErrAlreadyExecuted)
	}
	if hasOwner(trx.Approvals, approver) {
		return ledger.ApprovalAck{}, ledger.Reject(ErrDuplicateApproval)
	}

	if err := n.storage.WriteApproval(ctx, trxID, approver); err != nil {
		if errors.Is(err, ErrDuplicateApproval) {
			return ledger.ApprovalAck{}, ledger.Reject(err)
		}
		return ledger.ApprovalAck{}, err
	}
	trx, err = n.storage.ReadTransaction(ctx, trxID)
	if err != nil {
		return ledger.ApprovalAck{}, err
	}

	n.publish(Event{Kind: TransactionApproved, WalletID: walletID, TransactionID: trxID, Owner: approver})
	n.log.Info(fmt.Sprintf(
		"transaction [ %s ] approved by [ %s ], approvals [ %d / %d ]", trxID, approver, len(trx.Approvals), w.Threshold))
	return ledger.ApprovalAck{
		WalletID:      walletID,
		TransactionID: trxID,
		Approver:      approver,
		Approvals:     trx.Approvals,
	}, nil
}

// Execute marks the transaction executed when enough owners approved it.
// The authority must be the one derived from the wallet and the proof must come from a wallet owner.
func (n *Notary) Execute(
	ctx context.Context, walletID, trxID identity.Handle, authority identity.Owner, proof ledger.Proof,
) (ledger.ExecutionAck, error) {
	n.mux.Lock()
	defer n.mux.Unlock()

	w, trx, err := n.readWalletTransaction(ctx, walletID, trxID)
	if err != nil {
		return ledger.ExecutionAck{}, err
	}
	if authority != w.Authority || authority != identity.DeriveAuthority(walletID) {
		return ledger.ExecutionAck{}, ledger.Reject(ErrInvalidAuthority)
	}
	if !hasOwner(w.Owners, proof.Signer) {
		return ledger.ExecutionAck{}, ledger.Reject(errors.Join(ErrUnauthorized, errors.New("signer is not a wallet owner")))
	}
	if err := n.verify(proof, proof.Signer, ledger.ExecutionMessage(walletID, trxID, authority)); err != nil {
		return ledger.ExecutionAck{}, err
	}
	if trx.Executed {
		return ledger.ExecutionAck{}, ledger.Reject(multisig.ErrAlreadyExecuted)
	}
	if len(trx.Approvals) < w.Threshold {
		return ledger.ExecutionAck{}, ledger.Reject(
			fmt.Errorf("%w: %d of %d", multisig.ErrNotEnoughApprovals, len(trx.Approvals), w.Threshold))
	}

	if err := n.storage.MarkExecuted(ctx, trxID); err != nil {
		if errors.Is(err, ErrAlreadyExecuted) {
			return ledger.ExecutionAck{}, ledger.Reject(multisig.ErrAlreadyExecuted)
		}
		return ledger.ExecutionAck{}, err
	}

	n.publish(Event{Kind: TransactionExecuted, WalletID: walletID, TransactionID: trxID, Owner: proof.Signer})
	n.log.Info(fmt.Sprintf("transaction [ %s ] of wallet [ %s ] executed", trxID, walletID))
	return ledger.ExecutionAck{WalletID: walletID, TransactionID: trxID, Executed: true}, nil
}

// FetchWallet reads the wallet with all its transactions in proposal order.
func (n *Notary) FetchWallet(ctx context.Context, walletID identity.Handle) (ledger.WalletRecord, error) {
	w, err := n.readWallet(ctx, walletID)
	if err != nil {
		return ledger.WalletRecord{}, err
	}
	trxs, err := n.storage.ReadTransactions(ctx, walletID)
	if err != nil {
		return ledger.WalletRecord{}, err
	}
	w.Transactions = trxs
	return w, nil
}

func (n *Notary) readWallet(ctx context.Context, walletID identity.Handle) (ledger.WalletRecord, error) {
	if err := walletID.Validate(); err != nil {
		return ledger.WalletRecord{}, ledger.Reject(err)
	}
	w, err := n.storage.ReadWallet(ctx, walletID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ledger.WalletRecord{}, ledger.Reject(fmt.Errorf("wallet %s: %w", walletID, err))
		}
		return ledger.WalletRecord{}, err
	}
	return w, nil
}

func (n *Notary) readWalletTransaction(
	ctx context.Context, walletID, trxID identity.Handle,
) (ledger.WalletRecord, ledger.TransactionRecord, error) {
	w, err := n.readWallet(ctx, walletID)
	if err != nil {
		return ledger.WalletRecord{}, ledger.TransactionRecord{}, err
	}
	if err := trxID.Validate(); err != nil {
		return ledger.WalletRecord{}, ledger.TransactionRecord{}, ledger.Reject(err)
	}
	trx, err := n.storage.ReadTransaction(ctx, trxID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ledger.WalletRecord{}, ledger.TransactionRecord{}, ledger.Reject(fmt.Errorf("transaction %s: %w", trxID, err))
		}
		return ledger.WalletRecord{}, ledger.TransactionRecord{}, err
	}
	if trx.WalletID != walletID {
		return ledger.WalletRecord{}, ledger.TransactionRecord{}, ledger.Reject(multisig.ErrWalletMismatch)
	}
	return w, trx, nil
}

func (n *Notary) verify(proof ledger.Proof, signer identity.Owner, message []byte) error {
	if proof.IsEmpty() {
		return ledger.Reject(errors.Join(ErrUnauthorized, errors.New("missing signature")))
	}
	if proof.Signer != signer {
		return ledger.Reject(errors.Join(ErrUnauthorized, fmt.Errorf("signed by %s, expected %s", proof.Signer, signer)))
	}
	if err := n.verifier.Verify(message, proof.Signature, proof.Digest, signer); err != nil {
		return ledger.Reject(errors.Join(ErrUnauthorized, err))
	}
	return nil
}

func (n *Notary) publish(e Event) {
	e.CreatedAt = n.now()
	if dropped := n.pub.Publish(e); dropped > 0 {
		n.log.Warn(fmt.Sprintf("event [ %s ] missed by [ %d ] subscribers", e.Kind, dropped))
	}
}

func hasOwner(owners []identity.Owner, o identity.Owner) bool {
	for _, owner := range owners {
		if owner == o {
			return true
		}
	}
	return false
}
