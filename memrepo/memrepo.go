package memrepo

import (
	"context"
	"fmt"
	"sync"

	"github.com/bartossh/Multisigner/identity"
	"github.com/bartossh/Multisigner/ledger"
	"github.com/bartossh/Multisigner/notary"
)

// Store keeps the ledger state in memory. It is meant for tests and single node development setups.
type Store struct {
	mux          sync.RWMutex
	wallets      map[identity.Handle]ledger.WalletRecord
	transactions map[identity.Handle]ledger.TransactionRecord
	byWallet     map[identity.Handle][]identity.Handle
}

// New creates empty Store.
func New() *Store {
	return &Store{
		wallets:      make(map[identity.Handle]ledger.WalletRecord),
		transactions: make(map[identity.Handle]ledger.TransactionRecord),
		byWallet:     make(map[identity.Handle][]identity.Handle),
	}
}

var _ notary.Storage = (*Store)(nil)

// WriteWallet writes the wallet record without its transactions.
func (s *Store) WriteWallet(_ context.Context, w ledger.WalletRecord) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if _, ok := s.wallets[w.ID]; ok {
		return fmt.Errorf("wallet %s already exists", w.ID)
	}
	w.Owners = append([]identity.Owner(nil), w.Owners...)
	w.Transactions = nil
	s.wallets[w.ID] = w
	return nil
}

// ReadWallet reads the wallet record without its transactions.
func (s *Store) ReadWallet(_ context.Context, id identity.Handle) (ledger.WalletRecord, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	w, ok := s.wallets[id]
	if !ok {
		return ledger.WalletRecord{}, notary.ErrNotFound
	}
	w.Owners = append([]identity.Owner(nil), w.Owners...)
	w.Transactions = []ledger.TransactionRecord{}
	return w, nil
}

// WriteTransaction writes the transaction record.
func (s *Store) WriteTransaction(_ context.Context, trx ledger.TransactionRecord) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if _, ok := s.wallets[trx.WalletID]; !ok {
		return fmt.Errorf("wallet %s: %w", trx.WalletID, notary.ErrNotFound)
	}
	if _, ok := s.transactions[trx.ID]; ok {
		return fmt.Errorf("transaction %s already exists", trx.ID)
	}
	s.transactions[trx.ID] = copyTransaction(trx)
	s.byWallet[trx.WalletID] = append(s.byWallet[trx.WalletID], trx.ID)
	return nil
}

// ReadTransaction reads the transaction record.
func (s *Store) ReadTransaction(_ context.Context, id identity.Handle) (ledger.TransactionRecord, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	trx, ok := s.transactions[id]
	if !ok {
		return ledger.TransactionRecord{}, notary.ErrNotFound
	}
	return copyTransaction(trx), nil
}

// ReadTransactions reads all wallet transactions in the order they were written.
func (s *Store) ReadTransactions(_ context.Context, walletID identity.Handle) ([]ledger.TransactionRecord, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	ids := s.byWallet[walletID]
	trxs := make([]ledger.TransactionRecord, 0, len(ids))
	for _, id := range ids {
		trxs = append(trxs, copyTransaction(s.transactions[id]))
	}
	return trxs, nil
}

// WriteApproval appends the approver to the transaction approvals.
func (s *Store) WriteApproval(_ context.Context, trxID identity.Handle, approver identity.Owner) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	trx, ok := s.transactions[trxID]
	if !ok {
		return notary.ErrNotFound
	}
	for _, a := range trx.Approvals {
		if a == approver {
			return notary.ErrDuplicateApproval
		}
	}
	trx.Approvals = append(trx.Approvals, approver)
	s.transactions[trxID] = trx
	return nil
}

// MarkExecuted marks the transaction as executed.
func (s *Store) MarkExecuted(_ context.Context, trxID identity.Handle) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	trx, ok := s.transactions[trxID]
	if !ok {
		return notary.ErrNotFound
	}
	if trx.Executed {
		return notary.ErrAlreadyExecuted
	}
	trx.Executed = true
	s.transactions[trxID] = trx
	return nil
}

func copyTransaction(trx ledger.TransactionRecord) ledger.TransactionRecord {
	trx.Payload = append([]byte(nil), trx.Payload...)
	trx.Approvals = append([]identity.Owner{}, trx.Approvals...)
	return trx
}
