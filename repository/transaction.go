package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/bartossh/Multisigner/identity"
	"github.com/bartossh/Multisigner/ledger"
	"github.com/bartossh/Multisigner/notary"
)

const selectTransaction = `SELECT id, wallet_id, proposer, subject, payload, approvals, executed FROM wallet_transactions`

type scanner interface {
	Scan(dest ...any) error
}

// WriteTransaction writes the transaction.
func (db DataBase) WriteTransaction(ctx context.Context, trx ledger.TransactionRecord) error {
	_, err := db.inner.ExecContext(
		ctx,
		`INSERT INTO
			wallet_transactions(id, wallet_id, proposer, subject, payload, approvals, executed, created_at)
			VALUES($1, $2, $3, $4, $5, $6, $7, $8)`,
		trx.ID.String(), trx.WalletID.String(), trx.Proposer.String(), trx.Subject, nonNil(trx.Payload),
		pq.Array(ownersToStrings(trx.Approvals)), trx.Executed, time.Now().UnixMicro())
	if err != nil {
		return errors.Join(ErrInsertFailed, err)
	}
	return nil
}

// ReadTransaction reads the transaction of the given ID.
func (db DataBase) ReadTransaction(ctx context.Context, id identity.Handle) (ledger.TransactionRecord, error) {
	trx, err := scanTransaction(db.inner.QueryRowContext(ctx, selectTransaction+" WHERE id = $1", id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.TransactionRecord{}, notary.ErrNotFound
		}
		return ledger.TransactionRecord{}, errors.Join(ErrSelectFailed, err)
	}
	return trx, nil
}

// ReadTransactions reads all transactions of the wallet in the order they were written.
func (db DataBase) ReadTransactions(ctx context.Context, walletID identity.Handle) ([]ledger.TransactionRecord, error) {
	rows, err := db.inner.QueryContext(ctx, selectTransaction+" WHERE wallet_id = $1 ORDER BY seq", walletID.String())
	if err != nil {
		return nil, errors.Join(ErrSelectFailed, err)
	}
	defer rows.Close()

	trxs := make([]ledger.TransactionRecord, 0)
	for rows.Next() {
		trx, err := scanTransaction(rows)
		if err != nil {
			return nil, errors.Join(ErrScanFailed, err)
		}
		trxs = append(trxs, trx)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrSelectFailed, err)
	}
	return trxs, nil
}

// WriteApproval appends the approver to the transaction approvals unless the approver is already there.
func (db DataBase) WriteApproval(ctx context.Context, trxID identity.Handle, approver identity.Owner) error {
	res, err := db.inner.ExecContext(
		ctx,
		`UPDATE wallet_transactions SET approvals = array_append(approvals, $2::text)
			WHERE id = $1 AND NOT ($2::text = ANY(approvals))`,
		trxID.String(), approver.String())
	if err != nil {
		return errors.Join(ErrUpdateFailed, err)
	}
	return db.conditionalUpdateResult(ctx, res, trxID, notary.ErrDuplicateApproval)
}

// MarkExecuted marks the transaction as executed unless it already is.
func (db DataBase) MarkExecuted(ctx context.Context, trxID identity.Handle) error {
	res, err := db.inner.ExecContext(
		ctx, "UPDATE wallet_transactions SET executed = TRUE WHERE id = $1 AND executed = FALSE", trxID.String())
	if err != nil {
		return errors.Join(ErrUpdateFailed, err)
	}
	return db.conditionalUpdateResult(ctx, res, trxID, notary.ErrAlreadyExecuted)
}

// conditionalUpdateResult tells apart an update that did not match its condition from one of a missing transaction.
func (db DataBase) conditionalUpdateResult(ctx context.Context, res sql.Result, trxID identity.Handle, conflict error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Join(ErrUpdateFailed, err)
	}
	if affected > 0 {
		return nil
	}
	var exists bool
	if err := db.inner.QueryRowContext(
		ctx, "SELECT EXISTS(SELECT 1 FROM wallet_transactions WHERE id = $1)", trxID.String()).Scan(&exists); err != nil {
		return errors.Join(ErrSelectFailed, err)
	}
	if !exists {
		return notary.ErrNotFound
	}
	return conflict
}

func scanTransaction(row scanner) (ledger.TransactionRecord, error) {
	var trx ledger.TransactionRecord
	var id, walletID, proposer string
	var approvals []string
	if err := row.Scan(&id, &walletID, &proposer, &trx.Subject, &trx.Payload, pq.Array(&approvals), &trx.Executed); err != nil {
		return ledger.TransactionRecord{}, err
	}
	trx.ID = identity.Handle(id)
	trx.WalletID = identity.Handle(walletID)
	trx.Proposer = identity.Owner(proposer)
	trx.Approvals = stringsToOwners(approvals)
	return trx, nil
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
