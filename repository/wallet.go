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

// WriteWallet writes the wallet without its transactions.
func (db DataBase) WriteWallet(ctx context.Context, w ledger.WalletRecord) error {
	_, err := db.inner.ExecContext(
		ctx,
		`INSERT INTO wallets(id, owners, threshold, authority, created_at) VALUES($1, $2, $3, $4, $5)`,
		w.ID.String(), pq.Array(ownersToStrings(w.Owners)), w.Threshold, w.Authority.String(), time.Now().UnixMicro())
	if err != nil {
		return errors.Join(ErrInsertFailed, err)
	}
	return nil
}

// ReadWallet reads the wallet without its transactions.
func (db DataBase) ReadWallet(ctx context.Context, id identity.Handle) (ledger.WalletRecord, error) {
	w := ledger.WalletRecord{ID: id, Transactions: []ledger.TransactionRecord{}}
	var owners []string
	var authority string
	err := db.inner.QueryRowContext(ctx, "SELECT owners, threshold, authority FROM wallets WHERE id = $1", id.String()).
		Scan(pq.Array(&owners), &w.Threshold, &authority)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.WalletRecord{}, notary.ErrNotFound
		}
		return ledger.WalletRecord{}, errors.Join(ErrSelectFailed, err)
	}
	w.Owners = stringsToOwners(owners)
	w.Authority = identity.Owner(authority)
	return w, nil
}

func ownersToStrings(owners []identity.Owner) []string {
	result := make([]string, 0, len(owners))
	for _, o := range owners {
		result = append(result, o.String())
	}
	return result
}

func stringsToOwners(s []string) []identity.Owner {
	result := make([]identity.Owner, 0, len(s))
	for _, o := range s {
		result = append(result, identity.Owner(o))
	}
	return result
}
