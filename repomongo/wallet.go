package repomongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/bartossh/Multisigner/identity"
	"github.com/bartossh/Multisigner/ledger"
	"github.com/bartossh/Multisigner/notary"
)

type walletDocument struct {
	ID        identity.Handle  `bson:"_id"`
	Owners    []identity.Owner `bson:"owners"`
	Threshold int              `bson:"threshold"`
	Authority identity.Owner   `bson:"authority"`
	CreatedAt int64            `bson:"created_at"`
}

// WriteWallet writes the wallet without its transactions.
func (db DataBase) WriteWallet(ctx context.Context, w ledger.WalletRecord) error {
	doc := walletDocument{
		ID:        w.ID,
		Owners:    w.Owners,
		Threshold: w.Threshold,
		Authority: w.Authority,
		CreatedAt: time.Now().UnixMicro(),
	}
	_, err := db.inner.Collection(walletsCollection).InsertOne(ctx, doc)
	return err
}

// ReadWallet reads the wallet without its transactions.
func (db DataBase) ReadWallet(ctx context.Context, id identity.Handle) (ledger.WalletRecord, error) {
	var doc walletDocument
	if err := db.inner.Collection(walletsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ledger.WalletRecord{}, notary.ErrNotFound
		}
		return ledger.WalletRecord{}, err
	}
	return ledger.WalletRecord{
		ID:           doc.ID,
		Owners:       doc.Owners,
		Threshold:    doc.Threshold,
		Authority:    doc.Authority,
		Transactions: []ledger.TransactionRecord{},
	}, nil
}
