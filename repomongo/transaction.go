package repomongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bartossh/Multisigner/identity"
	"github.com/bartossh/Multisigner/ledger"
	"github.com/bartossh/Multisigner/notary"
)

type transactionDocument struct {
	ID        identity.Handle  `bson:"_id"`
	WalletID  identity.Handle  `bson:"wallet_id"`
	Proposer  identity.Owner   `bson:"proposer"`
	Subject   string           `bson:"subject"`
	Payload   []byte           `bson:"payload"`
	Approvals []identity.Owner `bson:"approvals"`
	Executed  bool             `bson:"executed"`
	CreatedAt int64            `bson:"created_at"`
}

func (doc transactionDocument) record() ledger.TransactionRecord {
	approvals := doc.Approvals
	if approvals == nil {
		approvals = []identity.Owner{}
	}
	return ledger.TransactionRecord{
		ID:        doc.ID,
		WalletID:  doc.WalletID,
		Proposer:  doc.Proposer,
		Subject:   doc.Subject,
		Payload:   doc.Payload,
		Approvals: approvals,
		Executed:  doc.Executed,
	}
}

// WriteTransaction writes the transaction of an existing wallet.
func (db DataBase) WriteTransaction(ctx context.Context, trx ledger.TransactionRecord) error {
	count, err := db.inner.Collection(walletsCollection).CountDocuments(ctx, bson.M{"_id": trx.WalletID})
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("wallet %s: %w", trx.WalletID, notary.ErrNotFound)
	}

	approvals := trx.Approvals
	if approvals == nil {
		approvals = []identity.Owner{}
	}
	doc := transactionDocument{
		ID:        trx.ID,
		WalletID:  trx.WalletID,
		Proposer:  trx.Proposer,
		Subject:   trx.Subject,
		Payload:   trx.Payload,
		Approvals: approvals,
		Executed:  trx.Executed,
		CreatedAt: time.Now().UnixMicro(),
	}
	_, err = db.inner.Collection(transactionsCollection).InsertOne(ctx, doc)
	return err
}

// ReadTransaction reads the transaction of the given ID.
func (db DataBase) ReadTransaction(ctx context.Context, id identity.Handle) (ledger.TransactionRecord, error) {
	var doc transactionDocument
	if err := db.inner.Collection(transactionsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ledger.TransactionRecord{}, notary.ErrNotFound
		}
		return ledger.TransactionRecord{}, err
	}
	return doc.record(), nil
}

// ReadTransactions reads all transactions of the wallet in the order they were written.
func (db DataBase) ReadTransactions(ctx context.Context, walletID identity.Handle) ([]ledger.TransactionRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	curs, err := db.inner.Collection(transactionsCollection).Find(ctx, bson.M{"wallet_id": walletID}, opts)
	if err != nil {
		return nil, err
	}

	var docs []transactionDocument
	if err := curs.All(ctx, &docs); err != nil {
		return nil, err
	}
	trxs := make([]ledger.TransactionRecord, 0, len(docs))
	for _, doc := range docs {
		trxs = append(trxs, doc.record())
	}
	return trxs, nil
}

// WriteApproval pushes the approver to the transaction approvals unless the approver is already there.
func (db DataBase) WriteApproval(ctx context.Context, trxID identity.Handle, approver identity.Owner) error {
	res, err := db.inner.Collection(transactionsCollection).UpdateOne(
		ctx,
		bson.M{"_id": trxID, "approvals": bson.M{"$ne": approver}},
		bson.M{"$push": bson.M{"approvals": approver}},
	)
	if err != nil {
		return err
	}
	return db.conditionalUpdateResult(ctx, res, trxID, notary.ErrDuplicateApproval)
}

// MarkExecuted marks the transaction as executed unless it already is.
func (db DataBase) MarkExecuted(ctx context.Context, trxID identity.Handle) error {
	res, err := db.inner.Collection(transactionsCollection).UpdateOne(
		ctx,
		bson.M{"_id": trxID, "executed": false},
		bson.M{"$set": bson.M{"executed": true}},
	)
	if err != nil {
		return err
	}
	return db.conditionalUpdateResult(ctx, res, trxID, notary.ErrAlreadyExecuted)
}

func (db DataBase) conditionalUpdateResult(ctx context.Context, res *mongo.UpdateResult, trxID identity.Handle, conflict error) error {
	if res.MatchedCount > 0 {
		return nil
	}
	count, err := db.inner.Collection(transactionsCollection).CountDocuments(ctx, bson.M{"_id": trxID})
	if err != nil {
		return err
	}
	if count == 0 {
		return notary.ErrNotFound
	}
	return conflict
}
