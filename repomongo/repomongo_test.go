//go:build integration

package repomongo

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartossh/Multisigner/identity"
	"github.com/bartossh/Multisigner/keypair"
	"github.com/bartossh/Multisigner/ledger"
	"github.com/bartossh/Multisigner/logging"
	"github.com/bartossh/Multisigner/multisig"
	"github.com/bartossh/Multisigner/notary"
)

func connect(t *testing.T, ctx context.Context) *DataBase {
	t.Helper()
	godotenv.Load("../.env")
	user := os.Getenv("MONGO_DB_USER")
	passwd := os.Getenv("MONGO_DB_PASSWORD")
	dbName := os.Getenv("MONGO_DB_NAME")

	db, err := Connect(ctx, DBConfig{
		ConnStr: fmt.Sprintf(
			"mongodb://%s:%s@localhost:27017/?authSource=admin&authMechanism=SCRAM-SHA-256&readPreference=primary&ssl=false&directConnection=true",
			user, passwd),
		DatabaseName: dbName,
	})
	require.Nil(t, err)
	require.Nil(t, db.Ping(ctx))
	require.Nil(t, db.RunMigration(ctx))
	t.Cleanup(func() { db.Disconnect(context.Background()) })
	return db
}

func TestStorageCycle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	db := connect(t, ctx)

	k, err := keypair.New()
	require.Nil(t, err)
	id := identity.NewHandle()
	w := ledger.WalletRecord{ID: id, Owners: []identity.Owner{k.Address()}, Threshold: 1, Authority: identity.DeriveAuthority(id)}
	assert.Nil(t, db.WriteWallet(ctx, w))
	assert.NotNil(t, db.WriteWallet(ctx, w))

	got, err := db.ReadWallet(ctx, id)
	assert.Nil(t, err)
	assert.Equal(t, w.Owners, got.Owners)
	assert.Equal(t, w.Authority, got.Authority)

	_, err = db.ReadWallet(ctx, identity.NewHandle())
	assert.ErrorIs(t, err, notary.ErrNotFound)

	orphan := ledger.TransactionRecord{ID: identity.NewHandle(), WalletID: identity.NewHandle()}
	assert.ErrorIs(t, db.WriteTransaction(ctx, orphan), notary.ErrNotFound)

	trxs := make([]identity.Handle, 0, 3)
	for i := 0; i < 3; i++ {
		trx := ledger.TransactionRecord{ID: identity.NewHandle(), WalletID: id, Proposer: k.Address(), Payload: []byte{byte(i)}}
		assert.Nil(t, db.WriteTransaction(ctx, trx))
		trxs = append(trxs, trx.ID)
	}
	list, err := db.ReadTransactions(ctx, id)
	assert.Nil(t, err)
	require.Len(t, list, 3)
	for i, trx := range list {
		assert.Equal(t, trxs[i], trx.ID)
	}

	assert.Nil(t, db.WriteApproval(ctx, trxs[0], k.Address()))
	assert.ErrorIs(t, db.WriteApproval(ctx, trxs[0], k.Address()), notary.ErrDuplicateApproval)
	assert.ErrorIs(t, db.WriteApproval(ctx, identity.NewHandle(), k.Address()), notary.ErrNotFound)

	assert.Nil(t, db.MarkExecuted(ctx, trxs[0]))
	assert.ErrorIs(t, db.MarkExecuted(ctx, trxs[0]), notary.ErrAlreadyExecuted)

	trx, err := db.ReadTransaction(ctx, trxs[0])
	assert.Nil(t, err)
	assert.True(t, trx.Executed)
	assert.Equal(t, []identity.Owner{k.Address()}, trx.Approvals)
}

func TestNotaryOverMongo(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	db := connect(t, ctx)
	n := notary.New(db, keypair.NewVerifier(), nil, logging.New(logging.Config{}, nil, nil))

	keys := make([]keypair.Keypair, 0, 2)
	owners := make([]identity.Owner, 0, 2)
	for i := 0; i < 2; i++ {
		k, err := keypair.New()
		require.Nil(t, err)
		keys = append(keys, k)
		owners = append(owners, k.Address())
	}
	w, err := n.CreateWallet(ctx, owners, 2)
	require.Nil(t, err)

	proof := ledger.Sign(&keys[0], ledger.ProposalMessage(w.ID, owners[0], "", []byte("upgrade")))
	trx, err := n.CreateTransaction(ctx, w.ID, owners[0], "", []byte("upgrade"), proof)
	require.Nil(t, err)

	_, err = n.Approve(ctx, w.ID, trx.ID, owners[1], ledger.Sign(&keys[1], ledger.ApprovalMessage(w.ID, trx.ID, owners[1])))
	require.Nil(t, err)

	_, err = n.Execute(ctx, w.ID, trx.ID, w.Authority, ledger.Sign(&keys[0], ledger.ExecutionMessage(w.ID, trx.ID, w.Authority)))
	assert.ErrorIs(t, err, multisig.ErrNotEnoughApprovals)
}
