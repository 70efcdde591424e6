package localcache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bartossh/Multisigner/identity"
	"github.com/bartossh/Multisigner/keypair"
	"github.com/bartossh/Multisigner/multisig"
)

func testWallet(t *testing.T) multisig.Wallet {
	t.Helper()
	id := identity.NewHandle()
	owners := make([]identity.Owner, 0, 2)
	for i := 0; i < 2; i++ {
		k, err := keypair.New()
		assert.Nil(t, err)
		owners = append(owners, k.Address())
	}
	return multisig.Wallet{
		ID:           id,
		Owners:       owners,
		Threshold:    2,
		Authority:    identity.DeriveAuthority(id),
		Transactions: []multisig.Transaction{},
	}
}

func TestPutAndRead(t *testing.T) {
	c := New(Config{MaxLen: 10})
	w := testWallet(t)
	trx := multisig.Transaction{ID: identity.NewHandle(), WalletID: w.ID, Proposer: w.Owners[0], Payload: []byte("upgrade")}
	w = w.WithTransaction(trx)

	err := c.Put(w)
	assert.Nil(t, err)
	assert.Len(t, c.Wallets(), 1)

	got, err := c.Wallet(w.ID)
	assert.Nil(t, err)
	assert.Equal(t, w, got)

	gotTrx, err := c.Transaction(w.ID, trx.ID)
	assert.Nil(t, err)
	assert.Equal(t, []byte("upgrade"), gotTrx.Payload)
}

func TestPutReplacesWholeAggregate(t *testing.T) {
	c := New(Config{MaxLen: 10})
	w := testWallet(t)
	assert.Nil(t, c.Put(w))

	trx := multisig.Transaction{ID: identity.NewHandle(), WalletID: w.ID, Proposer: w.Owners[0]}
	assert.Nil(t, c.Put(w.WithTransaction(trx)))
	assert.Len(t, c.Wallets(), 1)

	got, err := c.Wallet(w.ID)
	assert.Nil(t, err)
	assert.Len(t, got.Transactions, 1)
}

func TestReadersGetCopies(t *testing.T) {
	c := New(Config{MaxLen: 10})
	w := testWallet(t)
	trx := multisig.Transaction{ID: identity.NewHandle(), WalletID: w.ID, Proposer: w.Owners[0], Approvals: []identity.Owner{w.Owners[1]}}
	w = w.WithTransaction(trx)
	assert.Nil(t, c.Put(w))

	w.Owners[0] = w.Owners[1]
	got, err := c.Wallet(w.ID)
	assert.Nil(t, err)
	assert.NotEqual(t, got.Owners[0], got.Owners[1], "cache must not share memory with the caller")

	got.Transactions[0].Approvals[0] = got.Owners[0]
	again, err := c.Transaction(w.ID, trx.ID)
	assert.Nil(t, err)
	assert.Equal(t, got.Owners[1], again.Approvals[0])
}

func TestNotFound(t *testing.T) {
	c := New(Config{})
	w := testWallet(t)

	_, err := c.Wallet(w.ID)
	assert.ErrorIs(t, err, ErrWalletNotFound)
	_, err = c.Transaction(w.ID, identity.NewHandle())
	assert.ErrorIs(t, err, ErrWalletNotFound)

	assert.Nil(t, c.Put(w))
	_, err = c.Transaction(w.ID, identity.NewHandle())
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestCacheFull(t *testing.T) {
	c := New(Config{MaxLen: 2})
	first := testWallet(t)
	assert.Nil(t, c.Put(first))
	assert.Nil(t, c.Put(testWallet(t)))

	err := c.Put(testWallet(t))
	assert.ErrorIs(t, err, ErrCacheFull)

	err = c.Put(first)
	assert.Nil(t, err, "replacing a cached wallet does not need space")
}

func TestPutInvalidHandle(t *testing.T) {
	c := New(Config{})
	err := c.Put(multisig.Wallet{ID: "not-a-handle"})
	assert.ErrorIs(t, err, identity.ErrInvalidHandle)
	assert.Len(t, c.Wallets(), 0)
}

func TestWalletsInsertionOrder(t *testing.T) {
	c := New(Config{})
	ws := []multisig.Wallet{testWallet(t), testWallet(t), testWallet(t)}
	for _, w := range ws {
		assert.Nil(t, c.Put(w))
	}
	assert.Nil(t, c.Put(ws[0]))

	got := c.Wallets()
	assert.Len(t, got, 3)
	for i := range ws {
		assert.Equal(t, ws[i].ID, got[i].ID)
	}
}

func TestConcurrentPut(t *testing.T) {
	c := New(Config{MaxLen: 100})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := testWallet(t)
			assert.Nil(t, c.Put(w))
		}()
	}
	wg.Wait()
	assert.Len(t, c.Wallets(), 50)
}
