package notary_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartossh/Multisigner/identity"
	"github.com/bartossh/Multisigner/keypair"
	"github.com/bartossh/Multisigner/ledger"
	"github.com/bartossh/Multisigner/logging"
	"github.com/bartossh/Multisigner/memrepo"
	"github.com/bartossh/Multisigner/multisig"
	"github.com/bartossh/Multisigner/notary"
	"github.com/bartossh/Multisigner/reactive"
)

type fixture struct {
	n      *notary.Notary
	keys   []keypair.Keypair
	owners []identity.Owner
	events *reactive.Subscriber[notary.Event]
}

func newFixture(t *testing.T, numOwners int) fixture {
	t.Helper()
	obs := reactive.New[notary.Event](64)
	f := fixture{
		n:      notary.New(memrepo.New(), keypair.NewVerifier(), obs, logging.New(logging.Config{}, nil, nil)),
		events: obs.Subscribe(),
	}
	t.Cleanup(f.events.Cancel)
	for i := 0; i < numOwners; i++ {
		k, err := keypair.New()
		require.Nil(t, err)
		f.keys = append(f.keys, k)
		f.owners = append(f.owners, k.Address())
	}
	return f
}

func (f fixture) propose(t *testing.T, w ledger.WalletRecord, proposer int, payload string) ledger.TransactionRecord {
	t.Helper()
	k := f.keys[proposer]
	proof := ledger.Sign(&k, ledger.ProposalMessage(w.ID, k.Address(), "text", []byte(payload)))
	trx, err := f.n.CreateTransaction(context.Background(), w.ID, k.Address(), "text", []byte(payload), proof)
	require.Nil(t, err)
	return trx
}

func (f fixture) approve(w ledger.WalletRecord, trx ledger.TransactionRecord, approver int) (ledger.ApprovalAck, error) {
	k := f.keys[approver]
	proof := ledger.Sign(&k, ledger.ApprovalMessage(w.ID, trx.ID, k.Address()))
	return f.n.Approve(context.Background(), w.ID, trx.ID, k.Address(), proof)
}

func (f fixture) execute(w ledger.WalletRecord, trx ledger.TransactionRecord, signer int) (ledger.ExecutionAck, error) {
	k := f.keys[signer]
	proof := ledger.Sign(&k, ledger.ExecutionMessage(w.ID, trx.ID, w.Authority))
	return f.n.Execute(context.Background(), w.ID, trx.ID, w.Authority, proof)
}

func TestCreateWallet(t *testing.T) {
	f := newFixture(t, 3)
	w, err := f.n.CreateWallet(context.Background(), f.owners, 2)
	require.Nil(t, err)
	assert.Equal(t, f.owners, w.Owners)
	assert.Equal(t, 2, w.Threshold)
	assert.Equal(t, identity.DeriveAuthority(w.ID), w.Authority)

	e := <-f.events.Channel()
	assert.Equal(t, notary.WalletCreated, e.Kind)
	assert.Equal(t, w.ID, e.WalletID)
	assert.False(t, e.CreatedAt.IsZero())
}

func TestCreateWalletRejected(t *testing.T) {
	f := newFixture(t, 3)
	cases := []struct {
		name      string
		owners    []identity.Owner
		threshold int
		err       error
	}{
		{"threshold above owners", f.owners, 4, multisig.ErrInvalidThreshold},
		{"zero threshold", f.owners, 0, multisig.ErrInvalidThreshold},
		{"empty owners", nil, 1, multisig.ErrEmptyOwnerSet},
		{"duplicate owners", []identity.Owner{f.owners[0], f.owners[0]}, 1, multisig.ErrDuplicateOwner},
		{"derived authority owner", []identity.Owner{f.owners[0], identity.DeriveAuthority(identity.NewHandle())}, 2, identity.ErrVersionMismatch},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := f.n.CreateWallet(context.Background(), c.owners, c.threshold)
			assert.ErrorIs(t, err, ledger.ErrRejected)
			assert.ErrorIs(t, err, c.err)
		})
	}
}

func TestLifecycle(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	w, err := f.n.CreateWallet(ctx, f.owners, 2)
	require.Nil(t, err)

	trx := f.propose(t, w, 0, "upgrade")
	assert.Empty(t, trx.Approvals, "proposing is not approving")
	assert.False(t, trx.Executed)

	ack, err := f.approve(w, trx, 1)
	require.Nil(t, err)
	assert.Equal(t, []identity.Owner{f.owners[1]}, ack.Approvals)

	_, err = f.execute(w, trx, 0)
	assert.ErrorIs(t, err, ledger.ErrRejected)
	assert.ErrorIs(t, err, multisig.ErrNotEnoughApprovals)

	ack, err = f.approve(w, trx, 2)
	require.Nil(t, err)
	assert.Equal(t, []identity.Owner{f.owners[1], f.owners[2]}, ack.Approvals)

	exec, err := f.execute(w, trx, 0)
	require.Nil(t, err)
	assert.True(t, exec.Executed)

	_, err = f.execute(w, trx, 1)
	assert.ErrorIs(t, err, multisig.ErrAlreadyExecuted)

	_, err = f.approve(w, trx, 0)
	assert.ErrorIs(t, err, multisig.ErrAlreadyExecuted)

	fetched, err := f.n.FetchWallet(ctx, w.ID)
	require.Nil(t, err)
	require.Len(t, fetched.Transactions, 1)
	assert.True(t, fetched.Transactions[0].Executed)
	assert.Equal(t, []byte("upgrade"), fetched.Transactions[0].Payload)
}

func TestProposeRejected(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	w, err := f.n.CreateWallet(ctx, f.owners[:2], 1)
	require.Nil(t, err)

	stranger := f.keys[2]
	proof := ledger.Sign(&stranger, ledger.ProposalMessage(w.ID, stranger.Address(), "", nil))
	_, err = f.n.CreateTransaction(ctx, w.ID, stranger.Address(), "", nil, proof)
	assert.ErrorIs(t, err, multisig.ErrUnknownProposer)

	_, err = f.n.CreateTransaction(ctx, w.ID, f.owners[0], "", nil, ledger.Proof{})
	assert.ErrorIs(t, err, notary.ErrUnauthorized)

	owner := f.keys[1]
	proof = ledger.Sign(&owner, ledger.ProposalMessage(w.ID, f.owners[0], "", nil))
	_, err = f.n.CreateTransaction(ctx, w.ID, f.owners[0], "", nil, proof)
	assert.ErrorIs(t, err, notary.ErrUnauthorized, "owner 1 cannot propose on behalf of owner 0")

	proposer := f.keys[0]
	proof = ledger.Sign(&proposer, ledger.ProposalMessage(w.ID, proposer.Address(), "", []byte("a")))
	_, err = f.n.CreateTransaction(ctx, w.ID, proposer.Address(), "", []byte("b"), proof)
	assert.ErrorIs(t, err, notary.ErrUnauthorized, "proof must cover the payload")

	_, err = f.n.CreateTransaction(ctx, identity.NewHandle(), proposer.Address(), "", nil, proof)
	assert.ErrorIs(t, err, notary.ErrNotFound)
}

func TestApproveRejected(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	w, err := f.n.CreateWallet(ctx, f.owners[:2], 2)
	require.Nil(t, err)
	trx := f.propose(t, w, 0, "payload")

	_, err = f.approve(w, trx, 2)
	assert.ErrorIs(t, err, multisig.ErrUnknownApprover)

	_, err = f.approve(w, trx, 1)
	require.Nil(t, err)
	_, err = f.approve(w, trx, 1)
	assert.ErrorIs(t, err, notary.ErrDuplicateApproval)

	other, err := f.n.CreateWallet(ctx, f.owners[:2], 1)
	require.Nil(t, err)
	_, err = f.approve(other, trx, 0)
	assert.ErrorIs(t, err, multisig.ErrWalletMismatch)

	k := f.keys[0]
	replayed := ledger.Sign(&k, ledger.ApprovalMessage(w.ID, identity.NewHandle(), k.Address()))
	_, err = f.n.Approve(ctx, w.ID, trx.ID, k.Address(), replayed)
	assert.ErrorIs(t, err, notary.ErrUnauthorized)
}

func TestExecuteRejected(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	w, err := f.n.CreateWallet(ctx, f.owners[:2], 1)
	require.Nil(t, err)
	trx := f.propose(t, w, 0, "payload")
	_, err = f.approve(w, trx, 1)
	require.Nil(t, err)

	k := f.keys[0]
	forged := identity.DeriveAuthority(identity.NewHandle())
	proof := ledger.Sign(&k, ledger.ExecutionMessage(w.ID, trx.ID, forged))
	_, err = f.n.Execute(ctx, w.ID, trx.ID, forged, proof)
	assert.ErrorIs(t, err, notary.ErrInvalidAuthority)

	_, err = f.execute(w, trx, 2)
	assert.ErrorIs(t, err, notary.ErrUnauthorized, "stranger cannot execute")

	_, err = f.n.Execute(ctx, w.ID, trx.ID, w.Authority, ledger.Proof{})
	assert.ErrorIs(t, err, notary.ErrUnauthorized)

	_, err = f.execute(w, trx, 1)
	assert.Nil(t, err)
}

func TestConcurrentApprovalsRacingForThreshold(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	w, err := f.n.CreateWallet(ctx, f.owners, 3)
	require.Nil(t, err)
	trx := f.propose(t, w, 0, "payload")

	var wg sync.WaitGroup
	for i := range f.keys {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.approve(w, trx, i)
			assert.Nil(t, err)
		}(i)
	}
	wg.Wait()

	fetched, err := f.n.FetchWallet(ctx, w.ID)
	require.Nil(t, err)
	assert.ElementsMatch(t, f.owners, fetched.Transactions[0].Approvals)

	results := make(chan error, len(f.keys))
	for i := range f.keys {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.execute(w, trx, i)
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var succeeded int
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, multisig.ErrAlreadyExecuted)
	}
	assert.Equal(t, 1, succeeded)
}
