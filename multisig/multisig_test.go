package multisig

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bartossh/Multisigner/identity"
	"github.com/bartossh/Multisigner/keypair"
)

func owners(t *testing.T, n int) []identity.Owner {
	t.Helper()
	result := make([]identity.Owner, 0, n)
	for i := 0; i < n; i++ {
		k, err := keypair.New()
		assert.Nil(t, err)
		result = append(result, k.Address())
	}
	return result
}

func testWallet(t *testing.T, n, threshold int) Wallet {
	t.Helper()
	id := identity.NewHandle()
	return Wallet{
		ID:        id,
		Owners:    owners(t, n),
		Threshold: threshold,
		Authority: identity.DeriveAuthority(id),
	}
}

func TestValidateOwnership(t *testing.T) {
	set := owners(t, 3)

	cases := []struct {
		name      string
		owners    []identity.Owner
		threshold int
		err       error
	}{
		{"empty owners", nil, 1, ErrEmptyOwnerSet},
		{"zero threshold", set, 0, ErrInvalidThreshold},
		{"negative threshold", set, -1, ErrInvalidThreshold},
		{"threshold above owners", set, 4, ErrInvalidThreshold},
		{"duplicate owner", append(append([]identity.Owner{}, set...), set[0]), 2, ErrDuplicateOwner},
		{"invalid owner", []identity.Owner{"not-an-address"}, 1, identity.ErrInvalidEncoding},
		{"derived authority owner", []identity.Owner{set[0], identity.DeriveAuthority(identity.NewHandle())}, 2, identity.ErrVersionMismatch},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.ErrorIs(t, ValidateOwnership(c.owners, c.threshold), c.err)
		})
	}

	for th := 1; th <= len(set); th++ {
		assert.Nil(t, ValidateOwnership(set, th))
	}
}

func TestWalletWithTransactionReplacesByIdentity(t *testing.T) {
	w := testWallet(t, 3, 2)
	first := Transaction{ID: identity.NewHandle(), WalletID: w.ID, Proposer: w.Owners[0], Payload: []byte("a")}
	second := Transaction{ID: identity.NewHandle(), WalletID: w.ID, Proposer: w.Owners[1], Payload: []byte("b")}

	w = w.WithTransaction(first).WithTransaction(second)
	assert.Len(t, w.Transactions, 2)
	assert.Equal(t, first.ID, w.Transactions[0].ID)
	assert.Equal(t, second.ID, w.Transactions[1].ID)

	approved := first.WithApprovals(w.Owners[2])
	updated := w.WithTransaction(approved)
	assert.Len(t, updated.Transactions, 2)
	assert.Equal(t, []identity.Owner{w.Owners[2]}, updated.Transactions[0].Approvals)
	assert.Equal(t, second, updated.Transactions[1])
	assert.Empty(t, w.Transactions[0].Approvals, "original wallet must not change")
	assert.Nil(t, updated.Validate())
}

func TestWithApprovalsIsIdempotent(t *testing.T) {
	w := testWallet(t, 3, 2)
	trx := Transaction{ID: identity.NewHandle(), WalletID: w.ID, Proposer: w.Owners[0]}

	once := trx.WithApprovals(w.Owners[1])
	twice := once.WithApprovals(w.Owners[1])
	assert.Len(t, once.Approvals, 1)
	assert.Len(t, twice.Approvals, 1)

	merged := twice.WithApprovals(w.Owners[2], w.Owners[1], w.Owners[2])
	assert.Equal(t, []identity.Owner{w.Owners[1], w.Owners[2]}, merged.Approvals)
	assert.Empty(t, trx.Approvals)
}

func TestCanExecute(t *testing.T) {
	w := testWallet(t, 3, 2)
	trx := Transaction{ID: identity.NewHandle(), WalletID: w.ID, Proposer: w.Owners[0]}
	assert.ErrorIs(t, trx.CanExecute(w.Threshold), ErrNotEnoughApprovals)

	trx = trx.WithApprovals(w.Owners[1])
	assert.ErrorIs(t, trx.CanExecute(w.Threshold), ErrNotEnoughApprovals)

	trx = trx.WithApprovals(w.Owners[2])
	assert.Nil(t, trx.CanExecute(w.Threshold))

	trx = trx.WithExecuted()
	assert.ErrorIs(t, trx.CanExecute(w.Threshold), ErrAlreadyExecuted)
}

func TestMergeIsMonotonic(t *testing.T) {
	w := testWallet(t, 3, 2)
	trx := Transaction{ID: identity.NewHandle(), WalletID: w.ID, Proposer: w.Owners[0]}

	local := trx.WithApprovals(w.Owners[1]).WithExecuted()
	remote := trx.WithApprovals(w.Owners[2])

	merged := local.Merge(remote)
	assert.True(t, merged.Executed)
	assert.Equal(t, []identity.Owner{w.Owners[1], w.Owners[2]}, merged.Approvals)

	merged = remote.Merge(local)
	assert.True(t, merged.Executed)
	assert.Len(t, merged.Approvals, 2)
}

func TestTransactionValidate(t *testing.T) {
	w := testWallet(t, 2, 1)
	stranger := owners(t, 1)[0]

	trx := Transaction{ID: identity.NewHandle(), WalletID: w.ID, Proposer: stranger}
	assert.ErrorIs(t, trx.Validate(&w), ErrUnknownProposer)

	trx.Proposer = w.Owners[0]
	trx.Approvals = []identity.Owner{stranger}
	assert.ErrorIs(t, trx.Validate(&w), ErrUnknownApprover)

	trx.Approvals = []identity.Owner{w.Owners[1], w.Owners[1]}
	assert.ErrorIs(t, trx.Validate(&w), ErrDuplicateOwner)

	trx.Approvals = []identity.Owner{w.Owners[1]}
	assert.Nil(t, trx.Validate(&w))

	trx.WalletID = identity.NewHandle()
	assert.ErrorIs(t, trx.Validate(&w), ErrWalletMismatch)
}

func TestWalletCopyIsDeep(t *testing.T) {
	w := testWallet(t, 2, 1)
	w = w.WithTransaction(Transaction{ID: identity.NewHandle(), WalletID: w.ID, Proposer: w.Owners[0], Payload: []byte("x")})

	cp := w.Copy()
	cp.Owners[0] = "changed"
	cp.Transactions[0].Payload[0] = 'y'
	assert.NotEqual(t, identity.Owner("changed"), w.Owners[0])
	assert.Equal(t, []byte("x"), w.Transactions[0].Payload)

	got, ok := w.Transaction(w.Transactions[0].ID)
	assert.True(t, ok)
	assert.Equal(t, w.Transactions[0], got)
	_, ok = w.Transaction(identity.NewHandle())
	assert.False(t, ok)
}
