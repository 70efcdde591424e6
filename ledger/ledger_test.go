package ledger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bartossh/Multisigner/identity"
	"github.com/bartossh/Multisigner/keypair"
	"github.com/bartossh/Multisigner/multisig"
)

func TestMessagesAreBoundToAction(t *testing.T) {
	w, trx := identity.NewHandle(), identity.NewHandle()
	k, err := keypair.New()
	assert.Nil(t, err)

	approve := ApprovalMessage(w, trx, k.Address())
	execute := ExecutionMessage(w, trx, k.Address())
	assert.NotEqual(t, approve, execute)
	assert.NotEqual(t, approve, ApprovalMessage(trx, w, k.Address()))
	assert.Equal(t, approve, ApprovalMessage(w, trx, k.Address()))

	assert.NotEqual(t,
		ProposalMessage(w, k.Address(), "ab", []byte("c")),
		ProposalMessage(w, k.Address(), "a", []byte("bc")))
}

func TestSignProof(t *testing.T) {
	k, err := keypair.New()
	assert.Nil(t, err)

	msg := ApprovalMessage(identity.NewHandle(), identity.NewHandle(), k.Address())
	p := Sign(&k, msg)
	assert.False(t, p.IsEmpty())
	assert.Equal(t, k.Address(), p.Signer)
	assert.Nil(t, keypair.NewVerifier().Verify(msg, p.Signature, p.Digest, p.Signer))
	assert.True(t, Proof{}.IsEmpty())
}

func TestRecordConversion(t *testing.T) {
	k, err := keypair.New()
	assert.Nil(t, err)
	id := identity.NewHandle()
	w := multisig.Wallet{
		ID:        id,
		Owners:    []identity.Owner{k.Address()},
		Threshold: 1,
		Authority: identity.DeriveAuthority(id),
	}
	w = w.WithTransaction(multisig.Transaction{
		ID:        identity.NewHandle(),
		WalletID:  id,
		Proposer:  k.Address(),
		Subject:   "text",
		Payload:   []byte("upgrade"),
		Approvals: []identity.Owner{k.Address()},
	})

	got := NewWalletRecord(w).Wallet()
	assert.Equal(t, w, got)
}

func TestReject(t *testing.T) {
	cause := errors.New("insufficient signatures")
	err := Reject(cause)
	assert.ErrorIs(t, err, ErrRejected)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "insufficient signatures")
}
