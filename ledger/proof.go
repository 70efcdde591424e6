package ledger

import (
	"bytes"
	"encoding/binary"

	"github.com/bartossh/Multisigner/identity"
)

const (
	domainPropose = "multisig/propose"
	domainApprove = "multisig/approve"
	domainExecute = "multisig/execute"

	domainCreateWebhook = "multisig/webhook/create"
	domainRemoveWebhook = "multisig/webhook/remove"
)

// Signer signs messages on behalf of an owner.
type Signer interface {
	Sign(message []byte) (digest [32]byte, signature []byte)
	Address() identity.Owner
}

// Proof binds an action to the owner that authorised it.
// The ledger verifies it, the coordinator only passes it through.
type Proof struct {
	Signer    identity.Owner `json:"signer"`
	Digest    [32]byte       `json:"digest"`
	Signature []byte         `json:"signature"`
}

// IsEmpty tells if the proof carries no signature.
func (p Proof) IsEmpty() bool {
	return len(p.Signature) == 0
}

// Sign creates a proof of the message signed by s.
func Sign(s Signer, message []byte) Proof {
	digest, signature := s.Sign(message)
	return Proof{Signer: s.Address(), Digest: digest, Signature: signature}
}

// ProposalMessage is the message a proposer signs to propose the payload against the wallet.
func ProposalMessage(walletID identity.Handle, proposer identity.Owner, subject string, payload []byte) []byte {
	return message(domainPropose, string(walletID), string(proposer), subject, string(payload))
}

// ApprovalMessage is the message an approver signs to approve the transaction.
func ApprovalMessage(walletID, trxID identity.Handle, approver identity.Owner) []byte {
	return message(domainApprove, string(walletID), string(trxID), string(approver))
}

// ExecutionMessage is the message an owner signs to execute the transaction with the wallet authority.
func ExecutionMessage(walletID, trxID identity.Handle, authority identity.Owner) []byte {
	return message(domainExecute, string(walletID), string(trxID), string(authority))
}

// CreateWebhookMessage is the message a wallet owner signs to notify the hook URL about wallet events.
func CreateWebhookMessage(walletID identity.Handle, hookURL string) []byte {
	return message(domainCreateWebhook, string(walletID), hookURL)
}

// RemoveWebhookMessage is the message a wallet owner signs to stop notifying the hook URL.
func RemoveWebhookMessage(walletID identity.Handle, hookURL string) []byte {
	return message(domainRemoveWebhook, string(walletID), hookURL)
}

// message writes every part prefixed with its length, so no two different part lists share an encoding.
func message(parts ...string) []byte {
	var buf bytes.Buffer
	var size [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(size[:], uint64(len(p)))
		buf.Write(size[:])
		buf.WriteString(p)
	}
	return buf.Bytes()
}
