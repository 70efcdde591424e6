package notary

import (
	"time"

	"github.com/bartossh/Multisigner/identity"
)

// EventKind names a committed ledger state change.
type EventKind string

const (
	WalletCreated       EventKind = "wallet_created"
	TransactionProposed EventKind = "transaction_proposed"
	TransactionApproved EventKind = "transaction_approved"
	TransactionExecuted EventKind = "transaction_executed"
)

// Event describes a committed ledger state change.
type Event struct {
	Kind          EventKind       `json:"kind"`
	WalletID      identity.Handle `json:"wallet_id"`
	TransactionID identity.Handle `json:"transaction_id,omitempty"`
	Owner         identity.Owner  `json:"owner,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Publisher publishes committed events and reports how many subscribers missed the event.
type Publisher interface {
	Publish(e Event) (dropped int)
}

type nopPublisher struct{}

func (nopPublisher) Publish(Event) int { return 0 }
