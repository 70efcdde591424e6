package natsclient

import (
	"context"
	"fmt"

	"github.com/bartossh/Multisigner/logger"
	"github.com/bartossh/Multisigner/notary"
)

// EventSource provides committed ledger events, reactive.Subscriber is one.
type EventSource interface {
	Channel() <-chan notary.Event
	Cancel()
}

// Publisher provides functionality to push messages to the pub/sub queue
type Publisher struct {
	*socket
}

// PublisherConnect connects publisher to the pub/sub queue using provided config
func PublisherConnect(cfg Config) (*Publisher, error) {
	sock, err := connect(cfg)
	if err != nil {
		return nil, err
	}
	return &Publisher{socket: sock}, nil
}

// PublishEvent publishes the ledger event.
func (p *Publisher) PublishEvent(e notary.Event) error {
	msg, err := encodeEvent(e)
	if err != nil {
		return err
	}
	return p.conn.Publish(PubSubLedgerEvents, msg)
}

// Forward publishes every event read from the source until the context is done or the source is closed.
// It cancels the source when it returns.
func (p *Publisher) Forward(ctx context.Context, src EventSource, log logger.Logger) {
	defer src.Cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-src.Channel():
			if !ok {
				return
			}
			if err := p.PublishEvent(e); err != nil {
				log.Error(fmt.Sprintf("publishing event [ %s ] of wallet [ %s ] failed: %s", e.Kind, e.WalletID, err))
			}
		}
	}
}
