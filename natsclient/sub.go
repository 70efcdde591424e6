package natsclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/bartossh/Multisigner/logger"
	"github.com/bartossh/Multisigner/notary"
)

const eventsBufferSize = 64

// Subscriber provides functionality to pull messages from the pub/sub queue.
type Subscriber struct {
	*socket
}

// SubscriberConnect connects subscriber to the pub/sub queue using provided config
func SubscriberConnect(cfg Config) (*Subscriber, error) {
	sock, err := connect(cfg)
	if err != nil {
		return nil, err
	}
	return &Subscriber{socket: sock}, nil
}

// SubscribeEvents subscribes to ledger events. Returned channel is closed when the context is done.
// Malformed messages are logged and skipped, events that do not fit in the buffer are dropped.
func (s *Subscriber) SubscribeEvents(ctx context.Context, log logger.Logger) (<-chan notary.Event, error) {
	events := make(chan notary.Event, eventsBufferSize)
	var mux sync.Mutex
	var closed bool
	sub, err := s.conn.Subscribe(PubSubLedgerEvents, func(msg *nats.Msg) {
		e, err := decodeEvent(msg.Data)
		if err != nil {
			log.Error(fmt.Sprintf("ledger event subscriber: %s", err))
			return
		}
		mux.Lock()
		defer mux.Unlock()
		if closed {
			return
		}
		select {
		case events <- e:
		default:
			log.Warn(fmt.Sprintf("ledger event subscriber: buffer full, event [ %s ] dropped", e.Kind))
		}
	})
	if err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		if err := sub.Unsubscribe(); err != nil {
			log.Error(fmt.Sprintf("ledger event subscriber: unsubscribe failed: %s", err))
		}
		mux.Lock()
		closed = true
		close(events)
		mux.Unlock()
	}()
	return events, nil
}
