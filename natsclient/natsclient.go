package natsclient

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/nats-io/nats.go"
)

// PubSubLedgerEvents is the subject committed ledger events travel on.
const PubSubLedgerEvents string = "multisig.events"

const (
	defaultReconnectWait = 2 * time.Second
	defaultMaxReconnects = 60
)

var ErrInvalidAddress = errors.New("nats server address must be a nats or tls url with a host")

// Config contains all arguments required to connect to the nats service.
type Config struct {
	Address              string `yaml:"server_address"`
	Name                 string `yaml:"client_name"`
	Token                string `yaml:"token"`
	ReconnectWaitSeconds int    `yaml:"reconnect_wait_seconds"` // Pause between reconnect attempts, defaults to 2s.
	MaxReconnects        int    `yaml:"max_reconnects"`         // Reconnect attempts before the connection is closed, defaults to 60.
}

func (c Config) options() ([]nats.Option, error) {
	u, err := url.Parse(c.Address)
	if err != nil {
		return nil, errors.Join(ErrInvalidAddress, err)
	}
	if (u.Scheme != "nats" && u.Scheme != "tls") || u.Host == "" {
		return nil, errors.Join(ErrInvalidAddress, fmt.Errorf("got %q", c.Address))
	}

	wait := time.Duration(c.ReconnectWaitSeconds) * time.Second
	if wait <= 0 {
		wait = defaultReconnectWait
	}
	maxReconnects := c.MaxReconnects
	if maxReconnects == 0 {
		maxReconnects = defaultMaxReconnects
	}

	opts := []nats.Option{
		nats.Name(c.Name),
		nats.ReconnectWait(wait),
		nats.MaxReconnects(maxReconnects),
	}
	if c.Token != "" {
		opts = append(opts, nats.Token(c.Token))
	}
	return opts, nil
}

type socket struct {
	conn *nats.Conn
}

func connect(cfg Config) (*socket, error) {
	opts, err := cfg.options()
	if err != nil {
		return nil, err
	}
	conn, err := nats.Connect(cfg.Address, opts...)
	if err != nil {
		return nil, err
	}
	return &socket{conn: conn}, nil
}

// Disconnect drains subscriptions and pending publications, then closes the connection.
func (s *socket) Disconnect() error {
	return s.conn.Drain()
}
