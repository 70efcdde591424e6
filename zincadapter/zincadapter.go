package zincadapter

import (
	"errors"
	"fmt"
	"time"

	"github.com/bartossh/Multisigner/httpclient"
)

const (
	healthz              = "/healthz"
	createDocumentWithId = "/api/%s/_doc"
)

const timeout = time.Second * 5

var (
	ErrEmptyAddressProvided    = errors.New("empty zinc server address provided")
	ErrZincServerNotResponding = errors.New("zinc server not responding on given address")
	ErrZincServerWriteFailed   = errors.New("zinc server write failed")
)

// Config contains configuration for logger back-end
type Config struct {
	Address string `yaml:"address"` // logger back-end server address
	Index   string `yaml:"index"`   // unique index per service to easy search for logs by the service
	Token   string `yaml:"token"`   // authorization header value, e.g. Basic token
}

type message struct {
	Log string `json:"log"`
}

// ZincClient provides a client that sends logs to the zincsearch backend
type ZincClient struct {
	address   string
	indexName string
	headers   []httpclient.Header
}

// New creates a new ZincClient.
func New(cfg Config) (ZincClient, error) {
	if cfg.Address == "" {
		return ZincClient{}, ErrEmptyAddressProvided
	}
	if err := httpclient.MakeGet(timeout, cfg.Address+healthz, nil); err != nil {
		return ZincClient{}, errors.Join(ErrZincServerNotResponding, err)
	}
	z := ZincClient{address: cfg.Address, indexName: cfg.Index}
	if cfg.Token != "" {
		z.headers = append(z.headers, httpclient.Header{Key: "Authorization", Value: cfg.Token})
	}
	return z, nil
}

// Write satisfies io.Writer abstraction.
func (z *ZincClient) Write(p []byte) (n int, err error) {
	url := z.address + fmt.Sprintf(createDocumentWithId, z.indexName)
	if err := httpclient.MakePost(timeout, url, message{Log: string(p)}, nil, z.headers...); err != nil {
		return 0, errors.Join(ErrZincServerWriteFailed, err)
	}
	return len(p), nil
}
