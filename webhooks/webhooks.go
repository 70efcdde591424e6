package webhooks

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/exp/slices"

	"github.com/bartossh/Multisigner/httpclient"
	"github.com/bartossh/Multisigner/identity"
	"github.com/bartossh/Multisigner/ledger"
	"github.com/bartossh/Multisigner/logger"
	"github.com/bartossh/Multisigner/notary"
)

const postTimeout = time.Second * 5

var (
	ErrInvalidHookURL = errors.New("webhook url must be an absolute http or https url")
	ErrUnauthorized   = errors.New("webhook change is not signed by a wallet owner")
)

// EventMessage is the message posted to the webhook url about a committed ledger event of the wallet.
type EventMessage struct {
	Token string       `json:"token"` // Token given to the webhook by the webhooks creator to validate the message source.
	Event notary.Event `json:"event"`
}

// Hook is the hook that is used to trigger the webhook.
type Hook struct {
	URL   string `json:"url"`   // URL is a url of the webhook.
	Token string `json:"token"` // Token is the token added to the webhook to verify that the message comes from the valid source.
}

// EventSource provides committed ledger events, reactive.Subscriber is one.
type EventSource interface {
	Channel() <-chan notary.Event
	Cancel()
}

// WalletReader reads the wallet owners set, ledger.Ledger is one.
type WalletReader interface {
	FetchWallet(ctx context.Context, walletID identity.Handle) (ledger.WalletRecord, error)
}

// Verifier verifies that the message was signed by the owner.
type Verifier interface {
	Verify(message, signature []byte, digest [32]byte, owner identity.Owner) error
}

type hooks map[string]Hook

// Service provide webhook service that is used to create and remove webhooks of a wallet
// and to post committed events of the wallet to them.
// Only an owner of the wallet may create or remove its webhooks.
type Service struct {
	mux      sync.RWMutex
	buffer   map[identity.Handle]hooks
	wallets  WalletReader
	verifier Verifier
	log      logger.Logger
}

// New creates new instance of the webhook service.
func New(wallets WalletReader, verifier Verifier, l logger.Logger) *Service {
	return &Service{
		buffer:   make(map[identity.Handle]hooks),
		wallets:  wallets,
		verifier: verifier,
		log:      l,
	}
}

// CreateWebhook creates new webhook or updates existing one with the same URL for given wallet.
// The proof is a wallet owner signature of ledger.CreateWebhookMessage.
func (s *Service) CreateWebhook(ctx context.Context, walletID identity.Handle, h Hook, proof ledger.Proof) error {
	if err := walletID.Validate(); err != nil {
		return err
	}
	u, err := url.ParseRequestURI(h.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidHookURL
	}
	if err := s.authorize(ctx, walletID, proof, ledger.CreateWebhookMessage(walletID, h.URL)); err != nil {
		return err
	}

	s.mux.Lock()
	defer s.mux.Unlock()
	hs, ok := s.buffer[walletID]
	if !ok {
		hs = make(hooks)
		s.buffer[walletID] = hs
	}
	hs[h.URL] = h
	return nil
}

// RemoveWebhook removes webhook with given URL from the wallet.
// The proof is a wallet owner signature of ledger.RemoveWebhookMessage.
func (s *Service) RemoveWebhook(ctx context.Context, walletID identity.Handle, hookURL string, proof ledger.Proof) error {
	if err := walletID.Validate(); err != nil {
		return err
	}
	if err := s.authorize(ctx, walletID, proof, ledger.RemoveWebhookMessage(walletID, hookURL)); err != nil {
		return err
	}

	s.mux.Lock()
	defer s.mux.Unlock()
	hs, ok := s.buffer[walletID]
	if !ok {
		return nil
	}
	delete(hs, hookURL)
	if len(hs) == 0 {
		delete(s.buffer, walletID)
	}
	return nil
}

func (s *Service) authorize(ctx context.Context, walletID identity.Handle, proof ledger.Proof, message []byte) error {
	if proof.IsEmpty() {
		return errors.Join(ErrUnauthorized, errors.New("missing signature"))
	}
	w, err := s.wallets.FetchWallet(ctx, walletID)
	if err != nil {
		return errors.Join(ErrUnauthorized, err)
	}
	if !slices.Contains(w.Owners, proof.Signer) {
		return errors.Join(ErrUnauthorized, fmt.Errorf("%s is not an owner of wallet %s", proof.Signer, walletID))
	}
	if err := s.verifier.Verify(message, proof.Signature, proof.Digest, proof.Signer); err != nil {
		return errors.Join(ErrUnauthorized, err)
	}
	return nil
}

// Run posts every event read from the source to the webhooks of the event wallet
// until the context is done or the source is closed. It cancels the source when it returns.
func (s *Service) Run(ctx context.Context, src EventSource) {
	defer src.Cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-src.Channel():
			if !ok {
				return
			}
			s.post(e)
		}
	}
}

func (s *Service) post(e notary.Event) {
	s.mux.RLock()
	targets := make([]Hook, 0, len(s.buffer[e.WalletID]))
	for _, h := range s.buffer[e.WalletID] {
		targets = append(targets, h)
	}
	s.mux.RUnlock()

	for _, h := range targets {
		if err := httpclient.MakePost(postTimeout, h.URL, EventMessage{Token: h.Token, Event: e}, nil); err != nil {
			s.log.Error(fmt.Sprintf("webhook service error posting event [ %s ] to webhook url: %s, %s", e.Kind, h.URL, err))
		}
	}
}
