package webhooks

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartossh/Multisigner/identity"
	"github.com/bartossh/Multisigner/keypair"
	"github.com/bartossh/Multisigner/ledger"
	"github.com/bartossh/Multisigner/logging"
	"github.com/bartossh/Multisigner/memrepo"
	"github.com/bartossh/Multisigner/notary"
	"github.com/bartossh/Multisigner/reactive"
)

// fixture is a webhook service guarding webhooks of one wallet owned by owner.
type fixture struct {
	s        *Service
	n        *notary.Notary
	walletID identity.Handle
	owner    keypair.Keypair
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	log := logging.New(logging.Config{}, nil, nil)
	n := notary.New(memrepo.New(), keypair.NewVerifier(), nil, log)
	owner, err := keypair.New()
	require.Nil(t, err)
	w, err := n.CreateWallet(context.Background(), []identity.Owner{owner.Address()}, 1)
	require.Nil(t, err)
	return fixture{s: New(n, keypair.NewVerifier(), log), n: n, walletID: w.ID, owner: owner}
}

func (f fixture) create(hookURL, token string) error {
	proof := ledger.Sign(&f.owner, ledger.CreateWebhookMessage(f.walletID, hookURL))
	return f.s.CreateWebhook(context.Background(), f.walletID, Hook{URL: hookURL, Token: token}, proof)
}

func serveHook(t *testing.T) (string, <-chan EventMessage) {
	t.Helper()
	received := make(chan EventMessage, 16)
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Post("/hook", func(c *fiber.Ctx) error {
		var msg EventMessage
		if err := c.BodyParser(&msg); err != nil {
			return fiber.ErrBadRequest
		}
		received <- msg
		return c.SendStatus(fiber.StatusNoContent)
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.Nil(t, err)
	go app.Listener(ln)
	t.Cleanup(func() { app.Shutdown() })
	return "http://" + ln.Addr().String() + "/hook", received
}

func TestCreateWebhookValidation(t *testing.T) {
	f := newFixture(t)

	assert.Nil(t, f.create("http://localhost:8000/hook", ""))
	assert.ErrorIs(t, f.create("localhost:8000", ""), ErrInvalidHookURL)
	assert.ErrorIs(t, f.create("ftp://localhost/hook", ""), ErrInvalidHookURL)
	assert.NotNil(t, f.s.CreateWebhook(context.Background(), "", Hook{URL: "http://localhost:8000/hook"}, ledger.Proof{}))
}

func TestCreateWebhookRequiresOwnerProof(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hook := Hook{URL: "http://localhost:8000/hook"}

	err := f.s.CreateWebhook(ctx, f.walletID, hook, ledger.Proof{})
	assert.ErrorIs(t, err, ErrUnauthorized)

	stranger, err := keypair.New()
	require.Nil(t, err)
	err = f.s.CreateWebhook(ctx, f.walletID, hook, ledger.Sign(&stranger, ledger.CreateWebhookMessage(f.walletID, hook.URL)))
	assert.ErrorIs(t, err, ErrUnauthorized)

	otherURL := ledger.Sign(&f.owner, ledger.CreateWebhookMessage(f.walletID, "http://localhost:8000/other"))
	err = f.s.CreateWebhook(ctx, f.walletID, hook, otherURL)
	assert.ErrorIs(t, err, ErrUnauthorized)

	removal := ledger.Sign(&f.owner, ledger.RemoveWebhookMessage(f.walletID, hook.URL))
	err = f.s.CreateWebhook(ctx, f.walletID, hook, removal)
	assert.ErrorIs(t, err, ErrUnauthorized)

	unknown := identity.NewHandle()
	err = f.s.CreateWebhook(ctx, unknown, hook, ledger.Sign(&f.owner, ledger.CreateWebhookMessage(unknown, hook.URL)))
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.ErrorIs(t, err, notary.ErrNotFound)

	assert.Empty(t, f.s.buffer)
}

func TestRemoveWebhookRequiresOwnerProof(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hookURL := "http://localhost:8000/hook"
	require.Nil(t, f.create(hookURL, ""))

	stranger, err := keypair.New()
	require.Nil(t, err)
	err = f.s.RemoveWebhook(ctx, f.walletID, hookURL, ledger.Sign(&stranger, ledger.RemoveWebhookMessage(f.walletID, hookURL)))
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Len(t, f.s.buffer[f.walletID], 1)

	err = f.s.RemoveWebhook(ctx, f.walletID, hookURL, ledger.Sign(&f.owner, ledger.RemoveWebhookMessage(f.walletID, hookURL)))
	assert.Nil(t, err)
	assert.Empty(t, f.s.buffer)
}

func TestRunPostsEventsOfWallet(t *testing.T) {
	hookURL, received := serveHook(t)
	f := newFixture(t)
	watched, other := f.walletID, identity.NewHandle()
	require.Nil(t, f.create(hookURL, "secret"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := reactive.New[notary.Event](8)
	sub := events.Subscribe()
	done := make(chan struct{})
	go func() {
		f.s.Run(ctx, sub)
		close(done)
	}()

	events.Publish(notary.Event{Kind: notary.WalletCreated, WalletID: other, CreatedAt: time.Now()})
	events.Publish(notary.Event{Kind: notary.WalletCreated, WalletID: watched, CreatedAt: time.Now()})

	select {
	case msg := <-received:
		assert.Equal(t, "secret", msg.Token)
		assert.Equal(t, notary.WalletCreated, msg.Event.Kind)
		assert.Equal(t, watched, msg.Event.WalletID)
	case <-time.After(5 * time.Second):
		t.Fatal("webhook not called")
	}

	require.Nil(t, f.s.RemoveWebhook(ctx, watched, hookURL, ledger.Sign(&f.owner, ledger.RemoveWebhookMessage(watched, hookURL))))
	events.Publish(notary.Event{Kind: notary.TransactionProposed, WalletID: watched, CreatedAt: time.Now()})

	cancel()
	<-done
	assert.Empty(t, received)
	assert.Equal(t, 0, events.Len())
}
