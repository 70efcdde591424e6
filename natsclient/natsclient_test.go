//go:build integrations

package natsclient

import (
	"context"
	"testing"
	"time"

	"gotest.tools/assert"

	"github.com/bartossh/Multisigner/identity"
	"github.com/bartossh/Multisigner/logging"
	"github.com/bartossh/Multisigner/notary"
	"github.com/bartossh/Multisigner/reactive"
)

func testConfig(name string) Config {
	return Config{Address: "nats://127.0.0.1:4222", Name: name, Token: "D9pHfuiEQPXtqPqPdyxozi8kU2FlHqC0FlSRIzpwDI0="}
}

func TestPubSubEvents(t *testing.T) {
	log := logging.New(logging.Config{}, nil, nil)

	sub, err := SubscriberConnect(testConfig("subscriber"))
	assert.NilError(t, err)
	defer sub.Disconnect()

	pub, err := PublisherConnect(testConfig("publisher"))
	assert.NilError(t, err)
	defer pub.Disconnect()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := sub.SubscribeEvents(ctx, log)
	assert.NilError(t, err)

	obs := reactive.New[notary.Event](8)
	go pub.Forward(ctx, obs.Subscribe(), log)
	time.Sleep(100 * time.Millisecond)

	e := notary.Event{Kind: notary.WalletCreated, WalletID: identity.NewHandle(), CreatedAt: time.Now()}
	obs.Publish(e)

	select {
	case got := <-events:
		assert.Equal(t, got.Kind, e.Kind)
		assert.Equal(t, got.WalletID, e.WalletID)
	case <-time.After(5 * time.Second):
		t.Fatal("event not delivered")
	}

	cancel()
	for range events {
	}
}
