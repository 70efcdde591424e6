package ledgerserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/bartossh/Multisigner/identity"
	"github.com/bartossh/Multisigner/ledger"
	"github.com/bartossh/Multisigner/logger"
	"github.com/bartossh/Multisigner/webhooks"
)

const (
	ApiVersion = "1.0.0"
	Header     = "Multisigner-Ledger"
)

const (
	walletGroupURL      = "/wallet"
	transactionGroupURL = "/transaction"
	webhookGroupURL     = "/webhook"
	createURL           = "/create"
	proposeURL          = "/propose"
	approveURL          = "/approve"
	executeURL          = "/execute"
	removeURL           = "/remove"
	walletIDParam       = "id"
	fetchURL            = "/:" + walletIDParam
)

const (
	AliveURL              = "/alive"                         // URL to check if server is alive and version.
	MetricsURL            = "/metrics"                       // URL to read server runtime metrics.
	CreateWalletURL       = walletGroupURL + createURL       // URL to create a multisig wallet.
	FetchWalletURL        = walletGroupURL + fetchURL        // URL to read the wallet with its transactions.
	ProposeTransactionURL = transactionGroupURL + proposeURL // URL to propose a transaction signed by the proposer.
	ApproveTransactionURL = transactionGroupURL + approveURL // URL to approve a transaction signed by the approver.
	ExecuteTransactionURL = transactionGroupURL + executeURL // URL to execute a transaction with the wallet authority.
	CreateWebhookURL      = webhookGroupURL + createURL      // URL to register a webhook notified about wallet events.
	RemoveWebhookURL      = webhookGroupURL + removeURL      // URL to remove a webhook of the wallet.
)

const (
	defaultBodyLimit = 4 * 1024 * 1024
	minBodyLimit     = 1024
	maxBodyLimit     = 15000000
)

var (
	ErrWrongPortSpecified = errors.New("port must be between 1 and 65535")
	ErrWrongMessageSize   = errors.New("message size must be between 1024 and 15000000")
)

// Config contains configuration of the server.
type Config struct {
	Port           int `yaml:"port"`             // Port to listen on.
	BodyLimitBytes int `yaml:"body_limit_bytes"` // Max size of the request body, payload included.
}

// Webhooks registers URLs notified about committed events of a wallet.
type Webhooks interface {
	CreateWebhook(ctx context.Context, walletID identity.Handle, h webhooks.Hook, proof ledger.Proof) error
	RemoveWebhook(ctx context.Context, walletID identity.Handle, hookURL string, proof ledger.Proof) error
}

type server struct {
	ledger ledger.Ledger
	hooks  Webhooks
	log    logger.Logger
}

// Run initializes routing and runs the server exposing the ledger. To stop the server cancel the context.
// Webhook endpoints are served only when hooks is not nil.
// It blocks until the context is canceled.
func Run(ctx context.Context, c Config, l ledger.Ledger, hooks Webhooks, log logger.Logger) error {
	var err error
	ctxx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := validateConfig(&c); err != nil {
		return err
	}

	router := newApp(c, l, hooks, log)

	listenErr := make(chan error, 1)
	go func() {
		if err := router.Listen(fmt.Sprintf("0.0.0.0:%v", c.Port)); err != nil {
			listenErr <- err
			cancel()
		}
	}()

	<-ctxx.Done()

	select {
	case errx := <-listenErr:
		log.Error(fmt.Sprintf("ledger server listen failed: %s", errx))
		err = errx
	default:
	}
	if errx := router.Shutdown(); errx != nil {
		err = errors.Join(err, errx)
	}

	return err
}

// NewApp creates the fiber application routing requests to the ledger.
// It is what Run listens with and can be served on any listener.
func NewApp(l ledger.Ledger, hooks Webhooks, log logger.Logger) *fiber.App {
	return newApp(Config{BodyLimitBytes: defaultBodyLimit}, l, hooks, log)
}

func newApp(c Config, l ledger.Ledger, hooks Webhooks, log logger.Logger) *fiber.App {
	s := &server{ledger: l, hooks: hooks, log: log}

	router := fiber.New(fiber.Config{
		Prefork:       false,
		CaseSensitive: true,
		StrictRouting: true,
		ReadTimeout:   time.Second * 5,
		WriteTimeout:  time.Second * 5,
		ServerHeader:  Header,
		AppName:       ApiVersion,
		BodyLimit:     c.BodyLimitBytes,
		Concurrency:   4096,
	})
	router.Use(recover.New())

	router.Get(AliveURL, s.alive)
	router.Get(MetricsURL, monitor.New(monitor.Config{Title: Header}))

	wallet := router.Group(walletGroupURL)
	wallet.Post(createURL, s.createWallet)
	wallet.Get(fetchURL, s.fetchWallet)

	transaction := router.Group(transactionGroupURL)
	transaction.Post(proposeURL, s.propose)
	transaction.Post(approveURL, s.approve)
	transaction.Post(executeURL, s.execute)

	if hooks != nil {
		webhook := router.Group(webhookGroupURL)
		webhook.Post(createURL, s.createWebhook)
		webhook.Post(removeURL, s.removeWebhook)
	}

	return router
}

// FetchWalletPath returns the path at which the wallet of the given ID is served.
func FetchWalletPath(id identity.Handle) string {
	return walletGroupURL + "/" + id.String()
}

func validateConfig(c *Config) error {
	if c.Port <= 0 || c.Port > 65535 {
		return ErrWrongPortSpecified
	}
	if c.BodyLimitBytes == 0 {
		c.BodyLimitBytes = defaultBodyLimit
	}
	if c.BodyLimitBytes < minBodyLimit || c.BodyLimitBytes > maxBodyLimit {
		return ErrWrongMessageSize
	}
	return nil
}
