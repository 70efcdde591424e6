package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"

	"github.com/bartossh/Multisigner/configuration"
	"github.com/bartossh/Multisigner/keypair"
	"github.com/bartossh/Multisigner/ledgerserver"
	"github.com/bartossh/Multisigner/logger"
	"github.com/bartossh/Multisigner/logging"
	"github.com/bartossh/Multisigner/logo"
	"github.com/bartossh/Multisigner/memrepo"
	"github.com/bartossh/Multisigner/natsclient"
	"github.com/bartossh/Multisigner/notary"
	"github.com/bartossh/Multisigner/reactive"
	"github.com/bartossh/Multisigner/repomongo"
	"github.com/bartossh/Multisigner/repository"
	"github.com/bartossh/Multisigner/stdoutwriter"
	"github.com/bartossh/Multisigner/telemetry"
	"github.com/bartossh/Multisigner/webhooks"
	"github.com/bartossh/Multisigner/zincadapter"
)

const usage = `runs the ledger node that records multisig wallets and notarizes their transactions`

const eventsBufferSize = 256

const connectTimeout = time.Second * 10

func main() {
	logo.Display()

	var file, envFile string
	configurator := func() (configuration.Configuration, error) {
		if file == "" {
			return configuration.Configuration{}, errors.New("please specify configuration file path with -c <path to file>")
		}

		cfg, err := configuration.Read(file)
		if err != nil {
			return cfg, err
		}
		return cfg, cfg.LoadEnv(envFile)
	}

	app := &cli.App{
		Name:  "ledgerd",
		Usage: usage,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Load configuration from `FILE`",
				Destination: &file,
			},
			&cli.StringFlag{
				Name:        "env",
				Aliases:     []string{"e"},
				Usage:       "Load secrets from env `FILE`",
				Value:       ".env",
				Destination: &envFile,
			},
		},
		Action: func(_ *cli.Context) error {
			cfg, err := configurator()
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	if err := app.Run(os.Args); err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
}

func run(cfg configuration.Configuration) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	go func() {
		select {
		case <-c:
			cancel()
		case <-ctx.Done():
		}
	}()

	callbackOnErr := func(err error) {
		fmt.Println("Error with logger: ", err)
	}

	callbackOnFatal := func(err error) {
		panic(fmt.Sprintf("Error with logger: %s", err))
	}

	var writer io.Writer
	zinc, err := zincadapter.New(cfg.ZincLogger)
	switch {
	case err == nil:
		writer = &zinc
	case errors.Is(err, zincadapter.ErrEmptyAddressProvided):
		writer = stdoutwriter.New()
	default:
		return err
	}
	log := logging.New(cfg.Logging, callbackOnErr, callbackOnFatal, writer)

	storage, closeStorage, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStorage()

	events := reactive.New[notary.Event](eventsBufferSize)

	if cfg.Nats.Address != "" {
		pub, err := natsclient.PublisherConnect(cfg.Nats)
		if err != nil {
			return fmt.Errorf("connecting to nats: %w", err)
		}
		defer func() {
			if err := pub.Disconnect(); err != nil {
				log.Error(err.Error())
			}
		}()
		go pub.Forward(ctx, events.Subscribe(), log)
		log.Info(fmt.Sprintf("forwarding ledger events to [ %s ]", cfg.Nats.Address))
	}

	tele, err := telemetry.Run(ctx, cancel, cfg.Telemetry.Port)
	if err != nil {
		return err
	}

	verifier := keypair.NewVerifier()
	l := telemetry.Instrument(notary.New(storage, verifier, events, log), tele)

	hooks := webhooks.New(l, verifier, log)
	go hooks.Run(ctx, events.Subscribe())

	log.Info(fmt.Sprintf("ledger events fan out to [ %d ] sinks", events.Len()))

	return ledgerserver.Run(ctx, cfg.Server, l, hooks, log)
}

func openStorage(ctx context.Context, cfg configuration.Configuration, log logger.Logger) (notary.Storage, func(), error) {
	connCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	switch cfg.Storage.Backend {
	case configuration.StoragePostgres:
		db, err := repository.Connect(connCtx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := db.RunMigration(connCtx); err != nil {
			return nil, nil, err
		}
		log.Info(fmt.Sprintf("storing ledger in postgres database [ %s ]", cfg.Database.DatabaseName))
		return db, func() {
			if err := db.Disconnect(context.Background()); err != nil {
				log.Error(err.Error())
			}
		}, nil
	case configuration.StorageMongo:
		db, err := repomongo.Connect(connCtx, cfg.Mongo)
		if err != nil {
			return nil, nil, err
		}
		if err := db.RunMigration(connCtx); err != nil {
			return nil, nil, err
		}
		log.Info(fmt.Sprintf("storing ledger in mongo database [ %s ]", cfg.Mongo.DatabaseName))
		return db, func() {
			if err := db.Disconnect(context.Background()); err != nil {
				log.Error(err.Error())
			}
		}, nil
	default:
		log.Warn("storing ledger in memory, state is lost on exit")
		return memrepo.New(), func() {}, nil
	}
}
