package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"

	"github.com/bartossh/Multisigner/configuration"
	"github.com/bartossh/Multisigner/coordinator"
	"github.com/bartossh/Multisigner/identity"
	"github.com/bartossh/Multisigner/keypair"
	"github.com/bartossh/Multisigner/keystore"
	"github.com/bartossh/Multisigner/ledgerclient"
	"github.com/bartossh/Multisigner/localcache"
	"github.com/bartossh/Multisigner/logging"
	"github.com/bartossh/Multisigner/multisig"
	"github.com/bartossh/Multisigner/natsclient"
	"github.com/bartossh/Multisigner/stdoutwriter"
)

const usage = `Multisig CLI tool creates wallets owned by several owners, proposes transactions against them,
collects approvals and executes transactions once enough owners approved.
Owner keys are kept in the keystore directory sealed with the keystore passphrase.`

func main() {
	primary := pterm.NewStyle(pterm.FgLightCyan, pterm.BgGray, pterm.Bold)
	primary.Println("")
	primary.Println("  Hello Multisigner  ")
	primary.Println("")

	var (
		file, envFile          string
		walletID, trxID        string
		owner, subject, data   string
		ownersCount, threshold int
		dir, privFile, pubFile string
		hookURL, hookToken     string
	)

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

	withCoordinator := func(action func(ctx context.Context, coord *coordinator.Coordinator) error) cli.ActionFunc {
		return func(cCtx *cli.Context) error {
			cfg, err := configurator()
			if err != nil {
				return err
			}
			coord, err := connect(cCtx.Context, cfg)
			if err != nil {
				return err
			}
			return action(cCtx.Context, coord)
		}
	}

	walletFlag := &cli.StringFlag{
		Name:        "wallet",
		Aliases:     []string{"w"},
		Usage:       "Wallet ID.",
		Destination: &walletID,
		Required:    true,
	}
	trxFlag := &cli.StringFlag{
		Name:        "trx",
		Aliases:     []string{"t"},
		Usage:       "Transaction ID.",
		Destination: &trxID,
		Required:    true,
	}
	ownerFlag := &cli.StringFlag{
		Name:        "owner",
		Aliases:     []string{"o"},
		Usage:       "Owner address, its key must be in the keystore.",
		Destination: &owner,
		Required:    true,
	}

	app := &cli.App{
		Name:  "multisig",
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
		Commands: []*cli.Command{
			{
				Name:    "create",
				Aliases: []string{"c"},
				Usage:   "Generates owners, saves their keys to the keystore and creates a wallet owned by them.",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:        "owners",
						Aliases:     []string{"n"},
						Usage:       "Number of owners to generate.",
						Destination: &ownersCount,
						Required:    true,
					},
					&cli.IntFlag{
						Name:        "threshold",
						Aliases:     []string{"m"},
						Usage:       "Number of approvals required to execute a transaction.",
						Destination: &threshold,
						Required:    true,
					},
				},
				Action: withCoordinator(func(ctx context.Context, coord *coordinator.Coordinator) error {
					for i := 0; i < ownersCount; i++ {
						if _, err := coord.StageOwner(); err != nil {
							return err
						}
					}
					w, err := coord.CreateWalletFromStaged(ctx, threshold)
					if err != nil {
						return err
					}
					printWallet(w)
					return nil
				}),
			},
			{
				Name:    "propose",
				Aliases: []string{"p"},
				Usage:   "Proposes a transaction against the wallet.",
				Flags: []cli.Flag{
					walletFlag,
					ownerFlag,
					&cli.StringFlag{
						Name:        "subject",
						Aliases:     []string{"s"},
						Usage:       "Subject of the transaction.",
						Destination: &subject,
						Required:    true,
					},
					&cli.StringFlag{
						Name:        "data",
						Aliases:     []string{"d"},
						Usage:       "Payload of the transaction.",
						Destination: &data,
					},
				},
				Action: withCoordinator(func(ctx context.Context, coord *coordinator.Coordinator) error {
					id := identity.Handle(walletID)
					if _, err := coord.Refresh(ctx, id); err != nil {
						return err
					}
					trx, err := coord.ProposeTransaction(ctx, id, identity.Owner(owner), subject, []byte(data))
					if err != nil {
						return err
					}
					return printTransaction(coord, id, trx)
				}),
			},
			{
				Name:    "approve",
				Aliases: []string{"a"},
				Usage:   "Approves the transaction on behalf of the owner.",
				Flags:   []cli.Flag{walletFlag, trxFlag, ownerFlag},
				Action: withCoordinator(func(ctx context.Context, coord *coordinator.Coordinator) error {
					id := identity.Handle(walletID)
					if _, err := coord.Refresh(ctx, id); err != nil {
						return err
					}
					trx, err := coord.Approve(ctx, id, identity.Handle(trxID), identity.Owner(owner))
					if err != nil {
						return err
					}
					return printTransaction(coord, id, trx)
				}),
			},
			{
				Name:    "execute",
				Aliases: []string{"x"},
				Usage:   "Executes the transaction that collected enough approvals.",
				Flags:   []cli.Flag{walletFlag, trxFlag},
				Action: withCoordinator(func(ctx context.Context, coord *coordinator.Coordinator) error {
					id := identity.Handle(walletID)
					if _, err := coord.Refresh(ctx, id); err != nil {
						return err
					}
					trx, err := coord.Execute(ctx, id, identity.Handle(trxID))
					if err != nil {
						return err
					}
					return printTransaction(coord, id, trx)
				}),
			},
			{
				Name:    "show",
				Aliases: []string{"s"},
				Usage:   "Reads the wallet and its transactions from the ledger.",
				Flags:   []cli.Flag{walletFlag},
				Action: withCoordinator(func(ctx context.Context, coord *coordinator.Coordinator) error {
					w, err := coord.Refresh(ctx, identity.Handle(walletID))
					if err != nil {
						return err
					}
					printWallet(w)
					return nil
				}),
			},
			{
				Name:    "keys",
				Aliases: []string{"k"},
				Usage:   "Lists owners whose keys are in the keystore.",
				Action: func(_ *cli.Context) error {
					cfg, err := configurator()
					if err != nil {
						return err
					}
					kps, err := keystore.New(cfg.Keystore, nil).ReadAll()
					if err != nil {
						return err
					}
					items := make([]pterm.BulletListItem, 0, len(kps))
					for _, kp := range kps {
						items = append(items, pterm.BulletListItem{Level: 0, Text: kp.Address().String()})
					}
					return pterm.DefaultBulletList.WithItems(items).Render()
				},
			},
			{
				Name:  "hook",
				Usage: "Manages webhooks notified about committed events of the wallet, signed by the owner.",
				Subcommands: []*cli.Command{
					{
						Name:  "add",
						Usage: "Registers the URL notified about events of the wallet.",
						Flags: []cli.Flag{
							walletFlag,
							ownerFlag,
							&cli.StringFlag{
								Name:        "url",
								Usage:       "Webhook URL.",
								Destination: &hookURL,
								Required:    true,
							},
							&cli.StringFlag{
								Name:        "token",
								Usage:       "Token posted with every event to validate the message source.",
								Destination: &hookToken,
							},
						},
						Action: func(cCtx *cli.Context) error {
							cfg, err := configurator()
							if err != nil {
								return err
							}
							rest, kp, err := ownerClient(cCtx.Context, cfg, identity.Owner(owner))
							if err != nil {
								return err
							}
							if err := rest.CreateWebhook(cCtx.Context, identity.Handle(walletID), hookURL, hookToken, &kp); err != nil {
								return err
							}
							pterm.Success.Printfln("Webhook %s registered for wallet %s", hookURL, walletID)
							return nil
						},
					},
					{
						Name:  "remove",
						Usage: "Stops notifying the URL about events of the wallet.",
						Flags: []cli.Flag{
							walletFlag,
							ownerFlag,
							&cli.StringFlag{
								Name:        "url",
								Usage:       "Webhook URL.",
								Destination: &hookURL,
								Required:    true,
							},
						},
						Action: func(cCtx *cli.Context) error {
							cfg, err := configurator()
							if err != nil {
								return err
							}
							rest, kp, err := ownerClient(cCtx.Context, cfg, identity.Owner(owner))
							if err != nil {
								return err
							}
							if err := rest.RemoveWebhook(cCtx.Context, identity.Handle(walletID), hookURL, &kp); err != nil {
								return err
							}
							pterm.Success.Printfln("Webhook %s removed from wallet %s", hookURL, walletID)
							return nil
						},
					},
				},
			},
			{
				Name:  "export",
				Usage: "Writes the owner key pair from the keystore as PEM files to the directory.",
				Flags: []cli.Flag{
					ownerFlag,
					&cli.StringFlag{
						Name:        "dir",
						Usage:       "Directory to write PEM files to.",
						Value:       ".",
						Destination: &dir,
					},
				},
				Action: func(_ *cli.Context) error {
					cfg, err := configurator()
					if err != nil {
						return err
					}
					kp, err := keystore.New(cfg.Keystore, nil).Read(identity.Owner(owner))
					if err != nil {
						return err
					}
					prv, pub, err := kp.EncodePEM()
					if err != nil {
						return err
					}
					prvPath := filepath.Join(dir, owner+".pem")
					if err := os.WriteFile(prvPath, prv, 0o600); err != nil {
						return err
					}
					pubPath := filepath.Join(dir, owner+".pub.pem")
					if err := os.WriteFile(pubPath, pub, 0o644); err != nil {
						return err
					}
					pterm.Success.Printfln("Owner %s exported to %s and %s", owner, prvPath, pubPath)
					return nil
				},
			},
			{
				Name:  "import",
				Usage: "Reads the PEM encoded key pair and seals it in the keystore.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "private",
						Usage:       "PEM file with the private key.",
						Destination: &privFile,
						Required:    true,
					},
					&cli.StringFlag{
						Name:        "public",
						Usage:       "PEM file with the public key.",
						Destination: &pubFile,
						Required:    true,
					},
				},
				Action: func(_ *cli.Context) error {
					cfg, err := configurator()
					if err != nil {
						return err
					}
					prv, err := os.ReadFile(privFile)
					if err != nil {
						return err
					}
					pub, err := os.ReadFile(pubFile)
					if err != nil {
						return err
					}
					kp, err := keypair.DecodePEM(prv, pub)
					if err != nil {
						return err
					}
					o, err := keystore.New(cfg.Keystore, nil).Save(kp)
					if err != nil {
						return err
					}
					pterm.Success.Printfln("Owner %s imported to the keystore", o)
					return nil
				},
			},
			{
				Name:    "watch",
				Aliases: []string{"w"},
				Usage:   "Prints ledger events as they are committed until interrupted.",
				Action: func(_ *cli.Context) error {
					cfg, err := configurator()
					if err != nil {
						return err
					}
					return watch(cfg)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
}

func connect(ctx context.Context, cfg configuration.Configuration) (*coordinator.Coordinator, error) {
	log := logging.New(cfg.Logging, nil, nil, stdoutwriter.New())
	rest := ledgerclient.NewRest(cfg.LedgerClient)
	if err := rest.ValidateApiVersion(ctx); err != nil {
		return nil, err
	}

	keys := keystore.New(cfg.Keystore, nil)
	coord := coordinator.New(cfg.Coordinator, rest, localcache.New(cfg.Cache), log, keys)
	kps, err := keys.ReadAll()
	if err != nil {
		return nil, err
	}
	for _, kp := range kps {
		if err := coord.AddSigner(kp); err != nil {
			return nil, err
		}
	}
	return coord, nil
}

func ownerClient(ctx context.Context, cfg configuration.Configuration, owner identity.Owner) (*ledgerclient.Rest, keypair.Keypair, error) {
	kp, err := keystore.New(cfg.Keystore, nil).Read(owner)
	if err != nil {
		return nil, keypair.Keypair{}, err
	}
	rest := ledgerclient.NewRest(cfg.LedgerClient)
	if err := rest.ValidateApiVersion(ctx); err != nil {
		return nil, keypair.Keypair{}, err
	}
	return rest, kp, nil
}

func watch(cfg configuration.Configuration) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	log := logging.New(cfg.Logging, nil, nil, stdoutwriter.New())
	sub, err := natsclient.SubscriberConnect(cfg.Nats)
	if err != nil {
		return err
	}
	defer sub.Disconnect()

	events, err := sub.SubscribeEvents(ctx, log)
	if err != nil {
		return err
	}
	pterm.Info.Println("Watching ledger events, press Ctrl+C to stop.")
	for e := range events {
		pterm.Printfln("%s  %-22s wallet %s  trx %s  owner %s",
			e.CreatedAt.Format("15:04:05.000"), e.Kind, e.WalletID, e.TransactionID, e.Owner)
	}
	return nil
}

func printWallet(w multisig.Wallet) {
	pterm.DefaultSection.Println(fmt.Sprintf("Wallet %s", w.ID))
	pterm.Printfln("Threshold: %d of %d", w.Threshold, len(w.Owners))
	pterm.Printfln("Authority: %s", w.Authority)
	owners := make([]pterm.BulletListItem, 0, len(w.Owners))
	for _, o := range w.Owners {
		owners = append(owners, pterm.BulletListItem{Level: 0, Text: o.String()})
	}
	pterm.DefaultBulletList.WithItems(owners).Render()

	if len(w.Transactions) == 0 {
		return
	}
	table := pterm.TableData{{"Transaction", "Subject", "Proposer", "Approvals", "Executed"}}
	for _, trx := range w.Transactions {
		table = append(table, []string{
			trx.ID.String(),
			trx.Subject,
			trx.Proposer.String(),
			fmt.Sprintf("%d / %d", len(trx.Approvals), w.Threshold),
			strconv.FormatBool(trx.Executed),
		})
	}
	pterm.DefaultTable.WithHasHeader().WithData(table).Render()
}

func printTransaction(coord *coordinator.Coordinator, walletID identity.Handle, trx multisig.Transaction) error {
	w, err := coord.Wallet(walletID)
	if err != nil {
		return err
	}
	table := pterm.TableData{
		{"Transaction", trx.ID.String()},
		{"Wallet", walletID.String()},
		{"Subject", trx.Subject},
		{"Proposer", trx.Proposer.String()},
		{"Approvals", fmt.Sprintf("%d / %d", len(trx.Approvals), w.Threshold)},
		{"Executed", strconv.FormatBool(trx.Executed)},
	}
	return pterm.DefaultTable.WithData(table).Render()
}
