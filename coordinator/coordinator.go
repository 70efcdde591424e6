package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/exp/slices"

	"github.com/bartossh/Multisigner/identity"
	"github.com/bartossh/Multisigner/keypair"
	"github.com/bartossh/Multisigner/ledger"
	"github.com/bartossh/Multisigner/logger"
	"github.com/bartossh/Multisigner/multisig"
)

const defaultTimeout = 10 * time.Second

var ErrUnconfirmed = errors.New("ledger acknowledged without confirming the change")

// Config configures the coordinator.
type Config struct {
	TimeoutSeconds int `yaml:"timeout_seconds"` // Limit of a single ledger round trip.
}

// Store keeps the wallets confirmed by the ledger.
type Store interface {
	Put(w multisig.Wallet) error
	Wallet(id identity.Handle) (multisig.Wallet, error)
	Transaction(walletID, trxID identity.Handle) (multisig.Transaction, error)
	Wallets() []multisig.Wallet
}

// KeypairCreator creates signing capability for a new owner.
type KeypairCreator interface {
	Create() (keypair.Keypair, error)
}

// KeypairCreatorFunc is a function that implements KeypairCreator.
type KeypairCreatorFunc func() (keypair.Keypair, error)

// Create calls f.
func (f KeypairCreatorFunc) Create() (keypair.Keypair, error) {
	return f()
}

// DefaultKeypairCreator generates ed25519 keypairs.
var DefaultKeypairCreator = KeypairCreatorFunc(keypair.New)

// Coordinator drives the multisig lifecycle of a single client.
// It checks what it can locally, submits the action to the ledger and only after the ledger
// confirmed the action replaces the affected wallet in the store.
type Coordinator struct {
	mux     sync.Mutex
	timeout time.Duration
	ledger  ledger.Ledger
	store   Store
	log     logger.Logger
	creator KeypairCreator
	staged  []identity.Owner
	keyring map[identity.Owner]keypair.Keypair
	signers []identity.Owner
}

// New creates a new Coordinator.
func New(cfg Config, l ledger.Ledger, store Store, log logger.Logger, creator KeypairCreator) *Coordinator {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if creator == nil {
		creator = DefaultKeypairCreator
	}
	return &Coordinator{
		timeout: timeout,
		ledger:  l,
		store:   store,
		log:     log,
		creator: creator,
		staged:  make([]identity.Owner, 0),
		keyring: make(map[identity.Owner]keypair.Keypair),
		signers: make([]identity.Owner, 0),
	}
}

// StageOwner generates a new owner with its signing capability and stages it for the next wallet creation.
func (c *Coordinator) StageOwner() (identity.Owner, error) {
	kp, err := c.creator.Create()
	if err != nil {
		return "", err
	}
	if err := kp.Validate(); err != nil {
		return "", err
	}

	c.mux.Lock()
	defer c.mux.Unlock()
	owner := c.addSigner(kp)
	c.staged = append(c.staged, owner)
	return owner, nil
}

// StagedOwners returns owners staged for the next wallet creation.
func (c *Coordinator) StagedOwners() []identity.Owner {
	c.mux.Lock()
	defer c.mux.Unlock()
	return slices.Clone(c.staged)
}

// AddSigner adds signing capability of an existing owner, for instance one read from the keystore.
func (c *Coordinator) AddSigner(kp keypair.Keypair) error {
	if err := kp.Validate(); err != nil {
		return err
	}
	c.mux.Lock()
	defer c.mux.Unlock()
	c.addSigner(kp)
	return nil
}

// Signers returns every signing capability the coordinator holds, in the order they were added.
func (c *Coordinator) Signers() []keypair.Keypair {
	c.mux.Lock()
	defer c.mux.Unlock()
	kps := make([]keypair.Keypair, 0, len(c.signers))
	for _, o := range c.signers {
		kps = append(kps, c.keyring[o])
	}
	return kps
}

// CreateWallet creates a wallet on the ledger. The staged owners are cleared once the ledger confirmed the wallet.
func (c *Coordinator) CreateWallet(ctx context.Context, owners []identity.Owner, threshold int) (multisig.Wallet, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.createWallet(ctx, owners, threshold)
}

// CreateWalletFromStaged creates a wallet owned by the staged owners.
func (c *Coordinator) CreateWalletFromStaged(ctx context.Context, threshold int) (multisig.Wallet, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.createWallet(ctx, slices.Clone(c.staged), threshold)
}

func (c *Coordinator) createWallet(ctx context.Context, owners []identity.Owner, threshold int) (multisig.Wallet, error) {
	if err := multisig.ValidateOwnership(owners, threshold); err != nil {
		return multisig.Wallet{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	rec, err := c.ledger.CreateWallet(ctx, owners, threshold)
	if err != nil {
		return multisig.Wallet{}, c.rejected("create wallet", err)
	}

	w := rec.Wallet()
	if err := w.Validate(); err != nil {
		return multisig.Wallet{}, c.rejected("create wallet", fmt.Errorf("ledger returned invalid wallet: %w", err))
	}
	if err := c.store.Put(w); err != nil {
		c.log.Warn(fmt.Sprintf("wallet [ %s ] created by the ledger but not cached: %s", w.ID, err))
		return multisig.Wallet{}, err
	}
	c.staged = c.staged[:0]
	c.log.Info(fmt.Sprintf("wallet [ %s ] created with [ %d ] owners and threshold [ %d ]", w.ID, len(w.Owners), w.Threshold))
	return w, nil
}

// ProposeTransaction proposes the payload against the wallet. Proposer must be a wallet owner.
func (c *Coordinator) ProposeTransaction(
	ctx context.Context, walletID identity.Handle, proposer identity.Owner, subject string, payload []byte,
) (multisig.Transaction, error) {
	c.mux.Lock()
	defer c.mux.Unlock()

	w, err := c.store.Wallet(walletID)
	if err != nil {
		return multisig.Transaction{}, err
	}
	if !w.HasOwner(proposer) {
		return multisig.Transaction{}, fmt.Errorf("%w: %s", multisig.ErrUnknownProposer, proposer)
	}

	proof := c.prove(proposer, ledger.ProposalMessage(walletID, proposer, subject, payload))
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	rec, err := c.ledger.CreateTransaction(ctx, walletID, proposer, subject, payload, proof)
	if err != nil {
		return multisig.Transaction{}, c.rejected("propose transaction", err)
	}

	trx := rec.Transaction()
	if err := trx.Validate(&w); err != nil {
		return multisig.Transaction{}, c.rejected("propose transaction", fmt.Errorf("ledger returned invalid transaction: %w", err))
	}
	if err := c.store.Put(w.WithTransaction(trx)); err != nil {
		return multisig.Transaction{}, err
	}
	c.log.Info(fmt.Sprintf("transaction [ %s ] proposed for wallet [ %s ] by [ %s ]", trx.ID, walletID, proposer))
	return trx, nil
}

// Approve approves the transaction on behalf of approver. A repeated approval is left for the ledger to judge
// and merges away locally.
func (c *Coordinator) Approve(
	ctx context.Context, walletID, trxID identity.Handle, approver identity.Owner,
) (multisig.Transaction, error) {
	c.mux.Lock()
	defer c.mux.Unlock()

	w, trx, err := c.read(walletID, trxID)
	if err != nil {
		return multisig.Transaction{}, err
	}
	if !w.HasOwner(approver) {
		return multisig.Transaction{}, fmt.Errorf("%w: %s", multisig.ErrUnknownApprover, approver)
	}
	if trx.Executed {
		return multisig.Transaction{}, multisig.ErrAlreadyExecuted
	}

	proof := c.prove(approver, ledger.ApprovalMessage(walletID, trxID, approver))
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ack, err := c.ledger.Approve(ctx, walletID, trxID, approver, proof)
	if err != nil {
		return multisig.Transaction{}, c.rejected("approve", err)
	}

	updated := trx.WithApprovals(ack.Approvals...).WithApprovals(approver)
	if err := updated.Validate(&w); err != nil {
		return multisig.Transaction{}, c.rejected("approve", fmt.Errorf("ledger returned invalid approvals: %w", err))
	}
	if err := c.store.Put(w.WithTransaction(updated)); err != nil {
		return multisig.Transaction{}, err
	}
	c.log.Info(fmt.Sprintf(
		"transaction [ %s ] approved by [ %s ], approvals [ %d / %d ]", trxID, approver, len(updated.Approvals), w.Threshold))
	return updated, nil
}

// Execute executes the transaction with the authority derived from the wallet.
// Executed transaction or one that has not collected enough approvals never reaches the ledger.
func (c *Coordinator) Execute(ctx context.Context, walletID, trxID identity.Handle) (multisig.Transaction, error) {
	c.mux.Lock()
	defer c.mux.Unlock()

	w, trx, err := c.read(walletID, trxID)
	if err != nil {
		return multisig.Transaction{}, err
	}
	if err := trx.CanExecute(w.Threshold); err != nil {
		return multisig.Transaction{}, err
	}

	authority := identity.DeriveAuthority(walletID)
	msg := ledger.ExecutionMessage(walletID, trxID, authority)
	proof := ledger.Proof{}
	for _, o := range w.Owners {
		if _, ok := c.keyring[o]; ok {
			proof = c.prove(o, msg)
			break
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ack, err := c.ledger.Execute(ctx, walletID, trxID, authority, proof)
	if err != nil {
		return multisig.Transaction{}, c.rejected("execute", err)
	}
	if !ack.Executed {
		return multisig.Transaction{}, c.rejected("execute", ErrUnconfirmed)
	}

	updated := trx.WithExecuted()
	if err := c.store.Put(w.WithTransaction(updated)); err != nil {
		return multisig.Transaction{}, err
	}
	c.log.Info(fmt.Sprintf("transaction [ %s ] of wallet [ %s ] executed", trxID, walletID))
	return updated, nil
}

// Refresh fetches the wallet from the ledger and merges it with the cached one.
// Approvals only grow and executed transaction stays executed, whatever the order of refreshes.
// A wallet that is not cached yet is added, so an owner can follow the wallet created by another client.
func (c *Coordinator) Refresh(ctx context.Context, walletID identity.Handle) (multisig.Wallet, error) {
	c.mux.Lock()
	defer c.mux.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	rec, err := c.ledger.FetchWallet(ctx, walletID)
	if err != nil {
		return multisig.Wallet{}, c.rejected("refresh", err)
	}

	fetched := rec.Wallet()
	if fetched.ID != walletID {
		return multisig.Wallet{}, c.rejected("refresh", multisig.ErrWalletMismatch)
	}
	if cached, err := c.store.Wallet(walletID); err == nil {
		fetched = merge(fetched, cached)
	}
	if err := fetched.Validate(); err != nil {
		return multisig.Wallet{}, c.rejected("refresh", fmt.Errorf("ledger returned invalid wallet: %w", err))
	}
	if err := c.store.Put(fetched); err != nil {
		return multisig.Wallet{}, err
	}
	c.log.Debug(fmt.Sprintf("wallet [ %s ] refreshed with [ %d ] transactions", walletID, len(fetched.Transactions)))
	return fetched, nil
}

// Wallet reads the cached wallet.
func (c *Coordinator) Wallet(id identity.Handle) (multisig.Wallet, error) {
	return c.store.Wallet(id)
}

// Transaction reads the cached transaction of the wallet.
func (c *Coordinator) Transaction(walletID, trxID identity.Handle) (multisig.Transaction, error) {
	return c.store.Transaction(walletID, trxID)
}

// Wallets reads all cached wallets.
func (c *Coordinator) Wallets() []multisig.Wallet {
	return c.store.Wallets()
}

func (c *Coordinator) read(walletID, trxID identity.Handle) (multisig.Wallet, multisig.Transaction, error) {
	w, err := c.store.Wallet(walletID)
	if err != nil {
		return multisig.Wallet{}, multisig.Transaction{}, err
	}
	trx, err := c.store.Transaction(walletID, trxID)
	if err != nil {
		return multisig.Wallet{}, multisig.Transaction{}, err
	}
	return w, trx, nil
}

func (c *Coordinator) addSigner(kp keypair.Keypair) identity.Owner {
	owner := kp.Address()
	if _, ok := c.keyring[owner]; !ok {
		c.signers = append(c.signers, owner)
	}
	c.keyring[owner] = kp
	return owner
}

// prove signs the message with the owner capability. Without the capability the proof is left unsigned
// and it is up to the ledger to reject it.
func (c *Coordinator) prove(owner identity.Owner, message []byte) ledger.Proof {
	kp, ok := c.keyring[owner]
	if !ok {
		c.log.Warn(fmt.Sprintf("no signing capability for owner [ %s ], sending unsigned proof", owner))
		return ledger.Proof{Signer: owner}
	}
	return ledger.Sign(&kp, message)
}

func (c *Coordinator) rejected(operation string, cause error) error {
	c.log.Warn(fmt.Sprintf("ledger rejected [ %s ]: %s", operation, cause))
	return errors.Join(multisig.ErrLedgerRejected, cause)
}

// merge takes wallet definition and transaction order from the fetched wallet and merges every
// transaction with its cached view. Cached transactions the ledger did not return are kept at the end.
func merge(fetched, cached multisig.Wallet) multisig.Wallet {
	result := fetched.Copy()
	for i := range result.Transactions {
		if trx, ok := cached.Transaction(result.Transactions[i].ID); ok {
			result.Transactions[i] = result.Transactions[i].Merge(trx)
		}
	}
	for _, trx := range cached.Transactions {
		if _, ok := fetched.Transaction(trx.ID); !ok {
			result.Transactions = append(result.Transactions, trx.Copy())
		}
	}
	return result
}
