package localcache

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bartossh/Multisigner/identity"
	"github.com/bartossh/Multisigner/multisig"
)

var (
	ErrWalletNotFound      = errors.New("wallet not found in cache")
	ErrTransactionNotFound = errors.New("transaction not found in cache")
	ErrCacheFull           = errors.New("cache is full")
)

const defaultMaxLen = 1000

type Config struct {
	MaxLen int `yaml:"max_len"`
}

// WalletCache keeps the wallets confirmed by the ledger for presentation.
// A wallet is always replaced as a whole, readers get deep copies.
type WalletCache struct {
	mux     sync.RWMutex
	wallets map[identity.Handle]multisig.Wallet
	order   []identity.Handle
	maxLen  int
}

// New creates a new WalletCache according to Config.
func New(cfg Config) *WalletCache {
	if cfg.MaxLen < 1 {
		cfg.MaxLen = defaultMaxLen
	}
	return &WalletCache{
		wallets: make(map[identity.Handle]multisig.Wallet),
		order:   make([]identity.Handle, 0),
		maxLen:  cfg.MaxLen,
	}
}

// Put replaces the cached wallet of the same ID or inserts a new one if cache has enough space.
func (c *WalletCache) Put(w multisig.Wallet) error {
	if err := w.ID.Validate(); err != nil {
		return err
	}
	cp := w.Copy()

	c.mux.Lock()
	defer c.mux.Unlock()
	if _, ok := c.wallets[w.ID]; ok {
		c.wallets[w.ID] = cp
		return nil
	}
	if len(c.wallets) >= c.maxLen {
		return errors.Join(ErrCacheFull, fmt.Errorf("max size of cache of [ %v ] has been reached", c.maxLen))
	}
	c.wallets[w.ID] = cp
	c.order = append(c.order, w.ID)
	return nil
}

// Wallet reads the wallet of the given ID.
func (c *WalletCache) Wallet(id identity.Handle) (multisig.Wallet, error) {
	c.mux.RLock()
	defer c.mux.RUnlock()
	w, ok := c.wallets[id]
	if !ok {
		return multisig.Wallet{}, fmt.Errorf("%w: %s", ErrWalletNotFound, id)
	}
	return w.Copy(), nil
}

// Transaction reads the transaction of the wallet.
func (c *WalletCache) Transaction(walletID, trxID identity.Handle) (multisig.Transaction, error) {
	c.mux.RLock()
	defer c.mux.RUnlock()
	w, ok := c.wallets[walletID]
	if !ok {
		return multisig.Transaction{}, fmt.Errorf("%w: %s", ErrWalletNotFound, walletID)
	}
	trx, ok := w.Transaction(trxID)
	if !ok {
		return multisig.Transaction{}, fmt.Errorf("%w: %s", ErrTransactionNotFound, trxID)
	}
	return trx.Copy(), nil
}

// Wallets reads all the wallets in the order they were first put.
func (c *WalletCache) Wallets() []multisig.Wallet {
	c.mux.RLock()
	defer c.mux.RUnlock()
	ws := make([]multisig.Wallet, 0, len(c.order))
	for _, id := range c.order {
		ws = append(ws, c.wallets[id].Copy())
	}
	return ws
}
