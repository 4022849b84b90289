package bank

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"contribmine/storage"
)

var (
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	ErrInvalidAmount       = errors.New("bank: amount must be positive")
	ErrInvalidAsset        = errors.New("bank: asset symbol required")
)

var balancePrefix = []byte("balance:")

func balanceKey(addr common.Address, symbol string) []byte {
	buf := make([]byte, len(balancePrefix)+len(symbol)+1+common.AddressLength)
	copy(buf, balancePrefix)
	copy(buf[len(balancePrefix):], symbol)
	buf[len(balancePrefix)+len(symbol)] = ':'
	copy(buf[len(balancePrefix)+len(symbol)+1:], addr.Bytes())
	return ethcrypto.Keccak256(buf)
}

// Ledger is a multi-asset balance book persisted in a key-value store.
type Ledger struct {
	mu sync.Mutex
	db storage.Database
}

// NewLedger returns a ledger backed by db.
func NewLedger(db storage.Database) *Ledger {
	return &Ledger{db: db}
}

func normalizeSymbol(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}

func (l *Ledger) read(addr common.Address, symbol string) (*big.Int, error) {
	data, err := l.db.Get(balanceKey(addr, symbol))
	if errors.Is(err, storage.ErrNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	balance := new(big.Int)
	if err := rlp.DecodeBytes(data, balance); err != nil {
		return nil, fmt.Errorf("bank: decode balance: %w", err)
	}
	return balance, nil
}

func writeBalance(batch storage.Batch, addr common.Address, symbol string, balance *big.Int) error {
	encoded, err := rlp.EncodeToBytes(balance)
	if err != nil {
		return err
	}
	batch.Put(balanceKey(addr, symbol), encoded)
	return nil
}

// BalanceOf returns the balance of account in asset.
func (l *Ledger) BalanceOf(asset string, account common.Address) (*big.Int, error) {
	symbol := normalizeSymbol(asset)
	if symbol == "" {
		return nil, ErrInvalidAsset
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read(account, symbol)
}

// Mint credits amount of asset to account.
func (l *Ledger) Mint(asset string, account common.Address, amount *big.Int) error {
	symbol := normalizeSymbol(asset)
	if symbol == "" {
		return ErrInvalidAsset
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	balance, err := l.read(account, symbol)
	if err != nil {
		return err
	}
	batch := l.db.NewBatch()
	if err := writeBalance(batch, account, symbol, balance.Add(balance, amount)); err != nil {
		return err
	}
	return batch.Write()
}

// Transfer moves amount of asset between accounts in a single batch.
func (l *Ledger) Transfer(ctx context.Context, asset string, from, to common.Address, amount *big.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	symbol := normalizeSymbol(asset)
	if symbol == "" {
		return ErrInvalidAsset
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fromBalance, err := l.read(from, symbol)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s %s, needs %s", ErrInsufficientBalance, from.Hex(), fromBalance, symbol, amount)
	}
	if from == to {
		return nil
	}
	toBalance, err := l.read(to, symbol)
	if err != nil {
		return err
	}
	batch := l.db.NewBatch()
	if err := writeBalance(batch, from, symbol, fromBalance.Sub(fromBalance, amount)); err != nil {
		return err
	}
	if err := writeBalance(batch, to, symbol, toBalance.Add(toBalance, amount)); err != nil {
		return err
	}
	return batch.Write()
}
