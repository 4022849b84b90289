package staking

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
	ErrInvalidAmount       = errors.New("staking: amount must be positive")
	ErrInsufficientStake   = errors.New("staking: insufficient stake")
	ErrNotifierUnavailable = errors.New("staking: reward ledger not configured")
)

var (
	positionPrefix = []byte("staking/position/")
	totalKey       = ethcrypto.Keccak256([]byte("staking/total"))
)

func positionKey(addr common.Address) []byte {
	buf := make([]byte, len(positionPrefix)+common.AddressLength)
	copy(buf, positionPrefix)
	copy(buf[len(positionPrefix):], addr.Bytes())
	return ethcrypto.Keccak256(buf)
}

// Notifier receives every stake change. The mining engine implements it.
// Run executes fn inside the notifier's operation scope; notifications made
// with the context handed to fn commit or abort together with it.
type Notifier interface {
	Run(ctx context.Context, fn func(context.Context) error) error
	NotifyStake(ctx context.Context, holder common.Address, holderAmount, totalAmount *big.Int) error
}

// Ledger moves the staked asset in and out of the staking account.
type Ledger interface {
	Transfer(ctx context.Context, asset string, from, to common.Address, amount *big.Int) error
}

// Module keeps holder stake positions and reports every change to the
// notifier. Funds are held by the staking account in the ledger.
type Module struct {
	mu       sync.Mutex
	db       storage.Database
	ledger   Ledger
	notifier Notifier
	account  common.Address
	asset    string
}

// NewModule builds a staking module over db. The notifier is bound later with
// SetNotifier since it usually depends on the module itself.
func NewModule(db storage.Database, ledger Ledger, account common.Address, asset string) *Module {
	return &Module{
		db:      db,
		ledger:  ledger,
		account: account,
		asset:   strings.ToUpper(strings.TrimSpace(asset)),
	}
}

func (m *Module) SetNotifier(n Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifier = n
}

// Account returns the staking custody account.
func (m *Module) Account() common.Address { return m.account }

// Stake locks amount of the holder's funds.
func (m *Module) Stake(ctx context.Context, holder common.Address, amount *big.Int) error {
	return m.increase(ctx, holder, holder, amount)
}

// Deposit stakes amount paid by from on behalf of holder. The mining engine
// uses it for stake-and-compound settlements and calls it with the context of
// the settlement in progress.
func (m *Module) Deposit(ctx context.Context, from, holder common.Address, amount *big.Int) error {
	return m.increase(ctx, from, holder, amount)
}

// Unstake releases amount back to the holder.
func (m *Module) Unstake(ctx context.Context, holder common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return m.within(ctx, func(ctx context.Context, notifier Notifier) error {
		position, total, err := m.load(holder)
		if err != nil {
			return err
		}
		if position.Cmp(amount) < 0 {
			return fmt.Errorf("%w: holder %s has %s", ErrInsufficientStake, holder.Hex(), position)
		}
		nextPosition := new(big.Int).Sub(position, amount)
		nextTotal := new(big.Int).Sub(total, amount)
		return m.apply(ctx, notifier, holder, position, total, nextPosition, nextTotal, func() error {
			return m.ledger.Transfer(ctx, m.asset, m.account, holder, amount)
		}, func() error {
			return m.ledger.Transfer(ctx, m.asset, holder, m.account, amount)
		})
	})
}

func (m *Module) increase(ctx context.Context, from, holder common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return m.within(ctx, func(ctx context.Context, notifier Notifier) error {
		position, total, err := m.load(holder)
		if err != nil {
			return err
		}
		nextPosition := new(big.Int).Add(position, amount)
		nextTotal := new(big.Int).Add(total, amount)
		return m.apply(ctx, notifier, holder, position, total, nextPosition, nextTotal, func() error {
			return m.ledger.Transfer(ctx, m.asset, from, m.account, amount)
		}, func() error {
			return m.ledger.Transfer(ctx, m.asset, m.account, from, amount)
		})
	})
}

// within runs fn inside the notifier's scope and then under the module lock,
// so the notifier's lock is always taken first.
func (m *Module) within(ctx context.Context, fn func(context.Context, Notifier) error) error {
	m.mu.Lock()
	notifier := m.notifier
	m.mu.Unlock()
	if notifier == nil {
		return ErrNotifierUnavailable
	}
	return notifier.Run(ctx, func(ctx context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		return fn(ctx, notifier)
	})
}

// apply moves funds, persists the new position and notifies the reward
// ledger. A notification failure reverses the transfer and the position.
func (m *Module) apply(ctx context.Context, notifier Notifier, holder common.Address, position, total, nextPosition, nextTotal *big.Int, move, revert func() error) error {
	if err := move(); err != nil {
		return err
	}
	if err := m.store(holder, nextPosition, nextTotal); err != nil {
		if rerr := revert(); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	if err := notifier.NotifyStake(ctx, holder, nextPosition, nextTotal); err != nil {
		restoreErr := m.store(holder, position, total)
		revertErr := revert()
		return errors.Join(fmt.Errorf("staking: notify: %w", err), restoreErr, revertErr)
	}
	return nil
}

// Totals returns the holder's position and the global stake.
func (m *Module) Totals(holder common.Address) (*big.Int, *big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(holder)
}

func (m *Module) load(holder common.Address) (*big.Int, *big.Int, error) {
	position, err := m.readBig(positionKey(holder))
	if err != nil {
		return nil, nil, err
	}
	total, err := m.readBig(totalKey)
	if err != nil {
		return nil, nil, err
	}
	return position, total, nil
}

func (m *Module) readBig(key []byte) (*big.Int, error) {
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	out := new(big.Int)
	if err := rlp.DecodeBytes(data, out); err != nil {
		return nil, fmt.Errorf("staking: decode: %w", err)
	}
	return out, nil
}

func (m *Module) store(holder common.Address, position, total *big.Int) error {
	encodedPosition, err := rlp.EncodeToBytes(position)
	if err != nil {
		return err
	}
	encodedTotal, err := rlp.EncodeToBytes(total)
	if err != nil {
		return err
	}
	batch := m.db.NewBatch()
	batch.Put(positionKey(holder), encodedPosition)
	batch.Put(totalKey, encodedTotal)
	return batch.Write()
}
