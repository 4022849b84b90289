package treasury

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrAssetNotAccepted = errors.New("treasury: asset not accepted")
	ErrInvalidRate      = errors.New("treasury: rate must be positive")
)

// Rate converts one unit of an asset into Numerator/Denominator native units.
type Rate struct {
	Numerator   *big.Int
	Denominator *big.Int
}

// Treasury holds the custody account for direct contributions and the
// conversion rates of the non-native assets it accepts.
type Treasury struct {
	mu      sync.RWMutex
	account common.Address
	rates   map[string]Rate
}

// New returns a treasury with no accepted foreign assets.
func New(account common.Address) *Treasury {
	return &Treasury{account: account, rates: make(map[string]Rate)}
}

// Address returns the custody account.
func (t *Treasury) Address() common.Address {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.account
}

// SetAddress replaces the custody account.
func (t *Treasury) SetAddress(addr common.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.account = addr
}

// SetRate accepts asset at the given conversion rate.
func (t *Treasury) SetRate(asset string, numerator, denominator *big.Int) error {
	symbol := normalize(asset)
	if symbol == "" {
		return fmt.Errorf("treasury: asset symbol required")
	}
	if numerator == nil || denominator == nil || numerator.Sign() <= 0 || denominator.Sign() <= 0 {
		return ErrInvalidRate
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rates[symbol] = Rate{Numerator: new(big.Int).Set(numerator), Denominator: new(big.Int).Set(denominator)}
	return nil
}

// RemoveAsset stops accepting asset.
func (t *Treasury) RemoveAsset(asset string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rates, normalize(asset))
}

// IsAcceptedAsset reports whether asset has a conversion rate.
func (t *Treasury) IsAcceptedAsset(asset string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.rates[normalize(asset)]
	return ok
}

// Convert values amount of asset in native units, rounding down.
func (t *Treasury) Convert(ctx context.Context, asset string, amount *big.Int) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() < 0 {
		return nil, fmt.Errorf("treasury: invalid amount")
	}
	t.mu.RLock()
	rate, ok := t.rates[normalize(asset)]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotAccepted, asset)
	}
	out := new(big.Int).Mul(amount, rate.Numerator)
	return out.Quo(out, rate.Denominator), nil
}

// Assets lists the accepted foreign assets in sorted order.
func (t *Treasury) Assets() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.rates))
	for symbol := range t.rates {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

func normalize(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}
