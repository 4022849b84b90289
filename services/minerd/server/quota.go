package server

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "contribmine/native/common"
)

// contributionQuota tracks per-contributor usage within the current reward
// period.
type contributionQuota struct {
	quota nativecommon.Quota
	mu    sync.Mutex
	usage map[common.Address]nativecommon.QuotaNow
}

func newContributionQuota(q nativecommon.Quota) *contributionQuota {
	return &contributionQuota{quota: q, usage: make(map[common.Address]nativecommon.QuotaNow)}
}

// reserve charges one request and the normalized amount against the
// contributor's budget for period. Usage left over from earlier periods is
// dropped. The returned release undoes the charge when the contribution fails.
func (c *contributionQuota) reserve(addr common.Address, period uint64, amount *big.Int) (func(), error) {
	if c == nil || !c.quota.Enabled() {
		return func() {}, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, used := range c.usage {
		if used.PeriodID < period {
			delete(c.usage, key)
		}
	}
	prev := c.usage[addr]
	next, err := nativecommon.CheckQuota(c.quota, period, prev, 1, amount)
	if err != nil {
		return nil, err
	}
	c.usage[addr] = next
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if current, ok := c.usage[addr]; ok && current.PeriodID == next.PeriodID {
			current.ReqCount--
			if current.ValueUsed != nil && amount != nil {
				current.ValueUsed = new(big.Int).Sub(current.ValueUsed, amount)
			}
			c.usage[addr] = current
		}
	}, nil
}
