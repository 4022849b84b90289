package common

import (
	"errors"
	"math"
	"math/big"
)

var (
	ErrQuotaRequestsExceeded = errors.New("quota requests exceeded")
	ErrQuotaValueCapExceeded = errors.New("quota value cap exceeded")
	ErrQuotaCounterOverflow  = errors.New("quota counter overflow")
)

// QuotaNow captures the current quota usage counters for an address.
type QuotaNow struct {
	ReqCount  uint32
	ValueUsed *big.Int
	PeriodID  uint64
}

// Quota defines the limits enforced for a module interaction per address and
// reward period. Zero limits disable the corresponding check.
type Quota struct {
	MaxRequestsPerPeriod uint32
	MaxValuePerPeriod    *big.Int
}

// Enabled reports whether any limit is configured.
func (q Quota) Enabled() bool {
	return q.MaxRequestsPerPeriod > 0 || (q.MaxValuePerPeriod != nil && q.MaxValuePerPeriod.Sign() > 0)
}

// CheckQuota verifies whether the additional request and value usage fit within
// the configured quota. The returned QuotaNow reflects the updated counters when
// the quota is not exceeded; on denial prev is returned unchanged.
func CheckQuota(q Quota, period uint64, prev QuotaNow, addReq uint32, addValue *big.Int) (QuotaNow, error) {
	next := QuotaNow{ReqCount: prev.ReqCount, ValueUsed: prev.ValueUsed, PeriodID: prev.PeriodID}
	if prev.PeriodID != period {
		next = QuotaNow{PeriodID: period}
	}
	used := new(big.Int)
	if next.ValueUsed != nil {
		used.Set(next.ValueUsed)
	}

	if addReq > 0 {
		if next.ReqCount > math.MaxUint32-addReq {
			return prev, ErrQuotaCounterOverflow
		}
		next.ReqCount += addReq
	}
	if q.MaxRequestsPerPeriod > 0 && next.ReqCount > q.MaxRequestsPerPeriod {
		return prev, ErrQuotaRequestsExceeded
	}

	if addValue != nil && addValue.Sign() > 0 {
		used.Add(used, addValue)
	}
	if q.MaxValuePerPeriod != nil && q.MaxValuePerPeriod.Sign() > 0 && used.Cmp(q.MaxValuePerPeriod) > 0 {
		return prev, ErrQuotaValueCapExceeded
	}
	next.ValueUsed = used
	return next, nil
}
