package mining

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// windowAccumulator walks periods in ascending order and keeps the donor's and
// the ledger's contribution sums over each period's trailing window
// [max(1, p-w), p]. While consecutive periods share a window size the sums are
// slid by one period; whenever the size changes, or on the first step, the
// window is re-summed from scratch.
type windowAccumulator struct {
	op       *operation
	donor    common.Address
	primed   bool
	period   uint64
	size     uint64
	donorSum *big.Int
	totalSum *big.Int
}

func newWindowAccumulator(op *operation, donor common.Address) *windowAccumulator {
	return &windowAccumulator{
		op:       op,
		donor:    donor,
		donorSum: big.NewInt(0),
		totalSum: big.NewInt(0),
	}
}

// step advances the accumulator to period, which must directly follow the
// previously stepped period unless the accumulator is not yet primed.
func (w *windowAccumulator) step(period *RewardPeriod) error {
	switch {
	case period.WindowSize == 0:
		donorAmt, err := w.op.txn.DonorAmount(period.Number, w.donor)
		if err != nil {
			return err
		}
		w.donorSum = copyBig(donorAmt)
		w.totalSum = copyBig(period.DonationsAmount)
	case w.primed && w.period+1 == period.Number && w.size == period.WindowSize:
		donorAmt, err := w.op.txn.DonorAmount(period.Number, w.donor)
		if err != nil {
			return err
		}
		w.donorSum.Add(w.donorSum, orZero(donorAmt))
		w.totalSum.Add(w.totalSum, period.DonationsAmount)
		if period.Number > period.WindowSize+1 {
			drop := period.Number - period.WindowSize - 1
			dropped, err := w.op.period(drop)
			if err != nil {
				return err
			}
			droppedDonor, err := w.op.txn.DonorAmount(drop, w.donor)
			if err != nil {
				return err
			}
			w.donorSum.Sub(w.donorSum, orZero(droppedDonor))
			w.totalSum.Sub(w.totalSum, dropped.DonationsAmount)
		}
	default:
		donorSum, totalSum, err := w.op.sumWindow(w.donor, period)
		if err != nil {
			return err
		}
		w.donorSum, w.totalSum = donorSum, totalSum
	}
	w.primed = true
	w.period = period.Number
	w.size = period.WindowSize
	return nil
}

// sumWindow re-sums the donor's and the ledger's contributions over the
// trailing window of period.
func (op *operation) sumWindow(donor common.Address, period *RewardPeriod) (*big.Int, *big.Int, error) {
	donorSum := big.NewInt(0)
	totalSum := big.NewInt(0)
	for n := windowStart(period.Number, period.WindowSize); n <= period.Number; n++ {
		current := period
		if n != period.Number {
			var err error
			if current, err = op.period(n); err != nil {
				return nil, nil, err
			}
		}
		amount, err := op.txn.DonorAmount(n, donor)
		if err != nil {
			return nil, nil, err
		}
		donorSum.Add(donorSum, orZero(amount))
		totalSum.Add(totalSum, current.DonationsAmount)
	}
	return donorSum, totalSum, nil
}

// windowTotals is the reference computation exposed to queries.
func (op *operation) windowTotals(donor common.Address, number uint64) (*WindowTotals, error) {
	period, err := op.period(number)
	if err != nil {
		return nil, err
	}
	donorSum, totalSum, err := op.sumWindow(donor, period)
	if err != nil {
		return nil, err
	}
	return &WindowTotals{
		Period:      number,
		WindowStart: windowStart(number, period.WindowSize),
		DonorAmount: donorSum,
		TotalAmount: totalSum,
	}, nil
}

// shareOf returns reward*(donor*ratio + stake) / (total*ratio + stakes), or
// zero when the denominator is zero.
func shareOf(reward, donor, total *big.Int, ratio uint64, stake, stakes *big.Int) *big.Int {
	r := new(big.Int).SetUint64(ratio)
	num := new(big.Int).Mul(orZero(donor), r)
	num.Add(num, orZero(stake))
	if num.Sign() == 0 {
		return big.NewInt(0)
	}
	den := new(big.Int).Mul(orZero(total), r)
	den.Add(den, orZero(stakes))
	if den.Sign() == 0 {
		return big.NewInt(0)
	}
	num.Mul(num, reward)
	return num.Quo(num, den)
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
