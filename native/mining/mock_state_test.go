package mining

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type donorKey struct {
	period uint64
	addr   common.Address
}

type mockData struct {
	params        *Params
	periodCount   uint64
	periods       map[uint64]*RewardPeriod
	donorAmounts  map[donorKey]*big.Int
	donorStakes   map[donorKey]*big.Int
	contributors  map[common.Address]*Contributor
	contribCount  uint64
	contributions map[uint64]*Contribution
}

func newMockData() *mockData {
	return &mockData{
		periods:       make(map[uint64]*RewardPeriod),
		donorAmounts:  make(map[donorKey]*big.Int),
		donorStakes:   make(map[donorKey]*big.Int),
		contributors:  make(map[common.Address]*Contributor),
		contributions: make(map[uint64]*Contribution),
	}
}

func (d *mockData) clone() *mockData {
	out := newMockData()
	out.params = d.params.Clone()
	out.periodCount = d.periodCount
	out.contribCount = d.contribCount
	for k, v := range d.periods {
		out.periods[k] = v.Clone()
	}
	for k, v := range d.donorAmounts {
		out.donorAmounts[k] = new(big.Int).Set(v)
	}
	for k, v := range d.donorStakes {
		out.donorStakes[k] = new(big.Int).Set(v)
	}
	for k, v := range d.contributors {
		out.contributors[k] = v.Clone()
	}
	for k, v := range d.contributions {
		out.contributions[k] = v.Clone()
	}
	return out
}

// mockBackend hands out copy-on-begin transactions; Commit swaps the copy in.
type mockBackend struct {
	mu      sync.Mutex
	data    *mockData
	commits int
}

func newMockBackend() *mockBackend {
	return &mockBackend{data: newMockData()}
}

func (b *mockBackend) Begin() (Txn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &mockTxn{backend: b, data: b.data.clone()}, nil
}

func (b *mockBackend) snapshot() *mockData {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data.clone()
}

type mockTxn struct {
	backend *mockBackend
	data    *mockData
	done    bool
}

func (t *mockTxn) Commit() error {
	if t.done {
		return fmt.Errorf("txn closed")
	}
	t.done = true
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	t.backend.data = t.data
	t.backend.commits++
	return nil
}

func (t *mockTxn) Discard() { t.done = true }

func (t *mockTxn) MiningParams() (*Params, error) { return t.data.params.Clone(), nil }

func (t *mockTxn) SetMiningParams(p *Params) error {
	t.data.params = p.Clone()
	return nil
}

func (t *mockTxn) PeriodCount() (uint64, error) { return t.data.periodCount, nil }

func (t *mockTxn) SetPeriodCount(count uint64) error {
	t.data.periodCount = count
	return nil
}

func (t *mockTxn) Period(number uint64) (*RewardPeriod, error) {
	return t.data.periods[number].Clone(), nil
}

func (t *mockTxn) PutPeriod(p *RewardPeriod) error {
	t.data.periods[p.Number] = p.Clone()
	return nil
}

func (t *mockTxn) DonorAmount(period uint64, donor common.Address) (*big.Int, error) {
	return copyBig(t.data.donorAmounts[donorKey{period, donor}]), nil
}

func (t *mockTxn) SetDonorAmount(period uint64, donor common.Address, amount *big.Int) error {
	t.data.donorAmounts[donorKey{period, donor}] = new(big.Int).Set(amount)
	return nil
}

func (t *mockTxn) DonorStake(period uint64, donor common.Address) (*big.Int, bool, error) {
	v, ok := t.data.donorStakes[donorKey{period, donor}]
	return copyBig(v), ok, nil
}

func (t *mockTxn) SetDonorStake(period uint64, donor common.Address, amount *big.Int) error {
	t.data.donorStakes[donorKey{period, donor}] = new(big.Int).Set(amount)
	return nil
}

func (t *mockTxn) Contributor(addr common.Address) (*Contributor, error) {
	return t.data.contributors[addr].Clone(), nil
}

func (t *mockTxn) PutContributor(addr common.Address, c *Contributor) error {
	t.data.contributors[addr] = c.Clone()
	return nil
}

func (t *mockTxn) ContributionCount() (uint64, error) { return t.data.contribCount, nil }

func (t *mockTxn) SetContributionCount(count uint64) error {
	t.data.contribCount = count
	return nil
}

func (t *mockTxn) Contribution(id uint64) (*Contribution, error) {
	return t.data.contributions[id].Clone(), nil
}

func (t *mockTxn) PutContribution(c *Contribution) error {
	t.data.contributions[c.ID] = c.Clone()
	return nil
}

type fakeClock struct {
	mu    sync.Mutex
	block uint64
}

func (c *fakeClock) BlockNumber() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.block
}

func (c *fakeClock) set(block uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.block = block
}

type mockAssets struct {
	balances   map[string]map[common.Address]*big.Int
	onTransfer func(ctx context.Context, asset string, from, to common.Address, amount *big.Int) error
}

func newMockAssets() *mockAssets {
	return &mockAssets{balances: make(map[string]map[common.Address]*big.Int)}
}

func (a *mockAssets) credit(asset string, addr common.Address, amount int64) {
	asset = NormalizeAsset(asset)
	if a.balances[asset] == nil {
		a.balances[asset] = make(map[common.Address]*big.Int)
	}
	a.balances[asset][addr] = new(big.Int).Add(copyBig(a.balances[asset][addr]), big.NewInt(amount))
}

func (a *mockAssets) BalanceOf(asset string, addr common.Address) (*big.Int, error) {
	return copyBig(a.balances[NormalizeAsset(asset)][addr]), nil
}

func (a *mockAssets) Transfer(ctx context.Context, asset string, from, to common.Address, amount *big.Int) error {
	if a.onTransfer != nil {
		if err := a.onTransfer(ctx, asset, from, to, amount); err != nil {
			return err
		}
	}
	asset = NormalizeAsset(asset)
	bal := copyBig(a.balances[asset][from])
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient %s balance", asset)
	}
	if a.balances[asset] == nil {
		a.balances[asset] = make(map[common.Address]*big.Int)
	}
	a.balances[asset][from] = bal.Sub(bal, amount)
	a.balances[asset][to] = new(big.Int).Add(copyBig(a.balances[asset][to]), amount)
	return nil
}

type mockTreasury struct {
	accepted map[string]int64
}

func (t *mockTreasury) IsAcceptedAsset(asset string) bool {
	_, ok := t.accepted[NormalizeAsset(asset)]
	return ok
}

func (t *mockTreasury) Convert(_ context.Context, asset string, amount *big.Int) (*big.Int, error) {
	rate, ok := t.accepted[NormalizeAsset(asset)]
	if !ok {
		return nil, fmt.Errorf("unknown asset %s", asset)
	}
	return new(big.Int).Mul(amount, big.NewInt(rate)), nil
}

type mockCommunities struct {
	allowed  map[common.Address]bool
	recorded map[common.Address]*big.Int
}

func (c *mockCommunities) ValidateDonation(_ context.Context, community common.Address, _ string) error {
	if !c.allowed[community] {
		return fmt.Errorf("community %s inactive", community.Hex())
	}
	return nil
}

func (c *mockCommunities) RecordDonation(_ context.Context, community, _ common.Address, _ string, amount *big.Int) error {
	if c.recorded == nil {
		c.recorded = make(map[common.Address]*big.Int)
	}
	c.recorded[community] = new(big.Int).Add(copyBig(c.recorded[community]), amount)
	return nil
}

// mockStaking keeps holder balances and reports every change back to the
// engine with the caller's context.
type mockStaking struct {
	engine  *Engine
	assets  *mockAssets
	account common.Address
	asset   string
	stakes  map[common.Address]*big.Int
	total   *big.Int
}

func (s *mockStaking) Deposit(ctx context.Context, from, holder common.Address, amount *big.Int) error {
	if err := s.assets.Transfer(ctx, s.asset, from, s.account, amount); err != nil {
		return err
	}
	if s.stakes == nil {
		s.stakes = make(map[common.Address]*big.Int)
	}
	s.stakes[holder] = new(big.Int).Add(copyBig(s.stakes[holder]), amount)
	s.total = new(big.Int).Add(copyBig(s.total), amount)
	return s.engine.NotifyStake(ctx, holder, s.stakes[holder], s.total)
}

type staticPauses map[string]bool

func (p staticPauses) IsPaused(module string) bool { return p[module] }
