package community

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
	ErrCommunityNotFound = errors.New("community: not found")
	ErrCommunityInactive = errors.New("community: inactive")
	ErrAssetMismatch     = errors.New("community: asset not accepted by community")
	ErrCommunityExists   = errors.New("community: already registered")
)

// Community is a sub-organization that may receive contributions.
type Community struct {
	Address   common.Address
	Name      string
	Asset     string
	Active    bool
	Donations map[string]*big.Int
}

func (c *Community) clone() *Community {
	out := *c
	out.Donations = make(map[string]*big.Int, len(c.Donations))
	for asset, amount := range c.Donations {
		out.Donations[asset] = new(big.Int).Set(amount)
	}
	return &out
}

// Registry tracks authorised communities and the donations routed to them.
type Registry struct {
	mu          sync.RWMutex
	communities map[common.Address]*Community
}

func NewRegistry() *Registry {
	return &Registry{communities: make(map[common.Address]*Community)}
}

// Register adds an active community. An empty asset accepts any asset.
func (r *Registry) Register(addr common.Address, name, asset string) error {
	if addr == (common.Address{}) {
		return fmt.Errorf("community: address required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.communities[addr]; ok {
		return ErrCommunityExists
	}
	r.communities[addr] = &Community{
		Address:   addr,
		Name:      strings.TrimSpace(name),
		Asset:     normalize(asset),
		Active:    true,
		Donations: make(map[string]*big.Int),
	}
	return nil
}

// SetActive toggles whether the community may receive contributions.
func (r *Registry) SetActive(addr common.Address, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.communities[addr]
	if !ok {
		return ErrCommunityNotFound
	}
	c.Active = active
	return nil
}

// ValidateDonation checks that the community exists, is active and accepts
// the asset.
func (r *Registry) ValidateDonation(_ context.Context, addr common.Address, asset string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.communities[addr]
	switch {
	case !ok:
		return ErrCommunityNotFound
	case !c.Active:
		return ErrCommunityInactive
	case c.Asset != "" && c.Asset != normalize(asset):
		return fmt.Errorf("%w: %s", ErrAssetMismatch, asset)
	}
	return nil
}

// RecordDonation tallies the raw amount received by the community.
func (r *Registry) RecordDonation(_ context.Context, addr, _ common.Address, asset string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("community: invalid donation amount")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.communities[addr]
	if !ok {
		return ErrCommunityNotFound
	}
	symbol := normalize(asset)
	current, ok := c.Donations[symbol]
	if !ok {
		current = big.NewInt(0)
	}
	c.Donations[symbol] = new(big.Int).Add(current, amount)
	return nil
}

// Get returns a copy of the community.
func (r *Registry) Get(addr common.Address) (*Community, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.communities[addr]
	if !ok {
		return nil, ErrCommunityNotFound
	}
	return c.clone(), nil
}

// List returns all communities ordered by address.
func (r *Registry) List() []*Community {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Community, 0, len(r.communities))
	for _, c := range r.communities {
		out = append(out, c.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.Compare(out[i].Address.Hex(), out[j].Address.Hex()) < 0
	})
	return out
}

func normalize(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}
