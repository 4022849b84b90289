package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"contribmine/native/mining"
	"contribmine/storage"
)

// ErrTxnClosed is returned when a committed or discarded transaction is used.
var ErrTxnClosed = errors.New("state: transaction closed")

// Store persists the mining ledger as RLP records under Keccak-hashed keys.
type Store struct {
	db storage.Database
}

// NewStore wraps the provided database.
func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

// Begin opens a write-buffered transaction. Reads fall through to the
// database for keys the transaction has not written.
func (s *Store) Begin() (mining.Txn, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("state: store not configured")
	}
	return &Txn{db: s.db, writes: make(map[string][]byte)}, nil
}

// Txn buffers writes in memory until Commit flushes them as one batch.
type Txn struct {
	db     storage.Database
	writes map[string][]byte
	closed bool
}

var _ mining.Txn = (*Txn)(nil)

func (t *Txn) get(key []byte) ([]byte, error) {
	if t.closed {
		return nil, ErrTxnClosed
	}
	if value, ok := t.writes[string(key)]; ok {
		return value, nil
	}
	value, err := t.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return value, err
}

func (t *Txn) put(key []byte, value interface{}) error {
	if t.closed {
		return ErrTxnClosed
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	t.writes[string(key)] = encoded
	return nil
}

// load decodes the record at key into out and reports whether it existed.
func (t *Txn) load(key []byte, out interface{}) (bool, error) {
	data, err := t.get(key)
	if err != nil || len(data) == 0 {
		return false, err
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func (t *Txn) loadUint(key []byte) (uint64, error) {
	var v uint64
	_, err := t.load(key, &v)
	return v, err
}

func (t *Txn) loadBig(key []byte) (*big.Int, bool, error) {
	v := new(big.Int)
	ok, err := t.load(key, v)
	if err != nil {
		return nil, false, err
	}
	return v, ok, nil
}

// Commit writes every buffered record atomically.
func (t *Txn) Commit() error {
	if t.closed {
		return ErrTxnClosed
	}
	t.closed = true
	if len(t.writes) == 0 {
		return nil
	}
	batch := t.db.NewBatch()
	for key, value := range t.writes {
		batch.Put([]byte(key), value)
	}
	t.writes = nil
	return batch.Write()
}

// Discard drops every buffered write.
func (t *Txn) Discard() {
	t.closed = true
	t.writes = nil
}

func (t *Txn) MiningParams() (*mining.Params, error) {
	params := new(mining.Params)
	ok, err := t.load(miningParamsKey, params)
	if err != nil || !ok {
		return nil, err
	}
	return params, nil
}

func (t *Txn) SetMiningParams(params *mining.Params) error {
	if params == nil {
		return fmt.Errorf("state: nil mining params")
	}
	return t.put(miningParamsKey, params)
}

func (t *Txn) PeriodCount() (uint64, error) {
	return t.loadUint(miningPeriodCountKey)
}

func (t *Txn) SetPeriodCount(count uint64) error {
	return t.put(miningPeriodCountKey, count)
}

func (t *Txn) Period(number uint64) (*mining.RewardPeriod, error) {
	period := new(mining.RewardPeriod)
	ok, err := t.load(miningPeriodKey(number), period)
	if err != nil || !ok {
		return nil, err
	}
	return period, nil
}

func (t *Txn) PutPeriod(period *mining.RewardPeriod) error {
	if period == nil {
		return fmt.Errorf("state: nil period")
	}
	return t.put(miningPeriodKey(period.Number), period)
}

func (t *Txn) DonorAmount(period uint64, donor common.Address) (*big.Int, error) {
	amount, _, err := t.loadBig(miningDonorAmountKey(period, donor))
	return amount, err
}

func (t *Txn) SetDonorAmount(period uint64, donor common.Address, amount *big.Int) error {
	return t.put(miningDonorAmountKey(period, donor), nonNegative(amount))
}

func (t *Txn) DonorStake(period uint64, donor common.Address) (*big.Int, bool, error) {
	return t.loadBig(miningDonorStakeKey(period, donor))
}

func (t *Txn) SetDonorStake(period uint64, donor common.Address, amount *big.Int) error {
	return t.put(miningDonorStakeKey(period, donor), nonNegative(amount))
}

func (t *Txn) Contributor(addr common.Address) (*mining.Contributor, error) {
	contributor := new(mining.Contributor)
	ok, err := t.load(miningContributorKey(addr), contributor)
	if err != nil || !ok {
		return nil, err
	}
	return contributor, nil
}

func (t *Txn) PutContributor(addr common.Address, contributor *mining.Contributor) error {
	if contributor == nil {
		return fmt.Errorf("state: nil contributor")
	}
	return t.put(miningContributorKey(addr), contributor)
}

func (t *Txn) ContributionCount() (uint64, error) {
	return t.loadUint(miningContributionCountKey)
}

func (t *Txn) SetContributionCount(count uint64) error {
	return t.put(miningContributionCountKey, count)
}

func (t *Txn) Contribution(id uint64) (*mining.Contribution, error) {
	record := new(mining.Contribution)
	ok, err := t.load(miningContributionKey(id), record)
	if err != nil || !ok {
		return nil, err
	}
	return record, nil
}

func (t *Txn) PutContribution(record *mining.Contribution) error {
	if record == nil {
		return fmt.Errorf("state: nil contribution")
	}
	return t.put(miningContributionKey(record.ID), record)
}

func nonNegative(v *big.Int) *big.Int {
	if v == nil || v.Sign() < 0 {
		return big.NewInt(0)
	}
	return v
}
