package state

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"contribmine/native/bank"
	"contribmine/native/mining"
	"contribmine/native/staking"
	"contribmine/storage"
)

var (
	minerAccount    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	treasuryAccount = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	stakingAccount  = common.HexToAddress("0x00000000000000000000000000000000000000a3")
	donor           = common.HexToAddress("0x00000000000000000000000000000000000000b1")
)

func TestTxnBuffersUntilCommit(t *testing.T) {
	db := storage.NewMemDB()
	store := NewStore(db)

	txn, err := store.Begin()
	require.NoError(t, err)
	require.NoError(t, txn.SetPeriodCount(7))
	require.NoError(t, txn.SetDonorStake(3, donor, big.NewInt(0)))

	other, err := store.Begin()
	require.NoError(t, err)
	count, err := other.PeriodCount()
	require.NoError(t, err)
	require.Zero(t, count, "uncommitted writes must stay private")
	other.Discard()

	require.NoError(t, txn.Commit())
	require.ErrorIs(t, txn.Commit(), ErrTxnClosed)

	reader, err := store.Begin()
	require.NoError(t, err)
	defer reader.Discard()
	count, err = reader.PeriodCount()
	require.NoError(t, err)
	require.Equal(t, uint64(7), count)
	stake, ok, err := reader.DonorStake(3, donor)
	require.NoError(t, err)
	require.True(t, ok, "zero snapshot must still be recorded as set")
	require.Zero(t, stake.Sign())
	_, ok, err = reader.DonorStake(4, donor)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDiscardDropsWrites(t *testing.T) {
	store := NewStore(storage.NewMemDB())
	txn, err := store.Begin()
	require.NoError(t, err)
	require.NoError(t, txn.PutContributor(donor, &mining.Contributor{Initialized: true, LastSettledPeriod: 4}))
	txn.Discard()

	reader, err := store.Begin()
	require.NoError(t, err)
	defer reader.Discard()
	contributor, err := reader.Contributor(donor)
	require.NoError(t, err)
	require.Nil(t, contributor)
}

func testParams() *mining.Params {
	params := mining.DefaultParams()
	params.PeriodLength = 100
	params.DecayNumerator = 99
	params.DecayDenominator = 100
	params.StakingDonationRatio = 1
	params.WindowSize = 2
	params.MinerAccount = minerAccount
	params.TreasuryAccount = treasuryAccount
	params.StakingAccount = stakingAccount
	return params
}

func TestEngineOverLevelDBSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	var block uint64 = 10
	clock := mining.ClockFunc(func() uint64 { return block })

	ledger := bank.NewLedger(storage.NewMemDB())
	require.NoError(t, ledger.Mint(mining.DefaultNativeAsset, donor, big.NewInt(1000)))
	require.NoError(t, ledger.Mint(mining.DefaultRewardAsset, minerAccount, big.NewInt(1_000_000)))
	stakes := staking.NewModule(storage.NewMemDB(), ledger, stakingAccount, mining.DefaultRewardAsset)

	db, err := storage.NewLevelDB(dir)
	require.NoError(t, err)
	engine, err := mining.NewEngine(NewStore(db), clock, mining.WithAssets(ledger), mining.WithStaking(stakes))
	require.NoError(t, err)
	stakes.SetNotifier(engine)

	require.NoError(t, engine.Initialize(ctx, testParams(), 0, big.NewInt(1000)))
	record, err := engine.Contribute(ctx, mining.ContributionRequest{Contributor: donor, Asset: "cusd", Amount: big.NewInt(300)})
	require.NoError(t, err)
	require.Equal(t, uint64(1), record.ID)

	block = 150
	settled, err := engine.Stake(ctx, donor)
	require.NoError(t, err)
	require.Equal(t, int64(100000), settled.Paid.Int64())

	position, total, err := stakes.Totals(donor)
	require.NoError(t, err)
	require.Equal(t, int64(100000), position.Int64())
	require.Equal(t, int64(100000), total.Int64())
	db.Close()

	reopened, err := storage.NewLevelDB(dir)
	require.NoError(t, err)
	defer reopened.Close()
	engine, err = mining.NewEngine(NewStore(reopened), clock, mining.WithAssets(ledger))
	require.NoError(t, err)

	contributor, err := engine.Contributor(ctx, donor)
	require.NoError(t, err)
	require.NotNil(t, contributor)
	require.Equal(t, uint64(1), contributor.LastSettledPeriod)
	require.Equal(t, []uint64{1}, contributor.ParticipatedPeriods)
	require.Equal(t, int64(100000), contributor.LastStake.Int64())

	stored, err := engine.Contribution(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "CUSD", stored.Asset)
	require.Equal(t, int64(300), stored.Amount.Int64())
	require.Equal(t, mining.TargetKindTreasury, stored.TargetKind)

	snapshot, ok, err := engine.PeriodDonorStake(ctx, 2, donor)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(100000), snapshot.Int64())

	params, err := engine.Params(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), params.WindowSize)
	require.Equal(t, minerAccount, params.MinerAccount)
}
