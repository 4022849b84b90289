package index

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/reader"

	"contribmine/core/events"
)

var (
	donor    = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	treasury = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func newTestIndexer(t *testing.T) *Indexer {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := Open("sqlite", dsn)
	require.NoError(t, err)
	return New(db, nil)
}

func contribution(id, period uint64, amount int64) events.MiningContributionRecorded {
	return events.MiningContributionRecorded{
		ID:          id,
		Contributor: donor,
		Target:      treasury,
		TargetKind:  "treasury",
		Period:      period,
		Block:       period * 100,
		Amount:      big.NewInt(amount),
		Asset:       "CUSD",
		RawAmount:   big.NewInt(amount),
	}
}

func TestRecordAndHistory(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndexer(t)

	require.NoError(t, idx.Record(ctx, contribution(1, 1, 300)))
	require.NoError(t, idx.Record(ctx, contribution(2, 2, 500)))
	// replays of the same contribution id are ignored
	require.NoError(t, idx.Record(ctx, contribution(2, 2, 500)))
	require.NoError(t, idx.Record(ctx, events.MiningRewardSettled{
		Contributor: donor,
		Mode:        "claim",
		FromPeriod:  0,
		ToPeriod:    2,
		Owed:        big.NewInt(900),
		Paid:        big.NewInt(600),
	}))
	require.NoError(t, idx.Record(ctx, events.MiningStakeUpdated{Holder: donor}))

	contributions, settlements, err := idx.History(ctx, donor.Hex(), 0)
	require.NoError(t, err)
	require.Len(t, contributions, 2)
	require.Equal(t, uint64(2), contributions[0].ContributionID)
	require.Equal(t, "500", contributions[0].Amount)
	require.Len(t, settlements, 1)
	require.Equal(t, "300", settlements[0].Shortfall)

	limited, _, err := idx.History(ctx, donor.Hex(), 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestRunDrainsQueue(t *testing.T) {
	idx := newTestIndexer(t)
	idx.Emit(contribution(7, 3, 42))
	idx.Emit(events.MiningPeriodCreated{Period: 3})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, idx.Run(ctx), context.Canceled)

	rows, err := idx.Contributions(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, uint64(7), rows[0].ContributionID)
	require.Zero(t, idx.Dropped())
}

func TestExportContributionsParquet(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndexer(t)
	for id := uint64(1); id <= 4; id++ {
		require.NoError(t, idx.Record(ctx, contribution(id, id, int64(id*10))))
	}

	var buf bytes.Buffer
	n, err := idx.ExportContributions(ctx, &buf, 2, 3)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.True(t, bytes.HasPrefix(buf.Bytes(), []byte("PAR1")))

	pf := buffer.NewBufferFileFromBytes(buf.Bytes())
	pr, err := reader.NewParquetReader(pf, new(contributionParquetRow), 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	require.Equal(t, int64(2), pr.GetNumRows())
	rows := make([]contributionParquetRow, 2)
	require.NoError(t, pr.Read(&rows))
	require.Equal(t, int64(2), rows[0].ContributionID)
	require.Equal(t, "30", rows[1].Amount)
}
