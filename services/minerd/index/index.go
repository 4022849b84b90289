// Package index persists mining events into a relational store for history
// queries and exports.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"contribmine/core/events"
)

const defaultQueueSize = 1024

// Open connects to the configured driver and migrates the schema.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("index: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("index: open: %w", err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("index: migrate: %w", err)
	}
	return db, nil
}

// Indexer consumes engine events. Emit never blocks the engine: events are
// queued and persisted by Run.
type Indexer struct {
	db     *gorm.DB
	logger *slog.Logger
	queue  chan events.Event

	mu      sync.Mutex
	dropped uint64
}

// New returns an indexer writing to db.
func New(db *gorm.DB, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{db: db, logger: logger, queue: make(chan events.Event, defaultQueueSize)}
}

// Emit implements events.Emitter.
func (i *Indexer) Emit(evt events.Event) {
	switch evt.(type) {
	case events.MiningContributionRecorded, events.MiningRewardSettled:
	default:
		return
	}
	select {
	case i.queue <- evt:
	default:
		i.mu.Lock()
		i.dropped++
		i.mu.Unlock()
		i.logger.Warn("index queue full, event dropped", "type", evt.EventType())
	}
}

// Dropped reports how many events were discarded because the queue was full.
func (i *Indexer) Dropped() uint64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.dropped
}

// Run persists queued events until ctx is cancelled, then drains what is left.
// Writes already dequeued complete even if ctx is cancelled meanwhile.
func (i *Indexer) Run(ctx context.Context) error {
	writeCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			i.drain(writeCtx)
			return ctx.Err()
		case evt := <-i.queue:
			if err := i.Record(writeCtx, evt); err != nil {
				i.logger.Error("index event", "type", evt.EventType(), "error", err)
			}
		}
	}
}

func (i *Indexer) drain(ctx context.Context) {
	for {
		select {
		case evt := <-i.queue:
			if err := i.Record(ctx, evt); err != nil {
				i.logger.Error("index event", "type", evt.EventType(), "error", err)
			}
		default:
			return
		}
	}
}

// Record persists a single event synchronously.
func (i *Indexer) Record(ctx context.Context, evt events.Event) error {
	switch v := evt.(type) {
	case events.MiningContributionRecorded:
		row := ContributionRow{
			ID:             uuid.New(),
			ContributionID: v.ID,
			Contributor:    strings.ToLower(v.Contributor.Hex()),
			Target:         strings.ToLower(v.Target.Hex()),
			TargetKind:     v.TargetKind,
			Period:         v.Period,
			Block:          v.Block,
			Amount:         amountString(v.Amount),
			Asset:          v.Asset,
			RawAmount:      amountString(v.RawAmount),
		}
		return i.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
	case events.MiningRewardSettled:
		shortfall := new(big.Int)
		if v.Owed != nil && v.Paid != nil {
			shortfall.Sub(v.Owed, v.Paid)
		}
		row := SettlementRow{
			ID:          uuid.New(),
			Contributor: strings.ToLower(v.Contributor.Hex()),
			Mode:        v.Mode,
			FromPeriod:  v.FromPeriod,
			ToPeriod:    v.ToPeriod,
			Owed:        amountString(v.Owed),
			Paid:        amountString(v.Paid),
			Shortfall:   shortfall.String(),
		}
		return i.db.WithContext(ctx).Create(&row).Error
	case nil:
		return errors.New("index: nil event")
	default:
		return nil
	}
}

// History lists a contributor's indexed contributions and settlements, most
// recent first. A non-positive limit returns every row.
func (i *Indexer) History(ctx context.Context, contributor string, limit int) ([]ContributionRow, []SettlementRow, error) {
	addr := strings.ToLower(strings.TrimSpace(contributor))
	var contributions []ContributionRow
	q := i.db.WithContext(ctx).Where("contributor = ?", addr).Order("contribution_id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&contributions).Error; err != nil {
		return nil, nil, fmt.Errorf("index: contributions: %w", err)
	}
	var settlements []SettlementRow
	q = i.db.WithContext(ctx).Where("contributor = ?", addr).Order("to_period DESC").Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&settlements).Error; err != nil {
		return nil, nil, fmt.Errorf("index: settlements: %w", err)
	}
	return contributions, settlements, nil
}

// Contributions returns every contribution with a period in [from, to], in id
// order. A zero to means no upper bound.
func (i *Indexer) Contributions(ctx context.Context, from, to uint64) ([]ContributionRow, error) {
	q := i.db.WithContext(ctx).Where("period >= ?", from)
	if to > 0 {
		q = q.Where("period <= ?", to)
	}
	var rows []ContributionRow
	if err := q.Order("contribution_id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("index: contributions: %w", err)
	}
	return rows, nil
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
