package index

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContributionRow mirrors an immutable contribution record.
type ContributionRow struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	ContributionID uint64    `gorm:"uniqueIndex"`
	Contributor    string    `gorm:"size:42;index"`
	Target         string    `gorm:"size:42"`
	TargetKind     string    `gorm:"size:16"`
	Period         uint64    `gorm:"index"`
	Block          uint64
	Amount         string `gorm:"size:80"`
	Asset          string `gorm:"size:16"`
	RawAmount      string `gorm:"size:80"`
	CreatedAt      time.Time
}

// SettlementRow records one settlement of periods (FromPeriod, ToPeriod].
type SettlementRow struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Contributor string    `gorm:"size:42;index"`
	Mode        string    `gorm:"size:16"`
	FromPeriod  uint64
	ToPeriod    uint64 `gorm:"index"`
	Owed        string `gorm:"size:80"`
	Paid        string `gorm:"size:80"`
	Shortfall   string `gorm:"size:80"`
	CreatedAt   time.Time
}

// AutoMigrate performs all schema migrations for the indexer.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&ContributionRow{}, &SettlementRow{})
}
