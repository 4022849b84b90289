package index

import (
	"context"
	"fmt"
	"io"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

type contributionParquetRow struct {
	ContributionID int64  `parquet:"name=contribution_id, type=INT64"`
	Contributor    string `parquet:"name=contributor, type=BYTE_ARRAY, convertedtype=UTF8"`
	Target         string `parquet:"name=target, type=BYTE_ARRAY, convertedtype=UTF8"`
	TargetKind     string `parquet:"name=target_kind, type=BYTE_ARRAY, convertedtype=UTF8"`
	Period         int64  `parquet:"name=period, type=INT64"`
	Block          int64  `parquet:"name=block, type=INT64"`
	Amount         string `parquet:"name=amount, type=BYTE_ARRAY, convertedtype=UTF8"`
	Asset          string `parquet:"name=asset, type=BYTE_ARRAY, convertedtype=UTF8"`
	RawAmount      string `parquet:"name=raw_amount, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// ExportContributions writes the contributions of periods [from, to] to w as a
// SNAPPY compressed parquet file and returns the number of rows written.
func (i *Indexer) ExportContributions(ctx context.Context, w io.Writer, from, to uint64) (int, error) {
	rows, err := i.Contributions(ctx, from, to)
	if err != nil {
		return 0, err
	}
	fw := writerfile.NewWriterFile(w)
	pw, err := writer.NewParquetWriter(fw, new(contributionParquetRow), 1)
	if err != nil {
		return 0, fmt.Errorf("index: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, row := range rows {
		pr := &contributionParquetRow{
			ContributionID: int64(row.ContributionID),
			Contributor:    row.Contributor,
			Target:         row.Target,
			TargetKind:     row.TargetKind,
			Period:         int64(row.Period),
			Block:          int64(row.Block),
			Amount:         row.Amount,
			Asset:          row.Asset,
			RawAmount:      row.RawAmount,
		}
		if err := pw.Write(pr); err != nil {
			_ = pw.WriteStop()
			return 0, fmt.Errorf("index: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return 0, fmt.Errorf("index: parquet flush: %w", err)
	}
	return len(rows), nil
}
