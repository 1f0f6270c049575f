package exports

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

type payoutRow struct {
	Sequence  int64  `parquet:"name=sequence, type=INT64"`
	ContentID int64  `parquet:"name=content_id, type=INT64"`
	Kind      string `parquet:"name=kind, type=BYTE_ARRAY, convertedtype=UTF8"`
	Account   string `parquet:"name=account, type=BYTE_ARRAY, convertedtype=UTF8"`
	Amount    string `parquet:"name=amount, type=BYTE_ARRAY, convertedtype=UTF8"`
	ClaimedAt string `parquet:"name=claimed_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// PayoutsParquet encodes the payouts as a snappy-compressed parquet file and
// returns it with its SHA-256 checksum.
func PayoutsParquet(entries []*PayoutEntry) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	fw := writerfile.NewWriterFile(buffer)
	pw, err := writer.NewParquetWriter(fw, new(payoutRow), 1)
	if err != nil {
		return nil, "", fmt.Errorf("exports: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		row := &payoutRow{
			Sequence:  int64(entry.Sequence),
			ContentID: int64(entry.ContentID),
			Kind:      entry.Kind,
			Account:   entry.Account,
			Amount:    entry.amount(),
			ClaimedAt: entry.ClaimedAt.UTC().Format(time.RFC3339),
		}
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			return nil, "", fmt.Errorf("exports: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, "", fmt.Errorf("exports: parquet flush: %w", err)
	}
	data := buffer.Bytes()
	return data, checksum(data), nil
}
