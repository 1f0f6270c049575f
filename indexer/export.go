package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bloomsocial/integrations/exports"
)

// Export formats.
const (
	FormatCSV     = "csv"
	FormatJSONL   = "jsonl"
	FormatParquet = "parquet"
)

// Export is a serialised payout report.
type Export struct {
	Format      string
	ContentType string
	Data        []byte
	Checksum    string
	Rows        int
}

// ExportPayouts renders every claim with claimedAt in [from, to) in format.
func (q *Queries) ExportPayouts(ctx context.Context, format string, from, to int64) (*Export, error) {
	claims, err := q.Claims(ctx, from, to)
	if err != nil {
		return nil, err
	}
	entries := make([]*exports.PayoutEntry, 0, len(claims))
	for _, claim := range claims {
		amount, err := parseStored(claim.Amount)
		if err != nil {
			return nil, err
		}
		entries = append(entries, &exports.PayoutEntry{
			Sequence:  claim.Sequence,
			ContentID: claim.ContentID,
			Kind:      claim.Kind,
			Account:   claim.Account,
			Amount:    amount,
			ClaimedAt: time.Unix(claim.ClaimedAt, 0).UTC(),
		})
	}
	out := &Export{Format: strings.ToLower(format), Rows: len(entries)}
	switch out.Format {
	case FormatCSV, "":
		out.Format = FormatCSV
		out.ContentType = "text/csv"
		out.Data, out.Checksum, err = exports.PayoutsCSV(entries)
	case FormatJSONL:
		out.ContentType = "application/x-ndjson"
		out.Data, out.Checksum, err = exports.PayoutsJSONL(entries)
	case FormatParquet:
		out.ContentType = "application/vnd.apache.parquet"
		out.Data, out.Checksum, err = exports.PayoutsParquet(entries)
	default:
		return nil, fmt.Errorf("indexer: unsupported export format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Save writes the export and a .sha256 sidecar into dir and returns the data
// file path.
func (e *Export) Save(dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("indexer: create export dir: %w", err)
	}
	path := filepath.Join(dir, name+"."+e.Format)
	if err := os.WriteFile(path, e.Data, 0o644); err != nil {
		return "", fmt.Errorf("indexer: write export: %w", err)
	}
	sidecar := fmt.Sprintf("%s  %s\n", e.Checksum, filepath.Base(path))
	if err := os.WriteFile(path+".sha256", []byte(sidecar), 0o644); err != nil {
		return "", fmt.Errorf("indexer: write checksum: %w", err)
	}
	return path, nil
}
