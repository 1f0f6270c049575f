package exports

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"math/big"
	"strconv"
	"time"
)

// PayoutEntry is one reward withdrawal from a content pool.
type PayoutEntry struct {
	Sequence  uint64
	ContentID uint64
	Kind      string
	Account   string
	Amount    *big.Int
	ClaimedAt time.Time
}

func (e *PayoutEntry) amount() string {
	if e.Amount == nil {
		return "0"
	}
	return e.Amount.String()
}

// PayoutsCSV builds a CSV export for the supplied payouts and returns the
// serialised data alongside a SHA-256 checksum of the payload.
func PayoutsCSV(entries []*PayoutEntry) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)
	header := []string{"sequence", "content_id", "kind", "account", "amount", "claimed_at"}
	if err := writer.Write(header); err != nil {
		return nil, "", err
	}
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		record := []string{
			strconv.FormatUint(entry.Sequence, 10),
			strconv.FormatUint(entry.ContentID, 10),
			entry.Kind,
			entry.Account,
			entry.amount(),
			entry.ClaimedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}
	data := buffer.Bytes()
	return data, checksum(data), nil
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
