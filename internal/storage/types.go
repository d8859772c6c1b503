package storage

import (
	"strings"
	"time"
)

// TimestampLayout is the ISO-8601 form used for service-assigned timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// TxRecord is a transaction reported by a client. Fields are stored as sent;
// nothing here is checked against the chain.
type TxRecord struct {
	Hash      string `json:"hash"`
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    string `json:"amount"`
	Timestamp string `json:"timestamp"`
}

// Involves reports whether address is the sender or the receiver.
// Hex addresses differ only by checksum casing, so the match ignores case.
func (r TxRecord) Involves(address string) bool {
	return strings.EqualFold(r.From, address) || strings.EqualFold(r.To, address)
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
