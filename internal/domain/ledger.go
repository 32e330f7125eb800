package domain

import "time"

type LedgerStatus string

const (
	StatusProcessed LedgerStatus = "processed"
	StatusFailed    LedgerStatus = "failed"
)

// LedgerEntry records that an external id was consumed.
//
// Mark has merge semantics: zero values (empty strings, zero time, nil
// pointers) are "not supplied" and keep what is stored. A non-nil Error or
// ImportID pointing at "" clears the stored value.
type LedgerEntry struct {
	Provider    string
	ExternalID  string
	HotelID     string
	HotelName   string
	Status      LedgerStatus
	ProcessedAt time.Time
	Error       *string
	ImportID    *string
}

func LedgerKey(provider, externalID string) string {
	if provider == "" {
		provider = Provider
	}
	return provider + "-" + externalID
}

func (e LedgerEntry) Key() string { return LedgerKey(e.Provider, e.ExternalID) }

// ErrorText returns the stored error or "".
func (e LedgerEntry) ErrorText() string {
	if e.Error == nil {
		return ""
	}
	return *e.Error
}

func (e LedgerEntry) ImportRef() string {
	if e.ImportID == nil {
		return ""
	}
	return *e.ImportID
}
