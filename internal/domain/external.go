package domain

import "time"

// Provider identifies the upstream feedback source in ledger keys.
const Provider = "sandbox-api"

const (
	DefaultSourceName = "Sandbox Feedback API"
	DefaultGuestName  = "Hóspede"
	UnknownHotelID    = "hotel-desconhecido"
	UnknownHotelName  = "Hotel não identificado"
	MinMessageLength  = 5
	DefaultRating     = 3
)

// ExternalRecord is one guest review as returned by the upstream API, already
// normalized (rating in [1,5], trimmed message, defaulted hotel and date).
type ExternalRecord struct {
	ExternalID string
	HotelID    string
	GuestName  string
	Email      *string
	Rating     int
	Message    string
	CreatedAt  time.Time
	Source     string
}

// HasUsableHotel reports whether the record can be attributed to a hotel.
func (r ExternalRecord) HasUsableHotel() bool {
	return NormalizeHotelID(r.HotelID) != "" && r.HotelID != UnknownHotelID
}
