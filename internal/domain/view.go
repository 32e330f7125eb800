package domain

import "time"

// Read models for the integrations dashboard.

type PendingItem struct {
	ExternalID string    `json:"externalId"`
	Provider   string    `json:"provider"`
	HotelID    string    `json:"hotelId"`
	HotelName  string    `json:"hotelName"`
	GuestName  string    `json:"guestName"`
	Rating     int       `json:"rating"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"createdAt"`
}

type HistoryItem struct {
	ExternalID  string       `json:"externalId"`
	Provider    string       `json:"provider"`
	HotelID     string       `json:"hotelId"`
	HotelName   string       `json:"hotelName"`
	Status      LedgerStatus `json:"status"`
	ProcessedAt time.Time    `json:"processedAt"`
	Error       string       `json:"error,omitempty"`
	ImportID    string       `json:"importId,omitempty"`
}

type Totals struct {
	Pending   int `json:"pending"`
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

type SourceInfo struct {
	BaseURL string `json:"baseUrl"`
}

type ViewMetadata struct {
	UpdatedAt  time.Time  `json:"updatedAt"`
	LastSyncAt *time.Time `json:"lastSyncAt"`
}

type DashboardView struct {
	Source    SourceInfo    `json:"source"`
	Pending   []PendingItem `json:"pending"`
	Processed []HistoryItem `json:"processed"`
	Totals    Totals        `json:"totals"`
	Metadata  ViewMetadata  `json:"metadata"`
}
