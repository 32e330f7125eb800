package domain

import "time"

type NamedCount struct {
	Name  string `json:"name" bson:"name"`
	Value int    `json:"value" bson:"value"`
}

type LabeledCount struct {
	Label string `json:"label" bson:"label"`
	Value int    `json:"value" bson:"value"`
}

type RatingCount struct {
	Rating int `json:"rating" bson:"rating"`
	Count  int `json:"count" bson:"count"`
}

// Summary holds the precomputed distributions of one analysis batch.
type Summary struct {
	TotalFeedbacks       int            `json:"totalFeedbacks" bson:"totalFeedbacks"`
	AverageRating        float64        `json:"averageRating" bson:"averageRating"`
	PositiveSentiment    int            `json:"positiveSentiment" bson:"positiveSentiment"`
	HotelDistribution    []NamedCount   `json:"hotelDistribution" bson:"hotelDistribution"`
	SourceDistribution   []LabeledCount `json:"sourceDistribution" bson:"sourceDistribution"`
	LanguageDistribution []LabeledCount `json:"languageDistribution" bson:"languageDistribution"`
	RatingDistribution   []RatingCount  `json:"ratingDistribution" bson:"ratingDistribution"`
	ProblemDistribution  []LabeledCount `json:"problemDistribution" bson:"problemDistribution"`
	KeywordDistribution  []NamedCount   `json:"keywordDistribution" bson:"keywordDistribution"`
	UnitDistribution     []NamedCount   `json:"apartamentoDistribution" bson:"apartamentoDistribution"`
	RecentFeedbacks      []Feedback     `json:"recentFeedbacks" bson:"recentFeedbacks"`
}

// AnalysisBatch is one hotel's feedbacks from one ingestion run.
// LedgerApplied flips to true once every ledger mark for Data was written.
type AnalysisBatch struct {
	HotelID       string     `json:"hotelId" bson:"hotelId"`
	HotelName     string     `json:"hotelName" bson:"hotelName"`
	ImportID      string     `json:"importId" bson:"importId"`
	ImportDate    time.Time  `json:"importDate" bson:"importDate"`
	Data          []Feedback `json:"data" bson:"data"`
	Analysis      Summary    `json:"analysis" bson:"analysis"`
	LedgerApplied bool       `json:"ledgerApplied" bson:"ledgerApplied"`
}

// ImportEvent is published after a batch is committed.
type ImportEvent struct {
	HotelID    string    `json:"hotelId"`
	HotelName  string    `json:"hotelName"`
	ImportID   string    `json:"importId"`
	Count      int       `json:"count"`
	ImportedAt time.Time `json:"importedAt"`
}
