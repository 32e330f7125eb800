package domain

import (
	"encoding/json"
	"time"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

const (
	NotIdentified   = "Não identificado"
	EmptyProblem    = "EMPTY"
	DefaultLanguage = "pt-BR"
)

// SentimentForRating derives sentiment from a 1–5 rating.
func SentimentForRating(rating int) Sentiment {
	switch {
	case rating >= 4:
		return SentimentPositive
	case rating <= 2:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// SentimentHint is the classifier's own sentiment. The analysis service sends
// it as a 1-5 score, older deployments as a label. Stored sentiment is derived
// from the final rating, so the hint is informational.
type SentimentHint string

func (h *SentimentHint) UnmarshalJSON(b []byte) error {
	var s string
	if json.Unmarshal(b, &s) == nil {
		*h = SentimentHint(s)
		return nil
	}
	var n json.Number
	if json.Unmarshal(b, &n) == nil {
		*h = SentimentHint(n.String())
		return nil
	}
	*h = ""
	return nil
}

// ProblemDetail is one issue found by the classifier.
type ProblemDetail struct {
	Keyword       string  `json:"keyword" bson:"keyword"`
	Sector        string  `json:"sector" bson:"sector"`
	Problem       string  `json:"problem" bson:"problem"`
	ProblemDetail string  `json:"problem_detail" bson:"problem_detail"`
	Confidence    float64 `json:"confidence,omitempty" bson:"confidence,omitempty"`
	MatchedBy     string  `json:"matched_by,omitempty" bson:"matched_by,omitempty"`
}

// Classification is the analysis service's answer for one feedback text.
type Classification struct {
	Rating            *float64        `json:"rating,omitempty"`
	Sentiment         SentimentHint   `json:"sentiment,omitempty"`
	Keyword           string          `json:"keyword"`
	Sector            string          `json:"sector"`
	Problem           string          `json:"problem"`
	ProblemDetail     string          `json:"problem_detail,omitempty"`
	HasSuggestion     *bool           `json:"has_suggestion,omitempty"`
	SuggestionType    string          `json:"suggestion_type,omitempty"`
	SuggestionSummary string          `json:"suggestion_summary,omitempty"`
	Compliments       string          `json:"compliments,omitempty"`
	PositiveDetails   string          `json:"positive_details,omitempty"`
	Reasoning         string          `json:"reasoning,omitempty"`
	Confidence        *float64        `json:"confidence,omitempty"`
	AllProblems       []ProblemDetail `json:"allProblems,omitempty"`
}

// Feedback is the canonical entity stored inside analysis batches.
type Feedback struct {
	ID            string    `json:"id" bson:"id"`
	ExternalID    string    `json:"externalId" bson:"externalId"`
	Date          time.Time `json:"date" bson:"date"`
	Comment       string    `json:"comment" bson:"comment"`
	Rating        int       `json:"rating" bson:"rating"`
	Sentiment     Sentiment `json:"sentiment" bson:"sentiment"`
	Keyword       string    `json:"keyword" bson:"keyword"`
	Sector        string    `json:"sector" bson:"sector"`
	Problem       string    `json:"problem" bson:"problem"`
	ProblemDetail string    `json:"problem_detail,omitempty" bson:"problem_detail,omitempty"`
	Hotel         string    `json:"hotel" bson:"hotel"`
	HotelName     string    `json:"hotelName" bson:"hotelName"`
	HotelID       string    `json:"hotelId" bson:"hotelId"`
	Source        string    `json:"source" bson:"source"`
	Language      string    `json:"language" bson:"language"`
	Score         int       `json:"score" bson:"score"`
	Author        string    `json:"author" bson:"author"`
	Unit          string    `json:"apartamento,omitempty" bson:"apartamento,omitempty"`
	ImportID      string    `json:"importId,omitempty" bson:"importId,omitempty"`
	// Error is the classification error, kept so ledger marks can be replayed
	// from the batch document.
	Error string `json:"error,omitempty" bson:"error,omitempty"`

	AllProblems       []ProblemDetail `json:"allProblems,omitempty" bson:"allProblems,omitempty"`
	HasSuggestion     *bool           `json:"has_suggestion,omitempty" bson:"has_suggestion,omitempty"`
	SuggestionType    string          `json:"suggestion_type,omitempty" bson:"suggestion_type,omitempty"`
	SuggestionSummary string          `json:"suggestion_summary,omitempty" bson:"suggestion_summary,omitempty"`
	Compliments       string          `json:"compliments,omitempty" bson:"compliments,omitempty"`
	PositiveDetails   string          `json:"positive_details,omitempty" bson:"positive_details,omitempty"`
	Reasoning         string          `json:"reasoning,omitempty" bson:"reasoning,omitempty"`
}
