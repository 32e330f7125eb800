package app

import (
	"math"
	"strings"

	"feedback_ingest/internal/domain"
)

// BuildFeedback turns one upstream record plus its (optional) classification
// into the canonical feedback stored in analysis batches. A nil
// classification yields a feedback with every label defaulted.
func BuildFeedback(rec domain.ExternalRecord, hotelName string, c *domain.Classification) domain.Feedback {
	rating := ResolveFinalRating(rec, c)
	f := domain.Feedback{
		ID:         rec.HotelID + "-" + rec.ExternalID,
		ExternalID: rec.ExternalID,
		Date:       rec.CreatedAt,
		Comment:    rec.Message,
		Rating:     rating,
		Sentiment:  domain.SentimentForRating(rating),
		Keyword:    domain.NotIdentified,
		Sector:     domain.NotIdentified,
		Problem:    domain.EmptyProblem,
		Hotel:      hotelName,
		HotelName:  hotelName,
		HotelID:    rec.HotelID,
		Source:     rec.Source,
		Language:   domain.DefaultLanguage,
		Score:      recordRating(rec),
		Author:     rec.GuestName,
	}
	if f.Source == "" {
		f.Source = domain.DefaultSourceName
	}
	if c == nil {
		return f
	}

	if s := sanitizeLabel(c.Keyword); s != "" {
		f.Keyword = s
	}
	if s := sanitizeLabel(c.Sector); s != "" {
		f.Sector = s
	}
	if s := sanitizeLabel(c.Problem); s != "" {
		f.Problem = s
	}
	f.ProblemDetail = strings.TrimSpace(c.ProblemDetail)
	for _, p := range c.AllProblems {
		if d := strings.TrimSpace(p.ProblemDetail); d != "" {
			f.ProblemDetail = d
			break
		}
	}
	if len(c.AllProblems) > 0 {
		f.AllProblems = append([]domain.ProblemDetail(nil), c.AllProblems...)
	}
	f.HasSuggestion = c.HasSuggestion
	f.SuggestionType = c.SuggestionType
	f.SuggestionSummary = c.SuggestionSummary
	f.Compliments = c.Compliments
	f.PositiveDetails = c.PositiveDetails
	f.Reasoning = c.Reasoning
	return f
}

// ResolveFinalRating prefers a numeric rating from the classifier and falls
// back to the upstream rating. The result is always in [1,5].
func ResolveFinalRating(rec domain.ExternalRecord, c *domain.Classification) int {
	if c != nil && c.Rating != nil && !math.IsNaN(*c.Rating) && !math.IsInf(*c.Rating, 0) {
		return domain.ClampRating(*c.Rating)
	}
	return recordRating(rec)
}

func recordRating(rec domain.ExternalRecord) int {
	if rec.Rating <= 0 {
		return domain.DefaultRating
	}
	return domain.ClampRating(float64(rec.Rating))
}

// sanitizeLabel maps blank and sentinel labels to "" so callers apply their
// own default.
func sanitizeLabel(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case s == "",
		strings.EqualFold(s, domain.EmptyProblem),
		strings.EqualFold(s, domain.NotIdentified),
		strings.EqualFold(s, "not identified"):
		return ""
	}
	return s
}
