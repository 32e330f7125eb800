package app

import (
	"math"
	"sort"
	"strings"

	"feedback_ingest/internal/domain"
)

const (
	topKeywords     = 10
	recentFeedbacks = 10
)

// tally counts labels and remembers first-seen order so ties stay stable.
type tally struct {
	order  []string
	counts map[string]int
}

func newTally() *tally { return &tally{counts: map[string]int{}} }

func (t *tally) add(label string) {
	if _, ok := t.counts[label]; !ok {
		t.order = append(t.order, label)
	}
	t.counts[label]++
}

func (t *tally) named() []domain.NamedCount {
	out := make([]domain.NamedCount, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, domain.NamedCount{Name: k, Value: t.counts[k]})
	}
	return out
}

func (t *tally) labeled() []domain.LabeledCount {
	out := make([]domain.LabeledCount, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, domain.LabeledCount{Label: k, Value: t.counts[k]})
	}
	return out
}

// Aggregate computes the summary stored next to a batch. It is a pure
// function of its input.
func Aggregate(items []domain.Feedback) domain.Summary {
	s := domain.Summary{
		HotelDistribution:    []domain.NamedCount{},
		SourceDistribution:   []domain.LabeledCount{},
		LanguageDistribution: []domain.LabeledCount{},
		RatingDistribution:   []domain.RatingCount{},
		ProblemDistribution:  []domain.LabeledCount{},
		KeywordDistribution:  []domain.NamedCount{},
		UnitDistribution:     []domain.NamedCount{},
		RecentFeedbacks:      []domain.Feedback{},
	}
	if len(items) == 0 {
		return s
	}

	hotels, sources, languages := newTally(), newTally(), newTally()
	problems, keywords, units := newTally(), newTally(), newTally()
	ratings := map[int]int{}
	sum, positive := 0, 0

	for _, f := range items {
		sum += f.Rating
		if f.Sentiment == domain.SentimentPositive {
			positive++
		}
		ratings[f.Rating]++
		hotels.add(orDefault(f.Hotel, domain.NotIdentified))
		sources.add(orDefault(f.Source, domain.DefaultSourceName))
		languages.add(orDefault(f.Language, domain.NotIdentified))

		if len(f.AllProblems) > 0 {
			for _, p := range f.AllProblems {
				problems.add(orDefault(strings.TrimSpace(p.Problem), domain.NotIdentified))
				keywords.add(orDefault(strings.TrimSpace(p.Keyword), domain.NotIdentified))
			}
		} else {
			for _, p := range splitLabels(f.Problem) {
				problems.add(p)
			}
			for _, k := range splitLabels(f.Keyword) {
				keywords.add(k)
			}
		}
		if u := strings.TrimSpace(f.Unit); u != "" {
			units.add(u)
		}
	}

	n := len(items)
	s.TotalFeedbacks = n
	s.AverageRating = math.Round(float64(sum)/float64(n)*100) / 100
	s.PositiveSentiment = int(math.Round(float64(positive) / float64(n) * 100))
	s.HotelDistribution = hotels.named()
	s.SourceDistribution = sources.labeled()
	s.LanguageDistribution = languages.labeled()
	s.ProblemDistribution = problems.labeled()
	s.UnitDistribution = units.named()

	for r, c := range ratings {
		s.RatingDistribution = append(s.RatingDistribution, domain.RatingCount{Rating: r, Count: c})
	}
	sort.Slice(s.RatingDistribution, func(i, j int) bool {
		return s.RatingDistribution[i].Rating < s.RatingDistribution[j].Rating
	})

	kw := keywords.named()
	sort.SliceStable(kw, func(i, j int) bool { return kw[i].Value > kw[j].Value })
	if len(kw) > topKeywords {
		kw = kw[:topKeywords]
	}
	s.KeywordDistribution = kw

	recent := append([]domain.Feedback(nil), items...)
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].Date.After(recent[j].Date) })
	if len(recent) > recentFeedbacks {
		recent = recent[:recentFeedbacks]
	}
	s.RecentFeedbacks = recent
	return s
}

// splitLabels splits "a;b" style labels, dropping blanks.
func splitLabels(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ";") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
