package app

import "feedback_ingest/internal/domain"

// MatchesScope reports whether a hotel id is visible under scope. Admin (or
// nil) scopes see everything; other scopes see only their own hotel, and
// nothing at all when their hotel id normalizes to "".
func MatchesScope(hotelID string, scope *domain.Scope) bool {
	if scope.IsAdmin() {
		return true
	}
	return domain.SameHotel(scope.HotelID, hotelID)
}

// FilterByScope keeps the items visible under scope, preserving order.
func FilterByScope[T any](items []T, scope *domain.Scope, hotelIDOf func(T) string) []T {
	if scope.IsAdmin() {
		return items
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		if MatchesScope(hotelIDOf(it), scope) {
			out = append(out, it)
		}
	}
	return out
}

func entryHotel(e domain.LedgerEntry) string     { return e.HotelID }
func recordHotel(r domain.ExternalRecord) string { return r.HotelID }
