package remote

import (
	crand "crypto/rand"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"feedback_ingest/internal/domain"
)

/********** alias registry **********/

var recordAliases = map[string][]string{
	"id":        {"id", "externalId", "external_id"},
	"name":      {"name", "guestName", "guest.name"},
	"email":     {"email", "guest.email"},
	"message":   {"message", "text"},
	"hotel_id":  {"hotelId", "hotel_id"},
	"createdAt": {"createdAt", "date"},
	"source":    {"source", "origin"},
	"rating":    {"rating"},
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// stringify renders scalar JSON values; objects, arrays and null give "".
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// first returns the first alias whose value is present and not null, as in
// `a ?? b`. Empty strings still count as present.
func first(m map[string]any, key string) any {
	for _, p := range recordAliases[key] {
		if v := lookupAny(m, p); v != nil {
			return v
		}
	}
	return nil
}

// firstNonEmpty returns the first alias with a non-blank string value, as in `a || b`.
func firstNonEmpty(m map[string]any, key string) string {
	for _, p := range recordAliases[key] {
		if s, ok := lookupAny(m, p).(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// parseFloatFlexible accepts float64 and numeric strings like "4,5".
func parseFloatFlexible(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(t, ",", "."))
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	case nil:
		return 0, true
	}
	return 0, false
}

// normalizeRating maps any upstream rating onto [1,5]. Non-numeric, NaN and
// non-positive values become 3; everything else is rounded and clamped.
func normalizeRating(v any) int {
	f, ok := parseFloatFlexible(v)
	if !ok || math.IsNaN(f) || f <= 0 {
		return domain.DefaultRating
	}
	return domain.ClampRating(f)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseCreatedAt accepts RFC3339-ish strings and epoch milliseconds.
func parseCreatedAt(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC(), true
			}
		}
	case float64:
		if !math.IsNaN(t) && !math.IsInf(t, 0) {
			return time.UnixMilli(int64(t)).UTC(), true
		}
	}
	return time.Time{}, false
}

func syntheticID(now time.Time) string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	var b [6]byte
	if _, err := crand.Read(b[:]); err != nil {
		return fmt.Sprintf("external-%d", now.UnixMilli())
	}
	for i := range b {
		b[i] = alphabet[int(b[i])%len(alphabet)]
	}
	return fmt.Sprintf("external-%d-%s", now.UnixMilli(), string(b[:]))
}

/********** record mapper **********/

func normalizeRecord(r map[string]any, now time.Time) domain.ExternalRecord {
	var rec domain.ExternalRecord

	if id := stringify(first(r, "id")); id != "" {
		rec.ExternalID = id
	} else {
		rec.ExternalID = syntheticID(now)
	}

	rec.GuestName = domain.DefaultGuestName
	if s := firstNonEmpty(r, "name"); s != "" {
		rec.GuestName = strings.TrimSpace(s)
	}

	if s, ok := first(r, "email").(string); ok {
		rec.Email = &s
	}

	rec.Rating = normalizeRating(first(r, "rating"))
	rec.Message = strings.TrimSpace(stringify(first(r, "message")))

	rec.HotelID = strings.TrimSpace(stringify(first(r, "hotel_id")))
	if rec.HotelID == "" {
		rec.HotelID = domain.UnknownHotelID
	}

	rec.CreatedAt = now.UTC()
	for _, p := range recordAliases["createdAt"] {
		if ts, ok := parseCreatedAt(lookupAny(r, p)); ok {
			rec.CreatedAt = ts
			break
		}
	}

	rec.Source = domain.DefaultSourceName
	if s := firstNonEmpty(r, "source"); s != "" {
		rec.Source = s
	}
	return rec
}
