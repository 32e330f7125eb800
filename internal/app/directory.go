package app

import (
	"context"
	"strings"

	"feedback_ingest/internal/domain"
)

// Directory resolves hotel display names from the hotel directory.
type Directory struct{ dir domain.HotelDirectory }

func NewDirectory(d domain.HotelDirectory) *Directory { return &Directory{dir: d} }

// ResolveAll loads the directory once; the result lives for a single run.
func (d *Directory) ResolveAll(ctx context.Context) (HotelNames, error) {
	hotels, err := d.dir.ListHotels(ctx)
	if err != nil {
		return HotelNames{}, err
	}
	names := HotelNames{
		exact:      make(map[string]string, len(hotels)),
		normalized: make(map[string]string, len(hotels)),
	}
	for _, h := range hotels {
		if h.ID == "" {
			continue
		}
		name := strings.TrimSpace(h.Name)
		if name == "" {
			name = domain.PrettifyHotelID(h.ID)
		}
		names.exact[h.ID] = name
		if n := domain.NormalizeHotelID(h.ID); n != "" {
			if _, dup := names.normalized[n]; !dup {
				names.normalized[n] = name
			}
		}
	}
	return names, nil
}

// HotelNames is a snapshot of the directory. The zero value resolves every id
// through the prettified fallback.
type HotelNames struct {
	exact      map[string]string
	normalized map[string]string
}

func (h HotelNames) Resolve(hotelID string) string {
	if name, ok := h.exact[hotelID]; ok {
		return name
	}
	if name, ok := h.normalized[domain.NormalizeHotelID(hotelID)]; ok {
		return name
	}
	return domain.PrettifyHotelID(hotelID)
}

func (h HotelNames) Len() int { return len(h.exact) }
