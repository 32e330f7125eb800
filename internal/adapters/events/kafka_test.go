package events

import (
	"encoding/json"
	"testing"
	"time"

	"feedback_ingest/internal/domain"
)

func TestToMessage(t *testing.T) {
	ev := domain.ImportEvent{
		HotelID:    "prodigy-gramado",
		HotelName:  "Prodigy Gramado",
		ImportID:   "prodigy-gramado-1700000000000",
		Count:      3,
		ImportedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	msg, err := toMessage(ev)
	if err != nil {
		t.Fatalf("toMessage: %v", err)
	}
	if string(msg.Key) != "prodigy-gramado" {
		t.Fatalf("unexpected key %q", msg.Key)
	}
	var got envelope
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != TypeAnalysisImported || got.Data.ImportID != ev.ImportID || got.Data.Count != 3 {
		t.Fatalf("unexpected envelope %+v", got)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != TypeAnalysisImported {
		t.Fatalf("unexpected headers %+v", msg.Headers)
	}
}
