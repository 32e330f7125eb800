package remote_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"feedback_ingest/internal/adapters/remote"
	"feedback_ingest/internal/domain"
)

func TestClient_Fetch_RetriesThenSuccess(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&hits, 1) {
		case 1, 2:
			w.WriteHeader(503)
		default:
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"feedbacks":[{"id":"ext-1","hotelId":"Hotel Demo","rating":4,"message":"Quarto limpo e equipe atenciosa"}]}`))
		}
	}))
	defer ts.Close()

	cl, err := remote.New(ts.URL, 100)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := cl.Fetch(ctx)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 1 || got[0].ExternalID != "ext-1" || got[0].Rating != 4 {
		t.Fatalf("unexpected records: %+v", got)
	}
	if atomic.LoadInt32(&hits) < 3 {
		t.Fatalf("expected at least 3 calls due to retries, got %d", hits)
	}
}

func TestClient_Fetch_NonSuccessFailsWholeCall(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"token expired"}`))
	}))
	defer ts.Close()

	cl, _ := remote.New(ts.URL, 100)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	recs, err := cl.Fetch(ctx)
	if err == nil {
		t.Fatalf("expected error for 403")
	}
	if recs != nil {
		t.Fatalf("expected no partial results, got %+v", recs)
	}
	if !errors.Is(err, domain.ErrRemoteUnavailable) {
		t.Fatalf("expected ErrRemoteUnavailable, got %v", err)
	}
	var se *remote.StatusError
	if !errors.As(err, &se) || se.Status != http.StatusForbidden || se.Message != "token expired" {
		t.Fatalf("expected status error with body message, got %v", err)
	}
}

func TestClient_Fetch_NormalizesAndDropsShortMessages(t *testing.T) {
	body := `{"feedbacks":[
		{"id":"a","hotel_id":" Prodigy Gramado ","rating":87,"text":"  Quarto sujo e wifi não funciona  ","date":"2025-03-01T10:00:00Z","origin":"Totem"},
		{"id":"b","hotelId":"x","rating":5,"message":"ok"},
		{"id":7,"rating":"abc","message":"Sem hotel informado aqui"},
		{"id":"c","hotelId":"x","rating":-2,"message":"Café da manhã fraco","createdAt":"not a date","name":"  "},
		"garbage"
	]}`
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer ts.Close()

	cl, _ := remote.New(ts.URL, 100)
	got, err := cl.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 eligible records, got %d: %+v", len(got), got)
	}

	a := got[0]
	if a.HotelID != "Prodigy Gramado" || a.Rating != 5 || a.Message != "Quarto sujo e wifi não funciona" || a.Source != "Totem" {
		t.Fatalf("unexpected record a: %+v", a)
	}
	if !a.CreatedAt.Equal(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected createdAt: %v", a.CreatedAt)
	}
	if a.GuestName != domain.DefaultGuestName {
		t.Fatalf("expected default guest name, got %q", a.GuestName)
	}

	noHotel := got[1]
	if noHotel.ExternalID != "7" || noHotel.HotelID != domain.UnknownHotelID || noHotel.Rating != 3 {
		t.Fatalf("unexpected record 7: %+v", noHotel)
	}
	if noHotel.Source != domain.DefaultSourceName {
		t.Fatalf("expected default source, got %q", noHotel.Source)
	}

	c := got[2]
	if c.Rating != 3 {
		t.Fatalf("negative rating should default to 3, got %d", c.Rating)
	}
	if c.CreatedAt.IsZero() || time.Since(c.CreatedAt) > time.Minute {
		t.Fatalf("invalid createdAt should default to now, got %v", c.CreatedAt)
	}
}

func TestClient_Fetch_FeedbacksNotArray(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"feedbacks":{"id":"a"}}`))
	}))
	defer ts.Close()

	cl, _ := remote.New(ts.URL, 100)
	got, err := cl.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %+v", got)
	}
}
