package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"feedback_ingest/internal/domain"
)

const (
	hotelsColl   = "hotels"
	ledgerColl   = "external_feedback_queue"
	analysesColl = "analyses"
)

// Connect opens and pings a client.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// Store implements domain.Store on the document layout the dashboard reads:
// hotels, external_feedback_queue (keyed by provider-externalId) and analyses.
type Store struct {
	hotels   *mongo.Collection
	ledger   *mongo.Collection
	analyses *mongo.Collection
}

func New(ctx context.Context, db *mongo.Database) (*Store, error) {
	s := &Store{
		hotels:   db.Collection(hotelsColl),
		ledger:   db.Collection(ledgerColl),
		analyses: db.Collection(analysesColl),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := s.analyses.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "hotelId", Value: 1}, {Key: "importId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "ledgerApplied", Value: 1}, {Key: "importDate", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("failed to create analyses indexes: %w", err)
	}
	if _, err := s.ledger.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "provider", Value: 1}}},
		{Keys: bson.D{{Key: "hotelId", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("failed to create ledger indexes: %w", err)
	}
	return nil
}

type hotelDoc struct {
	ID      bson.RawValue `bson:"_id"`
	HotelID string        `bson:"hotelId,omitempty"`
	Name    string        `bson:"name,omitempty"`
}

func (s *Store) ListHotels(ctx context.Context) ([]domain.HotelRef, error) {
	cur, err := s.hotels.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"hotelId": 1, "name": 1}))
	if err != nil {
		return nil, fmt.Errorf("find hotels: %w", err)
	}
	defer cur.Close(ctx)

	var out []domain.HotelRef
	for cur.Next(ctx) {
		var d hotelDoc
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode hotel: %w", err)
		}
		id := d.HotelID
		if id == "" {
			if sid, ok := d.ID.StringValueOK(); ok {
				id = sid
			} else if oid, ok := d.ID.ObjectIDOK(); ok {
				id = oid.Hex()
			}
		}
		if id == "" {
			continue
		}
		out = append(out, domain.HotelRef{ID: id, Name: d.Name})
	}
	return out, cur.Err()
}

type ledgerDoc struct {
	Key         string    `bson:"_id"`
	Provider    string    `bson:"provider"`
	ExternalID  string    `bson:"externalId"`
	HotelID     string    `bson:"hotelId,omitempty"`
	HotelName   string    `bson:"hotelName,omitempty"`
	Status      string    `bson:"status"`
	ProcessedAt time.Time `bson:"processedAt,omitempty"`
	Error       *string   `bson:"error,omitempty"`
	ImportID    *string   `bson:"importId,omitempty"`
}

func (s *Store) Entries(ctx context.Context) ([]domain.LedgerEntry, error) {
	cur, err := s.ledger.Find(ctx, bson.M{"provider": domain.Provider})
	if err != nil {
		return nil, fmt.Errorf("find ledger: %w", err)
	}
	defer cur.Close(ctx)

	var out []domain.LedgerEntry
	for cur.Next(ctx) {
		var d ledgerDoc
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode ledger entry: %w", err)
		}
		out = append(out, domain.LedgerEntry{
			Provider:    d.Provider,
			ExternalID:  d.ExternalID,
			HotelID:     d.HotelID,
			HotelName:   d.HotelName,
			Status:      domain.LedgerStatus(d.Status),
			ProcessedAt: d.ProcessedAt.UTC(),
			Error:       d.Error,
			ImportID:    d.ImportID,
		})
	}
	return out, cur.Err()
}

// Mark merges the supplied fields into the entry, creating it when absent.
func (s *Store) Mark(ctx context.Context, e domain.LedgerEntry) error {
	if e.ExternalID == "" {
		return errors.New("ledger mark without external id")
	}
	provider := e.Provider
	if provider == "" {
		provider = domain.Provider
	}

	set := bson.M{"provider": provider, "externalId": e.ExternalID}
	onInsert := bson.M{}
	if e.HotelID != "" {
		set["hotelId"] = e.HotelID
	}
	if e.HotelName != "" {
		set["hotelName"] = e.HotelName
	}
	if e.Status != "" {
		set["status"] = string(e.Status)
	} else {
		onInsert["status"] = string(domain.StatusProcessed)
	}
	if !e.ProcessedAt.IsZero() {
		set["processedAt"] = e.ProcessedAt.UTC()
	}
	if e.Error != nil {
		set["error"] = *e.Error
	}
	if e.ImportID != nil {
		set["importId"] = *e.ImportID
	}

	update := bson.M{"$set": set}
	if len(onInsert) > 0 {
		update["$setOnInsert"] = onInsert
	}
	_, err := s.ledger.UpdateOne(ctx,
		bson.M{"_id": domain.LedgerKey(provider, e.ExternalID)},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mark %s: %w", e.ExternalID, err)
	}
	return nil
}

func batchFilter(hotelID, importID string) bson.M {
	return bson.M{"hotelId": hotelID, "importId": importID}
}

func (s *Store) SaveBatch(ctx context.Context, b domain.AnalysisBatch) error {
	b.ImportDate = b.ImportDate.UTC()
	_, err := s.analyses.ReplaceOne(ctx, batchFilter(b.HotelID, b.ImportID), b, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save batch %s: %w", b.ImportID, err)
	}
	return nil
}

func (s *Store) UnappliedBatches(ctx context.Context) ([]domain.AnalysisBatch, error) {
	cur, err := s.analyses.Find(ctx,
		bson.M{"ledgerApplied": false},
		options.Find().SetSort(bson.D{{Key: "importDate", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find unapplied batches: %w", err)
	}
	defer cur.Close(ctx)

	var out []domain.AnalysisBatch
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode batches: %w", err)
	}
	return out, nil
}

func (s *Store) MarkBatchApplied(ctx context.Context, hotelID, importID string) error {
	res, err := s.analyses.UpdateOne(ctx, batchFilter(hotelID, importID), bson.M{"$set": bson.M{"ledgerApplied": true}})
	if err != nil {
		return fmt.Errorf("flag batch %s: %w", importID, err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
