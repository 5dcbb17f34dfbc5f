// Package mongo implements the processing audit trail on MongoDB. The
// processing log is retained on a rolling TTL; dead letters are kept until
// deleted by a successful replay.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"lighthouse/internal/store"
)

// Config holds the audit store connection settings.
type Config struct {
	URI      string `yaml:"uri" env:"LIGHTHOUSE_MONGO_URI"`
	Database string `yaml:"database" env:"LIGHTHOUSE_MONGO_DATABASE"`
	// Retention bounds how long processing records are kept.
	Retention time.Duration `yaml:"retention" env:"LIGHTHOUSE_AUDIT_RETENTION"`
}

// DefaultConfig returns the audit store defaults.
func DefaultConfig() Config {
	return Config{
		URI:       "mongodb://localhost:27017",
		Database:  "lighthouse",
		Retention: 7 * 24 * time.Hour,
	}
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.URI == "" {
		c.URI = "mongodb://localhost:27017"
	}
	if c.Database == "" {
		c.Database = "lighthouse"
	}
	if c.Retention <= 0 {
		c.Retention = 7 * 24 * time.Hour
	}
}

type processingDoc struct {
	Fingerprint string    `bson:"fingerprint"`
	Kind        string    `bson:"kind"`
	ProcessedAt time.Time `bson:"processed_at"`
	DurationUS  int64     `bson:"duration_us"`
	Outcome     string    `bson:"outcome"`
	Detail      string    `bson:"detail,omitempty"`
}

type deadLetterDoc struct {
	ID          string    `bson:"_id"`
	Channel     string    `bson:"channel"`
	Payload     string    `bson:"payload"`
	FailureKind string    `bson:"failure_kind"`
	Error       string    `bson:"error"`
	Attempts    int       `bson:"attempts"`
	CreatedAt   time.Time `bson:"created_at"`
}

// AuditStore is a MongoDB-backed store.AuditStore.
type AuditStore struct {
	client      *mongo.Client
	processing  *mongo.Collection
	deadLetters *mongo.Collection
	retention   time.Duration
}

var _ store.AuditStore = (*AuditStore)(nil)

// NewAuditStore connects to MongoDB and binds the audit collections.
func NewAuditStore(ctx context.Context, cfg Config) (*AuditStore, error) {
	cfg.ApplyDefaults()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(cfg.Database)
	return &AuditStore{
		client:      client,
		processing:  db.Collection("processing_log"),
		deadLetters: db.Collection("dead_letters"),
		retention:   cfg.Retention,
	}, nil
}

// EnsureIndexes creates the TTL and query indexes if missing.
func (s *AuditStore) EnsureIndexes(ctx context.Context) error {
	// Processing log TTL cleanup
	_, err := s.processing.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "processed_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(s.retention.Seconds())),
	})
	if err != nil {
		return err
	}

	_, err = s.processing.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "fingerprint", Value: 1}, {Key: "processed_at", Value: -1}},
	})
	if err != nil {
		return err
	}

	_, err = s.deadLetters.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	})
	return err
}

func (s *AuditStore) RecordProcessing(ctx context.Context, rec store.ProcessingRecord) error {
	doc := processingDoc{
		Fingerprint: rec.Fingerprint,
		Kind:        rec.Kind,
		ProcessedAt: rec.ProcessedAt,
		DurationUS:  rec.Duration.Microseconds(),
		Outcome:     string(rec.Outcome),
		Detail:      rec.Detail,
	}
	_, err := s.processing.InsertOne(ctx, doc)
	return err
}

func (s *AuditStore) AddDeadLetter(ctx context.Context, dl store.DeadLetter) error {
	if dl.ID == "" {
		dl.ID = uuid.NewString()
	}
	if dl.CreatedAt.IsZero() {
		dl.CreatedAt = time.Now().UTC()
	}
	doc := deadLetterDoc{
		ID:          dl.ID,
		Channel:     dl.Channel,
		Payload:     dl.Payload,
		FailureKind: dl.FailureKind,
		Error:       dl.Error,
		Attempts:    dl.Attempts,
		CreatedAt:   dl.CreatedAt,
	}
	_, err := s.deadLetters.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

func (s *AuditStore) GetDeadLetter(ctx context.Context, id string) (*store.DeadLetter, error) {
	var doc deadLetterDoc
	err := s.deadLetters.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	dl := deadLetterFromDoc(doc)
	return &dl, nil
}

func (s *AuditStore) ListDeadLetters(ctx context.Context, limit int) ([]*store.DeadLetter, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.deadLetters.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*store.DeadLetter
	for cur.Next(ctx) {
		var doc deadLetterDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		dl := deadLetterFromDoc(doc)
		out = append(out, &dl)
	}
	return out, cur.Err()
}

func (s *AuditStore) DeleteDeadLetter(ctx context.Context, id string) error {
	res, err := s.deadLetters.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *AuditStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func deadLetterFromDoc(doc deadLetterDoc) store.DeadLetter {
	return store.DeadLetter{
		ID:          doc.ID,
		Channel:     doc.Channel,
		Payload:     doc.Payload,
		FailureKind: doc.FailureKind,
		Error:       doc.Error,
		Attempts:    doc.Attempts,
		CreatedAt:   doc.CreatedAt,
	}
}
