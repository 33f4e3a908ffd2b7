package report

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/matzehuels/cardpress/pkg/errors"
)

// MongoOptions configures a MongoSink.
type MongoOptions struct {
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// Defaults for MongoOptions.
const (
	DefaultMongoDatabase   = "cardpress"
	DefaultMongoCollection = "runs"
)

// MongoSink stores reports as documents keyed by run id. Saving a report
// with an existing run id replaces it.
type MongoSink struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoSink connects to MongoDB and verifies the connection.
func NewMongoSink(ctx context.Context, opts MongoOptions) (*MongoSink, error) {
	if opts.URI == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "mongo uri is required")
	}
	if opts.Database == "" {
		opts.Database = DefaultMongoDatabase
	}
	if opts.Collection == "" {
		opts.Collection = DefaultMongoCollection
	}

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(opts.URI).
		SetServerSelectionTimeout(5*time.Second))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "connect to mongo")
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "ping mongo")
	}
	return &MongoSink{
		client: client,
		coll:   client.Database(opts.Database).Collection(opts.Collection),
	}, nil
}

// Save implements Sink.
func (s *MongoSink) Save(ctx context.Context, r *Report) error {
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": r.RunID}, r, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save report %s: %w", r.RunID, err)
	}
	return nil
}

// Load returns the report with the given run id.
func (s *MongoSink) Load(ctx context.Context, runID string) (*Report, error) {
	var r Report
	err := s.coll.FindOne(ctx, bson.M{"_id": runID}).Decode(&r)
	if err == mongo.ErrNoDocuments {
		return nil, errors.New(errors.ErrCodeInvalidInput, "run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("load report %s: %w", runID, err)
	}
	return &r, nil
}

// Close implements Sink.
func (s *MongoSink) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

var _ Sink = (*MongoSink)(nil)
