package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/errors"
)

// MongoConfig holds MongoDB connection configuration.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// DefaultMongoConfig returns the local defaults.
func DefaultMongoConfig() *MongoConfig {
	return &MongoConfig{
		URI:        "mongodb://localhost:27017",
		Database:   "deepresearch",
		Collection: "reports",
	}
}

// mongoReport is the stored document. The report itself is kept as JSON so
// the document shape does not track every response field.
type mongoReport struct {
	ID        string    `bson:"_id"`
	Topic     string    `bson:"topic"`
	Body      string    `bson:"body"`
	CreatedAt time.Time `bson:"created_at"`
}

// MongoStore keeps reports in a MongoDB collection.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoStore connects to MongoDB and ensures the created_at index.
func NewMongoStore(ctx context.Context, config *MongoConfig) (*MongoStore, error) {
	if config == nil {
		config = DefaultMongoConfig()
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	store := &MongoStore{
		client:     client,
		collection: client.Database(config.Database).Collection(config.Collection),
	}
	_, err = store.collection.Indexes().CreateOne(connectCtx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	return store, nil
}

// Save upserts the report.
func (s *MongoStore) Save(ctx context.Context, report *Report) error {
	if err := validate(report); err != nil {
		return err
	}
	doc, err := toMongo(report)
	if err != nil {
		return err
	}
	_, err = s.collection.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save report to MongoDB: %w", err)
	}
	return nil
}

// Load reads one report.
func (s *MongoStore) Load(ctx context.Context, id string) (*Report, error) {
	var doc mongoReport
	if err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("failed to load report: %w", err)
	}
	return decodeReport([]byte(doc.Body))
}

// List returns the newest reports.
func (s *MongoStore) List(ctx context.Context, limit int) ([]*Report, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(listLimit(limit)))
	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer cursor.Close(ctx)

	out := make([]*Report, 0)
	for cursor.Next(ctx) {
		var doc mongoReport
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode report: %w", err)
		}
		report, err := decodeReport([]byte(doc.Body))
		if err != nil {
			return nil, err
		}
		out = append(out, report)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return out, nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func toMongo(report *Report) (*mongoReport, error) {
	body, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return &mongoReport{
		ID:        report.SessionID,
		Topic:     report.Topic,
		Body:      string(body),
		CreatedAt: report.CreatedAt,
	}, nil
}
