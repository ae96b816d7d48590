package source

import (
	"context"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"datachat/src/log"
)

// MongoReader streams documents from a collection using a find with a
// field projection that excludes the store's internal identity field.
type MongoReader struct {
	cfg    MongoConfig
	client *mongo.Client
	cursor *mongo.Cursor
}

// NewMongoReader creates a reader for the given connection and collection.
func NewMongoReader(cfg MongoConfig) *MongoReader {
	return &MongoReader{cfg: cfg}
}

// Open connects, verifies the collection exists and opens the cursor.
func (r *MongoReader) Open(ctx context.Context) error {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(r.cfg.URI))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	r.client = client

	db := client.Database(r.cfg.Database)
	names, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: r.cfg.Collection}})
	if err != nil {
		r.Close()
		return fmt.Errorf("failed to list collections: %w", err)
	}
	if len(names) == 0 {
		r.Close()
		return fmt.Errorf("collection %s: %w", r.cfg.Collection, ErrNotFound)
	}

	projection := bson.D{{Key: "_id", Value: 0}}
	for _, field := range r.cfg.Fields {
		projection = append(projection, bson.E{Key: field, Value: 1})
	}
	findOpts := options.Find().SetProjection(projection)
	if r.cfg.MaxRows > 0 {
		findOpts.SetLimit(int64(r.cfg.MaxRows))
	}

	cursor, err := db.Collection(r.cfg.Collection).Find(ctx, bson.D{}, findOpts)
	if err != nil {
		r.Close()
		return fmt.Errorf("failed to open find cursor: %w", err)
	}
	r.cursor = cursor
	return nil
}

// ReadChunk pulls up to size documents from the cursor. A document that
// fails to decode is skipped with a warning.
func (r *MongoReader) ReadChunk(ctx context.Context, size int) ([]Record, error) {
	if r.cursor == nil {
		return nil, fmt.Errorf("mongo reader is not open")
	}
	if size <= 0 {
		size = 1
	}

	records := make([]Record, 0, size)
	for len(records) < size {
		if !r.cursor.Next(ctx) {
			if err := r.cursor.Err(); err != nil {
				return records, fmt.Errorf("cursor iteration failed: %w", err)
			}
			if len(records) == 0 {
				return nil, io.EOF
			}
			return records, nil
		}

		var doc bson.M
		if err := r.cursor.Decode(&doc); err != nil {
			log.Info("skipping undecodable document", "collection", r.cfg.Collection, "reason", err.Error())
			continue
		}
		records = append(records, Record(doc))
	}
	return records, nil
}

// ReadSchema infers field types from one sampled document.
func (r *MongoReader) ReadSchema(ctx context.Context) (map[string]string, error) {
	if r.client == nil {
		return nil, fmt.Errorf("mongo reader is not open")
	}
	var sample bson.M
	err := r.client.Database(r.cfg.Database).Collection(r.cfg.Collection).
		FindOne(ctx, bson.D{}).Decode(&sample)
	if err == mongo.ErrNoDocuments {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to sample collection: %w", err)
	}
	schema := make(map[string]string, len(sample))
	for key, value := range sample {
		if key == "_id" {
			continue
		}
		schema[key] = fmt.Sprintf("%T", value)
	}
	return schema, nil
}

// Close closes the cursor and disconnects the client.
func (r *MongoReader) Close() error {
	ctx := context.Background()
	if r.cursor != nil {
		r.cursor.Close(ctx)
		r.cursor = nil
	}
	if r.client != nil {
		err := r.client.Disconnect(ctx)
		r.client = nil
		return err
	}
	return nil
}
