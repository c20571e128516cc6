package storage

import (
	"context"
	"time"

	"tutorbot-backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MetadataStore persists per-file display names, independent of which
// tier holds the bytes.
type MetadataStore interface {
	GetAll(ctx context.Context) (map[string]string, error)
	Set(ctx context.Context, filename, displayName string) error
	Delete(ctx context.Context, filename string) error
}

type MongoMetadata struct {
	coll *mongo.Collection
}

func NewMongoMetadata(db *mongo.Database) *MongoMetadata {
	return &MongoMetadata{coll: db.Collection("files")}
}

func (m *MongoMetadata) GetAll(ctx context.Context) (map[string]string, error) {
	cursor, err := m.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	names := make(map[string]string)
	for cursor.Next(ctx) {
		var meta models.FileMeta
		if err := cursor.Decode(&meta); err != nil {
			continue
		}
		names[meta.Filename] = meta.DisplayName
	}
	return names, cursor.Err()
}

func (m *MongoMetadata) Set(ctx context.Context, filename, displayName string) error {
	_, err := m.coll.UpdateOne(ctx,
		bson.M{"filename": filename},
		bson.M{"$set": bson.M{"display_name": displayName, "updated_at": time.Now()}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (m *MongoMetadata) Delete(ctx context.Context, filename string) error {
	_, err := m.coll.DeleteOne(ctx, bson.M{"filename": filename})
	return err
}
