package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson" // Use bson for index keys
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Test connection
	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	// Create indexes
	err = createIndexes(client, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return client, nil
}

func createIndexes(client *mongo.Client, dbName string) error {
	db := client.Database(dbName)

	// Sources collection indexes
	sourcesCollection := db.Collection("sources")
	sourceIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "status", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "created_at", Value: -1}},
		},
	}
	_, err := sourcesCollection.Indexes().CreateMany(context.Background(), sourceIndexes)
	if err != nil {
		return err
	}

	// Text units collection indexes, read back in position order per source
	unitsCollection := db.Collection("text_units")
	unitIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "unit_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "source_id", Value: 1}, {Key: "index", Value: 1}},
		},
	}
	_, err = unitsCollection.Indexes().CreateMany(context.Background(), unitIndexes)
	if err != nil {
		return err
	}

	// Extractions collection indexes; the compound unique index backs the
	// save-path duplicate check
	extractionsCollection := db.Collection("extractions")
	extractionIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "source_id", Value: 1},
				{Key: "category", Value: 1},
				{Key: "context_id", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "category", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "vector_synced", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "extracted_at", Value: -1}},
		},
	}
	_, err = extractionsCollection.Indexes().CreateMany(context.Background(), extractionIndexes)
	if err != nil {
		return err
	}

	// Pipeline runs collection indexes
	runsCollection := db.Collection("pipeline_runs")
	runIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "source_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "started_at", Value: -1}},
		},
	}
	_, err = runsCollection.Indexes().CreateMany(context.Background(), runIndexes)
	if err != nil {
		return err
	}

	return nil
}
