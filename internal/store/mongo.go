package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"knowledge-extraction-platform/models"
	"knowledge-extraction-platform/utils"
)

// MongoStore backs the structured side of the system: sources, text units,
// extraction records and run summaries. It is the authoritative store; the
// vector store is a downstream index.
type MongoStore struct {
	sources       *mongo.Collection
	units         *mongo.Collection
	extractions   *mongo.Collection
	runs          *mongo.Collection
	compressUnits bool
}

func NewMongoStore(client *mongo.Client, dbName string, compressUnits bool) *MongoStore {
	db := client.Database(dbName)
	return &MongoStore{
		sources:       db.Collection("sources"),
		units:         db.Collection("text_units"),
		extractions:   db.Collection("extractions"),
		runs:          db.Collection("pipeline_runs"),
		compressUnits: compressUnits,
	}
}

// unitDoc is the stored shape of a text unit. Content is kept as raw bytes so
// large units can be compressed transparently.
type unitDoc struct {
	ID          string              `bson:"unit_id"`
	SourceID    string              `bson:"source_id"`
	Content     []byte              `bson:"content"`
	Index       int                 `bson:"index"`
	Position    models.UnitPosition `bson:"position"`
	Compression string              `bson:"compression,omitempty"`
}

// InsertSource registers a new source document.
func (s *MongoStore) InsertSource(ctx context.Context, src *models.Source) error {
	_, err := s.sources.InsertOne(ctx, src)
	if err != nil {
		return fmt.Errorf("insert source: %w", err)
	}
	return nil
}

// GetSource returns nil when the source does not exist.
func (s *MongoStore) GetSource(ctx context.Context, sourceID string) (*models.Source, error) {
	var src models.Source
	err := s.sources.FindOne(ctx, bson.M{"_id": sourceID}).Decode(&src)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find source: %w", err)
	}
	return &src, nil
}

// ListSources returns all sources, newest first.
func (s *MongoStore) ListSources(ctx context.Context) ([]models.Source, error) {
	cur, err := s.sources.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer cur.Close(ctx)

	var sources []models.Source
	if err := cur.All(ctx, &sources); err != nil {
		return nil, fmt.Errorf("decode sources: %w", err)
	}
	return sources, nil
}

// UpdateSourceStatus moves a source through its lifecycle. The processed
// timestamp is stamped when the status is terminal.
func (s *MongoStore) UpdateSourceStatus(ctx context.Context, sourceID, status string) error {
	update := bson.M{"status": status}
	if status == models.SourceStatusExtracted || status == models.SourceStatusFailed {
		update["processed_at"] = time.Now()
	}

	res, err := s.sources.UpdateOne(ctx, bson.M{"_id": sourceID}, bson.M{"$set": update})
	if err != nil {
		return fmt.Errorf("update source status: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("source %s not found", sourceID)
	}
	return nil
}

// InsertUnits stores the units of one source in bulk, compressing large
// content when enabled.
func (s *MongoStore) InsertUnits(ctx context.Context, units []models.TextUnit) error {
	if len(units) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(units))
	for _, u := range units {
		doc := unitDoc{
			ID:       u.ID,
			SourceID: u.SourceID,
			Content:  []byte(u.Content),
			Index:    u.Index,
			Position: u.Position,
		}
		if s.compressUnits {
			compressed, algorithm, err := utils.CompressText(u.Content)
			if err != nil {
				return fmt.Errorf("compress unit %s: %w", u.ID, err)
			}
			doc.Content = compressed
			if algorithm != utils.CompressionNone {
				doc.Compression = string(algorithm)
			}
		}
		docs = append(docs, doc)
	}

	_, err := s.units.InsertMany(ctx, docs)
	if err != nil {
		return fmt.Errorf("insert units: %w", err)
	}
	return nil
}

// GetUnits returns all units of a source in position order.
func (s *MongoStore) GetUnits(ctx context.Context, sourceID string) ([]models.TextUnit, error) {
	cur, err := s.units.Find(ctx,
		bson.M{"source_id": sourceID},
		options.Find().SetSort(bson.D{{Key: "index", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find units: %w", err)
	}
	defer cur.Close(ctx)

	var docs []unitDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode units: %w", err)
	}

	units := make([]models.TextUnit, 0, len(docs))
	for _, doc := range docs {
		content := string(doc.Content)
		if doc.Compression != "" {
			content, err = utils.DecompressText(doc.Content, utils.CompressionAlgorithm(doc.Compression))
			if err != nil {
				return nil, fmt.Errorf("decompress unit %s: %w", doc.ID, err)
			}
		}
		units = append(units, models.TextUnit{
			ID:       doc.ID,
			SourceID: doc.SourceID,
			Content:  content,
			Index:    doc.Index,
			Position: doc.Position,
		})
	}
	return units, nil
}

// FindByContext returns the existing record for source+category+context, or
// nil when none exists. Backs the save-path duplicate check.
func (s *MongoStore) FindByContext(ctx context.Context, sourceID, category, contextID string) (*models.ExtractionRecord, error) {
	var rec models.ExtractionRecord
	err := s.extractions.FindOne(ctx, bson.M{
		"source_id":  sourceID,
		"category":   category,
		"context_id": contextID,
	}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find record by context: %w", err)
	}
	return &rec, nil
}

// Insert stores a new extraction record and returns its ID.
func (s *MongoStore) Insert(ctx context.Context, rec *models.ExtractionRecord) (string, error) {
	res, err := s.extractions.InsertOne(ctx, rec)
	if err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted ID type %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

// MarkVectorSynced flips the backfill flag on a record.
func (s *MongoStore) MarkVectorSynced(ctx context.Context, recordID string, synced bool) error {
	oid, err := primitive.ObjectIDFromHex(recordID)
	if err != nil {
		return fmt.Errorf("invalid record ID %q: %w", recordID, err)
	}

	_, err = s.extractions.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"vector_synced": synced}},
	)
	if err != nil {
		return fmt.Errorf("mark vector synced: %w", err)
	}
	return nil
}

// ListUnsynced returns records whose vector entry is missing, oldest first,
// capped at limit. The backfill job drains this set.
func (s *MongoStore) ListUnsynced(ctx context.Context, limit int) ([]models.ExtractionRecord, error) {
	cur, err := s.extractions.Find(ctx,
		bson.M{"vector_synced": false},
		options.Find().
			SetSort(bson.D{{Key: "extracted_at", Value: 1}}).
			SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, fmt.Errorf("list unsynced records: %w", err)
	}
	defer cur.Close(ctx)

	var records []models.ExtractionRecord
	if err := cur.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode unsynced records: %w", err)
	}
	return records, nil
}

// FindRecords queries extraction records with optional filters.
func (s *MongoStore) FindRecords(ctx context.Context, sourceID, category string, level models.ExtractionLevel) ([]models.ExtractionRecord, error) {
	filter := bson.M{}
	if sourceID != "" {
		filter["source_id"] = sourceID
	}
	if category != "" {
		filter["category"] = category
	}
	if level != "" {
		filter["context_level"] = level
	}

	cur, err := s.extractions.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "extracted_at", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find records: %w", err)
	}
	defer cur.Close(ctx)

	var records []models.ExtractionRecord
	if err := cur.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return records, nil
}

// InsertRunSummary persists the outcome of one pipeline run.
func (s *MongoStore) InsertRunSummary(ctx context.Context, summary *models.PipelineSummary) error {
	_, err := s.runs.InsertOne(ctx, summary)
	if err != nil {
		return fmt.Errorf("insert run summary: %w", err)
	}
	return nil
}

// ListRunSummaries returns the run history of a source, newest first.
func (s *MongoStore) ListRunSummaries(ctx context.Context, sourceID string) ([]models.PipelineSummary, error) {
	cur, err := s.runs.Find(ctx,
		bson.M{"source_id": sourceID},
		options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("list run summaries: %w", err)
	}
	defer cur.Close(ctx)

	var summaries []models.PipelineSummary
	if err := cur.All(ctx, &summaries); err != nil {
		return nil, fmt.Errorf("decode run summaries: %w", err)
	}
	return summaries, nil
}
