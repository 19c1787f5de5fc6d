// coordinator/store/operation_archive_store.go
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/Ftotnem/RESPONSE-SERVICES/shared/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrOperationNotArchived is returned when an operation id has no archived document.
var ErrOperationNotArchived = errors.New("operation not archived")

// OperationArchiveStore persists completed operations in MongoDB.
type OperationArchiveStore struct {
	collection *mongo.Collection
}

// NewOperationArchiveStore creates a new OperationArchiveStore over the given collection.
func NewOperationArchiveStore(collection *mongo.Collection) *OperationArchiveStore {
	return &OperationArchiveStore{collection: collection}
}

// EnsureIndexes creates the disaster/completion index used by history queries.
func (s *OperationArchiveStore) EnsureIndexes(ctx context.Context) error {
	model := mongo.IndexModel{
		Keys: bson.D{
			{Key: "disaster_id", Value: 1},
			{Key: "completion_time", Value: -1},
		},
		Options: options.Index().SetName("disaster_completion"),
	}
	if _, err := s.collection.Indexes().CreateOne(ctx, model); err != nil {
		return fmt.Errorf("failed to create archive index: %w", err)
	}
	return nil
}

// SaveOperation upserts a completed operation keyed by its id. Repeated saves overwrite.
func (s *OperationArchiveStore) SaveOperation(ctx context.Context, op models.Operation) error {
	filter := bson.M{"_id": op.ID}
	_, err := s.collection.ReplaceOne(ctx, filter, op, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to archive operation %s: %w", op.ID, err)
	}
	return nil
}

// GetOperation retrieves an archived operation by id.
func (s *OperationArchiveStore) GetOperation(ctx context.Context, operationID string) (models.Operation, error) {
	var op models.Operation
	err := s.collection.FindOne(ctx, bson.M{"_id": operationID}).Decode(&op)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Operation{}, fmt.Errorf("operation %s: %w", operationID, ErrOperationNotArchived)
	}
	if err != nil {
		return models.Operation{}, fmt.Errorf("failed to load archived operation %s: %w", operationID, err)
	}
	normalizeOperation(&op)
	return op, nil
}

// ListByDisaster returns archived operations of a disaster, most recently completed first.
func (s *OperationArchiveStore) ListByDisaster(ctx context.Context, disasterID string, limit int64) ([]models.Operation, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "completion_time", Value: -1}})
	if limit > 0 {
		findOpts.SetLimit(limit)
	}

	cursor, err := s.collection.Find(ctx, bson.M{"disaster_id": disasterID}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to query archive for disaster %s: %w", disasterID, err)
	}
	defer cursor.Close(ctx)

	ops := make([]models.Operation, 0)
	if err := cursor.All(ctx, &ops); err != nil {
		return nil, fmt.Errorf("failed to decode archive for disaster %s: %w", disasterID, err)
	}
	for i := range ops {
		normalizeOperation(&ops[i])
	}
	return ops, nil
}

// normalizeOperation rewrites decoded mission details and reports so nested
// documents are plain maps and slices, matching operations served from memory.
func normalizeOperation(op *models.Operation) {
	op.MissionDetails = normalizeMap(op.MissionDetails)
	op.OperationReport = normalizeMap(op.OperationReport)
}

func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case primitive.D:
		out := make(map[string]any, len(val))
		for _, e := range val {
			out[e.Key] = normalizeValue(e.Value)
		}
		return out
	case primitive.M:
		return normalizeMap(val)
	case map[string]any:
		return normalizeMap(val)
	case primitive.A:
		return normalizeSlice(val)
	case []any:
		return normalizeSlice(val)
	default:
		return v
	}
}

func normalizeSlice(s []any) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = normalizeValue(v)
	}
	return out
}
