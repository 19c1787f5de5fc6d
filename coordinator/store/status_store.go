// coordinator/store/status_store.go
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ftotnem/RESPONSE-SERVICES/shared/models"
	redisu "github.com/Ftotnem/RESPONSE-SERVICES/shared/redis"
	"github.com/redis/go-redis/v9"
)

// StatusStore publishes coordinator state to Redis: the latest status snapshot per
// instance, kept under a TTL so a dead instance's snapshot disappears, and lifecycle
// events fanned out over pub/sub.
type StatusStore struct {
	client      redis.UniversalClient
	snapshotTTL time.Duration
}

// NewStatusStore creates a new StatusStore instance.
func NewStatusStore(client redis.UniversalClient, snapshotTTL time.Duration) *StatusStore {
	return &StatusStore{
		client:      client,
		snapshotTTL: snapshotTTL,
	}
}

// SaveSnapshot stores the report under the instance's snapshot key and publishes it on the status channel.
func (s *StatusStore) SaveSnapshot(ctx context.Context, serviceID string, report models.StatusReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal status snapshot: %w", err)
	}

	key := fmt.Sprintf(redisu.StatusSnapshotKeyPrefix, serviceID)
	if err := s.client.Set(ctx, key, payload, s.snapshotTTL).Err(); err != nil {
		return fmt.Errorf("failed to store status snapshot for %s: %w", serviceID, err)
	}
	if err := s.client.Publish(ctx, redisu.StatusChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish status snapshot for %s: %w", serviceID, err)
	}
	return nil
}

// GetSnapshot loads the last snapshot stored for an instance.
func (s *StatusStore) GetSnapshot(ctx context.Context, serviceID string) (models.StatusReport, error) {
	key := fmt.Sprintf(redisu.StatusSnapshotKeyPrefix, serviceID)
	raw, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return models.StatusReport{}, fmt.Errorf("no status snapshot for %s: %w", serviceID, redisu.ErrRedisKeyNotFound)
	}
	if err != nil {
		return models.StatusReport{}, fmt.Errorf("failed to load status snapshot for %s: %w", serviceID, err)
	}

	var report models.StatusReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return models.StatusReport{}, fmt.Errorf("invalid status snapshot for %s: %w", serviceID, err)
	}
	return report, nil
}

// PublishEvent publishes an operation lifecycle event on the events channel.
func (s *StatusStore) PublishEvent(ctx context.Context, event models.OperationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Kind, err)
	}
	if err := s.client.Publish(ctx, redisu.OperationEventsChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish %s event for operation %s: %w", event.Kind, event.OperationID, err)
	}
	return nil
}
