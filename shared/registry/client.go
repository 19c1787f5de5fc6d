// shared/registry/client.go
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// RegistryClient reads the registry. Registration itself is done by ServiceRegistrar.
type RegistryClient struct {
	redisClient    redis.UniversalClient
	serviceTimeout time.Duration
}

// NewRegistryClient takes an already initialized Redis client.
func NewRegistryClient(redisClient redis.UniversalClient, serviceTimeout time.Duration) *RegistryClient {
	return &RegistryClient{
		redisClient:    redisClient,
		serviceTimeout: serviceTimeout,
	}
}

// GetActiveServices returns the instances of serviceType whose last heartbeat is within the timeout,
// ordered by service id.
func (rc *RegistryClient) GetActiveServices(ctx context.Context, serviceType string) ([]ServiceInfo, error) {
	key := fmt.Sprintf("%s%s", RedisRegistryHashPrefix, serviceType)
	results, err := rc.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get all services of type %s from Redis: %w", serviceType, err)
	}
	return filterActive(results, serviceType, time.Now(), rc.serviceTimeout), nil
}

func filterActive(entries map[string]string, serviceType string, now time.Time, timeout time.Duration) []ServiceInfo {
	active := make([]ServiceInfo, 0, len(entries))
	for instanceID, infoJSON := range entries {
		var info ServiceInfo
		if err := json.Unmarshal([]byte(infoJSON), &info); err != nil {
			log.Printf("WARNING: RegistryClient: Failed to unmarshal ServiceInfo for ID %s (type %s): %v", instanceID, serviceType, err)
			continue
		}
		if now.Sub(time.UnixMilli(info.LastSeen)) <= timeout {
			active = append(active, info)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ServiceID < active[j].ServiceID })
	return active
}
