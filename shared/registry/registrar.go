// shared/registry/registrar.go
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"maps"
	"time"

	"github.com/Ftotnem/RESPONSE-SERVICES/shared/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ServiceRegistrar handles the self-registration and heartbeating of a service instance.
type ServiceRegistrar struct {
	redisClient redis.UniversalClient
	serviceType string
	cfg         *config.CommonConfig
	serviceID   string
	metadata    MetadataFunc
	stopChan    chan struct{}
	doneChan    chan struct{}
}

// NewServiceRegistrar creates a new ServiceRegistrar with a generated instance id.
// metadata may be nil.
func NewServiceRegistrar(redisClient redis.UniversalClient, serviceType string, cfg *config.CommonConfig, metadata MetadataFunc) *ServiceRegistrar {
	return &ServiceRegistrar{
		redisClient: redisClient,
		serviceType: serviceType,
		cfg:         cfg,
		serviceID:   fmt.Sprintf("%s-%s", serviceType, uuid.New().String()),
		metadata:    metadata,
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
	}
}

// Start begins the service registration and heartbeating process in a goroutine.
func (sr *ServiceRegistrar) Start() {
	log.Printf("Starting service registrar for %s (ID: %s) at %s:%d",
		sr.serviceType, sr.serviceID, sr.cfg.ServiceIP, sr.cfg.ServicePort)

	go sr.run()
}

// Stop signals the registrar to stop, waits for it, then removes this instance from the registry.
func (sr *ServiceRegistrar) Stop() {
	log.Printf("Signaling service registrar for %s (ID: %s) to stop...", sr.serviceType, sr.serviceID)
	close(sr.stopChan)
	<-sr.doneChan

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sr.redisClient.HDel(ctx, sr.hashKey(), sr.serviceID).Err(); err != nil {
		log.Printf("ERROR: Failed to remove service %s (ID: %s) from Redis registry on shutdown: %v",
			sr.serviceType, sr.serviceID, err)
	} else {
		log.Printf("INFO: Service %s (ID: %s) removed from Redis registry on shutdown.",
			sr.serviceType, sr.serviceID)
	}
}

func (sr *ServiceRegistrar) run() {
	defer close(sr.doneChan)

	ticker := time.NewTicker(sr.cfg.HeartbeatInterval)
	defer ticker.Stop()

	sr.registerService()

	var cleanup <-chan time.Time
	if sr.cfg.RegistryCleanupInterval > 0 {
		cleanupTicker := time.NewTicker(sr.cfg.RegistryCleanupInterval)
		defer cleanupTicker.Stop()
		cleanup = cleanupTicker.C
	}

	for {
		select {
		case <-ticker.C:
			sr.registerService()
		case <-cleanup:
			sr.performCleanup()
		case <-sr.stopChan:
			return
		}
	}
}

func (sr *ServiceRegistrar) serviceInfo(now time.Time) ServiceInfo {
	metadata := map[string]string{"version": "1.0"}
	if sr.metadata != nil {
		maps.Copy(metadata, sr.metadata())
	}
	return ServiceInfo{
		ServiceID:   sr.serviceID,
		ServiceType: sr.serviceType,
		IP:          sr.cfg.ServiceIP,
		Port:        sr.cfg.ServicePort,
		LastSeen:    now.UnixMilli(),
		Metadata:    metadata,
	}
}

func (sr *ServiceRegistrar) registerService() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	infoJSON, err := json.Marshal(sr.serviceInfo(time.Now()))
	if err != nil {
		log.Printf("ERROR: Failed to marshal ServiceInfo for %s (ID: %s): %v", sr.serviceType, sr.serviceID, err)
		return
	}
	if err := sr.redisClient.HSet(ctx, sr.hashKey(), sr.serviceID, infoJSON).Err(); err != nil {
		log.Printf("ERROR: Failed to register/heartbeat service %s (ID: %s) to Redis: %v",
			sr.serviceType, sr.serviceID, err)
	}
}

// performCleanup removes entries of this service type that stopped heartbeating or cannot be decoded.
func (sr *ServiceRegistrar) performCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hashKey := sr.hashKey()
	results, err := sr.redisClient.HGetAll(ctx, hashKey).Result()
	if err != nil {
		log.Printf("ERROR: Cleanup failed to get all services for type %s: %v", sr.serviceType, err)
		return
	}

	stale := staleEntries(results, time.Now(), sr.cfg.HeartbeatTTL)
	if len(stale) == 0 {
		return
	}
	if err := sr.redisClient.HDel(ctx, hashKey, stale...).Err(); err != nil {
		log.Printf("ERROR: Cleanup: Failed to delete %d stale entries for type %s: %v", len(stale), sr.serviceType, err)
		return
	}
	log.Printf("INFO: Cleanup: Removed %d stale %s entries from registry.", len(stale), sr.serviceType)
}

func staleEntries(entries map[string]string, now time.Time, ttl time.Duration) []string {
	var stale []string
	for instanceID, infoJSON := range entries {
		var info ServiceInfo
		if err := json.Unmarshal([]byte(infoJSON), &info); err != nil {
			log.Printf("WARNING: Cleanup: Failed to unmarshal ServiceInfo for ID %s: %v. Deleting.", instanceID, err)
			stale = append(stale, instanceID)
			continue
		}
		if now.Sub(time.UnixMilli(info.LastSeen)) > ttl {
			stale = append(stale, instanceID)
		}
	}
	return stale
}

func (sr *ServiceRegistrar) hashKey() string {
	return fmt.Sprintf("%s%s", RedisRegistryHashPrefix, sr.serviceType)
}

// GetServiceID returns the unique ID assigned to this service instance.
func (sr *ServiceRegistrar) GetServiceID() string {
	return sr.serviceID
}
