// shared/config/config.go
package config

import (
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// CommonConfig holds configuration fields that are shared across services.
type CommonConfig struct {
	RedisAddrs              []string      `env:"REDIS_ADDRS" envSeparator:"," envDefault:"redis-cluster-headless.response.svc.cluster.local:6379"`
	RedisPassword           string        `env:"REDIS_PASSWORD"`
	HeartbeatInterval       time.Duration `env:"SERVICE_HEARTBEAT_INTERVAL" envDefault:"5s"`
	HeartbeatTTL            time.Duration `env:"SERVICE_HEARTBEAT_TTL" envDefault:"15s"`
	RegistryCleanupInterval time.Duration `env:"SERVICE_REGISTRY_CLEANUP_INTERVAL" envDefault:"30s"`
	ServiceIP               string        `env:"POD_IP"` // Injected by Kubernetes
	ServicePort             int           // Derived from the service listen address
}

// CoordinatorServiceConfig holds configuration specific to the coordinator-service.
type CoordinatorServiceConfig struct {
	CommonConfig

	ListenAddr string `env:"COORDINATOR_LISTEN_ADDR" envDefault:":8083"`

	MongoDBConnStr              string `env:"MONGODB_CONN_STR" envDefault:"mongodb://mongodb-service:27017"`
	MongoDBDatabase             string `env:"MONGODB_DATABASE" envDefault:"emergency_response"`
	MongoDBOperationsCollection string `env:"MONGODB_OPERATIONS_COLLECTION" envDefault:"operations"`

	SnapshotInterval time.Duration `env:"STATUS_SNAPSHOT_INTERVAL" envDefault:"10s"`
	SnapshotTTL      time.Duration `env:"STATUS_SNAPSHOT_TTL" envDefault:"1m"`

	ArchiveQueueSize    int           `env:"ARCHIVE_QUEUE_SIZE" envDefault:"256"`
	ArchiveWriteTimeout time.Duration `env:"ARCHIVE_WRITE_TIMEOUT" envDefault:"5s"`
	CompletedRetention  int           `env:"COMPLETED_OPERATION_RETENTION" envDefault:"256"`

	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"5s"`
}

// normalize trims and validates the shared fields after env parsing.
func (c *CommonConfig) normalize() error {
	addrs := c.RedisAddrs[:0]
	for _, addr := range c.RedisAddrs {
		if addr = strings.TrimSpace(addr); addr != "" {
			addrs = append(addrs, addr)
		}
	}
	c.RedisAddrs = addrs
	if len(c.RedisAddrs) == 0 {
		return fmt.Errorf("REDIS_ADDRS must list at least one address")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("SERVICE_HEARTBEAT_INTERVAL must be positive (got %v)", c.HeartbeatInterval)
	}
	if c.HeartbeatTTL < c.HeartbeatInterval {
		return fmt.Errorf("SERVICE_HEARTBEAT_TTL (%v) must not be shorter than SERVICE_HEARTBEAT_INTERVAL (%v)", c.HeartbeatTTL, c.HeartbeatInterval)
	}
	if c.ServiceIP == "" {
		c.ServiceIP = "0.0.0.0"
		log.Printf("WARNING: POD_IP not set, defaulting ServiceIP to %s", c.ServiceIP)
	}
	return nil
}

// LoadCoordinatorServiceConfig loads configuration for the coordinator-service.
func LoadCoordinatorServiceConfig() (*CoordinatorServiceConfig, error) {
	cfg := &CoordinatorServiceConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse coordinator-service config: %w", err)
	}
	if err := cfg.CommonConfig.normalize(); err != nil {
		return nil, fmt.Errorf("invalid common config for coordinator-service: %w", err)
	}

	var err error
	cfg.ServicePort, err = extractPort(cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to extract port from COORDINATOR_LISTEN_ADDR '%s': %w", cfg.ListenAddr, err)
	}

	if cfg.SnapshotInterval <= 0 {
		return nil, fmt.Errorf("STATUS_SNAPSHOT_INTERVAL must be positive (got %v)", cfg.SnapshotInterval)
	}
	if cfg.ArchiveQueueSize <= 0 {
		return nil, fmt.Errorf("ARCHIVE_QUEUE_SIZE must be a positive integer (got %d)", cfg.ArchiveQueueSize)
	}
	if cfg.CompletedRetention < 0 {
		return nil, fmt.Errorf("COMPLETED_OPERATION_RETENTION must be non-negative (got %d)", cfg.CompletedRetention)
	}
	return cfg, nil
}

// extractPort extracts the numeric port from a listen address (e.g., ":8083" -> 8083, "0.0.0.0:8083" -> 8083)
func extractPort(listenAddr string) (int, error) {
	_, portStr, err := net.SplitHostPort(listenAddr)
	if err != nil {
		if strings.HasPrefix(listenAddr, ":") {
			portStr = strings.TrimPrefix(listenAddr, ":")
		} else {
			return 0, fmt.Errorf("invalid ListenAddr format for port extraction: %w", err)
		}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("invalid port number '%s': %w", portStr, err)
	}
	return port, nil
}
