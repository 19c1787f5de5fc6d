package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	coordapi "github.com/Ftotnem/RESPONSE-SERVICES/coordinator/api"
	"github.com/Ftotnem/RESPONSE-SERVICES/coordinator/archiver"
	"github.com/Ftotnem/RESPONSE-SERVICES/coordinator/engine"
	"github.com/Ftotnem/RESPONSE-SERVICES/coordinator/metrics"
	"github.com/Ftotnem/RESPONSE-SERVICES/coordinator/publisher"
	"github.com/Ftotnem/RESPONSE-SERVICES/coordinator/service"
	"github.com/Ftotnem/RESPONSE-SERVICES/coordinator/store"
	"github.com/Ftotnem/RESPONSE-SERVICES/shared/api"
	"github.com/Ftotnem/RESPONSE-SERVICES/shared/config"
	"github.com/Ftotnem/RESPONSE-SERVICES/shared/mongodb"
	redisu "github.com/Ftotnem/RESPONSE-SERVICES/shared/redis"
	"github.com/Ftotnem/RESPONSE-SERVICES/shared/registry"
)

func main() {
	// --- 1. Load Configuration ---
	cfg, err := config.LoadCoordinatorServiceConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Printf("Configuration loaded for Coordinator Service. Listening on: %s", cfg.ListenAddr)

	// --- 2. Connect to Redis Cluster ---
	redisClient, err := redisu.NewRedisClusterClient(cfg.RedisAddrs, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("Failed to connect to Redis Cluster: %v", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Printf("ERROR: Error closing Redis client: %v", err)
		}
		log.Println("Redis Client closed.")
	}()

	// --- 3. Connect to MongoDB (operation archive) ---
	mongoClient, err := mongodb.NewClient(context.Background(), cfg.MongoDBConnStr, cfg.MongoDBDatabase)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(ctx); err != nil {
			log.Printf("ERROR: Error disconnecting from MongoDB: %v", err)
		}
	}()

	archiveStore := store.NewOperationArchiveStore(mongoClient.Collection(cfg.MongoDBOperationsCollection))
	indexCtx, indexCancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	if err := archiveStore.EnsureIndexes(indexCtx); err != nil {
		log.Printf("WARNING: %v", err)
	}
	indexCancel()

	statusStore := store.NewStatusStore(redisClient, cfg.SnapshotTTL)
	registryClient := registry.NewRegistryClient(redisClient, cfg.HeartbeatTTL)
	m := metrics.New()

	// --- 4. Archiver and engine ---
	opArchiver := archiver.NewOperationArchiver(archiveStore, cfg.ArchiveQueueSize, cfg.ArchiveWriteTimeout, m)
	go opArchiver.Start()

	eng := engine.New(
		engine.WithCompletedRetention(cfg.CompletedRetention),
		engine.WithCompletionHook(opArchiver.Enqueue),
	)

	// --- 5. Business Logic Service ---
	coordinatorService := service.NewCoordinatorService(eng, service.Dependencies{
		Events:         statusStore,
		Archive:        archiveStore,
		Peers:          registryClient,
		Snapshots:      statusStore,
		Metrics:        m,
		PublishTimeout: cfg.RequestTimeout,
	})
	log.Println("Coordinator Service business logic initialized.")

	// --- 6. Service Registrar and Status Publisher ---
	registrar := registry.NewServiceRegistrar(redisClient, registry.CoordinatorServiceType, &cfg.CommonConfig, func() map[string]string {
		return map[string]string{"activeOperations": strconv.Itoa(coordinatorService.ActiveOperationCount())}
	})
	registrar.Start()

	statusPublisher := publisher.NewStatusPublisher(eng, statusStore, m, registrar.GetServiceID(), cfg.SnapshotInterval, cfg.RequestTimeout)
	go statusPublisher.Start()

	// --- 7. Setup HTTP Server and Register Routes ---
	baseServer := api.NewBaseServer(cfg.ListenAddr, log.Default(), api.ObserverMiddleware(m.ObserveHTTP))
	handlers := coordapi.NewCoordinatorAPIHandlers(coordinatorService, map[string]coordapi.HealthCheck{
		"redis":   func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		"mongodb": mongoClient.Ping,
	}, cfg.RequestTimeout)
	handlers.RegisterRoutes(baseServer.Router)
	baseServer.Router.Handle("/metrics", m.Handler()).Methods("GET")
	log.Println("HTTP routes registered.")

	go func() {
		if err := baseServer.Start(); err != nil {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// --- 8. Graceful Shutdown ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down Coordinator Service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := baseServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: HTTP server graceful shutdown failed: %v", err)
	}
	statusPublisher.Stop()
	registrar.Stop()
	coordinatorService.Close()
	opArchiver.Stop()
	log.Println("Coordinator Service gracefully shut down.")
}
