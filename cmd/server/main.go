package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/subscriber-sync/internal/api"
	"github.com/ignite/subscriber-sync/internal/config"
	"github.com/ignite/subscriber-sync/internal/domain"
	"github.com/ignite/subscriber-sync/internal/pkg/backoff"
	"github.com/ignite/subscriber-sync/internal/pkg/distlock"
	"github.com/ignite/subscriber-sync/internal/repository/dynamo"
	"github.com/ignite/subscriber-sync/internal/repository/postgres"
	"github.com/ignite/subscriber-sync/internal/service/bulksync"
	"github.com/ignite/subscriber-sync/internal/service/provision"
)

// checkPortAvailable verifies that the target port is not already in use.
// This prevents confusion from stale/stub processes occupying the port.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v", port, addr, err)
	}
	ln.Close()
	return nil
}

func main() {
	log.Println("subscriber-sync server (cmd/server)")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("DATABASE_URL") != "" {
		log.Println("[config] DATABASE_URL env override active")
	}

	if err := checkPortAvailable(cfg.Server.Host, cfg.Server.Port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Legacy store (PostgreSQL)
	if cfg.Legacy.DatabaseURL == "" {
		log.Fatal("legacy.database_url is required (or set DATABASE_URL)")
	}
	legacyDB, err := sql.Open("postgres", cfg.Legacy.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open legacy database: %v", err)
	}
	legacyDB.SetMaxOpenConns(cfg.Legacy.MaxOpenConns)
	legacyDB.SetMaxIdleConns(cfg.Legacy.MaxIdleConns)
	legacyDB.SetConnMaxLifetime(5 * time.Minute)
	defer legacyDB.Close()

	pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
	if err := legacyDB.PingContext(pingCtx); err != nil {
		log.Printf("Warning: legacy database ping failed: %v — continuing, reads will surface STORE_UNAVAILABLE", err)
	} else {
		log.Println("Legacy database connected")
	}
	pingCancel()

	legacyStore := postgres.NewLegacyStore(legacyDB, cfg.Legacy.Timeout())

	// Cloud store (DynamoDB)
	if cfg.Cloud.TableName == "" {
		log.Fatal("cloud.table_name is required (or set CLOUD_TABLE_NAME)")
	}
	cloudStore, err := dynamo.New(ctx, dynamo.Options{
		TableName:   cfg.Cloud.TableName,
		MSISDNIndex: cfg.Cloud.MSISDNIndex,
		IMSIIndex:   cfg.Cloud.IMSIIndex,
		Region:      cfg.Cloud.Region,
		Profile:     cfg.Cloud.AWSProfile,
		AccessKey:   cfg.Cloud.AccessKey,
		SecretKey:   cfg.Cloud.SecretKey,
		Timeout:     cfg.Cloud.Timeout(),
	})
	if err != nil {
		log.Fatalf("Failed to initialize cloud store: %v", err)
	}
	log.Printf("Cloud store initialized (table: %s, region: %s)", cfg.Cloud.TableName, cfg.Cloud.Region)

	// Redis: audit stream, cross-instance job store and job locks. All
	// optional; everything degrades to local equivalents without it.
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Printf("Warning: Redis connection failed (%s): %v — falling back to log auditing and PG advisory locks", cfg.Redis.Addr, err)
			redisClient.Close()
			redisClient = nil
		} else {
			log.Printf("Redis connected: %s", cfg.Redis.Addr)
		}
		pingCancel()
	} else {
		log.Println("Redis not configured — using log auditing and PG advisory locks")
	}

	// Wrap both adapters with retry on transient failures.
	policy := backoff.Policy{
		BaseDelay:   cfg.Sync.RetryBase(),
		MaxDelay:    cfg.Sync.RetryMax(),
		MaxAttempts: cfg.Sync.RetryMaxAttempts,
	}
	cloud := provision.WithRetry(cloudStore, policy)
	legacy := provision.WithRetry(legacyStore, policy)

	var auditor provision.Auditor
	if redisClient != nil {
		auditor = provision.NewRedisAuditor(redisClient, cfg.Sync.AuditStream)
		log.Printf("Audit stream: %s", cfg.Sync.AuditStream)
	}
	writer := provision.NewDualWriter(cloud, legacy, auditor)

	var jobStore bulksync.JobStore
	if redisClient != nil {
		jobStore = bulksync.NewRedisJobStore(redisClient, cfg.Sync.JobTTL())
	} else {
		jobStore = bulksync.NewMemoryJobStore()
	}
	lockFor := func(jobID string) distlock.Lock {
		return distlock.New(redisClient, legacyDB, jobID, cfg.Sync.LockTTL())
	}
	orch := bulksync.NewOrchestrator(writer, jobStore, cfg.Sync.Workers, lockFor)

	handlers := api.NewHandlers(writer, orch, domain.ProvisioningMode(cfg.Provisioning.DefaultMode))
	router := api.SetupRoutes(handlers, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if redisClient != nil {
		redisClient.Close()
	}
	log.Println("Server stopped")
}
