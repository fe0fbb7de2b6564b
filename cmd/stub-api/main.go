package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ignite/subscriber-sync/internal/api"
	"github.com/ignite/subscriber-sync/internal/domain"
	"github.com/ignite/subscriber-sync/internal/repository/memory"
	"github.com/ignite/subscriber-sync/internal/service/bulksync"
	"github.com/ignite/subscriber-sync/internal/service/provision"
)

// Stub server: the full API surface over in-memory stores. No DynamoDB,
// no Postgres, no Redis. State is lost on restart.
func main() {
	log.Println("╔════════════════════════════════════════════════════════════╗")
	log.Println("║  WARNING: This is a STUB server for local testing ONLY.   ║")
	log.Println("║  Both stores are IN-MEMORY; state is lost on restart.     ║")
	log.Println("║                                                           ║")
	log.Println("║  For the REAL server, run:                                ║")
	log.Println("║    go run cmd/server/main.go                              ║")
	log.Println("╚════════════════════════════════════════════════════════════╝")
	log.Println("")

	cloud := memory.New(domain.StoreCloud)
	legacy := memory.New(domain.StoreLegacy)

	writer := provision.NewDualWriter(cloud, legacy, provision.LogAuditor{})
	orch := bulksync.NewOrchestrator(writer, bulksync.NewMemoryJobStore(), 4, nil)

	handlers := api.NewHandlers(writer, orch, domain.ModeDual)
	router := api.SetupRoutes(handlers, nil)

	port := 8080
	if p := os.Getenv("PORT"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			port = n
		}
	}

	srv := &http.Server{
		Addr:    "localhost:" + strconv.Itoa(port),
		Handler: router,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Stub server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}
