package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shyra-hub-be/internal/bootstrap"
	"shyra-hub-be/internal/config"
	"shyra-hub-be/internal/model"
	"shyra-hub-be/internal/server"
	"shyra-hub-be/internal/tracer"
	"shyra-hub-be/pkg/database"

	"gorm.io/gorm"
)

func main() {
	// 0. Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer()

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Optional transcript database
	var gormDB *gorm.DB
	if cfg.Database.Connection != "" {
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection, cfg.App.Environment != "production")
		if err != nil {
			log.Panicf("Unable to connect to GORM DB: %v", err)
		}
		if os.Getenv("DB_AUTO_MIGRATE") == "true" {
			if err := db.AutoMigrate(model.All()...); err != nil {
				log.Panicf("AutoMigrate failed: %v", err)
			}
		}
		gormDB = db
	} else {
		log.Println("[INFO] DB_CONNECTION_STRING not set, transcripts will not be persisted")
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)

	// 4. Start Background Services
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := container.StartBackground(ctx); err != nil {
		log.Fatalf("Failed to start background services: %v", err)
	}
	container.StartMaintenance(ctx)

	// 5. Initialize and run the server
	srv := server.New(cfg, container)
	go func() {
		if err := srv.Run(); err != nil {
			log.Printf("Server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	container.Close()
	if gormDB != nil {
		_ = database.Close(gormDB)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Printf("Tracer shutdown error: %v", err)
	}
}
