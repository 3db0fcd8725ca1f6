package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/gorm/logger"

	"github.com/alaska-tech/veciapp-backend/internal/database"
	"github.com/alaska-tech/veciapp-backend/internal/modules/payments"
)

// Only DB_DRIVER and DB_DSN are read; gateway credentials are not needed here.
func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN environment variable is required")
	}

	db, err := database.Open(database.Options{
		Driver:   os.Getenv("DB_DRIVER"),
		DSN:      dsn,
		LogLevel: logger.Info,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := payments.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	fmt.Println("✓ payments and payment_webhook_events are up to date")
}
