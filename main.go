package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"invoicecontrol/cmd"
	"invoicecontrol/internal/config"
	"invoicecontrol/internal/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger with configuration
	appLog, err := logger.New(cfg.GetLoggerConfig())
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Execute CLI commands
	if err := cmd.Execute(cfg, appLog); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}
