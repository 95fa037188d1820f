package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"beacon/internal/platform/config"
	"beacon/internal/platform/database"
	"beacon/migrations"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	envFile := flag.String("env-file", ".env", "Optional dotenv file loaded before the config")
	flag.Parse()

	// a missing dotenv file is not an error; real env vars take precedence
	_ = godotenv.Load(*envFile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewDB(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	applied, err := database.Migrate(db, migrations.FS)
	if err != nil {
		log.Fatal(err)
	}
	for _, name := range applied {
		log.Printf("Applied migration: %s", name)
	}

	fmt.Println("Migration completed successfully")
}
