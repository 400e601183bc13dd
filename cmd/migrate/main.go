package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"tomodachi/config"
	"tomodachi/pkg/database"
)

const usage = `
Tomodachi - Database CLI Tool

Usage:
  migrate [command] [flags]

Commands:
  up          Run all SQL migrations
  status      Show database connection status
  seed-dev    Seed with development/test data

Flags:
  -migrations string   Path to migrations directory (default "migrations")

Examples:
  go run cmd/migrate/main.go up
  go run cmd/migrate/main.go seed-dev
`

func main() {
	migrationsDir := flag.String("migrations", "migrations", "Path to migrations directory")

	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)

	cfg := config.LoadConfig()
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer db.Close()

	switch command {
	case "up":
		log.Println("Running migrations...")
		if err := database.ApplyMigrations(db, *migrationsDir); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations completed successfully")
	case "status":
		if err := database.HealthCheck(db); err != nil {
			log.Fatalf("Database health check failed: %v", err)
		}
		log.Println("Database connection: OK")
	case "seed-dev":
		log.Println("Seeding database (development mode)...")
		result, err := database.SeedDevelopment(db)
		if err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
		log.Printf("Seeded %d users, %d chats, %d messages", result.Users, result.Chats, result.Messages)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}
