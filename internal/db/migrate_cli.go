package db

import (
	"fmt"
	"log"
	"os"
	"strconv"
)

// RunMigrateCommand handles the 'migrate' subcommand.
func RunMigrateCommand(args []string, dbPath string) {
	if len(args) < 1 {
		PrintMigrateHelp()
		os.Exit(1)
	}

	database, err := OpenDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	migrationsFS := MigrationsFS()

	switch args[0] {
	case "up":
		if err := database.MigrateUp(migrationsFS); err != nil {
			log.Fatalf("Migration up failed: %v", err)
		}
		printVersion(database)
	case "down":
		if err := database.MigrateDown(migrationsFS); err != nil {
			log.Fatalf("Migration down failed: %v", err)
		}
		printVersion(database)
	case "status":
		printVersion(database)
		latest, err := LatestMigrationVersion(migrationsFS)
		if err != nil {
			log.Fatalf("Failed to read migrations: %v", err)
		}
		fmt.Printf("Latest available: %d\n", latest)
	case "force":
		if len(args) < 2 {
			log.Fatal("Usage: capture-gateway migrate force <version_number>")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatalf("Invalid version number: %s", args[1])
		}
		if err := database.MigrateForce(migrationsFS, v); err != nil {
			log.Fatalf("Force failed: %v", err)
		}
		printVersion(database)
	case "help":
		PrintMigrateHelp()
	default:
		fmt.Printf("Unknown migrate action: %s\n\n", args[0])
		PrintMigrateHelp()
		os.Exit(1)
	}
}

func printVersion(database *DB) {
	version, dirty, err := database.MigrateVersion(MigrationsFS())
	if err != nil {
		log.Fatalf("Failed to get migration version: %v", err)
	}
	fmt.Printf("Current version: %d (dirty: %v)\n", version, dirty)
}

// PrintMigrateHelp prints usage for the migrate subcommand.
func PrintMigrateHelp() {
	fmt.Println(`Usage: capture-gateway migrate <action>

Actions:
  up              apply all pending migrations
  down            roll back the most recent migration
  status          show current and latest migration versions
  force <version> mark the database as being at <version> (recovery only)
  help            show this message`)
}
