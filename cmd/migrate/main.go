// This file runs the schema migrations against the configured database.
// How to run:
// go run cmd/migrate/main.go
package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/agencyos/escrow/config"
	"github.com/agencyos/escrow/internal/constants"
	"github.com/agencyos/escrow/internal/db"
)

func main() {
	// Load .env file if present
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// db.New runs the migrations as part of connecting
	_, err := db.New(db.Options{
		Host:     config.GetEnv(constants.EnvDBHost, db.DefaultHost),
		Port:     config.GetEnvInt(constants.EnvDBPort, db.DefaultPort),
		User:     config.GetEnv(constants.EnvDBUser, db.DefaultUser),
		Password: config.GetEnv(constants.EnvDBPassword, db.DefaultPassword),
		DBName:   config.GetEnv(constants.EnvDBName, db.DefaultDBName),
	})
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migrations applied successfully")
}
