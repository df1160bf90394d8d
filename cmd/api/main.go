package main

import (
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"repostack/internal/api"
	"repostack/internal/config"
	"repostack/internal/db"
)

func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	cfg := config.Load()

	database, err := db.Open(cfg.DBURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer database.Close()

	if err := database.Health(); err != nil {
		log.Fatal("Database health check failed:", err)
	}

	// Blob storage lives on local disk next to the server
	if err := os.MkdirAll(cfg.StoragePath, 0o755); err != nil {
		log.Fatal("Failed to create storage directory:", err)
	}

	r := mux.NewRouter()
	api.RegisterRoutes(r, database, cfg)

	log.Printf("Registry API starting on port %s", cfg.APIPort)
	log.Printf("Storage path: %s", cfg.StoragePath)
	log.Fatal(http.ListenAndServe(":"+cfg.APIPort, r))
}
