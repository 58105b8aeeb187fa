package main

import (
	"flag"
	"log"

	"github.com/joho/godotenv"

	"github.com/originmark/provenance/internal/app"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	// Missing .env is fine; deployments inject real environment variables.
	_ = godotenv.Load()

	a, err := app.New(*configPath)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer a.Close()

	if err := a.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
