package main

import (
	"log"

	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/app"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/config"
)

func main() {
	// Load config from .env file / environment
	cfg := config.LoadFromEnv()

	// Create and start app
	application := app.New(cfg)
	if err := application.Start(); err != nil {
		log.Fatal(err)
	}
}
