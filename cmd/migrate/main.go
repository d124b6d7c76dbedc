package main

import (
	"context"
	"log"
	"os"

	"github.com/transiteye/tracker/internal/adapters/postgres"
	"github.com/transiteye/tracker/internal/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down>")
	}

	cfg, err := config.Load("tracker-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	var down bool
	switch os.Args[1] {
	case "up":
	case "down":
		down = true
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}

	if err := postgres.Migrate(ctx, db, down); err != nil {
		log.Fatalf("migrate %s: %v", os.Args[1], err)
	}
	log.Printf("migrate %s complete", os.Args[1])
}
