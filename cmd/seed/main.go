// Command main runs the database seeder for isupipe.
package main

import (
	"context"
	"flag"
	"log"

	"isupipe/internal/config"
	"isupipe/internal/database"
	"isupipe/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of demo users to create")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	termStart, termEnd, err := cfg.ReservationTerm()
	if err != nil {
		log.Fatalf("Invalid reservation term: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	res, err := seed.NewSeeder(db).Run(context.Background(), seed.Options{
		TermStart:    termStart,
		TermEnd:      termEnd,
		SlotCapacity: cfg.SlotCapacity,
		NumUsers:     *numUsers,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %d slots, %d tags and %d demo users", res.Slots, res.Tags, len(res.Users))
	log.Printf("All demo users have the password: %s", seed.DemoPassword)
}
