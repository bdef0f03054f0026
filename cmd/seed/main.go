// Command seed migrates the feed database and fills it with demo data.
package main

import (
	"flag"
	"log"

	"civicfeed/internal/config"
	"civicfeed/internal/database"
	"civicfeed/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of generated users")
	numPosts := flag.Int("posts", 120, "Number of generated posts")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	seedValue := flag.Int64("seed", 0, "Random seed (0 uses the clock)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Open(database.Dialector(cfg))
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Printf("Target: %d users, %d posts, clean=%v", *numUsers, *numPosts, *shouldClean)
	s := seed.NewSeeder(db, seed.Options{
		NumUsers:    *numUsers,
		NumPosts:    *numPosts,
		ShouldClean: *shouldClean,
		Seed:        *seedValue,
	})
	if _, err := s.Run(); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Done. Log in as %s / %s", seed.DemoEmail, seed.DemoPassword)
}
