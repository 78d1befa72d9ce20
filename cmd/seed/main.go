package main

import (
	"log"

	"github.com/oggyb/muzz-matchmaker/internal/config"
	"github.com/oggyb/muzz-matchmaker/internal/db"
)

func main() {
	cfg := config.New()

	database, err := db.NewDB(cfg)
	if err != nil {
		log.Fatalf("failed to init %s db: %v", cfg.DB.Driver, err)
	}
	if err := db.SeedTestData(database); err != nil {
		log.Fatalf("failed to seed: %v", err)
	}

	var users, likes, dislikes int64
	database.Model(&db.User{}).Count(&users)
	database.Model(&db.Like{}).Count(&likes)
	database.Model(&db.Dislike{}).Count(&dislikes)
	log.Printf("Seeding completed on %s: %d users, %d likes, %d dislikes.", cfg.DB.Driver, users, likes, dislikes)
}
