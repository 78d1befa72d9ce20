package db

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var seedCities = []string{DefaultCityName, "Москва", "Казань"}

var seedNames = []string{
	"Ivan", "Petr", "Oleg", "Igor", "Pavel", "Denis", "Artem", "Roman", "Maxim", "Egor",
	"Anna", "Olga", "Irina", "Maria", "Daria", "Elena", "Vera", "Nina", "Alina", "Polina",
}

// SeedTestData resets the database and populates it with demo users and interactions.
//
// Behavior:
//  1. Clears edges, files, ratings, profiles, users and cities.
//  2. Creates 3 cities and 20 users (1..10 male, 11..20 female) with profiles
//     preferring the opposite gender and a default rating.
//  3. Generates ~200 likes/dislikes (~70% likes); every 3rd like is made mutual.
//  4. Recomputes activity scores from the edges (+0.5 per like, -0.5 per dislike, clamped).
//
// Compatible with postgres, MySQL and SQLite.
func SeedTestData(db *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	// --- Fresh start ---
	for _, table := range []string{"likes", "dislikes", "file_records", "ratings", "profiles", "users", "cities"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	log.Println("Cleared existing data")

	// --- Cities ---
	cities := make([]City, 0, len(seedCities))
	for _, name := range seedCities {
		c := City{Name: name}
		if err := db.Create(&c).Error; err != nil {
			return fmt.Errorf("failed to seed city: %w", err)
		}
		cities = append(cities, c)
	}

	// --- Users, profiles, ratings (10 male, 10 female) ---
	for i := 1; i <= 20; i++ {
		gender, preferred := "male", "female"
		if i > 10 {
			gender, preferred = "female", "male"
		}

		username := fmt.Sprintf("@user%d", i)
		cityID := cities[r.Intn(len(cities))].ID
		age := 18 + r.Intn(25)
		user := User{
			ID:        int64(i),
			Username:  &username,
			FirstName: seedNames[i-1],
			Age:       age,
			Gender:    gender,
			CityID:    &cityID,
		}
		if err := db.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to seed user: %w", err)
		}

		lo, hi := max(18, age-5), age+5
		profile := Profile{
			UserID:          user.ID,
			Bio:             fmt.Sprintf("Hi, I'm %s", user.FirstName),
			PhotoURL:        fmt.Sprintf("%d.jpg", user.ID),
			PreferredGender: &preferred,
			PreferredAgeMin: &lo,
			PreferredAgeMax: &hi,
		}
		if err := db.Create(&profile).Error; err != nil {
			return fmt.Errorf("failed to seed profile: %w", err)
		}

		rating := Rating{UserID: user.ID, ProfileScore: DefaultProfileScore, ActivityScore: MinScore}
		if err := db.Create(&rating).Error; err != nil {
			return fmt.Errorf("failed to seed rating: %w", err)
		}
	}
	log.Println("Seeded 20 users.")

	// --- Likes / dislikes (~200) ---
	activity := make(map[int64]float64)
	insert := func(edge any) (bool, error) {
		res := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "actor_id"}, {Name: "target_id"}},
			DoNothing: true,
		}).Create(edge)
		return res.RowsAffected > 0, res.Error
	}

	counter := 0
	for actorID := int64(1); actorID <= 20; actorID++ {
		for j := 0; j < 12; j++ { // each user decides on ~12 others
			targetID := int64(r.Intn(20) + 1)
			if actorID == targetID || (actorID <= 10) == (targetID <= 10) {
				continue
			}

			// like probability 70%
			if r.Intn(100) >= 70 {
				ok, err := insert(&Dislike{ActorID: actorID, TargetID: targetID})
				if err != nil {
					return fmt.Errorf("failed to seed dislike: %w", err)
				}
				if ok {
					activity[targetID] -= 0.5
				}
				continue
			}

			ok, err := insert(&Like{ActorID: actorID, TargetID: targetID})
			if err != nil {
				return fmt.Errorf("failed to seed like: %w", err)
			}
			if ok {
				activity[targetID] += 0.5
			}

			// guarantee mutual likes every 3rd pair
			if counter%3 == 0 {
				ok, err := insert(&Like{ActorID: targetID, TargetID: actorID})
				if err != nil {
					return fmt.Errorf("failed to seed mutual like: %w", err)
				}
				if ok {
					activity[actorID] += 0.5
				}
			}
			counter++
		}
	}

	for userID, delta := range activity {
		score := math.Min(MaxScore, math.Max(MinScore, delta))
		if err := db.Model(&Rating{}).Where("user_id = ?", userID).Update("activity_score", score).Error; err != nil {
			return fmt.Errorf("failed to seed activity score: %w", err)
		}
	}
	log.Printf("Seeded %d likes.", counter)

	return nil
}
