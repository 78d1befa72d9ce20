// Package dbtest opens isolated in-memory databases for tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oggyb/muzz-matchmaker/internal/db"
)

// New spins up a shared-cache in-memory SQLite DB named after the test and
// applies migrations. Each test gets its own database.
func New(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		Logger:  logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := database.DB()
	require.NoError(t, err)
	// one connection keeps the shared in-memory DB and its transactions serialized
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(database))
	return database
}

// UserSpec describes a user row plus its profile and rating for seeding tests.
type UserSpec struct {
	ID              int64
	Name            string
	Age             int
	Gender          string
	City            string
	PreferredGender string
	AgeMin, AgeMax  int
	ProfileScore    float64
	ActivityScore   float64
}

// CreateUser inserts the user, its profile and rating. City is get-or-created.
func CreateUser(t *testing.T, gdb *gorm.DB, s UserSpec) {
	t.Helper()

	user := db.User{ID: s.ID, FirstName: s.Name, Age: s.Age, Gender: s.Gender}
	if s.City != "" {
		city := db.City{Name: s.City}
		require.NoError(t, gdb.Where(db.City{Name: s.City}).FirstOrCreate(&city).Error)
		user.CityID = &city.ID
	}
	require.NoError(t, gdb.Create(&user).Error)

	profile := db.Profile{UserID: s.ID, Bio: s.Name + " bio", PhotoURL: fmt.Sprintf("%d.jpg", s.ID)}
	if s.PreferredGender != "" {
		g := s.PreferredGender
		profile.PreferredGender = &g
	}
	if s.AgeMin != 0 || s.AgeMax != 0 {
		lo, hi := s.AgeMin, s.AgeMax
		profile.PreferredAgeMin = &lo
		profile.PreferredAgeMax = &hi
	}
	require.NoError(t, gdb.Create(&profile).Error)

	rating := db.Rating{UserID: s.ID, ProfileScore: s.ProfileScore, ActivityScore: s.ActivityScore}
	require.NoError(t, gdb.Create(&rating).Error)
}
