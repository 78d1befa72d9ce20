package db

import (
	"time"
)

// DefaultCityName is used when a registration carries no city.
const DefaultCityName = "Сочи"

// Rating bounds and defaults.
const (
	MinScore            = 0.0
	MaxScore            = 10.0
	DefaultProfileScore = 5.0
)

// City is a deduplicated lookup row, created lazily on first reference.
type City struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	Name      string    `gorm:"uniqueIndex;size:64;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// User table. ID is the chat platform's user id, never generated here.
type User struct {
	ID        int64   `gorm:"primaryKey;autoIncrement:false"`
	Username  *string `gorm:"uniqueIndex;size:64"`
	FirstName string  `gorm:"size:64;not null"`
	Age       int
	Gender    string `gorm:"size:16"`
	CityID    *uint64
	City      *City     `gorm:"foreignKey:CityID"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Profile holds the user's presentation data and search preferences (1:1 with User).
type Profile struct {
	ID              uint64  `gorm:"primaryKey;autoIncrement"`
	UserID          int64   `gorm:"uniqueIndex;not null"`
	Bio             string  `gorm:"type:text"`
	PhotoURL        string  `gorm:"type:text"`
	PreferredGender *string `gorm:"size:16"`
	PreferredAgeMin *int
	PreferredAgeMax *int
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

// Rating is the user's desirability (1:1 with User).
//
// Fields:
//   - ProfileScore: static quality, default 5.0, range [0,10].
//   - ActivityScore: moved by likes (+0.5) and dislikes (-0.5), range [0,10].
type Rating struct {
	ID            uint64  `gorm:"primaryKey;autoIncrement"`
	UserID        int64   `gorm:"uniqueIndex;not null"`
	ProfileScore  float64 `gorm:"not null"`
	ActivityScore float64 `gorm:"not null"`
}

// Like is a directed actor → target edge.
//
// Indexes:
//   - idx_likes_actor_target(actor_id, target_id) UNIQUE
//     At most one like per ordered pair; inserts use ON CONFLICT DO NOTHING
//     so a redelivered message is detected by zero rows affected.
//   - idx_likes_target(target_id)
//     "who liked me" lookups.
type Like struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	ActorID   int64     `gorm:"not null;uniqueIndex:idx_likes_actor_target,priority:1"`
	TargetID  int64     `gorm:"not null;uniqueIndex:idx_likes_actor_target,priority:2;index:idx_likes_target"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Dislike mirrors Like with its own unique (actor_id, target_id) index.
type Dislike struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	ActorID   int64     `gorm:"not null;uniqueIndex:idx_dislikes_actor_target,priority:1"`
	TargetID  int64     `gorm:"not null;uniqueIndex:idx_dislikes_actor_target,priority:2;index:idx_dislikes_target"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// FileRecord tracks a file uploaded by a user; the bytes live in object storage.
type FileRecord struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement"`
	UserID        int64     `gorm:"index;not null"`
	FileName      string    `gorm:"size:255;not null"`
	FilePath      string    `gorm:"size:512;not null"`
	FileExtension string    `gorm:"size:32"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

// Models lists every table managed by AutoMigrate.
func Models() []any {
	return []any{&City{}, &User{}, &Profile{}, &Rating{}, &Like{}, &Dislike{}, &FileRecord{}}
}
