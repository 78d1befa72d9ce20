package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/muzz-matchmaker/internal/db"
)

// UserRepository provides data access for users, profiles, ratings and cities.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new repository bound to the given DB connection.
func NewUserRepository(database *gorm.DB) *UserRepository {
	return &UserRepository{db: database}
}

// GetUser loads a user by id. Returns gorm.ErrRecordNotFound when missing.
func (r *UserRepository) GetUser(ctx context.Context, userID int64) (*db.User, error) {
	var u db.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetProfile loads the profile of a user. Returns gorm.ErrRecordNotFound when missing.
func (r *UserRepository) GetProfile(ctx context.Context, userID int64) (*db.Profile, error) {
	var p db.Profile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// GetOrCreateCity returns the city with the given name, creating it on first reference.
//
// Behavior:
//   - Empty name falls back to db.DefaultCityName.
//   - The insert ignores a unique-name conflict, so two registrations racing on
//     a new city both end up with the same row.
func (r *UserRepository) GetOrCreateCity(ctx context.Context, name string) (*db.City, error) {
	return getOrCreateCity(r.db.WithContext(ctx), name)
}

func getOrCreateCity(tx *gorm.DB, name string) (*db.City, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = db.DefaultCityName
	}

	city := db.City{Name: name}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&city).Error; err != nil {
		return nil, fmt.Errorf("create city %q: %w", name, err)
	}
	if city.ID != 0 {
		return &city, nil
	}

	var existing db.City
	if err := tx.Where("name = ?", name).First(&existing).Error; err != nil {
		return nil, fmt.Errorf("load city %q: %w", name, err)
	}
	return &existing, nil
}

// SaveRegistration creates or refreshes a user together with its profile.
//
// Behavior:
//   - City is resolved with get-or-create.
//   - Existing users get first_name/age/gender/city/username overwritten.
//   - New users also get a Rating row (profile 5.0, activity 0.0).
//   - Existing profiles are overwritten field by field, new ones are created.
//   - Everything commits in one transaction. Returns true when the user is new.
func (r *UserRepository) SaveRegistration(
	ctx context.Context,
	user *db.User,
	profile *db.Profile,
	cityName string,
) (bool, error) {
	created := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		city, err := getOrCreateCity(tx, cityName)
		if err != nil {
			return err
		}
		user.CityID = &city.ID

		var existing db.User
		err = tx.First(&existing, "id = ?", user.ID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(user).Error; err != nil {
				return fmt.Errorf("create user %d: %w", user.ID, err)
			}
			rating := db.Rating{
				UserID:        user.ID,
				ProfileScore:  db.DefaultProfileScore,
				ActivityScore: db.MinScore,
			}
			if err := tx.Create(&rating).Error; err != nil {
				return fmt.Errorf("create rating for %d: %w", user.ID, err)
			}
			created = true
		case err != nil:
			return fmt.Errorf("load user %d: %w", user.ID, err)
		default:
			if err := tx.Model(&existing).Updates(map[string]any{
				"first_name": user.FirstName,
				"age":        user.Age,
				"gender":     user.Gender,
				"city_id":    user.CityID,
				"username":   user.Username,
			}).Error; err != nil {
				return fmt.Errorf("update user %d: %w", user.ID, err)
			}
		}

		profile.UserID = user.ID
		var current db.Profile
		err = tx.Where("user_id = ?", user.ID).First(&current).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(profile).Error; err != nil {
				return fmt.Errorf("create profile for %d: %w", user.ID, err)
			}
		case err != nil:
			return fmt.Errorf("load profile for %d: %w", user.ID, err)
		default:
			if err := tx.Model(&current).Updates(map[string]any{
				"bio":               profile.Bio,
				"photo_url":         profile.PhotoURL,
				"preferred_gender":  profile.PreferredGender,
				"preferred_age_min": profile.PreferredAgeMin,
				"preferred_age_max": profile.PreferredAgeMax,
			}).Error; err != nil {
				return fmt.Errorf("update profile for %d: %w", user.ID, err)
			}
			profile.ID = current.ID
		}
		return nil
	})
	return created, err
}

// UpdateUserColumns updates the given users columns.
// Returns gorm.ErrRecordNotFound when the user does not exist.
func (r *UserRepository) UpdateUserColumns(ctx context.Context, userID int64, columns map[string]any) error {
	res := r.db.WithContext(ctx).Model(&db.User{}).Where("id = ?", userID).Updates(columns)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.ensureExists(ctx, &db.User{}, "id = ?", userID)
	}
	return nil
}

// UpdateProfileColumns updates the given profiles columns.
// Returns gorm.ErrRecordNotFound when the profile does not exist.
func (r *UserRepository) UpdateProfileColumns(ctx context.Context, userID int64, columns map[string]any) error {
	res := r.db.WithContext(ctx).Model(&db.Profile{}).Where("user_id = ?", userID).Updates(columns)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.ensureExists(ctx, &db.Profile{}, "user_id = ?", userID)
	}
	return nil
}

// ensureExists distinguishes "no such row" from "row unchanged" (mysql reports
// zero affected rows for an update that writes identical values).
func (r *UserRepository) ensureExists(ctx context.Context, model any, query string, args ...any) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(model).Where(query, args...).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
