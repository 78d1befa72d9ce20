package registration

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/oggyb/muzz-matchmaker/internal/app"
	"github.com/oggyb/muzz-matchmaker/internal/db"
	apperrors "github.com/oggyb/muzz-matchmaker/internal/errors"
	"github.com/oggyb/muzz-matchmaker/internal/logger"
	"github.com/oggyb/muzz-matchmaker/internal/message"
	"github.com/oggyb/muzz-matchmaker/internal/repository"
	"github.com/oggyb/muzz-matchmaker/internal/service/refill"
)

// MinAge is the youngest age accepted for users and preferences.
const MinAge = 18

var genders = []string{"male", "female", "other"}

// Service creates users from registrations and applies single-field updates.
type Service struct {
	repo   *repository.UserRepository
	refill refill.Scheduler
	log    *slog.Logger
}

func NewService(appCtx *app.AppContext, scheduler refill.Scheduler) *Service {
	return &Service{
		repo:   repository.NewUserRepository(appCtx.DB),
		refill: scheduler,
		log:    appCtx.Logger.With("component", "registration"),
	}
}

// Register creates or refreshes the user and profile carried by msg and
// requests the user's first candidate queue. Returns true for a new user.
//
// Behavior:
//   - Empty city falls back to the default city.
//   - Username gets an "@" prefix when it has none.
//   - Rating (5.0/0.0) is created for new users only.
func (s *Service) Register(ctx context.Context, msg *message.Registration) (bool, error) {
	u := msg.User
	if u.UserID <= 0 {
		return false, apperrors.Invalid("registration without user_id")
	}
	if strings.TrimSpace(u.FirstName) == "" {
		return false, apperrors.Invalid("registration of %d without first_name", u.UserID)
	}
	if u.Age != nil && *u.Age < MinAge {
		return false, apperrors.Invalid("user %d is younger than %d", u.UserID, MinAge)
	}
	if u.Gender != nil && !slices.Contains(genders, *u.Gender) {
		return false, apperrors.Invalid("unknown gender %q", *u.Gender)
	}
	p := msg.Profile
	if p.PreferredGender != nil && !slices.Contains(genders, *p.PreferredGender) {
		return false, apperrors.Invalid("unknown preferred gender %q", *p.PreferredGender)
	}
	if err := validateAgeRange(p.PreferredAgeMin, p.PreferredAgeMax); err != nil {
		return false, err
	}

	user := &db.User{
		ID:        u.UserID,
		FirstName: strings.TrimSpace(u.FirstName),
		Username:  normalizeUsername(u.Username),
		Age:       deref(u.Age),
		Gender:    deref(u.Gender),
	}
	profile := &db.Profile{
		Bio:             deref(p.Bio),
		PhotoURL:        deref(p.PhotoURL),
		PreferredGender: p.PreferredGender,
		PreferredAgeMin: p.PreferredAgeMin,
		PreferredAgeMax: p.PreferredAgeMax,
	}

	created, err := s.repo.SaveRegistration(ctx, user, profile, deref(u.CityName))
	if err != nil {
		return false, apperrors.Map(fmt.Errorf("save registration of %d: %w", u.UserID, err))
	}

	s.refill.Request(ctx, u.UserID, refill.ReasonInitial)
	logger.For(ctx, s.log).Info("user registered", "user_id", u.UserID, "created", created)
	return created, nil
}

// UpdateField applies one field update.
//
// Fields:
//   - users: first_name, username, age, gender, city
//   - profiles: bio, photo_url, preferred_gender, preferred_age_range{min,max}
//
// Changes to city or preferences request a refill. Unknown fields and bad
// values are validation errors; a missing user or profile is a not-found error.
func (s *Service) UpdateField(ctx context.Context, msg *message.FieldUpdate) error {
	log := logger.For(ctx, s.log).With("user_id", msg.UserID, "field", msg.Field)

	var (
		userCols    = map[string]any{}
		profileCols = map[string]any{}
		refillAfter bool
	)

	switch msg.Field {
	case "first_name":
		v, err := nonEmptyString(msg)
		if err != nil {
			return err
		}
		userCols["first_name"] = v
	case "username":
		v, err := nonEmptyString(msg)
		if err != nil {
			return err
		}
		userCols["username"] = normalizeUsername(&v)
	case "age":
		n, err := message.Int(msg.Value)
		if err != nil {
			return apperrors.Invalid("age: %v", err)
		}
		if n < MinAge {
			return apperrors.Invalid("age %d is below %d", n, MinAge)
		}
		userCols["age"] = int(n)
	case "gender":
		v, err := oneOf(msg, genders)
		if err != nil {
			return err
		}
		userCols["gender"] = v
	case "city":
		v, err := nonEmptyString(msg)
		if err != nil {
			return err
		}
		city, err := s.repo.GetOrCreateCity(ctx, v)
		if err != nil {
			return apperrors.Map(err)
		}
		userCols["city_id"] = city.ID
		refillAfter = true
	case "bio", "photo_url":
		v, ok := msg.Value.(string)
		if !ok {
			return apperrors.Invalid("%s must be a string, got %T", msg.Field, msg.Value)
		}
		profileCols[msg.Field] = v
	case "preferred_gender":
		v, err := oneOf(msg, genders)
		if err != nil {
			return err
		}
		profileCols["preferred_gender"] = v
		refillAfter = true
	case "preferred_age_range":
		r, err := message.ParseAgeRange(msg.Value)
		if err != nil {
			return apperrors.Invalid("preferred_age_range: %v", err)
		}
		if err := validateAgeRange(&r.Min, &r.Max); err != nil {
			return err
		}
		profileCols["preferred_age_min"] = r.Min
		profileCols["preferred_age_max"] = r.Max
		refillAfter = true
	default:
		return apperrors.Invalid("unknown field %q", msg.Field)
	}

	// username may ride along with any user field
	if len(userCols) > 0 && msg.Username != nil && msg.Field != "username" && *msg.Username != "" {
		userCols["username"] = normalizeUsername(msg.Username)
	}

	if len(userCols) > 0 {
		if err := s.repo.UpdateUserColumns(ctx, msg.UserID, userCols); err != nil {
			return apperrors.Map(fmt.Errorf("update user %d: %w", msg.UserID, err))
		}
	}
	if len(profileCols) > 0 {
		if err := s.repo.UpdateProfileColumns(ctx, msg.UserID, profileCols); err != nil {
			return apperrors.Map(fmt.Errorf("update profile of %d: %w", msg.UserID, err))
		}
	}

	if refillAfter {
		s.refill.Request(ctx, msg.UserID, refill.ReasonPreferencesChanged)
	}
	log.Info("field updated")
	return nil
}

func normalizeUsername(u *string) *string {
	if u == nil {
		return nil
	}
	v := strings.TrimSpace(*u)
	if v == "" {
		return nil
	}
	if !strings.HasPrefix(v, "@") {
		v = "@" + v
	}
	return &v
}

func validateAgeRange(lo, hi *int) error {
	if lo != nil && *lo < MinAge {
		return apperrors.Invalid("preferred minimum age %d is below %d", *lo, MinAge)
	}
	if hi != nil && *hi < MinAge {
		return apperrors.Invalid("preferred maximum age %d is below %d", *hi, MinAge)
	}
	if lo != nil && hi != nil && *lo > *hi {
		return apperrors.Invalid("preferred age range %d..%d is empty", *lo, *hi)
	}
	return nil
}

func nonEmptyString(msg *message.FieldUpdate) (string, error) {
	v, ok := msg.Value.(string)
	if !ok {
		return "", apperrors.Invalid("%s must be a string, got %T", msg.Field, msg.Value)
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", apperrors.Invalid("%s must not be empty", msg.Field)
	}
	return v, nil
}

func oneOf(msg *message.FieldUpdate, allowed []string) (string, error) {
	v, ok := msg.Value.(string)
	if !ok || !slices.Contains(allowed, v) {
		return "", apperrors.Invalid("%s must be one of %v, got %v", msg.Field, allowed, msg.Value)
	}
	return v, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
