package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sort"

	"gorm.io/gorm"

	"github.com/oggyb/muzz-matchmaker/internal/app"
	"github.com/oggyb/muzz-matchmaker/internal/cache"
	apperrors "github.com/oggyb/muzz-matchmaker/internal/errors"
	"github.com/oggyb/muzz-matchmaker/internal/logger"
	"github.com/oggyb/muzz-matchmaker/internal/repository"
)

// Jitter range applied to every score.
const (
	JitterMin = 0.8
	JitterMax = 1.2
)

// Preferences are the requester's side of the score multipliers.
type Preferences struct {
	CityID *uint64
	Gender *string
	AgeMin *int
	AgeMax *int
}

// Engine ranks candidates for a user and stores them in the user's queue.
type Engine struct {
	users      *repository.UserRepository
	candidates *repository.CandidateRepository
	cache      *cache.RedisCache
	limit      int
	jitter     func() float64
	log        *slog.Logger
}

func NewEngine(appCtx *app.AppContext) *Engine {
	limit := appCtx.Config.Scoring.Limit
	if limit <= 0 {
		limit = 5
	}
	return &Engine{
		users:      repository.NewUserRepository(appCtx.DB),
		candidates: repository.NewCandidateRepository(appCtx.DB),
		cache:      appCtx.RedisCache,
		limit:      limit,
		jitter:     DefaultJitter,
		log:        appCtx.Logger.With("component", "scoring"),
	}
}

// WithJitter replaces the jitter source. Returned values should lie in [JitterMin, JitterMax).
func (e *Engine) WithJitter(f func() float64) *Engine {
	e.jitter = f
	return e
}

// DefaultJitter samples uniformly from [JitterMin, JitterMax).
func DefaultJitter() float64 {
	return JitterMin + rand.Float64()*(JitterMax-JitterMin)
}

// Refresh computes the user's candidates and replaces their queue with them.
//
// Behavior:
//   - Unknown user: logs an error and returns an empty list, queue untouched.
//   - Empty ranking still replaces the queue, leaving it empty.
//
// Example:
//
//	engine.Refresh(ctx, 42)
func (e *Engine) Refresh(ctx context.Context, userID int64) ([]cache.Candidate, error) {
	log := logger.For(ctx, e.log)

	ranked, err := e.Compute(ctx, userID)
	if errors.Is(err, apperrors.ErrNotFound) {
		log.Error("user not found, nothing to score", "user_id", userID)
		return []cache.Candidate{}, nil
	}
	if err != nil {
		return nil, err
	}

	if err := e.cache.ReplaceCandidates(ctx, userID, ranked); err != nil {
		return nil, apperrors.Transient(fmt.Errorf("store candidates for %d: %w", userID, err))
	}

	if len(ranked) == 0 {
		log.Warn("no matching profiles found", "user_id", userID)
	} else {
		log.Info("stored matching profiles", "user_id", userID, "count", len(ranked))
	}
	return ranked, nil
}

// Compute ranks candidates for userID without touching the queue.
// Returns an errors.ErrNotFound error when the user does not exist.
func (e *Engine) Compute(ctx context.Context, userID int64) ([]cache.Candidate, error) {
	user, err := e.users.GetUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Map(fmt.Errorf("load user %d: %w", userID, err))
	}

	prefs := Preferences{CityID: user.CityID}
	profile, err := e.users.GetProfile(ctx, userID)
	switch {
	case err == nil:
		prefs.Gender = profile.PreferredGender
		prefs.AgeMin = profile.PreferredAgeMin
		prefs.AgeMax = profile.PreferredAgeMax
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, apperrors.Map(fmt.Errorf("load profile %d: %w", userID, err))
	}

	rows, err := e.candidates.ListCandidates(ctx, userID)
	if err != nil {
		return nil, apperrors.Map(fmt.Errorf("list candidates for %d: %w", userID, err))
	}
	return Rank(prefs, rows, e.limit, e.jitter), nil
}

// Rank scores rows against prefs, sorts by score descending and keeps the top limit.
//
//	score = (profile_score + activity_score)
//	        × 2 if gender matches × 2 if city matches × 2 if age is in range
//	        × jitter
//
// A multiplier needs its preference set: no preferred gender, no city or a
// half-open age range never match.
func Rank(prefs Preferences, rows []repository.CandidateRow, limit int, jitter func() float64) []cache.Candidate {
	out := make([]cache.Candidate, 0, len(rows))
	for _, row := range rows {
		score := (row.ProfileScore + row.ActivityScore) * multiplier(prefs, row) * jitter()
		out = append(out, cache.Candidate{
			UserID:        row.UserID,
			FirstName:     row.FirstName,
			Age:           row.Age,
			Gender:        row.Gender,
			Bio:           row.Bio,
			PhotoURL:      row.PhotoURL,
			Score:         score,
			ProfileScore:  row.ProfileScore,
			ActivityScore: row.ActivityScore,
		})
	}

	// sort on the unrounded score, round afterwards
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Score = round2(out[i].Score)
	}
	return out
}

func multiplier(prefs Preferences, row repository.CandidateRow) float64 {
	m := 1.0
	if prefs.Gender != nil && *prefs.Gender == row.Gender {
		m *= 2
	}
	if prefs.CityID != nil && row.CityID != nil && *prefs.CityID == *row.CityID {
		m *= 2
	}
	if prefs.AgeMin != nil && prefs.AgeMax != nil && row.Age >= *prefs.AgeMin && row.Age <= *prefs.AgeMax {
		m *= 2
	}
	return m
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
