package interaction

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oggyb/muzz-matchmaker/internal/app"
	"github.com/oggyb/muzz-matchmaker/internal/cache"
	apperrors "github.com/oggyb/muzz-matchmaker/internal/errors"
	"github.com/oggyb/muzz-matchmaker/internal/logger"
	"github.com/oggyb/muzz-matchmaker/internal/repository"
	"github.com/oggyb/muzz-matchmaker/internal/service/refill"
)

// Rating deltas applied to the target's activity score.
const (
	LikeDelta    = 0.5
	DislikeDelta = -0.5
)

// Result describes what a like or dislike changed.
type Result struct {
	// AlreadyProcessed is true when the edge existed before this call.
	AlreadyProcessed bool
	// Mutual is true when the target had already liked the actor (likes only).
	Mutual bool
}

// Service records likes and dislikes and keeps ratings in step with them.
type Service struct {
	repo   *repository.InteractionRepository
	cache  *cache.RedisCache
	refill refill.Scheduler
	log    *slog.Logger
}

func NewService(appCtx *app.AppContext, scheduler refill.Scheduler) *Service {
	return &Service{
		repo:   repository.NewInteractionRepository(appCtx.DB),
		cache:  appCtx.RedisCache,
		refill: scheduler,
		log:    appCtx.Logger.With("component", "interaction"),
	}
}

// Like records actor → target and raises the target's activity score by 0.5.
//
// Behavior:
//   - Self-likes, missing actors and missing targets are validation errors.
//   - A like that already exists is reported as AlreadyProcessed, rating untouched.
//   - A new like is added to the target's likes inbox and checked for mutuality.
//   - A refill for the actor is requested in every successful case, duplicates included.
//
// Example:
//
//	svc.Like(ctx, 1, 2)
func (s *Service) Like(ctx context.Context, actorID, targetID int64) (Result, error) {
	log := logger.For(ctx, s.log).With("actor_id", actorID, "target_id", targetID)

	res, err := s.apply(ctx, repository.EdgeLike, actorID, targetID, LikeDelta)
	if err != nil {
		return Result{}, err
	}
	defer s.refill.Request(ctx, actorID, refill.ReasonPostLike)

	if res.AlreadyProcessed {
		log.Info("like already processed")
		return res, nil
	}

	if err := s.cache.AddLike(ctx, targetID, actorID); err != nil {
		// the edge is committed; a redelivery would skip this step anyway
		log.Error("failed to add like to inbox", "err", err)
	}

	mutual, err := s.repo.HasEdge(ctx, repository.EdgeLike, targetID, actorID)
	if err != nil {
		log.Error("failed to check mutual like", "err", err)
	}
	res.Mutual = mutual

	log.Info("like recorded", "mutual", mutual)
	return res, nil
}

// Dislike records actor → target and lowers the target's activity score by 0.5.
// Same idempotency and refill rules as Like.
func (s *Service) Dislike(ctx context.Context, actorID, targetID int64) (Result, error) {
	log := logger.For(ctx, s.log).With("actor_id", actorID, "target_id", targetID)

	res, err := s.apply(ctx, repository.EdgeDislike, actorID, targetID, DislikeDelta)
	if err != nil {
		return Result{}, err
	}
	defer s.refill.Request(ctx, actorID, refill.ReasonPostDislike)

	if res.AlreadyProcessed {
		log.Info("dislike already processed")
		return res, nil
	}
	log.Info("dislike recorded")
	return res, nil
}

func (s *Service) apply(
	ctx context.Context,
	kind repository.EdgeKind,
	actorID, targetID int64,
	delta float64,
) (Result, error) {
	if actorID <= 0 {
		return Result{}, apperrors.Invalid("%s has no actor", kind)
	}
	if targetID <= 0 {
		return Result{}, apperrors.Invalid("%s by %d has no target", kind, actorID)
	}
	if actorID == targetID {
		return Result{}, apperrors.Invalid("user %d cannot %s themselves", actorID, kind)
	}

	edge, err := s.repo.RecordEdge(ctx, kind, actorID, targetID, delta)
	if err != nil {
		return Result{}, apperrors.Map(fmt.Errorf("record %s %d -> %d: %w", kind, actorID, targetID, err))
	}
	if edge.Inserted && !edge.RatingUpdated {
		logger.For(ctx, s.log).Warn("target rating not updated, missing row or already at bound", "target_id", targetID)
	}
	return Result{AlreadyProcessed: !edge.Inserted}, nil
}
