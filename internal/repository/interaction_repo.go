package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/muzz-matchmaker/internal/db"
)

// EdgeKind selects the edge table.
type EdgeKind string

const (
	EdgeLike    EdgeKind = "like"
	EdgeDislike EdgeKind = "dislike"
)

// EdgeResult describes what RecordEdge actually changed.
type EdgeResult struct {
	// Inserted is false when the edge already existed ("already processed").
	Inserted bool
	// RatingUpdated is false when the target has no rating row or the clamp left it unchanged.
	RatingUpdated bool
}

// InteractionRepository provides data access for like/dislike edges and the
// activity part of the target's rating.
type InteractionRepository struct {
	db *gorm.DB
}

// NewInteractionRepository creates a new repository bound to the given DB connection.
func NewInteractionRepository(database *gorm.DB) *InteractionRepository {
	return &InteractionRepository{db: database}
}

// RecordEdge inserts actor → target of the given kind and moves the target's
// activity_score by delta, both inside one transaction.
//
// Behavior:
//   - The insert uses ON CONFLICT DO NOTHING on the unique (actor_id, target_id)
//     index. Zero rows affected means the edge already exists: nothing else is
//     touched and Inserted is false.
//   - The rating update is a single UPDATE clamping the result to [0,10],
//     so concurrent deliveries for the same target never lose a delta.
//   - Any error rolls the whole transaction back.
//
// Example:
//
//	repo.RecordEdge(ctx, repository.EdgeLike, 1, 2, 0.5) // user 1 liked user 2
func (r *InteractionRepository) RecordEdge(
	ctx context.Context,
	kind EdgeKind,
	actorID, targetID int64,
	delta float64,
) (EdgeResult, error) {
	var out EdgeResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var edge any
		switch kind {
		case EdgeLike:
			edge = &db.Like{ActorID: actorID, TargetID: targetID}
		case EdgeDislike:
			edge = &db.Dislike{ActorID: actorID, TargetID: targetID}
		default:
			return fmt.Errorf("unknown edge kind %q", kind)
		}

		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "actor_id"}, {Name: "target_id"}},
			DoNothing: true,
		}).Create(edge)
		if res.Error != nil {
			return fmt.Errorf("insert %s edge: %w", kind, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		out.Inserted = true

		upd := tx.Model(&db.Rating{}).
			Where("user_id = ?", targetID).
			Update("activity_score", clampedActivity(delta))
		if upd.Error != nil {
			return fmt.Errorf("update rating of %d: %w", targetID, upd.Error)
		}
		out.RatingUpdated = upd.RowsAffected > 0
		return nil
	})
	if err != nil {
		return EdgeResult{}, err
	}
	return out, nil
}

// HasEdge checks whether actor → target of the given kind exists.
//
// Example:
//
//	repo.HasEdge(ctx, repository.EdgeLike, 2, 1) // -> true if user 2 liked user 1
func (r *InteractionRepository) HasEdge(
	ctx context.Context,
	kind EdgeKind,
	actorID, targetID int64,
) (bool, error) {
	var model any
	switch kind {
	case EdgeLike:
		model = &db.Like{}
	case EdgeDislike:
		model = &db.Dislike{}
	default:
		return false, fmt.Errorf("unknown edge kind %q", kind)
	}

	var count int64
	err := r.db.WithContext(ctx).
		Model(model).
		Where("actor_id = ? AND target_id = ?", actorID, targetID).
		Count(&count).Error
	return count > 0, err
}

// GetRating loads the rating row of a user.
func (r *InteractionRepository) GetRating(ctx context.Context, userID int64) (*db.Rating, error) {
	var rating db.Rating
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&rating).Error; err != nil {
		return nil, err
	}
	return &rating, nil
}

// clampedActivity builds activity_score + delta limited to [MinScore, MaxScore].
// CASE keeps it portable across postgres, mysql and sqlite.
func clampedActivity(delta float64) clause.Expr {
	return gorm.Expr(
		"CASE WHEN activity_score + ? > ? THEN ? WHEN activity_score + ? < ? THEN ? ELSE activity_score + ? END",
		delta, db.MaxScore, db.MaxScore,
		delta, db.MinScore, db.MinScore,
		delta,
	)
}
