package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/muzz-matchmaker/internal/db"
)

// CandidateRow is the denormalized profile + rating row the scoring engine ranks.
type CandidateRow struct {
	UserID        int64
	FirstName     string
	Age           int
	Gender        string
	CityID        *uint64
	Bio           string
	PhotoURL      string
	ProfileScore  float64
	ActivityScore float64
}

// CandidateRepository reads the candidate pool for the scoring engine.
type CandidateRepository struct {
	db *gorm.DB
}

// NewCandidateRepository creates a new repository bound to the given DB connection.
func NewCandidateRepository(database *gorm.DB) *CandidateRepository {
	return &CandidateRepository{db: database}
}

// ListCandidates returns every profile the requester may still be shown.
//
// Behavior:
//   - Joins profiles → users → ratings (users without a rating are skipped).
//   - Excludes the requester.
//   - Excludes anyone the requester already liked or disliked.
//   - No ordering: ranking happens in the scoring engine.
//
// Example:
//
//	repo.ListCandidates(ctx, 42)
func (r *CandidateRepository) ListCandidates(ctx context.Context, requesterID int64) ([]CandidateRow, error) {
	liked := r.db.Model(&db.Like{}).Select("target_id").Where("actor_id = ?", requesterID)
	disliked := r.db.Model(&db.Dislike{}).Select("target_id").Where("actor_id = ?", requesterID)

	var rows []CandidateRow
	err := r.db.WithContext(ctx).
		Table("profiles p").
		Select(`u.id AS user_id, u.first_name, u.age, u.gender, u.city_id,
			p.bio, p.photo_url, r.profile_score, r.activity_score`).
		Joins("JOIN users u ON u.id = p.user_id").
		Joins("JOIN ratings r ON r.user_id = u.id").
		Where("p.user_id <> ?", requesterID).
		Where("p.user_id NOT IN (?)", liked).
		Where("p.user_id NOT IN (?)", disliked).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
