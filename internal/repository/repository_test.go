package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/oggyb/muzz-matchmaker/internal/db"
	"github.com/oggyb/muzz-matchmaker/internal/db/dbtest"
	"github.com/oggyb/muzz-matchmaker/internal/repository"
)

func seedPair(t *testing.T, gdb *gorm.DB) {
	t.Helper()
	dbtest.CreateUser(t, gdb, dbtest.UserSpec{ID: 1, Name: "Anna", Age: 25, Gender: "female", City: "Moscow", ProfileScore: 5})
	dbtest.CreateUser(t, gdb, dbtest.UserSpec{ID: 2, Name: "Boris", Age: 30, Gender: "male", City: "Moscow", ProfileScore: 5, ActivityScore: 9.8})
}

func TestRecordEdge_LikeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	gdb := dbtest.New(t)
	seedPair(t, gdb)
	repo := repository.NewInteractionRepository(gdb)

	first, err := repo.RecordEdge(ctx, repository.EdgeLike, 1, 2, 0.5)
	require.NoError(t, err)
	assert.True(t, first.Inserted)
	assert.True(t, first.RatingUpdated)

	second, err := repo.RecordEdge(ctx, repository.EdgeLike, 1, 2, 0.5)
	require.NoError(t, err)
	assert.False(t, second.Inserted)

	var likes int64
	require.NoError(t, gdb.Model(&db.Like{}).Where("actor_id = 1 AND target_id = 2").Count(&likes).Error)
	assert.Equal(t, int64(1), likes)

	// 9.8 + 0.5 clamps to 10, and the duplicate did not add again
	rating, err := repo.GetRating(ctx, 2)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, rating.ActivityScore, 1e-9)
}

func TestRecordEdge_DislikeClampsAtZero(t *testing.T) {
	ctx := context.Background()
	gdb := dbtest.New(t)
	seedPair(t, gdb)
	repo := repository.NewInteractionRepository(gdb)

	res, err := repo.RecordEdge(ctx, repository.EdgeDislike, 2, 1, -0.5)
	require.NoError(t, err)
	assert.True(t, res.Inserted)

	rating, err := repo.GetRating(ctx, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, rating.ActivityScore, 1e-9)
}

func TestRecordEdge_LikeAndDislikeAreSeparateEdges(t *testing.T) {
	ctx := context.Background()
	gdb := dbtest.New(t)
	seedPair(t, gdb)
	repo := repository.NewInteractionRepository(gdb)

	_, err := repo.RecordEdge(ctx, repository.EdgeLike, 1, 2, 0.5)
	require.NoError(t, err)
	res, err := repo.RecordEdge(ctx, repository.EdgeDislike, 1, 2, -0.5)
	require.NoError(t, err)
	assert.True(t, res.Inserted)

	liked, err := repo.HasEdge(ctx, repository.EdgeLike, 1, 2)
	require.NoError(t, err)
	assert.True(t, liked)

	reverse, err := repo.HasEdge(ctx, repository.EdgeLike, 2, 1)
	require.NoError(t, err)
	assert.False(t, reverse)
}

func TestRecordEdge_MissingRatingStillRecordsEdge(t *testing.T) {
	ctx := context.Background()
	gdb := dbtest.New(t)
	repo := repository.NewInteractionRepository(gdb)

	res, err := repo.RecordEdge(ctx, repository.EdgeLike, 7, 8, 0.5)
	require.NoError(t, err)
	assert.True(t, res.Inserted)
	assert.False(t, res.RatingUpdated)
}

func TestListCandidates_Exclusions(t *testing.T) {
	ctx := context.Background()
	gdb := dbtest.New(t)
	seedPair(t, gdb)
	dbtest.CreateUser(t, gdb, dbtest.UserSpec{ID: 3, Name: "Vera", Age: 28, Gender: "female", ProfileScore: 5})
	dbtest.CreateUser(t, gdb, dbtest.UserSpec{ID: 4, Name: "Gleb", Age: 33, Gender: "male", ProfileScore: 5})

	interactions := repository.NewInteractionRepository(gdb)
	_, err := interactions.RecordEdge(ctx, repository.EdgeLike, 1, 2, 0.5)
	require.NoError(t, err)
	_, err = interactions.RecordEdge(ctx, repository.EdgeDislike, 1, 3, -0.5)
	require.NoError(t, err)
	// someone else's edges do not matter
	_, err = interactions.RecordEdge(ctx, repository.EdgeLike, 3, 4, 0.5)
	require.NoError(t, err)

	rows, err := repository.NewCandidateRepository(gdb).ListCandidates(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(4), rows[0].UserID)
	assert.Equal(t, "Gleb", rows[0].FirstName)
	assert.Equal(t, "4.jpg", rows[0].PhotoURL)
	assert.InDelta(t, 5.5, rows[0].ProfileScore+rows[0].ActivityScore, 1e-9)
}

func TestGetOrCreateCity(t *testing.T) {
	ctx := context.Background()
	gdb := dbtest.New(t)
	repo := repository.NewUserRepository(gdb)

	a, err := repo.GetOrCreateCity(ctx, "Kazan")
	require.NoError(t, err)
	b, err := repo.GetOrCreateCity(ctx, " Kazan ")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)

	def, err := repo.GetOrCreateCity(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, db.DefaultCityName, def.Name)

	var count int64
	require.NoError(t, gdb.Model(&db.City{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestSaveRegistration_CreateThenUpdate(t *testing.T) {
	ctx := context.Background()
	gdb := dbtest.New(t)
	repo := repository.NewUserRepository(gdb)

	username := "@anna"
	created, err := repo.SaveRegistration(ctx,
		&db.User{ID: 10, FirstName: "Anna", Age: 25, Gender: "female", Username: &username},
		&db.Profile{Bio: "hi"},
		"Kazan",
	)
	require.NoError(t, err)
	assert.True(t, created)

	var rating db.Rating
	require.NoError(t, gdb.Where("user_id = ?", 10).First(&rating).Error)
	assert.Equal(t, db.DefaultProfileScore, rating.ProfileScore)
	assert.Equal(t, 0.0, rating.ActivityScore)

	created, err = repo.SaveRegistration(ctx,
		&db.User{ID: 10, FirstName: "Anya", Age: 26, Gender: "female"},
		&db.Profile{Bio: "updated"},
		"",
	)
	require.NoError(t, err)
	assert.False(t, created)

	u, err := repo.GetUser(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "Anya", u.FirstName)
	assert.Equal(t, 26, u.Age)

	p, err := repo.GetProfile(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "updated", p.Bio)

	var ratings int64
	require.NoError(t, gdb.Model(&db.Rating{}).Where("user_id = ?", 10).Count(&ratings).Error)
	assert.Equal(t, int64(1), ratings)
}

func TestUpdateColumns_NotFound(t *testing.T) {
	ctx := context.Background()
	gdb := dbtest.New(t)
	repo := repository.NewUserRepository(gdb)

	err := repo.UpdateUserColumns(ctx, 404, map[string]any{"age": 30})
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	err = repo.UpdateProfileColumns(ctx, 404, map[string]any{"bio": "x"})
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestFileRepository(t *testing.T) {
	ctx := context.Background()
	gdb := dbtest.New(t)
	repo := repository.NewFileRepository(gdb)

	require.NoError(t, repo.Create(ctx, &db.FileRecord{UserID: 1, FileName: "a.pdf", FilePath: "1_a.pdf", FileExtension: ".pdf"}))
	require.NoError(t, repo.Create(ctx, &db.FileRecord{UserID: 1, FileName: "b.jpg", FilePath: "1_b.jpg", FileExtension: ".jpg"}))
	require.NoError(t, repo.Create(ctx, &db.FileRecord{UserID: 2, FileName: "c.txt", FilePath: "2_c.txt", FileExtension: ".txt"}))

	files, err := repo.ListByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.pdf", files[0].FileName)
	assert.Equal(t, "b.jpg", files[1].FileName)
}
