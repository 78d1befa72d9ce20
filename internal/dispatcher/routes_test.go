package dispatcher_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"gorm.io/gorm"

	"github.com/oggyb/muzz-matchmaker/internal/app"
	"github.com/oggyb/muzz-matchmaker/internal/broker/mocks"
	"github.com/oggyb/muzz-matchmaker/internal/cache"
	"github.com/oggyb/muzz-matchmaker/internal/config"
	"github.com/oggyb/muzz-matchmaker/internal/db"
	"github.com/oggyb/muzz-matchmaker/internal/db/dbtest"
	"github.com/oggyb/muzz-matchmaker/internal/dispatcher"
	"github.com/oggyb/muzz-matchmaker/internal/logger"
	"github.com/oggyb/muzz-matchmaker/internal/message"
	"github.com/oggyb/muzz-matchmaker/internal/metrics"
	"github.com/oggyb/muzz-matchmaker/internal/service/feed"
	"github.com/oggyb/muzz-matchmaker/internal/service/files"
	"github.com/oggyb/muzz-matchmaker/internal/service/interaction"
	"github.com/oggyb/muzz-matchmaker/internal/service/refill"
	"github.com/oggyb/muzz-matchmaker/internal/service/refill/refilltest"
	"github.com/oggyb/muzz-matchmaker/internal/service/registration"
	"github.com/oggyb/muzz-matchmaker/internal/service/scoring"
)

type pipeline struct {
	dispatcher *dispatcher.Dispatcher
	db         *gorm.DB
	cache      *cache.RedisCache
	pub        *mocks.MockPublisher
	recorder   *refilltest.Recorder
	metrics    *metrics.Metrics
}

// setupPipeline wires every service behind the dispatcher the way cmd/consumer does,
// with sqlite, miniredis, a mocked publisher and a recording refill scheduler.
func setupPipeline(t *testing.T) pipeline {
	t.Helper()

	gdb := dbtest.New(t)
	dbtest.CreateUser(t, gdb, dbtest.UserSpec{ID: 1, Name: "Anna", Age: 25, Gender: "female", City: "Kazan", PreferredGender: "male", ProfileScore: 5})
	dbtest.CreateUser(t, gdb, dbtest.UserSpec{ID: 2, Name: "Boris", Age: 30, Gender: "male", City: "Kazan", ProfileScore: 5})
	dbtest.CreateUser(t, gdb, dbtest.UserSpec{ID: 3, Name: "Gleb", Age: 31, Gender: "male", City: "Omsk", ProfileScore: 5})

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	rc := cache.NewRedisCache(cfg)

	pub := mocks.NewMockPublisher(gomock.NewController(t))
	m := metrics.New(prometheus.NewRegistry())
	appCtx := app.New(cfg, gdb, rc, pub, m, logger.Discard())

	rec := &refilltest.Recorder{}
	services := dispatcher.Services{
		Interactions: interaction.NewService(appCtx, rec),
		Feed:         feed.NewService(appCtx, rec),
		Registration: registration.NewService(appCtx, rec),
		Files:        files.NewService(appCtx),
		Scoring:      scoring.NewEngine(appCtx),
	}

	return pipeline{
		dispatcher: dispatcher.New(appCtx, services.Routes()),
		db:         gdb,
		cache:      rc,
		pub:        pub,
		recorder:   rec,
		metrics:    m,
	}
}

func (p pipeline) send(t *testing.T, payload any) *fakeAck {
	t.Helper()
	ack := &fakeAck{}
	p.dispatcher.Handle(context.Background(), delivery(t, ack, 1, payload))
	return ack
}

func TestPipeline_LikeThenRefillThenSearch(t *testing.T) {
	p := setupPipeline(t)

	ack := p.send(t, map[string]any{"user_id": 1, "action": "like", "target_user_id": 3})
	assert.Equal(t, []uint64{1}, ack.acked)
	assert.Equal(t, []refilltest.Call{{UserID: 1, Reason: refill.ReasonPostLike}}, p.recorder.Calls())

	ack = p.send(t, message.RefillRequest{UserID: 1, Action: message.ActionUpdateProfileKV, RequestType: "like"})
	assert.Equal(t, []uint64{1}, ack.acked)

	n, err := p.cache.PeekCount(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "user 3 is liked already, only user 2 is left")

	p.pub.EXPECT().
		Publish(gomock.Any(), "reply.1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, msg any) error {
			reply := msg.(message.Reply)
			assert.Equal(t, message.ReplyKindCandidate, reply.Kind)
			assert.Equal(t, int64(2), reply.Candidate.(*cache.Candidate).UserID)
			return nil
		})

	ack = p.send(t, map[string]any{"user_id": 1, "action": "search"})
	assert.Equal(t, []uint64{1}, ack.acked)

	// that was the last candidate
	calls := p.recorder.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, refill.ReasonQueueExhausted, calls[1].Reason)
}

func TestPipeline_RegistrationAndFieldUpdate(t *testing.T) {
	p := setupPipeline(t)

	ack := p.send(t, map[string]any{
		"user":    map[string]any{"user_id": 50, "first_name": "Dina", "username": "dina", "age": 22},
		"profile": map[string]any{"user_id": 50},
		"action":  "user_registration",
	})
	assert.Equal(t, []uint64{1}, ack.acked)

	var u db.User
	require.NoError(t, p.db.First(&u, "id = ?", 50).Error)
	assert.Equal(t, "@dina", *u.Username)

	ack = p.send(t, map[string]any{"user_id": 50, "field": "preferred_gender", "value": "male"})
	assert.Equal(t, []uint64{1}, ack.acked)

	assert.Equal(t, []refilltest.Call{
		{UserID: 50, Reason: refill.ReasonInitial},
		{UserID: 50, Reason: refill.ReasonPreferencesChanged},
	}, p.recorder.Calls())
}

func TestPipeline_FileUpload(t *testing.T) {
	p := setupPipeline(t)

	ack := p.send(t, map[string]any{"user_id": 2, "action": "upload_file", "file_name": "cv.pdf"})
	assert.Equal(t, []uint64{1}, ack.acked)

	var rec db.FileRecord
	require.NoError(t, p.db.Where("user_id = ?", 2).First(&rec).Error)
	assert.Equal(t, "2_cv.pdf", rec.FilePath)
}

func TestPipeline_InvalidMessagesAreAcked(t *testing.T) {
	p := setupPipeline(t)

	for _, payload := range []map[string]any{
		{"user_id": 1, "action": "like"},
		{"user_id": 1, "action": "upload_file"},
		{"user_id": 1, "field": "shoe_size", "value": 42},
	} {
		ack := p.send(t, payload)
		assert.Equal(t, []uint64{1}, ack.acked)
		assert.Empty(t, ack.nacked)
	}

	invalid := testutil.ToFloat64(p.metrics.Handled.WithLabelValues("interaction", metrics.OutcomeInvalid)) +
		testutil.ToFloat64(p.metrics.Handled.WithLabelValues("file_operation", metrics.OutcomeInvalid)) +
		testutil.ToFloat64(p.metrics.Handled.WithLabelValues("field_update", metrics.OutcomeInvalid))
	assert.Equal(t, 3.0, invalid)
	assert.Empty(t, p.recorder.Calls())
}

func TestPipeline_StoreOutageIsRequeued(t *testing.T) {
	p := setupPipeline(t)

	sqlDB, err := p.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	ack := p.send(t, map[string]any{"user_id": 1, "action": "like", "target_user_id": 2})
	assert.Empty(t, ack.acked)
	assert.Equal(t, []uint64{1}, ack.nacked)
	assert.Equal(t, []bool{true}, ack.requeue)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.Handled.WithLabelValues("interaction", metrics.OutcomeRetry)))
	assert.Empty(t, p.recorder.Calls(), "nothing was recorded, the redelivery refills")
}
