package feed_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/oggyb/muzz-matchmaker/internal/app"
	"github.com/oggyb/muzz-matchmaker/internal/broker/mocks"
	"github.com/oggyb/muzz-matchmaker/internal/cache"
	"github.com/oggyb/muzz-matchmaker/internal/config"
	apperrors "github.com/oggyb/muzz-matchmaker/internal/errors"
	"github.com/oggyb/muzz-matchmaker/internal/logger"
	"github.com/oggyb/muzz-matchmaker/internal/message"
	"github.com/oggyb/muzz-matchmaker/internal/metrics"
	"github.com/oggyb/muzz-matchmaker/internal/service/feed"
	"github.com/oggyb/muzz-matchmaker/internal/service/refill"
	"github.com/oggyb/muzz-matchmaker/internal/service/refill/refilltest"
)

type fixture struct {
	svc      *feed.Service
	cache    *cache.RedisCache
	pub      *mocks.MockPublisher
	recorder *refilltest.Recorder
	metrics  *metrics.Metrics
}

func setupService(t *testing.T) fixture {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	rc := cache.NewRedisCache(cfg)

	pub := mocks.NewMockPublisher(gomock.NewController(t))
	rec := &refilltest.Recorder{}
	m := metrics.New(prometheus.NewRegistry())
	appCtx := app.New(cfg, nil, rc, pub, m, logger.Discard())

	return fixture{svc: feed.NewService(appCtx, rec), cache: rc, pub: pub, recorder: rec, metrics: m}
}

func TestNext_RefillsExactlyOnceOnLastPop(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)
	require.NoError(t, f.cache.ReplaceCandidates(ctx, 1, []cache.Candidate{{UserID: 10}, {UserID: 20}, {UserID: 30}}))

	for _, want := range []int64{10, 20} {
		c, err := f.svc.Next(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, want, c.UserID)
		assert.Empty(t, f.recorder.Calls())
	}

	c, err := f.svc.Next(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(30), c.UserID)
	assert.True(t, c.Last)
	assert.Equal(t, []refilltest.Call{{UserID: 1, Reason: refill.ReasonQueueExhausted}}, f.recorder.Calls())
}

func TestNext_EmptyQueue(t *testing.T) {
	f := setupService(t)

	_, err := f.svc.Next(context.Background(), 1)
	assert.ErrorIs(t, err, feed.ErrEmpty)
	assert.Equal(t, []refilltest.Call{{UserID: 1, Reason: refill.ReasonQueueExhausted}}, f.recorder.Calls())
}

func TestSearch_PublishesCandidateReply(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)
	require.NoError(t, f.cache.ReplaceCandidates(ctx, 5, []cache.Candidate{{UserID: 10, FirstName: "Vera"}, {UserID: 20}}))

	f.pub.EXPECT().
		Publish(gomock.Any(), "reply.5", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, msg any) error {
			reply := msg.(message.Reply)
			assert.Equal(t, message.ReplyKindCandidate, reply.Kind)
			assert.Equal(t, int64(10), reply.Candidate.(*cache.Candidate).UserID)
			return nil
		})

	require.NoError(t, f.svc.Search(ctx, 5))
	assert.Empty(t, f.recorder.Calls())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PublishedReplies.WithLabelValues(message.ReplyKindCandidate)))
}

func TestSearch_PublishesPendingWhenEmpty(t *testing.T) {
	f := setupService(t)

	f.pub.EXPECT().
		Publish(gomock.Any(), "reply.5", message.Reply{UserID: 5, Kind: message.ReplyKindPending}).
		Return(nil)

	require.NoError(t, f.svc.Search(context.Background(), 5))
	assert.Len(t, f.recorder.Calls(), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PublishedReplies.WithLabelValues(message.ReplyKindPending)))
}

func TestSearch_BrokerClosedIsTransient(t *testing.T) {
	f := setupService(t)

	f.pub.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(amqp.ErrClosed)

	err := f.svc.Search(context.Background(), 5)
	require.Error(t, err)
	assert.True(t, apperrors.IsTransient(err))
	assert.True(t, errors.Is(err, amqp.ErrClosed))
	assert.Zero(t, testutil.ToFloat64(f.metrics.PublishedReplies.WithLabelValues(message.ReplyKindPending)))
}
