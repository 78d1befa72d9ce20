package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/oggyb/muzz-matchmaker/internal/app"
	"github.com/oggyb/muzz-matchmaker/internal/broker"
	"github.com/oggyb/muzz-matchmaker/internal/cache"
	apperrors "github.com/oggyb/muzz-matchmaker/internal/errors"
	"github.com/oggyb/muzz-matchmaker/internal/logger"
	"github.com/oggyb/muzz-matchmaker/internal/message"
	"github.com/oggyb/muzz-matchmaker/internal/metrics"
	"github.com/oggyb/muzz-matchmaker/internal/service/refill"
)

// ErrEmpty means the user has no queued candidates; a refill has been requested.
var ErrEmpty = cache.ErrEmpty

// Service hands out queued candidates one at a time.
type Service struct {
	cache       *cache.RedisCache
	refill      refill.Scheduler
	pub         broker.Publisher
	replyPrefix string
	metrics     *metrics.Metrics
	log         *slog.Logger
}

func NewService(appCtx *app.AppContext, scheduler refill.Scheduler) *Service {
	return &Service{
		cache:       appCtx.RedisCache,
		refill:      scheduler,
		pub:         appCtx.Publisher,
		replyPrefix: appCtx.Config.Broker.ReplyPrefix,
		metrics:     appCtx.Metrics,
		log:         appCtx.Logger.With("component", "feed"),
	}
}

// Next pops the next candidate for userID.
//
// Behavior:
//   - Empty queue: requests a refill and returns ErrEmpty.
//   - The pop that empties the queue requests a refill before returning the
//     candidate, so the next call usually finds a fresh queue.
func (s *Service) Next(ctx context.Context, userID int64) (*cache.Candidate, error) {
	log := logger.For(ctx, s.log).With("user_id", userID)

	cand, err := s.cache.PopCandidate(ctx, userID)
	if errors.Is(err, cache.ErrEmpty) {
		s.refill.Request(ctx, userID, refill.ReasonQueueExhausted)
		log.Info("candidate queue empty, refill requested")
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, apperrors.Transient(fmt.Errorf("pop candidate for %d: %w", userID, err))
	}

	if cand.Last {
		s.refill.Request(ctx, userID, refill.ReasonQueueExhausted)
		log.Debug("last candidate served, refill requested")
	}
	return cand, nil
}

// Search serves the next candidate to the user through a reply message:
// a candidate reply, or a pending reply when the queue is being refilled.
func (s *Service) Search(ctx context.Context, userID int64) error {
	reply := message.Reply{UserID: userID, Kind: message.ReplyKindCandidate}

	cand, err := s.Next(ctx, userID)
	switch {
	case errors.Is(err, ErrEmpty):
		reply.Kind = message.ReplyKindPending
	case err != nil:
		return err
	default:
		reply.Candidate = cand
	}

	key := s.ReplyKey(userID)
	if err := s.pub.Publish(ctx, key, reply); err != nil {
		return apperrors.Map(fmt.Errorf("publish %s reply to %s: %w", reply.Kind, key, err))
	}
	s.metrics.PublishedReplies.WithLabelValues(reply.Kind).Inc()
	return nil
}

// ReplyKey is the routing key replies for userID are published under.
func (s *Service) ReplyKey(userID int64) string {
	return fmt.Sprintf("%s.%d", s.replyPrefix, userID)
}
