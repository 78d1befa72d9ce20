package refill

import (
	"context"
	"log/slog"
	"time"

	"github.com/oggyb/muzz-matchmaker/internal/app"
	"github.com/oggyb/muzz-matchmaker/internal/broker"
	"github.com/oggyb/muzz-matchmaker/internal/logger"
	"github.com/oggyb/muzz-matchmaker/internal/message"
	"github.com/oggyb/muzz-matchmaker/internal/metrics"
)

// Reason is why a user's candidate queue needs recomputing.
type Reason string

const (
	ReasonInitial            Reason = "initial"
	ReasonPostLike           Reason = "post_like"
	ReasonPostDislike        Reason = "post_dislike"
	ReasonQueueExhausted     Reason = "queue_exhausted"
	ReasonPreferencesChanged Reason = "preferences_changed"
)

// RequestType maps the reason onto the wire request_type.
func (r Reason) RequestType() string {
	switch r {
	case ReasonPostLike:
		return message.RequestTypeLike
	case ReasonPostDislike:
		return message.RequestTypeDislike
	default:
		return message.RequestTypeSearch
	}
}

// Scheduler is what services use to ask for a refill.
type Scheduler interface {
	Request(ctx context.Context, userID int64, reason Reason) bool
}

// drainTimeout bounds how long Run keeps publishing queued requests after shutdown.
const drainTimeout = 5 * time.Second

type request struct {
	correlationID string
	userID        int64
	reason        Reason
}

// Requester publishes refill requests in the background.
// Request never blocks the caller; Run does the publishing.
type Requester struct {
	pub        broker.Publisher
	routingKey string
	queue      chan request
	metrics    *metrics.Metrics
	log        *slog.Logger
}

func NewRequester(appCtx *app.AppContext) *Requester {
	size := appCtx.Config.Queue.RefillBuffer
	if size <= 0 {
		size = 1
	}
	return &Requester{
		pub:        appCtx.Publisher,
		routingKey: appCtx.Config.Broker.RefillKey,
		queue:      make(chan request, size),
		metrics:    appCtx.Metrics,
		log:        appCtx.Logger.With("component", "refill"),
	}
}

// Request enqueues a refill for userID. Returns false when the buffer is full
// and the request was dropped; the next trigger for the user will retry.
func (r *Requester) Request(ctx context.Context, userID int64, reason Reason) bool {
	req := request{correlationID: logger.CorrelationID(ctx), userID: userID, reason: reason}
	select {
	case r.queue <- req:
		r.metrics.RefillRequests.WithLabelValues(string(reason), "queued").Inc()
		return true
	default:
		r.metrics.RefillRequests.WithLabelValues(string(reason), "dropped").Inc()
		logger.For(ctx, r.log).Warn("refill buffer full, request dropped", "user_id", userID, "reason", reason)
		return false
	}
}

// Run publishes queued requests until ctx is cancelled, then drains what is
// left for at most drainTimeout.
func (r *Requester) Run(ctx context.Context) error {
	for {
		select {
		case req := <-r.queue:
			r.publish(ctx, req)
		case <-ctx.Done():
			r.drain()
			return nil
		}
	}
}

func (r *Requester) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case req := <-r.queue:
			r.publish(ctx, req)
		default:
			return
		}
	}
}

func (r *Requester) publish(ctx context.Context, req request) {
	ctx = logger.WithCorrelationID(ctx, req.correlationID)
	log := logger.For(ctx, r.log)

	msg := message.RefillRequest{
		UserID:      req.userID,
		Action:      message.ActionUpdateProfileKV,
		RequestType: req.reason.RequestType(),
		Reason:      string(req.reason),
	}
	if err := r.pub.Publish(ctx, r.routingKey, msg); err != nil {
		r.metrics.RefillRequests.WithLabelValues(string(req.reason), "failed").Inc()
		log.Error("failed to publish refill request", "user_id", req.userID, "reason", req.reason, "err", err)
		return
	}
	r.metrics.RefillRequests.WithLabelValues(string(req.reason), "published").Inc()
	log.Debug("refill request published", "user_id", req.userID, "reason", req.reason)
}
