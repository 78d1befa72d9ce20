// Package dispatcher consumes broker deliveries, routes them to the services
// and settles each delivery with an ack or a nack.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"github.com/oggyb/muzz-matchmaker/internal/app"
	apperrors "github.com/oggyb/muzz-matchmaker/internal/errors"
	"github.com/oggyb/muzz-matchmaker/internal/logger"
	"github.com/oggyb/muzz-matchmaker/internal/message"
	"github.com/oggyb/muzz-matchmaker/internal/metrics"
)

// ErrDeliveriesClosed is returned by Run when the broker stops delivering,
// usually because the connection or channel went away.
var ErrDeliveriesClosed = errors.New("delivery channel closed")

const unknownKind = "unknown"

// Dispatcher decodes and routes deliveries.
type Dispatcher struct {
	routes  map[message.Kind]HandlerFunc
	metrics *metrics.Metrics
	log     *slog.Logger
}

func New(appCtx *app.AppContext, routes map[message.Kind]HandlerFunc) *Dispatcher {
	return &Dispatcher{
		routes:  routes,
		metrics: appCtx.Metrics,
		log:     appCtx.Logger.With("component", "dispatcher"),
	}
}

// Run starts workers that handle deliveries until ctx is cancelled or the
// delivery channel closes. A delivery already being handled runs to completion.
func (d *Dispatcher) Run(ctx context.Context, deliveries <-chan amqp.Delivery, workers int) error {
	if workers <= 0 {
		workers = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case dlv, ok := <-deliveries:
					if !ok {
						return ErrDeliveriesClosed
					}
					d.Handle(context.WithoutCancel(ctx), dlv)
				}
			}
		})
	}
	return g.Wait()
}

// Handle processes one delivery and settles it.
//
// Behavior:
//   - Correlation id comes from the delivery, or is generated.
//   - Decode, validation and not-found errors are logged and acked.
//   - Transient infrastructure errors are nacked with requeue.
//   - Any other handler error is logged and acked.
//   - A panic is nacked with requeue on first delivery and without requeue
//     once redelivered, so a poison message is dead-lettered by the broker.
func (d *Dispatcher) Handle(ctx context.Context, dlv amqp.Delivery) {
	d.metrics.Received.Inc()

	id := dlv.CorrelationId
	if id == "" {
		id = uuid.NewString()
	}
	ctx = logger.WithCorrelationID(ctx, id)
	log := logger.For(ctx, d.log)

	start := time.Now()
	kind := unknownKind

	defer func() {
		if r := recover(); r != nil {
			requeue := !dlv.Redelivered
			log.Error("handler panicked", "kind", kind, "panic", r, "requeue", requeue)
			d.metrics.Handled.WithLabelValues(kind, metrics.OutcomePanic).Inc()
			if err := dlv.Nack(false, requeue); err != nil {
				log.Error("failed to nack delivery", "err", err)
			}
		}
	}()

	env, err := message.Decode(dlv.ContentType, dlv.Body)
	if err != nil {
		d.settle(log, dlv, kind, err)
		return
	}
	kind = string(env.Kind)

	handler, ok := d.routes[env.Kind]
	if !ok {
		d.settle(log, dlv, kind, apperrors.Invalid("no handler for %s", env.Kind))
		return
	}

	err = handler(ctx, env.Payload)
	d.metrics.ObserveSince(kind, start)
	d.settle(log, dlv, kind, err)
}

func (d *Dispatcher) settle(log *slog.Logger, dlv amqp.Delivery, kind string, err error) {
	err = apperrors.Map(err)

	outcome := metrics.OutcomeOK
	switch {
	case err == nil:
		log.Debug("message handled", "kind", kind)
	case errors.Is(err, apperrors.ErrTransient):
		outcome = metrics.OutcomeRetry
		log.Warn("transient failure, requeueing", "kind", kind, "err", err)
	case errors.Is(err, apperrors.ErrDecode):
		outcome = metrics.OutcomeDecode
		log.Error("failed to decode message", "err", err, "content_type", dlv.ContentType, "routing_key", dlv.RoutingKey)
	case errors.Is(err, apperrors.ErrInvalid):
		outcome = metrics.OutcomeInvalid
		log.Warn("invalid message", "kind", kind, "err", err)
	case errors.Is(err, apperrors.ErrNotFound):
		outcome = metrics.OutcomeNotFound
		log.Error("referenced record not found", "kind", kind, "err", err)
	default:
		outcome = metrics.OutcomeFailed
		log.Error("error processing message", "kind", kind, "err", err)
	}
	d.metrics.Handled.WithLabelValues(kind, outcome).Inc()

	if outcome == metrics.OutcomeRetry {
		if nerr := dlv.Nack(false, true); nerr != nil {
			log.Error("failed to nack delivery", "err", nerr)
		}
		return
	}
	if aerr := dlv.Ack(false); aerr != nil {
		log.Error("failed to ack delivery", "err", fmt.Errorf("delivery %d: %w", dlv.DeliveryTag, aerr))
	}
}
