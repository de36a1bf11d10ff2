package dispatch

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/minishop-payment/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-payment/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-payment/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-payment/internal/observability"
	"github.com/Zhima-Mochi/minishop-payment/internal/observability/logctx"
	workerpresentation "github.com/Zhima-Mochi/minishop-payment/internal/presentation/worker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	dispatchWorker  = "dispatch_worker"
	useCaseDispatch = "dispatch.order_paid"
)

// Worker consumes paid orders from the in-memory broker and hands them to shipping.
// It stands in for the external dispatch service when no message queue is configured.
type Worker struct {
	subscriber outbox.Subscriber
	tel        observability.Observability

	log          observability.Logger
	reqCounter   observability.Counter        // usecase_requests_total{use_case,outcome}
	durHistogram observability.BoundHistogram // usecase_duration_seconds{use_case="dispatch.order_paid"}
}

func New(subscriber outbox.Subscriber, tel observability.Observability) *Worker {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Worker{
		subscriber: subscriber,
		tel:        tel,
		log:        tel.Logger().With(observability.F("component", dispatchWorker)),
		reqCounter: tel.Metrics().Counter(observability.MUsecaseRequests),
		durHistogram: tel.Metrics().Histogram(observability.MUsecaseDuration).Bind(
			observability.L("use_case", useCaseDispatch),
		),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil {
		return
	}
	w.subscriber.Subscribe(order.PaidEventName, w.handleOrderPaid)
}

func (w *Worker) handleOrderPaid(ctx context.Context, e outbox.Event, h outbox.Headers) error {
	evt, ok := e.(order.OrderPaid)
	if !ok {
		return nil
	}

	ctx = workerpresentation.ExtractTrace(ctx, h)
	ctx, span := w.tel.Tracer().Start(ctx, "Worker.DispatchOrder",
		attribute.String("use_case", useCaseDispatch),
		attribute.String("order.id", evt.ID),
	)
	defer span.End()

	ctx = workerpresentation.WithEventContext(ctx, w.log, map[string]string{
		"event_id": evt.ID,
		"event":    e.EventName(),
		"use_case": useCaseDispatch,
	})
	logger := logctx.FromOr(ctx, w.log)

	start := time.Now()
	defer func() {
		w.durHistogram.Observe(time.Since(start).Seconds())
	}()

	if evt.ID == "" || !evt.Cart.HasShipping() {
		w.reqCounter.Add(1,
			observability.L("use_case", useCaseDispatch),
			observability.L("outcome", "rejected"),
		)
		span.SetStatus(codes.Error, "ORDER_MALFORMED")
		logger.Warn("order_dispatch_skipped",
			observability.F("order_id", evt.ID),
			observability.F("has_shipping", evt.Cart.HasShipping()),
		)
		return nil
	}

	w.reqCounter.Add(1,
		observability.L("use_case", useCaseDispatch),
		observability.L("outcome", "success"),
	)
	span.SetStatus(codes.Ok, "OK")
	logger.Info("order_dispatched",
		observability.F("order_id", evt.ID),
		observability.F("user", evt.User),
		observability.F("units", cart.MerchandiseCount(evt.Cart.Items)),
		observability.F("total", evt.Cart.Total.String()),
	)
	return nil
}
