package payment

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Zhima-Mochi/minishop-payment/internal/application"
	"github.com/Zhima-Mochi/minishop-payment/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-payment/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-payment/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-payment/internal/domain/user"
	"github.com/Zhima-Mochi/minishop-payment/internal/observability"
	"github.com/Zhima-Mochi/minishop-payment/internal/observability/logctx"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	paymentService = "payment-service"
	useCasePay     = "payment.pay"
	paySpanName    = "Pay"
	spanPrefix     = "UC."

	peerUser    = "user"
	peerCart    = "cart"
	peerGateway = "gateway"
	peerQueue   = "queue"
)

// Deps are the collaborators of the pay flow. PublishDelay pauses before every publish.
type Deps struct {
	Users        UserDirectory
	Carts        CartStore
	Gateway      Gateway
	Publisher    outbox.Publisher
	Sales        SalesRecorder
	IDs          IDGenerator
	PublishDelay time.Duration
}

type PayInput struct {
	Identity string
	Cart     cart.Cart
}

type PayResult struct {
	OrderID string `json:"orderid"`
}

// PayUseCase runs the checkout payment pipeline. Every step runs strictly in order and the
// first failure ends the request; completed side effects are never rolled back.
type PayUseCase struct {
	deps Deps
	tel  observability.Observability

	log          observability.Logger
	reqCounter   observability.Counter        // usecase_requests_total{use_case,outcome}
	durHistogram observability.BoundHistogram // usecase_duration_seconds{use_case="payment.pay"}

	external map[externalCall]externalInstruments
}

// externalCall identifies one collaborator endpoint used by the pay flow.
type externalCall struct{ peer, endpoint string }

var (
	callUserCheck    = externalCall{peerUser, "check"}
	callGateway      = externalCall{peerGateway, "authorize"}
	callPublish      = externalCall{peerQueue, order.PaidEventName}
	callOrderHistory = externalCall{peerUser, "order"}
	callCartDelete   = externalCall{peerCart, "delete"}

	externalCalls = []externalCall{callUserCheck, callGateway, callPublish, callOrderHistory, callCartDelete}
	callOutcomes  = []string{"success", "rejected", "error"}
)

// externalInstruments are bound once per endpoint so the hot path does no label lookups.
type externalInstruments struct {
	outcomes map[string]observability.BoundCounter // external_requests_total{peer,endpoint,outcome}
	latency  observability.BoundHistogram          // external_request_duration_seconds{peer,endpoint}
}

var _ application.UseCase[PayInput, *PayResult] = (*PayUseCase)(nil)

func NewPayUseCase(deps Deps, tel observability.Observability) *PayUseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	metrics := tel.Metrics()

	extCounter := metrics.Counter(observability.MExternalRequests)
	extHistogram := metrics.Histogram(observability.MExternalRequestDuration)
	external := make(map[externalCall]externalInstruments, len(externalCalls))
	for _, call := range externalCalls {
		peer, endpoint := observability.L("peer", call.peer), observability.L("endpoint", call.endpoint)
		inst := externalInstruments{
			outcomes: make(map[string]observability.BoundCounter, len(callOutcomes)),
			latency:  extHistogram.Bind(peer, endpoint),
		}
		for _, o := range callOutcomes {
			inst.outcomes[o] = extCounter.Bind(peer, endpoint, observability.L("outcome", o))
		}
		external[call] = inst
	}

	return &PayUseCase{
		deps: deps,
		tel:  tel,
		log: tel.Logger().With(
			observability.F("service", paymentService),
		),
		reqCounter: metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration).Bind(
			observability.L("use_case", useCasePay),
		),
		external: external,
	}
}

// Execute pays for the cart of cmd.Identity and returns the new order id.
func (uc *PayUseCase) Execute(ctx context.Context, cmd PayInput) (_ *PayResult, err error) {
	// Adapters below the use case log through the context, so they inherit these fields.
	ctx = logctx.Enrich(ctx, uc.log,
		observability.F("use_case", useCasePay),
		observability.F("identity", cmd.Identity),
	)
	logger := logctx.From(ctx)

	ctx, span := uc.tel.Tracer().Start(ctx, spanPrefix+paySpanName,
		attribute.String("use_case", useCasePay),
		attribute.String("user.identity", cmd.Identity),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	var orderID string
	classification := user.Anonymous

	defer func() {
		lat := time.Since(start).Seconds()

		if span != nil {
			span.SetAttributes(attribute.String("user.classification", classification.String()))
			if orderID != "" {
				span.SetAttributes(attribute.String("order.id", orderID))
			}
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, statusText)
			} else {
				span.SetStatus(codes.Ok, statusText)
			}
			span.End()
		}

		uc.reqCounter.Add(1,
			observability.L("use_case", useCasePay),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
			observability.F("user", classification.String()),
		}
		if orderID != "" {
			fields = append(fields, observability.F("order_id", orderID))
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	logger.Info("payment_start",
		observability.F("items", len(cmd.Cart.Items)),
		observability.F("total", cmd.Cart.Total.String()),
	)

	// 1. identity
	callStart := time.Now()
	classification, err = uc.deps.Users.Classify(ctx, cmd.Identity)
	uc.observeExternal(callUserCheck, callStart, err, http.StatusOK)
	if err != nil {
		outcome, statusText = "error", "USER_CHECK_FAILED"
		classification = user.Anonymous
		logger.Error("user_check_failed", observability.F("error", err.Error()))
		return nil, &TransportError{Step: StepUserCheck, Err: err}
	}
	span.AddEvent("payment.user_classified",
		trace.WithAttributes(attribute.String("user.classification", classification.String())),
	)

	// 2. cart
	if !cmd.Cart.Valid() {
		outcome, statusText = "rejected", "CART_INVALID"
		logger.Warn("cart_invalid",
			observability.F("total", cmd.Cart.Total.String()),
			observability.F("has_shipping", cmd.Cart.HasShipping()),
		)
		return nil, ErrCartInvalid
	}

	// 3. gateway
	callStart = time.Now()
	status, err := uc.deps.Gateway.Authorize(ctx)
	uc.observeExternal(callGateway, callStart, err, status)
	if err != nil {
		outcome, statusText = "error", "GATEWAY_UNREACHABLE"
		logger.Error("payment_gateway_failed", observability.F("error", err.Error()))
		return nil, &TransportError{Step: StepGateway, Err: err}
	}
	logger.Info("payment_gateway_returned", observability.F("status_code", status))
	if status != http.StatusOK {
		outcome, statusText = "rejected", "PAYMENT_REJECTED"
		return nil, &RejectionError{Step: StepGateway, Status: status, Message: MsgPaymentError}
	}
	span.AddEvent("payment.authorized")

	// 4. sales metrics
	units := cart.MerchandiseCount(cmd.Cart.Items)
	if err = uc.deps.Sales.RecordSale(units, cmd.Cart.Total); err != nil {
		outcome, statusText = "error", "SALES_METRICS_FAILED"
		logger.Error("sales_metrics_failed",
			observability.F("units", units),
			observability.F("total", cmd.Cart.Total.String()),
			observability.F("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %w", ErrSales, err)
	}

	// 5. order id + publish
	orderID = uc.deps.IDs.NewID()
	entity := order.New(orderID, cmd.Identity, cmd.Cart)
	if err = uc.publish(ctx, logger, entity); err != nil {
		outcome, statusText = "error", "ORDER_PUBLISH_FAILED"
		return nil, err
	}
	span.AddEvent("order.published",
		trace.WithAttributes(attribute.String("order.id", orderID)),
	)

	// 6. history, known users only
	if classification == user.Known {
		callStart = time.Now()
		status, err = uc.deps.Users.RecordOrder(ctx, cmd.Identity, entity.History())
		uc.observeExternal(callOrderHistory, callStart, err, status)
		if err != nil {
			outcome, statusText = "error", "ORDER_HISTORY_FAILED"
			logger.Error("order_history_failed", observability.F("error", err.Error()))
			return nil, &TransportError{Step: StepOrderHistory, Err: err}
		}
		logger.Info("order_history_returned", observability.F("status_code", status))
	}

	// 7. cart deletion
	callStart = time.Now()
	status, err = uc.deps.Carts.Delete(ctx, cmd.Identity)
	uc.observeExternal(callCartDelete, callStart, err, status)
	if err != nil {
		outcome, statusText = "error", "CART_DELETE_FAILED"
		logger.Error("cart_delete_failed", observability.F("error", err.Error()))
		return nil, &TransportError{Step: StepCartDelete, Err: err}
	}
	logger.Info("cart_delete_returned", observability.F("status_code", status))
	if status != http.StatusOK {
		outcome, statusText = "rejected", "CART_DELETE_REJECTED"
		return nil, &RejectionError{Step: StepCartDelete, Status: status, Message: MsgCartDeleteError}
	}

	return &PayResult{OrderID: orderID}, nil
}

// publish waits out the configured delay and hands the order to the queue. The delay only
// parks the calling goroutine.
func (uc *PayUseCase) publish(ctx context.Context, logger observability.Logger, o order.Order) error {
	logger.Info("queue_order", observability.F("order_id", o.ID))

	if d := uc.deps.PublishDelay; d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", ErrPublish, ctx.Err())
		}
	}

	headers := outbox.Headers{}
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(headers))

	pubStart := time.Now()
	err := uc.deps.Publisher.Publish(ctx, order.NewPaidEvent(o), headers)
	uc.observeExternal(callPublish, pubStart, err, http.StatusOK)
	if err != nil {
		logger.Error("order_publish_failed",
			observability.F("order_id", o.ID),
			observability.F("error", err.Error()),
		)
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}
	return nil
}

func (uc *PayUseCase) observeExternal(call externalCall, start time.Time, err error, status int) {
	outcome := "success"
	switch {
	case err != nil:
		outcome = "error"
	case status != http.StatusOK:
		outcome = "rejected"
	}
	inst := uc.external[call]
	inst.outcomes[outcome].Add(1)
	inst.latency.Observe(time.Since(start).Seconds())
}
