package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-payment/internal/application"
	appPayment "github.com/Zhima-Mochi/minishop-payment/internal/application/payment"
	"github.com/Zhima-Mochi/minishop-payment/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-payment/internal/observability"
	"github.com/Zhima-Mochi/minishop-payment/internal/observability/logctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// PayUseCase is the application entry point behind POST /pay/{identity}.
type PayUseCase = application.UseCase[appPayment.PayInput, *appPayment.PayResult]

type Handler struct {
	pay     PayUseCase
	metrics http.Handler
	log     observability.Logger
	tel     observability.Observability

	httpCounter   observability.Counter   // http_requests_total{method,route,status}
	httpHistogram observability.Histogram // http_request_duration_seconds{method,route,status}
}

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	tracerName           = "minishop.payment.http"

	maxCartBytes = 1 << 20
)

// NewHandler wires the pay use case and the metrics exposition handler. A nil metrics
// handler leaves /metrics unregistered.
func NewHandler(pay PayUseCase, metrics http.Handler, logger observability.Logger,
	tel observability.Observability,
) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = tel.Logger()
	}
	return &Handler{
		pay:           pay,
		metrics:       metrics,
		log:           baseLogger.With(observability.F("component", componentHTTPHandler)),
		tel:           tel,
		httpCounter:   tel.Metrics().Counter(observability.MHTTPRequests),
		httpHistogram: tel.Metrics().Histogram(observability.MHTTPRequestDuration),
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// Trace → ObservabilityMiddleware (request logger) → HTTP metrics → Access log → Recovery → Handler
	h.muxHandle(mux, http.MethodGet, "/health", h.handleHealth)
	if h.metrics != nil {
		h.muxHandle(mux, http.MethodGet, "/metrics", h.metrics.ServeHTTP)
	}
	h.muxHandle(mux, http.MethodPost, "/pay/{identity}", h.handlePay)

	return mux
}

func (h *Handler) muxHandle(mux *http.ServeMux, method, path string, handler http.HandlerFunc) {
	route := method + " " + path
	wrapped := h.withTrace(
		ObservabilityMiddleware(
			h.log,
			func(r *http.Request) string {
				return r.Header.Get(headerRequestID)
			},
		)(
			h.withHTTPMetrics(
				h.withAccessLog(
					h.withRecovery(handler),
				),
			),
		),
	)
	mux.Handle(route, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Stable route template keeps metric labels low-cardinality.
		wrapped.ServeHTTP(w, r.WithContext(contextWithRoute(r.Context(), route)))
	}))
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "OK")
}

func (h *Handler) handlePay(w http.ResponseWriter, r *http.Request) {
	identity := r.PathValue("identity")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCartBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	c, err := cart.Parse(body)
	if err != nil {
		logctx.FromOr(r.Context(), h.log).Warn("cart_malformed",
			observability.F("identity", identity),
			observability.F("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.pay.Execute(r.Context(), appPayment.PayInput{Identity: identity, Cart: c})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// withAccessLog writes a single access log after the handler completes.
// It relies on the request-scoped logger already injected by ObservabilityMiddleware.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := newStatusRecorder(w)

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routeFromContext(r.Context())),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withRecovery turns a panic into a 500 whose body is the panic text.
func (h *Handler) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			msg := fmt.Sprint(rec)
			if err, ok := rec.(error); ok {
				msg = err.Error()
			}
			logctx.FromOr(r.Context(), h.log).Error("http_handler_panic",
				observability.F("route", routeFromContext(r.Context())),
				observability.F("panic", msg),
				observability.F("stack", string(debug.Stack())),
			)
			if span := trace.SpanFromContext(r.Context()); span.IsRecording() {
				span.SetStatus(codes.Error, msg)
			}
			writeText(w, http.StatusInternalServerError, msg)
		}()
		next.ServeHTTP(w, r)
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer(tracerName)
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		route := routeFromContext(parentCtx)
		template := route
		if idx := strings.Index(template, " "); idx >= 0 {
			template = template[idx+1:]
		}
		if route == "unknown" {
			route = r.Method + " " + r.URL.Path
			template = r.URL.Path
		}

		ctxWithSpan, span := tracer.Start(parentCtx,
			route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", template),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		lrw := newStatusRecorder(w)
		next.ServeHTTP(lrw, r.WithContext(ctxWithSpan))

		span.SetAttributes(attribute.Int("http.status_code", lrw.status))
		if lrw.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(lrw.status))
		}
	})
}

// withHTTPMetrics records RED-ish HTTP metrics using injected instruments.
// DO NOT new metrics inside the middleware.
func (h *Handler) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := newStatusRecorder(w)

		next.ServeHTTP(lrw, r)

		labels := []observability.Label{
			observability.L("method", r.Method),
			observability.L("route", routeFromContext(r.Context())),
			observability.L("status", strconv.Itoa(lrw.status)),
		}
		h.httpCounter.Add(1, labels...)
		h.httpHistogram.Observe(time.Since(start).Seconds(), labels...)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeText(w, status, err.Error())
}

func writeDomainError(w http.ResponseWriter, err error) {
	var rejection *appPayment.RejectionError
	switch {
	case errors.Is(err, appPayment.ErrCartInvalid):
		writeError(w, http.StatusBadRequest, err)
	case errors.As(err, &rejection):
		writeText(w, rejection.Status, rejection.Message)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

type routeKey struct{}

// contextWithRoute stores the stable route template in the context so downstream
// metrics/logging can rely on low-cardinality values.
func contextWithRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return "unknown"
}
