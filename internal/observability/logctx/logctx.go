package logctx

import (
	"context"

	"github.com/Zhima-Mochi/minishop-payment/internal/observability"
)

type loggerKey struct{}

// With stores the provided logger on the context for request-scoped logging.
func With(ctx context.Context, logger observability.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// Enrich binds fields onto the context logger, or onto fallback when the context has none.
func Enrich(ctx context.Context, fallback observability.Logger, fields ...observability.Field) context.Context {
	base := FromOr(ctx, fallback)
	if base == nil {
		base = observability.NopLogger()
	}
	return With(ctx, base.With(fields...))
}

func From(ctx context.Context) observability.Logger {
	if ctx == nil {
		return nil
	}
	logger, _ := ctx.Value(loggerKey{}).(observability.Logger)
	return logger
}

// FromOr returns the context logger, or fallback when none was stored.
func FromOr(ctx context.Context, fallback observability.Logger) observability.Logger {
	if logger := From(ctx); logger != nil {
		return logger
	}
	return fallback
}
