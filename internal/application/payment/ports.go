package payment

import (
	"context"

	"github.com/Zhima-Mochi/minishop-payment/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-payment/internal/domain/user"
	"github.com/shopspring/decimal"
)

// UserDirectory is the user service as seen by the payment flow.
// A non-nil error always means the service could not be reached.
type UserDirectory interface {
	Classify(ctx context.Context, identity string) (user.Classification, error)
	RecordOrder(ctx context.Context, identity string, h order.History) (int, error)
}

// CartStore deletes a paid cart and reports the status code it answered with.
type CartStore interface {
	Delete(ctx context.Context, identity string) (int, error)
}

// Gateway authorizes a payment and reports the status code it answered with.
type Gateway interface {
	Authorize(ctx context.Context) (int, error)
}

// SalesRecorder owns the process-wide sales counters.
type SalesRecorder interface {
	RecordSale(units int, total decimal.Decimal) error
}

type IDGenerator interface {
	NewID() string
}
