package payment

import "errors"

var (
	ErrCartInvalid = errors.New("cart not valid")
	ErrPublish     = errors.New("order publish failed")
	ErrSales       = errors.New("sales metrics update failed")
)

const (
	MsgPaymentError    = "payment error"
	MsgCartDeleteError = "cart delete error"
)

// Step names a collaborator call in the pay flow.
type Step string

const (
	StepUserCheck    Step = "user_check"
	StepGateway      Step = "payment_gateway"
	StepPublish      Step = "order_publish"
	StepOrderHistory Step = "order_history"
	StepCartDelete   Step = "cart_delete"
)

// TransportError reports a collaborator that could not be reached at all.
// Its message is the underlying error text.
type TransportError struct {
	Step Step
	Err  error
}

func (e *TransportError) Error() string { return e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// RejectionError reports a collaborator that answered with a non-200 status.
// The status is forwarded to the caller unchanged.
type RejectionError struct {
	Step    Step
	Status  int
	Message string
}

func (e *RejectionError) Error() string { return e.Message }
