package order

// PaidEventName is the routing name of the order event handed to the message queue.
const PaidEventName = "order.paid"

// OrderPaid wraps an order for publication. Its JSON form is the bare order record.
type OrderPaid struct {
	Order
}

func (OrderPaid) EventName() string { return PaidEventName }

// Key identifies the event on keyed transports.
func (e OrderPaid) Key() string { return e.ID }

func NewPaidEvent(o Order) OrderPaid {
	return OrderPaid{Order: o}
}
