package order

import (
	"github.com/Zhima-Mochi/minishop-payment/internal/domain/cart"
)

// Order is the record of a completed payment. ID is the only correlation key between the
// HTTP response, the published event and the order history entry.
type Order struct {
	ID   string    `json:"orderid"`
	User string    `json:"user"`
	Cart cart.Cart `json:"cart"`
}

func New(id, user string, c cart.Cart) Order {
	return Order{ID: id, User: user, Cart: c}
}

// History is the body posted to the user service for known users.
type History struct {
	OrderID string    `json:"orderid"`
	Cart    cart.Cart `json:"cart"`
}

func (o Order) History() History {
	return History{OrderID: o.ID, Cart: o.Cart}
}
