package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ShippingSKU marks the shipping line of a cart. It is never counted as merchandise.
const ShippingSKU = "SHIP"

// MaxLineQty caps the quantity of a single line accepted from a client.
const MaxLineQty = 1_000_000

var ErrMalformed = errors.New("cart: malformed payload")

type Item struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

// Cart is the payload submitted for payment. The raw JSON is retained so the cart can be
// forwarded downstream exactly as it was received.
type Cart struct {
	Items []Item          `json:"items"`
	Total decimal.Decimal `json:"total"`

	raw json.RawMessage
}

// New builds a cart from its parts; its JSON form is derived from the fields.
func New(total decimal.Decimal, items ...Item) Cart {
	return Cart{Items: items, Total: total}
}

// Parse decodes an untrusted cart body.
func Parse(data []byte) (Cart, error) {
	var c Cart
	if err := json.Unmarshal(data, &c); err != nil {
		if errors.Is(err, ErrMalformed) {
			return Cart{}, err
		}
		return Cart{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return c, nil
}

func (c *Cart) UnmarshalJSON(data []byte) error {
	var body struct {
		Items []Item           `json:"items"`
		Total *decimal.Decimal `json:"total"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	for _, it := range body.Items {
		if it.Qty > MaxLineQty {
			return fmt.Errorf("%w: qty %d of %q exceeds %d", ErrMalformed, it.Qty, it.SKU, MaxLineQty)
		}
	}
	c.Items = body.Items
	c.Total = decimal.Zero
	if body.Total != nil {
		c.Total = *body.Total
	}
	c.raw = append(json.RawMessage(nil), data...)
	return nil
}

func (c Cart) MarshalJSON() ([]byte, error) {
	if len(c.raw) > 0 {
		return c.raw, nil
	}
	items := c.Items
	if items == nil {
		items = []Item{}
	}
	return json.Marshal(struct {
		Items []Item          `json:"items"`
		Total decimal.Decimal `json:"total"`
	}{Items: items, Total: c.Total})
}

// HasShipping reports whether at least one line is the shipping sentinel.
func (c Cart) HasShipping() bool {
	for _, it := range c.Items {
		if it.SKU == ShippingSKU {
			return true
		}
	}
	return false
}

// Valid requires a non-zero total and a shipping line.
func (c Cart) Valid() bool {
	return !c.Total.IsZero() && c.HasShipping()
}

// MerchandiseCount sums quantities of every non-shipping line. The sum saturates instead
// of wrapping.
func MerchandiseCount(items []Item) int {
	n := 0
	for _, it := range items {
		if it.SKU == ShippingSKU {
			continue
		}
		switch {
		case it.Qty > 0 && n > math.MaxInt-it.Qty:
			n = math.MaxInt
		case it.Qty < 0 && n < math.MinInt-it.Qty:
			n = math.MinInt
		default:
			n += it.Qty
		}
	}
	return n
}
