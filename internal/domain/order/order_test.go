package order

import (
	"encoding/json"
	"testing"

	"github.com/Zhima-Mochi/minishop-payment/internal/domain/cart"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrder_JSONEmbedsCartVerbatim(t *testing.T) {
	body := `{"items":[{"sku":"WIDGET","qty":3,"name":"Widget"},{"sku":"SHIP","qty":1}],"total":150,"tax":25}`
	c, err := cart.Parse([]byte(body))
	require.NoError(t, err)

	o := New("0b7f0c5e-9d3a-4b7e-8a51-3c7f0c6d2a10", "alice", c)

	out, err := json.Marshal(NewPaidEvent(o))
	require.NoError(t, err)
	assert.JSONEq(t, `{"orderid":"0b7f0c5e-9d3a-4b7e-8a51-3c7f0c6d2a10","user":"alice","cart":`+body+`}`, string(out))

	hist, err := json.Marshal(o.History())
	require.NoError(t, err)
	assert.JSONEq(t, `{"orderid":"0b7f0c5e-9d3a-4b7e-8a51-3c7f0c6d2a10","cart":`+body+`}`, string(hist))
}

func TestOrderPaid_Naming(t *testing.T) {
	e := NewPaidEvent(Order{ID: "abc"})
	assert.Equal(t, PaidEventName, e.EventName())
	assert.Equal(t, "abc", e.Key())
}
