package collaborator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Zhima-Mochi/minishop-payment/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-payment/internal/domain/user"
)

// UserClient talks to the user service.
type UserClient struct {
	http *http.Client
	base string
}

func NewUserClient(c *http.Client, hostPort string) *UserClient {
	return &UserClient{http: c, base: BaseURL(hostPort)}
}

// Classify calls GET /check/{identity}; only a 200 answer makes the user known.
func (u *UserClient) Classify(ctx context.Context, identity string) (user.Classification, error) {
	status, err := do(ctx, u.http, http.MethodGet, join(u.base, "/check/", identity), nil, "")
	if err != nil {
		return user.Anonymous, err
	}
	return user.ClassifyStatus(status), nil
}

// RecordOrder posts {orderid, cart} to /order/{identity}.
func (u *UserClient) RecordOrder(ctx context.Context, identity string, h order.History) (int, error) {
	body, err := json.Marshal(h)
	if err != nil {
		return 0, fmt.Errorf("encode order history: %w", err)
	}
	return do(ctx, u.http, http.MethodPost, join(u.base, "/order/", identity), bytes.NewReader(body), "application/json")
}
