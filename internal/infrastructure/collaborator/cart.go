package collaborator

import (
	"context"
	"net/http"
)

type CartClient struct {
	http *http.Client
	base string
}

func NewCartClient(c *http.Client, hostPort string) *CartClient {
	return &CartClient{http: c, base: BaseURL(hostPort)}
}

// Delete calls DELETE /cart/{identity}.
func (c *CartClient) Delete(ctx context.Context, identity string) (int, error) {
	return do(ctx, c.http, http.MethodDelete, join(c.base, "/cart/", identity), nil, "")
}
