package collaborator

import (
	"context"
	"net/http"
)

// GatewayClient performs the authorization call against the configured payment gateway URL.
type GatewayClient struct {
	http *http.Client
	url  string
}

func NewGatewayClient(c *http.Client, url string) *GatewayClient {
	return &GatewayClient{http: c, url: url}
}

func (g *GatewayClient) Authorize(ctx context.Context) (int, error) {
	return do(ctx, g.http, http.MethodGet, g.url, nil, "")
}
