package collaborator

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewHTTPClient returns the client shared by all collaborators. A zero timeout leaves the
// transport defaults in place. Outbound requests carry the caller's trace context.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   timeout,
	}
}

// BaseURL builds the http base address of an in-cluster service.
func BaseURL(hostPort string) string {
	if strings.HasPrefix(hostPort, "http://") || strings.HasPrefix(hostPort, "https://") {
		return strings.TrimRight(hostPort, "/")
	}
	return "http://" + strings.TrimRight(hostPort, "/")
}

// do sends the request and returns only the status code; the body is drained so the
// connection can be reused.
func do(ctx context.Context, c *http.Client, method, target string, body io.Reader, contentType string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func join(base, prefix, identity string) string {
	return base + prefix + url.PathEscape(identity)
}
