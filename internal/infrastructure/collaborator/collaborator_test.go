package collaborator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-payment/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-payment/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-payment/internal/domain/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "http://user:8080", BaseURL("user:8080"))
	assert.Equal(t, "http://127.0.0.1:9000", BaseURL("http://127.0.0.1:9000/"))
	assert.Equal(t, "https://cart.internal", BaseURL("https://cart.internal"))
}

func TestUserClient_Classify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		switch r.URL.Path {
		case "/check/alice":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, "user not found")
		}
	}))
	defer srv.Close()

	c := NewUserClient(NewHTTPClient(time.Second), srv.URL)

	got, err := c.Classify(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, user.Known, got)

	got, err = c.Classify(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, user.Anonymous, got)
}

func TestUserClient_ClassifyTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := NewUserClient(NewHTTPClient(time.Second), addr)

	got, err := c.Classify(context.Background(), "alice")
	require.Error(t, err)
	assert.Equal(t, user.Anonymous, got)
}

func TestUserClient_RecordOrder(t *testing.T) {
	body := `{"items":[{"sku":"WIDGET","qty":3},{"sku":"SHIP","qty":1}],"total":150}`
	type captured struct {
		method, path, contentType string
		body                      map[string]json.RawMessage
	}
	seen := make(chan captured, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := captured{method: r.Method, path: r.URL.Path, contentType: r.Header.Get("Content-Type")}
		_ = json.NewDecoder(r.Body).Decode(&c.body)
		seen <- c
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c, err := cart.Parse([]byte(body))
	require.NoError(t, err)
	o := order.New("order-1", "alice", c)

	status, err := NewUserClient(NewHTTPClient(time.Second), srv.URL).RecordOrder(context.Background(), "alice", o.History())

	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)
	got := <-seen
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/order/alice", got.path)
	assert.Equal(t, "application/json", got.contentType)
	assert.JSONEq(t, `"order-1"`, string(got.body["orderid"]))
	assert.JSONEq(t, body, string(got.body["cart"]))
}

func TestCartClient_Delete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		if r.URL.Path == "/cart/alice" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewCartClient(NewHTTPClient(time.Second), srv.URL)

	status, err := c.Delete(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)

	status, err = c.Delete(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCartClient_EscapesIdentity(t *testing.T) {
	raw := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw <- r.URL.EscapedPath()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := NewCartClient(NewHTTPClient(time.Second), srv.URL).Delete(context.Background(), "a b/c")
	require.NoError(t, err)
	assert.Equal(t, "/cart/a%20b%2Fc", <-raw)
}

func TestGatewayClient_Authorize(t *testing.T) {
	var code atomic.Int32
	code.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(int(code.Load()))
	}))
	defer srv.Close()

	g := NewGatewayClient(NewHTTPClient(time.Second), srv.URL+"/authorize")

	status, err := g.Authorize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)

	code.Store(http.StatusServiceUnavailable)
	status, err = g.Authorize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestGatewayClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := NewGatewayClient(NewHTTPClient(20*time.Millisecond), srv.URL).Authorize(context.Background())
	require.Error(t, err)
}

func TestGatewayClient_NoTimeoutByDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewHTTPClient(0)
	assert.Zero(t, client.Timeout)

	status, err := NewGatewayClient(client, srv.URL).Authorize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
}
