package httppool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanatlas/argosync/internal/logging"
)

func testConfig() Config {
	return Config{
		Size:           2,
		IdleTimeout:    time.Minute,
		ProbeTimeout:   time.Second,
		RequestTimeout: 5 * time.Second,
	}
}

func TestGetPut_ReusesClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	p := New(srv.URL, testConfig(), logging.NewNop())
	defer p.Close()

	c1, err := p.Get(context.Background())
	require.NoError(t, err)
	p.Put(c1)
	assert.Equal(t, 1, p.IdleLen())

	c2, err := p.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, c1, c2, "idle client should be reused after a passing probe")
	assert.Equal(t, 0, p.IdleLen())
}

func TestGet_DiscardsStaleClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	cfg := testConfig()
	cfg.IdleTimeout = time.Nanosecond
	p := New(srv.URL, cfg, logging.NewNop())
	defer p.Close()

	c1, err := p.Get(context.Background())
	require.NoError(t, err)
	p.Put(c1)
	time.Sleep(time.Millisecond)

	c2, err := p.Get(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, c1, c2, "stale client must be replaced")
}

func TestGet_DiscardsDeadClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	p := New(srv.URL, testConfig(), logging.NewNop())
	defer p.Close()

	c1, err := p.Get(context.Background())
	require.NoError(t, err)
	p.Put(c1)

	srv.Close() // probe now fails

	c2, err := p.Get(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, c1, c2, "dead client must not be reused")
}

func TestPut_RespectsBound(t *testing.T) {
	p := New("http://unused.local", testConfig(), logging.NewNop())
	defer p.Close()

	for i := 0; i < 5; i++ {
		p.Put(p.newClient())
	}
	assert.Equal(t, 2, p.IdleLen())
}

func TestClose_StopsHandingOutClients(t *testing.T) {
	p := New("http://unused.local", testConfig(), logging.NewNop())
	p.Close()

	_, err := p.Get(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRegistry_OnePoolPerServer(t *testing.T) {
	r := NewRegistry(testConfig(), logging.NewNop())
	defer r.CloseAll()

	a := r.Pool("http://a.local")
	b := r.Pool("http://b.local")
	assert.NotSame(t, a, b)
	assert.Same(t, a, r.Pool("http://a.local"))
}
