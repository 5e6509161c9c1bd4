// Package httppool maintains bounded pools of reusable HTTP clients,
// one pool per archive server. A pooled client is liveness-probed
// before reuse and discarded when dead or idle beyond the configured
// timeout, mirroring how long-running syncs keep archive connections
// warm without leaking them.
package httppool

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/oceanatlas/argosync/internal/logging"
)

// ErrClosed is returned by Get after the pool has been closed.
var ErrClosed = errors.New("connection pool closed")

// Config carries the pool tunables. None of them are hard-coded; the
// worker config wires them through.
type Config struct {
	// Size is the maximum number of idle clients kept per server.
	Size int
	// IdleTimeout discards clients that sat unused longer than this.
	IdleTimeout time.Duration
	// ProbeTimeout bounds the liveness probe issued before reuse.
	ProbeTimeout time.Duration
	// RequestTimeout is the per-request timeout of pooled clients.
	RequestTimeout time.Duration
}

// Client wraps one reusable HTTP client with pool metadata.
type Client struct {
	HTTP     *http.Client
	lastUsed time.Time
}

// Pool hands out clients for a single server. Safe for concurrent use.
type Pool struct {
	baseURL string
	cfg     Config
	logger  logging.Logger

	mu     sync.Mutex
	idle   []*Client
	closed bool
}

func New(baseURL string, cfg Config, logger logging.Logger) *Pool {
	return &Pool{baseURL: baseURL, cfg: cfg, logger: logger}
}

func (p *Pool) newClient() *Client {
	transport := &http.Transport{
		MaxIdleConns:        1,
		MaxConnsPerHost:     1,
		IdleConnTimeout:     p.cfg.IdleTimeout,
		ForceAttemptHTTP2:   true,
		DisableCompression:  false,
		MaxIdleConnsPerHost: 1,
	}
	return &Client{
		HTTP:     &http.Client{Transport: transport, Timeout: p.cfg.RequestTimeout},
		lastUsed: time.Now(),
	}
}

// probe checks that the server still answers on this client.
func (p *Pool) probe(ctx context.Context, c *Client) bool {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.baseURL, nil)
	if err != nil {
		return false
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// Get returns a validated client, reusing an idle one when possible.
func (p *Pool) Get(ctx context.Context) (*Client, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrClosed
		}
		if len(p.idle) == 0 {
			p.mu.Unlock()
			p.logger.Debug(ctx, "pool empty, dialing new client", "server", p.baseURL)
			return p.newClient(), nil
		}
		c := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		p.mu.Unlock()

		if time.Since(c.lastUsed) > p.cfg.IdleTimeout {
			p.logger.Debug(ctx, "discarding idle client", "server", p.baseURL)
			c.HTTP.CloseIdleConnections()
			continue
		}
		if !p.probe(ctx, c) {
			p.logger.Debug(ctx, "discarding dead client", "server", p.baseURL)
			c.HTTP.CloseIdleConnections()
			continue
		}
		c.lastUsed = time.Now()
		return c, nil
	}
}

// Put returns a client to the pool; clients beyond the bound are dropped.
func (p *Pool) Put(c *Client) {
	if c == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || len(p.idle) >= p.cfg.Size {
		c.HTTP.CloseIdleConnections()
		return
	}
	c.lastUsed = time.Now()
	p.idle = append(p.idle, c)
}

// Discard drops a client whose last request failed.
func (p *Pool) Discard(c *Client) {
	if c != nil {
		c.HTTP.CloseIdleConnections()
	}
}

// Close drains the pool. Subsequent Get calls fail with ErrClosed.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	for _, c := range p.idle {
		c.HTTP.CloseIdleConnections()
	}
	p.idle = nil
}

// IdleLen reports the number of pooled idle clients.
func (p *Pool) IdleLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// Registry hands out one Pool per server URL.
type Registry struct {
	cfg    Config
	logger logging.Logger

	mu    sync.Mutex
	pools map[string]*Pool
}

func NewRegistry(cfg Config, logger logging.Logger) *Registry {
	return &Registry{cfg: cfg, logger: logger, pools: make(map[string]*Pool)}
}

// Pool returns the pool for baseURL, creating it on first use.
func (r *Registry) Pool(baseURL string) *Pool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pools[baseURL]
	if !ok {
		p = New(baseURL, r.cfg, r.logger)
		r.pools[baseURL] = p
	}
	return p
}

// CloseAll closes every pool in the registry.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for url, p := range r.pools {
		p.Close()
		delete(r.pools, url)
	}
}
