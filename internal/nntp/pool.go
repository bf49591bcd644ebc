package nntp

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/datallboy/gonzb/internal/nzbmodel"
)

// PoolConfig bounds how many connections a Pool may open and how long a
// caller waits for one.
type PoolConfig struct {
	MaxConnections int
	AcquireTimeout time.Duration
}

// Pool is a bounded, lazily-grown LIFO pool of authenticated connections to
// a single server (spec §4.3). Reusing the most recently released
// connection keeps TLS session caches and GROUP selection warm.
type Pool struct {
	cfg     Config
	pcfg    PoolConfig
	tlsConf *tls.Config
	log     *slog.Logger

	mu      sync.Mutex
	idle    []*Connection
	opened  int
	closed  bool
}

// NewPool constructs a pool. No connections are opened eagerly.
func NewPool(cfg Config, pcfg PoolConfig, log *slog.Logger) *Pool {
	if pcfg.MaxConnections <= 0 {
		pcfg.MaxConnections = 1
	}
	if pcfg.AcquireTimeout <= 0 {
		pcfg.AcquireTimeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	var tlsConf *tls.Config
	if cfg.SSL {
		tlsConf = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12, ClientSessionCache: tls.NewLRUClientSessionCache(pcfg.MaxConnections)}
	}
	return &Pool{cfg: cfg, pcfg: pcfg, tlsConf: tlsConf, log: log}
}

// TotalCapacity reports the configured connection ceiling.
func (p *Pool) TotalCapacity() int { return p.pcfg.MaxConnections }

// Acquire returns an idle connection or opens a new one if under capacity.
// When the pool is at capacity and no idle connection is available, it
// waits with exponential backoff, logging a "still waiting" notice every
// few attempts, until ctx is done or the acquire timeout elapses (spec
// §4.3).
func (p *Pool) Acquire(ctx context.Context) (*Connection, error) {
	deadline := time.Now().Add(p.pcfg.AcquireTimeout)
	backoff := 50 * time.Millisecond
	attempt := 0

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, fmt.Errorf("nntp: pool closed")
		}
		if n := len(p.idle); n > 0 {
			c := p.idle[n-1]
			p.idle = p.idle[:n-1]
			p.mu.Unlock()
			return c, nil
		}
		if p.opened < p.pcfg.MaxConnections {
			p.opened++
			p.mu.Unlock()
			c, err := dial(p.cfg, p.tlsConf)
			if err != nil {
				p.mu.Lock()
				p.opened--
				p.mu.Unlock()
				return nil, err
			}
			return c, nil
		}
		p.mu.Unlock()

		attempt++
		if attempt%10 == 0 {
			p.log.Warn("waiting for an available nntp connection", "attempts", attempt)
		}
		if time.Now().After(deadline) {
			return nil, nzbmodel.ErrConnectionBusy
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 2*time.Second {
			backoff = 2 * time.Second
		}
	}
}

// Release returns a healthy connection to the idle pool. A poisoned
// connection, or one that fails a NOOP health check, is destroyed instead
// and its capacity slot freed for a fresh dial.
func (p *Pool) Release(c *Connection) {
	if c == nil {
		return
	}
	if c.Poisoned() || !c.IsHealthy() {
		p.destroy(c)
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		c.Close()
		return
	}
	p.idle = append(p.idle, c)
	p.mu.Unlock()
}

// Destroy closes c and frees its capacity slot without a health check,
// used when the caller already knows the connection is unusable.
func (p *Pool) Destroy(c *Connection) { p.destroy(c) }

func (p *Pool) destroy(c *Connection) {
	c.Close()
	p.mu.Lock()
	p.opened--
	p.mu.Unlock()
}

// Close drains and closes every idle connection. In-flight connections
// still held by callers are closed as they are Released/Destroyed.
func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, c := range idle {
		c.Close()
	}
	return nil
}
