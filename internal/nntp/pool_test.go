package nntp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPoolDefaults(t *testing.T) {
	p := NewPool(Config{Host: "news.example.com"}, PoolConfig{}, nil)
	assert.Equal(t, 1, p.TotalCapacity())
	assert.Positive(t, p.pcfg.AcquireTimeout)
}

func TestNewPoolRespectsConfig(t *testing.T) {
	p := NewPool(Config{Host: "news.example.com"}, PoolConfig{MaxConnections: 5}, nil)
	assert.Equal(t, 5, p.TotalCapacity())
}

func TestPoolCloseIsIdempotentOnEmptyPool(t *testing.T) {
	p := NewPool(Config{Host: "news.example.com"}, PoolConfig{MaxConnections: 2}, nil)
	assert.NoError(t, p.Close())
	assert.NoError(t, p.Close())
	assert.True(t, p.closed)
}
