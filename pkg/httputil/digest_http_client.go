// Package httputil builds pooled HTTP clients for outbound APIs.
package httputil

import (
	"net"
	"net/http"
	"time"
)

type ClientConfig struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration

	DialTimeout         time.Duration
	TLSHandshakeTimeout time.Duration
	// ResponseTimeout bounds the whole exchange, body included.
	ResponseTimeout time.Duration

	KeepAliveInterval time.Duration
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     90 * time.Second,
		DialTimeout:         10 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ResponseTimeout:     30 * time.Second,
		KeepAliveInterval:   30 * time.Second,
	}
}

// CompletionClientConfig sizes the pool for a chat-completion API.
// Completions are slow, so the response timeout is long and the host
// connection cap follows the summarize fan-out.
func CompletionClientConfig(timeout time.Duration, concurrency int) ClientConfig {
	cfg := DefaultClientConfig()
	if timeout > 0 {
		cfg.ResponseTimeout = timeout
	} else {
		cfg.ResponseTimeout = 120 * time.Second
	}
	if concurrency > 0 {
		cfg.MaxConnsPerHost = concurrency * 2
		cfg.MaxIdleConnsPerHost = concurrency
		cfg.MaxIdleConns = concurrency * 2
	}
	cfg.IdleConnTimeout = 120 * time.Second
	return cfg
}

func NewClient(cfg ClientConfig) *http.Client {
	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: cfg.KeepAliveInterval,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseTimeout,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.ResponseTimeout,
	}
}
