package engine

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// newTransport builds the pooled transport shared by every request of one
// Agent. Compression is left to the caller so body bytes are delivered as
// they were sent.
func newTransport(cfg Config) (*http.Transport, error) {
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}

	t := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleTimeout,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.HeadersTimeout,
		ExpectContinueTimeout: time.Second,
		DisableCompression:    true,
	}

	if cfg.EnableHTTP2 {
		t2, err := http2.ConfigureTransports(t)
		if err != nil {
			return nil, fmt.Errorf("configure http2: %w", err)
		}
		t2.ReadIdleTimeout = 30 * time.Second
		t2.PingTimeout = 15 * time.Second
	}

	return t, nil
}
