// Package customHttpClient shares one pooled transport between the hosted
// embedding clients so repeated batches reuse connections.
package customHttpClient

import (
	"net/http"
	"time"

	"github.com/akolanti/docchat/internal/config"
)

var customTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        config.MaxIdleConns,
	MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
	IdleConnTimeout:     config.IdleConnTimeout,
}

// NewClient returns a client on the shared transport. A zero timeout leaves
// deadlines to the request context.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: customTransport,
		Timeout:   timeout,
	}
}
