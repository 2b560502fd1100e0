package producer

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// Only the wait for response headers is bounded. A body is read for as long
// as the source sends it, until the request context ends.
const responseHeaderTimeout = 60 * time.Second

// getHTTPClient returns a singleton HTTP client
var (
	httpClient     *http.Client
	httpClientOnce sync.Once
)

func getHTTPClient() *http.Client {
	httpClientOnce.Do(func() {
		httpClient = newHTTPClient(responseHeaderTimeout)
	})
	return httpClient
}

func newHTTPClient(headerTimeout time.Duration) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: headerTimeout,
		DisableCompression:    false,
		DisableKeepAlives:     false,
		ForceAttemptHTTP2:     true,
	}

	transport.DialContext = (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext

	return &http.Client{
		Transport: transport,
	}
}

// HTTPProducer streams a response body in fixed-size chunks.
type HTTPProducer struct {
	*ReaderProducer
	body io.ReadCloser
}

// NewHTTPProducer issues a GET for url and serves the response body. Any
// status other than 200 is an error. The caller must Close the producer.
func NewHTTPProducer(ctx context.Context, url string, chunkSize int, headers map[string]string) (*HTTPProducer, error) {
	return newHTTPProducer(ctx, getHTTPClient(), url, chunkSize, headers)
}

func newHTTPProducer(ctx context.Context, client *http.Client, url string, chunkSize int, headers map[string]string) (*HTTPProducer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	rp, err := NewReaderProducer(resp.Body, chunkSize)
	if err != nil {
		_ = resp.Body.Close()
		return nil, err
	}
	return &HTTPProducer{ReaderProducer: rp, body: resp.Body}, nil
}

func (p *HTTPProducer) Close() error {
	return p.body.Close()
}
