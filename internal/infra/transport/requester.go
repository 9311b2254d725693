// Package transport issues the HTTP calls made against candidate endpoints.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// maxBodySize bounds how much of a response body is read.
const maxBodySize = 10 << 20

// Response is a completed HTTP exchange. Non-2xx statuses are not errors.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Requester performs GET requests. Implementations must honor ctx cancellation.
type Requester interface {
	Get(ctx context.Context, url string, headers map[string]string) (*Response, error)
}

// HTTPRequester implements Requester over net/http with a cookie jar, so session
// cookies set by the backend are sent on later calls.
type HTTPRequester struct {
	httpClient *http.Client
}

// NewHTTPRequester creates a requester whose client gives up after timeout.
func NewHTTPRequester(timeout time.Duration) (*HTTPRequester, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &HTTPRequester{
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Get issues a GET request with headers.
func (r *HTTPRequester) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}
