package status

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	errURLRequired     = "status URL is required"
	errBuildRequest    = "build request: %w"
	errRequestFailed   = "status request failed: %w"
	errUnexpectedCode  = "unexpected status code %d"
	errDecodeFailed    = "decode status body: %w"
	maxStatusBodyBytes = 4 << 10
)

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Options struct {
	URL     string
	Timeout time.Duration
	// HTTP may be injected for tests.
	HTTP Doer
}

// Client asks the companion application whether a focus session is running.
type Client struct {
	url     string
	timeout time.Duration
	http    Doer
}

type statusBody struct {
	IsFocusing bool `json:"is_focusing"`
}

// NewClient returns a Client. Timeout defaults to one second.
func NewClient(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf(errURLRequired)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second
	}
	if opts.HTTP == nil {
		opts.HTTP = &http.Client{}
	}
	return &Client{url: opts.URL, timeout: opts.Timeout, http: opts.HTTP}, nil
}

// IsFocusing performs one GET against the status endpoint. Any transport
// error, non-2xx response or undecodable body is returned as an error.
func (c *Client) IsFocusing(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return false, fmt.Errorf(errBuildRequest, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf(errRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxStatusBodyBytes))
		return false, fmt.Errorf(errUnexpectedCode, resp.StatusCode)
	}

	var body statusBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxStatusBodyBytes)).Decode(&body); err != nil {
		return false, fmt.Errorf(errDecodeFailed, err)
	}
	return body.IsFocusing, nil
}
