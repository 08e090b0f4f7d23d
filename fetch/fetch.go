/*
Package fetch provides the single-shot HTTP fetch collaborator.

PURPOSE:
  A thin request/response wrapper consumed by feature code that needs to
  reach external services (SMS delivery for OTPs, webhook notification).
  One request, one response. No retry, no backoff - by contract, not by
  omission; callers wanting resilience layer it on top.

ERROR MODEL:
  Transport failures surface as opaque errors. Callers in this system
  treat any fetch failure as a TransportFailure and do not inspect it.
*/
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client issues single-attempt HTTP requests.
type Client struct {
	http *http.Client
}

// New creates a client with the given per-request timeout.
func New(timeout time.Duration) *Client {
	return &Client{http: &http.Client{Timeout: timeout}}
}

// Response is the complete, already-read reply.
type Response struct {
	Status int
	Body   []byte
}

// JSON decodes the response body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Do issues one request. A non-nil body is JSON-encoded. Any HTTP status
// is returned as-is; only transport-level failures produce an error.
func (c *Client) Do(ctx context.Context, method, url string, headers map[string]string, body any) (*Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{Status: resp.StatusCode, Body: data}, nil
}
