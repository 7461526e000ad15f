// Package client is a Go client for the studio API. It keeps the session and
// CSRF cookies in a jar, echoes the CSRF cookie in the X-CSRF-Token header on
// state-changing requests and bounds every request with a timeout.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultTimeout = 30 * time.Second

	csrfCookie = "csrf_token"
	csrfHeader = "X-CSRF-Token"
)

// ErrTimeout is returned when a request does not complete within the timeout.
var ErrTimeout = errors.New("client: request timed out")

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status       int
	Message      string
	Details      []string
	Requirements []string
	// RetryAfter is set on 429 answers.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL *url.URL
	hc      *http.Client
	timeout time.Duration
}

type Options struct {
	// Timeout bounds each request. Zero means DefaultTimeout.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// New returns a client for the API at baseURL.
func New(baseURL string, opt Options) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.New("client: base url must be absolute")
	}

	hc := opt.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	if hc.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		hc.Jar = jar
	}

	timeout := opt.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{baseURL: u, hc: hc, timeout: timeout}, nil
}

// Do sends a JSON request and decodes a JSON answer into out when non-nil.
// path is relative to the base URL and must be escaped by the caller.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		buf = bytes.NewReader(b)
	}

	// path is already escaped; JoinPath keeps any prefix of the base URL.
	u := c.baseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if isMutating(method) {
		if token := c.CSRFToken(); token != "" {
			req.Header.Set(csrfHeader, token)
		}
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s %s: %w", ErrTimeout, method, path, err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s %s: %w", ErrTimeout, method, path, err)
		}
		return err
	}
	return nil
}

// CSRFToken returns the CSRF cookie currently held for the API, or "".
func (c *Client) CSRFToken() string {
	for _, ck := range c.hc.Jar.Cookies(c.baseURL) {
		if ck.Name == csrfCookie {
			return ck.Value
		}
	}
	return ""
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: resp.Status}
	var er struct {
		Error        string   `json:"error"`
		Details      []string `json:"details"`
		Requirements []string `json:"requirements"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&er); err == nil && er.Error != "" {
		apiErr.Message = er.Error
		apiErr.Details = er.Details
		apiErr.Requirements = er.Requirements
	}
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		apiErr.RetryAfter = time.Duration(secs) * time.Second
	}
	return apiErr
}

func isMutating(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}
