// Package httpapi is a small JSON over HTTP client shared by the remote
// profile store and the remote opportunity source.
package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	userAgent      = "spigell/grant-ranker"
	defaultTimeout = 10 * time.Second
)

// ErrNotFound is returned when the remote side answers 404.
var ErrNotFound = errors.New("not found")

// StatusError reports an unexpected HTTP status.
type StatusError struct {
	Code   int
	Status string
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bad status from %s: %s", e.URL, e.Status)
}

type Client struct {
	token      string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	BaseURL    string
}

// New creates a client for baseURL. An empty token disables the Authorization header.
func New(baseURL, token string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		token:   strings.TrimSpace(token),
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger:    logger,
		UserAgent: userAgent,
	}
}

// WithTimeout sets the per request timeout and returns the client.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.HTTPClient.Timeout = timeout
	}
	return c
}

// URL joins escaped path segments onto the base URL.
func (c *Client) URL(segments ...string) string {
	escaped := make([]string, 0, len(segments)+1)
	escaped = append(escaped, c.BaseURL)
	for _, s := range segments {
		escaped = append(escaped, url.PathEscape(strings.Trim(s, "/")))
	}
	return strings.Join(escaped, "/")
}
