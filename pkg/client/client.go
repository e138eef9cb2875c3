// Package client provides the HTTP client for the SWAPI reference API with
// error classification and request metrics.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for SWAPI client operations.
var (
	swapiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapi_requests_total",
		Help: "Total SWAPI requests by resource and status",
	}, []string{"resource", "status"})

	swapiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swapi_request_duration_seconds",
		Help:    "SWAPI request duration in seconds by resource",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"resource"})

	swapiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapi_errors_total",
		Help: "Total SWAPI errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents malformed or unexpected response bodies.
	ErrorClassDecode ErrorClass = "decode"
)

// Version is reported in the default User-Agent.
const Version = "0.1.0"

// Client is the SWAPI HTTP client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API root, e.g. "https://swapi.dev/api".
	BaseURL string

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout per HTTP request (0, the default, disables the timeout).
	Timeout time.Duration
}

// DefaultConfig returns the default configuration for the public API.
func DefaultConfig() Config {
	return Config{
		BaseURL:   "https://swapi.dev/api",
		UserAgent: "swapi-loader/" + Version,
	}
}

// New creates a new SWAPI client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base url is required", ErrInvalidConfig)
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid base url %q", ErrInvalidConfig, cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("%w: user-agent is required", ErrInvalidConfig)
	}

	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("%w: timeout must be >= 0 (got %s)", ErrInvalidConfig, cfg.Timeout)
	}

	logger := log.With().Str("component", "swapi-client").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		config:  cfg,
		logger:  logger,
	}, nil
}

// URL joins the base URL with an endpoint path such as "/people/1".
func (c *Client) URL(endpoint string) string {
	return c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
}

// Do performs an HTTP request, recording metrics and classifying failures.
// Responses with status < 500 are returned to the caller unchanged.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resource := resourceOf(req.URL.Path)

	startTime := time.Now()
	defer func() {
		swapiRequestDuration.WithLabelValues(resource).Observe(time.Since(startTime).Seconds())
	}()

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("url", req.URL.String()).
		Str("method", req.Method).
		Msg("Executing SWAPI request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errClass := c.classifyError(nil, err)
		swapiErrorsTotal.WithLabelValues(string(errClass)).Inc()
		swapiRequestsTotal.WithLabelValues(resource, "network_error").Inc()
		c.logger.Error().Err(err).Str("url", req.URL.String()).Msg("HTTP request failed")
		return nil, &APIError{
			URL:        req.URL.String(),
			ErrorClass: errClass,
			Message:    "request failed",
			Err:        err,
		}
	}

	swapiRequestsTotal.WithLabelValues(resource, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 500 {
		errClass := c.classifyError(resp, nil)
		swapiErrorsTotal.WithLabelValues(string(errClass)).Inc()
		c.logger.Warn().
			Str("url", req.URL.String()).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("SWAPI request error")
		resp.Body.Close()
		return nil, &APIError{
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    resp.Status,
		}
	}

	return resp, nil
}

// GetJSON fetches rawURL and returns the response body with its status code.
// 4xx responses are not errors here: the API reports missing entities with a
// 404 and a JSON body that callers inspect.
func (c *Client) GetJSON(ctx context.Context, rawURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		swapiErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, resp.StatusCode, &APIError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read body",
			Err:        err,
		}
	}

	if resp.StatusCode >= 400 {
		c.logger.Debug().
			Str("url", rawURL).
			Int("status", resp.StatusCode).
			Msg("SWAPI client error response")
	}

	return body, resp.StatusCode, nil
}

// Get performs a GET request to an endpoint relative to the base URL.
func (c *Client) Get(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(endpoint), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	return c.Do(req)
}

// classifyError categorizes an error for observability and handling.
func (c *Client) classifyError(resp *http.Response, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}

	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return ErrorClassClient
	case resp.StatusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// resourceOf returns the first path segment after the API root, e.g.
// "/api/people/1/" -> "people". Used as a low-cardinality metric label.
func resourceOf(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, p := range parts {
		if p == "api" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "root"
}
