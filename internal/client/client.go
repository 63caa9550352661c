package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/daimoniac/securevision/internal/errors"
	"github.com/daimoniac/securevision/internal/metrics"
)

// Endpoint paths served by the external metrics service.
const (
	MetricsPath         = "/api/security/metrics"
	TimelinePath        = "/api/security/timeline"
	VulnerabilitiesPath = "/api/security/vulnerabilities"
)

// maxErrorBody caps how much of a non-2xx body ends up in an error message.
const maxErrorBody = 256

// Client reads security metrics from the external metrics service.
type Client interface {
	// FetchMetrics issues one GET for the current SecurityMetrics
	FetchMetrics(ctx context.Context) (metrics.SecurityMetrics, error)

	// FetchTimeline issues one GET for the threat timeline series
	FetchTimeline(ctx context.Context) ([]metrics.ThreatSample, error)

	// FetchVulnerabilities issues one GET for the vulnerability distribution
	FetchVulnerabilities(ctx context.Context) ([]metrics.VulnerabilityBucket, error)
}

// Config configures the HTTP client
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
}

// HTTPClient implements Client over plain HTTP.
type HTTPClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a client for the metrics service at cfg.BaseURL
func New(cfg Config) (*HTTPClient, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, errors.NewPermanentf("invalid metrics base URL %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, errors.NewPermanentf("metrics base URL must be http or https, got %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &HTTPClient{
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// FetchMetrics implements Client
func (c *HTTPClient) FetchMetrics(ctx context.Context) (metrics.SecurityMetrics, error) {
	var result metrics.SecurityMetrics
	err := c.get(ctx, MetricsPath, func(endpoint string, body io.Reader) error {
		m, err := metrics.DecodeSecurityMetrics(body)
		if err != nil {
			return &errors.DecodeError{URL: endpoint, Cause: err}
		}
		result = m
		return nil
	})
	return result, err
}

// FetchTimeline implements Client
func (c *HTTPClient) FetchTimeline(ctx context.Context) ([]metrics.ThreatSample, error) {
	var result []metrics.ThreatSample
	err := c.get(ctx, TimelinePath, func(endpoint string, body io.Reader) error {
		samples, err := metrics.DecodeTimeline(body)
		if err != nil {
			return &errors.DecodeError{URL: endpoint, Cause: err}
		}
		result = samples
		return nil
	})
	return result, err
}

// FetchVulnerabilities implements Client
func (c *HTTPClient) FetchVulnerabilities(ctx context.Context) ([]metrics.VulnerabilityBucket, error) {
	var result []metrics.VulnerabilityBucket
	err := c.get(ctx, VulnerabilitiesPath, func(endpoint string, body io.Reader) error {
		buckets, err := metrics.DecodeDistribution(body)
		if err != nil {
			return &errors.DecodeError{URL: endpoint, Cause: err}
		}
		result = buckets
		return nil
	})
	return result, err
}

// get performs one GET and hands a 2xx body to decode. Failures come back as
// TransportError or HTTPStatusError; decode is expected to return DecodeError.
func (c *HTTPClient) get(ctx context.Context, path string, decode func(endpoint string, body io.Reader) error) error {
	endpoint := c.baseURL.JoinPath(path).String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &errors.TransportError{URL: endpoint, Cause: err}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &errors.TransportError{URL: endpoint, Cause: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("metrics service responded",
		"url", endpoint,
		"status", resp.StatusCode,
		"duration", time.Since(start).String())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &errors.HTTPStatusError{
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Body:       string(bytes.TrimSpace(snippet)),
		}
	}

	// Read fully first so a connection dropped mid-body is a transport failure.
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errors.TransportError{URL: endpoint, Cause: fmt.Errorf("reading body: %w", err)}
	}

	return decode(endpoint, bytes.NewReader(data))
}
