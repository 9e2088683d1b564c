// Package orthanc is a small client for the Orthanc DICOM server REST API.
package orthanc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/kingprasham/dicom-c-sub004/internal/platform/dicomtree"
	"github.com/kingprasham/dicom-c-sub004/internal/platform/metrics"
)

// DefaultTimeout bounds every Orthanc call.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 1024

// Config configures a Client.
type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
	// MaxRPS throttles outgoing requests. Zero disables throttling.
	MaxRPS float64
}

// Client manages communication with the Orthanc API.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

// NewClient creates a new Orthanc API client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: timeout},
		tracer:     otel.Tracer("orthanc"),
	}
	if cfg.MaxRPS > 0 {
		burst := int(cfg.MaxRPS)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.MaxRPS), burst)
	}
	return c
}

// SetMetrics attaches optional Prometheus instruments.
func (c *Client) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

// SetHTTPClient replaces the underlying HTTP client.
func (c *Client) SetHTTPClient(hc *http.Client) {
	if hc != nil {
		c.httpClient = hc
	}
}

// BaseURL returns the configured server URL.
func (c *Client) BaseURL() string { return c.baseURL }

// InstanceTags fetches the full tag tree of an instance.
func (c *Client) InstanceTags(ctx context.Context, instanceID string) (dicomtree.Dataset, error) {
	if !ValidID(instanceID) {
		return dicomtree.Dataset{}, fmt.Errorf("%w: %q", ErrInvalidID, instanceID)
	}
	var ds dicomtree.Dataset
	body, err := c.get(ctx, "instance_tags", "/instances/"+url.PathEscape(instanceID)+"/tags")
	if err != nil {
		return ds, err
	}
	if err := json.Unmarshal(body, &ds); err != nil {
		return ds, fmt.Errorf("instance %s tags: %w", instanceID, err)
	}
	return ds, nil
}

// SimplifiedTags fetches the flat keyword to value tag map of an instance.
// Only string values are kept.
func (c *Client) SimplifiedTags(ctx context.Context, instanceID string) (map[string]string, error) {
	if !ValidID(instanceID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, instanceID)
	}
	body, err := c.get(ctx, "simplified_tags", "/instances/"+url.PathEscape(instanceID)+"/simplified-tags")
	if err != nil {
		return nil, err
	}
	tags, err := simplifiedStrings(body)
	if err != nil {
		return nil, fmt.Errorf("instance %s: %w", instanceID, err)
	}
	return tags, nil
}

// StudySeries lists the series ids of a study in Orthanc's order.
func (c *Client) StudySeries(ctx context.Context, studyID string) ([]string, error) {
	if !ValidID(studyID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, studyID)
	}
	body, err := c.get(ctx, "study_series", "/studies/"+url.PathEscape(studyID)+"/series")
	if err != nil {
		return nil, err
	}
	ids, err := seriesIDs(body)
	if err != nil {
		return nil, fmt.Errorf("study %s: %w", studyID, err)
	}
	return ids, nil
}

// Series fetches the modality and instance list of a series.
func (c *Client) Series(ctx context.Context, seriesID string) (*SeriesInfo, error) {
	if !ValidID(seriesID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, seriesID)
	}
	body, err := c.get(ctx, "series", "/series/"+url.PathEscape(seriesID))
	if err != nil {
		return nil, err
	}
	var resp seriesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode series %s: %w", seriesID, err)
	}
	if resp.ID == "" {
		resp.ID = seriesID
	}
	return resp.info(), nil
}

// Ping fetches /system and reports whether the server is reachable.
func (c *Client) Ping(ctx context.Context) (*SystemInfo, error) {
	body, err := c.get(ctx, "system", "/system")
	if err != nil {
		return nil, err
	}
	var info SystemInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decode system info: %w", err)
	}
	return &info, nil
}

func (c *Client) get(ctx context.Context, endpoint, path string) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "orthanc."+endpoint, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "rate limit wait")
			return nil, fmt.Errorf("orthanc rate limit: %w", err)
		}
	}

	targetURL := c.baseURL + path
	span.SetAttributes(attribute.String("http.url", targetURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request to %s: %w", targetURL, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordOrthancRequest(endpoint, 0, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, fmt.Errorf("failed to get %s: %w", targetURL, err)
	}
	defer resp.Body.Close()

	c.metrics.RecordOrthancRequest(endpoint, resp.StatusCode, time.Since(start))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		err := &StatusError{StatusCode: resp.StatusCode, URL: targetURL, Body: strings.TrimSpace(string(b))}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", targetURL, err)
	}
	return body, nil
}
