// Package google implements sources.PlaceSource on top of the Google Places
// API (v1).
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rovits/poi-sync-service/internal/httpclient"
	"github.com/rovits/poi-sync-service/internal/otel"
	"github.com/rovits/poi-sync-service/internal/places"
	"github.com/rovits/poi-sync-service/internal/sources"
)

// ServiceName identifies this source in ExternalSourceError
const ServiceName = "Google Places API"

const (
	// DefaultEndpoint is the public Places API host
	DefaultEndpoint = "https://places.googleapis.com"

	// DefaultMaxRetries is the number of retries after the first attempt
	DefaultMaxRetries = 3

	headerAPIKey    = "X-Goog-Api-Key"
	headerFieldMask = "X-Goog-FieldMask"

	nearbyFieldMask  = "places.id,places.displayName,places.location"
	textFieldMask    = "places.id,places.displayName,places.formattedAddress,places.location"
	detailsFieldMask = "id,displayName.text,formattedAddress,regularOpeningHours,location"
)

type searchNearbyRequest struct {
	IncludedTypes       []string            `json:"includedTypes"`
	LocationRestriction locationRestriction `json:"locationRestriction"`
}

type locationRestriction struct {
	Circle places.Circle `json:"circle"`
}

type searchTextRequest struct {
	TextQuery      string               `json:"textQuery"`
	LanguageCode   string               `json:"languageCode,omitempty"`
	MaxResultCount int                  `json:"maxResultCount,omitempty"`
	LocationBias   *places.LocationBias `json:"locationBias,omitempty"`
}

// Client talks to the Places API
type Client struct {
	httpClient    httpclient.Client
	endpoint      string
	apiKey        string
	maxRetries    int
	retryInterval time.Duration
	tracer        trace.Tracer
}

var _ sources.PlaceSource = (*Client)(nil)

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets the transport, defaults to httpclient.NewDefaultClient(0)
func WithHTTPClient(c httpclient.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithEndpoint overrides the API host
func WithEndpoint(endpoint string) Option {
	return func(cl *Client) {
		cl.endpoint = strings.TrimSuffix(endpoint, "/")
	}
}

// WithMaxRetries sets how many times a retryable failure is repeated
func WithMaxRetries(n int) Option {
	return func(cl *Client) {
		cl.maxRetries = n
	}
}

// WithRetryInterval sets the initial backoff interval
func WithRetryInterval(d time.Duration) Option {
	return func(cl *Client) {
		cl.retryInterval = d
	}
}

// WithTracer sets the tracer used for upstream spans
func WithTracer(tracer trace.Tracer) Option {
	return func(cl *Client) {
		cl.tracer = tracer
	}
}

// New creates a Places API client authenticated with apiKey
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		endpoint:      DefaultEndpoint,
		apiKey:        apiKey,
		maxRetries:    DefaultMaxRetries,
		retryInterval: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = httpclient.NewDefaultClient(0)
	}
	return c
}

// SearchNearby implements sources.PlaceSource
func (c *Client) SearchNearby(
	ctx context.Context, lat, lng, radius float64, placeType string,
) (*places.SearchNearbyResponse, error) {
	ctx, span := otel.StartSpan(ctx, c.tracer, "google.SearchNearby",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			otel.AttrRadius.Float64(radius),
			otel.AttrPlaceType.String(placeType),
		))
	defer span.End()

	slog.InfoContext(ctx, "Google Places nearby search", "lat", lat, "lng", lng, "radius", radius, "type", placeType)

	body := searchNearbyRequest{
		IncludedTypes: []string{placeType},
		LocationRestriction: locationRestriction{Circle: places.Circle{
			Center: places.LatLng{Latitude: lat, Longitude: lng},
			Radius: radius,
		}},
	}

	var resp places.SearchNearbyResponse
	if err := c.call(ctx, http.MethodPost, "/v1/places:searchNearby", nearbyFieldMask, body, &resp); err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(otel.AttrResultCount.Int(len(resp.Places)))
	return &resp, nil
}

// SearchText implements sources.PlaceSource
func (c *Client) SearchText(
	ctx context.Context, query, lang string, maxResults int, bias *places.LocationBias,
) (*places.SearchTextResponse, error) {
	ctx, span := otel.StartSpan(ctx, c.tracer, "google.SearchText",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("search.language", lang)))
	defer span.End()

	slog.InfoContext(ctx, "Google Places text search", "query", query, "language", lang)

	body := searchTextRequest{
		TextQuery:      query,
		LanguageCode:   lang,
		MaxResultCount: maxResults,
		LocationBias:   bias,
	}

	var resp places.SearchTextResponse
	if err := c.call(ctx, http.MethodPost, "/v1/places:searchText", textFieldMask, body, &resp); err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(otel.AttrResultCount.Int(len(resp.Places)))
	return &resp, nil
}

// GetDetails implements sources.PlaceSource
func (c *Client) GetDetails(ctx context.Context, placeID string) (*places.PlaceDetails, error) {
	ctx, span := otel.StartSpan(ctx, c.tracer, "google.GetDetails",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(otel.AttrPlaceID.String(placeID)))
	defer span.End()

	slog.DebugContext(ctx, "Google Places details", "place_id", placeID)

	var resp places.PlaceDetails
	path := "/v1/places/" + url.PathEscape(placeID)
	if err := c.call(ctx, http.MethodGet, path, detailsFieldMask, nil, &resp); err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	return &resp, nil
}

// call performs one logical request with retries and decodes the response
// into out. All failures are returned as *places.ExternalSourceError.
func (c *Client) call(ctx context.Context, method, path, fieldMask string, body, out any) error {
	req := httpclient.Request{
		Method: method,
		URL:    c.endpoint + path,
		Headers: map[string]string{
			headerAPIKey:    c.apiKey,
			headerFieldMask: fieldMask,
		},
	}
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &places.ExternalSourceError{Service: ServiceName, Cause: fmt.Errorf("failed to encode request: %w", err)}
		}
		req.Body = payload
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval

	data, err := backoff.Retry(ctx, func() ([]byte, error) {
		data, err := c.httpClient.Do(ctx, req)
		if err == nil {
			return data, nil
		}
		var httpErr *httpclient.HTTPError
		if errors.As(err, &httpErr) && !httpErr.Retryable() {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.maxRetries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.WarnContext(ctx, "Retrying Google Places request", "path", path, "retry_in", next, "error", err)
		}),
	)
	if err != nil {
		slog.ErrorContext(ctx, "Google Places request failed", "path", path, "error", err)
		return newSourceError(err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &places.ExternalSourceError{Service: ServiceName, Cause: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// newSourceError converts a transport failure, preferring the message the
// API returned in its error envelope over the bare HTTP status
func newSourceError(err error) *places.ExternalSourceError {
	var httpErr *httpclient.HTTPError
	if !errors.As(err, &httpErr) {
		return &places.ExternalSourceError{Service: ServiceName, Cause: err}
	}

	cause := err
	if msg := gjson.GetBytes(httpErr.Body, "error.message"); msg.Exists() && msg.String() != "" {
		cause = fmt.Errorf("%s: %w", msg.String(), err)
	}
	return &places.ExternalSourceError{
		Service:    ServiceName,
		StatusCode: httpErr.StatusCode,
		Cause:      cause,
	}
}
