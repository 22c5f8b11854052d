// Package client provides the HTTP client for the EDSN EAN-codeboek registry.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ean_lookup_backend/internal/meteringpoint/transport"
	"ean_lookup_backend/platform/apperr"
	"ean_lookup_backend/platform/config"
	"ean_lookup_backend/platform/logger"

	"golang.org/x/time/rate"
)

const (
	ecbInfoSetPath = "/ecbinfoset"
	userAgent      = "ean-lookup/1.0"
	apiKeyHeader   = "X-API-Key"
	maxBodyBytes   = 4 << 20
	opGet          = "registry.get"
)

// Options configures a Client. Zero values fall back to the defaults of the
// public EDSN gateway: 10s timeout, no retries, no throttling.
type Options struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	RateLimit    float64 // requests per second, 0 disables throttling
}

// OptionsFromConfig maps the registry settings onto client options.
func OptionsFromConfig(cfg config.RegistryConfig) Options {
	return Options{
		BaseURL:      cfg.GetRegistryBaseURL(),
		APIKey:       cfg.GetRegistryAPIKey(),
		Timeout:      cfg.GetRegistryTimeout(),
		MaxRetries:   cfg.GetRegistryMaxRetries(),
		RetryBackoff: cfg.GetRegistryRetryBackoff(),
		RateLimit:    cfg.GetRegistryRateLimit(),
	}
}

// StatusError records the HTTP status of a failed registry response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("registry status %d", e.Code)
}

// Client is the HTTP client for the metering-point registry.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	timeout      time.Duration
	maxRetries   int
	retryBackoff time.Duration
	limiter      *rate.Limiter
	log          *logger.Logger
}

// New creates a new registry client.
func New(opts Options, log *logger.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = config.DefaultRegistryBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 500 * time.Millisecond
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	return &Client{
		httpClient:   &http.Client{Timeout: opts.Timeout},
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		apiKey:       opts.APIKey,
		timeout:      opts.Timeout,
		maxRetries:   opts.MaxRetries,
		retryBackoff: opts.RetryBackoff,
		limiter:      limiter,
		log:          log,
	}
}

// GetMeteringPoints fetches the metering points registered at addr. An empty
// product asks for every connection type at once. No points is not an error.
func (c *Client) GetMeteringPoints(ctx context.Context, addr transport.AddressRecord, product transport.Product) ([]transport.MeteringPoint, error) {
	params := url.Values{}
	if product != "" {
		params.Set("product", string(product))
	}
	params.Set("postalCode", addr.PostalCode)
	params.Set("streetNumber", strconv.Itoa(addr.StreetNumber))
	if addr.StreetNumberAddition != "" {
		params.Set("streetNumberAddition", addr.StreetNumberAddition)
	}

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, ecbInfoSetPath, params.Encode())

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt*attempt) * c.retryBackoff
			c.log.Warn("retrying registry request", "attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, apperr.Network("registry request canceled: "+ctx.Err().Error(), ctx.Err()).WithOp(opGet)
			case <-time.After(delay):
			}
		}

		points, err := c.doRequest(ctx, reqURL, product, addr.PostalCode)
		if err == nil {
			return points, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
	}

	return nil, lastErr
}

func (c *Client) doRequest(ctx context.Context, reqURL string, product transport.Product, postalCode string) ([]transport.MeteringPoint, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, apperr.Network("registry request canceled: "+err.Error(), err).WithOp(opGet)
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "build registry request: "+err.Error(), err).WithOp(opGet)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	latencyMs := float64(time.Since(start).Milliseconds())

	switch resp.StatusCode {
	case http.StatusOK:
		// decode below
	case http.StatusNotFound:
		// No metering points registered at this address - not an error
		c.log.RegistryCall(string(product), postalCode, resp.StatusCode, latencyMs, 0)
		return []transport.MeteringPoint{}, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		c.log.Error("registry rejected credentials", "status", resp.StatusCode)
		return nil, apperr.Wrap(apperr.KindUpstream,
			fmt.Sprintf("registry rejected credentials (HTTP %d)", resp.StatusCode),
			&StatusError{Code: resp.StatusCode}).WithOp(opGet)
	default:
		c.log.Warn("registry upstream error", "status", resp.StatusCode, "postal_code", postalCode)
		return nil, apperr.Wrap(apperr.KindUpstream,
			fmt.Sprintf("registry returned HTTP %d", resp.StatusCode),
			&StatusError{Code: resp.StatusCode}).WithOp(opGet)
	}

	var payload ecbInfoSetResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&payload); err != nil {
		c.log.Warn("registry decode failed", "error", err)
		return nil, apperr.Wrap(apperr.KindUpstream, "malformed registry response: "+err.Error(), err).WithOp(opGet)
	}

	points := make([]transport.MeteringPoint, 0, len(payload.MeteringPoints))
	for _, api := range payload.MeteringPoints {
		point, ok := api.toTransport()
		if !ok {
			c.log.Debug("skipping unusable metering point", "ean", api.EAN, "product", api.Product)
			continue
		}
		points = append(points, point)
	}

	c.log.RegistryCall(string(product), postalCode, resp.StatusCode, latencyMs, len(points))
	return points, nil
}

// transportError classifies a failed round trip. The parent context decides
// between cancellation and our own per-request deadline.
func (c *Client) transportError(parent context.Context, err error) error {
	if parent.Err() != nil {
		return apperr.Network("registry request canceled: "+parent.Err().Error(), err).WithOp(opGet)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		c.log.Warn("registry request timed out", "timeout", c.timeout)
		return apperr.Network(fmt.Sprintf("registry request timed out after %s", c.timeout), err).WithOp(opGet)
	}

	c.log.Warn("registry request failed", "error", err)
	return apperr.Network("registry request failed: "+rootCause(err), err).WithOp(opGet)
}

// rootCause strips the *url.Error wrapper so the message does not repeat the
// full request URL.
func rootCause(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err.Error()
	}
	return err.Error()
}

// retryable reports whether a failed attempt may be repeated: transport
// failures, throttling and server-side errors only.
func retryable(err error) bool {
	switch apperr.GetKind(err) {
	case apperr.KindNetwork:
		return !errors.Is(err, context.Canceled)
	case apperr.KindUpstream:
		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			return false
		}
		return statusErr.Code == http.StatusTooManyRequests || statusErr.Code >= 500
	default:
		return false
	}
}

// ecbInfoSetResponse is the envelope returned by the ecbinfoset endpoint.
type ecbInfoSetResponse struct {
	MeteringPoints []apiMeteringPoint `json:"meteringPoints"`
}

type apiAddress struct {
	PostalCode           string `json:"postalCode"`
	StreetNumberAddition string `json:"streetNumberAddition"`
	Street               string `json:"street"`
	City                 string `json:"city"`
}

// apiMeteringPoint is the raw metering point as sent by the registry.
type apiMeteringPoint struct {
	EAN                  string     `json:"ean"`
	Product              string     `json:"product"`
	BAGID                string     `json:"bagId"`
	SpecialMeteringPoint bool       `json:"specialMeteringPoint"`
	GridOperatorEAN      string     `json:"gridOperatorEan"`
	Address              apiAddress `json:"address"`
}

func (a apiMeteringPoint) toTransport() (transport.MeteringPoint, bool) {
	ean := strings.TrimSpace(a.EAN)
	product := transport.Product(strings.ToUpper(strings.TrimSpace(a.Product)))
	if ean == "" || !product.Valid() {
		return transport.MeteringPoint{}, false
	}

	return transport.MeteringPoint{
		EAN:                  ean,
		Product:              product,
		BAGID:                strings.TrimSpace(a.BAGID),
		SpecialMeteringPoint: a.SpecialMeteringPoint,
		GridOperatorEAN:      a.GridOperatorEAN,
		Address: transport.PointAddress{
			PostalCode:           a.Address.PostalCode,
			StreetNumberAddition: a.Address.StreetNumberAddition,
			Street:               a.Address.Street,
			City:                 a.Address.City,
		},
	}, true
}
