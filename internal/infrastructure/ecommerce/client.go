package ecommerce

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/shopsync/backend/internal/domain/integration"
	"github.com/shopsync/backend/internal/infrastructure/telemetry"
)

const (
	// maxResponseSize limits the response body size to prevent memory exhaustion
	maxResponseSize = 10 * 1024 * 1024
	// maxErrorSnippet is how much of an error body is kept in the error message
	maxErrorSnippet = 256
	// defaultTimeoutSeconds is the HTTP timeout when none is configured
	defaultTimeoutSeconds = 30
)

// apiClient performs HTTP calls and converts every failure into an
// *integration.PlatformError
type apiClient struct {
	platform   integration.PlatformCode
	httpClient *http.Client
}

func newAPIClient(platform integration.PlatformCode, timeoutSeconds int) *apiClient {
	if timeoutSeconds <= 0 {
		timeoutSeconds = defaultTimeoutSeconds
	}
	return &apiClient{
		platform:   platform,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second},
	}
}

// do sends req and returns the body of a 2xx response. The request is first
// admitted by the request gate of ctx and recorded once attempted; each
// attempt is traced as a client span named after the operation.
func (c *apiClient) do(ctx context.Context, op string, req *http.Request) ([]byte, error) {
	done, err := integration.MeterRequest(ctx, c.platform)
	if err != nil {
		return nil, integration.NewTransientError(c.platform, op, err)
	}
	defer done()

	ctx, span := telemetry.StartSpan(ctx, "ecommerce."+op,
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute(telemetry.SpanAttrPlatform, string(c.platform)),
		telemetry.WithAttribute(telemetry.SpanAttrOperation, op),
	)
	defer span.End()

	body, err := c.send(ctx, op, req.WithContext(ctx), span)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetOK(span)
	return body, nil
}

func (c *apiClient) send(ctx context.Context, op string, req *http.Request, span trace.Span) ([]byte, error) {
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, integration.NewTransientError(c.platform, op, ctx.Err())
		}
		return nil, integration.NewTransientError(c.platform, op, fmt.Errorf("%w: %v", integration.ErrPlatformUnavailable, err))
	}
	defer resp.Body.Close()
	telemetry.SetAttribute(span, telemetry.SpanAttrHTTPStatus, resp.StatusCode)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, integration.NewTransientError(c.platform, op, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode >= 400 {
		kind := integration.ClassifyHTTPStatus(resp.StatusCode)
		base := integration.ErrPlatformRequestFailed
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			base = integration.ErrPlatformRateLimited
		case kind == integration.FailureAuth:
			base = integration.ErrPlatformAuthFailed
		case kind == integration.FailureTransient:
			base = integration.ErrPlatformUnavailable
		}
		return nil, &integration.PlatformError{
			Kind:       kind,
			Platform:   c.platform,
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    snippet(body),
			Err:        base,
		}
	}
	return body, nil
}

// apiError builds the error of a 2xx response carrying a platform error code
func (c *apiClient) apiError(op string, kind integration.FailureKind, code, message string) error {
	var base error
	switch kind {
	case integration.FailureAuth:
		base = integration.ErrPlatformAuthFailed
	case integration.FailureTransient:
		base = integration.ErrPlatformUnavailable
	default:
		base = integration.ErrPlatformRequestFailed
	}
	return &integration.PlatformError{
		Kind:     kind,
		Platform: c.platform,
		Op:       op,
		Code:     code,
		Message:  message,
		Err:      base,
	}
}

// decodeError wraps a malformed payload as a permanent failure
func (c *apiClient) decodeError(op string, err error) error {
	return integration.NewPermanentError(c.platform, op, errors.Join(integration.ErrPlatformInvalidResponse, err))
}

func snippet(body []byte) string {
	if len(body) > maxErrorSnippet {
		return string(body[:maxErrorSnippet])
	}
	return string(body)
}

func hmacSHA256Hex(key, message string) string {
	h := hmac.New(sha256.New, []byte(key))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// requireCredential rejects calls without a usable credential
func requireCredential(platform integration.PlatformCode, op string, cred *integration.Credential) error {
	if cred == nil || cred.AccessToken == "" {
		return integration.NewAuthError(platform, op, integration.ErrCredentialNotFound)
	}
	if cred.ShopID == "" {
		return integration.NewPermanentError(platform, op, integration.ErrPlatformNotConfigured)
	}
	if cred.IsExpired(time.Now()) {
		return integration.NewAuthError(platform, op, integration.ErrCredentialExpired)
	}
	return nil
}
