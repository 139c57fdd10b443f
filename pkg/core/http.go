package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/NERVsystems/ecoroute/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultClient provides a pre-configured HTTP client for upstream providers
var DefaultClient = &http.Client{
	Timeout: 30 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	},
}

// Do performs a single traced upstream request. Any status other than 200 is
// returned as a ServiceError and the response body is closed. Requests are
// never retried.
func Do(ctx context.Context, service string, req *http.Request, client *http.Client) (*http.Response, error) {
	if client == nil {
		client = DefaultClient
	}

	ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("http.request %s %s", req.Method, req.URL.Host),
		trace.WithAttributes(
			attribute.String(tracing.AttrHTTPMethod, req.Method),
			attribute.String("http.host", req.URL.Host),
			attribute.String("http.path", req.URL.Path),
			attribute.String(tracing.AttrServiceName, service),
		),
	)
	defer span.End()

	// The query string carries the API key, so only the path is logged.
	logger := slog.Default().With(
		"service", service,
		"method", req.Method,
		"host", req.URL.Host,
		"path", req.URL.Path,
	)

	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		logger.Error("request failed", "error", err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, NewError(ErrNetworkError, fmt.Sprintf("%s request failed", service)).
			WithGuidance("The provider could not be reached.")
	}

	span.SetAttributes(attribute.Int(tracing.AttrHTTPStatusCode, resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		span.SetStatus(codes.Error, resp.Status)
		logger.Error("request returned error status", "status", resp.StatusCode)
		if err := resp.Body.Close(); err != nil {
			logger.Warn("failed to close response body", "error", err)
		}
		return nil, ServiceError(service, resp.StatusCode, fmt.Sprintf("HTTP status %d", resp.StatusCode))
	}

	span.SetStatus(codes.Ok, "")
	logger.Debug("request successful",
		"status", resp.StatusCode,
		"content_length", resp.ContentLength,
	)
	return resp, nil
}
