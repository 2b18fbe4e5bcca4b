package observability

import (
	"context"
	"fmt"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/kraal-market/client/internal/platform/observability")

// StartClientSpan begins a client span for an outgoing API request. The span
// uses the global tracer provider, which is a no-op unless the embedding
// program installs an exporter.
func StartClientSpan(ctx context.Context, method string, u *url.URL) (context.Context, trace.Span) {
	name := "unknown"
	if u != nil {
		path := u.Path
		if path == "" {
			path = "/"
		}
		name = fmt.Sprintf("%s %s", SanitizeMethod(method), SanitizeRoute(path))
	}

	ctx, span := tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(clientSpanAttributes(method, u)...)
	return ctx, span
}

// EndClientSpan records the response status on the span and closes it.
func EndClientSpan(span trace.Span, status int, err error) {
	if span == nil {
		return
	}
	if status > 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case status >= 400:
		span.SetStatus(codes.Error, fmt.Sprintf("http status %d", status))
	default:
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func clientSpanAttributes(method string, u *url.URL) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("http.request.method", SanitizeMethod(method)),
	}
	if u == nil {
		return attrs
	}
	if scheme := u.Scheme; scheme != "" {
		attrs = append(attrs, attribute.String("url.scheme", scheme))
	}
	if path := u.Path; path != "" {
		attrs = append(attrs, attribute.String("url.path", SanitizeRoute(path)))
	}
	if host := u.Host; host != "" {
		attrs = append(attrs, attribute.String("server.address", host))
	}
	return attrs
}
