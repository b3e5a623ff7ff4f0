package tracing

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

// sensitive attribute keys are dropped before export.
var sensitiveKeyFragments = []string{
	"password",
	"token",
	"secret",
	"cookie",
	"authorization",
}

// ExtractContext pulls the upstream trace context out of inbound headers.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// SafeAttributes filters out attributes that could carry credentials.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := attrs[:0]
	for _, attr := range attrs {
		key := strings.ToLower(string(attr.Key))
		sensitive := false
		for _, fragment := range sensitiveKeyFragments {
			if strings.Contains(key, fragment) {
				sensitive = true
				break
			}
		}
		if !sensitive {
			out = append(out, attr)
		}
	}
	return out
}

// SafeError strips request payload details before recording on a span.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range sensitiveKeyFragments {
		if strings.Contains(msg, fragment) {
			return errRedacted
		}
	}
	return err
}

type redactedError struct{}

func (redactedError) Error() string { return "redacted" }

var errRedacted = redactedError{}
