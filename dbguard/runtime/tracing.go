package runtime

import (
	"context"
	"errors"
	"fmt"

	constant "github.com/salespulse/lib-dbguard/dbguard/constants"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrPanic is recorded on spans that observed a recovered panic.
var ErrPanic = errors.New("panic")

// PanicSpanEventName is the span event added for each recovered panic.
const PanicSpanEventName = constant.EventPanicRecovered

// maxStackAttributeLength keeps span attributes under typical exporter limits.
const maxStackAttributeLength = 4096

// RecordPanicToSpan adds a panic event to the span in ctx and marks it failed.
func RecordPanicToSpan(ctx context.Context, panicValue any, stack []byte, goroutineName string) {
	RecordPanicToSpanWithComponent(ctx, panicValue, stack, "", goroutineName)
}

// RecordPanicToSpanWithComponent is RecordPanicToSpan with a component attribute.
func RecordPanicToSpanWithComponent(ctx context.Context, panicValue any, stack []byte, component, goroutineName string) {
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	stackStr := string(stack)
	if len(stackStr) > maxStackAttributeLength {
		stackStr = stackStr[:maxStackAttributeLength]
	}

	attrs := []attribute.KeyValue{
		attribute.String(constant.AttrPrefixPanic+"value", fmt.Sprintf("%v", panicValue)),
		attribute.String(constant.AttrPrefixPanic+"stack", stackStr),
		attribute.String(constant.AttrPrefixPanic+"goroutine_name", goroutineName),
	}

	if component != "" {
		attrs = append(attrs, attribute.String(constant.AttrPrefixPanic+"component", component))
	}

	span.AddEvent(PanicSpanEventName, trace.WithAttributes(attrs...))
	span.RecordError(fmt.Errorf("%w: %v", ErrPanic, panicValue))
	span.SetStatus(codes.Error, "panic recovered in "+goroutineName)
}
