package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestInitTracing_Disabled(t *testing.T) {
	startSpan, shutdown, err := InitTracing(TracingConfig{Enabled: false}, NewNoopLogger())

	assert.NoError(t, err)
	assert.NotNil(t, startSpan)
	shutdown()
}

func TestNoopStartSpan(t *testing.T) {
	ctx, span := NoopStartSpan(context.Background(), "CaseService.Update",
		attribute.String("case.id", "c-1"))

	assert.NotNil(t, ctx)
	assert.NotNil(t, span)

	span.SetAttribute("verdict", "mergeable")
	span.SetAttribute("attempt", 2)
	span.AddEvent("conflict_detected", map[string]interface{}{"fields": 1})
	span.SetStatus(2, "hard conflict")
	span.RecordError(context.Canceled)
	span.End()
}
