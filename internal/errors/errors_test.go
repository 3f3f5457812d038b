package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	reported []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) { r.reported = append(r.reported, ee) }
func (r *recordingReporter) IsEnabled() bool                { return true }

func TestBuild_Defaults(t *testing.T) {
	ee := New(fmt.Errorf("boom")).Build()

	assert.Equal(t, "boom", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.Component)
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.Timestamp.IsZero())
}

func TestBuild_ContextAndCategory(t *testing.T) {
	ee := Newf("upstream said %s", "no").
		Component("lookup").
		Category(CategoryUpstream).
		Context("provider", "places").
		Build()

	assert.Equal(t, "lookup", ee.Component)
	assert.True(t, IsCategory(ee, CategoryUpstream))
	assert.Equal(t, "places", ee.GetContext()["provider"])
	assert.Equal(t, PriorityMedium, ee.EffectivePriority())
}

func TestBuild_InheritsWrappedCategory(t *testing.T) {
	inner := New(NewStd("duplicate")).Category(CategoryConflict).Build()
	outer := New(fmt.Errorf("register: %w", inner)).Component("datastore").Build()

	assert.Equal(t, CategoryConflict, outer.Category)
	assert.Equal(t, CategoryConflict, CategoryOf(fmt.Errorf("wrapped again: %w", outer)))
}

func TestIs_MatchesSentinelThroughEnhancedError(t *testing.T) {
	sentinel := NewStd("sentinel")
	ee := New(fmt.Errorf("context: %w", sentinel)).Category(CategoryValidation).Build()

	assert.True(t, Is(ee, sentinel))
	assert.True(t, Is(ee, &EnhancedError{Category: CategoryValidation}))
	assert.False(t, Is(ee, &EnhancedError{Category: CategoryUpstream}))
}

func TestPriority_InvalidFallsBackToMedium(t *testing.T) {
	ee := New(NewStd("x")).Priority("urgent").Build()
	assert.Equal(t, PriorityMedium, ee.Priority)
}

func TestTelemetryReporter_ReceivesBuiltErrors(t *testing.T) {
	rec := &recordingReporter{}
	SetTelemetryReporter(rec)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	New(NewStd("model missing")).Category(CategoryModelLoad).Build()

	require.Len(t, rec.reported, 1)
	assert.Equal(t, PriorityCritical, rec.reported[0].EffectivePriority())
}

func TestSentryReporter_DisabledIsNoop(t *testing.T) {
	reporter := NewSentryReporter(false)
	ee := New(NewStd("db down")).Category(CategoryDatabase).Build()

	reporter.ReportError(ee)
	assert.False(t, ee.IsReported())
}

func TestScrubMessage(t *testing.T) {
	msg := ScrubMessage("GET https://maps.googleapis.com/maps/api/place/textsearch/json?query=x&key=secret failed")
	assert.NotContains(t, msg, "secret")
	assert.Contains(t, msg, "textsearch/json?[REDACTED]")

	msg = ScrubMessage("config api_key=abcdef is invalid")
	assert.NotContains(t, msg, "abcdef")
}
