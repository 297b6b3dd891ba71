package oteladapters_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/d-sanghavi/library-management/core"
	"github.com/d-sanghavi/library-management/lending"
	"github.com/d-sanghavi/library-management/lending/memstore"
	"github.com/d-sanghavi/library-management/lending/oteladapters"
)

var t0 = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func givenCollector(t *testing.T) (*oteladapters.TracingCollector, *tracetest.InMemoryExporter) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	return oteladapters.NewTracingCollector(provider.Tracer("test")), exporter
}

func Test_TracingCollector_StartAndFinishSpan(t *testing.T) {
	// arrange
	collector, exporter := givenCollector(t)

	// act
	ctx, spanCtx := collector.StartSpan(context.Background(), "lending.borrow_book", map[string]string{"book_id": "5"})
	spanCtx.AddAttribute("user_id", "U1")
	collector.FinishSpan(spanCtx, lending.StatusSuccess, map[string]string{"loan_id": "L1"})

	// assert
	assert.True(t, trace.SpanContextFromContext(ctx).IsValid())

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "lending.borrow_book", spans[0].Name)
	assertSpanHasAttribute(t, spans[0], "book_id", "5")
	assertSpanHasAttribute(t, spans[0], "user_id", "U1")
	assertSpanHasAttribute(t, spans[0], "loan_id", "L1")
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
}

func Test_TracingCollector_StatusMapping(t *testing.T) {
	testCases := []struct {
		status       string
		expectedCode codes.Code
	}{
		{lending.StatusSuccess, codes.Ok},
		{lending.StatusRejected, codes.Ok},
		{lending.StatusConflict, codes.Error},
		{lending.StatusError, codes.Error},
		{"something_else", codes.Unset},
	}

	for _, tc := range testCases {
		t.Run(tc.status, func(t *testing.T) {
			collector, exporter := givenCollector(t)

			_, spanCtx := collector.StartSpan(context.Background(), "op", nil)
			collector.FinishSpan(spanCtx, tc.status, nil)

			spans := exporter.GetSpans()
			require.Len(t, spans, 1)
			assert.Equal(t, tc.expectedCode, spans[0].Status.Code)
		})
	}
}

func Test_TracingCollector_RejectedKeepsOutcomeAsAttribute(t *testing.T) {
	collector, exporter := givenCollector(t)

	_, spanCtx := collector.StartSpan(context.Background(), "op", nil)
	collector.FinishSpan(spanCtx, lending.StatusRejected, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assertSpanHasAttribute(t, spans[0], lending.LabelStatus, lending.StatusRejected)
}

func Test_TracingCollector_IgnoresForeignSpanContext(t *testing.T) {
	collector, exporter := givenCollector(t)

	collector.FinishSpan(foreignSpan{}, lending.StatusSuccess, nil)

	assert.Empty(t, exporter.GetSpans())
}

func Test_TracingCollector_NestsSpansThroughContext(t *testing.T) {
	collector, exporter := givenCollector(t)

	ctx, parent := collector.StartSpan(context.Background(), "parent", nil)
	_, child := collector.StartSpan(ctx, "child", nil)
	collector.FinishSpan(child, lending.StatusSuccess, nil)
	collector.FinishSpan(parent, lending.StatusSuccess, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "child", spans[0].Name)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
	assert.Equal(t, spans[1].SpanContext.TraceID(), spans[0].SpanContext.TraceID())
}

func Test_Engine_WithTracing_EmitsSpanPerOperation(t *testing.T) {
	// arrange
	ctx := context.Background()
	collector, exporter := givenCollector(t)

	store := memstore.New()
	require.NoError(t, store.InsertBook(ctx, core.Book{ID: "5", Title: "1984", Availability: core.Available}))
	engine, err := lending.NewEngine(store, lending.WithTracing(collector))
	require.NoError(t, err)

	// act
	_, err = engine.BorrowBook(ctx, "5", "U1", t0)
	require.NoError(t, err)
	_, err = engine.BorrowBook(ctx, "5", "U2", t0)
	require.ErrorIs(t, err, core.ErrNotAvailable)

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	for _, span := range spans {
		assert.Equal(t, "lending.borrow_book", span.Name)
		assertSpanHasAttribute(t, span, "book_id", "5")
		assert.Equal(t, codes.Ok, span.Status.Code)
	}
	assertSpanHasAttribute(t, spans[1], lending.LabelKind, string(core.KindNotAvailable))
}

type foreignSpan struct{}

func (foreignSpan) SetStatus(string)            {}
func (foreignSpan) AddAttribute(string, string) {}

func assertSpanHasAttribute(t *testing.T, span tracetest.SpanStub, key, expectedValue string) {
	t.Helper()

	found := false
	for _, attr := range span.Attributes {
		if attr.Key == attribute.Key(key) && attr.Value.AsString() == expectedValue {
			found = true
			break
		}
	}

	assert.True(t, found, "span should have attribute %s=%s", key, expectedValue)
}
