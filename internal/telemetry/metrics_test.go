package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewMetrics_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.BookingOps.WithLabelValues("create", OutcomeOK).Inc()
	m.BookingOps.WithLabelValues("create", OutcomeConflict).Add(2)
	m.AllocationRetries.Inc()
	m.AllocationDuration.Observe(0.01)
	m.AvailabilityRequests.WithLabelValues("DAILY", OutcomeOK).Inc()
	m.AvailabilityCache.WithLabelValues("hit").Inc()

	if got := testutil.ToFloat64(m.BookingOps.WithLabelValues("create", OutcomeConflict)); got != 2 {
		t.Fatalf("conflict counter = %v, want 2", got)
	}
	if got := testutil.CollectAndCount(m.BookingOps); got != 2 {
		t.Fatalf("booking series = %d, want 2", got)
	}

	n, err := testutil.GatherAndCount(reg)
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 6 {
		t.Fatalf("gathered series = %d, want 6", n)
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("registering twice on one registry should panic")
		}
	}()
	NewMetrics(reg)
}

func TestSpan_RecordsError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	tracer := tp.Tracer("test")

	run := func() (err error) {
		_, span := Start(context.Background(), tracer, "op")
		defer span.End(&err)
		return errors.New("boom")
	}
	_ = run()

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	if spans[0].Status().Code != codes.Error || spans[0].Status().Description != "boom" {
		t.Fatalf("status = %+v", spans[0].Status())
	}
}
