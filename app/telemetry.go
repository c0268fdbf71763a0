package app

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// Instruments records application-level execution and block metrics on an
// OpenTelemetry meter. A nil *Instruments records nothing.
type Instruments struct {
	txCounter   metric.Int64Counter
	txDuration  metric.Float64Histogram
	blockHeight metric.Int64Gauge
	pending     metric.Int64Gauge
}

// NewInstruments creates the application instruments on meter.
func NewInstruments(meter metric.Meter) (*Instruments, error) {
	txCounter, err := meter.Int64Counter(
		"wheel.tx.total",
		metric.WithDescription("Total number of executed transactions"),
		metric.WithUnit("{transaction}"),
	)
	if err != nil {
		return nil, err
	}

	txDuration, err := meter.Float64Histogram(
		"wheel.tx.processing_time",
		metric.WithDescription("Transaction processing time"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	blockHeight, err := meter.Int64Gauge(
		"wheel.block.height",
		metric.WithDescription("Last committed block height"),
		metric.WithUnit("{block}"),
	)
	if err != nil {
		return nil, err
	}

	pending, err := meter.Int64Gauge(
		"wheel.mxe.pending",
		metric.WithDescription("Computations not yet finalized at commit"),
		metric.WithUnit("{computation}"),
	)
	if err != nil {
		return nil, err
	}

	return &Instruments{
		txCounter:   txCounter,
		txDuration:  txDuration,
		blockHeight: blockHeight,
		pending:     pending,
	}, nil
}

func (i *Instruments) recordExecution(ctx context.Context, name string, duration time.Duration, err error) {
	_, span := otel.Tracer(AppName).Start(ctx, "transaction.execute")
	span.SetAttributes(attribute.String("tx.type", name))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	if i == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failed"
	}
	attrs := metric.WithAttributes(
		attribute.String("tx.type", name),
		attribute.String("tx.status", status),
	)
	i.txCounter.Add(ctx, 1, attrs)
	i.txDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (i *Instruments) recordCommit(ctx context.Context, height int64, pending int) {
	if i == nil {
		return
	}
	i.blockHeight.Record(ctx, height)
	i.pending.Record(ctx, int64(pending))
}
