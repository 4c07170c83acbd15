package telemetry

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	report_resty_request  = "resty.request"
	report_resty_response = "resty.response"
)

type instrumentResty struct {
	tel       API
	tracer    trace.Tracer
	idcounter *uint64
}

// InstrumentResty reports every request made by the client through `tel` and
// wraps it in a span of the tracer named `tracerName`.
func InstrumentResty(client *resty.Client, tracerName string, tel API) {
	var idcounter uint64
	i := instrumentResty{
		tel:       tel,
		tracer:    otel.Tracer(tracerName),
		idcounter: &idcounter,
	}

	client.OnBeforeRequest(i.onBeforeRequest)
	client.OnAfterResponse(i.onAfterResponse)
	client.OnError(i.onError)
}

type reqCtxKeyType int

var reqCtxKey reqCtxKeyType

type reqCtx struct {
	id        uint64
	startTime time.Time
	// parent is the request context before any attempt span was added.
	parent context.Context
}

// onBeforeRequest runs once per attempt. A retry ends the span of the
// previous attempt, which onError never sees after a transport error, and
// starts its own span under the original parent.
func (i instrumentResty) onBeforeRequest(_ *resty.Client, req *resty.Request) error {
	start := time.Now()
	parent := req.Context()

	prev, retry := parent.Value(reqCtxKey).(reqCtx)
	if retry {
		trace.SpanFromContext(parent).End()
		parent = prev.parent
	}

	ctx, _ := i.tracer.Start(
		parent,
		req.Method,
		trace.WithAttributes(attribute.Int("http.resend_count", req.Attempt)),
	)

	id := prev.id
	if !retry {
		id = atomic.AddUint64(i.idcounter, 1)
	}
	ctx = context.WithValue(ctx, reqCtxKey, reqCtx{
		id:        id,
		startTime: start,
		parent:    parent,
	})
	i.tel.ReportDebug(report_resty_request, id, req.Method, req.URL, req.Attempt)

	req.SetContext(ctx)
	return nil
}

func (i instrumentResty) onAfterResponse(_ *resty.Client, res *resty.Response) error {
	ctx := res.Request.Context()
	span := trace.SpanFromContext(ctx)
	defer span.End()

	span.SetAttributes(
		attribute.String("http.url", res.Request.URL),
		attribute.Int("http.status_code", res.StatusCode()),
	)
	if res.IsError() {
		span.SetStatus(codes.Error, res.Status())
	}

	rc, ok := ctx.Value(reqCtxKey).(reqCtx)
	if !ok {
		return nil
	}
	i.tel.ReportDebug(
		report_resty_response,
		rc.id,
		time.Since(rc.startTime).String(),
		res.Status(),
	)
	return nil
}

func (i instrumentResty) onError(req *resty.Request, err error) {
	ctx := req.Context()
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.End()

	var duration time.Duration
	if rc, ok := ctx.Value(reqCtxKey).(reqCtx); ok {
		duration = time.Since(rc.startTime)
	}
	i.tel.ReportWarning(
		report_resty_response,
		err,
		req.Method,
		req.URL,
		duration,
	)
}
