package telemetry

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	report_resty_request  = "resty.request"
	report_resty_response = "resty.response"
	report_resty_error    = "resty.error"
)

type requestIdKey struct{}

// restyReporter numbers the requests of one client so that a request and
// its response can be matched up in the debug log.
type restyReporter struct {
	tel  API
	next *atomic.Uint64
}

// InstrumentResty reports every request, response and transport error made
// by the client as debug reports. Failures are left for the caller to
// report with more context.
func InstrumentResty(client *resty.Client, tel API) {
	r := restyReporter{tel: tel, next: &atomic.Uint64{}}
	client.OnBeforeRequest(r.request)
	client.OnAfterResponse(r.response)
	client.OnError(r.failure)
}

func requestId(req *resty.Request) uint64 {
	id, _ := req.Context().Value(requestIdKey{}).(uint64)
	return id
}

func (r restyReporter) request(_ *resty.Client, req *resty.Request) error {
	id := r.next.Add(1)
	req.SetContext(context.WithValue(req.Context(), requestIdKey{}, id))
	r.tel.ReportDebug(report_resty_request, id, req.Method, req.URL)
	return nil
}

func (r restyReporter) response(_ *resty.Client, res *resty.Response) error {
	r.tel.ReportDebug(
		report_resty_response,
		requestId(res.Request),
		res.Status(),
		res.Time().String(),
	)
	return nil
}

func (r restyReporter) failure(req *resty.Request, err error) {
	var elapsed time.Duration
	if !req.Time.IsZero() {
		elapsed = time.Since(req.Time)
	}
	r.tel.ReportDebug(
		report_resty_error,
		requestId(req),
		req.Method,
		req.URL,
		elapsed.String(),
		err,
	)
}
