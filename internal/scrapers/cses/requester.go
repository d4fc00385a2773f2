package cses

import (
	"context"
	"cses-scraper/internal/components/telemetry"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const report_requester_request = "requester.request"

type Method int

const (
	METHOD_GET Method = iota
	METHOD_POST
)

func (m Method) String() string {
	switch m {
	case METHOD_GET:
		return resty.MethodGet
	case METHOD_POST:
		return resty.MethodPost
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// requester performs single requests on a session, it never returns an
// error: a failed request is reported and yields a nil response.
type requester struct {
	timeout time.Duration
	tel     telemetry.API
}

// Do performs the request with the fixed timeout. A transport error or a
// status code >= 400 gives nil, which callers must treat as "this step
// failed".
func (r requester) Do(
	ctx context.Context,
	session *resty.Client,
	method Method,
	endpoint string,
	headers Headers,
	payload map[string]string,
) *resty.Response {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req := session.R().
		SetContext(ctx).
		SetHeaders(headers.Map())

	var res *resty.Response
	var err error
	switch method {
	case METHOD_GET:
		res, err = req.Get(endpoint)
	case METHOD_POST:
		res, err = req.SetFormData(payload).Post(endpoint)
	default:
		err = fmt.Errorf("unsupported method %s", method)
	}
	if err != nil {
		r.tel.ReportBroken(
			report_requester_request,
			fmt.Errorf("request failed: %w", err),
			method.String(),
			endpoint,
		)
		return nil
	}
	if res.IsError() {
		r.tel.ReportBroken(
			report_requester_request,
			fmt.Errorf("request failed: %s for url: %s", res.Status(), res.Request.URL),
			method.String(),
			endpoint,
		)
		return nil
	}

	return res
}
