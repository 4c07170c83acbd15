package dom6

import (
	"bytes"
	"context"
	"fmt"
	"ironfly/internal/components/assert"
	"ironfly/internal/components/telemetry"
	"math"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_client_fetch = "client.fetch"
)

const (
	DefaultTimeout           = 15 * time.Second
	DefaultRequestsPerSecond = 2
	DefaultRetries           = 2
	userAgent                = "ironfly (+https://github.com/ironfly)"
)

type Options struct {
	// zero means DefaultTimeout
	Timeout time.Duration
	// zero means DefaultRequestsPerSecond, negative disables the limit
	RequestsPerSecond float64
	// retries on network errors and 5xx responses, negative disables them
	Retries       int
	RetryWaitTime time.Duration
}

// Client fetches and parses status pages.
type Client struct {
	http *resty.Client
	tel  telemetry.API
}

func NewClient(opts Options, tel telemetry.API) Client {
	assert.NotNil(tel)
	tel = telemetry.NewScopedAPI("dom6", tel)

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.RequestsPerSecond == 0 {
		opts.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if opts.Retries == 0 {
		opts.Retries = DefaultRetries
	}

	httpClient := resty.New()
	httpClient.SetHeader("user-agent", userAgent)
	httpClient.SetTimeout(opts.Timeout)
	if opts.Retries > 0 {
		httpClient.SetRetryCount(opts.Retries)
		if opts.RetryWaitTime > 0 {
			httpClient.SetRetryWaitTime(opts.RetryWaitTime)
		}
		httpClient.AddRetryCondition(func(res *resty.Response, err error) bool {
			return err != nil || res == nil || res.StatusCode() >= http.StatusInternalServerError
		})
	}

	limit := rate.Inf
	burst := 1
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
		burst = int(math.Max(1, math.Ceil(opts.RequestsPerSecond)))
	}
	rateLimiter := rate.NewLimiter(limit, burst)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, "ironfly/dom6", tel)

	return Client{
		http: httpClient,
		tel:  tel,
	}
}

// Fetch downloads and parses the status page at url. It never returns an
// error, every failure is classified in the outcome.
func (c Client) Fetch(ctx context.Context, url string) Outcome {
	res, err := c.http.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		c.tel.ReportWarning(report_client_fetch, err, url)
		return failed(OutcomeTransient, fmt.Errorf("get %s: %w", url, err))
	}

	switch {
	case res.StatusCode() == http.StatusNotFound:
		return failed(OutcomeNotFound, fmt.Errorf("get %s: %s", url, res.Status()))
	case res.IsError():
		c.tel.ReportWarning(report_client_fetch, res.Status(), url)
		return failed(OutcomeTransient, fmt.Errorf("get %s: %s", url, res.Status()))
	}

	snapshot, err := Parse(bytes.NewReader(res.Body()))
	if err != nil {
		c.tel.ReportWarning(report_client_fetch, err, url)
		return failed(OutcomeParseFailure, fmt.Errorf("parse %s: %w", url, err))
	}
	snapshot.URL = url

	return ok(snapshot)
}
