package cses

import (
	"cses-scraper/internal/components/telemetry"
	"cses-scraper/lib/restyutil"
	"net/http/cookiejar"
	"net/url"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

type sessionOptions struct {
	baseUrl          *url.URL
	timeout          time.Duration
	cloudflareBypass bool
	dumpOutput       restyutil.InstrumentOutput
}

const maxRedirects = 10

// newSession creates an http client with its own cookie jar, a session must
// never be shared between two credential pairs.
func newSession(opts sessionOptions, tel telemetry.API) (*resty.Client, error) {
	httpClient := resty.New()
	httpClient.SetBaseURL(opts.baseUrl.String())
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	if opts.cloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}

	httpClient.SetRedirectPolicy(
		resty.FlexibleRedirectPolicy(maxRedirects),
		resty.DomainCheckRedirectPolicy(opts.baseUrl.Hostname()),
	)
	httpClient.SetTimeout(opts.timeout)

	telemetry.InstrumentResty(httpClient, tel)
	restyutil.InstrumentClient(httpClient, tracer, opts.dumpOutput)

	return httpClient, nil
}
