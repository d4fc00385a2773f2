package cses

import (
	"context"
	"cses-scraper/internal/components/assert"
	"cses-scraper/internal/components/chrono"
	"cses-scraper/internal/components/telemetry"
	"cses-scraper/lib/restyutil"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = telemetry.Tracer("cses-scraper.internal.scrapers.cses")

const (
	report_scraper_login_page    = "scraper.login-page"
	report_scraper_login         = "scraper.login"
	report_scraper_profile       = "scraper.profile"
	report_scraper_scraped_count = "scraper.scraped-count"
)

const (
	DefaultBaseUrl = "https://cses.fi"
	DefaultTimeout = 60 * time.Second
	DefaultDelay   = time.Second

	loginPath = "/login"
)

type Options struct {
	BaseUrl string
	// Headers is the base header set, DefaultHeaders is used when empty.
	Headers    Headers
	Timeout    time.Duration
	Delay      time.Duration
	Extraction Extraction
	// CloudflareBypass swaps the session transport for one with a browser
	// like TLS fingerprint.
	CloudflareBypass bool
	// DumpOutput receives full http messages while debug logging is on, it
	// may be nil.
	DumpOutput restyutil.InstrumentOutput
}

func DefaultOptions() Options {
	return Options{
		BaseUrl:          DefaultBaseUrl,
		Timeout:          DefaultTimeout,
		Delay:            DefaultDelay,
		Extraction:       EXTRACT_POSITION,
		CloudflareBypass: true,
	}
}

// Scraper logs into cses with each credential pair in turn and scrapes the
// details table of the user's profile.
type Scraper struct {
	baseStr    string
	headers    Headers
	extraction Extraction
	delay      time.Duration
	session    sessionOptions
	requester  requester
	time       chrono.API
	tel        telemetry.API
}

func NewScraper(opts Options, time chrono.API, tel telemetry.API) (Scraper, error) {
	assert.NotNil(time)
	assert.NotNil(tel)

	tel = telemetry.NewScopedAPI("cses_scraper", tel)

	baseStr := strings.TrimSuffix(opts.BaseUrl, "/")
	if baseStr == "" {
		baseStr = DefaultBaseUrl
	}
	baseUrl, err := url.Parse(baseStr)
	if err != nil {
		return Scraper{}, fmt.Errorf("parse base url: %w", err)
	}
	if baseUrl.Scheme == "" || baseUrl.Host == "" {
		return Scraper{}, fmt.Errorf("base url %q must be absolute", opts.BaseUrl)
	}

	headers := opts.Headers
	if headers.Len() == 0 {
		headers = DefaultHeaders(baseUrl)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	extraction, err := ParseExtraction(string(opts.Extraction))
	if err != nil {
		return Scraper{}, err
	}
	assert.True(opts.Delay >= 0, "negative delay %s", opts.Delay)

	return Scraper{
		baseStr:    baseStr,
		headers:    headers,
		extraction: extraction,
		delay:      opts.Delay,
		session: sessionOptions{
			baseUrl:          baseUrl,
			timeout:          timeout,
			cloudflareBypass: opts.CloudflareBypass,
			dumpOutput:       opts.DumpOutput,
		},
		requester: requester{timeout: timeout, tel: tel},
		time:      time,
		tel:       tel,
	}, nil
}

// ScrapeLists pairs usernames and passwords by index and scrapes them,
// ErrCredentialCount is returned before anything is requested if the
// lists differ in length.
func (s Scraper) ScrapeLists(ctx context.Context, usernames, passwords []string) (Result, error) {
	creds, err := PairCredentials(usernames, passwords)
	if err != nil {
		return nil, err
	}
	return s.Scrape(ctx, creds)
}

// Scrape processes every credential pair in order. A failure for one pair
// is reported and skipped, the only error returned is the cancellation of
// ctx, in which case the details collected so far are returned with it.
func (s Scraper) Scrape(ctx context.Context, creds []Credential) (Result, error) {
	result := Result{}
	for _, cred := range creds {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		detail, ok := s.scrapeOne(ctx, cred)
		if !ok {
			continue
		}
		result[cred.Username] = detail

		err := s.time.Sleep(ctx, s.delay)
		if err != nil {
			return result, err
		}
		s.tel.ReportCount(report_scraper_scraped_count, int64(len(result)))
	}
	return result, nil
}

func (s Scraper) scrapeOne(ctx context.Context, cred Credential) (Detail, bool) {
	ctx, span := tracer.Start(ctx, "scrapeOne", trace.WithAttributes(
		attribute.String("username", cred.Username),
	))
	defer span.End()

	abort := func(id string, err error) (Detail, bool) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.tel.ReportWarning(id, err, cred.Username)
		return Detail{}, false
	}

	session, err := newSession(s.session, s.tel)
	if err != nil {
		return abort(report_scraper_login_page, fmt.Errorf("create session: %w", err))
	}

	loginUrl := s.baseStr + loginPath

	res := s.requester.Do(ctx, session, METHOD_GET, loginUrl, s.headers, nil)
	if res == nil || strings.TrimSpace(string(res.Body())) == "" {
		return abort(
			report_scraper_login_page,
			errors.New("login page request failed or returned an empty page"),
		)
	}
	doc, err := parseDocument(res.Body())
	if err != nil {
		return abort(report_scraper_login_page, fmt.Errorf("parse login page: %w", err))
	}
	csrfToken, err := findCsrfToken(doc)
	if err != nil {
		return abort(report_scraper_login_page, err)
	}
	span.AddEvent("found csrf token")

	headers := loginHeaders(s.headers, s.baseStr)
	res = s.requester.Do(ctx, session, METHOD_POST, loginUrl, headers, map[string]string{
		"csrf_token": csrfToken,
		"nick":       cred.Username,
		"pass":       cred.Password,
	})
	var body []byte
	if res != nil {
		body = res.Body()
	}
	if strings.TrimSpace(string(body)) == "" {
		// an empty login response still gets parsed, it simply contains no
		// account link so the user is dropped below
		s.tel.ReportWarning(
			report_scraper_login,
			errors.New("login response is empty, check the username and password"),
			cred.Username,
		)
	}
	doc, err = parseDocument(body)
	if err != nil {
		return abort(report_scraper_login, fmt.Errorf("parse login response: %w", err))
	}
	href, err := findAccountHref(ctx, doc)
	if err != nil {
		return abort(report_scraper_login, err)
	}
	span.AddEvent("logged in", trace.WithAttributes(attribute.String("href", href)))

	res = s.requester.Do(ctx, session, METHOD_GET, s.baseStr+href, headers, nil)
	if res == nil || len(res.Body()) == 0 {
		return abort(report_scraper_profile, errors.New("profile page request failed or returned an empty page"))
	}
	doc, err = parseDocument(res.Body())
	if err != nil {
		return abort(report_scraper_profile, fmt.Errorf("parse profile page: %w", err))
	}

	detail, err := extractDetail(doc, s.extraction)
	if errors.Is(err, errTooFewRows) {
		s.tel.ReportDebug("skipping user with short details table", cred.Username)
		return Detail{}, false
	}
	if err != nil {
		return abort(report_scraper_profile, err)
	}

	return detail, true
}
