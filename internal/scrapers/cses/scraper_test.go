package cses

import (
	"context"
	"cses-scraper/internal/components/chrono"
	"cses-scraper/internal/components/telemetry"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mazen160/go-random"
	"github.com/stretchr/testify/require"
)

var aliceDetail = Detail{
	Name:            " Alice  Example ",
	Country:         "Finland",
	SubmissionCount: "1234",
	FirstSubmission: "2019-01-02 10:11:12",
	LastSubmission:  "2024-05-06 07:08:09\n",
}

var bobDetail = Detail{
	Name:            "Bob",
	Country:         "Sweden",
	SubmissionCount: "7",
	FirstSubmission: "2023-11-30 23:59:59",
	LastSubmission:  "2023-12-01 00:00:01",
}

type testScraper struct {
	scraper Scraper
	site    *fakeSite
	clock   *chrono.FakeImpl
	tel     *telemetry.MemoryAPI
}

func setupScraper(t *testing.T, users map[string]siteUser, modify func(*Options)) testScraper {
	t.Helper()

	site := newFakeSite(t, users)
	clock := chrono.NewFakeImpl(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	tel := telemetry.NewMemoryAPI()

	opts := DefaultOptions()
	opts.BaseUrl = site.Url()
	opts.CloudflareBypass = false
	opts.Timeout = 5 * time.Second
	if modify != nil {
		modify(&opts)
	}

	scraper, err := NewScraper(opts, clock, tel)
	if err != nil {
		t.Fatal(err)
	}
	return testScraper{scraper: scraper, site: site, clock: clock, tel: tel}
}

func defaultUsers() map[string]siteUser {
	return map[string]siteUser{
		"alice": {id: 101, password: "alice-pass", detail: aliceDetail},
		"bob":   {id: 202, password: "bob-pass", detail: bobDetail},
	}
}

func warningsFor(tel *telemetry.MemoryAPI, username string) []telemetry.Report {
	var out []telemetry.Report
	for _, r := range tel.Reports(telemetry.REPORT_WARNING) {
		for _, p := range r.Params {
			if p == username {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

func TestScrapeAllSucceed(t *testing.T) {
	ts := setupScraper(t, defaultUsers(), nil)

	result, err := ts.scraper.ScrapeLists(
		context.Background(),
		[]string{"alice", "bob"},
		[]string{"alice-pass", "bob-pass"},
	)
	require.NoError(t, err)

	diff := cmp.Diff(Result{"alice": aliceDetail, "bob": bobDetail}, result)
	require.Empty(t, diff)
	for _, detail := range result {
		for _, value := range detail.Values() {
			require.NotEmpty(t, value)
		}
	}

	require.Equal(t, []time.Duration{time.Second, time.Second}, ts.clock.Sleeps())
	require.Empty(t, ts.tel.Reports(telemetry.REPORT_WARNING))
	require.Empty(t, ts.tel.Reports(telemetry.REPORT_BROKEN))
	require.Len(t, ts.tel.Reports(telemetry.REPORT_COUNT), 2)
}

func TestScrapeUsesOneSessionPerUser(t *testing.T) {
	ts := setupScraper(t, defaultUsers(), nil)

	_, err := ts.scraper.ScrapeLists(
		context.Background(),
		[]string{"alice", "bob"},
		[]string{"alice-pass", "bob-pass"},
	)
	require.NoError(t, err)

	requests := ts.site.Requests()
	require.Len(t, requests, 6)

	for i := 0; i < 2; i++ {
		user := requests[i*3 : i*3+3]
		expectedCookie := fmt.Sprintf("session-%d", i+1)

		require.Equal(t, http.MethodGet, user[0].method)
		require.Equal(t, "/login", user[0].path)
		require.Empty(t, user[0].cookie, "a fresh session never carries a cookie")
		require.Empty(t, user[0].header.Get("Referer"))

		require.Equal(t, http.MethodPost, user[1].method)
		require.Equal(t, expectedCookie, user[1].cookie)
		require.Equal(t, "application/x-www-form-urlencoded", user[1].header.Get("Content-Type"))
		require.Equal(t, ts.site.Url(), user[1].header.Get("Origin"))
		require.Equal(t, ts.site.Url()+"/login", user[1].header.Get("Referer"))

		require.Equal(t, http.MethodGet, user[2].method)
		require.True(t, strings.HasPrefix(user[2].path, "/user/"))
		require.Equal(t, expectedCookie, user[2].cookie)
		require.Equal(t, ts.site.Url()+"/login", user[2].header.Get("Referer"))

		for _, r := range user {
			require.Equal(
				t,
				"Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:83.0) Gecko/20100101 Firefox/83.0",
				r.header.Get("User-Agent"),
			)
		}
	}
}

func TestScrapeWrongPassword(t *testing.T) {
	ts := setupScraper(t, defaultUsers(), nil)

	result, err := ts.scraper.ScrapeLists(
		context.Background(),
		[]string{"alice", "bob"},
		[]string{"wrong", "bob-pass"},
	)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(Result{"bob": bobDetail}, result))

	warnings := warningsFor(ts.tel, "alice")
	require.Len(t, warnings, 1)
	require.ErrorIs(t, warnings[0].Params[0].(error), errNoAccountLink)

	// the failed user is not followed by the delay
	require.Equal(t, []time.Duration{time.Second}, ts.clock.Sleeps())
}

func TestScrapeListsMismatch(t *testing.T) {
	ts := setupScraper(t, defaultUsers(), nil)

	result, err := ts.scraper.ScrapeLists(
		context.Background(),
		[]string{"alice", "bob"},
		[]string{"alice-pass"},
	)
	require.ErrorIs(t, err, ErrCredentialCount)
	require.Nil(t, result)
	require.Empty(t, ts.site.Requests())
}

func TestScrapeLoginPageFailure(t *testing.T) {
	testCases := []struct {
		name    string
		failure string
	}{
		{name: "transport error", failure: "drop"},
		{name: "server error", failure: "500"},
		{name: "not found", failure: "404"},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			ts := setupScraper(t, defaultUsers(), nil)
			ts.site.loginPageFailures[1] = test.failure

			result, err := ts.scraper.ScrapeLists(
				context.Background(),
				[]string{"alice", "bob"},
				[]string{"alice-pass", "bob-pass"},
			)
			require.NoError(t, err)
			require.Empty(t, cmp.Diff(Result{"bob": bobDetail}, result))

			broken := ts.tel.Reports(telemetry.REPORT_BROKEN)
			require.Len(t, broken, 1)
			require.Contains(t, broken[0].Id, report_requester_request)
			require.Len(t, warningsFor(ts.tel, "alice"), 1)
		})
	}
}

func TestScrapeMissingCsrfToken(t *testing.T) {
	ts := setupScraper(t, defaultUsers(), nil)
	ts.site.omitCsrf = true

	result, err := ts.scraper.ScrapeLists(context.Background(), []string{"alice"}, []string{"alice-pass"})
	require.NoError(t, err)
	require.Empty(t, result)

	warnings := warningsFor(ts.tel, "alice")
	require.Len(t, warnings, 1)
	require.ErrorIs(t, warnings[0].Params[0].(error), errNoCsrfToken)
	// nothing is submitted without a token
	require.Len(t, ts.site.Requests(), 1)
}

func TestScrapeEmptyLoginResponseContinues(t *testing.T) {
	ts := setupScraper(t, defaultUsers(), nil)
	ts.site.emptyLoginResponse = true

	result, err := ts.scraper.ScrapeLists(context.Background(), []string{"alice"}, []string{"alice-pass"})
	require.NoError(t, err)
	require.Empty(t, result)

	warnings := warningsFor(ts.tel, "alice")
	require.Len(t, warnings, 2)
	require.Contains(t, warnings[0].Id, report_scraper_login)
	require.ErrorIs(t, warnings[1].Params[0].(error), errNoAccountLink)
}

func TestScrapeShortTableIsSkippedSilently(t *testing.T) {
	users := defaultUsers()
	alice := users["alice"]
	alice.profile = `<html><body><table>
		<tr><td>Name:</td><td>Alice</td></tr>
		<tr><td>Country:</td><td>Finland</td></tr>
		<tr><td>Submission count:</td><td>1</td></tr>
		<tr><td>First submission:</td><td>2020-01-01</td></tr>
	</table></body></html>`
	users["alice"] = alice
	ts := setupScraper(t, users, nil)

	result, err := ts.scraper.ScrapeLists(
		context.Background(),
		[]string{"alice", "bob"},
		[]string{"alice-pass", "bob-pass"},
	)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(Result{"bob": bobDetail}, result))
	require.Empty(t, warningsFor(ts.tel, "alice"))
	require.Empty(t, ts.tel.Reports(telemetry.REPORT_BROKEN))
}

func TestScrapeMissingTable(t *testing.T) {
	users := defaultUsers()
	alice := users["alice"]
	alice.profile = `<html><body><p>no details here</p></body></html>`
	users["alice"] = alice
	ts := setupScraper(t, users, nil)

	result, err := ts.scraper.ScrapeLists(context.Background(), []string{"alice"}, []string{"alice-pass"})
	require.NoError(t, err)
	require.Empty(t, result)

	warnings := warningsFor(ts.tel, "alice")
	require.Len(t, warnings, 1)
	require.ErrorIs(t, warnings[0].Params[0].(error), errNoTable)
}

func TestScrapeLabelExtraction(t *testing.T) {
	reordered := `<html><body><table>
		<tr><td>Country:</td><td>Finland</td></tr>
		<tr><td>Name:</td><td>Alice</td></tr>
		<tr><td>Last submission:</td><td>2024-05-06</td></tr>
		<tr><td>Submission count:</td><td>1234</td></tr>
		<tr><td>First submission:</td><td>2019-01-02</td></tr>
	</table></body></html>`

	users := defaultUsers()
	alice := users["alice"]
	alice.profile = reordered
	users["alice"] = alice

	ts := setupScraper(t, users, func(o *Options) {
		o.Extraction = EXTRACT_LABEL
	})
	result, err := ts.scraper.ScrapeLists(
		context.Background(),
		[]string{"alice", "bob"},
		[]string{"alice-pass", "bob-pass"},
	)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(Result{
		"alice": {
			Name:            "Alice",
			Country:         "Finland",
			SubmissionCount: "1234",
			FirstSubmission: "2019-01-02",
			LastSubmission:  "2024-05-06",
		},
		// the standard layout gives the same output under both strategies
		"bob": bobDetail,
	}, result))
}

func TestScrapeRandomUsers(t *testing.T) {
	users := map[string]siteUser{}
	var usernames, passwords []string
	for i := 0; i < 4; i++ {
		username, err := random.String(10)
		require.NoError(t, err)
		password, err := random.String(16)
		require.NoError(t, err)

		users[username] = siteUser{
			id:       i + 1,
			password: password,
			detail: Detail{
				Name:            username,
				Country:         "Finland",
				SubmissionCount: fmt.Sprint(i * 10),
				FirstSubmission: "2020-01-01 00:00:00",
				LastSubmission:  "2021-01-01 00:00:00",
			},
		}
		usernames = append(usernames, username)
		passwords = append(passwords, password)
	}
	ts := setupScraper(t, users, nil)

	result, err := ts.scraper.ScrapeLists(context.Background(), usernames, passwords)
	require.NoError(t, err)
	require.Len(t, result, len(usernames))
	for _, username := range usernames {
		require.Equal(t, users[username].detail, result[username])
	}
}

func TestScrapeCancelled(t *testing.T) {
	ts := setupScraper(t, defaultUsers(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := ts.scraper.ScrapeLists(ctx, []string{"alice"}, []string{"alice-pass"})
	require.True(t, errors.Is(err, context.Canceled))
	require.Empty(t, result)
	require.Empty(t, ts.site.Requests())
}

func TestNewScraperValidation(t *testing.T) {
	clock := chrono.NewFakeImpl(time.Now())
	tel := telemetry.NewMemoryAPI()

	_, err := NewScraper(Options{BaseUrl: "cses.fi"}, clock, tel)
	require.Error(t, err)

	_, err = NewScraper(Options{BaseUrl: "https://cses.fi", Extraction: "regex"}, clock, tel)
	require.Error(t, err)

	scraper, err := NewScraper(Options{}, clock, tel)
	require.NoError(t, err)
	require.Equal(t, DefaultBaseUrl, scraper.baseStr)
	require.Equal(t, "cses.fi", scraper.headers.Get("Host"))
	require.Equal(t, DefaultTimeout, scraper.requester.timeout)
}

type memoryDumps struct {
	mutex    sync.Mutex
	messages map[string]string
}

func (m *memoryDumps) Write(id, contents string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.messages == nil {
		m.messages = map[string]string{}
	}
	m.messages[id] = contents
}

func TestScrapeWritesHttpDumps(t *testing.T) {
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer slog.SetDefault(previous)

	dumps := &memoryDumps{}
	ts := setupScraper(t, defaultUsers(), func(opts *Options) {
		opts.DumpOutput = dumps
	})

	result, err := ts.scraper.ScrapeLists(context.Background(), []string{"alice"}, []string{"alice-pass"})
	require.NoError(t, err)
	require.Equal(t, Result{"alice": aliceDetail}, result)

	require.Len(t, dumps.messages, 3)
	var gets, posts int
	for _, message := range dumps.messages {
		require.NotContains(t, message, "alice-pass")
		switch {
		case strings.Contains(message, "\nGET "):
			gets++
			require.Contains(t, message, "<NO BODY AVAILABLE>")
		case strings.Contains(message, "\nPOST "):
			posts++
			require.Contains(t, message, "pass=***")
			require.Contains(t, message, "csrf_token=***")
			require.Contains(t, message, "nick=alice")
		}
	}
	require.Equal(t, 2, gets)
	require.Equal(t, 1, posts)
}
