package telemetry

import (
	"fmt"
)

// API is what components report their health through instead of logging
// directly, so tests can assert on what was reported (see MemoryAPI).
//
// note: fault injection point
type API interface {
	// ReportBroken reports a failure that someone should look at.
	//
	// `id` names the component that failed, not the line that failed: a
	// missing csrf token during login is `scraper.login`, the details go in
	// params or in the wrapped error. Ids are lowercase, use underscores
	// inside names and dashes for steps of a component. ScopedAPI adds the
	// package level namespace.
	ReportBroken(id string, params ...any)

	// ReportWarning reports something unexpected that is handled, it uses
	// the same ids as ReportBroken.
	ReportWarning(id string, params ...any)

	// ReportDebug is only visible with verbose logging.
	ReportDebug(msg string, params ...any)

	// ReportCount reports the current value of a counter, values are points
	// in time and are not meant to be summed.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id and debug message with a namespace.
type ScopedAPI struct {
	namespace string
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) scoped(id string) string {
	return fmt.Sprintf("%s: %s", s.namespace, id)
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.scoped(id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.scoped(id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(s.scoped(msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.scoped(id), count)
}
