package telemetry

import (
	"fmt"
)

// API is what components report through instead of logging directly, so
// tests can swap in a Recorder and assert on what was reported.
type API interface {
	// ReportBroken reports a component that failed and needs attention.
	//
	// `id` names the component, not the line that failed: `<struct>.<method>`
	// in lowercase, dashes between words (ex. `client.fetch`). ScopedAPI adds
	// the package. Details go into params or a wrapped error.
	ReportBroken(id string, params ...any)

	// ReportWarning reports something odd that did not break the component,
	// ex. a corrupt record that is skipped. Same `id` rules as ReportBroken.
	ReportWarning(id string, params ...any)

	// ReportDebug reports information only useful while debugging.
	ReportDebug(msg string, params ...any)

	// ReportCount reports the value of a counter at the current time.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id (and debug message) with a namespace.
type ScopedAPI struct {
	namespace string
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(fmt.Sprintf("%s: %s", s.namespace, id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(fmt.Sprintf("%s: %s", s.namespace, id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(fmt.Sprintf("%s: %s", s.namespace, msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(fmt.Sprintf("%s: %s", s.namespace, id), count)
}

// KV is a named param, it renders as `key=value` instead of a positional param.
type KV struct {
	Key   string
	Value any
}

func (kv KV) String() string {
	return fmt.Sprintf("%s=%v", kv.Key, kv.Value)
}
