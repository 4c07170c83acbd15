package telemetry

import (
	"sync"
)

// Report is a single call made to a Recorder.
type Report struct {
	Level  string
	ID     string
	Params []any
}

// Recorder is an API that keeps every report in memory, tests use it to assert
// that a component reported (or did not report) a failure.
type Recorder struct {
	mu      sync.Mutex
	reports []Report
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) add(level, id string, params []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, Report{Level: level, ID: id, Params: params})
}

func (r *Recorder) ReportBroken(id string, params ...any) {
	r.add("broken", id, params)
}

func (r *Recorder) ReportWarning(id string, params ...any) {
	r.add("warning", id, params)
}

func (r *Recorder) ReportDebug(msg string, params ...any) {
	r.add("debug", msg, params)
}

func (r *Recorder) ReportCount(id string, count int64) {
	r.add("count", id, []any{count})
}

// Reports returns every report of the given level ("broken", "warning",
// "debug", "count"), or all reports if level is empty.
func (r *Recorder) Reports(level string) []Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Report
	for _, rep := range r.reports {
		if level == "" || rep.Level == level {
			out = append(out, rep)
		}
	}
	return out
}
