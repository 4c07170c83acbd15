// Package monitor refreshes every subscribed game and notifies its
// subscribers about what changed.
package monitor

import (
	"context"
	"fmt"
	"ironfly/internal/components/assert"
	"ironfly/internal/components/telemetry"
	"ironfly/internal/detect"
	"ironfly/internal/dom6"
	"ironfly/internal/gamestate"
	"ironfly/internal/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("ironfly/monitor")
	meter  = otel.Meter("ironfly/monitor")
)

const (
	report_monitor_check_all  = "monitor.check-all"
	report_monitor_check_game = "monitor.check-game"
	report_monitor_notify     = "monitor.notify"
)

// Fetcher retrieves the current state of a status page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) dom6.Outcome
}

// Sender delivers a message to a set of chats.
type Sender interface {
	Send(ctx context.Context, recipients []string, text string) error
}

// NotFoundPolicy decides what happens to a game whose status page is gone.
type NotFoundPolicy string

const (
	// keep the game and its subscribers, try again next cycle
	PolicySkip NotFoundPolicy = "skip"
	// tell subscribers monitoring stopped and clear them
	PolicyStop NotFoundPolicy = "stop"
)

func ParseNotFoundPolicy(s string) (NotFoundPolicy, error) {
	switch NotFoundPolicy(s) {
	case "", PolicySkip:
		return PolicySkip, nil
	case PolicyStop:
		return PolicyStop, nil
	}
	return "", fmt.Errorf("unknown not found policy %q (expected %q or %q)", s, PolicySkip, PolicyStop)
}

type Options struct {
	// used for games stored without an url
	BaseURL    string
	OnNotFound NotFoundPolicy
}

// Report summarizes one CheckAll pass.
type Report struct {
	// refreshed and persisted
	Checked int
	// no subscribers, or not found under PolicySkip
	Skipped int
	// not found under PolicyStop
	Stopped int
	// transient, parse or storage failure
	Failed int
	// messages dispatched
	Notified int
}

type Monitor struct {
	store   store.Store
	locks   *store.Locker
	fetcher Fetcher
	sender  Sender
	opts    Options
	tel     telemetry.API

	checkCounter  metric.Int64Counter
	notifyCounter metric.Int64Counter
}

func New(
	s store.Store,
	locks *store.Locker,
	fetcher Fetcher,
	sender Sender,
	opts Options,
	tel telemetry.API,
) (Monitor, error) {
	assert.NotNil(s)
	assert.NotNil(locks)
	assert.NotNil(fetcher)
	assert.NotNil(sender)
	assert.NotNil(tel)

	if opts.OnNotFound == "" {
		opts.OnNotFound = PolicySkip
	}
	if opts.BaseURL == "" {
		opts.BaseURL = dom6.DefaultBaseURL
	}

	checkCounter, err := meter.Int64Counter(
		"ironfly_game_checks_total",
		metric.WithDescription("The total amount of game checks by outcome."),
	)
	if err != nil {
		return Monitor{}, err
	}
	notifyCounter, err := meter.Int64Counter(
		"ironfly_notifications_total",
		metric.WithDescription("The total amount of change notifications dispatched."),
	)
	if err != nil {
		return Monitor{}, err
	}

	return Monitor{
		store:         s,
		locks:         locks,
		fetcher:       fetcher,
		sender:        sender,
		opts:          opts,
		tel:           telemetry.NewScopedAPI("monitor", tel),
		checkCounter:  checkCounter,
		notifyCounter: notifyCounter,
	}, nil
}

type result int

const (
	resultChecked result = iota
	resultSkipped
	resultStopped
	resultFailed
)

func (r result) String() string {
	switch r {
	case resultChecked:
		return "checked"
	case resultSkipped:
		return "skipped"
	case resultStopped:
		return "stopped"
	case resultFailed:
		return "failed"
	}
	return fmt.Sprintf("result(%d)", int(r))
}

// CheckAll refreshes every stored game that has subscribers. A failure in
// one game never stops the others, only failing to list the games or a
// cancelled context returns an error.
func (m Monitor) CheckAll(ctx context.Context) (Report, error) {
	ctx, span := tracer.Start(ctx, "monitor:CheckAll")
	defer span.End()

	games, err := m.store.ListAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list games")
		m.tel.ReportBroken(report_monitor_check_all, err)
		return Report{}, err
	}

	report := Report{}
	for _, game := range games {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if len(game.Subscribers) == 0 {
			report.Skipped++
			continue
		}

		res, notified := m.checkGame(ctx, game.GameName)
		report.Notified += notified
		switch res {
		case resultChecked:
			report.Checked++
		case resultSkipped:
			report.Skipped++
		case resultStopped:
			report.Stopped++
		case resultFailed:
			report.Failed++
		}
		m.checkCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", res.String())))
	}

	m.tel.ReportCount(report_monitor_check_all, int64(report.Checked))
	return report, nil
}

func (m Monitor) targetURL(s gamestate.Snapshot) string {
	if s.URL != "" {
		return s.URL
	}
	return dom6.ResolveTarget(s.GameName, m.opts.BaseURL)
}

// checkGame reloads the game under its lock so subscriber edits made since
// the listing are not lost.
func (m Monitor) checkGame(ctx context.Context, gameName string) (result, int) {
	ctx, span := tracer.Start(ctx, "monitor:checkGame")
	defer span.End()
	span.SetAttributes(attribute.String("game", gameName))

	unlock := m.locks.Lock(gameName)
	defer unlock()

	previous, ok, err := m.store.Get(ctx, gameName)
	if err != nil {
		span.RecordError(err)
		m.tel.ReportBroken(report_monitor_check_game, err, gameName)
		return resultFailed, 0
	}
	if !ok || len(previous.Subscribers) == 0 {
		return resultSkipped, 0
	}

	url := m.targetURL(previous)
	outcome := m.fetcher.Fetch(ctx, url)

	switch outcome.Kind {
	case dom6.OutcomeOK:
	case dom6.OutcomeNotFound:
		return m.notFound(ctx, previous, url)
	default:
		span.SetStatus(codes.Error, outcome.Kind.String())
		m.tel.ReportWarning(report_monitor_check_game, outcome.Err, gameName, outcome.Kind.String())
		return resultFailed, 0
	}

	current := outcome.Snapshot
	if current.GameName != previous.GameName {
		m.tel.ReportDebug("status page reports a different game name, keeping the stored one",
			telemetry.KV{Key: "stored", Value: previous.GameName},
			telemetry.KV{Key: "page", Value: current.GameName},
		)
		current.GameName = previous.GameName
	}
	current.Subscribers = previous.Subscribers
	current.URL = url

	messages := detect.Detect(&previous, current)
	notified := 0
	for _, msg := range messages {
		err := m.sender.Send(ctx, current.Subscribers, msg.Text())
		if err != nil {
			m.tel.ReportWarning(report_monitor_notify, err, gameName, msg.Kind.String())
		}
		notified++
		m.notifyCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", msg.Kind.String())))
	}

	err = m.store.Put(ctx, current)
	if err != nil {
		span.RecordError(err)
		m.tel.ReportBroken(report_monitor_check_game, err, gameName)
		return resultFailed, notified
	}
	return resultChecked, notified
}

func (m Monitor) notFound(ctx context.Context, previous gamestate.Snapshot, url string) (result, int) {
	if m.opts.OnNotFound != PolicyStop {
		m.tel.ReportWarning(report_monitor_check_game, "status page not found", previous.GameName, url)
		return resultSkipped, 0
	}

	err := m.sender.Send(ctx, previous.Subscribers, detect.MonitoringStopped(previous.GameName, url))
	if err != nil {
		m.tel.ReportWarning(report_monitor_notify, err, previous.GameName)
	}

	stopped := previous.Clone()
	stopped.Subscribers = []string{}
	err = m.store.Put(ctx, stopped)
	if err != nil {
		m.tel.ReportBroken(report_monitor_check_game, err, previous.GameName)
		return resultFailed, 1
	}
	m.tel.ReportDebug("monitoring stopped", previous.GameName, url)
	return resultStopped, 1
}
