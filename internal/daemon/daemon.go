// Package daemon runs the bot: it answers chat commands and checks the
// tracked games on a schedule, both from a single loop.
package daemon

import (
	"context"
	"ironfly/internal/components/assert"
	"ironfly/internal/components/chrono"
	"ironfly/internal/components/telemetry"
	"ironfly/internal/monitor"
	"ironfly/internal/telegram"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	report_daemon_poll     = "daemon.poll"
	report_daemon_dispatch = "daemon.dispatch"
	report_daemon_check    = "daemon.check"
)

const DefaultPollInterval = time.Second

type Inbox interface {
	Poll(ctx context.Context) ([]telegram.Command, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, chatID, text string) error
}

type Checker interface {
	CheckAll(ctx context.Context) (monitor.Report, error)
}

type Options struct {
	// zero means DefaultPollInterval
	PollInterval time.Duration
	// nil disables periodic checks, the first check runs as soon as the
	// daemon starts
	Schedule cron.Schedule
}

type Daemon struct {
	inbox      Inbox
	dispatcher Dispatcher
	checker    Checker
	opts       Options
	time       chrono.TimeAPI
	tel        telemetry.API

	nextCheck time.Time
}

func New(
	inbox Inbox,
	dispatcher Dispatcher,
	checker Checker,
	opts Options,
	time chrono.TimeAPI,
	tel telemetry.API,
) *Daemon {
	assert.NotNil(inbox)
	assert.NotNil(dispatcher)
	assert.NotNil(checker)
	assert.NotNil(time)
	assert.NotNil(tel)

	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Daemon{
		inbox:      inbox,
		dispatcher: dispatcher,
		checker:    checker,
		opts:       opts,
		time:       time,
		tel:        telemetry.NewScopedAPI("daemon", tel),
	}
}

// Step handles every pending command, then checks the games if a check is
// due. Failures are reported and never stop the daemon.
func (d *Daemon) Step(ctx context.Context) {
	commands, err := d.inbox.Poll(ctx)
	if err != nil {
		d.tel.ReportWarning(report_daemon_poll, err)
	}
	for _, cmd := range commands {
		err := d.dispatcher.Dispatch(ctx, cmd.ChatID, cmd.Text)
		if err != nil {
			d.tel.ReportWarning(report_daemon_dispatch, err, cmd.ChatID)
		}
	}

	if d.opts.Schedule == nil {
		return
	}
	now := d.time.Now()
	if now.Before(d.nextCheck) {
		return
	}
	d.nextCheck = d.opts.Schedule.Next(now)

	d.tel.ReportDebug("checking games", telemetry.KV{Key: "next", Value: d.nextCheck.Format(time.Kitchen)})
	report, err := d.checker.CheckAll(ctx)
	if err != nil {
		d.tel.ReportWarning(report_daemon_check, err)
		return
	}
	d.tel.ReportDebug(
		"checked games",
		telemetry.KV{Key: "checked", Value: report.Checked},
		telemetry.KV{Key: "skipped", Value: report.Skipped},
		telemetry.KV{Key: "stopped", Value: report.Stopped},
		telemetry.KV{Key: "failed", Value: report.Failed},
		telemetry.KV{Key: "notified", Value: report.Notified},
	)
}

// Run steps the daemon every poll interval until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) {
	ticker := time.NewTicker(d.opts.PollInterval)
	defer ticker.Stop()

	d.Step(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Step(ctx)
		}
	}
}
