package commands

import (
	"context"
	"errors"
	"fmt"
	"ironfly/internal/components/chrono"
	"ironfly/internal/components/telemetry"
	"ironfly/internal/config"
	"ironfly/internal/dom6"
	"ironfly/internal/monitor"
	"ironfly/internal/store"
	"ironfly/internal/subscription"
	"ironfly/internal/telegram"
	"ironfly/lib/serviceutil"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
)

const (
	defaultConfigName = "config.json5"
	tokenEnv          = "TELEGRAM_BOT_TOKEN"
)

// loadConfig reads --config, or looks for config.json5 upwards from the
// working directory when the flag was not given. Without any config file the
// defaults are used.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	var (
		c   config.Config
		err error
	)
	if cmd.Flags().Changed("config") {
		c, err = config.Read(configPath)
	} else {
		c, err = config.ReadRecursively(defaultConfigName)
		if errors.Is(err, os.ErrNotExist) {
			slog.Warn("no config file found, using defaults", "name", defaultConfigName)
			c, err = config.Default(), nil
		}
	}
	if err != nil {
		return config.Config{}, err
	}

	if c.Telegram.Token == "" {
		c.Telegram.Token = os.Getenv(tokenEnv)
	}
	return c, nil
}

// app holds everything the subcommands share.
type app struct {
	config     config.Config
	tel        telemetry.API
	telemetry  telemetry.Telemetry
	store      store.Store
	locks      *store.Locker
	registry   subscription.Registry
	closeStore func() error
}

func newApp(cmd *cobra.Command) (*app, error) {
	c, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return newAppFromConfig(cmd.Context(), c)
}

func newAppFromConfig(ctx context.Context, c config.Config) (*app, error) {
	err := c.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	otel, err := telemetry.Setup(ctx, "ironfly", c.TelemetryConfig())
	if err != nil {
		return nil, fmt.Errorf("setup telemetry: %w", err)
	}

	tel := telemetry.NewSlogAPI(nil)
	s, closeStore, err := c.Storage.OpenStore(chrono.NewStandardTime(), tel)
	if err != nil {
		otel.Shutdown(ctx)
		return nil, fmt.Errorf("open store: %w", err)
	}

	locks := store.NewLocker()
	return &app{
		config:     c,
		tel:        tel,
		telemetry:  otel,
		store:      s,
		locks:      locks,
		registry:   subscription.NewRegistry(s, locks, tel),
		closeStore: closeStore,
	}, nil
}

func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := errors.Join(a.closeStore(), a.telemetry.Shutdown(ctx))
	if err != nil {
		slog.Warn("shutdown", "err", err)
	}
}

// serveMetrics exposes the prometheus endpoint in the background when
// metrics_addr is set.
func (a *app) serveMetrics(ctx context.Context) {
	if a.config.MetricsAddr == "" || a.telemetry.MetricsHandler == nil {
		return
	}
	go func() {
		err := serviceutil.ServeMetrics(ctx, a.config.MetricsAddr, a.telemetry.MetricsHandler)
		if err != nil {
			a.tel.ReportBroken("app.serve-metrics", err)
		}
	}()
}

func (a *app) fetcher() dom6.Client {
	return dom6.NewClient(a.config.FetchOptions(), a.tel)
}

func (a *app) telegram() (*telegram.Client, error) {
	client, err := telegram.NewClient(a.config.TelegramOptions(), a.tel)
	if errors.Is(err, telegram.ErrNoToken) {
		return nil, fmt.Errorf("%w: set telegram.token in the config or %s", err, tokenEnv)
	}
	return client, err
}

func (a *app) monitor(fetcher monitor.Fetcher, sender monitor.Sender) (monitor.Monitor, error) {
	return monitor.New(
		a.store,
		a.locks,
		fetcher,
		sender,
		monitor.Options{
			BaseURL:    a.config.BaseGameURL,
			OnNotFound: a.config.NotFoundPolicy(),
		},
		a.tel,
	)
}
