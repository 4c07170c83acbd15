// Package config is the configuration of the ironfly daemon, read from
// config.json5 (and config.local.json5).
package config

import (
	"errors"
	"fmt"
	"ironfly/internal/components/chrono"
	"ironfly/internal/components/telemetry"
	"ironfly/internal/daemon"
	"ironfly/internal/db"
	"ironfly/internal/dom6"
	"ironfly/internal/monitor"
	"ironfly/internal/store"
	"ironfly/internal/telegram"
	"ironfly/lib/configutil"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	DriverSqlite = "sqlite"
	DriverLibsql = "libsql"
	DriverDir    = "dir"
)

type TelegramConfig struct {
	// the bot token, TELEGRAM_BOT_TOKEN is used when this is empty
	Token          string  `json:"token"`
	APIURL         string  `json:"api_url"`
	TimeoutSeconds float64 `json:"timeout_seconds"`
}

type FetchConfig struct {
	TimeoutSeconds    float64 `json:"timeout_seconds"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	Retries           int     `json:"retries"`
}

type StorageConfig struct {
	// one of "sqlite", "libsql" or "dir"
	Driver string `json:"driver"`
	// the sqlite file or the state directory
	Path string `json:"path"`
	// libsql only, ex. libsql://ironfly.turso.io
	URL       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

type Config struct {
	Telegram    TelegramConfig `json:"telegram"`
	BaseGameURL string         `json:"base_game_url"`

	// how often every subscribed game is checked, at least once a minute,
	// zero disables periodic checks
	CheckIntervalMinutes float64 `json:"check_interval_minutes"`
	// standard cron expression, wins over check_interval_minutes
	CheckCron           string  `json:"check_cron"`
	PollIntervalSeconds float64 `json:"poll_interval_seconds"`
	// "skip" or "stop"
	OnNotFound string `json:"on_not_found"`

	Fetch   FetchConfig   `json:"fetch"`
	Storage StorageConfig `json:"storage"`

	// serves prometheus metrics on this address when set, ex. ":9464"
	MetricsAddr string           `json:"metrics_addr"`
	Telemetry   telemetry.Config `json:"telemetry"`
}

func Default() Config {
	return Config{
		BaseGameURL:         dom6.DefaultBaseURL,
		PollIntervalSeconds: daemon.DefaultPollInterval.Seconds(),
		OnNotFound:          string(monitor.PolicySkip),
		Fetch: FetchConfig{
			TimeoutSeconds:    dom6.DefaultTimeout.Seconds(),
			RequestsPerSecond: dom6.DefaultRequestsPerSecond,
			Retries:           dom6.DefaultRetries,
		},
		Storage: StorageConfig{
			Driver: DriverSqlite,
			Path:   "cached_states/ironfly.db",
		},
	}
}

// Read reads the config file at path and fills every unset field from
// Default.
func Read(path string) (Config, error) {
	c, err := configutil.ReadConfig[Config](path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return c.WithDefaults(), nil
}

// ReadRecursively is Read, but looks for `name` in the working directory and
// its parents.
func ReadRecursively(name string) (Config, error) {
	c, err := configutil.ReadRecursively[Config](name)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", name, err)
	}
	return c.WithDefaults(), nil
}

func (c Config) WithDefaults() Config {
	d := Default()
	if c.BaseGameURL == "" {
		c.BaseGameURL = d.BaseGameURL
	}
	if c.PollIntervalSeconds <= 0 {
		c.PollIntervalSeconds = d.PollIntervalSeconds
	}
	if c.OnNotFound == "" {
		c.OnNotFound = d.OnNotFound
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		c.Fetch.TimeoutSeconds = d.Fetch.TimeoutSeconds
	}
	if c.Fetch.RequestsPerSecond == 0 {
		c.Fetch.RequestsPerSecond = d.Fetch.RequestsPerSecond
	}
	if c.Fetch.Retries == 0 {
		c.Fetch.Retries = d.Fetch.Retries
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = d.Storage.Driver
	}
	if c.Storage.Path == "" && c.Storage.Driver == DriverSqlite {
		c.Storage.Path = d.Storage.Path
	}
	if c.Storage.Path == "" && c.Storage.Driver == DriverDir {
		c.Storage.Path = "cached_states"
	}
	return c
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (c Config) Validate() error {
	var errs []error
	if _, err := c.Schedule(); err != nil {
		errs = append(errs, err)
	}
	if _, err := monitor.ParseNotFoundPolicy(c.OnNotFound); err != nil {
		errs = append(errs, err)
	}
	switch c.Storage.Driver {
	case DriverSqlite, DriverDir:
		if c.Storage.Path == "" {
			errs = append(errs, fmt.Errorf("storage.path is required for the %s driver", c.Storage.Driver))
		}
	case DriverLibsql:
		if c.Storage.URL == "" {
			errs = append(errs, errors.New("storage.url is required for the libsql driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	return errors.Join(errs...)
}

// Schedule is the periodic check schedule, nil if periodic checks are off.
func (c Config) Schedule() (cron.Schedule, error) {
	return chrono.NewSchedule(c.CheckIntervalMinutes, c.CheckCron)
}

func (c Config) NotFoundPolicy() monitor.NotFoundPolicy {
	policy, err := monitor.ParseNotFoundPolicy(c.OnNotFound)
	if err != nil {
		return monitor.PolicySkip
	}
	return policy
}

func (c Config) PollInterval() time.Duration {
	return seconds(c.PollIntervalSeconds)
}

func (c Config) FetchOptions() dom6.Options {
	return dom6.Options{
		Timeout:           seconds(c.Fetch.TimeoutSeconds),
		RequestsPerSecond: c.Fetch.RequestsPerSecond,
		Retries:           c.Fetch.Retries,
	}
}

func (c Config) TelegramOptions() telegram.Options {
	return telegram.Options{
		Token:   c.Telegram.Token,
		APIURL:  c.Telegram.APIURL,
		Timeout: seconds(c.Telegram.TimeoutSeconds),
	}
}

func (c Config) TelemetryConfig() telemetry.Config {
	out := c.Telemetry
	out.Prometheus = out.Prometheus || c.MetricsAddr != ""
	return out
}

// OpenStore opens the configured store, close releases it.
func (c StorageConfig) OpenStore(time chrono.TimeAPI, tel telemetry.API) (s store.Store, close func() error, err error) {
	switch c.Driver {
	case DriverDir:
		dirStore, err := store.NewDirStore(c.Path, tel)
		if err != nil {
			return nil, nil, err
		}
		return dirStore, func() error { return nil }, nil
	case DriverSqlite:
		database, err := db.OpenSqlite(c.Path)
		if err != nil {
			return nil, nil, err
		}
		return store.NewSQLStore(database, time, tel), database.Close, nil
	case DriverLibsql:
		database, err := db.OpenLibsql(c.URL, c.AuthToken)
		if err != nil {
			return nil, nil, err
		}
		return store.NewSQLStore(database, time, tel), database.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", c.Driver)
}
