package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrSettingNotSet occurs when a required setting is missing from the config file
	ErrSettingNotSet = errors.New("setting is not set")
)

// File Config implementation backed by a config file. Every setting can be
// overridden by the environment variable Env reads it from.
type File struct {
	path string
	v    *viper.Viper
}

var fileEnvBindings = map[string]string{
	"badger_path":        BadgerPathEnv,
	"reports_path":       ReportsPathEnv,
	"report_format":      ReportFormatEnv,
	"timezone":           LocationEnv,
	"gateway":            GatewayEnv,
	"pushover_api_token": PushoverAPITokenEnv,
	"telegram_bot_token": TelegramBotTokenEnv,
	"store_timeout":      StoreTimeoutEnv,
	"trigger_crontab":    TriggerCrontabEnv,
	"gateway_rate":       GatewayRateEnv,
	"workers":            WorkersEnv,
	"metrics_listen":     MetricsListenEnv,
}

// NewFile reads the config file at path (yaml, toml or json by extension)
func NewFile(path string) (*File, error) {
	v := viper.New()

	v.SetDefault("reports_path", DefaultReportsPath)
	v.SetDefault("report_format", DefaultReportFormat)
	v.SetDefault("timezone", DefaultLocation)
	v.SetDefault("gateway", DefaultGateway)
	v.SetDefault("store_timeout", DefaultStoreTimeout)
	v.SetDefault("trigger_crontab", DefaultTriggerCrontab)
	v.SetDefault("gateway_rate", DefaultGatewayRate)
	v.SetDefault("workers", DefaultWorkers)
	v.SetDefault("metrics_listen", DefaultMetricsListen)

	for key, env := range fileEnvBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind env variable %s: %w", env, err)
		}
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return &File{path: path, v: v}, nil
}

func (f *File) required(key string) (string, error) {
	val := f.v.GetString(key)
	if val == "" {
		return "", fmt.Errorf("unable to get %s from config file %s: %w", key, f.path, ErrSettingNotSet)
	}

	return val, nil
}

// BadgerPath for the database directory
func (f *File) BadgerPath() (string, error) {
	return f.required("badger_path")
}

// ReportsPath for report artifacts
func (f *File) ReportsPath() (string, error) {
	return f.v.GetString("reports_path"), nil
}

// ReportFormat of report artifacts, json or yaml
func (f *File) ReportFormat() (string, error) {
	return f.v.GetString("report_format"), nil
}

// Location used for schedule matching and dose log timestamps
func (f *File) Location() (*time.Location, error) {
	name := f.v.GetString("timezone")

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %s in config file %s: %w", name, f.path, err)
	}

	return loc, nil
}

// Gateway kind, pushover or telegram
func (f *File) Gateway() (string, error) {
	return f.v.GetString("gateway"), nil
}

// PushoverAPIToken getter
func (f *File) PushoverAPIToken() (string, error) {
	return f.required("pushover_api_token")
}

// TelegramBotToken getter
func (f *File) TelegramBotToken() (string, error) {
	return f.required("telegram_bot_token")
}

// StoreTimeout bounds a single pass against the database
func (f *File) StoreTimeout() (time.Duration, error) {
	timeout := f.v.GetDuration("store_timeout")
	if timeout <= 0 {
		return 0, fmt.Errorf("invalid store_timeout %q in config file %s", f.v.GetString("store_timeout"), f.path)
	}

	return timeout, nil
}

// TriggerCrontab for the serve command
func (f *File) TriggerCrontab() (string, error) {
	return f.v.GetString("trigger_crontab"), nil
}

// GatewayRate in pushes per second
func (f *File) GatewayRate() (float64, error) {
	return f.v.GetFloat64("gateway_rate"), nil
}

// Workers per pass
func (f *File) Workers() (int, error) {
	workers := f.v.GetInt("workers")
	if workers <= 0 {
		return 0, fmt.Errorf("invalid workers %q in config file %s", f.v.GetString("workers"), f.path)
	}

	return workers, nil
}

// MetricsListen address for the debug server
func (f *File) MetricsListen() (string, error) {
	return f.v.GetString("metrics_listen"), nil
}
