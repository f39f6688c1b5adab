package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	// BadgerPathEnv name
	BadgerPathEnv = "BADGER_PATH"
	// ReportsPathEnv name
	ReportsPathEnv = "REPORTS_PATH"
	// ReportFormatEnv name
	ReportFormatEnv = "REPORT_FORMAT"
	// LocationEnv name
	LocationEnv = "REMINDER_TIMEZONE"
	// GatewayEnv name
	GatewayEnv = "NOTIFY_GATEWAY"
	// PushoverAPITokenEnv name
	PushoverAPITokenEnv = "PUSHOVER_API_TOKEN"
	// TelegramBotTokenEnv name
	TelegramBotTokenEnv = "TELEGRAM_BOT_TOKEN"
	// StoreTimeoutEnv name
	StoreTimeoutEnv = "STORE_TIMEOUT"
	// TriggerCrontabEnv name
	TriggerCrontabEnv = "TRIGGER_CRONTAB"
	// GatewayRateEnv name
	GatewayRateEnv = "GATEWAY_RATE"
	// WorkersEnv name
	WorkersEnv = "WORKERS"
	// MetricsListenEnv name
	MetricsListenEnv = "METRICS_LISTEN"
)

var (
	// ErrEnvVariableNotSet occurs when an environment variable is not set
	ErrEnvVariableNotSet = errors.New("environment variable is not set")
)

// Env variable Config implementation
type Env struct {
}

// BadgerPath for the database directory
func (e *Env) BadgerPath() (string, error) {
	val, ok := os.LookupEnv(BadgerPathEnv)
	if !ok {
		return "", fmt.Errorf(
			"unable to get badger path from env variable %s: %w",
			BadgerPathEnv,
			ErrEnvVariableNotSet,
		)
	}

	return val, nil
}

// ReportsPath for report artifacts
func (e *Env) ReportsPath() (string, error) {
	return lookupOr(ReportsPathEnv, DefaultReportsPath), nil
}

// ReportFormat of report artifacts, json or yaml
func (e *Env) ReportFormat() (string, error) {
	return lookupOr(ReportFormatEnv, DefaultReportFormat), nil
}

// Location used for schedule matching and dose log timestamps
func (e *Env) Location() (*time.Location, error) {
	name := lookupOr(LocationEnv, DefaultLocation)

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %s in env variable %s: %w", name, LocationEnv, err)
	}

	return loc, nil
}

// Gateway kind, pushover or telegram
func (e *Env) Gateway() (string, error) {
	return lookupOr(GatewayEnv, DefaultGateway), nil
}

// PushoverAPIToken getter
func (e *Env) PushoverAPIToken() (string, error) {
	val, ok := os.LookupEnv(PushoverAPITokenEnv)
	if !ok {
		return "", fmt.Errorf(
			"unable to get pushover API token from env variable %s: %w",
			PushoverAPITokenEnv,
			ErrEnvVariableNotSet,
		)
	}

	return val, nil
}

// TelegramBotToken getter
func (e *Env) TelegramBotToken() (string, error) {
	val, ok := os.LookupEnv(TelegramBotTokenEnv)
	if !ok {
		return "", fmt.Errorf(
			"unable to get telegram bot token from env variable %s: %w",
			TelegramBotTokenEnv,
			ErrEnvVariableNotSet,
		)
	}

	return val, nil
}

// StoreTimeout bounds a single pass against the database
func (e *Env) StoreTimeout() (time.Duration, error) {
	val, ok := os.LookupEnv(StoreTimeoutEnv)
	if !ok {
		return DefaultStoreTimeout, nil
	}

	timeout, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid duration in env variable %s: %w", StoreTimeoutEnv, err)
	}

	return timeout, nil
}

// TriggerCrontab for the serve command
func (e *Env) TriggerCrontab() (string, error) {
	return lookupOr(TriggerCrontabEnv, DefaultTriggerCrontab), nil
}

// GatewayRate in pushes per second
func (e *Env) GatewayRate() (float64, error) {
	val, ok := os.LookupEnv(GatewayRateEnv)
	if !ok {
		return DefaultGatewayRate, nil
	}

	rate, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number in env variable %s: %w", GatewayRateEnv, err)
	}

	return rate, nil
}

// Workers per pass
func (e *Env) Workers() (int, error) {
	val, ok := os.LookupEnv(WorkersEnv)
	if !ok {
		return DefaultWorkers, nil
	}

	workers, err := strconv.Atoi(val)
	if err != nil || workers <= 0 {
		return 0, fmt.Errorf("invalid worker count %q in env variable %s", val, WorkersEnv)
	}

	return workers, nil
}

// MetricsListen address for the debug server
func (e *Env) MetricsListen() (string, error) {
	return lookupOr(MetricsListenEnv, DefaultMetricsListen), nil
}

func lookupOr(name, fallback string) string {
	val, ok := os.LookupEnv(name)
	if !ok || val == "" {
		return fallback
	}

	return val
}
