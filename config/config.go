package config

import "time"

// Config for application setup
type Config interface {
	BadgerPath() (string, error)
	ReportsPath() (string, error)
	ReportFormat() (string, error)
	Location() (*time.Location, error)
	Gateway() (string, error)
	PushoverAPIToken() (string, error)
	TelegramBotToken() (string, error)
	StoreTimeout() (time.Duration, error)
	TriggerCrontab() (string, error)
	GatewayRate() (float64, error)
	Workers() (int, error)
	MetricsListen() (string, error)
}

// Defaults for optional settings
const (
	DefaultReportsPath    = "reports"
	DefaultReportFormat   = "json"
	DefaultLocation       = "Asia/Tokyo"
	DefaultGateway        = "pushover"
	DefaultStoreTimeout   = 30 * time.Second
	DefaultTriggerCrontab = "* * * * *"
	DefaultGatewayRate    = 5.0
	DefaultWorkers        = 4
	DefaultMetricsListen  = "127.0.0.1:8001"
)
