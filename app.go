package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"git.0xdad.com/tblyler/medreminder/config"
	"git.0xdad.com/tblyler/medreminder/db"
	"git.0xdad.com/tblyler/medreminder/metrics"
	"git.0xdad.com/tblyler/medreminder/notify"
	"git.0xdad.com/tblyler/medreminder/reminder"
	"git.0xdad.com/tblyler/medreminder/report"
	"go.uber.org/zap"
)

const (
	configPathEnv = "MEDREMINDER_CONFIG"
	debugEnv      = "MEDREMINDER_DEBUG"

	breakerFailures = 5
	breakerCooldown = time.Minute
)

func newLogger() (*zap.Logger, error) {
	if _, ok := os.LookupEnv(debugEnv); ok {
		return zap.NewDevelopment()
	}

	return zap.NewProduction()
}

func loadConfig() (config.Config, error) {
	if path, ok := os.LookupEnv(configPathEnv); ok && path != "" {
		return config.NewFile(path)
	}

	return &config.Env{}, nil
}

// app holds everything the commands share
type app struct {
	cfg        config.Config
	logger     *zap.Logger
	badger     *db.Badger
	loc        *time.Location
	metrics    *metrics.Metrics
	dispatcher *notify.Dispatcher
}

func newApp(cfg config.Config, logger *zap.Logger) (*app, error) {
	badgerPath, err := cfg.BadgerPath()
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	gateway, err := newGateway(cfg, logger)
	if err != nil {
		return nil, err
	}

	gatewayRate, err := cfg.GatewayRate()
	if err != nil {
		return nil, err
	}

	b, err := db.NewBadger(badgerPath)
	if err != nil {
		return nil, err
	}

	m := metrics.New()

	return &app{
		cfg:     cfg,
		logger:  logger,
		badger:  b,
		loc:     loc,
		metrics: m,
		dispatcher: notify.NewDispatcher(
			gateway,
			b,
			logger.Named("dispatcher"),
			notify.WithRateLimit(gatewayRate),
			notify.WithObserver(m),
		),
	}, nil
}

func (a *app) Close() error {
	return a.badger.Close()
}

// newGateway for the configured gateway kind. A missing or placeholder token
// yields a nil gateway, putting the dispatcher in dry-run mode.
func newGateway(cfg config.Config, logger *zap.Logger) (notify.Gateway, error) {
	kind, err := cfg.Gateway()
	if err != nil {
		return nil, err
	}

	var token string
	switch kind {
	case "pushover":
		token, err = cfg.PushoverAPIToken()
	case "telegram":
		token, err = cfg.TelegramBotToken()
	default:
		return nil, fmt.Errorf("unknown notification gateway %q, must be pushover or telegram", kind)
	}

	if errors.Is(err, config.ErrEnvVariableNotSet) || errors.Is(err, config.ErrSettingNotSet) {
		token = ""
	} else if err != nil {
		return nil, err
	}

	if notify.IsPlaceholderToken(token) {
		logger.Warn("No gateway credential configured, notifications run dry", zap.String("gateway", kind))
		return nil, nil
	}

	var gateway notify.Gateway
	switch kind {
	case "pushover":
		gateway = notify.NewPushover(token)
	case "telegram":
		gateway = notify.NewTelegram(token, "")
	}

	return notify.NewBreaker(gateway, breakerFailures, breakerCooldown, logger.Named("breaker")), nil
}

func (a *app) runner() (*reminder.Runner, error) {
	workers, err := a.cfg.Workers()
	if err != nil {
		return nil, err
	}

	timeout, err := a.cfg.StoreTimeout()
	if err != nil {
		return nil, err
	}

	scheduler := reminder.NewScheduler(a.badger, a.dispatcher, a.loc, workers, a.logger.Named("scheduler"))
	detector := reminder.NewDetector(a.badger, a.dispatcher, a.loc, workers, a.logger.Named("detector"))

	return reminder.NewRunner(scheduler, detector, timeout, a.metrics, a.logger.Named("runner")), nil
}

func (a *app) engine() (*report.Engine, error) {
	reportsPath, err := a.cfg.ReportsPath()
	if err != nil {
		return nil, err
	}

	format, err := a.cfg.ReportFormat()
	if err != nil {
		return nil, err
	}

	artifacts, err := report.NewDirArtifacts(reportsPath, format)
	if err != nil {
		return nil, err
	}

	return report.NewEngine(
		a.badger,
		artifacts,
		a.dispatcher,
		a.loc,
		a.logger.Named("report"),
		report.WithObserver(a.metrics),
	), nil
}
