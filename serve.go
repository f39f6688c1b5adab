package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// cronLogger adapts zap to the cron.Logger interface
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}

// tick once and print the results of both passes
func tick(ctx context.Context, a *app) error {
	runner, err := a.runner()
	if err != nil {
		return err
	}

	reminders, missed, err := runner.Tick(ctx, time.Now())
	for _, result := range []struct {
		name    string
		matched int
		changed int
		sent    int
		errors  int
	}{
		{name: "reminders", matched: reminders.Matched, changed: reminders.LogsCreated, sent: reminders.Notified, errors: len(reminders.Errors)},
		{name: "missed", matched: missed.Matched, changed: missed.Transitioned, sent: missed.Notified, errors: len(missed.Errors)},
	} {
		log(result.name, "matched", result.matched, "changed", result.changed, "notified", result.sent, "errors", result.errors)
	}

	for _, itemErr := range append(reminders.Errors, missed.Errors...) {
		errLog(itemErr.Error())
	}

	return err
}

// serve ticks on the trigger crontab until interrupted
func serve(a *app) error {
	crontab, err := a.cfg.TriggerCrontab()
	if err != nil {
		return err
	}

	listen, err := a.cfg.MetricsListen()
	if err != nil {
		return err
	}

	runner, err := a.runner()
	if err != nil {
		return err
	}

	logger := a.logger.Named("serve")
	cl := cronLogger{sugar: logger.Sugar()}

	c := cron.New(
		cron.WithLocation(a.loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	_, err = c.AddFunc(crontab, func() {
		if _, _, err := runner.Tick(context.Background(), time.Now()); err != nil {
			logger.Error("Tick failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	debugServer := &http.Server{
		Addr:    listen,
		Handler: a.metrics.DebugMux(),

		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		if err := debugServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Debug server died", zap.Error(err))
		}
	}()

	logger.Info("Serving",
		zap.String("crontab", crontab),
		zap.String("location", a.loc.String()),
		zap.String("debug_listen", listen),
		zap.Bool("dry_run", a.dispatcher.DryRun()),
	)
	c.Start()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	<-signalCh

	logger.Info("Shutting down, waiting for a running tick")
	<-c.Stop().Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return debugServer.Shutdown(ctx)
}
