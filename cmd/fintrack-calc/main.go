package main

import (
	"os"
	"time"

	"fintrack/internal/cli"
	apphttp "fintrack/internal/http"
	applog "fintrack/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, os.Stdout)

	services, err := apphttp.ParseServices(cfg.Services)
	if err != nil {
		logger.Error("Invalid calculator selection", applog.FieldError, err.Error())
		os.Exit(1)
	}

	servers, err := apphttp.BuildServers(apphttp.Layout{
		Addr: cfg.Addr,
		Ports: map[apphttp.Service]int{
			apphttp.ServiceDailyLimit: cfg.DailyLimitPort,
			apphttp.ServiceAggregate:  cfg.AggregatePort,
			apphttp.ServiceProjection: cfg.ProjectionPort,
			apphttp.ServiceAlerts:     cfg.AlertsPort,
		},
	}, services, apphttp.Options{
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		MaxProjectionDays:  cfg.MaxProjectionDays,
		Location:           cfg.Location(),
	})
	if err != nil {
		logger.Error("Failed to build calculator servers", applog.FieldError, err.Error())
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	logger.Info("Starting fintrack calculators",
		applog.FieldOperation, applog.OpStartup,
		"servers", len(servers),
		"rate_limit_per_minute", cfg.RateLimitPerMinute)

	if err := apphttp.RunAll(ctx, servers, 30*time.Second, logger); err != nil {
		logger.Error("Calculator server error", applog.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Calculators stopped gracefully")
}
