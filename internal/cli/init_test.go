package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"fintrack/internal/config"
	applog "fintrack/internal/log"
)

func TestSetupLoggerHonoursFormatAndDebug(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Defaults()
	cfg.LogFormat = "json"
	cfg.Debug = true

	logger := SetupLogger(cfg, &buf)
	logger.Debug("hello")
	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Errorf("expected JSON debug record, got %q", buf.String())
	}
}

func TestGracefulShutdownRunsCleanup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ran := make(chan struct{})
	done := GracefulShutdown(ctx, applog.Discard(), time.Second, func(context.Context) { close(ran) })

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not finish")
	}
	select {
	case <-ran:
	default:
		t.Error("cleanup not run")
	}
}

func TestGracefulShutdownTimesOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	block := make(chan struct{})
	defer close(block)
	done := GracefulShutdown(ctx, applog.Discard(), 10*time.Millisecond, func(context.Context) { <-block })

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout not honoured")
	}
}
