// The daemon records live comments for every configured channel
// continuously: one polling subscription per channel, restarted with a delay
// when the stream becomes unavailable, all stopped together on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nicolive-tools/ndgr-downloader/internal/api"
	"github.com/nicolive-tools/ndgr-downloader/internal/archive"
	"github.com/nicolive-tools/ndgr-downloader/internal/config"
	"github.com/nicolive-tools/ndgr-downloader/internal/discovery"
)

func setupLogger(logCfg *config.LoggingConfig) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	zapConfig.DisableStacktrace = true

	if logCfg.Level != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(logCfg.Level)); err == nil {
			zapConfig.Level = zap.NewAtomicLevelAt(level)
		}
	}

	if logCfg.Enabled {
		if err := os.MkdirAll(logCfg.Directory, 0755); err != nil {
			return nil, fmt.Errorf("creating logs directory: %w", err)
		}
		timestamp := time.Now().Format("2006-01-02_15-04-05")
		logFile := filepath.Join(logCfg.Directory, fmt.Sprintf("daemon_%s.log", timestamp))
		zapConfig.OutputPaths = append(zapConfig.OutputPaths, logFile)
	}

	return zapConfig.Build()
}

func main() {
	cfg, err := config.Load(os.Getenv("NDGR_DOWNLOADER_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger, err := setupLogger(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if len(cfg.Channels) == 0 {
		logger.Fatal("no channels configured")
	}
	if err := config.ValidateChannels(cfg.Channels); err != nil {
		logger.Fatal("invalid channels", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := api.NewClient(
		cfg.API.RatePerSecond,
		time.Duration(cfg.API.TimeoutSec)*time.Second,
		time.Duration(cfg.API.RetryDelaySec)*time.Second,
		cfg.API.RetryCount,
		cfg.API.MaxRecordBytes,
		logger,
	)
	disc := discovery.NewClient(cfg.API.WatchBaseURL, time.Duration(cfg.API.TimeoutSec)*time.Second, logger)
	arc := archive.NewManager(cfg.Output.Directory)

	logger.Info("daemon started", zap.Strings("channels", cfg.Channels))

	var wg sync.WaitGroup
	for _, channel := range cfg.Channels {
		wg.Add(1)
		go func(channel string) {
			defer wg.Done()
			rec := &recorder{
				channel:      channel,
				client:       client,
				discovery:    disc,
				archive:      arc,
				minPoll:      time.Duration(cfg.Live.MinPollIntervalSec) * time.Second,
				restartDelay: time.Duration(cfg.Live.RestartDelaySec) * time.Second,
				resume:       cfg.Download.ResumeEnabled,
				logger:       logger.With(zap.String("channel", channel)),
			}
			rec.run(ctx)
		}(channel)
	}

	wg.Wait()
	logger.Info("daemon stopped")
}
