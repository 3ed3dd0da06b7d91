package main

import (
	"time"

	"go.uber.org/zap"

	"github.com/nicolive-tools/ndgr-downloader/internal/api"
	"github.com/nicolive-tools/ndgr-downloader/internal/archive"
	"github.com/nicolive-tools/ndgr-downloader/internal/config"
	"github.com/nicolive-tools/ndgr-downloader/internal/discovery"
)

func buildClient(cfg *config.Config, logger *zap.Logger) *api.HTTPClient {
	return api.NewClient(
		cfg.API.RatePerSecond,
		time.Duration(cfg.API.TimeoutSec)*time.Second,
		time.Duration(cfg.API.RetryDelaySec)*time.Second,
		cfg.API.RetryCount,
		cfg.API.MaxRecordBytes,
		logger,
	)
}

func buildDiscovery(cfg *config.Config, logger *zap.Logger) *discovery.Client {
	return discovery.NewClient(
		cfg.API.WatchBaseURL,
		time.Duration(cfg.API.TimeoutSec)*time.Second,
		logger,
	)
}

func buildArchive(cfg *config.Config) *archive.Manager {
	return archive.NewManager(cfg.Output.Directory)
}

// effectiveChannels resolves the channel list: CLI args win over config.
func effectiveChannels(args []string, cfg *config.Config) []string {
	if len(args) > 0 {
		return args
	}
	return cfg.Channels
}
