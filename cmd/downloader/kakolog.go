package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nicolive-tools/ndgr-downloader/internal/config"
	"github.com/nicolive-tools/ndgr-downloader/internal/download"
	"github.com/nicolive-tools/ndgr-downloader/internal/notify"
)

func kakologCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "kakolog [CHANNEL...]",
		Short: "Download the full historical comment log of one or more channels",
		Long: `Download each channel's complete historical comment log (kakolog) by
walking the backward segment chain, and write it as compressed JSONL.

Examples:
  # Download one channel
  ndgr-downloader kakolog jk1

  # Download several channels concurrently
  ndgr-downloader kakolog jk1 jk2 jk211

  # Download every channel from the config
  ndgr-downloader kakolog --all`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			channels := args
			if all {
				channels = effectiveChannels(nil, cfg)
			}
			if len(channels) == 0 {
				return fmt.Errorf("no channels given (pass channel ids or --all with channels in config)")
			}

			if err := config.ValidateChannels(channels); err != nil {
				return err
			}

			notifyCfg := notify.LoadConfig()
			if err := notifyCfg.Validate(); err != nil {
				return err
			}
			notifier := notify.New(notifyCfg, logger)

			client := buildClient(cfg, logger)
			disc := buildDiscovery(cfg, logger)
			arc := buildArchive(cfg)

			mgr := download.NewManager(disc, client, arc, cfg.Download.Workers, cfg.Download.ResumeEnabled, logger)

			started := time.Now()
			result, err := mgr.Execute(ctx, channels)
			if err != nil {
				_ = notifier.SendFailure(ctx, result, time.Since(started), err)
				return err
			}

			logger.Info("kakolog download complete",
				zap.Int("total", result.Total),
				zap.Int("success", result.Success),
				zap.Int("empty", result.Empty),
				zap.Int("failed", result.Failed),
				zap.Int("comments", result.Comments),
			)

			if result.Failed > 0 {
				for _, e := range result.Errors {
					logger.Error("download error", zap.String("error", e))
				}
				_ = notifier.SendFailure(ctx, result, time.Since(started), nil)
				return fmt.Errorf("%d downloads failed", result.Failed)
			}

			_ = notifier.SendSuccess(ctx, result, time.Since(started))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "download every channel listed in the config")

	return cmd
}
