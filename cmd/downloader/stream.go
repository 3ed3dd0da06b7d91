package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nicolive-tools/ndgr-downloader/internal/archive"
	"github.com/nicolive-tools/ndgr-downloader/internal/assemble"
	"github.com/nicolive-tools/ndgr-downloader/internal/config"
	"github.com/nicolive-tools/ndgr-downloader/internal/live"
)

func streamCmd() *cobra.Command {
	var resume bool

	cmd := &cobra.Command{
		Use:   "stream CHANNEL",
		Short: "Stream live comments from a channel in real time",
		Long: `Stream live comments from the NDGR comment server as the broadcast proceeds.

The channel may be a legacy jk alias (e.g. jk1, jk211) or a native kl id.
Streaming continues until interrupted (Ctrl-C) or the stream becomes
unavailable after retries.

Examples:
  # Stream comments from jk1
  ndgr-downloader stream jk1

  # Resume from the last checkpoint instead of the live tail
  ndgr-downloader stream --resume jk1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			channel := args[0]

			if err := config.ValidateChannels([]string{channel}); err != nil {
				return err
			}

			disc := buildDiscovery(cfg, logger)
			entryURI, err := disc.EntryURI(ctx, channel)
			if err != nil {
				return err
			}
			logger.Info("resolved entry point", zap.String("channel", channel), zap.String("entry", entryURI))

			client := buildClient(cfg, logger)
			arc := buildArchive(cfg)

			poller := live.NewPoller(client, time.Duration(cfg.Live.MinPollIntervalSec)*time.Second, logger)
			if cfg.Download.ResumeEnabled {
				poller.OnCheckpoint(func(at int64) {
					if err := arc.SaveCheckpoint(channel, archive.Checkpoint{LiveAt: at}); err != nil {
						logger.Warn("failed to save checkpoint", zap.Error(err))
					}
				})
				if resume {
					if cp, ok, err := arc.LoadCheckpoint(channel); err == nil && ok && cp.LiveAt > 0 {
						poller.ResumeFrom(cp.LiveAt)
						logger.Info("resuming from checkpoint", zap.Int64("at", cp.LiveAt))
					}
				}
			}

			asm := assemble.New()
			asm.SetObserver(func(ev assemble.StateEvent) {
				if ev.Signal != nil {
					logger.Debug("signal record", zap.String("id", ev.ID), zap.Stringer("signal", ev.Signal))
				}
			})

			err = poller.Run(ctx, entryURI, asm, func(c assemble.Comment) error {
				fmt.Printf("[%s] %s\n", c.At.Format("2006/01/02 15:04:05.000"), c.Content)
				fmt.Printf("        User: %s | Command: %s %s %s %s\n",
					c.HashedUserID, c.Attributes.Position, c.Attributes.Size, c.Attributes.Color, c.Attributes.Font)
				return nil
			})
			if errors.Is(err, context.Canceled) {
				logger.Info("stream stopped", zap.Int("comments", asm.SeenCount()))
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&resume, "resume", false, "resume from the last saved checkpoint")

	return cmd
}
