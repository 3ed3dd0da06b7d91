package main

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/nicolive-tools/ndgr-downloader/internal/api"
	"github.com/nicolive-tools/ndgr-downloader/internal/archive"
	"github.com/nicolive-tools/ndgr-downloader/internal/assemble"
	"github.com/nicolive-tools/ndgr-downloader/internal/discovery"
	"github.com/nicolive-tools/ndgr-downloader/internal/live"
)

// recorder keeps one channel's live subscription alive, writing every comment
// to the channel's archive log.
type recorder struct {
	channel      string
	client       api.Client
	discovery    *discovery.Client
	archive      *archive.Manager
	minPoll      time.Duration
	restartDelay time.Duration
	resume       bool
	logger       *zap.Logger
}

func (r *recorder) run(ctx context.Context) {
	for {
		if err := r.record(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			r.logger.Error("recording stopped; will restart",
				zap.Error(err),
				zap.Duration("delay", r.restartDelay))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.restartDelay):
		}
	}
}

func (r *recorder) record(ctx context.Context) error {
	entryURI, err := r.discovery.EntryURI(ctx, r.channel)
	if err != nil {
		return err
	}

	logFile, err := r.archive.OpenLog(r.channel)
	if err != nil {
		return err
	}
	defer func() {
		if err := logFile.Close(); err != nil {
			r.logger.Warn("closing live log", zap.Error(err))
		}
	}()

	poller := live.NewPoller(r.client, r.minPoll, r.logger)
	if r.resume {
		poller.OnCheckpoint(func(at int64) {
			if err := r.archive.SaveCheckpoint(r.channel, archive.Checkpoint{LiveAt: at}); err != nil {
				r.logger.Warn("failed to save checkpoint", zap.Error(err))
			}
		})
		if cp, ok, err := r.archive.LoadCheckpoint(r.channel); err == nil && ok && cp.LiveAt > 0 {
			poller.ResumeFrom(cp.LiveAt)
			r.logger.Info("resuming from checkpoint", zap.Int64("at", cp.LiveAt))
		}
	}

	asm := assemble.New()
	r.logger.Info("recording live comments", zap.String("entry", entryURI))

	return poller.Run(ctx, entryURI, asm, func(c assemble.Comment) error {
		return logFile.Append(c)
	})
}
