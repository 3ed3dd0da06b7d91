// Package download runs batch kakolog downloads: every requested channel gets
// its own backward traversal, and failures stay local to one channel.
package download

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nicolive-tools/ndgr-downloader/internal/api"
	"github.com/nicolive-tools/ndgr-downloader/internal/archive"
	"github.com/nicolive-tools/ndgr-downloader/internal/assemble"
	"github.com/nicolive-tools/ndgr-downloader/internal/backward"
	"github.com/nicolive-tools/ndgr-downloader/internal/discovery"
	"github.com/nicolive-tools/ndgr-downloader/internal/protocol"
)

type Manager struct {
	resolver discovery.Resolver
	client   api.Client
	archive  *archive.Manager
	workers  int
	resume   bool
	logger   *zap.Logger
}

func NewManager(resolver discovery.Resolver, client api.Client, archive *archive.Manager, workers int, resume bool, logger *zap.Logger) *Manager {
	return &Manager{
		resolver: resolver,
		client:   client,
		archive:  archive,
		workers:  workers,
		resume:   resume,
		logger:   logger,
	}
}

// Execute downloads the full historical log of every channel using a bounded
// worker pool. Each channel is an independent subscription: one failing never
// stops the others.
func (m *Manager) Execute(ctx context.Context, channels []string) (*BatchResult, error) {
	result := &BatchResult{Total: len(channels)}

	if len(channels) == 0 {
		return result, nil
	}

	jobs := make(chan Task, len(channels))
	results := make(chan TaskResult, len(channels))

	var wg sync.WaitGroup
	for i := 0; i < m.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.worker(ctx, jobs, results)
		}()
	}

	go func() {
		defer close(jobs)
		for _, ch := range channels {
			select {
			case <-ctx.Done():
				return
			case jobs <- Task{Channel: ch}:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		result.record(r)
	}

	return result, nil
}

func (m *Manager) worker(ctx context.Context, jobs <-chan Task, results chan<- TaskResult) {
	for task := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		result := m.processTask(ctx, task)

		select {
		case <-ctx.Done():
			return
		case results <- result:
		}
	}
}

func (m *Manager) processTask(ctx context.Context, task Task) TaskResult {
	result := TaskResult{Task: task}

	runID := uuid.NewString()[:8]
	log := m.logger.With(zap.String("channel", task.Channel), zap.String("run", runID))

	entryURI, err := m.resolver.EntryURI(ctx, task.Channel)
	if err != nil {
		result.Error = err
		return result
	}

	log.Info("downloading kakolog", zap.String("entry", entryURI))

	asm := assemble.NewBatch()
	collector := backward.NewCollector(m.client, log)
	if m.resume {
		if cp, found, err := m.archive.LoadCheckpoint(task.Channel); err == nil && found && cp.BackwardURI != "" {
			// A previous run got as far as cp.BackwardURI. Keep what it
			// archived and continue the chain from there instead of
			// re-walking from the newest link.
			if prior, err := archive.ReadComments(m.archive.KakologPath(task.Channel)); err == nil {
				asm.Seed(prior)
			}
			collector.ResumeFrom(cp.BackwardURI)
			log.Info("resuming backward traversal",
				zap.String("uri", cp.BackwardURI),
				zap.Int("archived", asm.SeenCount()))
		}
	}
	collector.OnCheckpoint(func(uri string) {
		if err := m.archive.SaveCheckpoint(task.Channel, archive.Checkpoint{BackwardURI: uri}); err != nil {
			log.Warn("failed to save checkpoint", zap.Error(err))
		}
	})

	err = collector.Collect(ctx, entryURI, func(msg protocol.ChunkedMessage) error {
		asm.Push(msg)
		return nil
	})
	if err != nil {
		result.Error = err
		return result
	}

	comments := asm.Flush()
	if len(comments) == 0 {
		log.Info("no historical comments")
		result.Empty = true
		result.Success = true
		return result
	}

	path, err := m.archive.WriteComments(task.Channel, comments)
	if err != nil {
		result.Error = err
		return result
	}

	result.Success = true
	result.Comments = len(comments)
	result.Path = path
	log.Info("kakolog written", zap.Int("comments", len(comments)), zap.String("path", path))

	return result
}
