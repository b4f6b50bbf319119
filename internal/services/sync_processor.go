package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// PendingSyncer pushes outstanding outbox rows to the external recorder and
// reports how many it synced.
type PendingSyncer interface {
	ProcessPending(ctx context.Context) (int, error)
}

type SyncProcessorConfig struct {
	// PollInterval between sweeps; zero means 30s.
	PollInterval time.Duration
}

func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{PollInterval: 30 * time.Second}
}

// SweepStats counts what the processor did since it was created.
type SweepStats struct {
	Sweeps int64
	Synced int64
	Failed int64
}

// SyncProcessor sweeps the outbox on a timer. It backs up the AMQP path for
// rows whose message was lost or whose first attempt failed.
type SyncProcessor struct {
	syncer PendingSyncer
	config SyncProcessorConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	sweeps, synced, failed atomic.Int64
}

func NewSyncProcessor(syncer PendingSyncer, config SyncProcessorConfig) *SyncProcessor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultSyncProcessorConfig().PollInterval
	}
	return &SyncProcessor{syncer: syncer, config: config}
}

// Start launches the sweep loop, which ends when ctx is done or Stop is
// called.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return errors.New("sync processor is already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(loopCtx, p.done)

	slog.InfoContext(ctx, "Sync processor started", "poll_interval", p.config.PollInterval)
	return nil
}

// Stop ends the loop and waits for an in-flight sweep, at most until ctx is
// done.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	select {
	case <-done:
		slog.InfoContext(ctx, "Sync processor stopped", "sweeps", p.sweeps.Load(), "synced", p.synced.Load())
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}
}

func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *SyncProcessor) Stats() SweepStats {
	return SweepStats{Sweeps: p.sweeps.Load(), Synced: p.synced.Load(), Failed: p.failed.Load()}
}

func (p *SyncProcessor) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

func (p *SyncProcessor) sweep(ctx context.Context) {
	p.sweeps.Add(1)
	n, err := p.syncer.ProcessPending(ctx)
	p.synced.Add(int64(n))
	if err != nil {
		if ctx.Err() == nil {
			p.failed.Add(1)
			slog.ErrorContext(ctx, "Pending sync sweep failed", "error", err)
		}
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "Pending sync sweep completed", "synced", n)
	}
}
