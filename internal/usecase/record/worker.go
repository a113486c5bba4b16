package record

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Worker periodically sweeps for calls stuck in a non-terminal state
// (crashed process, lost goroutine) and resumes them. Claims go through
// a conditional update, so running multiple instances is safe.
type Worker struct {
	svc       *Service
	interval  time.Duration
	threshold time.Duration
	batchSize int

	stopChan chan struct{}
	doneChan chan struct{}
	logger   *zap.Logger
}

// NewWorker creates a stuck-call sweep worker
func NewWorker(svc *Service, interval, threshold time.Duration, logger *zap.Logger) *Worker {
	if interval <= 0 {
		interval = time.Minute
	}
	if threshold <= 0 {
		threshold = 20 * time.Minute
	}
	return &Worker{
		svc:       svc,
		interval:  interval,
		threshold: threshold,
		batchSize: 20,
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
		logger:    logger,
	}
}

// Start launches the sweep loop in its own goroutine
func (w *Worker) Start() {
	go w.run()

	if w.logger != nil {
		w.logger.Info("🔄 Stuck-call worker started",
			zap.Duration("interval", w.interval),
			zap.Duration("threshold", w.threshold),
		)
	}
}

// Stop signals the loop to exit and waits for the current sweep to finish
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan

	if w.logger != nil {
		w.logger.Info("🛑 Stuck-call worker stopped")
	}
}

func (w *Worker) run() {
	defer close(w.doneChan)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *Worker) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stuck, err := w.svc.calls.FindStuck(ctx, w.threshold, w.batchSize)
	if err != nil {
		if w.logger != nil {
			w.logger.Error("❌ Failed to query stuck calls", zap.Error(err))
		}
		return
	}
	if len(stuck) == 0 {
		return
	}

	if w.logger != nil {
		w.logger.Warn("⏰ Found stuck calls", zap.Int("count", len(stuck)))
	}

	staleBefore := time.Now().Add(-w.threshold)
	for _, call := range stuck {
		won, err := w.svc.calls.ClaimStale(ctx, call.ID, call.Status, staleBefore)
		if err != nil {
			if w.logger != nil {
				w.logger.Error("❌ Failed to claim stuck call",
					zap.String("call_id", call.ID.String()),
					zap.Error(err),
				)
			}
			continue
		}
		if !won {
			continue
		}

		if w.logger != nil {
			w.logger.Info("🔁 Resuming stuck call",
				zap.String("call_id", call.ID.String()),
				zap.String("status", string(call.Status)),
			)
		}
		go w.svc.resume(call)
	}
}
