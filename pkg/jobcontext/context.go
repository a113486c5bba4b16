// Package jobcontext carries call-processing job metadata through
// context and provides retry classification for pipeline stages.
package jobcontext

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type contextKey string

var (
	keyCallID    contextKey = "call_id"
	keyStage     contextKey = "stage"
	keyWorkerID  contextKey = "worker_id"
	keyAttempt   contextKey = "attempt"
	keyStartTime contextKey = "start_time"
)

// Pipeline stage names recorded in job contexts
const (
	StageTranscription = "transcription"
	StageMasking       = "masking"
	StageAnalysis      = "analysis"
)

// JobBegin derives a bounded context carrying call and stage metadata.
// The timeout prevents a wedged external call from pinning a worker.
func JobBegin(parentCtx context.Context, callID uuid.UUID, stage string, workerID int, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	ctx, cancel := context.WithTimeout(parentCtx, timeout)

	ctx = context.WithValue(ctx, keyCallID, callID)
	ctx = context.WithValue(ctx, keyStage, stage)
	ctx = context.WithValue(ctx, keyWorkerID, workerID)
	ctx = context.WithValue(ctx, keyAttempt, 0)
	ctx = context.WithValue(ctx, keyStartTime, time.Now())

	return ctx, cancel
}

// Run executes the job function with panic recovery and retries of
// transient failures using exponential backoff.
func Run(ctx context.Context, maxRetries int, jobFunc func(context.Context) error) error {
	if maxRetries <= 0 {
		maxRetries = 3
	}

	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		attemptCtx := context.WithValue(ctx, keyAttempt, attempt)

		func(ctx context.Context) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("panic recovered: %v", p)
				}
			}()

			if ctx.Err() != nil {
				err = fmt.Errorf("context cancelled before job execution: %w", ctx.Err())
				return
			}

			err = jobFunc(ctx)
		}(attemptCtx)

		if err == nil {
			return nil
		}
		if !IsRetryableError(err) {
			return fmt.Errorf("non-retryable error: %w", err)
		}
		if attempt == maxRetries-1 {
			break
		}
		if ctx.Err() != nil {
			return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}

		time.Sleep(CalculateBackoff(attempt, 2*time.Second))
	}

	return fmt.Errorf("job failed after %d attempts: %w", maxRetries, err)
}

// GetCallID extracts the call ID from context
func GetCallID(ctx context.Context) (uuid.UUID, bool) {
	callID, ok := ctx.Value(keyCallID).(uuid.UUID)
	return callID, ok
}

// GetStage extracts the pipeline stage from context
func GetStage(ctx context.Context) (string, bool) {
	stage, ok := ctx.Value(keyStage).(string)
	return stage, ok
}

// GetWorkerID extracts the worker ID from context
func GetWorkerID(ctx context.Context) int {
	workerID, ok := ctx.Value(keyWorkerID).(int)
	if !ok {
		return -1
	}
	return workerID
}

// GetAttempt extracts the current retry attempt from context
func GetAttempt(ctx context.Context) int {
	attempt, ok := ctx.Value(keyAttempt).(int)
	if !ok {
		return 0
	}
	return attempt
}

// GetStartTime extracts the job start time from context
func GetStartTime(ctx context.Context) (time.Time, bool) {
	startTime, ok := ctx.Value(keyStartTime).(time.Time)
	return startTime, ok
}

// IsRetryableError reports whether an error is transient: network
// failures, timeouts, database lock conflicts and rate limits.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "context deadline exceeded") ||
		strings.Contains(errStr, "context canceled") {
		return true
	}

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "network unreachable") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "i/o timeout") {
		return true
	}

	// Postgres serialization_failure and deadlock_detected
	if strings.Contains(errStr, "deadlock") ||
		strings.Contains(errStr, "40001") ||
		strings.Contains(errStr, "40p01") {
		return true
	}

	if strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "429") {
		return true
	}

	if strings.Contains(errStr, "status 5") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "service unavailable") ||
		strings.Contains(errStr, "bad gateway") {
		return true
	}

	if strings.Contains(errStr, "temporary failure") ||
		strings.Contains(errStr, "try again") {
		return true
	}

	return false
}

// CalculateBackoff returns the exponential backoff delay for an attempt,
// capped at 60 seconds.
func CalculateBackoff(attempt int, baseDelay time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	backoff := time.Duration(1<<uint(attempt)) * baseDelay

	maxBackoff := 60 * time.Second
	if backoff > maxBackoff {
		backoff = maxBackoff
	}

	return backoff
}
