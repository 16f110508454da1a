// Package taskqueue delivers queued tasks to worker HTTP endpoints with
// at-least-once semantics.
package taskqueue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Enqueuer is the interface services use to schedule background work. The
// payload is delivered as a JSON POST body to the target path. Delivery is
// at-least-once: a task may be redelivered if an earlier delivery's outcome
// was not observed, so worker endpoints must be idempotent.
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName, targetPath string, payload any) (string, error)
}

// RetryConfig configures redelivery of tasks whose HTTP delivery failed.
type RetryConfig struct {
	MaxAttempts    int           // Total delivery attempts (minimum 1)
	InitialBackoff time.Duration // Initial backoff duration
	MaxBackoff     time.Duration // Maximum backoff duration (cap)
	BackoffFactor  float64       // Multiplier for exponential backoff
}

// DefaultRetryConfig returns sensible defaults for delivery retries.
// Backoff schedule: 2s, 4s, 8s, then 16s for the final attempt.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
	}
}

// Dispatcher delivers tasks over HTTP to worker endpoints. Each enqueued
// task is handed to a goroutine that POSTs the payload, retrying transport
// failures and non-2xx responses with exponential backoff and jitter. A 2xx
// response acknowledges the task and ends delivery.
type Dispatcher struct {
	baseURL string
	client  *http.Client
	retry   RetryConfig
	logger  *zap.Logger

	// task headers identify redeliveries to the worker
	mu       sync.Mutex
	stopped  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithRetryConfig sets the delivery retry configuration. Zero fields fall
// back to their DefaultRetryConfig values, so a caller overriding only
// MaxAttempts keeps the default backoff schedule.
func WithRetryConfig(cfg RetryConfig) DispatcherOption {
	return func(d *Dispatcher) {
		def := DefaultRetryConfig()
		if cfg.MaxAttempts <= 0 {
			cfg.MaxAttempts = def.MaxAttempts
		}
		if cfg.InitialBackoff <= 0 {
			cfg.InitialBackoff = def.InitialBackoff
		}
		if cfg.MaxBackoff <= 0 {
			cfg.MaxBackoff = def.MaxBackoff
		}
		if cfg.BackoffFactor <= 0 {
			cfg.BackoffFactor = def.BackoffFactor
		}
		d.retry = cfg
	}
}

// WithHTTPClient sets the HTTP client used for delivery.
func WithHTTPClient(client *http.Client) DispatcherOption {
	return func(d *Dispatcher) {
		if client != nil {
			d.client = client
		}
	}
}

// NewDispatcher creates a dispatcher delivering to endpoints under baseURL.
func NewDispatcher(baseURL string, logger *zap.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		client:   &http.Client{Timeout: 10 * time.Minute},
		retry:    DefaultRetryConfig(),
		logger:   logger.Named("taskqueue"),
		stopChan: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Enqueue implements Enqueuer. It returns as soon as the task is accepted
// for delivery; delivery itself happens in the background.
func (d *Dispatcher) Enqueue(ctx context.Context, queueName, targetPath string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal task payload: %w", err)
	}

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return "", fmt.Errorf("dispatcher stopped")
	}
	taskID := uuid.New().String()
	d.wg.Add(1)
	d.mu.Unlock()

	d.logger.Info("task enqueued",
		zap.String("task_id", taskID),
		zap.String("queue", queueName),
		zap.String("target", targetPath))

	go d.deliver(taskID, queueName, targetPath, body)

	return taskID, nil
}

// deliver POSTs the payload until a 2xx response or attempts are exhausted.
func (d *Dispatcher) deliver(taskID, queueName, targetPath string, body []byte) {
	defer d.wg.Done()

	url := d.baseURL + targetPath

	var lastErr error
	for attempt := 1; attempt <= d.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			backoff := d.calculateBackoff(attempt)
			d.logger.Info("retrying task delivery after backoff",
				zap.String("task_id", taskID),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", d.retry.MaxAttempts),
				zap.Duration("backoff", backoff))

			select {
			case <-d.stopChan:
				d.logger.Warn("dispatcher stopped, abandoning task",
					zap.String("task_id", taskID))
				return
			case <-time.After(backoff):
			}
		}

		lastErr = d.attemptDelivery(taskID, queueName, url, body, attempt)
		if lastErr == nil {
			d.logger.Info("task delivered",
				zap.String("task_id", taskID),
				zap.Int("attempt", attempt))
			return
		}

		d.logger.Warn("task delivery failed",
			zap.String("task_id", taskID),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
	}

	d.logger.Error("task delivery exhausted all attempts",
		zap.String("task_id", taskID),
		zap.String("queue", queueName),
		zap.Error(lastErr))
}

// attemptDelivery performs one POST. Any 2xx response acknowledges the task.
func (d *Dispatcher) attemptDelivery(taskID, queueName, url string, body []byte, attempt int) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Task-ID", taskID)
	req.Header.Set("X-Queue-Name", queueName)
	req.Header.Set("X-Delivery-Attempt", fmt.Sprintf("%d", attempt))

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post task: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("worker returned HTTP %d", resp.StatusCode)
	}

	return nil
}

// calculateBackoff computes the backoff duration for a retry attempt.
// Uses exponential backoff with jitter.
func (d *Dispatcher) calculateBackoff(attempt int) time.Duration {
	backoff := float64(d.retry.InitialBackoff) *
		math.Pow(d.retry.BackoffFactor, float64(attempt-2))

	if backoff > float64(d.retry.MaxBackoff) {
		backoff = float64(d.retry.MaxBackoff)
	}

	// Add jitter (±10%) to prevent thundering herd
	jitter := backoff * 0.1 * (rand.Float64()*2 - 1)

	return time.Duration(backoff + jitter)
}

// Stop prevents new enqueues and waits for in-flight deliveries to finish or
// the context to expire. Pending backoff waits are interrupted.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.stopChan)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ensure Dispatcher implements Enqueuer at compile time.
var _ Enqueuer = (*Dispatcher)(nil)
