// Package dispatcher batches changed-path notifications and delivers them to
// the downstream consumer as signed webhook payloads. Delivery is
// at-least-once: paths are deduplicated while pending, failed batches are
// re-queued, and a path that exhausts its retries is written once to the
// dead-letter sink and dropped.
package dispatcher

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/drivehit/gallery-sync/internal/domain"
	"github.com/drivehit/gallery-sync/internal/port"
)

// Config contains dispatcher configuration
type Config struct {
	FlushInterval time.Duration
	MaxBatch      int
	MaxRetries    int
	Secret        string
}

// DefaultConfig returns default dispatcher configuration
func DefaultConfig() *Config {
	return &Config{
		FlushInterval: 30 * time.Second,
		MaxBatch:      50,
		MaxRetries:    3,
	}
}

// payload is the webhook body shape
type payload struct {
	Paths     []string `json:"paths"`
	Timestamp int64    `json:"timestamp"`
}

// Dispatcher implements port.Notifier
type Dispatcher struct {
	config      *Config
	sender      port.WebhookSender
	deadLetters port.DeadLetterRepository
	logger      *zap.Logger

	mu       sync.Mutex
	pending  map[string]struct{}
	attempts map[string]int

	kick    chan struct{}
	running bool
	cancel  context.CancelFunc
	now     func() time.Time
}

var _ port.Notifier = (*Dispatcher)(nil)

// New creates a new Dispatcher
func New(cfg *Config, sender port.WebhookSender, deadLetters port.DeadLetterRepository, logger *zap.Logger) *Dispatcher {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Dispatcher{
		config:      cfg,
		sender:      sender,
		deadLetters: deadLetters,
		logger:      logger,
		pending:     make(map[string]struct{}),
		attempts:    make(map[string]int),
		kick:        make(chan struct{}, 1),
		now:         time.Now,
	}
}

// Enqueue adds a changed path to the pending set. Duplicate paths collapse
// into one delivery. Crossing the batch threshold triggers an early flush.
func (d *Dispatcher) Enqueue(path string) {
	d.mu.Lock()
	d.pending[path] = struct{}{}
	full := len(d.pending) >= d.config.MaxBatch
	d.mu.Unlock()

	pendingPaths.Set(float64(d.pendingCount()))
	if full {
		select {
		case d.kick <- struct{}{}:
		default:
		}
	}
}

// Start flushes pending paths on the configured interval, or earlier when a
// batch fills, until the context ends. A final flush runs on shutdown.
func (d *Dispatcher) Start(ctx context.Context) error {
	if d.running {
		return fmt.Errorf("dispatcher already running")
	}
	d.running = true
	ctx, d.cancel = context.WithCancel(ctx)

	d.logger.Info("dispatcher started",
		zap.Duration("flush_interval", d.config.FlushInterval),
		zap.Int("max_batch", d.config.MaxBatch))

	ticker := time.NewTicker(d.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Best-effort final drain, detached from the dead context. Stops
			// as soon as a flush makes no progress.
			for {
				before := d.pendingCount()
				if before == 0 {
					break
				}
				d.Flush(context.Background())
				if d.pendingCount() >= before {
					break
				}
			}
			d.logger.Info("dispatcher stopped")
			return nil
		case <-ticker.C:
			d.Flush(ctx)
		case <-d.kick:
			d.Flush(ctx)
		}
	}
}

// Stop stops the dispatcher
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.running = false
}

// Flush delivers up to MaxBatch pending paths as one signed batch; any
// surplus stays pending and a follow-up flush is kicked. On failure each
// path's retry counter is bumped; paths over the limit are dead-lettered and
// the rest are re-queued for the next flush.
func (d *Dispatcher) Flush(ctx context.Context) {
	d.mu.Lock()
	if len(d.pending) == 0 {
		d.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(d.pending))
	for p := range d.pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	if d.config.MaxBatch > 0 && len(paths) > d.config.MaxBatch {
		paths = paths[:d.config.MaxBatch]
	}
	for _, p := range paths {
		delete(d.pending, p)
	}
	remaining := len(d.pending)
	d.mu.Unlock()

	ts := d.now().UnixMilli()
	body, err := json.Marshal(payload{Paths: paths, Timestamp: ts})
	if err != nil {
		d.logger.Error("failed to marshal webhook payload", zap.Error(err))
		return
	}

	err = d.sender.Send(ctx, body, Sign(body, d.config.Secret), ts)
	if err == nil {
		flushesTotal.WithLabelValues("ok").Inc()
		deliveredPaths.Add(float64(len(paths)))
		d.clearAttempts(paths)
		pendingPaths.Set(float64(d.pendingCount()))
		d.logger.Info("delivered webhook batch", zap.Int("paths", len(paths)))
		if remaining > 0 {
			select {
			case d.kick <- struct{}{}:
			default:
			}
		}
		return
	}

	flushesTotal.WithLabelValues("error").Inc()
	d.logger.Warn("webhook delivery failed",
		zap.Int("paths", len(paths)),
		zap.Error(err))
	d.handleFailure(paths, body, err)
	pendingPaths.Set(float64(d.pendingCount()))
}

// Sign computes the base64 HMAC-SHA256 signature of a payload body
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (d *Dispatcher) handleFailure(paths []string, body []byte, cause error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, p := range paths {
		d.attempts[p]++
		if d.attempts[p] < d.config.MaxRetries {
			d.pending[p] = struct{}{}
			continue
		}
		delete(d.attempts, p)
		deadLetteredPaths.Inc()

		entry := &domain.DeadLetterEntry{
			ID:        uuid.NewString(),
			Path:      p,
			Error:     cause.Error(),
			Payload:   string(body),
			CreatedAt: d.now(),
		}
		if err := d.deadLetters.Append(entry); err != nil {
			d.logger.Error("failed to record dead letter",
				zap.String("path", p),
				zap.Error(err))
		} else {
			d.logger.Warn("path dead-lettered after retries",
				zap.String("path", p),
				zap.Int("attempts", d.config.MaxRetries))
		}
	}
}

func (d *Dispatcher) clearAttempts(paths []string) {
	d.mu.Lock()
	for _, p := range paths {
		delete(d.attempts, p)
	}
	d.mu.Unlock()
}

func (d *Dispatcher) pendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
