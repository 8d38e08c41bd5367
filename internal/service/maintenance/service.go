// Package maintenance runs periodic housekeeping over the metadata store.
package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/drivehit/gallery-sync/internal/port"
)

// Config contains maintenance service configuration
type Config struct {
	// CleanupInterval is how often to run cleanup tasks
	CleanupInterval time.Duration

	// DeadLetterMaxAge is the maximum age of dead-letter entries before
	// they are pruned
	DeadLetterMaxAge time.Duration
}

// DefaultConfig returns default maintenance configuration
func DefaultConfig() *Config {
	return &Config{
		CleanupInterval:  time.Hour,
		DeadLetterMaxAge: 7 * 24 * time.Hour,
	}
}

// Service handles periodic maintenance tasks
type Service struct {
	config      *Config
	deadLetters port.DeadLetterRepository
	logger      *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new maintenance Service
func New(cfg *Config, deadLetters port.DeadLetterRepository, logger *zap.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Hour
	}
	if cfg.DeadLetterMaxAge == 0 {
		cfg.DeadLetterMaxAge = 7 * 24 * time.Hour
	}

	return &Service{
		config:      cfg,
		deadLetters: deadLetters,
		logger:      logger,
	}
}

// Start starts the maintenance service
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("maintenance service already running")
	}
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.Info("maintenance service started",
		zap.Duration("cleanup_interval", s.config.CleanupInterval))

	s.wg.Add(1)
	go s.maintenanceLoop(ctx)

	<-ctx.Done()
	s.wg.Wait()
	s.logger.Info("maintenance service stopped")
	return nil
}

// Stop stops the maintenance service
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.running = false
}

// maintenanceLoop handles periodic maintenance tasks
func (s *Service) maintenanceLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pruneDeadLetters()
		}
	}
}

// pruneDeadLetters removes dead-letter entries past their retention age
func (s *Service) pruneDeadLetters() {
	cutoff := time.Now().Add(-s.config.DeadLetterMaxAge)
	pruned, err := s.deadLetters.DeleteOlderThan(cutoff)
	if err != nil {
		s.logger.Error("failed to prune dead letters", zap.Error(err))
	} else if pruned > 0 {
		s.logger.Info("pruned old dead letters", zap.Int("count", pruned))
	}
}
