package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config contains maintenance service configuration
type Config struct {
	// FlushInterval is how often pending access times are written out
	FlushInterval time.Duration

	// CleanupInterval is how often to run cleanup tasks
	CleanupInterval time.Duration

	// TempFileMaxAge is the maximum age of temp files before cleanup
	TempFileMaxAge time.Duration
}

// DefaultConfig returns default maintenance configuration
func DefaultConfig() *Config {
	return &Config{
		FlushInterval:   30 * time.Second,
		CleanupInterval: time.Hour,
		TempFileMaxAge:  24 * time.Hour,
	}
}

// Flusher persists buffered cache recency
type Flusher interface {
	FlushRecency() error
}

// Sweeper removes leftovers of interrupted downloads
type Sweeper interface {
	CleanOldTempFiles(olderThan time.Duration) (int, error)
	CleanEmptyDirs() error
}

// Service handles periodic maintenance tasks
type Service struct {
	config  *Config
	flusher Flusher
	sweeper Sweeper
	logger  *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new maintenance Service
func New(cfg *Config, flusher Flusher, sweeper Sweeper, logger *zap.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = 30 * time.Second
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Hour
	}
	if cfg.TempFileMaxAge == 0 {
		cfg.TempFileMaxAge = 24 * time.Hour
	}

	return &Service{
		config:  cfg,
		flusher: flusher,
		sweeper: sweeper,
		logger:  logger,
	}
}

// Start runs maintenance until ctx is done or Stop is called. Recency is
// flushed one last time before it returns.
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
		zap.Duration("flush_interval", s.config.FlushInterval),
		zap.Duration("cleanup_interval", s.config.CleanupInterval))

	s.wg.Add(1)
	go s.maintenanceLoop(ctx)

	<-ctx.Done()
	s.wg.Wait()
	s.Flush()

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
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
}

func (s *Service) maintenanceLoop(ctx context.Context) {
	defer s.wg.Done()

	flushTicker := time.NewTicker(s.config.FlushInterval)
	defer flushTicker.Stop()

	cleanupTicker := time.NewTicker(s.config.CleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-flushTicker.C:
			s.Flush()
		case <-cleanupTicker.C:
			s.Cleanup()
		}
	}
}

// Flush writes pending access times; failures are retried next time
func (s *Service) Flush() {
	if s.flusher == nil {
		return
	}
	if err := s.flusher.FlushRecency(); err != nil {
		s.logger.Error("failed to flush cache recency", zap.Error(err))
	}
}

// Cleanup removes stale temp files and empty media directories
func (s *Service) Cleanup() {
	if s.sweeper == nil {
		return
	}
	fileCount, err := s.sweeper.CleanOldTempFiles(s.config.TempFileMaxAge)
	if err != nil {
		s.logger.Error("failed to cleanup old temp files", zap.Error(err))
	} else if fileCount > 0 {
		s.logger.Info("cleaned up old temp files", zap.Int("count", fileCount))
	}

	if err := s.sweeper.CleanEmptyDirs(); err != nil {
		s.logger.Error("failed to remove empty cache directories", zap.Error(err))
	}
}
