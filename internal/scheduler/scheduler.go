// Package scheduler runs periodic pattern scans.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	apperrors "harmonic-trader/internal/errors"
	"harmonic-trader/internal/logging"
	"harmonic-trader/internal/metrics"
	"harmonic-trader/internal/models"
	"harmonic-trader/internal/notify"
	"harmonic-trader/internal/scanner"
)

// RunSummary describes one pass over the watchlist.
type RunSummary struct {
	StartedAt  time.Time
	Duration   time.Duration
	Scans      int
	Detections int
	NoData     int
	Failures   int
}

// Scheduler scans every symbol and timeframe on a cron schedule.
type Scheduler struct {
	cron       *cron.Cron
	scanner    *scanner.Scanner
	notifier   notify.Notifier
	metrics    *metrics.Recorder
	logger     zerolog.Logger
	symbols    []string
	timeframes []models.Timeframe

	mu      sync.Mutex
	runMu   sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	stopped bool
	last    RunSummary
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithNotifier sends new detections and scan failures to n.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Scheduler) { s.notifier = n }
}

// WithMetrics records run timestamps.
func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithLogger sets the scheduler logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// New creates a scheduler over the watchlist.
func New(sc *scanner.Scanner, symbols []string, tfs []models.Timeframe, opts ...Option) *Scheduler {
	if len(tfs) == 0 {
		tfs = models.DefaultTimeframes()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:       cron.New(cron.WithSeconds()),
		scanner:    sc,
		notifier:   notify.NoOpNotifier{},
		logger:     zerolog.Nop(),
		symbols:    symbols,
		timeframes: tfs,
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds the scan job under a six-field cron spec.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.scheduledRun); err != nil {
		return fmt.Errorf("register scan job %q: %w", spec, err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return apperrors.ErrSchedulerStopped
	}
	if s.started {
		return nil
	}
	s.cron.Start()
	s.started = true
	s.logger.Info().
		Strs("symbols", s.symbols).
		Int("timeframes", len(s.timeframes)).
		Msg("Scheduler started")
	return nil
}

// Stop cancels in-flight scans and waits for running jobs to return.
// A stopped scheduler cannot be restarted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Scheduler stopped")
}

// Next returns the next scheduled run time, or zero when nothing is registered.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// LastRun returns the summary of the most recent pass.
func (s *Scheduler) LastRun() RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Scheduler) scheduledRun() {
	if _, err := s.RunNow(s.ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Scheduled scan skipped")
	}
}

// RunNow scans the whole watchlist once. Passes never overlap.
func (s *Scheduler) RunNow(ctx context.Context) (RunSummary, error) {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return RunSummary{}, apperrors.ErrSchedulerStopped
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	summary := RunSummary{StartedAt: time.Now()}
	log := logging.WithOperation(s.logger, "scheduled_scan")
	log.Info().Msg("Running scheduled scan")

	for _, symbol := range s.symbols {
		for _, tf := range s.timeframes {
			if err := ctx.Err(); err != nil {
				summary.Duration = time.Since(summary.StartedAt)
				s.finish(summary)
				return summary, err
			}
			s.scanOne(ctx, log, symbol, tf, &summary)
		}
	}

	summary.Duration = time.Since(summary.StartedAt)
	s.finish(summary)
	log.Info().
		Int("scans", summary.Scans).
		Int("detections", summary.Detections).
		Int("no_data", summary.NoData).
		Int("failures", summary.Failures).
		Dur("duration", summary.Duration).
		Msg("Scheduled scan complete")
	return summary, nil
}

func (s *Scheduler) scanOne(ctx context.Context, log zerolog.Logger, symbol string, tf models.Timeframe, summary *RunSummary) {
	report, err := s.scanner.Scan(ctx, symbol, tf)
	switch {
	case errors.Is(err, apperrors.ErrDataNotFound):
		summary.NoData++
		log.Debug().Str("symbol", symbol).Str("timeframe", string(tf)).Msg("No candles stored")
		return
	case err != nil:
		summary.Failures++
		log.Error().Err(err).Str("symbol", symbol).Str("timeframe", string(tf)).Msg("Scan failed")
		if nerr := s.notifier.SendError(ctx, err, fmt.Sprintf("scan %s %s", symbol, tf)); nerr != nil {
			log.Warn().Err(nerr).Msg("Failed to send error notification")
		}
		return
	}

	summary.Scans++
	// Only first sightings reach the notifier; cached and duplicate results are skipped.
	for _, rec := range report.Saved {
		summary.Detections++
		if nerr := s.notifier.SendDetection(ctx, rec.Symbol, rec.Timeframe, rec.Pattern); nerr != nil {
			log.Warn().Err(nerr).Str("pattern", rec.Pattern.Name).Msg("Failed to send detection notification")
		}
	}
}

func (s *Scheduler) finish(summary RunSummary) {
	s.mu.Lock()
	s.last = summary
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.RecordScheduledRun(summary.StartedAt)
	}
}
