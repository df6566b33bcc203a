// Package maintenance runs the background store sweep: episode retention
// and a periodic knowledge-quality report, gated by a cron schedule.
package maintenance

import (
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/rs/zerolog"

	"github.com/cocolabs/coco/pkg/config"
	"github.com/cocolabs/coco/pkg/extract"
	"github.com/cocolabs/coco/pkg/logger"
	"github.com/cocolabs/coco/pkg/memory"
)

// tickInterval is how often the schedule is checked. Matches cron's
// minute resolution.
const tickInterval = time.Minute

// Service owns the background sweep goroutine.
type Service struct {
	cfg       *config.Config
	db        *memory.MemoryDB
	validator *extract.Validator
	cron      *gronx.Gronx

	mu       sync.Mutex
	started  bool
	stopChan chan struct{}

	log zerolog.Logger
}

// NewService validates the schedule up front so a bad cron expression is a
// startup error, not a silent no-op loop.
func NewService(cfg *config.Config, db *memory.MemoryDB, validator *extract.Validator) (*Service, error) {
	cron := gronx.New()
	if !cron.IsValid(cfg.Maintenance.Schedule) {
		return nil, fmt.Errorf("invalid maintenance schedule %q", cfg.Maintenance.Schedule)
	}

	return &Service{
		cfg:       cfg,
		db:        db,
		validator: validator,
		cron:      cron,
		stopChan:  make(chan struct{}),
		log:       logger.For("maintenance"),
	}, nil
}

// Start launches the sweep loop. Idempotent while running.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if !s.running() {
		return fmt.Errorf("maintenance service already stopped")
	}
	if !s.cfg.Maintenance.Enabled {
		return fmt.Errorf("maintenance service is disabled")
	}

	s.started = true
	go s.runLoop()
	s.log.Info().Str("schedule", s.cfg.Maintenance.Schedule).Msg("maintenance service started")
	return nil
}

// Stop terminates the loop. Safe to call more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running() {
		return
	}
	close(s.stopChan)
}

func (s *Service) running() bool {
	select {
	case <-s.stopChan:
		return false
	default:
		return true
	}
}

func (s *Service) runLoop() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case now := <-ticker.C:
			due, err := s.cron.IsDue(s.cfg.Maintenance.Schedule, now)
			if err != nil {
				s.log.Warn().Err(err).Msg("schedule check failed")
				continue
			}
			if due {
				s.Sweep()
			}
		}
	}
}

// Sweep runs one maintenance pass: retention pruning plus a quality
// report. Exposed for the CLI and for tests; failures are logged, the
// hosting process is never taken down.
func (s *Service) Sweep() {
	mem := s.cfg.Memory

	pruned, err := s.db.PruneEpisodes(mem.EpisodeRetentionDays, mem.TerminalCompressionLevel)
	if err != nil {
		s.log.Error().Err(err).Msg("retention sweep failed")
	} else if pruned > 0 {
		if err := s.db.Vacuum(); err != nil {
			s.log.Warn().Err(err).Msg("vacuum failed")
		}
	}

	report, err := s.db.AnalyzeQualityIssues(s.validator)
	if err != nil {
		s.log.Error().Err(err).Msg("quality analysis failed")
		return
	}
	s.log.Info().
		Int("total_nodes", report.TotalNodes).
		Int("valid_nodes", report.ValidNodes).
		Int("issues", len(report.Issues)).
		Float64("score", report.Score()).
		Msg("maintenance sweep complete")
}
