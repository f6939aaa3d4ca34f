// Package cleanup implements the branch cleanup scheduler (spec.md
// §4.M): once a day, drop in-memory branch state for branches whose
// last_accessed_at is old (it is refreshed only by the tracker's
// EnsureBranch, which indexing calls; queries do not refresh it),
// keeping each repository's default branch resident.
//
// Grounded on Aman-CERP-amanmcp's internal/telemetry/query_metrics.go,
// whose flush loop is a time.Ticker paired with a stop channel in a
// select, generalized here from "flush on an interval" to "sweep on a
// daily interval, with an initial wait until the next UTC midnight";
// and on gittrack.Tracker.ReleaseStaleBranches itself, which already
// holds the per-repository lock for the duration of the sweep.
package cleanup

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/armchr/codeindex/internal/gittrack"
	"github.com/armchr/codeindex/internal/store"
)

const dayInterval = 24 * time.Hour

// Config holds the scheduler's one tunable beyond the fixed daily cadence.
type Config struct {
	// StaleAfter is how long a non-default branch can go without an
	// EnsureBranch access before a sweep evicts its in-memory state
	// (spec.md §4.M).
	StaleAfter time.Duration
}

// Scheduler runs the daily branch cleanup sweep.
type Scheduler struct {
	tracker *gittrack.Tracker
	mysql   *store.MySQLStore
	cfg     Config
	logger  *zap.Logger
}

func NewScheduler(tracker *gittrack.Tracker, mysql *store.MySQLStore, cfg Config, logger *zap.Logger) *Scheduler {
	return &Scheduler{tracker: tracker, mysql: mysql, cfg: cfg, logger: logger}
}

// Run blocks until ctx is cancelled, sweeping once at the next UTC
// midnight and then every 24h after that.
func (s *Scheduler) Run(ctx context.Context) {
	wait := timeUntilNextMidnightUTC()
	if wait < time.Minute {
		wait = time.Minute
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
		s.sweep()
	}

	ticker := time.NewTicker(dayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Scheduler) sweep() {
	repos, err := s.mysql.ListRepositories()
	if err != nil {
		s.logger.Warn("branch cleanup: failed to list repositories", zap.Error(err))
		return
	}
	for _, repo := range repos {
		s.tracker.ReleaseStaleBranches(repo.Name, repo.DefaultBranch, s.cfg.StaleAfter)
	}
	s.logger.Info("branch cleanup sweep complete", zap.Int("repo_count", len(repos)))
}

func timeUntilNextMidnightUTC() time.Duration {
	now := time.Now().UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(dayInterval)
	return next.Sub(now)
}
