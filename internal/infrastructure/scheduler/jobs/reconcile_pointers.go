// Package jobs contains implementations of scheduled jobs for Urok Hub.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/urok-hub/urok-marketplace/internal/domain/lifecycle"
	"github.com/urok-hub/urok-marketplace/internal/domain/shared"
	"github.com/urok-hub/urok-marketplace/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE POINTERS JOB
// ══════════════════════════════════════════════════════════════════════════════

// ReconcilePointersJob finds owners whose current_status_id pointer does
// not name the latest record of their history and repairs it.
//
// The write path is transactional, so divergence only appears after
// external interventions: manual data edits, partial restores from
// backup. History is authoritative; the repair always moves the pointer
// to the newest record, it never rewrites history.
type ReconcilePointersJob struct {
	store          lifecycle.ReconciliationStore
	eventPublisher shared.EventPublisher
	logger         *slog.Logger
	retrier        *retry.Retrier
	lock           RunLock

	config ReconcilePointersConfig

	lastRunStats atomic.Value // *ReconcilePointersStats
}

// RunLock serializes job runs across instances. The repair is idempotent,
// so the lock only prevents wasted duplicate passes, it is not needed for
// correctness.
type RunLock interface {
	AcquireLock(ctx context.Context, resource string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, resource string) error
}

// ReconcilePointersConfig contains configuration for the job.
type ReconcilePointersConfig struct {
	// Kinds lists the entity kinds to reconcile. Empty means all.
	Kinds []lifecycle.EntityKind

	// BatchLimit caps how many divergences are repaired per kind per run.
	// The rest are picked up by the next run.
	BatchLimit int

	// DryRun detects and logs divergences without repairing them.
	DryRun bool

	// Timeout is the maximum duration for one run.
	Timeout time.Duration
}

// DefaultReconcilePointersConfig returns sensible defaults.
func DefaultReconcilePointersConfig() ReconcilePointersConfig {
	return ReconcilePointersConfig{
		Kinds:      lifecycle.AllKinds(),
		BatchLimit: 100,
		DryRun:     false,
		Timeout:    2 * time.Minute,
	}
}

// ReconcilePointersStats contains statistics from one reconciliation run.
type ReconcilePointersStats struct {
	StartedAt        time.Time
	CompletedAt      time.Time
	Duration         time.Duration
	DivergedFound    int
	PointersRepaired int
	RepairsByKind    map[lifecycle.EntityKind]int
	Errors           []error
}

// NewReconcilePointersJob creates a new reconciliation job.
func NewReconcilePointersJob(
	store lifecycle.ReconciliationStore,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
	config ReconcilePointersConfig,
) *ReconcilePointersJob {
	if logger == nil {
		logger = slog.Default()
	}
	if len(config.Kinds) == 0 {
		config.Kinds = lifecycle.AllKinds()
	}
	if config.BatchLimit <= 0 {
		config.BatchLimit = 100
	}

	return &ReconcilePointersJob{
		store:          store,
		eventPublisher: eventPublisher,
		logger:         logger,
		retrier:        retry.DatabaseRetrier(),
		config:         config,
	}
}

// WithRunLock sets a cross-instance run lock. Without it concurrent runs
// are only prevented within one process.
func (j *ReconcilePointersJob) WithRunLock(lock RunLock) *ReconcilePointersJob {
	j.lock = lock
	return j
}

// Name returns the job name.
func (j *ReconcilePointersJob) Name() string {
	return "reconcile_pointers"
}

// Description returns a human-readable description.
func (j *ReconcilePointersJob) Description() string {
	return "Repairs current-status pointers that diverged from their status histories"
}

// Run executes one reconciliation pass over all configured kinds.
func (j *ReconcilePointersJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &ReconcilePointersStats{
		StartedAt:     startedAt,
		RepairsByKind: make(map[lifecycle.EntityKind]int),
	}

	j.logger.Info("starting reconcile_pointers job", "dry_run", j.config.DryRun)

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	if j.lock != nil {
		acquired, err := j.lock.AcquireLock(ctx, j.Name(), j.config.Timeout)
		if err != nil {
			// The lock is an optimization; repairs are idempotent.
			j.logger.Warn("failed to acquire run lock, proceeding without it", "error", err)
		} else if !acquired {
			j.logger.Info("another instance holds the run lock, skipping run")
			return nil
		} else {
			defer func() {
				if err := j.lock.ReleaseLock(context.WithoutCancel(ctx), j.Name()); err != nil {
					j.logger.Warn("failed to release run lock", "error", err)
				}
			}()
		}
	}

	for _, kind := range j.config.Kinds {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := j.reconcileKind(ctx, kind, stats); err != nil {
			stats.Errors = append(stats.Errors, err)
			j.logger.Error("failed to reconcile kind",
				"entity_kind", kind,
				"error", err,
			)
		}
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRunStats.Store(stats)

	j.logger.Info("reconcile_pointers job completed",
		"duration", stats.Duration.String(),
		"diverged_found", stats.DivergedFound,
		"pointers_repaired", stats.PointersRepaired,
		"errors", len(stats.Errors),
	)

	if len(stats.Errors) > 0 {
		return fmt.Errorf("reconciliation finished with %d errors, first: %w",
			len(stats.Errors), stats.Errors[0])
	}

	return nil
}

// LastRunStats returns statistics from the most recent run, or nil.
func (j *ReconcilePointersJob) LastRunStats() *ReconcilePointersStats {
	stats, _ := j.lastRunStats.Load().(*ReconcilePointersStats)
	return stats
}

// reconcileKind detects and repairs divergences for one entity kind.
func (j *ReconcilePointersJob) reconcileKind(ctx context.Context, kind lifecycle.EntityKind, stats *ReconcilePointersStats) error {
	var diverged []lifecycle.Divergence
	err := j.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		diverged, err = j.store.FindDiverged(ctx, kind, j.config.BatchLimit)
		return err
	})
	if err != nil {
		return fmt.Errorf("find diverged %s: %w", kind, err)
	}

	stats.DivergedFound += len(diverged)
	if len(diverged) == 0 {
		return nil
	}

	j.logger.Warn("diverged pointers detected",
		"entity_kind", kind,
		"count", len(diverged),
	)

	for _, d := range diverged {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if j.config.DryRun {
			j.logger.Info("divergence found (dry run, not repairing)",
				"entity_kind", d.Kind,
				"owner_id", d.OwnerID,
				"pointer_record_id", d.PointerRecordID,
				"latest_record_id", d.LatestRecordID,
			)
			continue
		}

		if err := j.repairOne(ctx, d, stats); err != nil {
			stats.Errors = append(stats.Errors, err)
			j.logger.Error("failed to repair pointer",
				"entity_kind", d.Kind,
				"owner_id", d.OwnerID,
				"error", err,
			)
		}
	}

	return nil
}

// repairOne repairs a single diverged pointer and publishes the fact.
func (j *ReconcilePointersJob) repairOne(ctx context.Context, d lifecycle.Divergence, stats *ReconcilePointersStats) error {
	err := j.retrier.Do(ctx, func(ctx context.Context) error {
		return j.store.RepairPointer(ctx, d.Kind, d.OwnerID, d.LatestRecordID)
	})
	if err != nil {
		return fmt.Errorf("repair %s %s: %w", d.Kind, d.OwnerID, err)
	}

	stats.PointersRepaired++
	stats.RepairsByKind[d.Kind]++

	j.logger.Info("pointer repaired",
		"entity_kind", d.Kind,
		"owner_id", d.OwnerID,
		"stale_pointer_id", d.PointerRecordID,
		"repaired_to", d.LatestRecordID,
	)

	if j.eventPublisher != nil {
		event := shared.NewPointerRepairedEvent(
			string(d.Kind),
			d.OwnerID,
			d.PointerRecordID,
			d.LatestRecordID,
			j.Name(),
		)
		if err := j.eventPublisher.Publish(event); err != nil {
			// The repair itself succeeded; subscribers just miss the fact.
			j.logger.Warn("failed to publish pointer repaired event",
				"owner_id", d.OwnerID,
				"error", err,
			)
		}
	}

	return nil
}
