// Package dailyreport runs the daily status report: it loads the member
// snapshot, compiles the report, removes inactive members and posts the result.
package dailyreport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brensch/statusreport/clock"
	"github.com/brensch/statusreport/db"
	"github.com/brensch/statusreport/members"
	"github.com/brensch/statusreport/report"
)

// Triggers recorded with each run.
const (
	TriggerSchedule = "schedule"
	TriggerCommand  = "command"
	TriggerHTTP     = "http"
	TriggerLocal    = "local"
)

// ErrRunInProgress is returned when a trigger fires while a run is still going.
var ErrRunInProgress = errors.New("report run already in progress")

// Remover removes a member from the group.
type Remover interface {
	RemoveMember(ctx context.Context, userID, reason string) error
}

// Poster publishes the report text.
type Poster interface {
	SendMessage(ctx context.Context, content string) error
}

// RunStore keeps the audit trail of runs.
type RunStore interface {
	RecordRun(ctx context.Context, run db.Run) error
	RecentRuns(ctx context.Context, limit int) ([]db.Run, error)
}

// Config controls what a run does with the compiled report.
type Config struct {
	Report report.Options
	// KickEnabled must be set for members to actually be removed. Otherwise
	// every run is a dry run.
	KickEnabled bool
	KickReason  string
}

// Runner owns one report pipeline. It is safe for concurrent use; at most
// one run executes at a time.
type Runner struct {
	source  members.Source
	clock   clock.Clock
	remover Remover
	poster  Poster
	store   RunStore
	cfg     Config

	mu    sync.Mutex
	now   func() time.Time
	newID func() string
}

// NewRunner wires a runner. store may be nil, in which case runs are not recorded.
func NewRunner(source members.Source, clk clock.Clock, remover Remover, poster Poster, store RunStore, cfg Config) *Runner {
	return &Runner{
		source:  source,
		clock:   clk,
		remover: remover,
		poster:  poster,
		store:   store,
		cfg:     cfg,
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
}

// RunSummary describes a finished run.
type RunSummary struct {
	RunID         string
	ReferenceDate time.Time
	Result        *report.Result
	Removals      []db.RemovalAttempt
	DryRun        bool
	Posted        bool
	Status        string
}

// FailedRemovals counts removal attempts that returned an error.
func (s *RunSummary) FailedRemovals() int {
	n := 0
	for _, r := range s.Removals {
		if r.Error != "" {
			n++
		}
	}
	return n
}

// Run executes the pipeline once. Removals are attempted one by one and a
// failed removal affects neither the others nor the report post. A load or
// compile failure ends the run before anything is removed or posted.
func (r *Runner) Run(ctx context.Context, trigger string, dryRun bool) (*RunSummary, error) {
	if !r.mu.TryLock() {
		slog.Warn("skipping report run, previous run still in progress", "trigger", trigger)
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()

	summary := &RunSummary{
		RunID:         r.newID(),
		ReferenceDate: r.clock.Today(),
		DryRun:        dryRun || !r.cfg.KickEnabled,
	}
	started := r.now()
	logger := slog.With("run_id", summary.RunID, "trigger", trigger)
	logger.Info("starting report run",
		"reference_date", summary.ReferenceDate.Format("2006-01-02"),
		"dry_run", summary.DryRun)

	res, err := r.compile(ctx, summary.ReferenceDate)
	if err != nil {
		logger.Error("failed to compile report", "error", err)
		summary.Status = db.StatusFailed
		r.record(ctx, trigger, started, summary, err)
		return summary, err
	}
	summary.Result = res

	for _, m := range res.Unbucketed {
		logger.Warn("member has no class year section",
			"name", m.FullName,
			"user_id", m.UserID,
			"class_year", int(m.ClassYear),
			"rendered", r.cfg.Report.IncludeOtherYears)
	}

	summary.Removals = r.removeMembers(ctx, logger, res.Removed, summary.DryRun)

	var postErr error
	if err := r.poster.SendMessage(ctx, postText(res.Text, summary)); err != nil {
		logger.Error("failed to post report", "error", err)
		postErr = fmt.Errorf("failed to post report: %w", err)
	} else {
		summary.Posted = true
	}

	summary.Status = db.StatusSucceeded
	if !summary.Posted || summary.FailedRemovals() > 0 {
		summary.Status = db.StatusPartial
	}

	logger.Info("report run finished",
		"status", summary.Status,
		"removals", len(summary.Removals),
		"failed_removals", summary.FailedRemovals(),
		"posted", summary.Posted)

	r.record(ctx, trigger, started, summary, postErr)
	return summary, postErr
}

func (r *Runner) compile(ctx context.Context, reference time.Time) (*report.Result, error) {
	data, err := r.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load member snapshot: %w", err)
	}
	res, err := report.Compile(data, reference, r.cfg.Report)
	if err != nil {
		return nil, fmt.Errorf("failed to compile report: %w", err)
	}
	return res, nil
}

// removeMembers attempts every removal independently and records the outcome of each.
func (r *Runner) removeMembers(ctx context.Context, logger *slog.Logger, removals []report.Removal, dryRun bool) []db.RemovalAttempt {
	attempts := make([]db.RemovalAttempt, 0, len(removals))

	for _, m := range removals {
		attempt := db.RemovalAttempt{
			UserID:      strconv.FormatUint(m.UserID, 10),
			FullName:    m.FullName,
			AttemptedAt: r.now(),
		}

		if dryRun {
			logger.Info("dry run, not removing member", "user_id", attempt.UserID, "name", m.FullName)
			attempts = append(attempts, attempt)
			continue
		}

		if err := r.remover.RemoveMember(ctx, attempt.UserID, r.cfg.KickReason); err != nil {
			logger.Error("failed to remove member", "user_id", attempt.UserID, "name", m.FullName, "error", err)
			attempt.Error = err.Error()
		} else {
			attempt.Removed = true
		}
		attempts = append(attempts, attempt)
	}

	return attempts
}

// postText appends notes about dry runs and failed removals to the report.
func postText(text string, summary *RunSummary) string {
	if len(summary.Removals) == 0 {
		return text
	}

	var b strings.Builder
	b.WriteString(text)

	if summary.DryRun {
		b.WriteString("\n_Dry run: nobody was removed from the server._\n")
		return b.String()
	}

	var failed []string
	for _, a := range summary.Removals {
		if a.Error != "" {
			failed = append(failed, a.FullName)
		}
	}
	if len(failed) > 0 {
		fmt.Fprintf(&b, "\n_Could not remove: %s_\n", strings.Join(failed, ", "))
	}
	return b.String()
}

// record stores the run. A store failure is logged and does not fail the run.
func (r *Runner) record(ctx context.Context, trigger string, started time.Time, summary *RunSummary, runErr error) {
	if r.store == nil {
		return
	}

	run := db.Run{
		ID:            summary.RunID,
		Trigger:       trigger,
		ReferenceDate: summary.ReferenceDate,
		StartedAt:     started,
		FinishedAt:    r.now(),
		Status:        summary.Status,
		DryRun:        summary.DryRun,
		Posted:        summary.Posted,
		Removals:      summary.Removals,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}

	// The run's own context may already be cancelled; the record should still land.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := r.store.RecordRun(recordCtx, run); err != nil {
		slog.Error("failed to record report run", "run_id", run.ID, "error", err)
	}
}

// History returns the most recent runs, newest first.
func (r *Runner) History(ctx context.Context, limit int) ([]db.Run, error) {
	if r.store == nil {
		return nil, errors.New("run history is not configured")
	}
	return r.store.RecentRuns(ctx, limit)
}
