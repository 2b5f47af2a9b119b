// Package batch executes a built queue strictly one job at a time,
// isolating failures so one broken application never aborts the run.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"jobpilot/internal/domain"
	"jobpilot/internal/tracker"
)

// JobRunner executes a single application end to end. It owns the
// interaction with the posting; the batch runner only interprets the
// outcome.
type JobRunner interface {
	Run(ctx context.Context, job domain.QueuedJob, profile *domain.Profile) (domain.RunOutcome, error)
}

// Tailor produces application artifacts without submitting anything.
// Dry runs exercise only this.
type Tailor interface {
	Tailor(ctx context.Context, job *domain.JobDescription, profile *domain.Profile) (resumePath, coverLetterPath string, err error)
}

// Tracker is the persistence surface the runner writes through.
type Tracker interface {
	CreateWithFingerprint(ctx context.Context, fp, url, company, role, location, sourceMode string) error
	UpdateStatus(ctx context.Context, fp string, status domain.Status) error
	UpdateProof(ctx context.Context, fp string, proofText, screenshotPath *string) error
	UpdateArtifacts(ctx context.Context, fp string, resumePath, coverLetterPath *string) error
}

// ProgressFunc receives an event before and after each queue item.
type ProgressFunc func(domain.ProgressEvent)

// Runner drains a queue sequentially. There is deliberately no
// concurrency here: job boards rate-limit and the collaborator holds
// browser state.
type Runner struct {
	Jobs     JobRunner
	Tailor   Tailor
	Tracker  Tracker
	Logger   *zap.Logger
	Progress ProgressFunc
	Now      func() time.Time
}

func NewRunner(jobs JobRunner, tailor Tailor, store Tracker, logger *zap.Logger) *Runner {
	return &Runner{Jobs: jobs, Tailor: tailor, Tracker: store, Logger: logger, Now: time.Now}
}

// Run processes the queue in order and always returns a complete
// result, even on cancellation. Items not reached before cancellation
// keep their pending state and are absent from the results.
func (r *Runner) Run(ctx context.Context, queue []domain.QueuedJob, profile *domain.Profile, dryRun bool) domain.BatchResult {
	start := r.now()
	var result domain.BatchResult

	for i := range queue {
		if ctx.Err() != nil {
			r.info("run cancelled, remaining jobs left pending",
				zap.Int("remaining", len(queue)-i))
			break
		}
		job := &queue[i]

		job.State = domain.JobProcessing
		r.emit(i, len(queue), job, result)

		jobStart := r.now()
		state, errMsg := r.runOne(ctx, job, profile, dryRun)
		duration := r.now().Sub(jobStart).Seconds()

		job.State = state
		jr, err := domain.NewJobResult(job.URL, job.Fingerprint, state, errMsg, duration)
		if err != nil {
			jr = domain.JobResult{URL: job.URL, Fingerprint: job.Fingerprint, State: state, Error: errMsg}
		}
		result.Results = append(result.Results, jr)
		result.Processed++
		switch state {
		case domain.JobCompleted:
			// Dry runs complete jobs without submitting anything.
			if !dryRun {
				result.Submitted++
			}
		case domain.JobSkipped:
			result.Skipped++
		default:
			result.Failed++
		}

		r.emit(i, len(queue), job, result)
	}

	result.DurationSeconds = r.now().Sub(start).Seconds()
	return result
}

// runOne executes a single queue item and never panics: a collaborator
// crash becomes a failed result for that item only.
func (r *Runner) runOne(ctx context.Context, job *domain.QueuedJob, profile *domain.Profile, dryRun bool) (state domain.JobState, errMsg string) {
	defer func() {
		if rec := recover(); rec != nil {
			state = domain.JobFailed
			errMsg = fmt.Sprintf("panic: %v", rec)
			r.warn("job panicked", zap.String("url", job.URL), zap.Any("panic", rec))
		}
	}()

	if dryRun {
		return r.dryRunOne(ctx, job, profile)
	}

	// The record goes in under the fingerprint the queue builder resolved
	// from the lead, so the next build's duplicate check finds it even when
	// the apply URL differs from the lead URL.
	err := r.Tracker.CreateWithFingerprint(ctx, job.Fingerprint, job.URL,
		job.Job.Company, job.Job.RoleTitle, job.Job.Location, domain.SourceAutonomous)
	switch {
	case err == nil:
	case errors.Is(err, tracker.ErrDuplicateFingerprint):
		// Record already exists (e.g. a previous failed attempt); reuse it.
	default:
		return domain.JobFailed, fmt.Sprintf("create tracker record: %v", err)
	}

	if err := r.Tracker.UpdateStatus(ctx, job.Fingerprint, domain.StatusInProgress); err != nil {
		return domain.JobFailed, fmt.Sprintf("mark in progress: %v", err)
	}

	outcome, err := r.Jobs.Run(ctx, *job, profile)
	if err != nil {
		if ctx.Err() != nil {
			errMsg = "interrupted"
			r.warn("job interrupted mid-flight", zap.String("url", job.URL), zap.Error(err))
		} else {
			errMsg = err.Error()
		}
		r.setStatus(job.Fingerprint, domain.StatusFailed)
		return domain.JobFailed, errMsg
	}

	r.persistOutcome(ctx, job, outcome)

	switch outcome.Status {
	case domain.RunSubmitted:
		return domain.JobCompleted, ""
	case domain.RunSkipped, domain.RunDuplicateSkipped, domain.RunStoppedBeforeSubmit:
		return domain.JobSkipped, ""
	default:
		return domain.JobFailed, firstError(outcome.Errors, "runner reported "+outcome.Status)
	}
}

// dryRunOne exercises only the tailoring collaborator. A successful dry
// run completes the job; nothing counts as submitted and the tracker is
// never touched.
func (r *Runner) dryRunOne(ctx context.Context, job *domain.QueuedJob, profile *domain.Profile) (domain.JobState, string) {
	if r.Tailor == nil {
		return domain.JobCompleted, ""
	}
	if _, _, err := r.Tailor.Tailor(ctx, job.Job, profile); err != nil {
		return domain.JobFailed, fmt.Sprintf("tailor artifacts: %v", err)
	}
	return domain.JobCompleted, ""
}

// persistOutcome maps the runner outcome onto the tracker record. A
// persistence error downgrades to a log line; the submission already
// happened and must not be reported as failed.
func (r *Runner) persistOutcome(ctx context.Context, job *domain.QueuedJob, outcome domain.RunOutcome) {
	var status domain.Status
	switch outcome.Status {
	case domain.RunSubmitted:
		status = domain.StatusSubmitted
	case domain.RunDuplicateSkipped:
		status = domain.StatusDuplicateSkipped
	case domain.RunSkipped, domain.RunStoppedBeforeSubmit:
		status = domain.StatusSkipped
	default:
		status = domain.StatusFailed
	}
	r.setStatus(job.Fingerprint, status)

	if outcome.ResumePath != "" || outcome.CoverLetterPath != "" {
		if err := r.Tracker.UpdateArtifacts(ctx, job.Fingerprint,
			strPtr(outcome.ResumePath), strPtr(outcome.CoverLetterPath)); err != nil {
			r.warn("persisting artifact paths failed", zap.String("fingerprint", job.Fingerprint), zap.Error(err))
		}
	}
	if outcome.ProofText != "" || outcome.ScreenshotPath != "" {
		if err := r.Tracker.UpdateProof(ctx, job.Fingerprint,
			strPtr(outcome.ProofText), strPtr(outcome.ScreenshotPath)); err != nil {
			r.warn("persisting proof failed", zap.String("fingerprint", job.Fingerprint), zap.Error(err))
		}
	}
}

func (r *Runner) setStatus(fp string, status domain.Status) {
	// Status writes use a fresh context so a cancelled run still records
	// what happened.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Tracker.UpdateStatus(ctx, fp, status); err != nil {
		r.warn("status update failed",
			zap.String("fingerprint", fp),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
}

func (r *Runner) emit(index, total int, job *domain.QueuedJob, result domain.BatchResult) {
	if r.Progress == nil {
		return
	}
	r.Progress(domain.ProgressEvent{
		Index:     index + 1,
		Total:     total,
		URL:       job.URL,
		State:     job.State,
		Submitted: result.Submitted,
		Skipped:   result.Skipped,
		Failed:    result.Failed,
	})
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func firstError(errs []string, fallback string) string {
	if len(errs) > 0 {
		return errs[0]
	}
	return fallback
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *Runner) info(msg string, fields ...zap.Field) {
	if r.Logger != nil {
		r.Logger.Info(msg, fields...)
	}
}

func (r *Runner) warn(msg string, fields ...zap.Field) {
	if r.Logger != nil {
		r.Logger.Warn(msg, fields...)
	}
}
