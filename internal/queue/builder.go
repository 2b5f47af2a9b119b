// Package queue turns a lead list into a deduplicated, scored, ranked
// work queue for the batch runner.
package queue

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"jobpilot/internal/domain"
	"jobpilot/internal/fingerprint"
)

// ErrNotBuilt is returned by Stats before a successful Build.
var ErrNotBuilt = errors.New("queue has not been built")

// Extractor produces a structured job description for a posting URL.
type Extractor interface {
	Extract(ctx context.Context, url string) (*domain.JobDescription, error)
}

// Tracker is the duplicate-check surface the builder needs.
type Tracker interface {
	CheckDuplicate(ctx context.Context, url, company, role, location string) (*domain.ApplicationRecord, string, error)
}

// FitEvaluator scores an extracted job against the candidate profile.
type FitEvaluator interface {
	Evaluate(ctx context.Context, job *domain.JobDescription, profile *domain.Profile) (domain.FitResult, error)
}

type cacheEntry struct {
	job *domain.JobDescription
	fit domain.FitResult
}

// Builder assembles one queue per Build call. The extraction cache is
// scoped to a single build, never shared across builds.
type Builder struct {
	Extractor Extractor
	Tracker   Tracker
	Evaluator FitEvaluator
	Logger    *zap.Logger

	// MinScore drops jobs scoring below it even when recommended.
	MinScore float64
	// IncludeSkips keeps "skip" recommendations in the queue instead of
	// dropping them. "apply" and "review" are always kept.
	IncludeSkips bool

	stats *domain.QueueStats
}

func NewBuilder(extractor Extractor, tracker Tracker, evaluator FitEvaluator, logger *zap.Logger) *Builder {
	return &Builder{Extractor: extractor, Tracker: tracker, Evaluator: evaluator, Logger: logger}
}

// Build processes the lead items in order: validity filter, duplicate
// check (before any extraction call), extraction with a build-scoped
// cache, scoring, recommendation and threshold filters, then a stable
// sort by total score descending.
func (b *Builder) Build(ctx context.Context, items []domain.LeadItem, profile *domain.Profile) ([]domain.QueuedJob, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	stats := domain.QueueStats{Total: len(items)}
	cache := map[string]cacheEntry{}
	var queue []domain.QueuedJob

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !item.Valid {
			b.warn("skipping invalid lead",
				zap.Int("line", item.LineNumber),
				zap.String("url", item.URL),
				zap.String("reason", item.Error),
			)
			continue
		}
		stats.Valid++

		// Duplicate check runs before extraction so already-submitted
		// postings cost nothing.
		record, fp, err := b.Tracker.CheckDuplicate(ctx, item.URL, "", "", "")
		if err != nil {
			return nil, err
		}
		if record != nil && record.Status == domain.StatusSubmitted {
			stats.Duplicates++
			b.info("dropping already-submitted posting",
				zap.String("url", item.URL),
				zap.String("fingerprint", fp),
			)
			continue
		}

		// Extraction and scoring are cached per normalized URL for the
		// duration of this build, so repeated leads cost one call.
		normalized := fingerprint.NormalizeURL(item.URL)
		entry, ok := cache[normalized]
		if !ok {
			job, err := b.Extractor.Extract(ctx, item.URL)
			if err != nil {
				b.warn("extraction failed, lead dropped",
					zap.Int("line", item.LineNumber),
					zap.String("url", item.URL),
					zap.Error(err),
				)
				continue
			}
			fit, err := b.Evaluator.Evaluate(ctx, job, profile)
			if err != nil {
				return nil, err
			}
			entry = cacheEntry{job: job, fit: fit}
			cache[normalized] = entry
		}

		if entry.fit.Recommendation == domain.RecommendSkip && !b.IncludeSkips {
			continue
		}
		// Only the score cutoff counts toward below_threshold; dropped
		// skip recommendations do not.
		if entry.fit.Score.TotalScore < b.MinScore {
			stats.BelowThreshold++
			continue
		}

		queue = append(queue, domain.QueuedJob{
			URL:         applyURL(entry.job, item.URL),
			Fingerprint: fp,
			Job:         entry.job,
			Fit:         entry.fit,
			State:       domain.JobPending,
		})
	}

	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].Fit.Score.TotalScore > queue[j].Fit.Score.TotalScore
	})

	stats.Queued = len(queue)
	b.stats = &stats
	return queue, nil
}

// Stats returns the snapshot of the most recent build.
func (b *Builder) Stats() (domain.QueueStats, error) {
	if b.stats == nil {
		return domain.QueueStats{}, ErrNotBuilt
	}
	return *b.stats, nil
}

// applyURL prefers the dedicated application URL over the posting URL,
// falling back to the raw lead.
func applyURL(job *domain.JobDescription, lead string) string {
	if strings.TrimSpace(job.ApplyURL) != "" {
		return job.ApplyURL
	}
	if strings.TrimSpace(job.JobURL) != "" {
		return job.JobURL
	}
	return lead
}

func (b *Builder) info(msg string, fields ...zap.Field) {
	if b.Logger != nil {
		b.Logger.Info(msg, fields...)
	}
}

func (b *Builder) warn(msg string, fields ...zap.Field) {
	if b.Logger != nil {
		b.Logger.Warn(msg, fields...)
	}
}
