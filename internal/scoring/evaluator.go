// Package scoring computes a deterministic, explainable fit between a job
// description and a candidate profile. An optional LLM advisor may refine
// the result, but the deterministic engine is always the safety net.
package scoring

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"jobpilot/internal/domain"
)

// Advisor is an external, possibly non-deterministic evaluator (typically
// LLM-backed). Implementations are out of scope for this core.
type Advisor interface {
	Evaluate(ctx context.Context, job *domain.JobDescription, profile *domain.Profile) (domain.FitResult, error)
}

// Evaluator is the deterministic scorer with an optional advisor overlay.
type Evaluator struct {
	Config  Config
	Advisor Advisor
	Logger  *zap.Logger
	Now     func() time.Time
}

func NewEvaluator(cfg Config, logger *zap.Logger) *Evaluator {
	return &Evaluator{Config: cfg, Logger: logger, Now: time.Now}
}

// Evaluate scores the job deterministically, then lets the advisor (when
// configured) override score and recommendation. An advisor failure falls
// back to the deterministic result, tagged as such.
func (e *Evaluator) Evaluate(ctx context.Context, job *domain.JobDescription, profile *domain.Profile) (domain.FitResult, error) {
	if job == nil {
		return domain.FitResult{}, fmt.Errorf("job description is required")
	}
	if err := profile.Validate(); err != nil {
		return domain.FitResult{}, err
	}

	det := e.deterministic(job, profile)
	if err := det.Score.Validate(); err != nil {
		return domain.FitResult{}, fmt.Errorf("computed fit score invalid: %w", err)
	}

	if e.Advisor == nil {
		return det, nil
	}

	advised, err := e.Advisor.Evaluate(ctx, job, profile)
	if err != nil {
		if e.Logger != nil {
			e.Logger.Warn("advisor evaluation failed, using deterministic result",
				zap.String("company", job.Company),
				zap.String("role", job.RoleTitle),
				zap.Error(err),
			)
		}
		det.Source = domain.FitSourceFallback
		return det, nil
	}
	if err := advised.Score.Validate(); err != nil {
		if e.Logger != nil {
			e.Logger.Warn("advisor returned invalid score, using deterministic result", zap.Error(err))
		}
		det.Source = domain.FitSourceFallback
		return det, nil
	}

	// Constraints stay deterministic; the advisor only refines score and
	// recommendation.
	advised.URL = det.URL
	advised.Company = job.Company
	advised.RoleTitle = job.RoleTitle
	advised.Constraints = det.Constraints
	if !det.Constraints.Passed {
		advised.Recommendation = domain.RecommendSkip
	}
	advised.EvaluatedAt = det.EvaluatedAt
	advised.Source = domain.FitSourceAdvisor
	return advised, nil
}

func (e *Evaluator) deterministic(job *domain.JobDescription, profile *domain.Profile) domain.FitResult {
	score := Score(e.Config, job, profile)
	constraints := CheckConstraints(e.Config, job, profile)
	rec := e.recommend(score.TotalScore, constraints)

	now := e.Now
	if now == nil {
		now = time.Now
	}

	return domain.FitResult{
		URL:            job.JobURL,
		Company:        job.Company,
		RoleTitle:      job.RoleTitle,
		Score:          score,
		Constraints:    constraints,
		Recommendation: rec,
		Reasoning:      reasoningSummary(score, constraints, rec),
		EvaluatedAt:    now().UTC().Format(time.RFC3339),
		Source:         domain.FitSourceDeterministic,
	}
}

func (e *Evaluator) recommend(total float64, constraints domain.ConstraintResult) domain.Recommendation {
	if !constraints.Passed {
		return domain.RecommendSkip
	}
	if total >= e.Config.ApplyThreshold {
		return domain.RecommendApply
	}
	if total >= e.Config.ApplyThreshold-e.Config.ReviewMargin {
		return domain.RecommendReview
	}
	return domain.RecommendSkip
}

func reasoningSummary(score domain.FitScore, constraints domain.ConstraintResult, rec domain.Recommendation) string {
	if !constraints.Passed {
		return fmt.Sprintf("skip: %d hard constraint violation(s)", len(constraints.HardViolations))
	}
	return fmt.Sprintf("%s: total score %.2f (must-have %.2f, preferred %.2f, experience %.2f, education %.2f)",
		rec, score.TotalScore, score.MustHaveScore, score.PreferredScore, score.ExperienceScore, score.EducationScore)
}
