package domain

import (
	"fmt"
)

// Status is the lifecycle state of an application record.
type Status string

const (
	StatusNew              Status = "NEW"
	StatusInProgress       Status = "IN_PROGRESS"
	StatusSubmitted        Status = "SUBMITTED"
	StatusFailed           Status = "FAILED"
	StatusSkipped          Status = "SKIPPED"
	StatusDuplicateSkipped Status = "DUPLICATE_SKIPPED"
)

// Statuses lists every valid record status.
var Statuses = []Status{
	StatusNew, StatusInProgress, StatusSubmitted,
	StatusFailed, StatusSkipped, StatusDuplicateSkipped,
}

// ValidStatus reports whether s is a known record status.
func ValidStatus(s Status) bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Source modes for an application record.
const (
	SourceSingle     = "single"
	SourceAutonomous = "autonomous"
)

// ApplicationRecord is one row in the tracker, keyed by fingerprint.
// Records are created once per unique fingerprint and mutated only through
// status/proof/artifact/override updates; they are never deleted.
type ApplicationRecord struct {
	Fingerprint         string  `json:"fingerprint"`
	CanonicalURL        string  `json:"canonical_url,omitempty"`
	SourceMode          string  `json:"source_mode"`
	Company             string  `json:"company"`
	RoleTitle           string  `json:"role_title"`
	Location            string  `json:"location,omitempty"`
	Status              Status  `json:"status"`
	FirstSeenAt         string  `json:"first_seen_at" format:"date-time"`
	LastAttemptAt       *string `json:"last_attempt_at,omitempty" format:"date-time"`
	SubmittedAt         *string `json:"submitted_at,omitempty" format:"date-time"`
	ResumePath          *string `json:"resume_artifact_path,omitempty"`
	CoverLetterPath     *string `json:"cover_letter_artifact_path,omitempty"`
	ProofText           *string `json:"proof_text,omitempty"`
	ProofScreenshotPath *string `json:"proof_screenshot_path,omitempty"`
	OverrideDuplicate   bool    `json:"override_duplicate"`
	OverrideReason      *string `json:"override_reason,omitempty"`
}

// HistoryEvent is one append-only entry in a record's status history.
type HistoryEvent struct {
	ID          int64  `json:"id"`
	Fingerprint string `json:"fingerprint"`
	TS          string `json:"ts" format:"date-time"`
	Type        string `json:"type"`
	Detail      string `json:"detail,omitempty"`
}

// LeadItem is one line of a leads file. Valid is true exactly when Error
// is empty.
type LeadItem struct {
	URL        string `json:"url"`
	LineNumber int    `json:"line_number"`
	Valid      bool   `json:"valid"`
	Error      string `json:"error,omitempty"`
}

// NewLeadItem validates the valid/error pairing and the line number.
func NewLeadItem(url string, line int, errMsg string) (LeadItem, error) {
	if line < 1 {
		return LeadItem{}, fmt.Errorf("lead line number must be >= 1, got %d", line)
	}
	return LeadItem{URL: url, LineNumber: line, Valid: errMsg == "", Error: errMsg}, nil
}

// FitScore holds the deterministic sub-scores for one job/profile pair.
// All five scores live in [0,1].
type FitScore struct {
	TotalScore       float64           `json:"total_score"`
	MustHaveScore    float64           `json:"must_have_score"`
	PreferredScore   float64           `json:"preferred_score"`
	ExperienceScore  float64           `json:"experience_score"`
	EducationScore   float64           `json:"education_score"`
	MatchedRequired  []string          `json:"matched_required,omitempty"`
	MissingRequired  []string          `json:"missing_required,omitempty"`
	MatchedPreferred []string          `json:"matched_preferred,omitempty"`
	MissingPreferred []string          `json:"missing_preferred,omitempty"`
	Reasoning        map[string]string `json:"reasoning,omitempty"`
}

// Validate checks every score is in range.
func (f FitScore) Validate() error {
	checks := map[string]float64{
		"total_score":      f.TotalScore,
		"must_have_score":  f.MustHaveScore,
		"preferred_score":  f.PreferredScore,
		"experience_score": f.ExperienceScore,
		"education_score":  f.EducationScore,
	}
	for name, v := range checks {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s out of range [0,1]: %v", name, v)
		}
	}
	return nil
}

// ConstraintResult reports hard violations and soft warnings.
// Passed is true exactly when there are no hard violations.
type ConstraintResult struct {
	Passed         bool     `json:"passed"`
	HardViolations []string `json:"hard_violations,omitempty"`
	SoftWarnings   []string `json:"soft_warnings,omitempty"`
}

// NewConstraintResult derives Passed from the violations list so the
// invariant cannot be constructed inconsistently.
func NewConstraintResult(hard, soft []string) ConstraintResult {
	return ConstraintResult{
		Passed:         len(hard) == 0,
		HardViolations: hard,
		SoftWarnings:   soft,
	}
}

// Recommendation for a scored job.
type Recommendation string

const (
	RecommendApply  Recommendation = "apply"
	RecommendReview Recommendation = "review"
	RecommendSkip   Recommendation = "skip"
)

// FitResult sources.
const (
	FitSourceDeterministic = "deterministic"
	FitSourceAdvisor       = "advisor"
	// FitSourceFallback marks a deterministic result used because the
	// advisor call failed.
	FitSourceFallback = "deterministic_fallback"
)

// FitResult is the full evaluation of one job against a profile.
type FitResult struct {
	URL            string           `json:"url,omitempty"`
	Company        string           `json:"company"`
	RoleTitle      string           `json:"role_title"`
	Score          FitScore         `json:"fit_score"`
	Constraints    ConstraintResult `json:"constraints"`
	Recommendation Recommendation   `json:"recommendation"`
	Reasoning      string           `json:"reasoning,omitempty"`
	EvaluatedAt    string           `json:"evaluated_at" format:"date-time"`
	Source         string           `json:"source"`
}

// JobState is the per-item state inside a queue or batch run.
type JobState string

const (
	JobPending    JobState = "pending"
	JobProcessing JobState = "processing"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
	JobSkipped    JobState = "skipped"
)

// QueuedJob is one unit of work produced by the queue builder. It
// references a tracker record by fingerprint but does not own it.
type QueuedJob struct {
	URL         string          `json:"url"`
	Fingerprint string          `json:"fingerprint"`
	Job         *JobDescription `json:"job_description"`
	Fit         FitResult       `json:"fit_result"`
	State       JobState        `json:"status"`
}

// JobResult records the outcome of one executed queue item.
type JobResult struct {
	URL             string   `json:"url"`
	Fingerprint     string   `json:"fingerprint"`
	State           JobState `json:"status"`
	Error           string   `json:"error,omitempty"`
	DurationSeconds float64  `json:"duration_seconds"`
}

// NewJobResult validates the duration.
func NewJobResult(url, fingerprint string, state JobState, errMsg string, duration float64) (JobResult, error) {
	if duration < 0 {
		return JobResult{}, fmt.Errorf("job result duration must be >= 0, got %v", duration)
	}
	return JobResult{URL: url, Fingerprint: fingerprint, State: state, Error: errMsg, DurationSeconds: duration}, nil
}

// BatchResult aggregates a batch run. Counters accumulate incrementally
// while the run progresses.
type BatchResult struct {
	Processed       int         `json:"processed"`
	Submitted       int         `json:"submitted"`
	Skipped         int         `json:"skipped"`
	Failed          int         `json:"failed"`
	DurationSeconds float64     `json:"duration_seconds"`
	Results         []JobResult `json:"results"`
}

// Validate checks counters are non-negative.
func (b BatchResult) Validate() error {
	for name, v := range map[string]int{
		"processed": b.Processed, "submitted": b.Submitted,
		"skipped": b.Skipped, "failed": b.Failed,
	} {
		if v < 0 {
			return fmt.Errorf("batch %s count must be >= 0, got %d", name, v)
		}
	}
	if b.DurationSeconds < 0 {
		return fmt.Errorf("batch duration must be >= 0, got %v", b.DurationSeconds)
	}
	return nil
}

// QueueStats is the summary snapshot of one queue build.
type QueueStats struct {
	Total          int `json:"total"`
	Valid          int `json:"valid"`
	Duplicates     int `json:"duplicates"`
	BelowThreshold int `json:"below_threshold"`
	Queued         int `json:"queued"`
}

// Work types reported by extractors.
const (
	WorkRemote = "remote"
	WorkHybrid = "hybrid"
	WorkOnsite = "onsite"
)

// JobDescription is the extractor contract: everything the pipeline needs
// to score and submit one posting. The extractor owns its semantics.
type JobDescription struct {
	Company            string   `json:"company"`
	RoleTitle          string   `json:"role_title"`
	JobURL             string   `json:"job_url"`
	ApplyURL           string   `json:"apply_url,omitempty"`
	Location           string   `json:"location,omitempty"`
	Description        string   `json:"description,omitempty"`
	RequiredSkills     []string `json:"required_skills,omitempty"`
	PreferredSkills    []string `json:"preferred_skills,omitempty"`
	ExperienceYearsMin *float64 `json:"experience_years_min,omitempty"`
	ExperienceYearsMax *float64 `json:"experience_years_max,omitempty"`
	Education          string   `json:"education,omitempty"`
	SalaryMin          *int     `json:"salary_min,omitempty"`
	SalaryMax          *int     `json:"salary_max,omitempty"`
	SalaryCurrency     string   `json:"salary_currency,omitempty"`
	WorkType           string   `json:"work_type,omitempty"`
}

// Text returns the free-text fields used for phrase scanning.
func (j *JobDescription) Text() string {
	return j.RoleTitle + "\n" + j.Location + "\n" + j.Description
}

// Profile is the candidate profile supplied to the scorer and runner.
type Profile struct {
	Name             string   `json:"name" yaml:"name"`
	Skills           []string `json:"skills" yaml:"skills"`
	YearsExperience  float64  `json:"years_experience" yaml:"years_experience"`
	Education        []string `json:"education,omitempty" yaml:"education"`
	TargetLocations  []string `json:"target_locations,omitempty" yaml:"target_locations"`
	NeedsSponsorship bool     `json:"needs_sponsorship" yaml:"needs_sponsorship"`
	SalaryMinimum    *int     `json:"salary_minimum,omitempty" yaml:"salary_minimum"`
	SalaryCurrency   string   `json:"salary_currency,omitempty" yaml:"salary_currency"`
}

// Validate checks the profile is usable for scoring.
func (p *Profile) Validate() error {
	if p == nil {
		return fmt.Errorf("profile is required")
	}
	if p.YearsExperience < 0 {
		return fmt.Errorf("profile years_experience must be >= 0")
	}
	if p.SalaryMinimum != nil && *p.SalaryMinimum < 0 {
		return fmt.Errorf("profile salary_minimum must be >= 0")
	}
	return nil
}

// Runner outcome statuses reported by the single-job collaborator.
const (
	RunSubmitted           = "submitted"
	RunSkipped             = "skipped"
	RunDuplicateSkipped    = "duplicate_skipped"
	RunStoppedBeforeSubmit = "stopped_before_submit"
	RunFailed              = "failed"
	RunBlocked             = "blocked"
)

// RunOutcome is what the single-job runner reports back.
type RunOutcome struct {
	Status          string   `json:"status"`
	Errors          []string `json:"errors,omitempty"`
	ResumePath      string   `json:"resume_path,omitempty"`
	CoverLetterPath string   `json:"cover_letter_path,omitempty"`
	ProofText       string   `json:"proof_text,omitempty"`
	ScreenshotPath  string   `json:"screenshot_path,omitempty"`
}

// ProgressEvent is emitted before and after each batch item.
type ProgressEvent struct {
	Index     int      `json:"index"`
	Total     int      `json:"total"`
	URL       string   `json:"url"`
	State     JobState `json:"status"`
	Submitted int      `json:"submitted"`
	Skipped   int      `json:"skipped"`
	Failed    int      `json:"failed"`
}
