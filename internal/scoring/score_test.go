package scoring

import (
	"context"
	"fmt"
	"testing"
	"time"

	"jobpilot/internal/domain"
)

func fixedEvaluator(cfg Config) *Evaluator {
	e := NewEvaluator(cfg, nil)
	e.Now = func() time.Time { return time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC) }
	return e
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestNormalizeSkill(t *testing.T) {
	cases := map[string]string{
		"  Python  ":            "python",
		"JS":                    "javascript",
		"Node JS":               "node.js",
		"Go (Golang)":           "go",
		"React (3+ yrs, hooks)": "react",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExpandTransitiveClosure(t *testing.T) {
	set := Expand([]string{"Next.js"})
	for _, want := range []string{"next.js", "react", "javascript", "html", "css"} {
		if !set[want] {
			t.Fatalf("expected %q in expanded set %v", want, set)
		}
	}
}

func TestMustHaveScoreExample(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FuzzyEnabled = false
	job := &domain.JobDescription{RequiredSkills: []string{"python", "sql"}}
	profile := &domain.Profile{Skills: []string{"python"}}

	score := Score(cfg, job, profile)
	if score.MustHaveScore != 0.5 {
		t.Fatalf("must_have_score = %v, want 0.5", score.MustHaveScore)
	}
	if len(score.MatchedRequired) != 1 || score.MatchedRequired[0] != "python" {
		t.Fatalf("matched = %v, want [python]", score.MatchedRequired)
	}
	if len(score.MissingRequired) != 1 || score.MissingRequired[0] != "sql" {
		t.Fatalf("missing = %v, want [sql]", score.MissingRequired)
	}
}

func TestSkillScoresDefaultToOneWhenEmpty(t *testing.T) {
	score := Score(DefaultConfig(), &domain.JobDescription{}, &domain.Profile{})
	if score.MustHaveScore != 1 || score.PreferredScore != 1 {
		t.Fatalf("empty requirements should score 1.0, got %v / %v", score.MustHaveScore, score.PreferredScore)
	}
}

func TestImplicationSatisfiesRequirement(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FuzzyEnabled = false
	job := &domain.JobDescription{RequiredSkills: []string{"javascript", "sql"}}
	profile := &domain.Profile{Skills: []string{"react", "postgres"}}
	score := Score(cfg, job, profile)
	if score.MustHaveScore != 1 {
		t.Fatalf("implied skills should satisfy requirements, got %v (missing %v)", score.MustHaveScore, score.MissingRequired)
	}
}

func TestFuzzyThresholdBounds(t *testing.T) {
	available := map[string]bool{"javascript": true}
	if !matches("completely-different", available, true, 0) {
		t.Fatalf("threshold <= 0 must always match")
	}
	if matches("javascript", map[string]bool{"javascripts": true}, true, 1.5) {
		t.Fatalf("threshold > 1 must never match fuzzily")
	}
	if !matches("javascripts", available, true, 0.85) {
		t.Fatalf("near-identical skills should match at the default threshold")
	}
	if matches("cobol", available, true, 0.85) {
		t.Fatalf("dissimilar skills should not match")
	}
}

func TestExperienceScoreDecay(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExperienceTolerance = 1
	job := &domain.JobDescription{ExperienceYearsMin: floatPtr(5)}

	cases := []struct {
		years float64
		want  float64
	}{
		{6, 1},   // within range
		{5, 1},   // boundary
		{4, 0.5}, // delta 1 => 1 - 1/(1+1)
		{3, 0},   // delta 2 > tolerance
	}
	for _, tc := range cases {
		got, _ := experienceScore(job, tc.years, cfg.ExperienceTolerance)
		if got != tc.want {
			t.Fatalf("experienceScore(years=%v) = %v, want %v", tc.years, got, tc.want)
		}
	}

	if got, _ := experienceScore(&domain.JobDescription{}, 0, 1); got != 1 {
		t.Fatalf("no requirement should score 1.0, got %v", got)
	}
}

func TestEducationScore(t *testing.T) {
	cases := []struct {
		requirement string
		entries     []string
		want        float64
	}{
		{"Master's degree in CS", []string{"MSc Computer Science"}, 1},
		{"Master's degree", []string{"Bachelor of Science"}, 0.5},
		{"Master's degree", []string{"High school diploma"}, 0},
		{"Master's degree", nil, 0},
		{"", []string{"Bachelor of Science"}, 1},
		{"relevant certifications", []string{"Bachelor of Science"}, 1}, // unparseable
		{"PhD", []string{"MSc", "BSc"}, 0.5},
	}
	for _, tc := range cases {
		got, _ := educationScore(tc.requirement, tc.entries)
		if got != tc.want {
			t.Fatalf("educationScore(%q, %v) = %v, want %v", tc.requirement, tc.entries, got, tc.want)
		}
	}
}

func TestWeightedTotalExample(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FuzzyEnabled = false
	cfg.ExperienceTolerance = 1
	cfg.Weights = Weights{MustHave: 0.25, Preferred: 0.25, Experience: 0.25, Education: 0.25}

	job := &domain.JobDescription{
		RequiredSkills:     []string{"python", "sql"},
		PreferredSkills:    []string{"kubernetes"},
		ExperienceYearsMin: floatPtr(5),
		Education:          "Master's degree",
	}
	profile := &domain.Profile{
		Skills:          []string{"python"},
		YearsExperience: 4,
		Education:       []string{"Bachelor of Science"},
	}

	score := Score(cfg, job, profile)
	if score.MustHaveScore != 0.5 || score.PreferredScore != 0 || score.ExperienceScore != 0.5 || score.EducationScore != 0.5 {
		t.Fatalf("sub-scores wrong: %+v", score)
	}
	if score.TotalScore != 0.375 {
		t.Fatalf("total_score = %v, want 0.375", score.TotalScore)
	}
}

func TestConstraintPassedInvariant(t *testing.T) {
	jobs := []*domain.JobDescription{
		{WorkType: domain.WorkRemote},
		{WorkType: domain.WorkOnsite, Location: "Berlin"},
		{Description: "no sponsorship offered", WorkType: domain.WorkRemote},
		{SalaryMax: intPtr(50000), SalaryCurrency: "USD", WorkType: domain.WorkRemote},
	}
	profile := &domain.Profile{
		TargetLocations:  []string{"New York"},
		NeedsSponsorship: true,
		SalaryMinimum:    intPtr(90000),
		SalaryCurrency:   "USD",
	}
	for _, strict := range []bool{true, false} {
		cfg := DefaultConfig()
		cfg.Strict = StrictFlags{Location: strict, Visa: strict, Experience: strict, Salary: strict}
		for _, job := range jobs {
			res := CheckConstraints(cfg, job, profile)
			if res.Passed != (len(res.HardViolations) == 0) {
				t.Fatalf("invariant broken: passed=%v violations=%v", res.Passed, res.HardViolations)
			}
		}
	}
}

func TestLocationConstraint(t *testing.T) {
	cfg := DefaultConfig()
	profile := &domain.Profile{TargetLocations: []string{"New York"}}

	remote := CheckConstraints(cfg, &domain.JobDescription{WorkType: domain.WorkRemote, Location: "Berlin"}, profile)
	if !remote.Passed {
		t.Fatalf("remote jobs always pass the location constraint: %+v", remote)
	}

	match := CheckConstraints(cfg, &domain.JobDescription{WorkType: domain.WorkHybrid, Location: "New York, NY"}, profile)
	if !match.Passed {
		t.Fatalf("substring match should pass: %+v", match)
	}

	miss := CheckConstraints(cfg, &domain.JobDescription{WorkType: domain.WorkOnsite, Location: "Berlin"}, profile)
	if miss.Passed {
		t.Fatalf("onsite job outside target locations should violate")
	}

	cfg.Strict.Location = false
	soft := CheckConstraints(cfg, &domain.JobDescription{WorkType: domain.WorkOnsite, Location: "Berlin"}, profile)
	if !soft.Passed || len(soft.SoftWarnings) == 0 {
		t.Fatalf("non-strict mode should downgrade to warning: %+v", soft)
	}
}

func TestVisaConstraint(t *testing.T) {
	cfg := DefaultConfig()
	needs := &domain.Profile{NeedsSponsorship: true}

	negative := CheckConstraints(cfg, &domain.JobDescription{WorkType: domain.WorkRemote, Description: "We can offer no sponsorship at this time."}, needs)
	if negative.Passed {
		t.Fatalf("explicit negative phrase should violate in strict mode")
	}
	positive := CheckConstraints(cfg, &domain.JobDescription{WorkType: domain.WorkRemote, Description: "Visa sponsorship available for this role."}, needs)
	if !positive.Passed {
		t.Fatalf("explicit positive phrase should pass: %+v", positive)
	}
	unknown := CheckConstraints(cfg, &domain.JobDescription{WorkType: domain.WorkRemote, Description: "Great team."}, needs)
	if unknown.Passed {
		t.Fatalf("unknown policy defaults to violation in strict mode")
	}

	noNeed := CheckConstraints(cfg, &domain.JobDescription{WorkType: domain.WorkRemote, Description: "no sponsorship"}, &domain.Profile{})
	if !noNeed.Passed || len(noNeed.SoftWarnings) != 0 {
		t.Fatalf("no sponsorship need means no visa constraint: %+v", noNeed)
	}
}

func TestSalaryConstraint(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strict.Salary = true
	profile := &domain.Profile{SalaryMinimum: intPtr(90000), SalaryCurrency: "USD"}

	low := CheckConstraints(cfg, &domain.JobDescription{WorkType: domain.WorkRemote, SalaryMax: intPtr(80000), SalaryCurrency: "USD"}, profile)
	if low.Passed {
		t.Fatalf("ceiling below minimum should violate in strict mode")
	}

	// Currency mismatch is always advisory, never hard.
	mismatch := CheckConstraints(cfg, &domain.JobDescription{WorkType: domain.WorkRemote, SalaryMax: intPtr(50000), SalaryCurrency: "EUR"}, profile)
	if !mismatch.Passed || len(mismatch.SoftWarnings) == 0 {
		t.Fatalf("currency mismatch must be a soft warning: %+v", mismatch)
	}

	ok := CheckConstraints(cfg, &domain.JobDescription{WorkType: domain.WorkRemote, SalaryMax: intPtr(120000), SalaryCurrency: "USD"}, profile)
	if !ok.Passed || len(ok.SoftWarnings) != 0 {
		t.Fatalf("sufficient ceiling should pass cleanly: %+v", ok)
	}
}

func TestRecommendationThresholds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ApplyThreshold = 0.7
	cfg.ReviewMargin = 0.15
	e := fixedEvaluator(cfg)

	passed := domain.NewConstraintResult(nil, nil)
	failed := domain.NewConstraintResult([]string{"x"}, nil)

	cases := []struct {
		total       float64
		constraints domain.ConstraintResult
		want        domain.Recommendation
	}{
		{0.9, passed, domain.RecommendApply},
		{0.7, passed, domain.RecommendApply},
		{0.6, passed, domain.RecommendReview},
		{0.55, passed, domain.RecommendReview},
		{0.54, passed, domain.RecommendSkip},
		{0.95, failed, domain.RecommendSkip},
	}
	for _, tc := range cases {
		if got := e.recommend(tc.total, tc.constraints); got != tc.want {
			t.Fatalf("recommend(%v, passed=%v) = %s, want %s", tc.total, tc.constraints.Passed, got, tc.want)
		}
	}
}

type stubAdvisor struct {
	result domain.FitResult
	err    error
}

func (s stubAdvisor) Evaluate(context.Context, *domain.JobDescription, *domain.Profile) (domain.FitResult, error) {
	return s.result, s.err
}

func TestEvaluateDeterministic(t *testing.T) {
	e := fixedEvaluator(DefaultConfig())
	job := &domain.JobDescription{
		Company:        "Acme",
		RoleTitle:      "Engineer",
		JobURL:         "https://x.com/j",
		WorkType:       domain.WorkRemote,
		RequiredSkills: []string{"go"},
	}
	profile := &domain.Profile{Skills: []string{"golang"}}

	res, err := e.Evaluate(context.Background(), job, profile)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Source != domain.FitSourceDeterministic {
		t.Fatalf("source = %s, want deterministic", res.Source)
	}
	if res.Recommendation != domain.RecommendApply {
		t.Fatalf("recommendation = %s, want apply (score %v)", res.Recommendation, res.Score.TotalScore)
	}
	if res.EvaluatedAt != "2026-02-01T00:00:00Z" {
		t.Fatalf("evaluated_at = %s", res.EvaluatedAt)
	}

	again, _ := e.Evaluate(context.Background(), job, profile)
	if fmt.Sprintf("%+v", res) != fmt.Sprintf("%+v", again) {
		t.Fatalf("evaluation is not deterministic")
	}
}

func TestEvaluateAdvisorOverrideAndFallback(t *testing.T) {
	job := &domain.JobDescription{Company: "Acme", RoleTitle: "Engineer", WorkType: domain.WorkRemote}
	profile := &domain.Profile{Skills: []string{"go"}}

	e := fixedEvaluator(DefaultConfig())
	e.Advisor = stubAdvisor{result: domain.FitResult{
		Score:          domain.FitScore{TotalScore: 0.9, MustHaveScore: 1, PreferredScore: 1, ExperienceScore: 1, EducationScore: 1},
		Recommendation: domain.RecommendApply,
	}}
	res, err := e.Evaluate(context.Background(), job, profile)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Source != domain.FitSourceAdvisor || res.Score.TotalScore != 0.9 {
		t.Fatalf("advisor override not applied: %+v", res)
	}

	e.Advisor = stubAdvisor{err: fmt.Errorf("model unavailable")}
	res, err = e.Evaluate(context.Background(), job, profile)
	if err != nil {
		t.Fatalf("fallback should not surface the advisor error: %v", err)
	}
	if res.Source != domain.FitSourceFallback {
		t.Fatalf("source = %s, want fallback", res.Source)
	}
}

func TestAdvisorCannotOverrideFailedConstraints(t *testing.T) {
	e := fixedEvaluator(DefaultConfig())
	e.Advisor = stubAdvisor{result: domain.FitResult{
		Score:          domain.FitScore{TotalScore: 1, MustHaveScore: 1, PreferredScore: 1, ExperienceScore: 1, EducationScore: 1},
		Recommendation: domain.RecommendApply,
	}}
	job := &domain.JobDescription{
		Company:  "Acme",
		WorkType: domain.WorkOnsite,
		Location: "Berlin",
	}
	profile := &domain.Profile{TargetLocations: []string{"New York"}}

	res, err := e.Evaluate(context.Background(), job, profile)
	if err != nil {
		t.Fatal(err)
	}
	if res.Recommendation != domain.RecommendSkip {
		t.Fatalf("failed constraints must force skip, got %s", res.Recommendation)
	}
}
