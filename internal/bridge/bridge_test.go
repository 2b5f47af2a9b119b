package bridge

import (
	"context"
	"strings"
	"testing"

	"jobpilot/internal/domain"
)

// echoArgv returns an argv that ignores stdin and answers with the
// given JSON.
func echoArgv(response string) []string {
	return []string{"sh", "-c", "cat >/dev/null; printf '%s' " + shellQuote(response)}
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func TestExtractorDecodesPosting(t *testing.T) {
	e := NewExtractor(echoArgv(`{"company":"Acme","role_title":"Engineer","required_skills":["go"]}`), nil)
	job, err := e.Extract(context.Background(), "https://x.com/jobs/1")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if job.Company != "Acme" || job.RoleTitle != "Engineer" {
		t.Fatalf("job = %+v", job)
	}
	if job.JobURL != "https://x.com/jobs/1" {
		t.Fatalf("job_url not defaulted to the lead URL: %q", job.JobURL)
	}
}

func TestExtractorRejectsEmptyPosting(t *testing.T) {
	e := NewExtractor(echoArgv(`{}`), nil)
	if _, err := e.Extract(context.Background(), "https://x.com/jobs/1"); err == nil {
		t.Fatal("expected error for empty extraction")
	}
}

func TestRunnerRequiresStatus(t *testing.T) {
	job := domain.QueuedJob{URL: "https://x.com/jobs/1", Job: &domain.JobDescription{Company: "Acme"}}

	r := NewRunner(echoArgv(`{"status":"submitted","proof_text":"confirmation #42"}`), "out", nil)
	outcome, err := r.Run(context.Background(), job, &domain.Profile{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if outcome.Status != domain.RunSubmitted || outcome.ProofText != "confirmation #42" {
		t.Fatalf("outcome = %+v", outcome)
	}

	r = NewRunner(echoArgv(`{}`), "out", nil)
	if _, err := r.Run(context.Background(), job, &domain.Profile{}); err == nil {
		t.Fatal("expected error for missing status")
	}
}

func TestTailorReturnsArtifactPaths(t *testing.T) {
	tl := NewTailor(echoArgv(`{"resume_path":"out/resume.pdf","cover_letter_path":"out/cover.md"}`), "out", nil)
	resume, cover, err := tl.Tailor(context.Background(), &domain.JobDescription{Company: "Acme"}, &domain.Profile{})
	if err != nil {
		t.Fatalf("tailor: %v", err)
	}
	if resume != "out/resume.pdf" || cover != "out/cover.md" {
		t.Fatalf("paths = %q, %q", resume, cover)
	}
}

func TestCommandFailuresSurface(t *testing.T) {
	e := NewExtractor([]string{"sh", "-c", "exit 3"}, nil)
	if _, err := e.Extract(context.Background(), "https://x.com/jobs/1"); err == nil {
		t.Fatal("expected error for non-zero exit")
	}

	e = NewExtractor(nil, nil)
	if _, err := e.Extract(context.Background(), "https://x.com/jobs/1"); err == nil {
		t.Fatal("expected error for unconfigured command")
	}

	e = NewExtractor(echoArgv(`not json`), nil)
	if _, err := e.Extract(context.Background(), "https://x.com/jobs/1"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestAdvisorDecodesFitResult(t *testing.T) {
	a := NewAdvisor(echoArgv(`{"company":"Acme","role_title":"Engineer","fit_score":{"total_score":0.82,"must_have_score":1,"preferred_score":0.5,"experience_score":1,"education_score":1},"recommendation":"apply","source":"advisor"}`), nil)
	res, err := a.Evaluate(context.Background(), &domain.JobDescription{Company: "Acme"}, &domain.Profile{})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Score.TotalScore != 0.82 || res.Recommendation != domain.RecommendApply {
		t.Fatalf("result = %+v", res)
	}
}
