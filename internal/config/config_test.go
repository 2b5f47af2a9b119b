package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.WorkspaceDir != ".jobpilot" || s.MaxPerDay != 10 || s.IncludeSkips {
		t.Fatalf("defaults not applied: %+v", s)
	}
	if s.Scoring.ApplyThreshold != 0.7 {
		t.Fatalf("scoring defaults not applied: %+v", s.Scoring)
	}
	if s.DatabasePath() != filepath.Join(".jobpilot", "jobpilot.db") {
		t.Fatalf("database path = %s", s.DatabasePath())
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", `
max_per_day: 3
min_score: 0.6
include_skips: true
scoring:
  apply_threshold: 0.8
  review_margin: 0.1
  weights:
    must_have: 0.5
    preferred: 0.1
    experience: 0.25
    education: 0.15
bridge:
  extract_command: ["python3", "extract.py"]
`)
	s, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.MaxPerDay != 3 || s.MinScore != 0.6 || !s.IncludeSkips {
		t.Fatalf("overrides not applied: %+v", s)
	}
	if s.Scoring.ApplyThreshold != 0.8 || s.Scoring.Weights.MustHave != 0.5 {
		t.Fatalf("scoring overrides not applied: %+v", s.Scoring)
	}
	if len(s.Bridge.ExtractCommand) != 2 || s.Bridge.ExtractCommand[0] != "python3" {
		t.Fatalf("bridge command = %v", s.Bridge.ExtractCommand)
	}
	// Untouched keys keep their defaults.
	if s.WorkspaceDir != ".jobpilot" {
		t.Fatalf("workspace_dir default lost: %s", s.WorkspaceDir)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	path := writeFile(t, "config.yaml", "min_score: 1.5\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for min_score > 1")
	}
}

func TestLoadProfile(t *testing.T) {
	path := writeFile(t, "profile.yaml", `
name: Dana
skills: [go, sql]
years_experience: 6
target_locations: ["New York"]
needs_sponsorship: false
salary_minimum: 90000
salary_currency: USD
`)
	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("load profile: %v", err)
	}
	if p.Name != "Dana" || len(p.Skills) != 2 || p.YearsExperience != 6 {
		t.Fatalf("profile = %+v", p)
	}
	if p.SalaryMinimum == nil || *p.SalaryMinimum != 90000 {
		t.Fatalf("salary_minimum = %v", p.SalaryMinimum)
	}
}

func TestLoadProfileRejectsNegativeExperience(t *testing.T) {
	path := writeFile(t, "profile.yaml", "years_experience: -1\n")
	if _, err := LoadProfile(path); err == nil {
		t.Fatal("expected validation error")
	}
}
