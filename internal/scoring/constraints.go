package scoring

import (
	"fmt"
	"strings"

	"jobpilot/internal/domain"
)

var negativeSponsorship = []string{
	"no sponsorship",
	"not offer sponsorship",
	"unable to sponsor",
	"cannot sponsor",
	"will not sponsor",
	"without sponsorship",
	"no visa sponsorship",
	"citizens only",
	"must be authorized to work",
}

var positiveSponsorship = []string{
	"visa sponsorship available",
	"sponsorship available",
	"we sponsor",
	"willing to sponsor",
	"h1b sponsorship",
	"h-1b sponsorship",
}

// locationMatches compares normalized strings with substring match in
// either direction, so "New York" matches "New York, NY".
func locationMatches(jobLocation, target string) bool {
	a := strings.ToLower(strings.TrimSpace(jobLocation))
	b := strings.ToLower(strings.TrimSpace(target))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

type constraintCollector struct {
	hard []string
	soft []string
}

// add files the message as a hard violation or soft warning per mode.
func (c *constraintCollector) add(strict bool, msg string) {
	if strict {
		c.hard = append(c.hard, msg)
	} else {
		c.soft = append(c.soft, msg)
	}
}

// CheckConstraints evaluates the pass/fail rules independently of the
// numeric score.
func CheckConstraints(cfg Config, job *domain.JobDescription, profile *domain.Profile) domain.ConstraintResult {
	var c constraintCollector

	// Location / work type. Remote roles always pass; a candidate with no
	// target locations accepts anywhere.
	if !strings.EqualFold(job.WorkType, domain.WorkRemote) && len(profile.TargetLocations) > 0 {
		matched := false
		for _, target := range profile.TargetLocations {
			if locationMatches(job.Location, target) {
				matched = true
				break
			}
		}
		if !matched {
			c.add(cfg.Strict.Location, fmt.Sprintf("location %q does not match any target location", job.Location))
		}
	}

	// Visa sponsorship. Only relevant when the candidate needs it.
	if profile.NeedsSponsorship {
		text := strings.ToLower(job.Text())
		switch {
		case containsAny(text, positiveSponsorship):
			// Explicitly offered.
		case containsAny(text, negativeSponsorship):
			c.add(cfg.Strict.Visa, "job explicitly excludes visa sponsorship")
		default:
			c.add(cfg.Strict.Visa, "sponsorship policy unknown")
		}
	}

	// Experience: binary form of the scoring decay.
	if delta := experienceDelta(job, profile.YearsExperience); delta > cfg.ExperienceTolerance {
		c.add(cfg.Strict.Experience, fmt.Sprintf("experience %.1f years outside the required range", delta))
	}

	// Salary. Currency mismatch is advisory only; it makes the ceiling
	// comparison meaningless.
	if profile.SalaryMinimum != nil && job.SalaryMax != nil {
		if job.SalaryCurrency != "" && profile.SalaryCurrency != "" &&
			!strings.EqualFold(job.SalaryCurrency, profile.SalaryCurrency) {
			c.soft = append(c.soft, fmt.Sprintf("salary currency %s differs from profile currency %s",
				job.SalaryCurrency, profile.SalaryCurrency))
		} else if *job.SalaryMax < *profile.SalaryMinimum {
			c.add(cfg.Strict.Salary, fmt.Sprintf("salary ceiling %d below minimum %d",
				*job.SalaryMax, *profile.SalaryMinimum))
		}
	}

	return domain.NewConstraintResult(c.hard, c.soft)
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
