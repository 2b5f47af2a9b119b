package scoring

import (
	"fmt"
	"sort"
	"strings"

	"jobpilot/internal/domain"
)

type skillMatch struct {
	score   float64
	matched []string
	missing []string
	reason  string
}

func matchSkills(required []string, available map[string]bool, fuzzy bool, threshold float64) skillMatch {
	if len(required) == 0 {
		return skillMatch{score: 1, reason: "no skills required"}
	}
	var matched, missing []string
	seen := map[string]bool{}
	for _, raw := range required {
		skill := Normalize(raw)
		if skill == "" || seen[skill] {
			continue
		}
		seen[skill] = true
		if matches(skill, available, fuzzy, threshold) {
			matched = append(matched, skill)
		} else {
			missing = append(missing, skill)
		}
	}
	total := len(matched) + len(missing)
	if total == 0 {
		return skillMatch{score: 1, reason: "no skills required"}
	}
	sort.Strings(matched)
	sort.Strings(missing)
	return skillMatch{
		score:   float64(len(matched)) / float64(total),
		matched: matched,
		missing: missing,
		reason:  fmt.Sprintf("matched %d of %d skills", len(matched), total),
	}
}

// experienceDelta returns how many years the candidate falls outside the
// job's [min,max] range; 0 when within range or unconstrained.
func experienceDelta(job *domain.JobDescription, years float64) float64 {
	if job.ExperienceYearsMin != nil && years < *job.ExperienceYearsMin {
		return *job.ExperienceYearsMin - years
	}
	if job.ExperienceYearsMax != nil && years > *job.ExperienceYearsMax {
		return years - *job.ExperienceYearsMax
	}
	return 0
}

func experienceScore(job *domain.JobDescription, years, tolerance float64) (float64, string) {
	if job.ExperienceYearsMin == nil && job.ExperienceYearsMax == nil {
		return 1, "no experience requirement"
	}
	delta := experienceDelta(job, years)
	if delta == 0 {
		return 1, "within required experience range"
	}
	if delta > tolerance {
		return 0, fmt.Sprintf("%.1f years outside range, beyond tolerance", delta)
	}
	return 1 - delta/(tolerance+1), fmt.Sprintf("%.1f years outside range, within tolerance", delta)
}

// Ordinal education levels.
var educationLevels = []struct {
	level    int
	keywords []string
}{
	{5, []string{"phd", "ph.d", "doctorate", "doctoral"}},
	{4, []string{"master", "msc", "m.s.", "mba"}},
	{3, []string{"bachelor", "bsc", "b.s.", "b.a.", "undergraduate degree"}},
	{2, []string{"associate"}},
	{1, []string{"high school", "ged", "secondary"}},
}

func parseEducationLevel(s string) int {
	ls := strings.ToLower(s)
	for _, entry := range educationLevels {
		for _, kw := range entry.keywords {
			if strings.Contains(ls, kw) {
				return entry.level
			}
		}
	}
	return 0
}

func highestEducation(entries []string) int {
	highest := 0
	for _, e := range entries {
		if lvl := parseEducationLevel(e); lvl > highest {
			highest = lvl
		}
	}
	return highest
}

func educationScore(requirement string, entries []string) (float64, string) {
	required := parseEducationLevel(requirement)
	if strings.TrimSpace(requirement) == "" || required == 0 {
		// No requirement, or one we cannot interpret: do not penalize.
		return 1, "no parseable education requirement"
	}
	if len(entries) == 0 {
		return 0, "education required but profile lists none"
	}
	have := highestEducation(entries)
	switch {
	case have >= required:
		return 1, "education requirement met"
	case have == required-1:
		return 0.5, "one level below required education"
	default:
		return 0, "below required education level"
	}
}

// Score computes the deterministic fit sub-scores for a job/profile pair.
func Score(cfg Config, job *domain.JobDescription, profile *domain.Profile) domain.FitScore {
	available := Expand(profile.Skills)

	required := matchSkills(job.RequiredSkills, available, cfg.FuzzyEnabled, cfg.FuzzyThreshold)
	preferred := matchSkills(job.PreferredSkills, available, cfg.FuzzyEnabled, cfg.FuzzyThreshold)
	expScore, expReason := experienceScore(job, profile.YearsExperience, cfg.ExperienceTolerance)
	eduScore, eduReason := educationScore(job.Education, profile.Education)

	total := cfg.Weights.MustHave*required.score +
		cfg.Weights.Preferred*preferred.score +
		cfg.Weights.Experience*expScore +
		cfg.Weights.Education*eduScore

	return domain.FitScore{
		TotalScore:       total,
		MustHaveScore:    required.score,
		PreferredScore:   preferred.score,
		ExperienceScore:  expScore,
		EducationScore:   eduScore,
		MatchedRequired:  required.matched,
		MissingRequired:  required.missing,
		MatchedPreferred: preferred.matched,
		MissingPreferred: preferred.missing,
		Reasoning: map[string]string{
			"must_have":  required.reason,
			"preferred":  preferred.reason,
			"experience": expReason,
			"education":  eduReason,
		},
	}
}
