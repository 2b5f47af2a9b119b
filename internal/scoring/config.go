package scoring

import "fmt"

// Weights for the four sub-scores. The total is a plain weighted sum, not
// a normalized average.
type Weights struct {
	MustHave   float64 `json:"must_have" yaml:"must_have"`
	Preferred  float64 `json:"preferred" yaml:"preferred"`
	Experience float64 `json:"experience" yaml:"experience"`
	Education  float64 `json:"education" yaml:"education"`
}

// StrictFlags select hard violations (true) or soft warnings (false) per
// constraint category.
type StrictFlags struct {
	Location   bool `json:"location" yaml:"location"`
	Visa       bool `json:"visa" yaml:"visa"`
	Experience bool `json:"experience" yaml:"experience"`
	Salary     bool `json:"salary" yaml:"salary"`
}

// Config tunes the deterministic engine. Constructed once and passed in;
// there is no ambient global configuration.
type Config struct {
	Weights             Weights     `json:"weights" yaml:"weights"`
	ApplyThreshold      float64     `json:"apply_threshold" yaml:"apply_threshold"`
	ReviewMargin        float64     `json:"review_margin" yaml:"review_margin"`
	FuzzyEnabled        bool        `json:"fuzzy_enabled" yaml:"fuzzy_enabled"`
	FuzzyThreshold      float64     `json:"fuzzy_threshold" yaml:"fuzzy_threshold"`
	ExperienceTolerance float64     `json:"experience_tolerance" yaml:"experience_tolerance"`
	Strict              StrictFlags `json:"strict" yaml:"strict"`
}

// DefaultConfig returns the shipped tuning.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			MustHave:   0.4,
			Preferred:  0.2,
			Experience: 0.25,
			Education:  0.15,
		},
		ApplyThreshold:      0.7,
		ReviewMargin:        0.15,
		FuzzyEnabled:        true,
		FuzzyThreshold:      0.85,
		ExperienceTolerance: 2,
		Strict: StrictFlags{
			Location:   true,
			Visa:       true,
			Experience: false,
			Salary:     false,
		},
	}
}

// Validate checks the tuning is coherent.
func (c Config) Validate() error {
	for name, w := range map[string]float64{
		"must_have": c.Weights.MustHave, "preferred": c.Weights.Preferred,
		"experience": c.Weights.Experience, "education": c.Weights.Education,
	} {
		if w < 0 {
			return fmt.Errorf("scoring weight %s must be >= 0", name)
		}
	}
	if c.ApplyThreshold < 0 || c.ApplyThreshold > 1 {
		return fmt.Errorf("apply_threshold must be in [0,1]")
	}
	if c.ReviewMargin < 0 {
		return fmt.Errorf("review_margin must be >= 0")
	}
	if c.ExperienceTolerance < 0 {
		return fmt.Errorf("experience_tolerance must be >= 0")
	}
	return nil
}
