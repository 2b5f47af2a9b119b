// Package config loads the pipeline settings and the candidate profile
// from YAML files.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"jobpilot/internal/domain"
	"jobpilot/internal/scoring"
)

// Bridge configures the external collaborator commands. Each command
// receives JSON on stdin and answers with JSON on stdout.
type Bridge struct {
	ExtractCommand []string `yaml:"extract_command"`
	RunCommand     []string `yaml:"run_command"`
	TailorCommand  []string `yaml:"tailor_command"`
	AdvisorCommand []string `yaml:"advisor_command"`
}

// Settings is the top-level configuration file.
type Settings struct {
	WorkspaceDir string         `yaml:"workspace_dir"`
	OutputDir    string         `yaml:"output_dir"`
	ProfilePath  string         `yaml:"profile"`
	MaxPerDay    int            `yaml:"max_per_day"`
	MinScore     float64        `yaml:"min_score"`
	IncludeSkips bool           `yaml:"include_skips"`
	Debug        bool           `yaml:"debug"`
	ServerAddr   string         `yaml:"server_addr"`
	Scoring      scoring.Config `yaml:"scoring"`
	Bridge       Bridge         `yaml:"bridge"`
}

// Default returns the settings used when no file overrides them.
func Default() Settings {
	return Settings{
		WorkspaceDir: ".jobpilot",
		OutputDir:    "applications",
		ProfilePath:  "profile.yaml",
		MaxPerDay:    10,
		MinScore:     0,
		ServerAddr:   "127.0.0.1:8700",
		Scoring:      scoring.DefaultConfig(),
	}
}

// Load reads settings from path, layered over Default. A missing file
// is not an error; the defaults apply.
func Load(path string) (Settings, error) {
	s := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("config %s: %w", path, err)
	}
	return s, nil
}

// Validate checks settings coherence.
func (s Settings) Validate() error {
	if s.WorkspaceDir == "" {
		return fmt.Errorf("workspace_dir must not be empty")
	}
	if s.MaxPerDay < 0 {
		return fmt.Errorf("max_per_day must be >= 0")
	}
	if s.MinScore < 0 || s.MinScore > 1 {
		return fmt.Errorf("min_score must be in [0,1]")
	}
	return s.Scoring.Validate()
}

// DatabasePath returns the tracker database location inside the
// workspace.
func (s Settings) DatabasePath() string {
	return filepath.Join(s.WorkspaceDir, "jobpilot.db")
}

// LoadProfile reads and validates the candidate profile.
func LoadProfile(path string) (*domain.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	var p domain.Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	return &p, nil
}
