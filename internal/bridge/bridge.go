// Package bridge wires external collaborator programs into the
// pipeline. Each collaborator is a command that reads one JSON request
// on stdin and writes one JSON response on stdout; stderr passes
// through for its own logging. Extraction, submission and artifact
// tailoring all live outside this process.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"go.uber.org/zap"

	"jobpilot/internal/domain"
)

// Command invokes one collaborator executable.
type Command struct {
	Argv   []string
	Logger *zap.Logger
}

func NewCommand(argv []string, logger *zap.Logger) *Command {
	return &Command{Argv: argv, Logger: logger}
}

func (c *Command) configured() bool {
	return c != nil && len(c.Argv) > 0
}

// call runs the command once, feeding request as JSON and decoding the
// stdout into response.
func (c *Command) call(ctx context.Context, request, response any) error {
	if !c.configured() {
		return fmt.Errorf("collaborator command not configured")
	}
	payload, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stderr = os.Stderr
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if c.Logger != nil {
		c.Logger.Debug("invoking collaborator", zap.Strings("argv", c.Argv))
	}
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w", c.Argv[0], err)
	}
	if err := json.Unmarshal(stdout.Bytes(), response); err != nil {
		return fmt.Errorf("decode %s response: %w", c.Argv[0], err)
	}
	return nil
}

// Extractor fetches and structures a job posting via the extract
// collaborator.
type Extractor struct {
	cmd *Command
}

func NewExtractor(argv []string, logger *zap.Logger) *Extractor {
	return &Extractor{cmd: NewCommand(argv, logger)}
}

func (e *Extractor) Extract(ctx context.Context, url string) (*domain.JobDescription, error) {
	req := struct {
		Action string `json:"action"`
		URL    string `json:"url"`
	}{"extract", url}

	var job domain.JobDescription
	if err := e.cmd.call(ctx, req, &job); err != nil {
		return nil, err
	}
	if job.Company == "" && job.RoleTitle == "" {
		return nil, fmt.Errorf("extractor returned no usable posting for %s", url)
	}
	if job.JobURL == "" {
		job.JobURL = url
	}
	return &job, nil
}

// Runner submits one application via the run collaborator.
type Runner struct {
	cmd *Command
	// OutputDir is where the collaborator should place artifacts for
	// this run.
	OutputDir string
}

func NewRunner(argv []string, outputDir string, logger *zap.Logger) *Runner {
	return &Runner{cmd: NewCommand(argv, logger), OutputDir: outputDir}
}

func (r *Runner) Run(ctx context.Context, job domain.QueuedJob, profile *domain.Profile) (domain.RunOutcome, error) {
	req := struct {
		Action    string                 `json:"action"`
		URL       string                 `json:"url"`
		Job       *domain.JobDescription `json:"job_description"`
		Profile   *domain.Profile        `json:"profile"`
		OutputDir string                 `json:"output_dir,omitempty"`
	}{"run", job.URL, job.Job, profile, r.OutputDir}

	var outcome domain.RunOutcome
	if err := r.cmd.call(ctx, req, &outcome); err != nil {
		return domain.RunOutcome{}, err
	}
	if outcome.Status == "" {
		return domain.RunOutcome{}, fmt.Errorf("runner returned no status for %s", job.URL)
	}
	return outcome, nil
}

// Tailor produces resume and cover letter artifacts without submitting.
type Tailor struct {
	cmd       *Command
	OutputDir string
}

func NewTailor(argv []string, outputDir string, logger *zap.Logger) *Tailor {
	return &Tailor{cmd: NewCommand(argv, logger), OutputDir: outputDir}
}

func (t *Tailor) Tailor(ctx context.Context, job *domain.JobDescription, profile *domain.Profile) (string, string, error) {
	req := struct {
		Action    string                 `json:"action"`
		Job       *domain.JobDescription `json:"job_description"`
		Profile   *domain.Profile        `json:"profile"`
		OutputDir string                 `json:"output_dir,omitempty"`
	}{"tailor", job, profile, t.OutputDir}

	var resp struct {
		ResumePath      string `json:"resume_path"`
		CoverLetterPath string `json:"cover_letter_path"`
	}
	if err := t.cmd.call(ctx, req, &resp); err != nil {
		return "", "", err
	}
	return resp.ResumePath, resp.CoverLetterPath, nil
}

// Advisor asks an external evaluator for a fit opinion. The scoring
// engine treats its failures as non-fatal.
type Advisor struct {
	cmd *Command
}

func NewAdvisor(argv []string, logger *zap.Logger) *Advisor {
	return &Advisor{cmd: NewCommand(argv, logger)}
}

func (a *Advisor) Evaluate(ctx context.Context, job *domain.JobDescription, profile *domain.Profile) (domain.FitResult, error) {
	req := struct {
		Action  string                 `json:"action"`
		Job     *domain.JobDescription `json:"job_description"`
		Profile *domain.Profile        `json:"profile"`
	}{"evaluate", job, profile}

	var result domain.FitResult
	if err := a.cmd.call(ctx, req, &result); err != nil {
		return domain.FitResult{}, err
	}
	return result, nil
}
