package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"asvprep/internal/config"
)

// Requirement defines an external binary the pipeline relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Stages      string
}

// Status reports the availability of a requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Stages      string
	Available   bool
	Detail      string
}

// For returns the external-tool requirements implied by the configuration.
func For(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "Downloader",
			Command:     cfg.Tools.Downloader,
			Description: "resumable archive downloads",
			Stages:      "1, 5",
		},
		{
			Name:        "FFmpeg",
			Command:     cfg.Tools.FFmpeg,
			Description: "per-speaker enrollment concatenation",
			Stages:      "2",
		},
	}
}

// Check evaluates the provided requirements and reports availability.
func Check(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: req.Description,
			Stages:      req.Stages,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Missing returns the names of unavailable requirements.
func Missing(statuses []Status) []string {
	var missing []string
	for _, status := range statuses {
		if !status.Available {
			missing = append(missing, status.Name)
		}
	}
	return missing
}
