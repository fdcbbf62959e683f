package deps

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Requirement is an external program or file dailycraft relies on. Exactly
// one of Command (resolved through PATH) or File (checked on disk) is used;
// Command wins when both are set.
type Requirement struct {
	Name        string
	Command     string
	File        string
	Description string
	Optional    bool
}

// Status reports the availability of a requirement.
type Status struct {
	Name        string
	Target      string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Check evaluates the provided requirements in order.
func Check(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		status := Status{
			Name:        req.Name,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		cmd := strings.TrimSpace(req.Command)
		file := strings.TrimSpace(req.File)
		switch {
		case cmd != "":
			status.Target = cmd
			if resolved, err := exec.LookPath(cmd); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", cmd)
			} else {
				status.Available = true
				status.Detail = resolved
			}
		case file != "":
			status.Target = file
			info, err := os.Stat(file)
			switch {
			case err != nil:
				status.Detail = fmt.Sprintf("file %q not found", file)
			case info.IsDir():
				status.Detail = fmt.Sprintf("%q is a directory", file)
			default:
				status.Available = true
			}
		default:
			status.Detail = "not configured"
		}
		results = append(results, status)
	}
	return results
}

// Missing returns the required (non-optional) statuses that are unavailable.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s)
		}
	}
	return missing
}
