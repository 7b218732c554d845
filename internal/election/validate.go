package election

import (
	"fmt"
	"strings"

	"github.com/sakif/campus-ballot/internal/apperror"
	"github.com/sakif/campus-ballot/internal/model"
)

const (
	MaxNameLength = 120
	MaxCandidates = 50
	MinCandidates = 1
)

// Validate checks the invariants a stored election must satisfy:
// required fields, StartDate <= EndDate, a non-empty roster and unique
// candidate names. Whitespace around names is trimmed in place.
func Validate(e *model.Election) error {
	e.ElectionName = strings.TrimSpace(e.ElectionName)
	e.Faculty = strings.TrimSpace(e.Faculty)

	if e.ElectionName == "" {
		return apperror.ValidationFailed("electionName", "election name is required")
	}
	if len(e.ElectionName) > MaxNameLength {
		return apperror.ValidationFailed("electionName",
			fmt.Sprintf("election name must be %d characters or less", MaxNameLength))
	}
	if e.Faculty == "" {
		return apperror.ValidationFailed("faculty", "faculty is required (use \"all\" for every faculty)")
	}
	if e.StartDate.IsZero() || e.EndDate.IsZero() {
		return apperror.ValidationFailed("startDate", "start and end dates are required")
	}
	if e.StartDate.After(e.EndDate) {
		return apperror.MalformedElection("endDate", "end date cannot be before start date")
	}
	if len(e.Candidates) < MinCandidates {
		return apperror.ValidationFailed("candidates", "at least one candidate is required")
	}
	if len(e.Candidates) > MaxCandidates {
		return apperror.ValidationFailed("candidates",
			fmt.Sprintf("an election can have at most %d candidates", MaxCandidates))
	}

	seen := make(map[string]struct{}, len(e.Candidates))
	for i := range e.Candidates {
		c := &e.Candidates[i]
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			return apperror.ValidationFailed("candidates", fmt.Sprintf("candidate %d has no name", i+1))
		}
		if _, dup := seen[c.Name]; dup {
			return apperror.MalformedElection("candidates",
				fmt.Sprintf("candidate name %q appears more than once", c.Name))
		}
		seen[c.Name] = struct{}{}
	}
	return nil
}
