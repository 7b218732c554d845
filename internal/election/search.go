package election

import (
	"strings"

	"github.com/sakif/campus-ballot/internal/model"
)

// Matches reports whether term appears, case-insensitively, in the election
// name, its faculty, or any candidate's name, faculty or level.
// An empty term matches everything.
func Matches(e *model.Election, term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	if contains(e.ElectionName, term) || contains(e.Faculty, term) {
		return true
	}
	for _, c := range e.Candidates {
		if contains(c.Name, term) || contains(c.Faculty, term) || contains(c.Level, term) {
			return true
		}
	}
	return false
}

// Search keeps the elections matching term, preserving order.
func Search(elections []model.Election, term string) []model.Election {
	if strings.TrimSpace(term) == "" {
		return elections
	}
	out := make([]model.Election, 0, len(elections))
	for i := range elections {
		if Matches(&elections[i], term) {
			out = append(out, elections[i])
		}
	}
	return out
}

func contains(field, lowerTerm string) bool {
	return strings.Contains(strings.ToLower(field), lowerTerm)
}
