package election

import (
	"fmt"
	"strings"
	"time"

	"github.com/sakif/campus-ballot/internal/model"
)

// Phase is where an election sits relative to the current time.
type Phase string

const (
	PhasePending    Phase = "pending"
	PhaseInProgress Phase = "inprogress"
	PhaseExpired    Phase = "expired"
)

// Classify places e in exactly one phase at now.
//
//	Pending:    startDate >  now
//	InProgress: startDate <= now <= endDate
//	Expired:    endDate   <  now
//
// The three cases are exclusive and exhaustive when StartDate <= EndDate.
// Elections violating that are rejected by Validate before they are stored.
func Classify(e *model.Election, now time.Time) Phase {
	switch {
	case e.StartDate.After(now):
		return PhasePending
	case e.EndDate.Before(now):
		return PhaseExpired
	default:
		return PhaseInProgress
	}
}

// Tab selects elections for a listing.
type Tab string

const (
	TabAll        Tab = "all"
	TabPending    Tab = Tab(PhasePending)
	TabInProgress Tab = Tab(PhaseInProgress)
	TabExpired    Tab = Tab(PhaseExpired)
)

// ParseTab accepts the tab names used by the API; empty means TabAll.
func ParseTab(s string) (Tab, error) {
	switch Tab(strings.ToLower(strings.TrimSpace(s))) {
	case "", TabAll:
		return TabAll, nil
	case TabPending:
		return TabPending, nil
	case TabInProgress, "in_progress", "active":
		return TabInProgress, nil
	case TabExpired:
		return TabExpired, nil
	}
	return "", fmt.Errorf("unknown tab %q", s)
}

// Filter returns the elections in tab at now, preserving input order.
func Filter(elections []model.Election, tab Tab, now time.Time) []model.Election {
	out := make([]model.Election, 0, len(elections))
	for i := range elections {
		if tab == TabAll || Phase(tab) == Classify(&elections[i], now) {
			out = append(out, elections[i])
		}
	}
	return out
}

// PhaseCounts is the number of elections in each phase.
type PhaseCounts struct {
	Pending    int `json:"pending"`
	InProgress int `json:"inProgress"`
	Expired    int `json:"expired"`
}

// CountPhases classifies every election once.
func CountPhases(elections []model.Election, now time.Time) PhaseCounts {
	var c PhaseCounts
	for i := range elections {
		switch Classify(&elections[i], now) {
		case PhasePending:
			c.Pending++
		case PhaseInProgress:
			c.InProgress++
		case PhaseExpired:
			c.Expired++
		}
	}
	return c
}
