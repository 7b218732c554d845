package election

import (
	"math"
	"sort"
	"time"

	"github.com/sakif/campus-ballot/internal/model"
)

// Compute aggregates ballots into a Tally for e at now.
//
// Ballots are grouped by the embedded candidate name, then matched against
// the current roster, so a candidate renamed after voting starts at zero.
// Ballots naming no roster entry still count toward TotalBallots and are
// reported in Unattributed/OrphanedNames.
//
// Leader is set only when exactly one candidate holds the highest non-zero
// count; otherwise the tied names are listed in roster order.
func Compute(e *model.Election, ballots []model.Ballot, now time.Time) *model.Tally {
	counts := make(map[string]int, len(e.Candidates))
	for _, b := range ballots {
		counts[b.Candidate.Name]++
	}

	total := len(ballots)
	t := &model.Tally{
		ElectionID:   e.ID,
		ElectionName: e.ElectionName,
		TotalBallots: total,
		Candidates:   make([]model.CandidateResult, 0, len(e.Candidates)),
		Status:       Status(e, now),
		ComputedAt:   now,
	}

	attributed := 0
	onRoster := make(map[string]struct{}, len(e.Candidates))
	for _, c := range e.Candidates {
		votes := counts[c.Name]
		onRoster[c.Name] = struct{}{}
		attributed += votes
		t.Candidates = append(t.Candidates, model.CandidateResult{
			Candidate:  c,
			Votes:      votes,
			Percentage: Percentage(votes, total),
		})
	}

	t.Unattributed = total - attributed
	for name := range counts {
		if _, ok := onRoster[name]; !ok {
			t.OrphanedNames = append(t.OrphanedNames, name)
		}
	}
	sort.Strings(t.OrphanedNames)

	leaders := topCandidates(t.Candidates)
	switch len(leaders) {
	case 0:
	case 1:
		leader := t.Candidates[leaders[0]]
		t.Leader = &leader
	default:
		for _, i := range leaders {
			t.TiedLeaders = append(t.TiedLeaders, t.Candidates[i].Name)
		}
	}
	return t
}

// Percentage is votes/total*100 rounded to two decimals; 0 when total is 0.
func Percentage(votes, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(votes)/float64(total)*100*100) / 100
}

// Status is "winning" while the election runs and "won" once EndDate has
// passed. It is recomputed on every call and never stored.
func Status(e *model.Election, now time.Time) model.TallyStatus {
	if e.EndDate.After(now) {
		return model.TallyWinning
	}
	return model.TallyWon
}

// topCandidates returns the roster indexes holding the highest non-zero
// vote count.
func topCandidates(results []model.CandidateResult) []int {
	best := 0
	var idx []int
	for i, r := range results {
		switch {
		case r.Votes == 0:
		case r.Votes > best:
			best = r.Votes
			idx = append(idx[:0], i)
		case r.Votes == best:
			idx = append(idx, i)
		}
	}
	return idx
}
