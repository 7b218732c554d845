package model

import "time"

// TallyStatus labels a leader relative to the election's end.
type TallyStatus string

const (
	TallyWinning TallyStatus = "winning" // election still running
	TallyWon     TallyStatus = "won"     // election ended
)

// CandidateResult is one roster entry's share of the ballots.
type CandidateResult struct {
	Candidate
	Votes      int     `json:"votes"`
	Percentage float64 `json:"percentage"`
}

// Tally is the aggregated result of an election at ComputedAt.
//
// Unattributed counts ballots whose embedded candidate name matches no
// current roster entry; they are included in TotalBallots, so percentages
// sum to less than 100 whenever Unattributed > 0.
type Tally struct {
	ElectionID    string            `json:"electionId"`
	ElectionName  string            `json:"electionName"`
	TotalBallots  int               `json:"totalBallots"`
	Candidates    []CandidateResult `json:"candidates"`
	Leader        *CandidateResult  `json:"leader"`
	TiedLeaders   []string          `json:"tiedLeaders,omitempty"`
	Unattributed  int               `json:"unattributed"`
	OrphanedNames []string          `json:"orphanedNames,omitempty"`
	Status        TallyStatus       `json:"status"`
	ComputedAt    time.Time         `json:"computedAt"`
}
