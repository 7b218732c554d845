package model

import "time"

// FacultyAll is the election scope sentinel meaning "every faculty".
const FacultyAll = "all"

// Candidate is embedded in an Election's roster.
//
// Name is unique within one election: tallies group ballots by name.
// ID is stable across edits and is recorded on ballots for audit.
type Candidate struct {
	ID      string `json:"id"      bson:"id"`
	Name    string `json:"name"    bson:"name"`
	Image   string `json:"image"   bson:"image"`
	Faculty string `json:"faculty" bson:"faculty"`
	Level   string `json:"level"   bson:"level"`
}

// Election is created and edited by an admin. Its phase is never stored;
// it is derived from StartDate/EndDate and the current time.
type Election struct {
	ID           string      `json:"id"           bson:"_id"`
	ElectionName string      `json:"electionName" bson:"electionName"`
	Faculty      string      `json:"faculty"      bson:"faculty"`
	StartDate    time.Time   `json:"startDate"    bson:"startDate"`
	EndDate      time.Time   `json:"endDate"      bson:"endDate"`
	Image        string      `json:"image"        bson:"image"`
	Candidates   []Candidate `json:"candidates"   bson:"candidates"`
	AdminID      string      `json:"adminId"      bson:"adminId"`
	CreatedAt    time.Time   `json:"createdAt"    bson:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"    bson:"updatedAt"`
}

// CandidateByID returns the roster entry with the given id.
func (e *Election) CandidateByID(id string) (Candidate, bool) {
	for _, c := range e.Candidates {
		if c.ID == id {
			return c, true
		}
	}
	return Candidate{}, false
}

// CandidateByName returns the roster entry with the given name.
func (e *Election) CandidateByName(name string) (Candidate, bool) {
	for _, c := range e.Candidates {
		if c.Name == name {
			return c, true
		}
	}
	return Candidate{}, false
}
