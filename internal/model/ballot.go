package model

import "time"

// Ballot is one immutable vote. At most one exists per (UserID, ElectionID).
//
// Candidate is a snapshot taken at cast time, not a reference: later roster
// edits do not change it.
type Ballot struct {
	ID         string    `json:"id"         bson:"_id"`
	UserID     string    `json:"userId"     bson:"userId"`
	ElectionID string    `json:"electionId" bson:"electionId"`
	Candidate  Candidate `json:"candidate"  bson:"candidate"`
	VoterName  string    `json:"voterName"  bson:"voterName"`
	CastAt     time.Time `json:"castAt"     bson:"castAt"`
}
