package model

// Collection names shared by every ballot store.
const (
	CollectionUsers     = "users"
	CollectionElections = "elections"
	CollectionBallots   = "userVotes"
)

// ChangeOp is the kind of mutation a Change describes.
type ChangeOp string

const (
	ChangeInsert ChangeOp = "insert"
	ChangeUpdate ChangeOp = "update"
	ChangeDelete ChangeOp = "delete"
)

// Change describes one committed store mutation. ElectionID is set for
// election and ballot changes so watchers can filter cheaply.
type Change struct {
	Collection string   `json:"collection"`
	Op         ChangeOp `json:"op"`
	ID         string   `json:"id"`
	ElectionID string   `json:"electionId,omitempty"`
}

// Touches reports whether the change affects the given election or its
// ballots.
func (c Change) Touches(electionID string) bool {
	switch c.Collection {
	case CollectionElections, CollectionBallots:
		return c.ElectionID == electionID
	}
	return false
}
