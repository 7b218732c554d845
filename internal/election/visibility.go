package election

import (
	"time"

	"github.com/sakif/campus-ballot/internal/model"
)

// VisibleTo reports whether voter may see e at now: the election is scoped
// to the voter's faculty (or to every faculty) and has not ended.
// Admins see every election.
func VisibleTo(e *model.Election, user *model.User, now time.Time) bool {
	if user.IsAdmin() {
		return true
	}
	return InScope(e, user) && !e.EndDate.Before(now)
}

// InScope reports whether e is open to user's faculty, regardless of time.
func InScope(e *model.Election, user *model.User) bool {
	return user.IsAdmin() || e.Faculty == model.FacultyAll || e.Faculty == user.Faculty
}

// Visible keeps the elections user may see, preserving order.
func Visible(elections []model.Election, user *model.User, now time.Time) []model.Election {
	out := make([]model.Election, 0, len(elections))
	for i := range elections {
		if VisibleTo(&elections[i], user, now) {
			out = append(out, elections[i])
		}
	}
	return out
}

// Votable reports whether user may cast a ballot in e at now. The election
// must be visible to them and currently running.
func Votable(e *model.Election, user *model.User, now time.Time) bool {
	return VisibleTo(e, user, now) && Classify(e, now) == PhaseInProgress
}
