package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sakif/campus-ballot/internal/apperror"
	"github.com/sakif/campus-ballot/internal/election"
	"github.com/sakif/campus-ballot/internal/model"
	"github.com/sakif/campus-ballot/internal/service"
)

// ElectionHandler serves election CRUD and voting.
//
// Admin-only routes are guarded by auth.RequireAdmin in the router; the
// handler still passes the caller's identity to the service, which decides
// what a voter may see.
type ElectionHandler struct {
	elections *service.ElectionService
	voting    *service.VotingService
	logger    *slog.Logger
}

func NewElectionHandler(elections *service.ElectionService, voting *service.VotingService, logger *slog.Logger) *ElectionHandler {
	return &ElectionHandler{elections: elections, voting: voting, logger: logger}
}

type electionRequest struct {
	ElectionName string            `json:"electionName"`
	Faculty      string            `json:"faculty"`
	StartDate    time.Time         `json:"startDate"`
	EndDate      time.Time         `json:"endDate"`
	Image        string            `json:"image"`
	Candidates   []model.Candidate `json:"candidates"`
}

func (req electionRequest) input() service.ElectionInput {
	return service.ElectionInput{
		ElectionName: req.ElectionName,
		Faculty:      req.Faculty,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		Image:        req.Image,
		Candidates:   req.Candidates,
	}
}

type hasVotedResponse struct {
	ElectionID string `json:"electionId"`
	HasVoted   bool   `json:"hasVoted"`
}

// HandleList returns the elections visible to the caller.
//
// HTTP: GET /api/elections?tab=inprogress&q=science
func (h *ElectionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	viewer, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}

	tab, err := election.ParseTab(r.URL.Query().Get("tab"))
	if err != nil {
		writeError(w, apperror.ValidationFailed("tab", err.Error()))
		return
	}

	elections, err := h.elections.ListFor(r.Context(), viewer, service.ListQuery{
		Tab:    tab,
		Search: r.URL.Query().Get("q"),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, elections)
}

// HandleCreate stores a new election owned by the calling admin.
//
// HTTP: POST /api/elections
func (h *ElectionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	admin, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req electionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	e, err := h.elections.Create(r.Context(), admin.UserID, req.input())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, e)
}

// HandleGet returns one election.
//
// HTTP: GET /api/elections/{id}
func (h *ElectionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	viewer, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}

	e, err := h.elections.Get(r.Context(), viewer, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, e)
}

// HandleUpdate replaces an election's fields and roster.
//
// HTTP: PUT /api/elections/{id}
func (h *ElectionHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req electionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	e, err := h.elections.Update(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, e)
}

// HandleDelete removes an election and its ballots.
//
// HTTP: DELETE /api/elections/{id}
func (h *ElectionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.elections.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleMyVotes lists the elections the caller has voted in.
//
// HTTP: GET /api/me/votes
func (h *ElectionHandler) HandleMyVotes(w http.ResponseWriter, r *http.Request) {
	viewer, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}

	elections, err := h.elections.VotedElections(r.Context(), viewer.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, elections)
}

// HandleHasVoted reports whether the caller already voted. Elections the
// caller cannot see answer 404.
//
// HTTP: GET /api/elections/{id}/vote
func (h *ElectionHandler) HandleHasVoted(w http.ResponseWriter, r *http.Request) {
	viewer, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}

	electionID := chi.URLParam(r, "id")
	if _, err := h.elections.Get(r.Context(), viewer, electionID); err != nil {
		writeError(w, err)
		return
	}

	voted, err := h.voting.HasVoted(r.Context(), viewer.UserID, electionID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, hasVotedResponse{ElectionID: electionID, HasVoted: voted})
}

// HandleCastVote records the caller's ballot.
//
// HTTP: POST /api/elections/{id}/vote
// REQUEST BODY: {"id":"<candidate id>"} or {"name":"<candidate name>"}
//
// A second cast answers 409 with error "already_voted".
func (h *ElectionHandler) HandleCastVote(w http.ResponseWriter, r *http.Request) {
	viewer, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var ref service.CandidateRef
	if err := decodeJSON(w, r, &ref); err != nil {
		writeError(w, err)
		return
	}

	ballot, err := h.voting.CastVote(r.Context(), viewer.UserID, chi.URLParam(r, "id"), ref)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ballot)
}
