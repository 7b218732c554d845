package election

import (
	"errors"
	"testing"
	"time"

	"github.com/sakif/campus-ballot/internal/apperror"
	"github.com/sakif/campus-ballot/internal/model"
)

func validElection() *model.Election {
	return &model.Election{
		ElectionName: " SRC President ",
		Faculty:      "all",
		StartDate:    t0,
		EndDate:      t0.Add(7 * 24 * time.Hour),
		Candidates:   []model.Candidate{{Name: "A"}, {Name: "B"}},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(e *model.Election)
		wantErr       bool
		wantMalformed bool
		wantField     string
	}{
		{name: "valid", mutate: func(e *model.Election) {}},
		{name: "start equals end", mutate: func(e *model.Election) { e.EndDate = e.StartDate }},
		{name: "missing name", mutate: func(e *model.Election) { e.ElectionName = "  " }, wantErr: true, wantField: "electionName"},
		{name: "missing faculty", mutate: func(e *model.Election) { e.Faculty = "" }, wantErr: true, wantField: "faculty"},
		{name: "missing dates", mutate: func(e *model.Election) { e.StartDate = time.Time{} }, wantErr: true, wantField: "startDate"},
		{name: "end before start", mutate: func(e *model.Election) { e.EndDate = e.StartDate.Add(-time.Minute) }, wantErr: true, wantMalformed: true, wantField: "endDate"},
		{name: "no candidates", mutate: func(e *model.Election) { e.Candidates = nil }, wantErr: true, wantField: "candidates"},
		{name: "blank candidate", mutate: func(e *model.Election) { e.Candidates[1].Name = " " }, wantErr: true, wantField: "candidates"},
		{name: "duplicate candidate", mutate: func(e *model.Election) { e.Candidates[1].Name = " A" }, wantErr: true, wantMalformed: true, wantField: "candidates"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validElection()
			tt.mutate(e)
			err := Validate(e)

			if !tt.wantErr {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("Validate() error = %v, want ErrValidation", err)
			}
			if got := errors.Is(err, apperror.ErrMalformedElection); got != tt.wantMalformed {
				t.Errorf("errors.Is(ErrMalformedElection) = %v, want %v", got, tt.wantMalformed)
			}
			var appErr *apperror.AppError
			if errors.As(err, &appErr) && appErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", appErr.Field, tt.wantField)
			}
		})
	}
}

func TestValidate_TrimsNames(t *testing.T) {
	e := validElection()
	e.Candidates[0].Name = "  A  "
	e.Candidates[1].Name = "B"
	if err := Validate(e); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if e.ElectionName != "SRC President" {
		t.Errorf("ElectionName = %q, want trimmed", e.ElectionName)
	}
	if e.Candidates[0].Name != "A" {
		t.Errorf("Candidates[0].Name = %q, want %q", e.Candidates[0].Name, "A")
	}
}
