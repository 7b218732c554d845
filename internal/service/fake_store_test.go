package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sakif/campus-ballot/internal/apperror"
	"github.com/sakif/campus-ballot/internal/model"
	"github.com/sakif/campus-ballot/internal/repository"
)

// =========================================================================
// FAKE STORE
// =========================================================================
//
// fakeStore is a hand-written, in-memory repository.Store. It mirrors the
// real stores' contracts (NotFound, Conflict, AlreadyVoted decided under
// one lock, a change feed) so services can be tested without SQLite.
//
// failures injects errors: each call to a method named in the map pops the
// first queued error and returns it instead of doing the work.

var _ repository.Store = (*fakeStore)(nil)

type fakeStore struct {
	mu        sync.Mutex
	nextID    int
	users     map[string]model.User
	elections map[string]model.Election
	order     []string // election IDs in creation order
	ballots   []model.Ballot
	subs      []chan model.Change
	failures  map[string][]error
	calls     map[string]int
	clock     func() time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     make(map[string]model.User),
		elections: make(map[string]model.Election),
		failures:  make(map[string][]error),
		calls:     make(map[string]int),
		clock:     func() time.Time { return t0 },
	}
}

// failNext queues errs for the next calls to method.
func (f *fakeStore) failNext(method string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method] = append(f.failures[method], errs...)
}

func (f *fakeStore) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// enter records the call and returns a queued failure, if any. f.mu must
// be held.
func (f *fakeStore) enter(method string) error {
	f.calls[method]++
	if q := f.failures[method]; len(q) > 0 {
		f.failures[method] = q[1:]
		return q[0]
	}
	return nil
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeStore) publish(c model.Change) {
	for _, ch := range f.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

// ---- users ----

func (f *fakeStore) CreateUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateUser"); err != nil {
		return err
	}
	for _, existing := range f.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return apperror.Conflict("user", u.Email)
		}
	}
	u.ID = f.id("user")
	u.CreatedAt, u.UpdatedAt = f.clock(), f.clock()
	f.users[u.ID] = *u
	f.publish(model.Change{Collection: model.CollectionUsers, Op: model.ChangeInsert, ID: u.ID})
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetUserByID"); err != nil {
		return nil, err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return &u, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetUserByEmail"); err != nil {
		return nil, err
	}
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeStore) ListUsers(_ context.Context, filter repository.UserFilter) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListUsers"); err != nil {
		return nil, err
	}
	out := []model.User{}
	for _, u := range f.users {
		if filter.UserType != "" && u.UserType != filter.UserType {
			continue
		}
		if filter.Status != "" && u.Status != filter.Status {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) UpdateUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateUser"); err != nil {
		return err
	}
	if _, ok := f.users[u.ID]; !ok {
		return apperror.NotFound("user", u.ID)
	}
	u.UpdatedAt = f.clock()
	f.users[u.ID] = *u
	f.publish(model.Change{Collection: model.CollectionUsers, Op: model.ChangeUpdate, ID: u.ID})
	return nil
}

func (f *fakeStore) DeleteUser(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteUser"); err != nil {
		return err
	}
	if _, ok := f.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	delete(f.users, id)
	f.publish(model.Change{Collection: model.CollectionUsers, Op: model.ChangeDelete, ID: id})
	return nil
}

// ---- elections ----

func (f *fakeStore) CreateElection(_ context.Context, e *model.Election) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateElection"); err != nil {
		return err
	}
	e.ID = f.id("election")
	e.CreatedAt, e.UpdatedAt = f.clock(), f.clock()
	for i := range e.Candidates {
		if e.Candidates[i].ID == "" {
			e.Candidates[i].ID = f.id("cand")
		}
	}
	f.elections[e.ID] = cloneElection(*e)
	f.order = append(f.order, e.ID)
	f.publish(model.Change{Collection: model.CollectionElections, Op: model.ChangeInsert, ID: e.ID, ElectionID: e.ID})
	return nil
}

func (f *fakeStore) GetElectionByID(_ context.Context, id string) (*model.Election, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetElectionByID"); err != nil {
		return nil, err
	}
	e, ok := f.elections[id]
	if !ok {
		return nil, apperror.NotFound("election", id)
	}
	e = cloneElection(e)
	return &e, nil
}

func (f *fakeStore) ListElections(_ context.Context, filter repository.ElectionFilter) ([]model.Election, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListElections"); err != nil {
		return nil, err
	}
	var ids map[string]bool
	if filter.IDs != nil {
		ids = make(map[string]bool, len(filter.IDs))
		for _, id := range filter.IDs {
			ids[id] = true
		}
	}
	out := []model.Election{}
	for i := len(f.order) - 1; i >= 0; i-- {
		e, ok := f.elections[f.order[i]]
		if !ok {
			continue
		}
		if filter.AdminID != "" && e.AdminID != filter.AdminID {
			continue
		}
		if ids != nil && !ids[e.ID] {
			continue
		}
		out = append(out, cloneElection(e))
	}
	return out, nil
}

func (f *fakeStore) UpdateElection(_ context.Context, e *model.Election) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateElection"); err != nil {
		return err
	}
	if _, ok := f.elections[e.ID]; !ok {
		return apperror.NotFound("election", e.ID)
	}
	e.UpdatedAt = f.clock()
	f.elections[e.ID] = cloneElection(*e)
	f.publish(model.Change{Collection: model.CollectionElections, Op: model.ChangeUpdate, ID: e.ID, ElectionID: e.ID})
	return nil
}

func (f *fakeStore) DeleteElection(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteElection"); err != nil {
		return err
	}
	if _, ok := f.elections[id]; !ok {
		return apperror.NotFound("election", id)
	}
	delete(f.elections, id)
	kept := f.ballots[:0]
	for _, b := range f.ballots {
		if b.ElectionID != id {
			kept = append(kept, b)
		}
	}
	f.ballots = kept
	f.publish(model.Change{Collection: model.CollectionElections, Op: model.ChangeDelete, ID: id, ElectionID: id})
	return nil
}

// ---- ballots ----

func (f *fakeStore) InsertBallot(_ context.Context, b *model.Ballot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("InsertBallot"); err != nil {
		return err
	}
	if _, ok := f.elections[b.ElectionID]; !ok {
		return apperror.NotFound("election", b.ElectionID)
	}
	for _, existing := range f.ballots {
		if existing.UserID == b.UserID && existing.ElectionID == b.ElectionID {
			return apperror.AlreadyVoted(b.UserID, b.ElectionID)
		}
	}
	b.ID = f.id("ballot")
	b.CastAt = f.clock()
	f.ballots = append(f.ballots, *b)
	f.publish(model.Change{Collection: model.CollectionBallots, Op: model.ChangeInsert, ID: b.ID, ElectionID: b.ElectionID})
	return nil
}

// addBallot stores a ballot as-is, bypassing every check. Tests use it to
// plant ballots whose snapshot no longer matches the roster.
func (f *fakeStore) addBallot(b model.Ballot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b.ID = f.id("ballot")
	f.ballots = append(f.ballots, b)
}

func (f *fakeStore) HasVoted(_ context.Context, userID, electionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("HasVoted"); err != nil {
		return false, err
	}
	for _, b := range f.ballots {
		if b.UserID == userID && b.ElectionID == electionID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) ListBallots(_ context.Context, filter repository.BallotFilter) ([]model.Ballot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListBallots"); err != nil {
		return nil, err
	}
	return f.matchBallots(filter), nil
}

func (f *fakeStore) CountBallots(_ context.Context, filter repository.BallotFilter) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CountBallots"); err != nil {
		return 0, err
	}
	return len(f.matchBallots(filter)), nil
}

func (f *fakeStore) matchBallots(filter repository.BallotFilter) []model.Ballot {
	out := []model.Ballot{}
	for _, b := range f.ballots {
		if filter.ElectionID != "" && b.ElectionID != filter.ElectionID {
			continue
		}
		if filter.UserID != "" && b.UserID != filter.UserID {
			continue
		}
		out = append(out, b)
	}
	return out
}

// ---- change feed ----

func (f *fakeStore) Changes(ctx context.Context) (<-chan model.Change, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Changes"); err != nil {
		return nil, err
	}
	ch := make(chan model.Change, 64)
	f.subs = append(f.subs, ch)
	go func() {
		<-ctx.Done()
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, s := range f.subs {
			if s == ch {
				f.subs = append(f.subs[:i], f.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}()
	return ch, nil
}

func (f *fakeStore) Close() error { return nil }

func cloneElection(e model.Election) model.Election {
	e.Candidates = append([]model.Candidate(nil), e.Candidates...)
	return e
}

// =========================================================================
// SHARED FIXTURES
// =========================================================================

// t0 is the pinned "now" for service tests.
var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testOptions() Options {
	return Options{
		StoreTimeout:   time.Second,
		Clock:          func() time.Time { return t0 },
		ResyncInterval: time.Hour,
	}
}

func seedUser(t *testing.T, f *fakeStore, userType model.UserType, faculty string) *model.User {
	t.Helper()
	u := &model.User{
		FullName: "Test " + string(userType),
		Email:    fmt.Sprintf("%s-%d@campus.edu", userType, len(f.users)+1),
		UserType: userType,
		Faculty:  faculty,
		Status:   model.UserStatusApproved,
	}
	if err := f.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("seeding user: %v", err)
	}
	return u
}

// seedElection stores an election running from start to end relative to t0.
func seedElection(t *testing.T, f *fakeStore, faculty string, start, end time.Duration, names ...string) *model.Election {
	t.Helper()
	e := &model.Election{
		ElectionName: "Election " + strings.Join(names, "/"),
		Faculty:      faculty,
		StartDate:    t0.Add(start),
		EndDate:      t0.Add(end),
		AdminID:      "admin-0",
	}
	for _, n := range names {
		e.Candidates = append(e.Candidates, model.Candidate{Name: n})
	}
	if err := f.CreateElection(context.Background(), e); err != nil {
		t.Fatalf("seeding election: %v", err)
	}
	return e
}
