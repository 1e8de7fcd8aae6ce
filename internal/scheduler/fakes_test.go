package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/shaiso/Courier/internal/domain"
	"github.com/shaiso/Courier/internal/repo"
)

// fakeLeases — in-memory аренда с той же семантикой CAS, что и LeaseRepo.
type fakeLeases struct {
	mu     sync.Mutex
	leases map[domain.LeaderType]domain.LeaderLease
	getErr error
}

func newFakeLeases() *fakeLeases {
	return &fakeLeases{leases: make(map[domain.LeaderType]domain.LeaderLease)}
}

func (f *fakeLeases) Get(_ context.Context, lt domain.LeaderType) (*domain.LeaderLease, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	l, ok := f.leases[lt]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &l, nil
}

func (f *fakeLeases) Claim(_ context.Context, lt domain.LeaderType, owner string, now time.Time, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var cutoff time.Time
	if ttl > 0 {
		cutoff = now.Add(-ttl)
	}
	cur, ok := f.leases[lt]
	if !ok || cur.OwnerID == owner || cur.UpdatedAt.Before(cutoff) {
		f.leases[lt] = domain.LeaderLease{LeaderType: lt, OwnerID: owner, UpdatedAt: now}
		return true, nil
	}
	return false, nil
}

func (f *fakeLeases) Release(_ context.Context, lt domain.LeaderType, owner string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.leases[lt]; ok && cur.OwnerID == owner {
		delete(f.leases, lt)
	}
	return nil
}

func (f *fakeLeases) set(l domain.LeaderLease) {
	f.mu.Lock()
	f.leases[l.LeaderType] = l
	f.mu.Unlock()
}

func (f *fakeLeases) owner(lt domain.LeaderType) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leases[lt].OwnerID
}

type fakeAppointments struct {
	mu    sync.Mutex
	items []domain.Appointment
	calls int
}

func (f *fakeAppointments) ListScheduledBetween(_ context.Context, from, to time.Time) ([]domain.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	var out []domain.Appointment
	for _, a := range f.items {
		if !a.Start.Before(from) && !a.Start.After(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAppointments) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeFutureNotifies struct {
	mu    sync.Mutex
	items []domain.FutureNotify
	done  []string
}

func (f *fakeFutureNotifies) ListPendingBetween(_ context.Context, from, to time.Time) ([]domain.FutureNotify, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.FutureNotify
	for _, n := range f.items {
		if !n.Metadata.When.Before(from) && !n.Metadata.When.After(to) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeFutureNotifies) MarkDone(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.done = append(f.done, id)
	return nil
}

type fakeMembers struct {
	mu     sync.Mutex
	byID   map[string]domain.Member
	nudged []string
}

func (f *fakeMembers) ListNudgeCandidates(_ context.Context, from, to time.Time) ([]domain.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Member
	for _, m := range f.byID {
		if m.NeedsNudge() && !m.CreatedAt.Before(from) && !m.CreatedAt.After(to) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMembers) GetByID(_ context.Context, id string) (*domain.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &m, nil
}

func (f *fakeMembers) MarkNudged(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nudged = append(f.nudged, id)
	return nil
}

type fakeNotifier struct {
	events chan domain.NotifyEvent
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{events: make(chan domain.NotifyEvent, 16)}
}

func (f *fakeNotifier) Notify(_ context.Context, e domain.NotifyEvent) error {
	f.events <- e
	return nil
}

type fakeLinks struct{}

func (fakeLinks) CommunicationLink(_ context.Context, memberID, userID string) (string, error) {
	return "https://app/chat/" + memberID + "/" + userID, nil
}

type fakeShortener struct{}

func (fakeShortener) Shorten(_ context.Context, url string) (string, error) {
	return "https://sho.rt/" + url[len(url)-2:], nil
}
