package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shaiso/Courier/internal/content"
	"github.com/shaiso/Courier/internal/domain"
)

var testNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func newTestAppointmentScheduler(leases LeaseStore, appts *fakeAppointments, now func() time.Time) *AppointmentScheduler {
	return NewAppointmentScheduler(AppointmentConfig{
		Base:           BaseConfig{Leases: leases, Now: now},
		Appointments:   appts,
		FutureNotifies: &fakeFutureNotifies{},
		Notifier:       newFakeNotifier(),
		Links:          fakeLinks{},
		Shortener:      fakeShortener{},
		Renderer:       content.NewRenderer(),
	})
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRunEveryMinute_SingleLeader(t *testing.T) {
	ctx := context.Background()
	leases := newFakeLeases()
	a := newTestAppointmentScheduler(leases, &fakeAppointments{}, fixedClock(testNow))
	b := newTestAppointmentScheduler(leases, &fakeAppointments{}, fixedClock(testNow))
	defer a.Timers().Clear()
	defer b.Timers().Clear()

	for i := 0; i < 3; i++ {
		if err := a.RunEveryMinute(ctx); err != nil {
			t.Fatalf("a tick: %v", err)
		}
		if err := b.RunEveryMinute(ctx); err != nil {
			t.Fatalf("b tick: %v", err)
		}
	}

	if a.IsLeader() == b.IsLeader() {
		t.Fatalf("expected exactly one leader, a=%v b=%v", a.IsLeader(), b.IsLeader())
	}
	if got := leases.owner(domain.LeaderTypeAppointment); got != a.Identifier() {
		t.Errorf("expected lease owned by first ticker %s, got %s", a.Identifier(), got)
	}

	alert := AppointmentAlert{ID: "appt-1", MemberID: "m1", UserID: "u1", Start: testNow.Add(time.Hour)}

	if _, err := b.RegisterAppointmentAlert(ctx, alert); !errors.Is(err, ErrNotLeader) {
		t.Errorf("follower should not register timers, got %v", err)
	}
	if b.Timers().Len() != 0 {
		t.Errorf("follower has %d timers", b.Timers().Len())
	}

	ok, err := a.RegisterAppointmentAlert(ctx, alert)
	if err != nil || !ok {
		t.Fatalf("leader register: ok=%v err=%v", ok, err)
	}
	if !a.Timers().Has("appt-1") {
		t.Error("leader should hold the timer")
	}
}

func TestRunEveryMinute_RehydratesOncePerTransition(t *testing.T) {
	ctx := context.Background()
	appts := &fakeAppointments{items: []domain.Appointment{
		{ID: "in", MemberID: "m1", UserID: "u1", Start: testNow.Add(time.Hour)},
		{ID: "too-soon", MemberID: "m1", UserID: "u1", Start: testNow.Add(10 * time.Minute)},
		{ID: "too-far", MemberID: "m1", UserID: "u1", Start: testNow.Add(5 * time.Hour)},
	}}
	s := newTestAppointmentScheduler(newFakeLeases(), appts, fixedClock(testNow))
	defer s.Timers().Clear()

	for i := 0; i < 3; i++ {
		if err := s.RunEveryMinute(ctx); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}

	if appts.callCount() != 1 {
		t.Errorf("expected one rehydration, got %d", appts.callCount())
	}
	ids := s.Timers().IDs()
	if len(ids) != 1 || ids[0] != "in" {
		t.Errorf("expected only in-window timer, got %v", ids)
	}
}

func TestRunEveryMinute_SweepsAppointmentsEnteringWindow(t *testing.T) {
	ctx := context.Background()
	now := testNow
	appts := &fakeAppointments{items: []domain.Appointment{
		{ID: "far", MemberID: "m1", UserID: "u1", Start: testNow.Add(5 * time.Hour), Status: domain.AppointmentStatusScheduled},
	}}
	s := newTestAppointmentScheduler(newFakeLeases(), appts, func() time.Time { return now })
	defer s.Timers().Clear()

	if err := s.RunEveryMinute(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if s.Timers().Has("far") {
		t.Fatal("appointment beyond the horizon should not be armed yet")
	}

	// Горизонт 3h: встреча через 5h входит в окно через 2h
	for i := 1; i < 120; i++ {
		now = testNow.Add(time.Duration(i) * time.Minute)
		if err := s.RunEveryMinute(ctx); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
	if s.Timers().Has("far") {
		t.Fatal("armed before entering the window")
	}

	now = testNow.Add(2 * time.Hour)
	if err := s.RunEveryMinute(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if !s.IsLeader() {
		t.Fatal("leader should keep the lease")
	}
	at, ok := s.Timers().At("far")
	if !ok {
		t.Fatal("appointment entering the window should be armed by the leader")
	}
	if want := testNow.Add(5*time.Hour - DefaultWindow.AlertBefore); !at.Equal(want) {
		t.Errorf("alert at %v, want %v", at, want)
	}
}

func TestRunEveryMinute_SweepPicksUpNewAppointments(t *testing.T) {
	ctx := context.Background()
	now := testNow
	appts := &fakeAppointments{}
	s := newTestAppointmentScheduler(newFakeLeases(), appts, func() time.Time { return now })
	defer s.Timers().Clear()

	if err := s.RunEveryMinute(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	// Встреча появилась в БД без события и попадает в окно между тиками
	appts.mu.Lock()
	appts.items = append(appts.items, domain.Appointment{ID: "late", MemberID: "m1", UserID: "u1", Start: testNow.Add(3*time.Hour + 30*time.Second)})
	appts.mu.Unlock()

	now = testNow.Add(time.Minute)
	if err := s.RunEveryMinute(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if !s.Timers().Has("late") {
		t.Error("appointment in the swept slice should be armed")
	}
}

func TestRunEveryMinute_FollowerRespectsLiveLease(t *testing.T) {
	ctx := context.Background()
	leases := newFakeLeases()
	leases.set(domain.LeaderLease{
		LeaderType: domain.LeaderTypeAppointment,
		OwnerID:    "other",
		UpdatedAt:  testNow.Add(-time.Minute),
	})
	appts := &fakeAppointments{}
	s := newTestAppointmentScheduler(leases, appts, fixedClock(testNow))

	if err := s.RunEveryMinute(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if s.IsLeader() {
		t.Error("should stay follower while lease is alive")
	}
	if appts.callCount() != 0 {
		t.Error("follower must not rehydrate")
	}
}

func TestRunEveryMinute_TakesOverExpiredLease(t *testing.T) {
	ctx := context.Background()
	leases := newFakeLeases()
	leases.set(domain.LeaderLease{
		LeaderType: domain.LeaderTypeAppointment,
		OwnerID:    "crashed",
		UpdatedAt:  testNow.Add(-10 * time.Minute),
	})
	s := newTestAppointmentScheduler(leases, &fakeAppointments{}, fixedClock(testNow))

	if err := s.RunEveryMinute(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if !s.IsLeader() {
		t.Fatal("expired lease should be taken over")
	}
	if got := leases.owner(domain.LeaderTypeAppointment); got != s.Identifier() {
		t.Errorf("lease owner: got %s", got)
	}
}

func TestRunEveryMinute_LosesLeadership(t *testing.T) {
	ctx := context.Background()
	leases := newFakeLeases()
	now := testNow
	s := newTestAppointmentScheduler(leases, &fakeAppointments{}, func() time.Time { return now })
	defer s.Timers().Clear()

	if err := s.RunEveryMinute(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if _, err := s.RegisterAppointmentAlert(ctx, AppointmentAlert{ID: "a1", Start: now.Add(time.Hour)}); err != nil {
		t.Fatalf("register: %v", err)
	}

	// Другая реплика забрала аренду, пока этот лидер висел
	now = now.Add(5 * time.Minute)
	leases.set(domain.LeaderLease{LeaderType: domain.LeaderTypeAppointment, OwnerID: "other", UpdatedAt: now})

	if err := s.RunEveryMinute(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if s.IsLeader() {
		t.Error("should step down when lease is taken")
	}
	if s.Timers().Len() != 0 {
		t.Errorf("timers should be cleared, got %d", s.Timers().Len())
	}
}

func TestRunEveryMinute_LeaseErrorFailsTick(t *testing.T) {
	leases := newFakeLeases()
	leases.getErr = errors.New("db down")
	s := newTestAppointmentScheduler(leases, &fakeAppointments{}, fixedClock(testNow))

	if err := s.RunEveryMinute(context.Background()); err == nil {
		t.Error("expected tick error")
	}
	if s.IsLeader() {
		t.Error("should not become leader on lease error")
	}

	// Следующий тик после восстановления БД проходит
	leases.getErr = nil
	if err := s.RunEveryMinute(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if !s.IsLeader() {
		t.Error("should become leader once lease store recovers")
	}
}

func TestStop_ReleasesLease(t *testing.T) {
	ctx := context.Background()
	leases := newFakeLeases()
	a := newTestAppointmentScheduler(leases, &fakeAppointments{}, fixedClock(testNow))
	b := newTestAppointmentScheduler(leases, &fakeAppointments{}, fixedClock(testNow))

	a.RunEveryMinute(ctx)
	b.RunEveryMinute(ctx)
	a.Stop(ctx)

	if a.IsLeader() {
		t.Error("stopped scheduler should not be leader")
	}
	if err := b.RunEveryMinute(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if !b.IsLeader() {
		t.Error("follower should take over released lease immediately")
	}
}

func TestDeleteTimeout_Idempotent(t *testing.T) {
	s := newTestAppointmentScheduler(newFakeLeases(), &fakeAppointments{}, fixedClock(testNow))
	if s.DeleteTimeout("missing") {
		t.Error("DeleteTimeout of missing id should be no-op")
	}
}

func TestValidateTickSpec(t *testing.T) {
	for _, spec := range []string{"@every 1m", "* * * * *", "*/5 * * * *"} {
		if err := ValidateTickSpec(spec); err != nil {
			t.Errorf("%q: %v", spec, err)
		}
	}
	if err := ValidateTickSpec("every minute"); err == nil {
		t.Error("expected error for invalid spec")
	}
}
