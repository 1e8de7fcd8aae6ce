package scheduler

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shaiso/Courier/internal/content"
	"github.com/shaiso/Courier/internal/domain"
)

func leaderMemberScheduler(t *testing.T, members *fakeMembers, notifier *fakeNotifier, now func() time.Time) *MemberScheduler {
	t.Helper()
	s := NewMemberScheduler(MemberConfig{
		Base:       BaseConfig{Leases: newFakeLeases(), Now: now},
		NudgeAfter: time.Hour,
		Members:    members,
		Notifier:   notifier,
		Links:      fakeLinks{},
		Shortener:  fakeShortener{},
		Renderer:   content.NewRenderer(),
	})
	if err := s.RunEveryMinute(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	t.Cleanup(s.Timers().Clear)
	return s
}

func TestRegisterNewMemberNudge_Window(t *testing.T) {
	ctx := context.Background()
	s := leaderMemberScheduler(t, &fakeMembers{byID: map[string]domain.Member{}}, newFakeNotifier(), fixedClock(testNow))
	loggedIn := testNow.Add(-time.Minute)

	cases := []struct {
		name   string
		member domain.Member
		want   bool
	}{
		{"due soon", domain.Member{ID: "m1", CreatedAt: testNow.Add(-30 * time.Minute)}, true},
		{"already past", domain.Member{ID: "m2", CreatedAt: testNow.Add(-2 * time.Hour)}, false},
		{"beyond horizon", domain.Member{ID: "m3", CreatedAt: testNow.Add(3 * time.Hour)}, false},
		{"logged in", domain.Member{ID: "m4", CreatedAt: testNow, FirstLoggedInAt: &loggedIn}, false},
	}
	for _, tc := range cases {
		ok, err := s.RegisterNewMemberNudge(ctx, tc.member)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if ok != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, ok, tc.want)
		}
		if s.Timers().Has(tc.member.ID) != tc.want {
			t.Errorf("%s: unexpected timer state", tc.name)
		}
	}

	at, _ := s.Timers().At("m1")
	if want := testNow.Add(30 * time.Minute); !at.Equal(want) {
		t.Errorf("nudge at %v, want %v", at, want)
	}
}

func TestMemberNudge_FiresAndMarks(t *testing.T) {
	created := time.Now().Add(-time.Hour + 20*time.Millisecond)
	members := &fakeMembers{byID: map[string]domain.Member{
		"m1": {ID: "m1", UserID: "u1", FirstName: "Bo", CreatedAt: created},
	}}
	notifier := newFakeNotifier()
	s := leaderMemberScheduler(t, members, notifier, time.Now)

	if !s.Timers().Has("m1") {
		t.Fatal("rehydration should register the candidate")
	}

	select {
	case e := <-notifier.events:
		if e.MemberID != "m1" || !strings.Contains(e.Metadata.Content, "Bo") {
			t.Errorf("unexpected event: %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("nudge did not fire")
	}

	s.deliverer.Wait()
	members.mu.Lock()
	defer members.mu.Unlock()
	if len(members.nudged) != 1 || members.nudged[0] != "m1" {
		t.Errorf("expected m1 marked nudged, got %v", members.nudged)
	}
}

func TestMemberNudge_SkipsLoggedInOnFire(t *testing.T) {
	members := &fakeMembers{byID: map[string]domain.Member{}}
	notifier := newFakeNotifier()
	s := leaderMemberScheduler(t, members, notifier, time.Now)

	m := domain.Member{ID: "m1", UserID: "u1", CreatedAt: time.Now().Add(-time.Hour + 20*time.Millisecond)}
	if ok, _ := s.RegisterNewMemberNudge(context.Background(), m); !ok {
		t.Fatal("expected registration")
	}

	// Member вошёл после регистрации таймера
	loggedIn := time.Now()
	m.FirstLoggedInAt = &loggedIn
	members.mu.Lock()
	members.byID["m1"] = m
	members.mu.Unlock()

	select {
	case e := <-notifier.events:
		t.Errorf("logged-in member should not be nudged: %+v", e)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMemberScheduler_SweepsNudgesEnteringWindow(t *testing.T) {
	ctx := context.Background()
	now := testNow
	// NudgeAfter 1h, горизонт 3h: напоминание через 4h входит в окно через 1h
	members := &fakeMembers{byID: map[string]domain.Member{
		"m1": {ID: "m1", UserID: "u1", CreatedAt: testNow.Add(3 * time.Hour)},
	}}
	s := leaderMemberScheduler(t, members, newFakeNotifier(), func() time.Time { return now })
	if s.Timers().Has("m1") {
		t.Fatal("nudge beyond the horizon should not be armed yet")
	}

	for i := 1; i <= 60; i++ {
		now = testNow.Add(time.Duration(i) * time.Minute)
		if err := s.RunEveryMinute(ctx); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}

	at, ok := s.Timers().At("m1")
	if !ok {
		t.Fatal("nudge entering the window should be armed")
	}
	if want := testNow.Add(4 * time.Hour); !at.Equal(want) {
		t.Errorf("nudge at %v, want %v", at, want)
	}
}
