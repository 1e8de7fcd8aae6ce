package domain

import (
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to DispatchStatus
		want     bool
	}{
		{DispatchStatusReceived, DispatchStatusAcquired, true},
		{DispatchStatusReceived, DispatchStatusCanceled, true},
		{DispatchStatusAcquired, DispatchStatusError, true},
		{DispatchStatusError, DispatchStatusAcquired, true},
		{DispatchStatusAcquired, DispatchStatusDone, true},
		{DispatchStatusAcquired, DispatchStatusCanceled, false},
		{DispatchStatusError, DispatchStatusCanceled, false},
		{DispatchStatusDone, DispatchStatusAcquired, false},
		{DispatchStatusDone, DispatchStatusCanceled, false},
		{DispatchStatusCanceled, DispatchStatusAcquired, false},
		{DispatchStatusReceived, DispatchStatus("bogus"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestDispatchUpdate_Allows(t *testing.T) {
	u := DispatchUpdate{Status: DispatchStatusAcquired, From: []DispatchStatus{DispatchStatusReceived}}
	if !u.Allows(DispatchStatusReceived) {
		t.Error("received -> acquired should be allowed")
	}
	if u.Allows(DispatchStatusError) {
		t.Error("From restricts the current status")
	}

	anyFrom := DispatchUpdate{Status: DispatchStatusError}
	if !anyFrom.Allows(DispatchStatusAcquired) {
		t.Error("empty From allows any valid transition")
	}
	if anyFrom.Allows(DispatchStatusDone) {
		t.Error("done is terminal")
	}
}

func TestDispatch_ApplyUpdate(t *testing.T) {
	d := NewDispatch(DispatchPatch{DispatchID: "d1"}, testNow)
	if d.Status != DispatchStatusReceived {
		t.Fatalf("default status = %s, want received", d.Status)
	}

	d.ApplyUpdate(DispatchUpdate{
		Status:        DispatchStatusError,
		FailureReason: &FailureReason{Message: "timeout"},
	}, testNow)
	d.ApplyUpdate(DispatchUpdate{Status: DispatchStatusAcquired}, testNow)

	if d.RetryCount != 1 || len(d.FailureReasons) != 1 {
		t.Errorf("retryCount = %d, failureReasons = %d; want 1/1", d.RetryCount, len(d.FailureReasons))
	}

	later := testNow.Add(time.Minute)
	d.ApplyUpdate(DispatchUpdate{
		Status:         DispatchStatusDone,
		ProviderResult: &ProviderResult{Provider: "sms", ID: "p1"},
	}, later)

	if d.RetryCount != 1 {
		t.Errorf("retryCount changed on success: %d", d.RetryCount)
	}
	if d.SentAt == nil || !d.SentAt.Equal(later) {
		t.Errorf("sentAt = %v, want %v", d.SentAt, later)
	}
	if d.ProviderResult == nil || d.ProviderResult.ID != "p1" {
		t.Errorf("providerResult = %+v", d.ProviderResult)
	}
}

func TestDispatch_ApplyKeepsAbsentFields(t *testing.T) {
	sender := "u1"
	content := "hello"
	d := NewDispatch(DispatchPatch{DispatchID: "d1", SenderClientID: &sender, Content: &content}, testNow)

	at := testNow.Add(time.Hour)
	d.Apply(DispatchPatch{DispatchID: "d1", TriggersAt: &at}, testNow)

	if d.SenderClientID != sender || d.Content != content {
		t.Errorf("absent fields were erased: %+v", d)
	}
	if d.TriggersAt == nil || !d.TriggersAt.Equal(at) {
		t.Errorf("triggersAt = %v, want %v", d.TriggersAt, at)
	}
}

func TestClientSettings_Apply(t *testing.T) {
	phone := "+1555"
	push := true
	s := ClientSettings{}
	s.Apply(ClientSettingsPatch{ID: "c1", Phone: &phone, IsPushNotificationsEnabled: &push})

	name := "Ann"
	s.Apply(ClientSettingsPatch{ID: "c1", FirstName: &name})

	if s.ID != "c1" || s.Phone != phone || !s.IsPushNotificationsEnabled || s.FirstName != name {
		t.Errorf("settings = %+v", s)
	}
}

func TestLeaderLease_IsExpired(t *testing.T) {
	l := &LeaderLease{OwnerID: "r1", UpdatedAt: testNow.Add(-2 * time.Minute)}

	if l.IsExpired(testNow, 3*time.Minute) {
		t.Error("lease renewed 2m ago should be live with ttl 3m")
	}
	if !l.IsExpired(testNow, time.Minute) {
		t.Error("lease renewed 2m ago should be expired with ttl 1m")
	}
	if l.IsExpired(testNow, 0) {
		t.Error("ttl 0 never expires")
	}
	if !l.OwnedBy("r1") || l.OwnedBy("r2") {
		t.Error("OwnedBy mismatch")
	}
}

func TestMember_NeedsNudge(t *testing.T) {
	m := Member{ID: "m1"}
	if !m.NeedsNudge() {
		t.Error("fresh member needs a nudge")
	}
	now := testNow
	m.FirstLoggedInAt = &now
	if m.NeedsNudge() {
		t.Error("logged-in member does not need a nudge")
	}
}

func TestDispatch_ApplyStatusFollowsTransitions(t *testing.T) {
	received := DispatchStatusReceived
	canceled := DispatchStatusCanceled

	d := NewDispatch(DispatchPatch{DispatchID: "d1", Status: &canceled}, testNow)
	if d.Status != DispatchStatusCanceled {
		t.Fatalf("insert status = %s, want canceled", d.Status)
	}
	d.Apply(DispatchPatch{DispatchID: "d1", Status: &received}, testNow)
	if d.Status != DispatchStatusCanceled {
		t.Errorf("canceled dispatch revived to %s", d.Status)
	}

	done := NewDispatch(DispatchPatch{DispatchID: "d2"}, testNow)
	done.ApplyUpdate(DispatchUpdate{Status: DispatchStatusDone}, testNow)
	done.Apply(DispatchPatch{DispatchID: "d2", Status: &received}, testNow)
	if done.Status != DispatchStatusDone {
		t.Errorf("done dispatch moved to %s", done.Status)
	}

	inFlight := NewDispatch(DispatchPatch{DispatchID: "d3"}, testNow)
	inFlight.ApplyUpdate(DispatchUpdate{Status: DispatchStatusAcquired}, testNow)
	inFlight.Apply(DispatchPatch{DispatchID: "d3", Status: &canceled}, testNow)
	if inFlight.Status != DispatchStatusAcquired {
		t.Errorf("acquired dispatch canceled by upsert: %s", inFlight.Status)
	}
}
