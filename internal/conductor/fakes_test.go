package conductor

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Courier/internal/domain"
	"github.com/shaiso/Courier/internal/repo"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// testClock — управляемые часы.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{now: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeDispatches — in-memory DispatchStore с правилами переходов DispatchRepo.
type fakeDispatches struct {
	mu    sync.Mutex
	items map[string]*domain.Dispatch
}

func newFakeDispatches() *fakeDispatches {
	return &fakeDispatches{items: make(map[string]*domain.Dispatch)}
}

func (f *fakeDispatches) Upsert(_ context.Context, p domain.DispatchPatch, now time.Time) (*domain.Dispatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.items[p.DispatchID]
	if !ok {
		d = domain.NewDispatch(p, now)
		f.items[p.DispatchID] = d
	} else {
		d.Apply(p, now)
	}
	return clone(d), nil
}

func (f *fakeDispatches) Get(_ context.Context, id string) (*domain.Dispatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.items[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return clone(d), nil
}

func (f *fakeDispatches) UpdateInternal(_ context.Context, id string, u domain.DispatchUpdate, now time.Time) (*domain.Dispatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.items[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	if !u.Allows(d.Status) {
		return nil, repo.ErrInvalidState
	}
	d.ApplyUpdate(u, now)
	return clone(d), nil
}

func (f *fakeDispatches) SetTriggeredID(_ context.Context, id, triggeredID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.items[id]
	if !ok {
		return repo.ErrNotFound
	}
	d.TriggeredID = triggeredID
	return nil
}

func (f *fakeDispatches) ListBySender(_ context.Context, sender string) ([]domain.Dispatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Dispatch{}
	for _, d := range f.items {
		if d.SenderClientID == sender {
			out = append(out, *clone(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DispatchID < out[j].DispatchID })
	return out, nil
}

func (f *fakeDispatches) ListBySenderProjected(ctx context.Context, sender string, fields []string) ([]map[string]any, error) {
	for _, field := range fields {
		if _, ok := domain.DispatchFields[field]; !ok {
			return nil, repo.ErrUnknownField
		}
	}
	list, _ := f.ListBySender(ctx, sender)
	out := make([]map[string]any, 0, len(list))
	for _, d := range list {
		row := map[string]any{}
		for _, field := range fields {
			switch field {
			case "dispatchId":
				row[field] = d.DispatchID
			case "status":
				row[field] = string(d.Status)
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeDispatches) DeleteByRecipient(_ context.Context, recipient string) ([]domain.Dispatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Dispatch{}
	for id, d := range f.items {
		if d.RecipientClientID == recipient {
			out = append(out, *clone(d))
			delete(f.items, id)
		}
	}
	return out, nil
}

func (f *fakeDispatches) ClaimStalled(_ context.Context, now, stalledBefore time.Time, maxRetries, limit int) ([]domain.Dispatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var stalled []*domain.Dispatch
	for _, d := range f.items {
		if d.Status != domain.DispatchStatusAcquired && d.Status != domain.DispatchStatusError {
			continue
		}
		if d.UpdatedAt.After(stalledBefore) || d.RetryCount > maxRetries {
			continue
		}
		stalled = append(stalled, d)
	}
	sort.Slice(stalled, func(i, j int) bool { return stalled[i].UpdatedAt.Before(stalled[j].UpdatedAt) })
	if len(stalled) > limit {
		stalled = stalled[:limit]
	}
	out := make([]domain.Dispatch, 0, len(stalled))
	for _, d := range stalled {
		d.Status = domain.DispatchStatusAcquired
		d.UpdatedAt = now
		out = append(out, *clone(d))
	}
	return out, nil
}

// put подменяет состояние dispatch напрямую, минуя переходы.
func (f *fakeDispatches) put(d domain.Dispatch) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[d.DispatchID] = clone(&d)
}

func (f *fakeDispatches) snapshot(id string) *domain.Dispatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.items[id]
	if !ok {
		return nil
	}
	return clone(d)
}

func clone(d *domain.Dispatch) *domain.Dispatch {
	c := *d
	c.FailureReasons = append([]domain.FailureReason(nil), d.FailureReasons...)
	return &c
}

// fakeTriggers — in-memory TriggerStore, ключ — dispatchID.
type fakeTriggers struct {
	mu    sync.Mutex
	items map[string]domain.Trigger
}

func newFakeTriggers() *fakeTriggers {
	return &fakeTriggers{items: make(map[string]domain.Trigger)}
}

func (f *fakeTriggers) Upsert(_ context.Context, id string, expireAt time.Time) (*domain.Trigger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tr, ok := f.items[id]
	if !ok {
		tr = domain.Trigger{DispatchID: id, TriggeredID: uuid.NewString()}
	}
	tr.ExpireAt = expireAt
	f.items[id] = tr
	return &tr, nil
}

func (f *fakeTriggers) Get(_ context.Context, id string) (*domain.Trigger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tr, ok := f.items[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &tr, nil
}

func (f *fakeTriggers) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, id)
	return nil
}

func (f *fakeTriggers) ClaimExpired(_ context.Context, now time.Time, limit int) ([]domain.Trigger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Trigger
	for id, tr := range f.items {
		if len(out) >= limit {
			break
		}
		if !tr.ExpireAt.After(now) {
			out = append(out, tr)
			delete(f.items, id)
		}
	}
	return out, nil
}

func (f *fakeTriggers) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

// fakeSettings — in-memory SettingsStore с частичным обновлением.
type fakeSettings struct {
	mu    sync.Mutex
	items map[string]domain.ClientSettings
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{items: make(map[string]domain.ClientSettings)}
}

func (f *fakeSettings) Get(_ context.Context, id string) (*domain.ClientSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.items[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &s, nil
}

func (f *fakeSettings) Upsert(_ context.Context, p domain.ClientSettingsPatch) (*domain.ClientSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.items[p.ID]
	s.Apply(p)
	f.items[p.ID] = s
	return &s, nil
}

func (f *fakeSettings) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, id)
	return nil
}

var errProviderDown = errors.New("provider unavailable")

// fakeSender падает failFirst раз, затем отвечает успехом.
// failFirst < 0 — падает всегда.
type fakeSender struct {
	mu         sync.Mutex
	failFirst  int
	calls      int
	recipients []*domain.ClientSettings
}

func (f *fakeSender) Send(_ context.Context, d *domain.Dispatch, recipient, _ *domain.ClientSettings) (*domain.ProviderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.recipients = append(f.recipients, recipient)
	if f.failFirst < 0 || f.calls <= f.failFirst {
		return nil, errProviderDown
	}
	return &domain.ProviderResult{Provider: "fake", ID: "p-" + d.DispatchID}, nil
}

func (f *fakeSender) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
