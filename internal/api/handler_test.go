package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shaiso/Courier/internal/domain"
	"github.com/shaiso/Courier/internal/mq"
	"github.com/shaiso/Courier/internal/repo"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeService struct {
	dispatches map[string]domain.Dispatch
	triggers   map[string]domain.Trigger
	settings   map[string]domain.ClientSettings
	fields     []string
}

func newFakeService() *fakeService {
	return &fakeService{
		dispatches: map[string]domain.Dispatch{},
		triggers:   map[string]domain.Trigger{},
		settings:   map[string]domain.ClientSettings{},
	}
}

func (f *fakeService) GetDispatch(_ context.Context, id string) (*domain.Dispatch, error) {
	d, ok := f.dispatches[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &d, nil
}

func (f *fakeService) ListDispatchesBySender(_ context.Context, sender string) ([]domain.Dispatch, error) {
	out := []domain.Dispatch{}
	for _, d := range f.dispatches {
		if d.SenderClientID == sender {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeService) ProjectDispatchesBySender(_ context.Context, _ string, fields []string) ([]map[string]any, error) {
	f.fields = fields
	for _, field := range fields {
		if _, ok := domain.DispatchFields[field]; !ok {
			return nil, repo.ErrUnknownField
		}
	}
	return []map[string]any{{"dispatchId": "d1"}}, nil
}

func (f *fakeService) DeleteClientDispatches(_ context.Context, recipient string) ([]domain.Dispatch, error) {
	out := []domain.Dispatch{}
	for id, d := range f.dispatches {
		if d.RecipientClientID == recipient {
			out = append(out, d)
			delete(f.dispatches, id)
		}
	}
	return out, nil
}

func (f *fakeService) CancelDispatch(_ context.Context, id string) error {
	d, ok := f.dispatches[id]
	if !ok {
		return repo.ErrNotFound
	}
	if d.Status != domain.DispatchStatusReceived {
		return repo.ErrInvalidState
	}
	d.Status = domain.DispatchStatusCanceled
	f.dispatches[id] = d
	return nil
}

func (f *fakeService) GetTrigger(_ context.Context, id string) (*domain.Trigger, error) {
	tr, ok := f.triggers[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &tr, nil
}

func (f *fakeService) GetClientSettings(_ context.Context, id string) (*domain.ClientSettings, error) {
	s, ok := f.settings[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &s, nil
}

func (f *fakeService) UpdateClientSettings(_ context.Context, p domain.ClientSettingsPatch) (*domain.ClientSettings, error) {
	s := f.settings[p.ID]
	s.Apply(p)
	f.settings[p.ID] = s
	return &s, nil
}

func (f *fakeService) DeleteClientSettings(_ context.Context, id string) error {
	delete(f.settings, id)
	return nil
}

type fakeLeases map[domain.LeaderType]domain.LeaderLease

func (f fakeLeases) Get(_ context.Context, lt domain.LeaderType) (*domain.LeaderLease, error) {
	l, ok := f[lt]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &l, nil
}

type published struct {
	kind    string
	msgType mq.MessageType
}

type fakePublisher struct {
	sent []published
}

func (f *fakePublisher) PublishConductor(_ context.Context, t mq.MessageType, _ any) error {
	f.sent = append(f.sent, published{kind: "conductor", msgType: t})
	return nil
}

func (f *fakePublisher) PublishEvent(_ context.Context, t mq.MessageType, _ any) error {
	f.sent = append(f.sent, published{kind: "event", msgType: t})
	return nil
}

type apiHarness struct {
	svc *fakeService
	pub *fakePublisher
	mux *http.ServeMux
}

func newAPIHarness() *apiHarness {
	h := &apiHarness{svc: newFakeService(), pub: &fakePublisher{}, mux: http.NewServeMux()}
	leases := fakeLeases{
		domain.LeaderTypeAppointment: {LeaderType: domain.LeaderTypeAppointment, OwnerID: "r1", UpdatedAt: testNow.Add(-time.Minute)},
		domain.LeaderTypeMember:      {LeaderType: domain.LeaderTypeMember, OwnerID: "r2", UpdatedAt: testNow.Add(-time.Hour)},
	}
	NewHandler(Config{
		Dispatches: h.svc,
		Leases:     leases,
		Publisher:  h.pub,
		LeaseTTL:   3 * time.Minute,
		Now:        func() time.Time { return testNow },
	}).RegisterRoutes(h.mux)
	return h
}

func (h *apiHarness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, req)
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var resp struct {
		Data T `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.Data
}

func TestGetDispatch(t *testing.T) {
	h := newAPIHarness()
	h.svc.dispatches["d1"] = domain.Dispatch{DispatchID: "d1", Status: domain.DispatchStatusDone, RetryCount: 2}

	rec := h.do(t, http.MethodGet, "/api/v1/dispatches/d1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	d := decodeData[DispatchResponse](t, rec)
	if d.DispatchID != "d1" || d.Status != domain.DispatchStatusDone || d.RetryCount != 2 {
		t.Errorf("dispatch = %+v", d)
	}
	if d.FailureReasons == nil {
		t.Error("failureReasons should be an empty list, not null")
	}

	rec = h.do(t, http.MethodGet, "/api/v1/dispatches/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing: status = %d, want 404", rec.Code)
	}
}

func TestListDispatches(t *testing.T) {
	h := newAPIHarness()
	h.svc.dispatches["d1"] = domain.Dispatch{DispatchID: "d1", SenderClientID: "u1"}
	h.svc.dispatches["d2"] = domain.Dispatch{DispatchID: "d2", SenderClientID: "u2"}

	rec := h.do(t, http.MethodGet, "/api/v1/dispatches", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("no sender: status = %d, want 400", rec.Code)
	}

	rec = h.do(t, http.MethodGet, "/api/v1/dispatches?sender=u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	list := decodeData[[]DispatchResponse](t, rec)
	if len(list) != 1 || list[0].DispatchID != "d1" {
		t.Errorf("list = %+v", list)
	}

	rec = h.do(t, http.MethodGet, "/api/v1/dispatches?sender=u1&fields=dispatchId,%20status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("projection: status = %d, want 200", rec.Code)
	}
	if len(h.svc.fields) != 2 || h.svc.fields[1] != "status" {
		t.Errorf("fields = %v", h.svc.fields)
	}

	rec = h.do(t, http.MethodGet, "/api/v1/dispatches?sender=u1&fields=password", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown field: status = %d, want 400", rec.Code)
	}
}

func TestCancelDispatch(t *testing.T) {
	h := newAPIHarness()
	h.svc.dispatches["d1"] = domain.Dispatch{DispatchID: "d1", Status: domain.DispatchStatusReceived}
	h.svc.dispatches["d2"] = domain.Dispatch{DispatchID: "d2", Status: domain.DispatchStatusDone}

	rec := h.do(t, http.MethodPost, "/api/v1/dispatches/d1/cancel", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if d := decodeData[DispatchResponse](t, rec); d.Status != domain.DispatchStatusCanceled {
		t.Errorf("status = %s, want canceled", d.Status)
	}

	rec = h.do(t, http.MethodPost, "/api/v1/dispatches/d2/cancel", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("done: status = %d, want 422", rec.Code)
	}

	rec = h.do(t, http.MethodPost, "/api/v1/dispatches/nope/cancel", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing: status = %d, want 404", rec.Code)
	}
}

func TestDeleteClientDispatches(t *testing.T) {
	h := newAPIHarness()
	h.svc.dispatches["d1"] = domain.Dispatch{DispatchID: "d1", RecipientClientID: "m1"}

	rec := h.do(t, http.MethodDelete, "/api/v1/clients/m1/dispatches", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if resp := decodeData[DeleteDispatchesResponse](t, rec); resp.Deleted != 1 {
		t.Errorf("deleted = %d, want 1", resp.Deleted)
	}

	rec = h.do(t, http.MethodDelete, "/api/v1/clients/m1/dispatches", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("second delete: status = %d, want 200", rec.Code)
	}
	if resp := decodeData[DeleteDispatchesResponse](t, rec); resp.Deleted != 0 || resp.DispatchIDs == nil {
		t.Errorf("second delete = %+v, want empty", resp)
	}
}

func TestSubmitDispatch(t *testing.T) {
	h := newAPIHarness()

	rec := h.do(t, http.MethodPost, "/api/v1/dispatches", map[string]any{"dispatchId": "d9"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if len(h.pub.sent) != 1 || h.pub.sent[0].msgType != mq.TypeCreateDispatch || h.pub.sent[0].kind != "conductor" {
		t.Errorf("published = %+v", h.pub.sent)
	}

	rec = h.do(t, http.MethodPost, "/api/v1/dispatches", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("no id: status = %d, want 400", rec.Code)
	}
}

func TestGetTrigger(t *testing.T) {
	h := newAPIHarness()
	h.svc.triggers["d1"] = domain.Trigger{DispatchID: "d1", ExpireAt: testNow, TriggeredID: "t1"}

	rec := h.do(t, http.MethodGet, "/api/v1/triggers/d1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if tr := decodeData[domain.Trigger](t, rec); tr.TriggeredID != "t1" {
		t.Errorf("trigger = %+v", tr)
	}
}

func TestGetLease(t *testing.T) {
	h := newAPIHarness()

	rec := h.do(t, http.MethodGet, "/api/v1/leases/appointment", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if l := decodeData[LeaseResponse](t, rec); l.OwnerID != "r1" || l.Expired {
		t.Errorf("lease = %+v, want live lease of r1", l)
	}

	rec = h.do(t, http.MethodGet, "/api/v1/leases/member", nil)
	if l := decodeData[LeaseResponse](t, rec); !l.Expired {
		t.Errorf("lease = %+v, want expired", l)
	}

	rec = h.do(t, http.MethodGet, "/api/v1/leases/unknown", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown: status = %d, want 404", rec.Code)
	}
}

func TestClientSettings(t *testing.T) {
	h := newAPIHarness()

	rec := h.do(t, http.MethodPut, "/api/v1/client-settings/c1", map[string]any{"phone": "+1555", "orgName": "acme"})
	if rec.Code != http.StatusOK {
		t.Fatalf("put: status = %d, want 200", rec.Code)
	}
	h.do(t, http.MethodPut, "/api/v1/client-settings/c1", map[string]any{"firstName": "Ann"})

	rec = h.do(t, http.MethodGet, "/api/v1/client-settings/c1", nil)
	s := decodeData[domain.ClientSettings](t, rec)
	if s.ID != "c1" || s.Phone != "+1555" || s.OrgName != "acme" || s.FirstName != "Ann" {
		t.Errorf("settings = %+v", s)
	}

	rec = h.do(t, http.MethodDelete, "/api/v1/client-settings/c1", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete: status = %d, want 204", rec.Code)
	}
	rec = h.do(t, http.MethodGet, "/api/v1/client-settings/c1", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("after delete: status = %d, want 404", rec.Code)
	}
}

func TestPublishEvent(t *testing.T) {
	h := newAPIHarness()

	rec := h.do(t, http.MethodPost, "/api/v1/events", map[string]any{
		"type":    "appointment.scheduled",
		"payload": map[string]any{"id": "a1"},
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if len(h.pub.sent) != 1 || h.pub.sent[0].kind != "event" {
		t.Errorf("published = %+v", h.pub.sent)
	}

	rec = h.do(t, http.MethodPost, "/api/v1/events", map[string]any{"type": "createDispatch", "payload": map[string]any{}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("conductor command via events: status = %d, want 400", rec.Code)
	}
}

func TestRecovery(t *testing.T) {
	handler := Recovery(discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
