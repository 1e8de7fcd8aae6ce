// Package timer — реестр одноразовых отложенных callback'ов в памяти процесса.
//
// Таймеры — производный кэш: всё, что в нём лежит, должно
// восстанавливаться из БД при рестарте или смене лидера.
package timer

import (
	"sort"
	"sync"
	"time"
)

type entry struct {
	timer    *time.Timer
	ver      uint64
	at       time.Time
	onCancel func()
}

// Registry хранит таймеры по ID сущности.
//
// Каждый callback срабатывает не больше одного раза. Callback
// заменённого или удалённого таймера игнорируется по версии.
// Для каждой записи вызывается ровно одно из fn и onCancel.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	ver     uint64
	now     func() time.Time
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// WithClock подменяет источник времени (для тестов).
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Set регистрирует fn на момент at. Существующий таймер с тем же id
// отменяется. Момент в прошлом означает немедленный запуск.
func (r *Registry) Set(id string, at time.Time, fn func()) {
	r.SetCancelable(id, at, fn, nil)
}

// SetCancelable — как Set, но onCancel вызывается, если таймер
// заменён, удалён или очищен до срабатывания.
func (r *Registry) SetCancelable(id string, at time.Time, fn, onCancel func()) {
	r.mu.Lock()
	var dropped func()
	defer func() {
		r.mu.Unlock()
		if dropped != nil {
			dropped()
		}
	}()

	if e, ok := r.entries[id]; ok {
		e.timer.Stop()
		dropped = e.onCancel
	}

	r.ver++
	ver := r.ver
	delay := at.Sub(r.now())
	if delay < 0 {
		delay = 0
	}

	e := &entry{ver: ver, at: at, onCancel: onCancel}
	e.timer = time.AfterFunc(delay, func() {
		r.mu.Lock()
		cur, ok := r.entries[id]
		if !ok || cur.ver != ver {
			// Таймер уже заменён или удалён
			r.mu.Unlock()
			return
		}
		delete(r.entries, id)
		r.mu.Unlock()

		fn()
	})
	r.entries[id] = e
}

// Delete отменяет и удаляет таймер. Отсутствующий id — no-op.
// Возвращает true, если таймер был.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		e.timer.Stop()
		delete(r.entries, id)
	}
	r.mu.Unlock()

	if ok && e.onCancel != nil {
		e.onCancel()
	}
	return ok
}

// Has проверяет, есть ли ожидающий таймер для id.
func (r *Registry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[id]
	return ok
}

// At возвращает момент срабатывания таймера id.
func (r *Registry) At(id string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return time.Time{}, false
	}
	return e.at, true
}

// Len возвращает число ожидающих таймеров.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// IDs возвращает отсортированные ID ожидающих таймеров.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clear отменяет все таймеры.
func (r *Registry) Clear() {
	r.mu.Lock()
	var dropped []func()
	for id, e := range r.entries {
		e.timer.Stop()
		delete(r.entries, id)
		if e.onCancel != nil {
			dropped = append(dropped, e.onCancel)
		}
	}
	r.mu.Unlock()

	for _, fn := range dropped {
		fn()
	}
}
