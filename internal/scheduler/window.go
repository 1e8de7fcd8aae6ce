package scheduler

import "time"

// Window — окно, в котором регистрируются таймеры.
//
// Событие с моментом start получает таймер, только если
// now+AlertBefore ≤ start ≤ now+MaxGap. Всё, что дальше, найдёт
// следующая регидратация; всё, что ближе, уже опоздало.
type Window struct {
	AlertBefore time.Duration
	MaxGap      time.Duration
}

// DefaultWindow — 30 минут до начала, горизонт 3 часа.
var DefaultWindow = Window{
	AlertBefore: 30 * time.Minute,
	MaxGap:      3 * time.Hour,
}

// Contains проверяет, попадает ли start в окно относительно now.
func (w Window) Contains(start, now time.Time) bool {
	return !start.Before(now.Add(w.AlertBefore)) && !start.After(now.Add(w.MaxGap))
}

// Bounds возвращает границы окна для выборки из БД.
func (w Window) Bounds(now time.Time) (from, to time.Time) {
	return now.Add(w.AlertBefore), now.Add(w.MaxGap)
}
