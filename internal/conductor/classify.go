package conductor

import "time"

// timing — результат классификации triggersAt.
type timing int

const (
	// timingNow — отправить сейчас.
	timingNow timing = iota

	// timingStale — момент давно прошёл, dispatch отбрасывается.
	timingStale

	// timingDeferred — слишком рано, ставится trigger.
	timingDeferred
)

func (t timing) String() string {
	switch t {
	case timingStale:
		return "stale"
	case timingDeferred:
		return "deferred"
	default:
		return "now"
	}
}

// classify сравнивает triggersAt с now с допуском gap.
//
//	triggersAt ≤ now−gap          — stale
//	nil или (now−gap, now+gap]    — now
//	triggersAt > now+gap          — deferred
func classify(triggersAt *time.Time, now time.Time, gap time.Duration) timing {
	if triggersAt == nil {
		return timingNow
	}
	if !triggersAt.After(now.Add(-gap)) {
		return timingStale
	}
	if triggersAt.After(now.Add(gap)) {
		return timingDeferred
	}
	return timingNow
}
