package ref

import "fmt"

// LoadState represents the load lifecycle of a file reference.
type LoadState string

const (
	StateNotLoaded LoadState = "not_loaded"
	StateLoading   LoadState = "loading"
	StateLoaded    LoadState = "loaded"
	StateStale     LoadState = "stale"
	StateMissing   LoadState = "missing"
	StateError     LoadState = "error"
)

// Event drives a load-state transition.
type Event string

const (
	EventLoad           Event = "load"
	EventLoadSucceeded  Event = "load_succeeded"
	EventLoadFailed     Event = "load_failed"
	EventExternalChange Event = "external_change"
	EventAbsent         Event = "absent"
	EventRediscovered   Event = "rediscovered"
	EventUnload         Event = "unload"
	EventForceReset     Event = "force_reset"
)

var allStates = []LoadState{
	StateNotLoaded,
	StateLoading,
	StateLoaded,
	StateStale,
	StateMissing,
	StateError,
}

var allEvents = []Event{
	EventLoad,
	EventLoadSucceeded,
	EventLoadFailed,
	EventExternalChange,
	EventAbsent,
	EventRediscovered,
	EventUnload,
	EventForceReset,
}

// AllStates returns the ordered list of known load states.
func AllStates() []LoadState {
	cp := make([]LoadState, len(allStates))
	copy(cp, allStates)
	return cp
}

// AllEvents returns the ordered list of known transition events.
func AllEvents() []Event {
	cp := make([]Event, len(allEvents))
	copy(cp, allEvents)
	return cp
}

// Transition computes the next load state for a single event. It is the only
// place load-state changes are decided; callers must not assign states ad hoc.
// An invalid (state, event) pair returns the current state and an error.
func Transition(state LoadState, event Event) (LoadState, error) {
	switch event {
	case EventLoad:
		// Reload is permitted from stale and error, not from loaded.
		switch state {
		case StateNotLoaded, StateStale, StateError:
			return StateLoading, nil
		}
	case EventLoadSucceeded:
		if state == StateLoading {
			return StateLoaded, nil
		}
	case EventLoadFailed:
		if state == StateLoading {
			return StateError, nil
		}
	case EventExternalChange:
		if state == StateLoaded {
			return StateStale, nil
		}
	case EventAbsent:
		// An in-flight load is left alone; its read fails on its own terms.
		switch state {
		case StateNotLoaded, StateLoaded, StateStale, StateError:
			return StateMissing, nil
		}
	case EventRediscovered:
		if state == StateMissing {
			return StateNotLoaded, nil
		}
	case EventUnload:
		switch state {
		case StateLoaded, StateStale:
			return StateNotLoaded, nil
		}
	case EventForceReset:
		if state == StateLoading {
			return StateNotLoaded, nil
		}
	default:
		return state, fmt.Errorf("unknown event %q", event)
	}
	return state, fmt.Errorf("invalid transition: %s does not accept %s", state, event)
}

// ParseState converts a stored string into a known LoadState.
func ParseState(value string) (LoadState, bool) {
	state := LoadState(value)
	for _, known := range allStates {
		if state == known {
			return state, true
		}
	}
	return "", false
}
