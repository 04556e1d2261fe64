package forecast

import "log"

// State is the progress of one station forecast request.
type State int

const (
	Idle State = iota
	ResolvingCycle
	AcquiringFiles
	Assembling
	Extracting
	Done
	Unavailable
	Error
)

var stateNames = [...]string{
	Idle:           "idle",
	ResolvingCycle: "resolving_cycle",
	AcquiringFiles: "acquiring_files",
	Assembling:     "assembling",
	Extracting:     "extracting",
	Done:           "done",
	Unavailable:    "unavailable",
	Error:          "error",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Done || s == Unavailable || s == Error
}

// CanTransition reports whether next may follow s.
func (s State) CanTransition(next State) bool {
	if s.Terminal() {
		return false
	}
	if next == Error {
		return true
	}
	switch s {
	case Idle:
		return next == ResolvingCycle
	case ResolvingCycle:
		return next == AcquiringFiles || next == Unavailable
	case AcquiringFiles:
		return next == Assembling
	case Assembling:
		return next == Extracting || next == Unavailable
	case Extracting:
		return next == Done
	}
	return false
}

// TransitionFunc observes state changes of forecast requests.
type TransitionFunc func(product, stationID string, from, to State)

type request struct {
	product string
	station string
	state   State
	hook    TransitionFunc
}

func (r *request) to(next State) {
	if !r.state.CanTransition(next) {
		log.Printf("WARN: forecast: %s %s: illegal transition %s -> %s", r.product, r.station, r.state, next)
		return
	}
	prev := r.state
	r.state = next
	if r.hook != nil {
		r.hook(r.product, r.station, prev, next)
	}
}
