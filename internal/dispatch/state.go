package dispatch

import "fmt"

// State is a dispatcher lifecycle stage
type State int32

const (
	StateIdle State = iota
	StateDispatching
	StateAwaitingCompletion
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDispatching:
		return "dispatching"
	case StateAwaitingCompletion:
		return "awaiting_completion"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Measure selects what the reported elapsed time covers
type Measure string

const (
	// MeasureCompletion stops the clock once every unit has finished
	MeasureCompletion Measure = "completion"
	// MeasureDispatch stops the clock right after the launch loop
	MeasureDispatch Measure = "dispatch"
)

// ParseMeasure validates a measure mode name
func ParseMeasure(s string) (Measure, error) {
	switch Measure(s) {
	case MeasureCompletion, "":
		return MeasureCompletion, nil
	case MeasureDispatch:
		return MeasureDispatch, nil
	}
	return "", fmt.Errorf("unknown measure mode %q (want completion or dispatch)", s)
}
