package turnip

import "fmt"

// State is a position in the linear build pipeline.
type State int

const (
	StateInit State = iota
	StateDepsChecked
	StateWorkdirReady
	StateSourcesFetched
	StateConfigured
	StateBuilt
	StateLibVerified
	StateModulePackaged
	StateEmulatorPackaged
	StateDone
	StateAborted
)

var stateNames = [...]string{
	StateInit:             "INIT",
	StateDepsChecked:      "DEPS_CHECKED",
	StateWorkdirReady:     "WORKDIR_READY",
	StateSourcesFetched:   "SOURCES_FETCHED",
	StateConfigured:       "CONFIGURED",
	StateBuilt:            "BUILT",
	StateLibVerified:      "LIB_VERIFIED",
	StateModulePackaged:   "MODULE_PACKAGED",
	StateEmulatorPackaged: "EMULATOR_PACKAGED",
	StateDone:             "DONE",
	StateAborted:          "ABORTED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateAborted
}

// isAllowedTransition permits only the next forward state or ABORTED.
func isAllowedTransition(from, to State) bool {
	if from.IsTerminal() {
		return false
	}
	return to == StateAborted || to == from+1
}

// transition validates from -> to against the current state and applies it.
func transition(cur *State, from, to State) error {
	if *cur != from {
		return fmt.Errorf("%w: expected %s, got %s", ErrInvalidTransition, from, *cur)
	}
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	*cur = to
	return nil
}
