package writer

// State is a step of the overwrite-confirmation state machine.
type State int

// Writer states. Fresh and ExistsPrompt are transient; the others are final.
const (
	StateFresh State = iota
	StateExistsPrompt
	StateDone
	StateAbortedByUser
	StateAbortedInvalidInput
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateExistsPrompt:
		return "exists_prompt"
	case StateDone:
		return "done"
	case StateAbortedByUser:
		return "aborted_by_user"
	case StateAbortedInvalidInput:
		return "aborted_invalid_input"
	default:
		return "unknown"
	}
}

// Final reports whether no further transition is possible.
func (s State) Final() bool {
	return s == StateDone || s == StateAbortedByUser || s == StateAbortedInvalidInput
}
