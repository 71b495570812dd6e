package tim

// State is the lifecycle state of a broadcast.
//
// Pending -> Running -> Canceling -> Stopped | Error
//
// Canceled is declared for wire compatibility but never assigned by any
// transition.
type State string

const (
	StatePending   State = "Pending"
	StateCanceling State = "Canceling"
	StateCanceled  State = "Canceled"
	StateRunning   State = "Running"
	StateStopped   State = "Stopped"
	StateError     State = "Error"
)

// Terminal reports whether no further transitions may leave this state.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateError
}

// Action is the desired device-side operation carried by a command.
type Action string

const (
	ActionCreate Action = "Create"
	ActionUpdate Action = "Update"
	ActionDelete Action = "Delete"
)

// Source identifies what originated a broadcast request.
type Source string

const (
	SourceManual    Source = "ManualEntry"
	SourceAutomated Source = "LogicStatement"
)

// TransmitMode selects how the device schedules the message on air.
type TransmitMode string

const (
	TransmitContinuous  TransmitMode = "Continuous"
	TransmitAlternating TransmitMode = "Alternating"
)

// ParseTransmitMode resolves a transmit mode name; anything unrecognized
// falls back to alternating.
func ParseTransmitMode(name string) TransmitMode {
	if name == string(TransmitContinuous) {
		return TransmitContinuous
	}
	return TransmitAlternating
}
