// Package orchestrator drives the controller's `up`/`down` pipelines: an
// explicit state machine from Start through Interactive, and the symmetric
// teardown. There is no reconciliation loop here — each state runs to
// completion or failure exactly once per invocation.
package orchestrator

// State is one node of the `up` pipeline.
type State int

const (
	StateStart State = iota
	StateRenderingDocument
	StateRequestingCreate
	StateAwaitingActive
	StateAwaitingSSHPort
	StateAwaitingSSHLogin
	StateAgentUpload
	StateAwaitingBootstrapSync
	StateSeedingVolumes
	StateMountingVolumes
	StateEstablishingTunnels
	StateInteractive
	StateEnd
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "Start"
	case StateRenderingDocument:
		return "RenderingDocument"
	case StateRequestingCreate:
		return "RequestingCreate"
	case StateAwaitingActive:
		return "AwaitingActive"
	case StateAwaitingSSHPort:
		return "AwaitingSshPort"
	case StateAwaitingSSHLogin:
		return "AwaitingSshLogin"
	case StateAgentUpload:
		return "AgentUpload"
	case StateAwaitingBootstrapSync:
		return "AwaitingBootstrapSync"
	case StateSeedingVolumes:
		return "SeedingVolumes"
	case StateMountingVolumes:
		return "MountingVolumes"
	case StateEstablishingTunnels:
		return "EstablishingTunnels"
	case StateInteractive:
		return "Interactive"
	case StateEnd:
		return "End"
	default:
		return "Unknown"
	}
}

// StageError wraps an error with the State it occurred in, so a failed
// `up` can print a precise recovery hint and callers can distinguish
// "never created anything" from "instance exists, something later failed".
type StageError struct {
	State State
	Err   error
}

func (e *StageError) Error() string {
	return e.State.String() + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }

func fail(state State, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{State: state, Err: err}
}
