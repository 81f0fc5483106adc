package entities

// State identifies a stage of the deployment pipeline state machine.
type State string

// Pipeline states. A run always starts in StateIdle and ends in exactly one
// of the terminal states.
const (
	StateIdle              State = "Idle"
	StateCredentialsLoaded State = "CredentialsLoaded"
	StateSkipped           State = "Skipped"
	StateSyncing           State = "Syncing"
	StateSynced            State = "Synced"
	StateActivated         State = "Activated"
	StateDone              State = "Done"
	StateFailed            State = "Failed"
)

// Terminal reports whether the pipeline stops in this state.
func (s State) Terminal() bool {
	return s == StateSkipped || s == StateDone || s == StateFailed
}

// Success reports whether this state maps to exit code zero.
// A skipped deployment is a success, not a failure.
func (s State) Success() bool {
	return s == StateSkipped || s == StateDone
}

// FailureKind classifies a pipeline failure for exit codes and operator
// remediation. Activation failures are distinct from transfer failures:
// the code is already on the target, only the restart has to be retried.
type FailureKind string

// Failure classifications, one per fatal error in the taxonomy.
const (
	FailureConfig     FailureKind = "config"
	FailureDecryption FailureKind = "decryption"
	FailureTrustSetup FailureKind = "trust_setup"
	FailureTransfer   FailureKind = "transfer"
	FailureRemoteExec FailureKind = "remote_exec"
)

// ExitCode maps a failure kind to the process exit status. Zero is
// reserved for Done and Skipped.
func (k FailureKind) ExitCode() int {
	switch k {
	case FailureConfig:
		return 2
	case FailureDecryption:
		return 3
	case FailureTrustSetup:
		return 4
	case FailureTransfer:
		return 5
	case FailureRemoteExec:
		return 6
	default:
		return 1
	}
}

// Failure describes why a run ended in StateFailed.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}
