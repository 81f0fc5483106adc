package entities

// Outcome is the binary-plus-skip signal the notification subsystem
// consumes. Skipped is distinct from Deployed so downstream alerting can
// tell a gated-off branch from a shipped one.
type Outcome string

const (
	OutcomeDeployed Outcome = "deployed"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// OutcomeSignal is the single notification payload emitted per run,
// keyed on branch and run identifier.
type OutcomeSignal struct {
	RunID           string      `json:"run_id"`
	Branch          string      `json:"branch"`
	Outcome         Outcome     `json:"outcome"`
	FailureKind     FailureKind `json:"failure_kind,omitempty"`
	Message         string      `json:"message,omitempty"`
	DurationSeconds float64     `json:"duration_seconds"`
}
