// Package orchestrators coordinates complex workflows across multiple domain services.
package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okano/skiff/internal/domain/entities"
	"github.com/okano/skiff/internal/domain/interfaces"
	"github.com/okano/skiff/internal/domain/services"
)

// CredentialProvisioner interface for preparing run-scoped deploy credentials
type CredentialProvisioner interface {
	Provision(ctx context.Context) (*entities.CredentialHandle, error)
}

// Syncer interface for mirroring the filtered source tree to the target
type Syncer interface {
	Sync(ctx context.Context, cred *entities.CredentialHandle) (*entities.SyncStats, error)
}

// Activator interface for restarting the remote service
type Activator interface {
	Activate(ctx context.Context, cred *entities.CredentialHandle) error
}

// Notifier interface for emitting the per-run outcome signal
type Notifier interface {
	Notify(ctx context.Context, signal *entities.OutcomeSignal) error
}

// DeployOrchestrator coordinates the complete deployment workflow:
// provision credentials, gate on the designated branch, sync, activate,
// and signal the outcome exactly once.
type DeployOrchestrator struct {
	provisioner      CredentialProvisioner
	syncer           Syncer
	activator        Activator
	notifier         Notifier
	designatedBranch string
	logger           interfaces.Logger
}

// NewDeployOrchestrator creates a new deploy orchestrator
func NewDeployOrchestrator(
	provisioner CredentialProvisioner,
	syncer Syncer,
	activator Activator,
	notifier Notifier,
	designatedBranch string,
	logger interfaces.Logger,
) *DeployOrchestrator {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &DeployOrchestrator{
		provisioner:      provisioner,
		syncer:           syncer,
		activator:        activator,
		notifier:         notifier,
		designatedBranch: designatedBranch,
		logger:           logger,
	}
}

// DeployResult contains the result of a deployment run
type DeployResult struct {
	Trace             []entities.State
	Outcome           entities.Outcome
	Failure           *entities.Failure
	Stats             *entities.SyncStats
	ProvisionDuration time.Duration
	SyncDuration      time.Duration
	ActivateDuration  time.Duration
	TotalDuration     time.Duration
	ExitCode          int
}

// Run executes the deployment workflow for the given branch. The outcome
// signal is emitted exactly once on every path, including failures; a
// notifier error is logged but never changes the run's exit code.
func (o *DeployOrchestrator) Run(ctx context.Context, branch, runID string) (*DeployResult, error) {
	startTime := time.Now()
	result := &DeployResult{Trace: []entities.State{entities.StateIdle}}

	err := o.execute(ctx, branch, result)
	result.TotalDuration = time.Since(startTime)

	if err != nil {
		kind := classifyFailure(err)
		result.Outcome = entities.OutcomeFailed
		result.Failure = &entities.Failure{Kind: kind, Message: err.Error()}
		result.Trace = append(result.Trace, entities.StateFailed)
		result.ExitCode = kind.ExitCode()
	}

	signal := &entities.OutcomeSignal{
		RunID:           runID,
		Branch:          branch,
		Outcome:         result.Outcome,
		DurationSeconds: result.TotalDuration.Seconds(),
	}
	if result.Failure != nil {
		signal.FailureKind = result.Failure.Kind
		signal.Message = result.Failure.Message
	}
	if notifyErr := o.notifier.Notify(ctx, signal); notifyErr != nil {
		o.logger.Warn("outcome notification failed",
			interfaces.F("run_id", runID),
			interfaces.F("error", notifyErr))
	}

	return result, err
}

// execute walks the pipeline state machine up to its first terminal
// success state; the caller handles StateFailed.
func (o *DeployOrchestrator) execute(ctx context.Context, branch string, result *DeployResult) error {
	// Step 1: Provision credentials. The handle is released on every
	// exit path so key material never outlives the run.
	provisionStart := time.Now()
	handle, err := o.provisioner.Provision(ctx)
	if err != nil {
		return fmt.Errorf("failed to provision credentials: %w", err)
	}
	defer func() {
		if releaseErr := handle.Release(); releaseErr != nil {
			o.logger.Warn("credential release failed", interfaces.F("error", releaseErr))
		}
	}()
	result.ProvisionDuration = time.Since(provisionStart)
	result.Trace = append(result.Trace, entities.StateCredentialsLoaded)

	// Step 2: Branch gate. Anything but the designated branch skips the
	// deployment without touching the target.
	if !services.ShouldDeploy(branch, o.designatedBranch) {
		o.logger.Info("branch gate closed",
			interfaces.F("branch", branch),
			interfaces.F("designated", o.designatedBranch))
		result.Trace = append(result.Trace, entities.StateSkipped)
		result.Outcome = entities.OutcomeSkipped
		return nil
	}

	// Step 3: Sync the filtered source tree.
	result.Trace = append(result.Trace, entities.StateSyncing)
	syncStart := time.Now()
	stats, err := o.syncer.Sync(ctx, handle)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	result.Stats = stats
	result.SyncDuration = time.Since(syncStart)
	result.Trace = append(result.Trace, entities.StateSynced)

	// Step 4: Restart the remote service.
	activateStart := time.Now()
	if err := o.activator.Activate(ctx, handle); err != nil {
		return fmt.Errorf("activation failed: %w", err)
	}
	result.ActivateDuration = time.Since(activateStart)
	result.Trace = append(result.Trace, entities.StateActivated)

	result.Trace = append(result.Trace, entities.StateDone)
	result.Outcome = entities.OutcomeDeployed
	return nil
}

// classifyFailure maps a pipeline error to its failure kind through the
// typed errors in the chain. Unclassified errors keep the generic
// non-zero exit.
func classifyFailure(err error) entities.FailureKind {
	var kinder interface{ Kind() entities.FailureKind }
	if errors.As(err, &kinder) {
		return kinder.Kind()
	}
	return ""
}

// GetRunSummary returns a human-readable summary of the run
func (r *DeployResult) GetRunSummary() string {
	switch r.Outcome {
	case entities.OutcomeSkipped:
		return "Deployment skipped: branch gate closed"
	case entities.OutcomeFailed:
		if r.Failure == nil {
			return "Deployment failed"
		}
		return fmt.Sprintf("Deployment failed (%s): %s", r.Failure.Kind, r.Failure.Message)
	}

	summary := fmt.Sprintf(`Deployment successful!
Provision: %v
Sync: %v
Activate: %v
Total: %v`,
		r.ProvisionDuration,
		r.SyncDuration,
		r.ActivateDuration,
		r.TotalDuration,
	)
	if r.Stats != nil {
		summary += fmt.Sprintf("\nFiles: %d uploaded, %d unchanged (%d bytes)",
			r.Stats.Uploaded, r.Stats.Skipped, r.Stats.Bytes)
	}
	return summary
}
