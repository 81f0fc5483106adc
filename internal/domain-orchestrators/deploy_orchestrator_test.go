package orchestrators

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/okano/skiff/internal/domain/entities"
)

// Mock implementations for testing
type mockProvisioner struct {
	err      error
	released int
}

func (m *mockProvisioner) Provision(_ context.Context) (*entities.CredentialHandle, error) {
	if m.err != nil {
		return nil, m.err
	}
	handle := &entities.CredentialHandle{
		KeyPath:  "/tmp/id_skiff",
		Material: &entities.PrivateKeyMaterial{PEM: []byte("key material")},
	}
	handle.OnRelease(func() error {
		m.released++
		return nil
	})
	return handle, nil
}

type mockSyncer struct {
	stats *entities.SyncStats
	err   error
	calls int
}

func (m *mockSyncer) Sync(_ context.Context, _ *entities.CredentialHandle) (*entities.SyncStats, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.stats, nil
}

type mockActivator struct {
	err   error
	calls int
}

func (m *mockActivator) Activate(_ context.Context, _ *entities.CredentialHandle) error {
	m.calls++
	return m.err
}

type mockNotifier struct {
	signals []*entities.OutcomeSignal
	err     error
}

func (m *mockNotifier) Notify(_ context.Context, signal *entities.OutcomeSignal) error {
	m.signals = append(m.signals, signal)
	return m.err
}

func newTestOrchestrator(p *mockProvisioner, s *mockSyncer, a *mockActivator, n *mockNotifier) *DeployOrchestrator {
	return NewDeployOrchestrator(p, s, a, n, "main", nil)
}

// A run on the designated branch walks the full happy path.
func TestDeployOrchestrator_DesignatedBranchDeploys(t *testing.T) {
	provisioner := &mockProvisioner{}
	syncer := &mockSyncer{stats: &entities.SyncStats{Uploaded: 12, Skipped: 3, Bytes: 4096}}
	activator := &mockActivator{}
	notifier := &mockNotifier{}

	result, err := newTestOrchestrator(provisioner, syncer, activator, notifier).
		Run(context.Background(), "main", "run-1")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	wantTrace := []entities.State{
		entities.StateIdle,
		entities.StateCredentialsLoaded,
		entities.StateSyncing,
		entities.StateSynced,
		entities.StateActivated,
		entities.StateDone,
	}
	if !reflect.DeepEqual(result.Trace, wantTrace) {
		t.Errorf("Trace = %v, want %v", result.Trace, wantTrace)
	}
	if result.Outcome != entities.OutcomeDeployed {
		t.Errorf("Outcome = %v, want deployed", result.Outcome)
	}
	if result.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", result.ExitCode)
	}
	if result.Stats == nil || result.Stats.Uploaded != 12 {
		t.Errorf("Stats = %+v, want 12 uploads", result.Stats)
	}
	if provisioner.released != 1 {
		t.Errorf("credential released %d times, want 1", provisioner.released)
	}
}

// A run on any other branch stops at the gate: credentials are loaded
// and released, but the target is never touched.
func TestDeployOrchestrator_OtherBranchSkips(t *testing.T) {
	provisioner := &mockProvisioner{}
	syncer := &mockSyncer{}
	activator := &mockActivator{}
	notifier := &mockNotifier{}

	result, err := newTestOrchestrator(provisioner, syncer, activator, notifier).
		Run(context.Background(), "feature/x", "run-2")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	wantTrace := []entities.State{
		entities.StateIdle,
		entities.StateCredentialsLoaded,
		entities.StateSkipped,
	}
	if !reflect.DeepEqual(result.Trace, wantTrace) {
		t.Errorf("Trace = %v, want %v", result.Trace, wantTrace)
	}
	if result.Outcome != entities.OutcomeSkipped {
		t.Errorf("Outcome = %v, want skipped", result.Outcome)
	}
	if result.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0 (skipped is not a failure)", result.ExitCode)
	}
	if syncer.calls != 0 || activator.calls != 0 {
		t.Errorf("sync calls = %d, activate calls = %d, want 0/0", syncer.calls, activator.calls)
	}
	if provisioner.released != 1 {
		t.Errorf("credential released %d times, want 1", provisioner.released)
	}
}

// A corrupted blob fails the run before any remote interaction.
func TestDeployOrchestrator_ProvisionFailure(t *testing.T) {
	provisioner := &mockProvisioner{err: &entities.DecryptionError{Reason: "padding check"}}
	syncer := &mockSyncer{}
	activator := &mockActivator{}
	notifier := &mockNotifier{}

	result, err := newTestOrchestrator(provisioner, syncer, activator, notifier).
		Run(context.Background(), "main", "run-3")
	if err == nil {
		t.Fatal("Run() should fail for a corrupted blob")
	}

	if result.Outcome != entities.OutcomeFailed {
		t.Errorf("Outcome = %v, want failed", result.Outcome)
	}
	if result.Failure == nil || result.Failure.Kind != entities.FailureDecryption {
		t.Errorf("Failure = %+v, want decryption kind", result.Failure)
	}
	if result.ExitCode != entities.FailureDecryption.ExitCode() {
		t.Errorf("ExitCode = %d, want %d", result.ExitCode, entities.FailureDecryption.ExitCode())
	}
	if last := result.Trace[len(result.Trace)-1]; last != entities.StateFailed {
		t.Errorf("final state = %v, want Failed", last)
	}
	if syncer.calls != 0 || activator.calls != 0 {
		t.Errorf("sync calls = %d, activate calls = %d, want 0/0", syncer.calls, activator.calls)
	}
}

// A transfer failure must prevent activation: a partially written tree
// never gets a restart.
func TestDeployOrchestrator_TransferFailurePreventsActivation(t *testing.T) {
	provisioner := &mockProvisioner{}
	syncer := &mockSyncer{err: &entities.TransferError{Host: "app.example.com", Err: errors.New("connection reset")}}
	activator := &mockActivator{}
	notifier := &mockNotifier{}

	result, err := newTestOrchestrator(provisioner, syncer, activator, notifier).
		Run(context.Background(), "main", "run-4")
	if err == nil {
		t.Fatal("Run() should fail when the transfer fails")
	}

	if activator.calls != 0 {
		t.Errorf("activate calls = %d, want 0 after a failed transfer", activator.calls)
	}
	if result.Failure == nil || result.Failure.Kind != entities.FailureTransfer {
		t.Errorf("Failure = %+v, want transfer kind", result.Failure)
	}
	if result.ExitCode != entities.FailureTransfer.ExitCode() {
		t.Errorf("ExitCode = %d, want %d", result.ExitCode, entities.FailureTransfer.ExitCode())
	}
	if provisioner.released != 1 {
		t.Errorf("credential released %d times, want 1", provisioner.released)
	}
}

// An activation failure is classified apart from transfer failures: the
// code is on the target, only the restart needs a retry.
func TestDeployOrchestrator_ActivationFailureIsDistinct(t *testing.T) {
	provisioner := &mockProvisioner{}
	syncer := &mockSyncer{stats: &entities.SyncStats{Uploaded: 1}}
	activator := &mockActivator{err: &entities.RemoteExecError{
		Command:  "sudo systemctl restart apartments",
		ExitCode: 1,
		Stderr:   "unit not found",
	}}
	notifier := &mockNotifier{}

	result, err := newTestOrchestrator(provisioner, syncer, activator, notifier).
		Run(context.Background(), "main", "run-5")
	if err == nil {
		t.Fatal("Run() should fail when activation fails")
	}

	if result.Failure == nil || result.Failure.Kind != entities.FailureRemoteExec {
		t.Errorf("Failure = %+v, want remote_exec kind", result.Failure)
	}
	if result.ExitCode != entities.FailureRemoteExec.ExitCode() {
		t.Errorf("ExitCode = %d, want %d", result.ExitCode, entities.FailureRemoteExec.ExitCode())
	}
	// The sync already happened and its trace entries stay.
	wantPrefix := []entities.State{
		entities.StateIdle,
		entities.StateCredentialsLoaded,
		entities.StateSyncing,
		entities.StateSynced,
	}
	if !reflect.DeepEqual(result.Trace[:len(wantPrefix)], wantPrefix) {
		t.Errorf("Trace = %v, want prefix %v", result.Trace, wantPrefix)
	}
}

// Exactly one outcome signal per run, whatever the path.
func TestDeployOrchestrator_NotifiesExactlyOnce(t *testing.T) {
	tests := []struct {
		name        string
		branch      string
		provisioner *mockProvisioner
		syncer      *mockSyncer
		wantOutcome entities.Outcome
	}{
		{
			name:        "deployed",
			branch:      "main",
			provisioner: &mockProvisioner{},
			syncer:      &mockSyncer{stats: &entities.SyncStats{}},
			wantOutcome: entities.OutcomeDeployed,
		},
		{
			name:        "skipped",
			branch:      "feature/x",
			provisioner: &mockProvisioner{},
			syncer:      &mockSyncer{},
			wantOutcome: entities.OutcomeSkipped,
		},
		{
			name:        "failed",
			branch:      "main",
			provisioner: &mockProvisioner{},
			syncer:      &mockSyncer{err: &entities.TransferError{Host: "h", Err: errors.New("down")}},
			wantOutcome: entities.OutcomeFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &mockNotifier{}
			_, _ = newTestOrchestrator(tt.provisioner, tt.syncer, &mockActivator{}, notifier).
				Run(context.Background(), tt.branch, "run-6")

			if len(notifier.signals) != 1 {
				t.Fatalf("notifier received %d signals, want exactly 1", len(notifier.signals))
			}
			signal := notifier.signals[0]
			if signal.Outcome != tt.wantOutcome {
				t.Errorf("signal outcome = %v, want %v", signal.Outcome, tt.wantOutcome)
			}
			if signal.RunID != "run-6" || signal.Branch != tt.branch {
				t.Errorf("signal = %+v, want run-6/%s", signal, tt.branch)
			}
		})
	}
}

// A notifier failure never changes the run's exit code.
func TestDeployOrchestrator_NotifierErrorDoesNotFailRun(t *testing.T) {
	provisioner := &mockProvisioner{}
	syncer := &mockSyncer{stats: &entities.SyncStats{}}
	notifier := &mockNotifier{err: errors.New("webhook down")}

	result, err := newTestOrchestrator(provisioner, syncer, &mockActivator{}, notifier).
		Run(context.Background(), "main", "run-7")
	if err != nil {
		t.Fatalf("Run() error = %v, notifier failures must not fail the run", err)
	}
	if result.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", result.ExitCode)
	}
}

func TestDeployResult_GetRunSummary(t *testing.T) {
	deployed := &DeployResult{
		Outcome: entities.OutcomeDeployed,
		Stats:   &entities.SyncStats{Uploaded: 5, Skipped: 2, Bytes: 1024},
	}
	if got := deployed.GetRunSummary(); !contains(got, "Deployment successful") || !contains(got, "5 uploaded") {
		t.Errorf("summary = %q", got)
	}

	failed := &DeployResult{
		Outcome: entities.OutcomeFailed,
		Failure: &entities.Failure{Kind: entities.FailureTransfer, Message: "connection reset"},
	}
	if got := failed.GetRunSummary(); !contains(got, "Deployment failed") || !contains(got, "connection reset") {
		t.Errorf("summary = %q", got)
	}

	skipped := &DeployResult{Outcome: entities.OutcomeSkipped}
	if got := skipped.GetRunSummary(); !contains(got, "skipped") {
		t.Errorf("summary = %q", got)
	}

	// A failed result without failure detail must not panic.
	bare := &DeployResult{Outcome: entities.OutcomeFailed}
	if got := bare.GetRunSummary(); !contains(got, "failed") {
		t.Errorf("summary = %q", got)
	}
}

// Helper function to check if string contains substring
func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
