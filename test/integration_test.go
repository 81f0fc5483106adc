package test_test

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/ssh"

	"github.com/okano/skiff/internal/config"
	"github.com/okano/skiff/internal/domain-adapters/gateways"
	orchestrators "github.com/okano/skiff/internal/domain-orchestrators"
	"github.com/okano/skiff/internal/domain/entities"
	"github.com/okano/skiff/internal/external-adapters/yaml"
)

const deployYML = `branch: main
host: app.example.com
user: deploy
remote_path: /srv/app
restart_command: sudo systemctl restart app
credential:
  blob_path: .deploy/id_deploy.enc
known_hosts:
  - "app.example.com ssh-ed25519 AAAA"
exclude:
  - tests
  - alembic
`

// fixture builds a source tree with a committed encrypted blob, a
// deploy.yml and application files, and returns the tree root plus the
// hex-encoded decryption secrets.
func fixture(t *testing.T) (string, string, string) {
	t.Helper()
	root := t.TempDir()

	for rel, content := range map[string]string{
		"deploy.yml":       deployYML,
		"app/main.py":      "print('app')",
		"requirements.txt": "fastapi",
		"tests/test_x.py":  "assert True",
	} {
		full := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", rel, err)
		}
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		t.Fatalf("failed to marshal key: %v", err)
	}
	keyPEM := pem.EncodeToMemory(block)

	key := bytes.Repeat([]byte{0x42}, 32)
	iv := bytes.Repeat([]byte{0x17}, aes.BlockSize)
	aesBlock, err := aes.NewCipher(key)
	if err != nil {
		t.Fatalf("cipher init: %v", err)
	}
	pad := aes.BlockSize - len(keyPEM)%aes.BlockSize
	padded := make([]byte, len(keyPEM)+pad)
	copy(padded, keyPEM)
	for i := len(keyPEM); i < len(padded); i++ {
		padded[i] = byte(pad)
	}
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(aesBlock, iv).CryptBlocks(ciphertext, padded)

	blobPath := filepath.Join(root, ".deploy", "id_deploy.enc")
	if err := os.MkdirAll(filepath.Dir(blobPath), 0o700); err != nil {
		t.Fatalf("failed to create blob dir: %v", err)
	}
	if err := os.WriteFile(blobPath, ciphertext, 0o600); err != nil {
		t.Fatalf("failed to write blob: %v", err)
	}

	return root, hex.EncodeToString(key), hex.EncodeToString(iv)
}

// buildPipeline wires the real provisioner and orchestrator against the
// fixture tree. The stateDir stands in for the user's home directory so
// the test never touches real SSH configuration.
func buildPipeline(t *testing.T, root, stateDir string, cfg *config.Config, out *bytes.Buffer) (*orchestrators.DeployOrchestrator, *entities.Target, string) {
	t.Helper()

	target, err := yaml.NewTargetRepository().GetTarget(context.Background(), filepath.Join(root, "deploy.yml"))
	if err != nil {
		t.Fatalf("failed to load target: %v", err)
	}

	key, err := cfg.DecryptionKey()
	if err != nil {
		t.Fatalf("failed to decode key: %v", err)
	}
	iv, err := cfg.DecryptionIV()
	if err != nil {
		t.Fatalf("failed to decode iv: %v", err)
	}

	installPath := target.Credential.ResolvedInstallPath(stateDir)
	knownHostsPath := target.Credential.ResolvedKnownHostsPath(stateDir)
	provisioner := gateways.NewCredentialProvisioner(gateways.ProvisionerConfig{
		BlobPath:       filepath.Join(root, target.Credential.BlobPath),
		InstallPath:    installPath,
		KnownHostsPath: knownHostsPath,
		KnownHosts:     target.KnownHosts,
		Key:            key,
		IV:             iv,
	}, nil)

	syncer := gateways.NewSyncGateway(target, root, filepath.Join(root, "deploy.yml"), knownHostsPath, nil)
	activator := gateways.NewRemoteActivator(target, knownHostsPath, nil)
	notifier := gateways.NewOutcomeNotifier("", out, nil)

	orch := orchestrators.NewDeployOrchestrator(provisioner, syncer, activator, notifier, target.Branch, nil)
	return orch, target, installPath
}

// A non-designated branch exercises the full wiring with no network:
// credentials round-trip through decryption, install and release, and
// exactly one outcome signal is emitted.
func TestPipeline_SkippedRunEndToEnd(t *testing.T) {
	root, keyHex, ivHex := fixture(t)
	stateDir := t.TempDir()

	t.Setenv("SKIFF_ENCRYPTION_KEY", keyHex)
	t.Setenv("SKIFF_ENCRYPTION_IV", ivHex)
	t.Setenv("SKIFF_BRANCH", "feature/new-listing")
	t.Setenv("SKIFF_RUN_ID", "integration-1")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}

	var out bytes.Buffer
	orch, _, installPath := buildPipeline(t, root, stateDir, cfg, &out)

	result, err := orch.Run(context.Background(), cfg.Branch, cfg.RunID)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Outcome != entities.OutcomeSkipped {
		t.Errorf("Outcome = %v, want skipped", result.Outcome)
	}
	if result.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", result.ExitCode)
	}

	// Credentials must not outlive the run.
	if _, statErr := os.Stat(installPath); !os.IsNotExist(statErr) {
		t.Error("key file still installed after the run")
	}

	// Exactly one outcome line on stdout.
	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	if len(lines) != 1 {
		t.Fatalf("got %d outcome lines, want 1: %q", len(lines), out.String())
	}
	var signal entities.OutcomeSignal
	if err := json.Unmarshal(lines[0], &signal); err != nil {
		t.Fatalf("outcome line is not valid JSON: %v", err)
	}
	if signal.RunID != "integration-1" || signal.Outcome != entities.OutcomeSkipped {
		t.Errorf("signal = %+v, want integration-1/skipped", signal)
	}
}

// A corrupted blob fails the run with the decryption exit code before
// any connection attempt, and still emits its outcome signal.
func TestPipeline_CorruptedBlobEndToEnd(t *testing.T) {
	root, keyHex, ivHex := fixture(t)
	stateDir := t.TempDir()

	blobPath := filepath.Join(root, ".deploy", "id_deploy.enc")
	blob, err := os.ReadFile(blobPath)
	if err != nil {
		t.Fatalf("failed to read blob: %v", err)
	}
	blob[len(blob)/2] ^= 0x80
	if err := os.WriteFile(blobPath, blob, 0o600); err != nil {
		t.Fatalf("failed to write tampered blob: %v", err)
	}

	t.Setenv("SKIFF_ENCRYPTION_KEY", keyHex)
	t.Setenv("SKIFF_ENCRYPTION_IV", ivHex)
	t.Setenv("SKIFF_BRANCH", "main")
	t.Setenv("SKIFF_RUN_ID", "integration-2")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}

	var out bytes.Buffer
	orch, _, installPath := buildPipeline(t, root, stateDir, cfg, &out)

	result, runErr := orch.Run(context.Background(), cfg.Branch, cfg.RunID)
	if runErr == nil {
		t.Fatal("Run() should fail for a corrupted blob")
	}

	if result.ExitCode != entities.FailureDecryption.ExitCode() {
		t.Errorf("ExitCode = %d, want %d", result.ExitCode, entities.FailureDecryption.ExitCode())
	}
	if _, statErr := os.Stat(installPath); !os.IsNotExist(statErr) {
		t.Error("key file installed despite failed decryption")
	}

	var signal entities.OutcomeSignal
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &signal); err != nil {
		t.Fatalf("outcome line is not valid JSON: %v", err)
	}
	if signal.Outcome != entities.OutcomeFailed || signal.FailureKind != entities.FailureDecryption {
		t.Errorf("signal = %+v, want failed/decryption", signal)
	}
}
