// Package main provides the skiff CLI for branch-gated deployments over SSH.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/okano/skiff/internal/config"
	"github.com/okano/skiff/internal/domain-adapters/gateways"
	orchestrators "github.com/okano/skiff/internal/domain-orchestrators"
	"github.com/okano/skiff/internal/domain/entities"
	"github.com/okano/skiff/internal/domain/interfaces"
	"github.com/okano/skiff/internal/external-adapters/yaml"
)

// Agent-loaded identities expire well before any plausible run ends, so
// a crashed run cannot leave a usable key behind.
const agentKeyLifetimeSecs = 900

// DeployReport is the machine-readable run result written with --json.
type DeployReport struct {
	RunID           string              `json:"run_id"`
	Branch          string              `json:"branch"`
	Outcome         entities.Outcome    `json:"outcome"`
	Trace           []entities.State    `json:"trace"`
	Failure         *entities.Failure   `json:"failure,omitempty"`
	Stats           *entities.SyncStats `json:"stats,omitempty"`
	DurationSeconds float64             `json:"duration_seconds"`
	ExitCode        int                 `json:"exit_code"`
}

func runDeploy(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("deploy", flag.ExitOnError)
	var (
		configPath = fs.String("config", "deploy.yml", "Path to the deploy target file")
		sourceRoot = fs.String("source", ".", "Source tree to mirror")
		jsonOutput = fs.Bool("json", false, "Write a JSON report to stdout instead of a summary")
	)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: skiff deploy [options]

Run the full deployment pipeline: provision credentials, gate on the
designated branch, mirror the source tree, restart the remote service.

The branch under deployment comes from SKIFF_BRANCH; decryption secrets
come from SKIFF_ENCRYPTION_KEY and SKIFF_ENCRYPTION_IV.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(entities.FailureConfig.ExitCode())
	}

	cfg, target, logger := loadRunEnvironment(ctx, *configPath)

	provisioner, knownHostsPath := buildProvisioner(cfg, target, *sourceRoot, logger)
	syncer := gateways.NewSyncGateway(target, *sourceRoot, *configPath, knownHostsPath, logger)
	activator := gateways.NewRemoteActivator(target, knownHostsPath, logger)
	notifier := gateways.NewOutcomeNotifier(cfg.WebhookURL, os.Stdout, logger)

	orch := orchestrators.NewDeployOrchestrator(
		provisioner,
		syncer,
		activator,
		notifier,
		target.Branch,
		logger,
	)

	result, _ := orch.Run(ctx, cfg.Branch, cfg.RunID)

	if *jsonOutput {
		report := DeployReport{
			RunID:           cfg.RunID,
			Branch:          cfg.Branch,
			Outcome:         result.Outcome,
			Trace:           result.Trace,
			Failure:         result.Failure,
			Stats:           result.Stats,
			DurationSeconds: result.TotalDuration.Seconds(),
			ExitCode:        result.ExitCode,
		}
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to marshal report: %v\n", err)
		} else {
			fmt.Println(string(data))
		}
	} else {
		fmt.Println(result.GetRunSummary())
	}

	os.Exit(result.ExitCode)
}

// loadRunEnvironment reads the env config and the deploy target. Both are
// prerequisites for every command that touches credentials, and any
// problem here is a config failure.
func loadRunEnvironment(ctx context.Context, configPath string) (*config.Config, *entities.Target, interfaces.Logger) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(entities.FailureConfig.ExitCode())
	}

	logger := interfaces.NewStderrLogger(interfaces.Level(cfg.LogLevel))

	target, err := yaml.NewTargetRepository().GetTarget(ctx, configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(entities.FailureConfig.ExitCode())
	}

	return cfg, target, logger
}

// buildProvisioner wires the credential provisioner for a target. It also
// returns the resolved known-hosts path so the SSH gateways verify
// against the same trust store the provisioner writes.
func buildProvisioner(cfg *config.Config, target *entities.Target, sourceRoot string, logger interfaces.Logger) (*gateways.CredentialProvisioner, string) {
	key, err := cfg.DecryptionKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(entities.FailureConfig.ExitCode())
	}
	iv, err := cfg.DecryptionIV()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(entities.FailureConfig.ExitCode())
	}

	home, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot resolve home directory: %v\n", err)
		os.Exit(entities.FailureConfig.ExitCode())
	}

	knownHostsPath := target.Credential.ResolvedKnownHostsPath(home)
	provisioner := gateways.NewCredentialProvisioner(gateways.ProvisionerConfig{
		BlobPath:          resolveSourcePath(sourceRoot, target.Credential.BlobPath),
		SignaturePath:     resolveSourcePath(sourceRoot, target.Credential.SignaturePath),
		KeyringPath:       resolveSourcePath(sourceRoot, target.Credential.KeyringPath),
		InstallPath:       target.Credential.ResolvedInstallPath(home),
		KnownHostsPath:    knownHostsPath,
		KnownHosts:        target.KnownHosts,
		Key:               key,
		IV:                iv,
		AgentSocket:       os.Getenv("SSH_AUTH_SOCK"),
		AgentLifetimeSecs: agentKeyLifetimeSecs,
	}, logger)

	return provisioner, knownHostsPath
}

// resolveSourcePath anchors a relative config path at the source root, so
// committed blob paths in deploy.yml stay portable.
func resolveSourcePath(sourceRoot, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(sourceRoot, p)
}
