package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/okano/skiff/internal/config"
	"github.com/okano/skiff/internal/domain-adapters/gateways"
	"github.com/okano/skiff/internal/domain/entities"
	"github.com/okano/skiff/internal/domain/services"
	"github.com/okano/skiff/internal/external-adapters/yaml"
)

// PlanReport describes what a deploy run would do, computed without any
// network access or credential decryption.
type PlanReport struct {
	Branch           string   `json:"branch"`
	DesignatedBranch string   `json:"designated_branch"`
	WouldDeploy      bool     `json:"would_deploy"`
	Host             string   `json:"host"`
	RemotePath       string   `json:"remote_path"`
	ExcludedPatterns []string `json:"excluded_patterns"`
	Files            []string `json:"files"`
}

func runPlan(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	var (
		configPath = fs.String("config", "deploy.yml", "Path to the deploy target file")
		sourceRoot = fs.String("source", ".", "Source tree to mirror")
		jsonOutput = fs.Bool("json", false, "Write the plan as JSON to stdout")
	)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: skiff plan [options]

Show the branch gate decision and the resolved transfer set without
connecting to the target or touching any credentials.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(entities.FailureConfig.ExitCode())
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(entities.FailureConfig.ExitCode())
	}

	target, err := yaml.NewTargetRepository().GetTarget(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(entities.FailureConfig.ExitCode())
	}

	sensitive := entities.SensitivePathExclusions(*sourceRoot, *configPath, target.Credential)
	policy := entities.NewExclusionPolicy(append(sensitive, target.Exclude...))
	set, err := gateways.NewTransferSetResolver(nil).Resolve(*sourceRoot, policy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(entities.FailureConfig.ExitCode())
	}

	report := PlanReport{
		Branch:           cfg.Branch,
		DesignatedBranch: target.Branch,
		WouldDeploy:      services.ShouldDeploy(cfg.Branch, target.Branch),
		Host:             target.Host,
		RemotePath:       target.RemotePath,
		ExcludedPatterns: policy.Patterns,
		Files:            make([]string, 0, len(set.Files)),
	}
	for _, file := range set.Files {
		report.Files = append(report.Files, file.RelPath)
	}

	if *jsonOutput {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to marshal plan: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(data))
		return
	}

	if report.WouldDeploy {
		fmt.Printf("Branch %q matches designated branch %q: would deploy to %s:%s\n",
			report.Branch, report.DesignatedBranch, report.Host, report.RemotePath)
	} else {
		fmt.Printf("Branch %q does not match designated branch %q: would skip\n",
			report.Branch, report.DesignatedBranch)
	}
	fmt.Printf("\nTransfer set (%d files, %d exclusion patterns):\n", len(report.Files), len(report.ExcludedPatterns))
	for _, f := range report.Files {
		fmt.Printf("  %s\n", f)
	}
}
