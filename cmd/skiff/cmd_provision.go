package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/okano/skiff/internal/domain/entities"
)

func runProvision(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("provision", flag.ExitOnError)
	var (
		configPath = fs.String("config", "deploy.yml", "Path to the deploy target file")
		sourceRoot = fs.String("source", ".", "Source tree containing the encrypted blob")
		keep       = fs.Bool("keep", false, "Leave the decrypted key installed instead of releasing it")
	)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: skiff provision [options]

Verify, decrypt and install the deploy credentials without deploying.
By default the key is released again immediately, making this a
round-trip check of the blob, the secrets and the trust store. Use
--keep to leave the key installed for manual debugging.

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

	handle, err := provisioner.Provision(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitCode := 1
		var kinder interface{ Kind() entities.FailureKind }
		if errors.As(err, &kinder) {
			exitCode = kinder.Kind().ExitCode()
		}
		os.Exit(exitCode)
	}

	fmt.Printf("Credentials provisioned:\n")
	fmt.Printf("  Key:         %s\n", handle.KeyPath)
	fmt.Printf("  Known hosts: %s (%d pinned)\n", knownHostsPath, len(target.KnownHosts))

	if *keep {
		fmt.Println("\nKey left installed (--keep); remove it manually when done.")
		return
	}

	if err := handle.Release(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: release failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("\nRound-trip check passed; key released.")
}
