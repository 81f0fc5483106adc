package main

import (
	"context"
	"fmt"
	"os"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	command := os.Args[1]

	// Dispatch to subcommand
	switch command {
	case "deploy":
		runDeploy(ctx, os.Args[2:])
	case "plan":
		runPlan(ctx, os.Args[2:])
	case "provision":
		runProvision(ctx, os.Args[2:])
	case "version":
		fmt.Printf("skiff %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`skiff - Branch-gated deployment over SSH

Usage:
  skiff <command> [options]

Commands:
  deploy     Run the full pipeline: provision, gate, sync, activate
  plan       Show the gate decision and transfer set without connecting
  provision  Decrypt and install the deploy credentials only
  version    Print the skiff version

Use "skiff <command> --help" for more information about a command.`)
}
