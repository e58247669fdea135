// Package cmd provides CLI commands for the ferry binaries.
package cmd

import "github.com/urfave/cli/v2"

// Version is the canonical project version, shared by both binaries.
const Version = "1.2.0"

// Shared flags.
var (
	// AddrFlag is the server address for client-side commands.
	AddrFlag = &cli.StringFlag{
		Name:    "addr",
		Aliases: []string{"a"},
		Usage:   "Server address (host:port)",
		EnvVars: []string{"FERRY_ADDR"},
		Value:   "127.0.0.1:46000",
	}

	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// ConfigFlag points at a ferry.yaml config file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to ferry.yaml config file",
		EnvVars: []string{"FERRY_CONFIG"},
	}

	// IPCFlag switches stdout to length-prefixed frames for a supervising
	// orchestrator. Logs stay on stderr either way.
	IPCFlag = &cli.BoolFlag{
		Name:  "ipc",
		Usage: "Emit machine-readable frames on stdout (for orchestration)",
	}
)

// OutputFlags returns the shared rendering flags for client commands.
func OutputFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
	}
}
