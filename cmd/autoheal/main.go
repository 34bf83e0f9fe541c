package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "autoheal",
	Short: "autoheal - stop ECS tasks behind unhealthy load-balancer targets",
	Long: `autoheal reacts to a CloudWatch alarm on a target group by finding the
targets the load balancer reports as unhealthy or draining, resolving each to
the running ECS task that owns its address, and stopping those tasks so the
service scheduler replaces them.

It runs as an AWS Lambda function, as a one-shot command, or as an HTTP
webhook server.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// A Lambda custom runtime executes the binary without arguments
		if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
			return lambdaCmd.RunE(cmd, args)
		}
		return cmd.Help()
	},
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"autoheal version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to a YAML config file")
	flags.String("cluster", "", "ECS cluster whose tasks may be stopped (env CLUSTER_NAME)")
	flags.String("region", "", "AWS region (env AWS_REGION)")
	flags.String("profile", "", "AWS shared config profile (env AWS_PROFILE)")
	flags.Bool("dry-run", false, "Resolve tasks but do not stop them")
	flags.String("history", "", "Path to the BoltDB audit history")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "Output logs in JSON format")

	// Add subcommands
	rootCmd.AddCommand(lambdaCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(historyCmd)
}
