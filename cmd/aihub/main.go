package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "aihub: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:           "aihub",
		Short:         "Run sandboxed AI agents against an LLM with tool calling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&cfgPath, "config", defaultConfigPath(), "config file path")

	cmd.AddCommand(runCmd(&cfgPath))
	cmd.AddCommand(interactiveCmd(&cfgPath))
	cmd.AddCommand(snapshotCmd(&cfgPath))
	cmd.AddCommand(restoreCmd())
	cmd.AddCommand(toolsCmd(&cfgPath))
	cmd.AddCommand(agentsCmd(&cfgPath))
	cmd.AddCommand(queryCmd(&cfgPath))
	return cmd
}

// defaultConfigPath honours AIHUB_CONFIG, falling back to ./aihub.yaml.
func defaultConfigPath() string {
	if p := os.Getenv("AIHUB_CONFIG"); p != "" {
		return p
	}
	return "aihub.yaml"
}
