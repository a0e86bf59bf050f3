package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"aihub/internal/domain"
	"aihub/internal/usecase/agent"
)

func toolsCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Print the tool definitions offered to agents as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			tmp, err := os.MkdirTemp(a.cfg.Runtime.TempDir, "aihub-tools-*")
			if err != nil {
				return err
			}
			defer os.RemoveAll(tmp)

			lister, err := agent.NewNative(domain.AgentMetadata{Name: "tools", Version: "0"},
				func(context.Context, agent.RunContext) error { return nil }, a.agentOptions())
			if err != nil {
				return err
			}
			env, err := a.newEnvironment(tmp, nil, lister)
			if err != nil {
				return err
			}
			defer env.Close()

			return printJSON(cmd.OutOrStdout(), env.Tools().GetAllToolDefinitions())
		},
	}
}

func agentsCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List the agents in the local registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.registry.Agents()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no agents under %s\n", a.registry.Root())
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "AGENT\tMODEL\tDESCRIPTION")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Metadata.Identifier(),
					e.Metadata.Details.Agent.Defaults.Model, e.Metadata.Description)
			}
			return tw.Flush()
		},
	}
}

func queryCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "query <vector-store-id> <query>",
		Short: "Search the configured vector store the way an agent would",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.vectors == nil {
				return domain.NewDomainError("query", domain.ErrVectorStoreUnavailable,
					"set vector_store.base_url")
			}
			results, err := a.vectors.Query(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), results)
		},
	}
}
