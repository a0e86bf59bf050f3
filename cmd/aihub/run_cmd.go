package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"aihub/internal/domain"
	"aihub/internal/usecase/environment"
)

type runFlags struct {
	task          string
	maxIterations int
	workdir       string
	vars          map[string]string
	markdown      bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.maxIterations, "max-iterations", 0, "agent invocations per turn (0 = agent or config default)")
	cmd.Flags().StringVar(&f.workdir, "workdir", "", "sandbox directory (default: a new temporary directory)")
	cmd.Flags().StringToStringVar(&f.vars, "var", nil, "run variable KEY=VALUE passed to the agent (repeatable)")
	cmd.Flags().BoolVar(&f.markdown, "markdown", false, "render agent replies as markdown")
}

// iterations resolves the per-turn budget: the flag, then the agent's
// max_iterations default, then runtime.max_iterations from the config.
func (f *runFlags) iterations(a *app, env *environment.Environment) int {
	if f.maxIterations > 0 {
		return f.maxIterations
	}
	if env.PrimaryAgent().Defaults().MaxIterations > 0 {
		return 0
	}
	return a.cfg.Runtime.MaxIterations
}

// --- run ---

func runCmd(cfgPath *string) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run <agent>",
		Short: "Run an agent on a task until it yields, finishes or exhausts its budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), *cfgPath, args[0], flags, cmd.OutOrStdout())
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&flags.task, "task", "t", "", "first user message")
	return cmd
}

func runOnce(ctx context.Context, cfgPath, ref string, flags runFlags, out io.Writer) error {
	ctx, stop := signal.NotifyContext(contextOrBackground(ctx), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, env, err := openRun(ctx, cfgPath, ref, flags)
	if err != nil {
		return err
	}
	defer a.Close()
	defer env.Close()

	render := newReplyRenderer(flags.markdown, 100)
	before, err := env.ListMessages()
	if err != nil {
		return err
	}
	res, runErr := env.Run(ctx, flags.task, flags.iterations(a, env))
	if err := printReplies(env, len(before), out, render); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("run %s: %w", res.RunID, runErr)
	}

	fmt.Fprintf(out, "\nworkdir: %s\n", env.GetPath())
	return printJSON(out, res)
}

// --- interactive ---

func interactiveCmd(cfgPath *string) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "interactive <agent>",
		Short: "Chat with an agent, one run per line of input",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd.Context(), *cfgPath, args[0], flags, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	flags.register(cmd)
	return cmd
}

func runInteractive(ctx context.Context, cfgPath, ref string, flags runFlags, in io.Reader, out io.Writer) error {
	ctx, stop := signal.NotifyContext(contextOrBackground(ctx), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, env, err := openRun(ctx, cfgPath, ref, flags)
	if err != nil {
		return err
	}
	defer a.Close()
	defer env.Close()

	render := newReplyRenderer(flags.markdown, 100)
	welcome := env.PrimaryAgent().Metadata.Details.Agent.Welcome
	if welcome.Title != "" {
		fmt.Fprintln(out, render.title(welcome.Title))
	}
	if welcome.Description != "" {
		fmt.Fprintln(out, render.reply(welcome.Description))
	}
	fmt.Fprintf(out, "workdir: %s (type \"exit\" to quit)\n", env.GetPath())

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" {
			break
		}

		before, err := env.ListMessages()
		if err != nil {
			return err
		}
		res, runErr := env.Run(ctx, line, flags.iterations(a, env))
		if err := printReplies(env, len(before), out, render); err != nil {
			return err
		}
		if runErr != nil {
			return fmt.Errorf("run %s: %w", res.RunID, runErr)
		}
		if res.Status == environment.StatusDone {
			fmt.Fprintln(out, "[done]")
			break
		}
		if res.Status == environment.StatusBudgetExhausted {
			fmt.Fprintf(out, "[stopped after %d iterations]\n", res.Iterations)
		}
	}
	return scanner.Err()
}

func openRun(ctx context.Context, cfgPath, ref string, flags runFlags) (*app, *environment.Environment, error) {
	a, err := newApp(ctx, cfgPath)
	if err != nil {
		return nil, nil, err
	}
	ag, err := a.loadAgent(ctx, ref)
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	env, err := a.newEnvironment(flags.workdir, flags.vars, ag)
	if err != nil {
		ag.Unload()
		a.Close()
		return nil, nil, err
	}
	return a, env, nil
}

// printReplies writes the agent messages appended after the first skip
// transcript entries.
func printReplies(env *environment.Environment, skip int, out io.Writer, render replyRenderer) error {
	msgs, err := env.ListMessages()
	if err != nil {
		return err
	}
	if skip > len(msgs) {
		skip = len(msgs)
	}
	for _, m := range msgs[skip:] {
		if m.Role == domain.RoleAgent {
			fmt.Fprintln(out, render.reply(m.Content))
		}
	}
	return nil
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
