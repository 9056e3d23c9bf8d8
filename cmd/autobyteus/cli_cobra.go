package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AutoByteus/autobyteus-sub000/pkg/config"
)

func executeCLI() error {
	root := buildRootCommand(true)
	if err := root.Execute(); err != nil {
		return err
	}
	return nil
}

func buildRootCommand(includeDocsCommand bool) *cobra.Command {
	var (
		showVersion bool
		configPath  string
	)

	root := &cobra.Command{
		Use:   "autobyteus",
		Short: "Agent runtime with compacting working memory",
		Long: strings.TrimSpace(`autobyteus runs an LLM agent whose working context is compacted into
episodic and semantic memory as it approaches the model's token budget.

Use CLI commands to onboard, run local agent sessions, and inspect or rebuild
the agent's persisted memory and working context snapshot.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion(cmd.OutOrStdout())
				return nil
			}
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "Show build/version metadata")
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Path to config.json")

	cfgPath := func() string { return configPath }
	root.AddCommand(newOnboardCommand(cfgPath))
	root.AddCommand(newAgentCommand(cfgPath))
	root.AddCommand(newStatusCommand(cfgPath))
	root.AddCommand(newSnapshotCommand(cfgPath))
	root.AddCommand(newMemoryCommand(cfgPath))
	root.AddCommand(newModelsCommand(cfgPath))
	root.AddCommand(newVersionCommand())

	if includeDocsCommand {
		docsCmd := newDocsCommand(func() *cobra.Command { return buildRootCommand(false) })
		root.AddCommand(docsCmd)
	}

	return root
}

func newOnboardCommand(configPath func() string) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:     "onboard",
		Short:   "Initialize ~/.autobyteus config, workspace and memory directories",
		Long:    "Create the default configuration, an AGENT.md instructions template and the memory directory for a new installation.",
		Example: "  autobyteus onboard\n  autobyteus onboard --force",
		RunE: func(cmd *cobra.Command, args []string) error {
			return onboard(cmd.OutOrStdout(), configPath(), force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}

func newAgentCommand(configPath func() string) *cobra.Command {
	var opts agentRunOptions
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the agent interactively or for one message",
		Long: strings.TrimSpace(`Run a local agent session.

The working context is restored from the snapshot cache, or rebuilt from the
memory store when no valid snapshot exists. Without --message an interactive
prompt is started.`),
		Example: "  autobyteus agent\n  autobyteus agent -m \"Summarize README.md\"\n  autobyteus agent -m \"What is in this picture?\" --image ./photo.png",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.message = strings.TrimSpace(opts.message)
			if len(opts.images) > 0 && opts.message == "" {
				return fmt.Errorf("--image requires --message")
			}
			return runAgent(configPath(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.message, "message", "m", "", "Send one message and exit")
	cmd.Flags().StringSliceVar(&opts.images, "image", nil, "Image path or URL to attach to --message (repeatable)")
	cmd.Flags().BoolVarP(&opts.debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func newStatusCommand(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show config, memory and provider readiness",
		Example: "  autobyteus status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return status(cmd.OutOrStdout(), configPath())
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show version information",
		Example: "  autobyteus version",
		RunE: func(cmd *cobra.Command, args []string) error {
			printVersion(cmd.OutOrStdout())
			return nil
		},
	}
}
