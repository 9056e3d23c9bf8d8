// autobyteus - agent runtime with compacting working memory
// License: MIT

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/uuid"

	"github.com/AutoByteus/autobyteus-sub000/pkg/agent"
	"github.com/AutoByteus/autobyteus-sub000/pkg/bus"
	"github.com/AutoByteus/autobyteus-sub000/pkg/config"
	"github.com/AutoByteus/autobyteus-sub000/pkg/logger"
	"github.com/AutoByteus/autobyteus-sub000/pkg/providers"
)

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

const appName = "autobyteus"

const defaultAgentInstructions = `# Agent

Describe how this agent should behave. The contents of this file are added
to the system prompt of every request.
`

// formatVersion returns the version string with optional git commit
func formatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

// formatBuildInfo returns build time and go version info
func formatBuildInfo() (build string, goVer string) {
	if buildTime != "" {
		build = buildTime
	}
	goVer = goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	return
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "%s %s\n", appName, formatVersion())
	build, goVer := formatBuildInfo()
	if build != "" {
		fmt.Fprintf(w, "  Build: %s\n", build)
	}
	if goVer != "" {
		fmt.Fprintf(w, "  Go: %s\n", goVer)
	}
}

func main() {
	if err := executeCLI(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func initLogging(cfg *config.Config, debug bool) error {
	if err := logger.Init(cfg.Log); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	if debug {
		logger.SetLevel(logger.DEBUG)
		fmt.Println("🔍 Debug mode enabled")
	}
	return nil
}

func onboard(w io.Writer, configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", configPath)
	}

	cfg := config.DefaultConfig()
	if err := config.SaveConfig(configPath, cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	workspace := cfg.WorkspacePath()
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	instructions := filepath.Join(workspace, "AGENT.md")
	if _, err := os.Stat(instructions); os.IsNotExist(err) {
		if err := os.WriteFile(instructions, []byte(defaultAgentInstructions), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", instructions, err)
		}
	}
	if err := os.MkdirAll(cfg.MemoryDir(), 0o755); err != nil {
		return fmt.Errorf("create memory dir: %w", err)
	}

	fmt.Fprintf(w, "%s is ready!\n", appName)
	fmt.Fprintln(w, "\nNext steps:")
	fmt.Fprintln(w, "  1. Add your API key to", configPath)
	fmt.Fprintln(w, "  2. Chat locally: autobyteus agent -m \"Hello!\"")
	fmt.Fprintln(w, "  3. Check readiness: autobyteus status")
	return nil
}

type agentRunOptions struct {
	message string
	images  []string
	debug   bool
}

func runAgent(configPath string, opts agentRunOptions) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := initLogging(cfg, opts.debug); err != nil {
		return err
	}

	provider, err := providers.NewDefaultRegistry(providers.NewMediaLoader(nil)).Create(cfg)
	if err != nil {
		return fmt.Errorf("create provider: %w", err)
	}
	a, err := agent.NewFromConfig(cfg, provider)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	restored, err := a.Start(ctx)
	if err != nil {
		return err
	}
	logger.InfoCF("agent", "Agent initialized",
		map[string]interface{}{
			"agent_id":    cfg.Agent.ID,
			"model":       a.Model(),
			"tools_count": a.Tools().Count(),
			"from_cache":  restored.FromCache,
			"messages":    restored.Messages,
		})

	if opts.message != "" {
		result, err := a.ProcessMessage(ctx, providers.Message{
			Role:      providers.RoleUser,
			Content:   opts.message,
			ImageURLs: opts.images,
		})
		if err != nil {
			return err
		}
		fmt.Printf("\n🤖 %s\n", result.Content)
		return nil
	}

	fmt.Printf("🤖 Interactive mode (Ctrl+C to exit)\n\n")
	interactiveMode(ctx, a)
	return nil
}

// interactiveMode feeds REPL lines to the agent through the message bus so
// the agent stays the only writer of its working context.
func interactiveMode(ctx context.Context, a *agent.Agent) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	mb := bus.NewMessageBus()
	defer mb.Close()
	go func() {
		_ = a.Run(ctx, mb)
	}()

	ask := func(input string) {
		if !mb.PublishInbound(bus.InboundMessage{RequestID: uuid.NewString(), Content: input}) {
			fmt.Println("Error: agent is busy, message dropped")
			return
		}
		out, ok := mb.SubscribeOutbound(ctx)
		if !ok {
			return
		}
		if out.Error != "" {
			fmt.Printf("Error: %s\n", out.Error)
			return
		}
		if out.DidCompact {
			fmt.Println("(memory compacted)")
		}
		fmt.Printf("\n🤖 %s\n\n", out.Content)
	}

	prompt := fmt.Sprintf("%s You: ", appName)
	home, _ := os.UserHomeDir()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     filepath.Join(home, ".autobyteus", "history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Printf("Error initializing readline: %v\n", err)
		fmt.Println("Falling back to simple input mode...")
		simpleInteractiveMode(ask)
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Goodbye!")
			return
		}
		ask(input)
	}
}

func simpleInteractiveMode(ask func(string)) {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print(fmt.Sprintf("%s You: ", appName))
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Goodbye!")
			return
		}
		ask(input)
	}
}

func status(w io.Writer, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	mark := func(path string) string {
		if _, err := os.Stat(path); err == nil {
			return "✓"
		}
		return "✗"
	}

	fmt.Fprintf(w, "%s Status\n", appName)
	fmt.Fprintf(w, "Version: %s\n", formatVersion())
	build, _ := formatBuildInfo()
	if build != "" {
		fmt.Fprintf(w, "Build: %s\n", build)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Config:", configPath, mark(configPath))
	fmt.Fprintln(w, "Workspace:", cfg.WorkspacePath(), mark(cfg.WorkspacePath()))
	memoryDB := agentStorePath(cfg)
	if _, err := os.Stat(memoryDB); err == nil {
		fmt.Fprintln(w, "Memory DB:", memoryDB, "✓")
	} else {
		fmt.Fprintln(w, "Memory DB:", memoryDB, "not initialized")
	}
	fmt.Fprintf(w, "Snapshot backend: %s\n", valueOr(cfg.Memory.SnapshotBackend, "file"))
	fmt.Fprintf(w, "Model: %s\n", cfg.Agent.Model)

	registry := providers.NewDefaultRegistry(nil)
	name, configured, mode, err := registry.CredentialStatus(cfg)
	if err != nil {
		fmt.Fprintf(w, "Provider: %s ✗ (%v)\n", providers.ActiveProviderName(cfg), err)
		return nil
	}
	credential := "not set"
	if configured {
		credential = "✓"
		if mode != "" {
			credential += " (" + mode + ")"
		}
	}
	fmt.Fprintf(w, "Provider: %s\n", name)
	fmt.Fprintln(w, "Credentials:", credential)
	return nil
}
