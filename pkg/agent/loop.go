package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/AutoByteus/autobyteus-sub000/pkg/bus"
	"github.com/AutoByteus/autobyteus-sub000/pkg/logger"
	"github.com/AutoByteus/autobyteus-sub000/pkg/memory"
	"github.com/AutoByteus/autobyteus-sub000/pkg/providers"
	"github.com/AutoByteus/autobyteus-sub000/pkg/tools"
)

const (
	defaultMaxIterations  = 20
	emptyResponseFallback = "I've completed processing but have no response to give."
	maxIterationsResponse = "I paused because I reached the maximum number of tool iterations for this turn. Ask me to continue if you want me to keep going."
)

// Options wires an Agent. Provider and Memory are required.
type Options struct {
	Provider      providers.LLMProvider
	Model         string
	Memory        *memory.Manager
	Tools         *tools.ToolRegistry
	LLM           providers.LLMConfig
	SystemPrompt  string
	MaxIterations int
	// Closers run in reverse order on Close.
	Closers []func() error
}

// Agent runs conversation turns against one memory manager. Turns are
// serialized, so the agent is the single writer of its working context.
type Agent struct {
	provider      providers.LLMProvider
	model         string
	memory        *memory.Manager
	assembler     *LLMRequestAssembler
	bootstrapper  *memory.Bootstrapper
	tools         *tools.ToolRegistry
	options       map[string]interface{}
	systemPrompt  string
	maxIterations int
	closers       []func() error

	turnMu  sync.Mutex
	started bool
	running atomic.Bool

	closeOnce sync.Once
	closeErr  error
}

// TurnResult describes a completed turn.
type TurnResult struct {
	TurnID     string
	Content    string
	Iterations int
	DidCompact bool
	Usage      *providers.UsageInfo
}

func New(opts Options) (*Agent, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("agent: provider is required")
	}
	if opts.Memory == nil {
		return nil, fmt.Errorf("agent: memory manager is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = opts.Provider.GetDefaultModel()
	}
	maxIterations := opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	registry := opts.Tools
	if registry == nil {
		registry = tools.NewToolRegistry()
	}
	return &Agent{
		provider:      opts.Provider,
		model:         model,
		memory:        opts.Memory,
		assembler:     NewLLMRequestAssembler(opts.Memory, opts.Provider.Renderer()),
		bootstrapper:  memory.NewBootstrapper(nil, nil),
		tools:         registry,
		options:       opts.LLM.Options(),
		systemPrompt:  opts.SystemPrompt,
		maxIterations: maxIterations,
		closers:       opts.Closers,
	}, nil
}

func (a *Agent) Memory() *memory.Manager    { return a.memory }
func (a *Agent) Model() string              { return a.model }
func (a *Agent) SystemPrompt() string       { return a.systemPrompt }
func (a *Agent) Tools() *tools.ToolRegistry { return a.tools }

// Start restores the working context from the snapshot cache or the item
// store. Turns call it implicitly when it has not run.
func (a *Agent) Start(ctx context.Context) (memory.BootstrapResult, error) {
	a.turnMu.Lock()
	defer a.turnMu.Unlock()
	return a.start(ctx)
}

func (a *Agent) start(ctx context.Context) (memory.BootstrapResult, error) {
	result, err := a.bootstrapper.Bootstrap(ctx, a.memory, a.systemPrompt, memory.BootstrapOptions{})
	if err != nil {
		return result, fmt.Errorf("bootstrap working context: %w", err)
	}
	a.started = true
	return result, nil
}

// ProcessTurn runs one text-only turn.
func (a *Agent) ProcessTurn(ctx context.Context, input string) (*TurnResult, error) {
	return a.ProcessMessage(ctx, providers.UserMessage(input))
}

// ProcessMessage runs one turn: it records the input, assembles the request
// and keeps calling the model until it answers without tool calls.
func (a *Agent) ProcessMessage(ctx context.Context, input providers.Message) (*TurnResult, error) {
	a.turnMu.Lock()
	defer a.turnMu.Unlock()

	if !a.started {
		if _, err := a.start(ctx); err != nil {
			return nil, err
		}
	}

	turnID := a.memory.NewTurnID()
	if err := a.memory.IngestUserMessage(ctx, turnID, input.Content); err != nil {
		return nil, err
	}
	pkg, err := a.assembler.PrepareMessage(ctx, input, turnID, a.systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("prepare request: %w", err)
	}

	result := &TurnResult{TurnID: turnID, DidCompact: pkg.DidCompact}
	guard := tools.NewLoopGuard()
	toolDefs := a.tools.ToProviderDefs()
	overflowRetried := false

	for result.Iterations < a.maxIterations {
		result.Iterations++

		logger.DebugCF("agent", "LLM iteration",
			map[string]interface{}{
				"turn_id":        turnID,
				"iteration":      result.Iterations,
				"max":            a.maxIterations,
				"messages_count": len(pkg.Messages),
				"tools_count":    len(toolDefs),
			})

		response, err := a.provider.Chat(ctx, pkg.RenderedPayload, toolDefs, a.model, a.options)
		if err != nil {
			if providers.IsContextOverflow(err) && !overflowRetried {
				overflowRetried = true
				logger.WarnCF("agent", "Context window exceeded, compacting and retrying",
					map[string]interface{}{
						"turn_id": turnID,
						"error":   err.Error(),
					})
				pkg, err = a.assembler.CompactInFlight(ctx, turnID, a.systemPrompt)
				if err != nil {
					return nil, fmt.Errorf("compact after context overflow: %w", err)
				}
				result.DidCompact = true
				continue
			}
			logger.ErrorCF("agent", "LLM call failed",
				map[string]interface{}{
					"turn_id":   turnID,
					"iteration": result.Iterations,
					"error":     err.Error(),
				})
			return nil, fmt.Errorf("LLM call failed: %w", err)
		}
		if response == nil {
			return nil, errors.New("LLM call returned no response")
		}
		result.Usage = response.Usage
		a.observeUsage(response, pkg.Messages)

		if len(response.ToolCalls) == 0 {
			logger.InfoCF("agent", "LLM response without tool calls (direct answer)",
				map[string]interface{}{
					"turn_id":       turnID,
					"iteration":     result.Iterations,
					"content_chars": len(response.Content),
				})
			return a.finish(ctx, result, response.Content, response.ReasoningContent)
		}

		if stop, message := guard.Observe(response.ToolCalls, result.Iterations); stop {
			return a.finish(ctx, result, message, "")
		}

		toolNames := make([]string, 0, len(response.ToolCalls))
		for _, tc := range response.ToolCalls {
			toolNames = append(toolNames, tc.Name)
		}
		logger.InfoCF("agent", "LLM requested tool calls",
			map[string]interface{}{
				"turn_id":   turnID,
				"tools":     toolNames,
				"iteration": result.Iterations,
			})

		if err := a.memory.IngestToolCalls(ctx, turnID, response.ToolCalls); err != nil {
			return nil, err
		}
		toolCtx := tools.WithExecutionContext(ctx, a.memory.AgentID(), turnID)
		for _, tc := range response.ToolCalls {
			toolResult := a.tools.Execute(toolCtx, tc.Name, tc.Arguments)
			value, toolErr := toolResult.Payload()
			if err := a.memory.IngestToolResult(ctx, turnID, tc.ID, tc.Name, value, toolErr); err != nil {
				return nil, err
			}
		}

		pkg, err = a.assembler.Render(ctx)
		if err != nil {
			return nil, err
		}
	}

	logger.WarnCF("agent", "Tool iteration limit reached",
		map[string]interface{}{
			"turn_id":    turnID,
			"iterations": result.Iterations,
		})
	return a.finish(ctx, result, maxIterationsResponse, "")
}

func (a *Agent) finish(ctx context.Context, result *TurnResult, content, reasoning string) (*TurnResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		content = emptyResponseFallback
	}
	if err := a.memory.IngestAssistantResponse(ctx, result.TurnID, content, reasoning); err != nil {
		return nil, err
	}
	result.Content = content
	return result, nil
}

// observeUsage feeds the reported prompt size to the memory manager, or an
// estimate of the request when the provider reports none.
func (a *Agent) observeUsage(response *providers.LLMResponse, sent []providers.Message) {
	promptTokens := 0
	if response.Usage != nil {
		promptTokens = response.Usage.PromptTokens
	}
	if promptTokens <= 0 {
		promptTokens = memory.EstimateTokens(sent)
	}
	a.memory.ObserveTokenUsage(promptTokens)
}

// Run serves turn requests from the bus until ctx is done, the bus closes or
// Stop is called.
func (a *Agent) Run(ctx context.Context, mb *bus.MessageBus) error {
	a.running.Store(true)
	defer a.running.Store(false)

	for a.running.Load() {
		msg, ok := mb.ConsumeInbound(ctx)
		if !ok {
			return nil
		}

		out := bus.OutboundMessage{RequestID: msg.RequestID}
		result, err := a.ProcessMessage(ctx, providers.Message{
			Role:      providers.RoleUser,
			Content:   msg.Content,
			ImageURLs: msg.ImageURLs,
			AudioURLs: msg.AudioURLs,
			VideoURLs: msg.VideoURLs,
		})
		if err != nil {
			out.Error = err.Error()
		} else {
			out.TurnID = result.TurnID
			out.Content = result.Content
			out.DidCompact = result.DidCompact
		}
		if !mb.PublishOutbound(out) {
			logger.WarnCF("agent", "Turn result dropped",
				map[string]interface{}{
					"request_id": msg.RequestID,
					"turn_id":    out.TurnID,
				})
		}
	}
	return nil
}

func (a *Agent) Stop() {
	a.running.Store(false)
}

// Close releases the agent's resources. It is safe to call more than once.
func (a *Agent) Close() error {
	a.closeOnce.Do(func() {
		var errs []error
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}
