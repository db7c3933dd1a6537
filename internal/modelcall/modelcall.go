// Package modelcall is the single place orchestrator and agentloop go to
// issue a chat completion. It resolves which model answers for a given
// role, walks the configured fallback chain on failure, and collects a
// full message out of a provider's streamed chunks the same way
// internal/session/title.go does for title generation — except here the
// chunks may carry tool-call deltas too, so chunks are merged with
// schema.ConcatMessages instead of concatenating Content alone.
package modelcall

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudwego/eino/schema"

	"github.com/localmind/cortex/internal/errs"
	"github.com/localmind/cortex/internal/provider"
	"github.com/localmind/cortex/pkg/types"
)

// StaticResponseSentinel is the fallback-chain entry that short-circuits
// the chain: instead of trying another model, the caller gets a fixed
// reply. Configuration files spell this as "static_response".
const StaticResponseSentinel = "static_response"

// StaticResponseText is what a caller receives when the fallback chain
// reaches the static_response sentinel.
const StaticResponseText = "I'm unable to reach a model right now. Please check the configured endpoints and try again."

// Role names understood by ResolveModel. These match the
// OrchestratorConfig field names they read from, not a fixed enum in the
// config schema.
const (
	RolePlanner     = "planner"
	RoleRouter      = "router"
	RoleSynthesizer = "synthesizer"
	RoleGeneral     = "general"
)

// Options carries the per-call sampling parameters. Callers set these
// explicitly per role (e.g. planner calls use Temperature 0.1, TopP 0.2)
// rather than relying on a package default.
type Options struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
	Tools       []*schema.ToolInfo
	// OnChunk, when set, is called with every raw chunk a provider streams
	// before it is merged into the final message — the agent loop uses this
	// to publish stream.token events incrementally rather than waiting for
	// the whole completion.
	OnChunk func(*schema.Message)
}

// Caller resolves models by role and issues completions against the
// fallback chain.
type Caller struct {
	Providers *provider.Registry
	Config    *types.Config
}

// New builds a Caller.
func New(providers *provider.Registry, config *types.Config) *Caller {
	return &Caller{Providers: providers, Config: config}
}

// roleModel returns the model name configured for a role, falling back to
// the active model when the role has no dedicated entry.
func (c *Caller) roleModel(role string) string {
	if c.Config == nil {
		return ""
	}
	if c.Config.Orchestrator != nil {
		switch role {
		case RolePlanner, RoleSynthesizer:
			if c.Config.Orchestrator.PlannerModel != "" {
				return c.Config.Orchestrator.PlannerModel
			}
		case RoleRouter:
			if c.Config.Orchestrator.RouterModel != "" {
				return c.Config.Orchestrator.RouterModel
			}
		}
	}
	return c.Config.ActiveModel
}

// Chain builds the ordered list of model names to try for a role: the
// role's model first, then the configured fallback chain, deduplicated
// while preserving first-seen order.
func (c *Caller) Chain(role string) []string {
	seen := make(map[string]bool)
	var chain []string
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		chain = append(chain, name)
	}

	add(c.roleModel(role))
	if c.Config != nil {
		for _, name := range c.Config.FallbackChain {
			add(name)
		}
	}
	return chain
}

// Result is the outcome of a successful Complete call.
type Result struct {
	Message *schema.Message
	// Model is the chain entry that produced Message. It is
	// StaticResponseSentinel when the chain bottomed out to the canned
	// reply instead of reaching a real provider.
	Model string
	// Tried lists every chain entry attempted before Model succeeded.
	Tried []string
}

// Complete resolves the fallback chain for role and returns the first
// full message a provider streams successfully. It merges streamed
// chunks with schema.ConcatMessages rather than concatenating only
// Content, since unlike title generation these calls can carry streamed
// tool-call deltas.
func (c *Caller) Complete(ctx context.Context, role string, messages []*schema.Message, opts Options) (*Result, error) {
	chain := c.Chain(role)
	if len(chain) == 0 {
		return nil, &errs.AllModelsUnavailableError{Tried: nil}
	}

	var tried []string
	for _, name := range chain {
		if name == StaticResponseSentinel {
			return &Result{
				Message: &schema.Message{Role: schema.Assistant, Content: StaticResponseText},
				Model:   StaticResponseSentinel,
				Tried:   tried,
			}, nil
		}

		tried = append(tried, name)

		msg, err := c.complete(ctx, name, messages, opts)
		if err != nil {
			continue
		}
		return &Result{Message: msg, Model: name, Tried: tried}, nil
	}

	return nil, &errs.AllModelsUnavailableError{Tried: tried}
}

// complete drives a single provider's stream to completion.
func (c *Caller) complete(ctx context.Context, modelName string, messages []*schema.Message, opts Options) (*schema.Message, error) {
	prov, err := c.Providers.Get(modelName)
	if err != nil {
		return nil, &errs.ConnectionFailedError{Endpoint: modelName, Message: err.Error()}
	}

	maxTokens := opts.MaxTokens
	if maxTokens == 0 && c.Config != nil {
		if cfg, ok := c.Config.Models[modelName]; ok {
			maxTokens = cfg.MaxTokens
		}
	}

	stream, err := prov.CreateCompletion(ctx, &provider.CompletionRequest{
		Model:       modelName,
		Messages:    messages,
		Tools:       opts.Tools,
		MaxTokens:   maxTokens,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
	})
	if err != nil {
		return nil, &errs.ConnectionFailedError{Endpoint: modelName, Message: err.Error()}
	}
	defer stream.Close()

	var chunks []*schema.Message
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &errs.StreamError{Message: err.Error()}
		}
		if opts.OnChunk != nil {
			opts.OnChunk(chunk)
		}
		chunks = append(chunks, chunk)
	}

	if len(chunks) == 0 {
		return &schema.Message{Role: schema.Assistant}, nil
	}

	msg, err := schema.ConcatMessages(chunks)
	if err != nil {
		return nil, &errs.StreamError{Message: fmt.Sprintf("concatenating stream chunks: %v", err)}
	}
	return msg, nil
}
