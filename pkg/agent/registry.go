package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/shelfd/shelfd/internal/logger"
	"github.com/shelfd/shelfd/pkg/audit"
)

// ErrUnknownTool rejects calls to unregistered tool names.
var ErrUnknownTool = errors.New("unknown tool")

// HandlerFunc executes one tool call. args is the raw JSON argument
// object from the transport.
type HandlerFunc func(ctx context.Context, agentID string, args json.RawMessage) (any, error)

// Tool is one registered tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
	Handler     HandlerFunc
}

// Registry holds the tool set. Registration happens at startup; calls
// after that only read.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool. Duplicate names are a wiring bug and rejected.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" || t.Handler == nil {
		return errors.New("tool needs a name and a handler")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[t.Name]; ok {
		return fmt.Errorf("tool %s already registered", t.Name)
	}
	r.tools[t.Name] = &t
	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// ToolInfo is the listable description of a tool.
type ToolInfo struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"input_schema,omitempty"`
}

// List returns all tools sorted by name.
func (r *Registry) List() []ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolInfo, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, ToolInfo{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// schemaFor reflects a JSON schema from an argument struct.
func schemaFor(v any) *jsonschema.Schema {
	reflector := jsonschema.Reflector{DoNotReference: true, Anonymous: true}
	return reflector.Reflect(v)
}

// Dispatcher runs tool calls through the rate limiter, the registry
// and the audit log.
type Dispatcher struct {
	registry *Registry
	limiter  *RateLimiter
	audit    *audit.Recorder
	metrics  *Metrics
}

// NewDispatcher wires the dispatcher. audit and metrics may be nil.
func NewDispatcher(registry *Registry, limiter *RateLimiter, rec *audit.Recorder, metrics *Metrics) *Dispatcher {
	return &Dispatcher{registry: registry, limiter: limiter, audit: rec, metrics: metrics}
}

// Tools lists the registered tools.
func (d *Dispatcher) Tools() []ToolInfo {
	return d.registry.List()
}

// Call admits, executes and audits one tool call.
func (d *Dispatcher) Call(ctx context.Context, agentID, toolName string, args json.RawMessage) (any, error) {
	if agentID == "" {
		agentID = AnonymousAgent
	}

	tool, ok := d.registry.Get(toolName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, toolName)
	}

	if d.limiter != nil {
		if _, err := d.limiter.Allow(agentID); err != nil {
			d.metrics.observeRateLimited()
			d.metrics.observeCall(toolName, "rate_limited")
			return nil, err
		}
	}

	result, err := tool.Handler(ctx, agentID, args)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		logger.DebugCtx(ctx, "tool call failed", "tool", toolName, "agent_id", agentID, "error", err)
	}
	d.metrics.observeCall(toolName, outcome)
	if d.audit != nil {
		d.audit.Record(ctx, audit.Entry{
			ActorType:  audit.ActorAI,
			ActorID:    agentID,
			Action:     audit.ActionAgentToolCalled,
			TargetType: "tool",
			TargetID:   toolName,
			Details:    map[string]any{"outcome": outcome},
		})
	}
	return result, err
}
