// Package agent exposes the capability-gated tool surface used by AI
// agents: per-library policies, a per-agent rate limiter, a tool
// registry and the SSE and plain HTTP transports.
package agent

import (
	"fmt"
	"sync"

	"github.com/shelfd/shelfd/pkg/models"
)

// AnonymousAgent identifies calls without an agent id header.
const AnonymousAgent = "anonymous"

// Typed denials. Both wrap models.ErrAccessDenied so handlers map them
// to 403 without knowing about this package.
var (
	ErrReadDenied  = fmt.Errorf("agent read access denied: %w", models.ErrAccessDenied)
	ErrWriteDenied = fmt.Errorf("agent write access denied: %w", models.ErrAccessDenied)
)

// Policy is the per-library capability grant. An empty AllowedAgents
// list admits every agent.
type Policy struct {
	ReadEnabled   bool     `json:"read_enabled" mapstructure:"read_enabled"`
	WriteEnabled  bool     `json:"write_enabled" mapstructure:"write_enabled"`
	AllowedAgents []string `json:"allowed_agents,omitempty" mapstructure:"allowed_agents"`
}

// PolicyEngine resolves per-library policies. Libraries without an
// explicit policy get {read=true, write=defaultWrite}.
type PolicyEngine struct {
	mu           sync.RWMutex
	policies     map[string]Policy
	defaultWrite bool
}

// NewPolicyEngine creates the engine with the configured default write
// grant for unknown libraries.
func NewPolicyEngine(defaultWrite bool) *PolicyEngine {
	return &PolicyEngine{
		policies:     make(map[string]Policy),
		defaultWrite: defaultWrite,
	}
}

// Set installs an explicit policy for a library.
func (e *PolicyEngine) Set(libraryID string, p Policy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policies[libraryID] = p
}

func (e *PolicyEngine) policy(libraryID string) Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if p, ok := e.policies[libraryID]; ok {
		return p
	}
	return Policy{ReadEnabled: true, WriteEnabled: e.defaultWrite}
}

func (p Policy) admits(agentID string) bool {
	if len(p.AllowedAgents) == 0 {
		return true
	}
	for _, a := range p.AllowedAgents {
		if a == agentID {
			return true
		}
	}
	return false
}

// CanRead checks read access for one agent against one library.
func (e *PolicyEngine) CanRead(agentID, libraryID string) error {
	p := e.policy(libraryID)
	if !p.ReadEnabled || !p.admits(agentID) {
		return fmt.Errorf("library %s: %w", libraryID, ErrReadDenied)
	}
	return nil
}

// CanWrite checks write access. The library's mcp_write_enabled field
// is an additional AND-gate: policy and library must both allow it.
func (e *PolicyEngine) CanWrite(agentID string, lib *models.Library) error {
	p := e.policy(lib.ID)
	if !p.WriteEnabled || !p.admits(agentID) || !lib.MCPWriteEnabled {
		return fmt.Errorf("library %s: %w", lib.ID, ErrWriteDenied)
	}
	return nil
}
