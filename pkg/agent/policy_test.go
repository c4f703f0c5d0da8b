package agent

import (
	"errors"
	"testing"
	"time"

	"github.com/shelfd/shelfd/pkg/models"
)

func TestPolicyDefaults(t *testing.T) {
	e := NewPolicyEngine(false)

	if err := e.CanRead("agent-1", "lib-1"); err != nil {
		t.Errorf("unknown libraries default to readable: %v", err)
	}
	if err := e.CanWrite("agent-1", &models.Library{ID: "lib-1", MCPWriteEnabled: true}); !errors.Is(err, ErrWriteDenied) {
		t.Errorf("expected default write denial, got %v", err)
	}

	permissive := NewPolicyEngine(true)
	if err := permissive.CanWrite("agent-1", &models.Library{ID: "lib-1", MCPWriteEnabled: true}); err != nil {
		t.Errorf("default write grant refused: %v", err)
	}
}

func TestPolicyWriteGate(t *testing.T) {
	e := NewPolicyEngine(true)
	e.Set("lib-1", Policy{ReadEnabled: true, WriteEnabled: true})

	// The library's mcp_write_enabled field is an AND-gate on top of
	// the policy.
	if err := e.CanWrite("agent-1", &models.Library{ID: "lib-1", MCPWriteEnabled: false}); !errors.Is(err, ErrWriteDenied) {
		t.Errorf("expected library gate denial, got %v", err)
	}
	if err := e.CanWrite("agent-1", &models.Library{ID: "lib-1", MCPWriteEnabled: true}); err != nil {
		t.Errorf("both gates open but denied: %v", err)
	}
}

func TestPolicyAllowedAgents(t *testing.T) {
	e := NewPolicyEngine(false)
	e.Set("lib-1", Policy{ReadEnabled: true, WriteEnabled: true, AllowedAgents: []string{"trusted"}})

	if err := e.CanRead("trusted", "lib-1"); err != nil {
		t.Errorf("listed agent refused: %v", err)
	}
	if err := e.CanRead("stranger", "lib-1"); !errors.Is(err, ErrReadDenied) {
		t.Errorf("expected read denial, got %v", err)
	}
	if err := e.CanWrite("stranger", &models.Library{ID: "lib-1", MCPWriteEnabled: true}); !errors.Is(err, ErrWriteDenied) {
		t.Errorf("expected write denial, got %v", err)
	}
}

func TestPolicyDenialsMapToAccessDenied(t *testing.T) {
	e := NewPolicyEngine(false)
	e.Set("lib-1", Policy{})

	if err := e.CanRead("a", "lib-1"); !errors.Is(err, models.ErrAccessDenied) {
		t.Errorf("read denial must wrap access denied, got %v", err)
	}
	if err := e.CanWrite("a", &models.Library{ID: "lib-1"}); !errors.Is(err, models.ErrAccessDenied) {
		t.Errorf("write denial must wrap access denied, got %v", err)
	}
}

func TestRateLimiter(t *testing.T) {
	l := NewRateLimiter(3, time.Minute)
	now := time.Unix(1700000000, 0)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		remaining, err := l.Allow("agent-1")
		if err != nil {
			t.Fatalf("call %d rejected: %v", i+1, err)
		}
		if want := 3 - i - 1; remaining != want {
			t.Errorf("call %d remaining = %d, want %d", i+1, remaining, want)
		}
	}

	_, err := l.Allow("agent-1")
	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if rle.Remaining != 0 || rle.RetryAfter <= 0 {
		t.Errorf("bad limit state: %+v", rle)
	}

	// Other agents have their own window.
	if _, err := l.Allow("agent-2"); err != nil {
		t.Errorf("independent agent rejected: %v", err)
	}

	// A rejected request is never charged: once the window slides past
	// the three admitted calls, exactly three slots free up.
	now = now.Add(61 * time.Second)
	for i := 0; i < 3; i++ {
		if _, err := l.Allow("agent-1"); err != nil {
			t.Fatalf("slot %d not freed: %v", i+1, err)
		}
	}
}

func TestRateLimiterDefaults(t *testing.T) {
	l := NewRateLimiter(0, 0)
	if l.limit != 100 || l.window != 60*time.Second {
		t.Errorf("defaults = %d/%s", l.limit, l.window)
	}
}
