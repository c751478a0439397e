// Package breaker keeps a per-tool cooldown so a collaborator that is missing
// or broken is skipped for a while instead of being spawned for every
// document. Cooldowns grow exponentially: base, 2*base, 4*base up to max.
package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfconsolidator/internal/metrics"
)

// Default cooldown bounds.
const (
	DefaultBase = 30 * time.Second
	DefaultMax  = 5 * time.Minute
)

// Breaker is the state store used by the strategy chain.
type Breaker interface {
	// IsOpen reports whether tool is cooling down and should be skipped.
	IsOpen(ctx context.Context, tool string) bool
	// Open records an environment failure of tool and starts or extends its cooldown.
	Open(ctx context.Context, tool string)
	// Close resets tool after a successful invocation.
	Close(ctx context.Context, tool string)
}

func backoff(base, max time.Duration, failures int) time.Duration {
	d := base
	for i := 1; i < failures; i++ {
		d *= 2
		if d > max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

type entry struct {
	failures int
	retryAt  time.Time
	halfOpen bool
}

// Memory is a process-local Breaker.
type Memory struct {
	mu          sync.Mutex
	state       map[string]*entry
	baseBackoff time.Duration
	maxBackoff  time.Duration
	now         func() time.Time
}

func NewMemory(baseBackoff, maxBackoff time.Duration) *Memory {
	if baseBackoff <= 0 {
		baseBackoff = DefaultBase
	}
	if maxBackoff < baseBackoff {
		maxBackoff = baseBackoff
	}
	return &Memory{state: map[string]*entry{}, baseBackoff: baseBackoff, maxBackoff: maxBackoff, now: time.Now}
}

func (m *Memory) IsOpen(_ context.Context, tool string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.state[tool]
	if !ok || e.halfOpen {
		return false
	}
	if !m.now().Before(e.retryAt) {
		// cooldown expired, allow one probe
		e.halfOpen = true
		log.Info().Str("tool", tool).Msg("circuit breaker moved to HALF-OPEN")
		return false
	}
	return true
}

func (m *Memory) Open(_ context.Context, tool string) {
	m.mu.Lock()
	e, ok := m.state[tool]
	if !ok {
		e = &entry{}
		m.state[tool] = e
	}
	e.failures++
	e.halfOpen = false
	cooldown := backoff(m.baseBackoff, m.maxBackoff, e.failures)
	e.retryAt = m.now().Add(cooldown)
	failures := e.failures
	m.mu.Unlock()

	metrics.BreakerOpened(tool)
	log.Warn().Str("tool", tool).Dur("cooldown", cooldown).Int("failures", failures).Msg("circuit breaker OPENED")
}

func (m *Memory) Close(_ context.Context, tool string) {
	m.mu.Lock()
	_, ok := m.state[tool]
	delete(m.state, tool)
	m.mu.Unlock()
	if ok {
		metrics.BreakerClosed(tool)
		log.Info().Str("tool", tool).Msg("circuit breaker CLOSED (reset)")
	}
}

// Nop never opens.
type Nop struct{}

func (Nop) IsOpen(context.Context, string) bool { return false }
func (Nop) Open(context.Context, string)        {}
func (Nop) Close(context.Context, string)       {}
