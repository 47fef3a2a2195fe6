// Package session keeps the per-conversation state that surrounds the
// query core: bounded message history and the single-slot memory of the
// previous plan.
//
// The state is an explicit value passed to whatever drives the
// conversation, never ambient global state, so the core loader and
// engine stay free of session concerns. Nothing here persists across
// process restarts.
package session

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/tabq/internal/plan"
)

// DefaultHistory bounds each message buffer when the caller does not say
// otherwise.
const DefaultHistory = 5

// Memory keeps a bounded chat history and the latest plan. User and
// assistant messages live in separate buffers; they play different roles
// when the history is replayed.
type Memory struct {
	maxUser int
	maxBot  int
	logger  *slog.Logger

	userMessages []string
	botMessages  []string
	lastPlan     *plan.Plan
}

// Option configures a Memory.
type Option func(*Memory)

// WithLimits bounds the user and assistant buffers.
func WithLimits(maxUser, maxBot int) Option {
	return func(m *Memory) {
		if maxUser > 0 {
			m.maxUser = maxUser
		}
		if maxBot > 0 {
			m.maxBot = maxBot
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Memory) { m.logger = logger }
}

// NewMemory creates an empty session memory.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		maxUser: DefaultHistory,
		maxBot:  DefaultHistory,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// PushUser stores a user message, evicting the oldest beyond the limit.
func (m *Memory) PushUser(text string) {
	m.userMessages = appendBounded(m.userMessages, text, m.maxUser)
	m.logger.Debug("session: stored user message", "count", len(m.userMessages))
}

// PushBot stores an assistant message, evicting the oldest beyond the
// limit.
func (m *Memory) PushBot(text string) {
	m.botMessages = appendBounded(m.botMessages, text, m.maxBot)
	m.logger.Debug("session: stored assistant message", "count", len(m.botMessages))
}

// SetLastPlan stores the most recent successfully executed plan. The
// plan producer uses it to resolve follow-ups; this core never does.
func (m *Memory) SetLastPlan(p plan.Plan) {
	m.lastPlan = &p
	m.logger.Debug("session: updated last plan", "intent", p.Intent)
}

// LastPlan returns the previous plan and whether one exists.
func (m *Memory) LastPlan() (plan.Plan, bool) {
	if m.lastPlan == nil {
		return plan.Plan{}, false
	}
	return *m.lastPlan, true
}

// LastPlanJSON returns the previous plan as JSON, or "null" when no plan
// has been stored yet.
func (m *Memory) LastPlanJSON() string {
	if m.lastPlan == nil {
		return "null"
	}
	return m.lastPlan.JSON()
}

// Clear drops history and the last plan.
func (m *Memory) Clear() {
	m.userMessages = nil
	m.botMessages = nil
	m.lastPlan = nil
	m.logger.Debug("session: cleared all state")
}

// HistoryString formats up to maxTurns paired turns for replay:
//
//	User: ...
//	Assistant: ...
//
// When the buffers differ in length only complete pairs are included.
func (m *Memory) HistoryString(maxTurns int) string {
	u := tail(m.userMessages, maxTurns)
	b := tail(m.botMessages, maxTurns)

	n := min(len(u), len(b))
	pairs := make([]string, 0, n)
	for i := 0; i < n; i++ {
		pairs = append(pairs, fmt.Sprintf("User: %s\nAssistant: %s", u[i], b[i]))
	}
	return strings.Join(pairs, "\n\n")
}

func appendBounded(buf []string, text string, limit int) []string {
	buf = append(buf, text)
	if len(buf) > limit {
		buf = buf[len(buf)-limit:]
	}
	return buf
}

func tail(buf []string, n int) []string {
	if n <= 0 || len(buf) <= n {
		return buf
	}
	return buf[len(buf)-n:]
}
