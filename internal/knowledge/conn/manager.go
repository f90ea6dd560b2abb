package conn

import (
	"context"
	"fmt"
	"sync"
	"time"

	kberr "github.com/jasonroberts79/cyberpunk-looter/internal/pkg/errors"
	"github.com/jasonroberts79/cyberpunk-looter/internal/platform/logger"
)

// Statement is one parameterized Cypher statement. Batched statements run
// inside a single write transaction.
type Statement struct {
	Cypher string
	Params map[string]any
}

// Session is the narrow surface every component uses to reach the graph
// store. Wrapping the driver here keeps reconnect logic independent of
// driver error types.
type Session interface {
	Run(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
	RunBatch(ctx context.Context, statements []Statement) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Dialer establishes a fresh session. platform/neo4jdb provides the real
// one; tests inject fakes.
type Dialer func(ctx context.Context) (Session, error)

// Manager owns the session lifecycle: health-checked reuse, reconnect with
// exponential backoff, and a hard attempt ceiling. All store access routes
// through Ensure so one reconnect benefits every in-flight caller.
type Manager struct {
	log    *logger.Logger
	dial   Dialer
	policy RetryPolicy
	sleep  func(ctx context.Context, d time.Duration) error

	mu   sync.Mutex
	sess Session
}

func NewManager(log *logger.Logger, dial Dialer, policy RetryPolicy) *Manager {
	return &Manager{
		log:    log.With("component", "GraphConn"),
		dial:   dial,
		policy: policy,
		sleep:  sleepCtx,
	}
}

// Ensure returns a usable session, dialing and health-checking as needed.
// Health is a trivial round-trip query, not just a successful handshake.
// Once the policy's attempts are spent it fails with ErrConnectionExhausted.
func (m *Manager) Ensure(ctx context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess != nil {
		if err := m.sess.Ping(ctx); err == nil {
			return m.sess, nil
		}
		m.log.Warn("Graph session failed health check; reconnecting")
		_ = m.sess.Close(ctx)
		m.sess = nil
	}

	// MaxAttempts counts retries after the initial try: with 5 attempts and
	// base 1s the delay sequence is 1,2,4,8,16 and the sixth failure is
	// terminal.
	var lastErr error
	for attempt := 0; attempt <= m.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := m.policy.DelayFor(attempt - 1)
			m.log.Warn("Retrying graph connection",
				"attempt", attempt,
				"max_attempts", m.policy.MaxAttempts,
				"delay", delay.String(),
				"error", lastErr.Error(),
			)
			if err := m.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		sess, err := m.dial(ctx)
		if err != nil {
			lastErr = fmt.Errorf("%w: dial: %v", kberr.ErrConnection, err)
			continue
		}
		if err := sess.Ping(ctx); err != nil {
			_ = sess.Close(ctx)
			lastErr = fmt.Errorf("%w: health check: %v", kberr.ErrConnection, err)
			continue
		}
		m.sess = sess
		if attempt > 0 {
			m.log.Info("Graph connection re-established", "retries", attempt)
		}
		return sess, nil
	}

	return nil, fmt.Errorf("%w after %d retries: %v", kberr.ErrConnectionExhausted, m.policy.MaxAttempts, lastErr)
}

// Invalidate drops the cached session so the next Ensure redials. Callers
// use it when a store operation fails mid-flight.
func (m *Manager) Invalidate(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess != nil {
		_ = m.sess.Close(ctx)
		m.sess = nil
	}
}

func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return nil
	}
	err := m.sess.Close(ctx)
	m.sess = nil
	return err
}

// SetSleep swaps the backoff sleeper; tests use it to record delays instead
// of waiting them out.
func (m *Manager) SetSleep(fn func(ctx context.Context, d time.Duration) error) {
	if fn != nil {
		m.sleep = fn
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
