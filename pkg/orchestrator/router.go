package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"orbit/pkg/actor"
	"orbit/pkg/chain"
	"orbit/pkg/messages"
	"orbit/pkg/monitor"

	"github.com/google/uuid"
)

// Name is the global actor name of the orchestrator pool.
const Name = "Orchestrator"

// ErrUnexpectedReply is returned when the orchestrator answers with
// something other than messages.Answer.
var ErrUnexpectedReply = errors.New("orchestrator: unexpected reply")

// RouterOptions sizes the orchestrator pool.
type RouterOptions struct {
	Pool    actor.PoolConfig
	Restart actor.RestartPolicy
	// DefaultTimeout applies when Ask is called without a timeout.
	DefaultTimeout time.Duration
}

// Router is the caller API: it turns a question into an Answer.
type Router struct {
	sys     *actor.System
	ref     *actor.Ref
	timeout time.Duration
}

// NewRouter spawns the orchestrator pool. Workers are leased for a whole
// round trip. Each query carries its caller's deadline and the lease follows
// it; DefaultTimeout only bounds queries that arrive without one.
func NewRouter(sys *actor.System, responders Lookup, classifierName string, classifierProps actor.Props, opts RouterOptions) (*Router, error) {
	pool := opts.Pool
	pool.Lease = true
	// queries without a deadline
	if pool.LeaseTimeout <= 0 {
		pool.LeaseTimeout = opts.DefaultTimeout
	}

	newChain := func() chain.Handler {
		return NewChain(classifierName, classifierProps, responders)
	}
	ref, err := sys.SpawnNamed(Name, Props(newChain, &pool, opts.Restart))
	if err != nil {
		return nil, fmt.Errorf("spawn orchestrator pool: %w", err)
	}
	return &Router{sys: sys, ref: ref, timeout: opts.DefaultTimeout}, nil
}

// Ask routes text and waits for the answer. A zero timeout uses the
// router's default; on expiry actor.ErrTimeout is returned.
func (r *Router) Ask(ctx context.Context, text string, timeout time.Duration) (messages.Answer, error) {
	if timeout <= 0 {
		timeout = r.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	id := uuid.NewString()
	ctx = monitor.WithQueryID(ctx, id)
	start := time.Now()
	slog.InfoContext(ctx, "Query received", "chars", len(text))

	q := messages.Query{ID: id, Text: text}
	if dl, ok := ctx.Deadline(); ok {
		q.Deadline = dl
	}
	reply, err := r.sys.Ask(ctx, r.ref, q)
	if err != nil {
		slog.WarnContext(ctx, "Query failed", "error", err, "elapsed", time.Since(start))
		return messages.Answer{QueryID: id}, err
	}

	switch m := reply.(type) {
	case messages.Answer:
		slog.InfoContext(ctx, "Query answered", "responder", m.Responder, "elapsed", time.Since(start))
		return m, nil
	case actor.PoisonMessage:
		return messages.Answer{QueryID: id}, fmt.Errorf("%w: orchestrator failed: %s", ErrUnexpectedReply, m.Reason)
	default:
		return messages.Answer{QueryID: id}, fmt.Errorf("%w: %T", ErrUnexpectedReply, reply)
	}
}
