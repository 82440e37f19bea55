package actor

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// process is the goroutine behind a single actor. It doubles as the actor's
// supervisor: panics are recovered here and the instance is rebuilt.
type process struct {
	sys      *System
	ref      *Ref
	props    Props
	restart  RestartPolicy
	actor    Actor
	parent   *process
	pool     *pool
	leased   bool
	children map[string]*Ref
	restarts []time.Time
	ctx      context.Context
	cancel   context.CancelFunc
}

func (p *process) run() {
	defer p.sys.wg.Done()
	defer p.terminate()

	// Stop interrupts a Receive blocked on the process context.
	go func() {
		select {
		case <-p.ref.stopCh:
			p.cancel()
		case <-p.ctx.Done():
		}
	}()

	for {
		select {
		case <-p.ref.stopCh:
			return
		case env := <-p.ref.mailbox:
			if !p.handle(env) {
				return
			}
		}
	}
}

// handle delivers one envelope and reports whether the actor keeps running.
func (p *process) handle(env Envelope) bool {
	switch m := env.Message.(type) {
	case poolDispatch:
		p.leased = true
		env = m.Envelope
	case ChildExited:
		if m.Child != nil {
			delete(p.children, m.Child.ID())
		}
	}

	c := &Context{proc: p, sender: env.Sender}
	keep, restarted := p.deliver(c, env)

	if _, exit := env.Message.(ExitRequest); exit || c.stopped {
		keep = false
	}

	if keep && p.pool != nil && p.leased && (!p.pool.cfg.Lease || c.released || restarted) {
		p.leased = false
		p.pool.checkin(p.ref)
	}
	return keep
}

func (p *process) deliver(c *Context, env Envelope) (keep, restarted bool) {
	defer func() {
		if r := recover(); r != nil {
			keep = p.supervise(env, r)
			restarted = keep
		}
	}()
	p.actor.Receive(c, env.Message)
	return true, false
}

// supervise handles a panic raised while processing env.
func (p *process) supervise(env Envelope, reason any) bool {
	slog.Error("Actor panicked", "actor", p.ref.String(), "message", fmt.Sprintf("%T", env.Message), "panic", reason)

	if env.Sender != nil {
		if _, poison := env.Message.(PoisonMessage); !poison {
			_ = env.Sender.Tell(PoisonMessage{Message: env.Message, Reason: fmt.Sprint(reason)}, p.ref)
		}
	}

	if !p.allowRestart(time.Now()) {
		slog.Warn("Actor exceeded restart budget, stopping", "actor", p.ref.String(), "max_restarts", p.restart.MaxRestarts)
		return false
	}

	p.actor = p.props.New()
	slog.Info("Actor restarted", "actor", p.ref.String(), "restarts", len(p.restarts))
	return true
}

func (p *process) allowRestart(now time.Time) bool {
	if p.restart.MaxRestarts < 0 {
		return false
	}
	cutoff := now.Add(-p.restart.Window)
	kept := p.restarts[:0]
	for _, t := range p.restarts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	p.restarts = kept
	if len(p.restarts) >= p.restart.MaxRestarts {
		return false
	}
	p.restarts = append(p.restarts, now)
	return true
}

func (p *process) terminate() {
	p.cancel()
	for _, child := range p.children {
		child.Stop()
	}
	p.sys.unregister(p.ref)
	p.ref.markDone()
	p.ref.drain()

	if p.pool != nil {
		p.pool.exited(p.ref)
	}
	if p.parent != nil {
		_ = p.parent.ref.Tell(ChildExited{Child: p.ref}, nil)
	}
	slog.Debug("Actor stopped", "actor", p.ref.String())
}
