// Package actor is a small message-passing runtime. Every actor owns a bounded
// mailbox and a single goroutine, so Receive is never entered concurrently for
// the same instance. Actors talk only through Refs.
package actor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrTimeout is returned by Ask when no reply arrived before the deadline.
	ErrTimeout = errors.New("actor: ask timed out")
	// ErrStopped is returned when the recipient has already stopped.
	ErrStopped = errors.New("actor: recipient stopped")
	// ErrNoRecipient is returned when sending to a nil Ref.
	ErrNoRecipient = errors.New("actor: nil recipient")
	// ErrSystemClosed is returned by Spawn after Shutdown.
	ErrSystemClosed = errors.New("actor: system shut down")
)

const (
	defaultMailboxSize   = 64
	defaultMaxRestarts   = 3
	defaultRestartWindow = time.Minute
)

// Actor processes one message at a time.
type Actor interface {
	Receive(ctx *Context, msg any)
}

// ReceiveFunc adapts a plain function to the Actor interface.
type ReceiveFunc func(ctx *Context, msg any)

// Receive implements Actor.
func (f ReceiveFunc) Receive(ctx *Context, msg any) { f(ctx, msg) }

// RestartPolicy bounds how often a panicking actor is rebuilt. A negative
// MaxRestarts disables restarts entirely.
type RestartPolicy struct {
	MaxRestarts int
	Window      time.Duration
}

func (r RestartPolicy) normalize() RestartPolicy {
	if r.MaxRestarts == 0 {
		r.MaxRestarts = defaultMaxRestarts
	}
	if r.Window <= 0 {
		r.Window = defaultRestartWindow
	}
	return r
}

// Props describes how to build an actor. When Pool is set the spawned Ref
// fronts a pool of workers built from New.
type Props struct {
	New         func() Actor
	Pool        *PoolConfig
	Restart     RestartPolicy
	MailboxSize int
}

// PropsFunc builds Props for a stateless receive function.
func PropsFunc(f ReceiveFunc) Props {
	return Props{New: func() Actor { return f }}
}

func (p Props) validate() error {
	if p.New == nil {
		return errors.New("actor: props without constructor")
	}
	if p.Pool != nil {
		return p.Pool.validate()
	}
	return nil
}

// Envelope is a message together with the Ref replies should go to.
type Envelope struct {
	Message any
	Sender  *Ref
}

// Ref is the address of an actor or pool. The zero value is not usable.
type Ref struct {
	id       string
	name     string
	mailbox  chan Envelope
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	doneOnce sync.Once
	sys      *System
}

func newRef(sys *System, id, name string, size int) *Ref {
	return &Ref{
		id:      id,
		name:    name,
		mailbox: make(chan Envelope, size),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
		sys:     sys,
	}
}

// ID returns the unique identifier of the actor.
func (r *Ref) ID() string { return r.id }

// Name returns the global name, or the kind for unnamed actors.
func (r *Ref) Name() string { return r.name }

func (r *Ref) String() string {
	if r == nil {
		return "<nil>"
	}
	short := r.id
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s#%s", r.name, short)
}

// Alive reports whether the actor is still accepting messages.
func (r *Ref) Alive() bool {
	if r == nil {
		return false
	}
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

// Tell enqueues msg. It blocks while the mailbox is full.
func (r *Ref) Tell(msg any, sender *Ref) error {
	return r.tell(context.Background(), Envelope{Message: msg, Sender: sender})
}

func (r *Ref) tell(ctx context.Context, env Envelope) error {
	if r == nil {
		return ErrNoRecipient
	}
	select {
	case <-r.done:
		r.sys.deadLetter(r, env)
		return ErrStopped
	default:
	}
	select {
	case r.mailbox <- env:
		return nil
	case <-r.done:
		r.sys.deadLetter(r, env)
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop asks the actor to stop after the message it is processing.
func (r *Ref) Stop() {
	if r == nil {
		return
	}
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// Done is closed once the actor has stopped.
func (r *Ref) Done() <-chan struct{} { return r.done }

func (r *Ref) markDone() {
	r.doneOnce.Do(func() { close(r.done) })
}

// drain hands whatever is left in the mailbox to dead letters.
func (r *Ref) drain() {
	for {
		select {
		case env := <-r.mailbox:
			r.sys.deadLetter(r, env)
		default:
			return
		}
	}
}
