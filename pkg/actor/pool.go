package actor

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// PoolConfig sizes a worker pool.
//
// Min workers are kept alive at all times. New workers are started on demand
// up to Max; workers above Min that stay idle longer than IdleTimeout are
// stopped. In Lease mode a worker stays checked out after its first message
// until it calls Context.Release, so it can hold a multi-message conversation
// with the rest of the system. A checkout held past its lease deadline is
// abandoned and its worker stopped. The deadline comes from the dispatched
// message when it implements LeaseBound, otherwise from LeaseTimeout.
type PoolConfig struct {
	Min          int
	Max          int
	IdleTimeout  time.Duration
	Lease        bool
	LeaseTimeout time.Duration
}

func (c *PoolConfig) validate() error {
	if c.Max <= 0 {
		return errors.New("actor: pool max must be positive")
	}
	if c.Min < 0 || c.Min > c.Max {
		return fmt.Errorf("actor: pool min %d outside [0, %d]", c.Min, c.Max)
	}
	return nil
}

func (c *PoolConfig) sweepInterval() time.Duration {
	interval := time.Second
	if c.IdleTimeout > 0 && c.IdleTimeout/2 < interval {
		interval = c.IdleTimeout / 2
	}
	if c.LeaseTimeout > 0 && c.LeaseTimeout/4 < interval {
		interval = c.LeaseTimeout / 4
	}
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	return interval
}

// LeaseBound is implemented by messages that carry their own deadline.
// A leased worker serving one is not abandoned before that deadline.
type LeaseBound interface {
	LeaseDeadline() (time.Time, bool)
}

type checkout struct {
	ref      *Ref
	since    time.Time
	deadline time.Time
}

func (c *PoolConfig) leaseDeadline(msg any, now time.Time) time.Time {
	if !c.Lease {
		return time.Time{}
	}
	if lb, ok := msg.(LeaseBound); ok {
		if dl, ok := lb.LeaseDeadline(); ok {
			return dl
		}
	}
	if c.LeaseTimeout > 0 {
		return now.Add(c.LeaseTimeout)
	}
	return time.Time{}
}

// pool routes each message sent to its Ref to one idle worker.
type pool struct {
	sys     *System
	ref     *Ref
	parent  *Ref
	cfg     PoolConfig
	props   Props
	workers map[string]*Ref
	idle    []checkout
	busy    map[string]checkout
	queue   []Envelope
	returns chan *Ref
	exits   chan *Ref
}

func newPool(sys *System, ref *Ref, props Props) *pool {
	cfg := *props.Pool
	return &pool{
		sys:     sys,
		ref:     ref,
		cfg:     cfg,
		props:   props,
		workers: make(map[string]*Ref),
		busy:    make(map[string]checkout),
		// Each worker returns and exits at most once per checkout.
		returns: make(chan *Ref, cfg.Max),
		exits:   make(chan *Ref, cfg.Max),
	}
}

func (p *pool) run() {
	defer p.sys.wg.Done()
	defer p.terminate()

	for i := 0; i < p.cfg.Min; i++ {
		if ref := p.grow(); ref != nil {
			p.idle = append(p.idle, checkout{ref: ref, since: time.Now()})
		}
	}

	ticker := time.NewTicker(p.cfg.sweepInterval())
	defer ticker.Stop()

	for {
		// Stop reading the mailbox while the backlog is full so senders feel
		// the same backpressure as with a single actor.
		inbox := p.ref.mailbox
		if len(p.queue) >= cap(p.ref.mailbox) {
			inbox = nil
		}

		select {
		case <-p.ref.stopCh:
			return
		case env := <-inbox:
			if _, ok := env.Message.(ExitRequest); ok {
				return
			}
			p.queue = append(p.queue, env)
			p.dispatch()
		case ref := <-p.returns:
			p.markIdle(ref)
			p.dispatch()
		case ref := <-p.exits:
			p.remove(ref)
			p.dispatch()
		case now := <-ticker.C:
			p.sweep(now)
		}
	}
}

func (p *pool) dispatch() {
	for len(p.queue) > 0 {
		worker := p.take()
		if worker == nil {
			return
		}
		env := p.queue[0]
		if err := worker.Tell(poolDispatch{Envelope: env}, env.Sender); err != nil {
			delete(p.workers, worker.ID())
			continue
		}
		p.queue = p.queue[1:]
		now := time.Now()
		p.busy[worker.ID()] = checkout{ref: worker, since: now, deadline: p.cfg.leaseDeadline(env.Message, now)}
	}
}

// take returns an idle worker, growing the pool when allowed.
func (p *pool) take() *Ref {
	if n := len(p.idle); n > 0 {
		w := p.idle[n-1]
		p.idle = p.idle[:n-1]
		return w.ref
	}
	if len(p.workers) < p.cfg.Max {
		return p.grow()
	}
	return nil
}

func (p *pool) grow() *Ref {
	ref, err := p.sys.startWorker(p)
	if err != nil {
		slog.Warn("Pool could not start worker", "pool", p.ref.String(), "error", err)
		return nil
	}
	p.workers[ref.ID()] = ref
	slog.Debug("Pool grew", "pool", p.ref.String(), "size", len(p.workers))
	return ref
}

func (p *pool) markIdle(ref *Ref) {
	if _, ok := p.busy[ref.ID()]; !ok {
		return
	}
	delete(p.busy, ref.ID())
	if _, ok := p.workers[ref.ID()]; ok && ref.Alive() {
		p.idle = append(p.idle, checkout{ref: ref, since: time.Now()})
	}
}

func (p *pool) remove(ref *Ref) {
	delete(p.workers, ref.ID())
	delete(p.busy, ref.ID())
	p.dropIdle(ref)

	for len(p.workers) < p.cfg.Min {
		fresh := p.grow()
		if fresh == nil {
			return
		}
		p.idle = append(p.idle, checkout{ref: fresh, since: time.Now()})
	}
}

func (p *pool) dropIdle(ref *Ref) {
	kept := p.idle[:0]
	for _, w := range p.idle {
		if w.ref != ref {
			kept = append(kept, w)
		}
	}
	p.idle = kept
}

func (p *pool) sweep(now time.Time) {
	if p.cfg.Lease {
		for id, c := range p.busy {
			if !c.deadline.IsZero() && now.After(c.deadline) {
				slog.Warn("Abandoning pool worker past its lease", "pool", p.ref.String(), "worker", c.ref.String(), "held", now.Sub(c.since).String())
				delete(p.busy, id)
				c.ref.Stop()
			}
		}
	}

	if p.cfg.IdleTimeout <= 0 {
		return
	}
	surplus := len(p.workers) - p.cfg.Min
	kept := p.idle[:0]
	for _, w := range p.idle {
		if surplus > 0 && now.Sub(w.since) > p.cfg.IdleTimeout {
			surplus--
			slog.Debug("Reclaiming idle pool worker", "pool", p.ref.String(), "worker", w.ref.String())
			w.ref.Stop()
			continue
		}
		kept = append(kept, w)
	}
	p.idle = kept
}

// checkin is called from a worker goroutine when it becomes available.
func (p *pool) checkin(ref *Ref) {
	select {
	case p.returns <- ref:
	case <-p.ref.done:
	}
}

// exited is called from a worker goroutine once it has stopped.
func (p *pool) exited(ref *Ref) {
	select {
	case p.exits <- ref:
	case <-p.ref.done:
	}
}

func (p *pool) terminate() {
	for _, w := range p.workers {
		w.Stop()
	}
	p.sys.unregister(p.ref)
	p.ref.markDone()
	for _, env := range p.queue {
		p.sys.deadLetter(p.ref, env)
	}
	p.queue = nil
	p.ref.drain()

	if p.parent != nil {
		_ = p.parent.Tell(ChildExited{Child: p.ref}, nil)
	}
	slog.Debug("Pool stopped", "pool", p.ref.String())
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
