package actor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Options configures a System.
type Options struct {
	// MailboxSize is the default mailbox capacity for actors whose Props do
	// not set one.
	MailboxSize int
	// DeadLetters, when set, observes every undeliverable message.
	DeadLetters func(DeadLetter)
}

// System owns every actor it spawned. Named actors are looked up through
// the System so that SpawnNamed always yields a single live instance.
type System struct {
	opts        Options
	mu          sync.Mutex
	names       map[string]*Ref
	live        map[string]*Ref
	closed      bool
	wg          sync.WaitGroup
	deadLetters atomic.Int64
}

// NewSystem creates an empty actor system.
func NewSystem(opts Options) *System {
	if opts.MailboxSize <= 0 {
		opts.MailboxSize = defaultMailboxSize
	}
	return &System{
		opts:  opts,
		names: make(map[string]*Ref),
		live:  make(map[string]*Ref),
	}
}

// Spawn starts an anonymous top-level actor.
func (s *System) Spawn(props Props) (*Ref, error) {
	return s.spawn("", props, nil)
}

// SpawnNamed returns the live actor registered under name or starts a new
// one from props. Concurrent callers always observe the same Ref.
func (s *System) SpawnNamed(name string, props Props) (*Ref, error) {
	if name == "" {
		return nil, errors.New("actor: empty name")
	}
	if err := props.validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ref, ok := s.names[name]; ok && ref.Alive() {
		return ref, nil
	}
	ref, err := s.startLocked(name, props, nil)
	if err != nil {
		return nil, err
	}
	s.names[name] = ref
	return ref, nil
}

func (s *System) spawn(name string, props Props, parent *process) (*Ref, error) {
	if err := props.validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(name, props, parent)
}

func (s *System) startLocked(name string, props Props, parent *process) (*Ref, error) {
	if s.closed {
		return nil, ErrSystemClosed
	}
	if name == "" {
		name = "actor"
	}
	size := props.MailboxSize
	if size <= 0 {
		size = s.opts.MailboxSize
	}

	ref := newRef(s, uuid.NewString(), name, size)
	s.live[ref.id] = ref
	s.wg.Add(1)

	if props.Pool != nil {
		p := newPool(s, ref, props)
		if parent != nil {
			p.parent = parent.ref
			parent.children[ref.id] = ref
		}
		go p.run()
		return ref, nil
	}

	proc := s.newProcess(ref, props, nil)
	if parent != nil {
		proc.parent = parent
		parent.children[ref.id] = ref
	}
	go proc.run()
	return ref, nil
}

func (s *System) newProcess(ref *Ref, props Props, owner *pool) *process {
	ctx, cancel := context.WithCancel(context.Background())
	return &process{
		sys:      s,
		ref:      ref,
		props:    props,
		restart:  props.Restart.normalize(),
		actor:    props.New(),
		pool:     owner,
		children: make(map[string]*Ref),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// startWorker launches a pool member. Workers are not named globally.
func (s *System) startWorker(owner *pool) (*Ref, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSystemClosed
	}
	// Workers only ever hold the dispatch message plus direct replies.
	size := owner.props.MailboxSize
	if size <= 0 {
		size = s.opts.MailboxSize
	}
	ref := newRef(s, uuid.NewString(), owner.ref.name+"/worker", size)
	s.live[ref.id] = ref
	s.wg.Add(1)

	workerProps := owner.props
	workerProps.Pool = nil
	go s.newProcess(ref, workerProps, owner).run()
	return ref, nil
}

func (s *System) unregister(ref *Ref) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.live, ref.id)
	if named, ok := s.names[ref.name]; ok && named == ref {
		delete(s.names, ref.name)
	}
}

// Ask sends msg to the target and waits for the first reply. The temporary
// reply address is closed on return; later replies become dead letters.
func (s *System) Ask(ctx context.Context, to *Ref, msg any) (any, error) {
	reply := newRef(s, uuid.NewString(), "ask", 1)
	defer reply.markDone()

	if err := to.tell(ctx, Envelope{Message: msg, Sender: reply}); err != nil {
		return nil, askError(err)
	}

	select {
	case env := <-reply.mailbox:
		return env.Message, nil
	case <-ctx.Done():
		return nil, askError(ctx.Err())
	}
}

// AskTimeout is Ask bounded by a relative timeout.
func (s *System) AskTimeout(to *Ref, msg any, timeout time.Duration) (any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Ask(ctx, to, msg)
}

func askError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}

func (s *System) deadLetter(to *Ref, env Envelope) {
	s.deadLetters.Add(1)
	slog.Debug("Dead letter", "recipient", to.String(), "sender", env.Sender.String(), "message_type", typeName(env.Message))
	if s.opts.DeadLetters != nil {
		s.opts.DeadLetters(DeadLetter{Recipient: to, Message: env.Message, Sender: env.Sender})
	}
}

// DeadLetters returns how many messages could not be delivered so far.
func (s *System) DeadLetters() int64 {
	return s.deadLetters.Load()
}

// Shutdown stops every actor and waits for their goroutines to exit.
func (s *System) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	refs := make([]*Ref, 0, len(s.live))
	for _, ref := range s.live {
		refs = append(refs, ref)
	}
	s.mu.Unlock()

	for _, ref := range refs {
		ref.Stop()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
