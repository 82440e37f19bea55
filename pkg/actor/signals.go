package actor

// Signal is implemented by the lifecycle messages produced by the runtime.
type Signal interface {
	signal()
}

// ChildExited is sent to a parent when one of its children stopped.
type ChildExited struct {
	Child *Ref
}

// PoisonMessage returns a message to its sender after the recipient panicked
// while processing it.
type PoisonMessage struct {
	Message any
	Reason  string
}

// Wakeup is delivered after Context.WakeupAfter elapses.
type Wakeup struct{}

// ExitRequest asks an actor to stop. The actor still sees it in Receive.
type ExitRequest struct{}

// DeadLetter describes a message that could not be delivered.
type DeadLetter struct {
	Recipient *Ref
	Message   any
	Sender    *Ref
}

func (ChildExited) signal()   {}
func (PoisonMessage) signal() {}
func (Wakeup) signal()        {}
func (ExitRequest) signal()   {}
func (DeadLetter) signal()    {}

// poolDispatch marks the message that checks a worker out of its pool.
type poolDispatch struct {
	Envelope
}
