package actor

import (
	"context"
	"time"
)

// Context is handed to Receive for a single message. It must not be retained
// after Receive returns.
type Context struct {
	proc     *process
	sender   *Ref
	released bool
	stopped  bool
}

// Self returns the Ref of the running actor.
func (c *Context) Self() *Ref { return c.proc.ref }

// Sender returns the Ref the current message came from, or nil.
func (c *Context) Sender() *Ref { return c.sender }

// System returns the owning System.
func (c *Context) System() *System { return c.proc.sys }

// Context is cancelled when the actor stops.
func (c *Context) Context() context.Context { return c.proc.ctx }

// Send delivers msg to another actor with Self as sender.
func (c *Context) Send(to *Ref, msg any) error {
	return to.Tell(msg, c.proc.ref)
}

// Reply sends msg back to the sender of the current message.
func (c *Context) Reply(msg any) error {
	return c.Send(c.sender, msg)
}

// Spawn creates a child. The child is stopped with its parent and the parent
// receives ChildExited when it ends.
func (c *Context) Spawn(props Props) (*Ref, error) {
	return c.proc.sys.spawn("", props, c.proc)
}

// SpawnNamed returns the live actor registered under name, creating it from
// props when there is none.
func (c *Context) SpawnNamed(name string, props Props) (*Ref, error) {
	return c.proc.sys.SpawnNamed(name, props)
}

// WakeupAfter delivers Wakeup to Self once d has elapsed.
func (c *Context) WakeupAfter(d time.Duration) {
	self := c.proc.ref
	time.AfterFunc(d, func() {
		if self.Alive() {
			_ = self.Tell(Wakeup{}, nil)
		}
	})
}

// Release returns a leased pool worker to its pool once Receive returns.
func (c *Context) Release() { c.released = true }

// Stop ends the actor once Receive returns.
func (c *Context) Stop() { c.stopped = true }
