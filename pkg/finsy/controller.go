package finsy

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/finsy-network/finsy/pkg/util"
)

// Controller supervises a set of Switches. Each switch runs its own
// reconnect loop; one switch failing never cancels its siblings. The
// set may change while the controller is running.
type Controller struct {
	emitter *util.Emitter[Event]

	mu       sync.Mutex
	switches map[string]*Switch
	running  bool
	runCtx   context.Context
	stops    map[string]context.CancelFunc
	done     map[string]chan struct{}

	wg    sync.WaitGroup
	errCh chan error
}

// NewController creates a controller over the given switches.
func NewController(switches ...*Switch) (*Controller, error) {
	c := &Controller{
		emitter:  &util.Emitter[Event]{},
		switches: map[string]*Switch{},
		stops:    map[string]context.CancelFunc{},
		done:     map[string]chan struct{}{},
		errCh:    make(chan error, 1),
	}
	for _, sw := range switches {
		if err := c.Add(sw); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Subscribe registers a listener for controller and switch membership
// events. The returned function cancels the subscription.
func (c *Controller) Subscribe(fn func(Event)) func() {
	return c.emitter.Subscribe(fn)
}

func (c *Controller) emit(ev Event) { c.emitter.Emit(ev) }

// Add registers a switch. Names must be unique. When the controller is
// running, the switch starts immediately.
func (c *Controller) Add(sw *Switch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.switches[sw.name]; exists {
		return fmt.Errorf("%w: duplicate switch name %q", util.ErrAlreadyExists, sw.name)
	}
	c.switches[sw.name] = sw
	sw.mu.Lock()
	sw.controller = c
	sw.mu.Unlock()
	if c.running {
		c.startSwitchLocked(sw)
	}
	return nil
}

// Remove stops and deregisters the named switch. The returned channel
// closes once the switch has fully stopped.
func (c *Controller) Remove(name string) (<-chan struct{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sw, exists := c.switches[name]
	if !exists {
		return nil, fmt.Errorf("%w: switch %q", util.ErrNotFound, name)
	}
	delete(c.switches, name)
	sw.mu.Lock()
	sw.controller = nil
	sw.mu.Unlock()

	done := c.done[name]
	if stop := c.stops[name]; stop != nil {
		stop()
		delete(c.stops, name)
		delete(c.done, name)
	}
	if done == nil {
		closed := make(chan struct{})
		close(closed)
		done = closed
	}
	return done, nil
}

// Get returns the named switch, or nil.
func (c *Controller) Get(name string) *Switch {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.switches[name]
}

// All returns the switches sorted by name.
func (c *Controller) All() []*Switch {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Switch, 0, len(c.switches))
	for _, sw := range c.switches {
		out = append(out, sw)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Len returns the number of switches.
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.switches)
}

// Run starts every switch and blocks until the context is cancelled,
// or until a switch with FailFast set reports a programming error, in
// which case that error is returned after all switches stop.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("controller already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.running = true
	c.runCtx = runCtx
	for _, sw := range c.switches {
		c.startSwitchLocked(sw)
	}
	c.mu.Unlock()

	var failure error
	select {
	case <-ctx.Done():
	case failure = <-c.errCh:
	}
	cancel()
	c.wg.Wait()

	c.mu.Lock()
	c.running = false
	c.runCtx = nil
	c.stops = map[string]context.CancelFunc{}
	c.done = map[string]chan struct{}{}
	c.mu.Unlock()
	return failure
}

// startSwitchLocked launches one switch supervisor. Callers hold c.mu.
func (c *Controller) startSwitchLocked(sw *Switch) {
	swCtx, stop := context.WithCancel(c.runCtx)
	done := make(chan struct{})
	c.stops[sw.name] = stop
	c.done[sw.name] = done

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(done)
		defer stop()

		c.emit(Event{Kind: EventControllerEnter, Switch: sw})
		sw.emit(Event{Kind: EventControllerEnter, Switch: sw})

		if err := sw.Run(swCtx); err != nil {
			// Only FailFast programming errors surface here.
			select {
			case c.errCh <- err:
			default:
			}
		}

		sw.emit(Event{Kind: EventControllerLeave, Switch: sw})
		c.emit(Event{Kind: EventControllerLeave, Switch: sw})
	}()
}
