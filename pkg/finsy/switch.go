// Package finsy drives P4Runtime switches. A Switch owns one device:
// it connects, negotiates arbitration, installs the pipeline and runs a
// user handler while the device is ready, reconnecting on failure. A
// Controller supervises many Switches concurrently.
package finsy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	p4v1 "github.com/p4lang/p4runtime/go/p4/v1"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"

	"github.com/finsy-network/finsy/pkg/gnmiclient"
	"github.com/finsy-network/finsy/pkg/p4client"
	"github.com/finsy-network/finsy/pkg/p4entity"
	"github.com/finsy-network/finsy/pkg/p4schema"
	"github.com/finsy-network/finsy/pkg/pbuf"
	"github.com/finsy-network/finsy/pkg/util"
)

// State is the connection state of a Switch.
type State int32

const (
	StateDown State = iota
	StateConnecting
	StateConnected
	StateReady
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDown:
		return "DOWN"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReady:
		return "READY"
	case StateFailed:
		return "FAILED"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

const (
	// outboundQueueSize bounds messages waiting for the stream writer.
	outboundQueueSize = 50

	// streamQueueSize bounds each packet/digest/idle-timeout reader.
	streamQueueSize = 50

	// Reconnection backoff. The backoff resets once a connection has
	// stayed up for minUptime.
	reconnectInitial = 2 * time.Second
	reconnectMax     = 30 * time.Second
	minUptime        = 10 * time.Second
)

// errPrimaryChanged restarts the ready epoch when the device reassigns
// our role; the supervisor treats it as a reconnect, not a failure.
var errPrimaryChanged = errors.New("primary status changed")

type outboundMsg struct {
	req  *p4v1.StreamMessageRequest
	done chan error
}

type epoch struct {
	g   *errgroup.Group
	ctx context.Context
}

// Switch drives one P4Runtime device.
type Switch struct {
	name    string
	address string
	options SwitchOptions
	log     *logrus.Entry
	emitter *util.Emitter[Event]

	// Set by the run loop, reused across attempts.
	client *p4client.Client
	gnmi   *gnmiclient.Client
	arb    *arbitrator

	mu            sync.Mutex
	state         State
	schema        *p4schema.P4Schema
	isPrimary     bool
	apiVersion    p4client.ApiVersion
	outbound      chan outboundMsg
	epoch         *epoch
	controller    *Controller
	ports         map[string]*Port
	packetReaders map[*Reader[*p4entity.PacketIn]]map[uint16]struct{}
	digestReaders map[*Reader[*p4entity.DigestList]]string
	idleReaders   map[*Reader[*p4entity.IdleTimeoutNotification]]struct{}

	stashMu sync.Mutex
	stash   map[string]any
}

// NewSwitch creates a switch for the given target address. The options
// are validated and the configured pipeline is loaded immediately.
func NewSwitch(name, address string, options SwitchOptions) (*Switch, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: switch name required", util.ErrInvalidConfig)
	}
	options = options.withDefaults()
	schema, err := options.loadSchema()
	if err != nil {
		return nil, fmt.Errorf("switch %s: %w", name, err)
	}
	return &Switch{
		name:          name,
		address:       address,
		options:       options,
		log:           util.WithSwitch(name),
		emitter:       &util.Emitter[Event]{},
		schema:        schema,
		ports:         map[string]*Port{},
		packetReaders: map[*Reader[*p4entity.PacketIn]]map[uint16]struct{}{},
		digestReaders: map[*Reader[*p4entity.DigestList]]string{},
		idleReaders:   map[*Reader[*p4entity.IdleTimeoutNotification]]struct{}{},
		stash:         map[string]any{},
	}, nil
}

// Name returns the switch name.
func (sw *Switch) Name() string { return sw.name }

// Address returns the target address.
func (sw *Switch) Address() string { return sw.address }

// Options returns a copy of the switch options.
func (sw *Switch) Options() SwitchOptions { return sw.options }

// State returns the current connection state.
func (sw *Switch) State() State {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.state
}

// IsPrimary reports whether this client holds the primary role.
func (sw *Switch) IsPrimary() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.isPrimary
}

// Schema returns the active pipeline schema.
func (sw *Switch) Schema() *p4schema.P4Schema {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.schema
}

// ApiVersion returns the device's P4Runtime API version, if probed.
func (sw *Switch) ApiVersion() p4client.ApiVersion {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.apiVersion
}

// Controller returns the owning controller, or nil.
func (sw *Switch) Controller() *Controller {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.controller
}

// Subscribe registers a listener for lifecycle events. The returned
// function cancels the subscription.
func (sw *Switch) Subscribe(fn func(Event)) func() {
	return sw.emitter.Subscribe(fn)
}

// StashGet reads a value from the per-switch stash.
func (sw *Switch) StashGet(key string) (any, bool) {
	sw.stashMu.Lock()
	defer sw.stashMu.Unlock()
	v, ok := sw.stash[key]
	return v, ok
}

// StashSet stores a value in the per-switch stash. The stash survives
// reconnects; it belongs to the application.
func (sw *Switch) StashSet(key string, value any) {
	sw.stashMu.Lock()
	defer sw.stashMu.Unlock()
	sw.stash[key] = value
}

func (sw *Switch) emit(ev Event) { sw.emitter.Emit(ev) }

func (sw *Switch) setState(s State) {
	sw.mu.Lock()
	prev := sw.state
	sw.state = s
	sw.mu.Unlock()
	if prev != s {
		sw.log.Debugf("state %s -> %s", prev, s)
	}
}

func (sw *Switch) setPrimary(primary bool) {
	sw.mu.Lock()
	sw.isPrimary = primary
	sw.mu.Unlock()
	kind := EventBecameBackup
	if primary {
		kind = EventBecamePrimary
	}
	sw.log.Infof("arbitration: %s", kind)
	sw.emit(Event{Kind: kind, Switch: sw})
}

// Run supervises the switch until the context is cancelled: connect,
// serve, reconnect with backoff. With FailFast, programming errors end
// the supervision instead.
func (sw *Switch) Run(ctx context.Context) error {
	defer sw.setState(StateClosed)
	defer sw.closeClient()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = reconnectInitial
	bo.MaxInterval = reconnectMax
	bo.MaxElapsedTime = 0

	for {
		started := time.Now()
		err := sw.attempt(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil && sw.options.FailFast && isProgrammingError(err) {
			sw.setState(StateFailed)
			return fmt.Errorf("switch %s: %w", sw.name, err)
		}
		if time.Since(started) >= minUptime {
			bo.Reset()
		}
		delay := bo.NextBackOff()
		if err != nil && !errors.Is(err, errPrimaryChanged) {
			sw.logTransient(err, delay)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil
		}
	}
}

// RunOnce makes a single connection attempt and serves until the stream
// ends. Any failure is returned to the caller; there is no retry.
func (sw *Switch) RunOnce(ctx context.Context) error {
	defer sw.setState(StateClosed)
	defer sw.closeClient()
	if err := sw.attempt(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("switch %s: %w", sw.name, err)
	}
	return nil
}

// logTransient logs a reconnect cause. UNAVAILABLE is the ordinary
// "device not there" case and stays at debug level.
func (sw *Switch) logTransient(err error, delay time.Duration) {
	if p4client.Code(err) == codes.Unavailable {
		sw.log.Debugf("device unavailable, retrying in %s", delay.Round(time.Millisecond))
		return
	}
	sw.log.Warnf("connection lost, retrying in %s: %v", delay.Round(time.Millisecond), err)
}

func isProgrammingError(err error) bool {
	var schemaErr *util.SchemaError
	var encodeErr *util.EncodeError
	return errors.As(err, &schemaErr) ||
		errors.As(err, &encodeErr) ||
		errors.Is(err, util.ErrInvalidConfig)
}

func (sw *Switch) closeClient() {
	if sw.client != nil {
		sw.client.Close()
		sw.client = nil
		sw.gnmi = nil
	}
}

// attempt runs one connection: handshake, pipeline check, ready epoch.
func (sw *Switch) attempt(ctx context.Context) error {
	sw.setState(StateConnecting)

	if sw.client == nil {
		client, err := p4client.Dial(sw.address, sw.options.Credentials)
		if err != nil {
			return err
		}
		sw.client = client
		sw.gnmi = gnmiclient.FromConn(client.Conn())
	}

	stream, err := sw.client.OpenStream(ctx)
	if err != nil {
		return err
	}
	defer stream.Close()

	arb := newArbitrator(sw.options, sw.log)
	if err := arb.handshake(stream); err != nil {
		return err
	}
	sw.arb = arb
	sw.setState(StateConnected)
	sw.emit(Event{Kind: EventChannelUp, Switch: sw})
	sw.setPrimary(arb.primary())

	sw.probeCapabilities(ctx)

	if err := sw.checkPipeline(ctx, arb.primary()); err != nil {
		return err
	}

	return sw.serveReady(ctx, stream)
}

// probeCapabilities asks the device for its API version. Devices that
// do not implement the RPC are fine.
func (sw *Switch) probeCapabilities(ctx context.Context) {
	v, err := sw.client.Capabilities(ctx)
	if err != nil {
		if p4client.Code(err) == codes.Unimplemented {
			sw.log.Debug("capabilities not implemented by device")
		} else {
			sw.log.Warnf("capabilities probe failed: %v", err)
		}
		return
	}
	sw.mu.Lock()
	sw.apiVersion = v
	sw.mu.Unlock()
	sw.log.Debugf("device API version %s", v)
}

// serveReady runs the READY epoch: the stream writer and reader, the
// port watcher and the user ready handler share one task group. The
// epoch ends when any of them fails or the context is cancelled.
func (sw *Switch) serveReady(ctx context.Context, stream *p4client.Stream) error {
	epochCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(epochCtx)
	out := make(chan outboundMsg, outboundQueueSize)

	sw.mu.Lock()
	sw.state = StateReady
	sw.outbound = out
	sw.epoch = &epoch{g: g, ctx: gctx}
	sw.mu.Unlock()

	defer func() {
		sw.mu.Lock()
		sw.outbound = nil
		sw.epoch = nil
		sw.mu.Unlock()
		sw.emit(Event{Kind: EventChannelDown, Switch: sw})
		sw.setState(StateDown)
	}()

	sw.emit(Event{Kind: EventChannelReady, Switch: sw})
	sw.log.Info("ready")

	// Recv only unblocks via stream cancellation.
	go func() {
		<-gctx.Done()
		stream.Close()
	}()

	g.Go(func() error { return sw.streamWriter(gctx, stream, out) })
	g.Go(func() error { return sw.streamReader(gctx, stream) })
	g.Go(func() error { return sw.watchPorts(gctx) })
	if handler := sw.options.ReadyHandler; handler != nil {
		g.Go(func() error { return handler(gctx, sw) })
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// streamWriter is the only goroutine that sends on the stream. Queued
// messages not yet transmitted when the epoch ends are discarded; their
// senders observe the epoch cancellation.
func (sw *Switch) streamWriter(ctx context.Context, stream *p4client.Stream, out <-chan outboundMsg) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-out:
			err := stream.Send(msg.req)
			msg.done <- err
			if err != nil {
				return fmt.Errorf("stream send: %w", err)
			}
		}
	}
}

// streamReader demultiplexes inbound stream messages.
func (sw *Switch) streamReader(ctx context.Context, stream *p4client.Stream) error {
	for {
		resp, err := stream.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("stream closed: %w", err)
		}

		switch m := resp.GetUpdate().(type) {
		case *p4v1.StreamMessageResponse_Arbitration:
			primary, changed, rebid := sw.arb.update(m.Arbitration)
			if rebid != nil {
				// The primary left and the slot is vacant. Bid for it
				// with the highest id the device has seen; the reply
				// arrives as another arbitration update.
				go func() {
					if err := sw.sendStream(ctx, rebid); err != nil {
						sw.log.Debugf("arbitration re-bid not sent: %v", err)
					}
				}()
			}
			if changed {
				sw.setPrimary(primary)
				return errPrimaryChanged
			}
		case *p4v1.StreamMessageResponse_Packet:
			sw.deliverPacket(m.Packet)
		case *p4v1.StreamMessageResponse_Digest:
			sw.deliverDigest(m.Digest)
		case *p4v1.StreamMessageResponse_IdleTimeoutNotification:
			sw.deliverIdleTimeout(m.IdleTimeoutNotification)
		case *p4v1.StreamMessageResponse_Error:
			streamErr := fmt.Errorf("device stream error: %s",
				codes.Code(m.Error.GetCanonicalCode()))
			sw.log.Warnf("%v: %s", streamErr, pbuf.Short(m.Error))
			sw.emit(Event{Kind: EventStreamError, Switch: sw, Err: streamErr})
		default:
			sw.log.Debugf("unhandled stream message: %s", pbuf.Short(resp))
		}
	}
}

// sendStream enqueues one message for the stream writer and waits for
// it to be transmitted.
func (sw *Switch) sendStream(ctx context.Context, req *p4v1.StreamMessageRequest) error {
	sw.mu.Lock()
	out := sw.outbound
	ep := sw.epoch
	sw.mu.Unlock()
	if out == nil || ep == nil {
		return util.ErrNotConnected
	}

	msg := outboundMsg{req: req, done: make(chan error, 1)}
	select {
	case out <- msg:
	case <-ep.ctx.Done():
		return util.ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-msg.done:
		return err
	case <-ep.ctx.Done():
		return util.ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CreateTask runs fn inside the current READY epoch. The task's context
// is cancelled when the switch leaves READY; a task failure ends the
// epoch.
func (sw *Switch) CreateTask(name string, fn func(ctx context.Context) error) error {
	sw.mu.Lock()
	ep := sw.epoch
	sw.mu.Unlock()
	if ep == nil {
		return util.ErrNotConnected
	}
	ep.g.Go(func() error {
		err := fn(ep.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			sw.log.Errorf("task %s: %v", name, err)
			return fmt.Errorf("task %s: %w", name, err)
		}
		return nil
	})
	return nil
}
